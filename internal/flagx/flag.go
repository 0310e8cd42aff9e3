// Package flagx contains flag helpers shared by the command-line entry points.
package flagx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// ParseSectors parses a sector list such as "1-7", "1,3,5" or "1-3,9".
// Order is preserved and ranges expand in the direction they are written,
// so "3-1" yields 3,2,1. Duplicates are kept.
func ParseSectors(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty sector list")
	}

	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty element in sector list %q", s)
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid sector %q: %w", part, err)
			}
			out = append(out, n)
			continue
		}

		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid sector range %q: %w", part, err)
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid sector range %q: %w", part, err)
		}

		step := 1
		if to < from {
			step = -1
		}
		for n := from; ; n += step {
			out = append(out, n)
			if n == to {
				break
			}
		}
	}
	return out, nil
}

// FormatSectors renders sectors as a comma separated list.
func FormatSectors(sectors []int) string {
	parts := make([]string, len(sectors))
	for i, s := range sectors {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

// SectorList is a pflag.Value bound to an []int. Every Set replaces the
// whole list, so re-applying a flag value is idempotent.
type SectorList struct {
	target *[]int
}

// NewSectorList binds a SectorList to p.
func NewSectorList(p *[]int) *SectorList {
	return &SectorList{target: p}
}

func (s *SectorList) String() string {
	if s.target == nil {
		return ""
	}
	return FormatSectors(*s.target)
}

func (s *SectorList) Set(v string) error {
	sectors, err := ParseSectors(v)
	if err != nil {
		return err
	}
	*s.target = sectors
	return nil
}

func (s *SectorList) Type() string {
	return "sectors"
}

// Changed returns the current string value of every flag the user set
// explicitly on fs.
func Changed(fs *pflag.FlagSet) map[string]string {
	out := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		out[f.Name] = f.Value.String()
	})
	return out
}

// Reapply sets each captured flag value again. It is used after a config
// file has overwritten the variables the flags are bound to, so that
// explicit command-line values keep precedence.
func Reapply(fs *pflag.FlagSet, values map[string]string) error {
	for name, v := range values {
		if err := fs.Set(name, v); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return nil
}
