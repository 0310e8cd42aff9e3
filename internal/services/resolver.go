package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tessplot/internal/archive"
	"github.com/dmitrijs2005/tessplot/internal/locate"
	"github.com/dmitrijs2005/tessplot/internal/logging"
)

// Source tells where a sector's pixel file came from.
type Source int

const (
	SourceNone Source = iota
	SourceLocal
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	default:
		return "none"
	}
}

// Resolution is the outcome of resolving one (target, sector) pair.
type Resolution struct {
	Sector int
	Source Source
	Path   string

	// Set only for SourceRemote.
	Product *archive.Product
	Bytes   int64
}

// Found reports whether a pixel file is available.
func (r Resolution) Found() bool {
	return r.Source != SourceNone
}

// Resolver applies the two-step policy: the first local match wins, else the
// first archive product is downloaded into the local layout.
type Resolver struct {
	finder  *locate.Finder
	archive archive.Archive
	log     logging.Logger
}

// NewResolver returns a Resolver. A nil archive disables the remote step.
func NewResolver(finder *locate.Finder, arch archive.Archive, log logging.Logger) *Resolver {
	return &Resolver{finder: finder, archive: arch, log: log}
}

// Resolve finds the pixel file of target in sector under dir. A sector with
// no local file and no archive product yields SourceNone and a nil error.
func (r *Resolver) Resolve(ctx context.Context, dir string, target int64, sector int) (Resolution, error) {
	res := Resolution{Sector: sector}

	matches, err := r.finder.Find(dir, target, sector)
	if err != nil {
		return res, fmt.Errorf("local search for sector %d: %w", sector, err)
	}
	if len(matches) > 0 {
		if len(matches) > 1 {
			r.log.Debug(ctx, "several local files match, using the first", "sector", sector, "matches", len(matches))
		}
		res.Source = SourceLocal
		res.Path = matches[0]
		return res, nil
	}

	if r.archive == nil {
		return res, nil
	}

	products, err := r.archive.Search(ctx, target, sector)
	if err != nil {
		return res, fmt.Errorf("archive search for sector %d: %w", sector, err)
	}
	if len(products) == 0 {
		return res, nil
	}

	p := products[0]
	dst := r.finder.Dest(dir, sector, p.FileName)
	r.log.Info(ctx, fmt.Sprintf("Downloading sector %d for star %d", sector, target), "key", p.Key, "path", dst)

	n, err := r.archive.Download(ctx, p, dst)
	if err != nil {
		return res, fmt.Errorf("download sector %d: %w", sector, err)
	}

	res.Source = SourceRemote
	res.Path = dst
	res.Product = &p
	res.Bytes = n
	return res, nil
}
