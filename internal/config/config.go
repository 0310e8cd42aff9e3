package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/tessplot/internal/common"
)

// Directory layouts understood by the local search.
const (
	LayoutAuto   = "auto"
	LayoutSector = "sector"
	LayoutFlat   = "flat"
)

// DefaultQualityBitmask drops cadences flagged for attitude tweaks, safe
// mode, coarse or earth pointing, momentum dumps and manual exclusion.
const DefaultQualityBitmask = 175

// Archive holds settings for the remote pixel-file archive.
//
// Fields:
//   - Bucket / Region: S3 bucket that mirrors the mission archive.
//   - Endpoint: optional base endpoint for S3-compatible mirrors.
//   - AccessKey / SecretKey: optional static credentials; anonymous if empty.
//   - PublicBaseURL: HTTP prefix objects are downloaded from.
//   - FetchTimeout: per-request limit; zero waits for as long as I/O takes.
type Archive struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	FetchTimeout  time.Duration
}

type Log struct {
	Format string
	Level  string
}

// Plot sizes are in inches.
type Plot struct {
	WidthIn  float64
	HeightIn float64
}

// Config holds runtime settings for tessplot.
type Config struct {
	DownloadDir    string
	Sectors        []int
	Layout         string
	LayoutMarker   string
	QualityBitmask int
	JournalPath    string
	Archive        Archive
	Log            Log
	Plot           Plot
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DownloadDir = "/epyc/data/tess"
	c.Sectors = common.Sectors()
	c.Layout = LayoutAuto
	c.LayoutMarker = "epyc"
	c.QualityBitmask = DefaultQualityBitmask
	c.JournalPath = ""
	c.Archive = Archive{
		Bucket:        "stpubdata",
		Region:        "us-east-1",
		PublicBaseURL: "https://stpubdata.s3.amazonaws.com",
	}
	c.Log = Log{Format: "auto", Level: "info"}
	c.Plot = Plot{WidthIn: 8, HeightIn: 5}
}

// Validate reports settings the rest of the program cannot work with.
// Target ids and sector numbers are deliberately not checked.
func (c *Config) Validate() error {
	switch c.Layout {
	case LayoutAuto, LayoutSector, LayoutFlat:
	default:
		return fmt.Errorf("invalid layout %q: must be one of auto, sector, flat", c.Layout)
	}
	if len(c.Sectors) == 0 {
		return fmt.Errorf("sector list is empty")
	}
	if c.Plot.WidthIn <= 0 || c.Plot.HeightIn <= 0 {
		return fmt.Errorf("plot size must be positive, got %gx%g", c.Plot.WidthIn, c.Plot.HeightIn)
	}
	if c.Archive.FetchTimeout < 0 {
		return fmt.Errorf("fetch timeout must not be negative")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file at path (if path is not empty).
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := ApplyFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}
