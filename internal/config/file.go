package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/tessplot/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is a DTO used exclusively for unmarshalling. Pointer fields
// distinguish "absent" from zero values so absent keys keep defaults.
type fileConfig struct {
	DownloadDir    *string      `json:"download_dir" yaml:"download_dir"`
	Sectors        []int        `json:"sectors" yaml:"sectors"`
	Layout         *string      `json:"layout" yaml:"layout"`
	LayoutMarker   *string      `json:"layout_marker" yaml:"layout_marker"`
	QualityBitmask *int         `json:"quality_bitmask" yaml:"quality_bitmask"`
	JournalPath    *string      `json:"journal_path" yaml:"journal_path"`
	Archive        *fileArchive `json:"archive" yaml:"archive"`
	Log            *fileLog     `json:"log" yaml:"log"`
	Plot           *filePlot    `json:"plot" yaml:"plot"`
}

type fileArchive struct {
	Bucket        *string         `json:"bucket" yaml:"bucket"`
	Region        *string         `json:"region" yaml:"region"`
	Endpoint      *string         `json:"endpoint" yaml:"endpoint"`
	AccessKey     *string         `json:"access_key" yaml:"access_key"`
	SecretKey     *string         `json:"secret_key" yaml:"secret_key"`
	PublicBaseURL *string         `json:"public_base_url" yaml:"public_base_url"`
	FetchTimeout  *timex.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`
}

type fileLog struct {
	Format *string `json:"format" yaml:"format"`
	Level  *string `json:"level" yaml:"level"`
}

type filePlot struct {
	WidthIn  *float64 `json:"width_in" yaml:"width_in"`
	HeightIn *float64 `json:"height_in" yaml:"height_in"`
}

// ApplyFile overlays cfg with values read from path. An empty path is a no-op.
func ApplyFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.DownloadDir, fc.DownloadDir)
	if fc.Sectors != nil {
		cfg.Sectors = fc.Sectors
	}
	setString(&cfg.Layout, fc.Layout)
	setString(&cfg.LayoutMarker, fc.LayoutMarker)
	if fc.QualityBitmask != nil {
		cfg.QualityBitmask = *fc.QualityBitmask
	}
	setString(&cfg.JournalPath, fc.JournalPath)

	if a := fc.Archive; a != nil {
		setString(&cfg.Archive.Bucket, a.Bucket)
		setString(&cfg.Archive.Region, a.Region)
		setString(&cfg.Archive.Endpoint, a.Endpoint)
		setString(&cfg.Archive.AccessKey, a.AccessKey)
		setString(&cfg.Archive.SecretKey, a.SecretKey)
		setString(&cfg.Archive.PublicBaseURL, a.PublicBaseURL)
		if a.FetchTimeout != nil {
			cfg.Archive.FetchTimeout = a.FetchTimeout.Duration
		}
	}

	if l := fc.Log; l != nil {
		setString(&cfg.Log.Format, l.Format)
		setString(&cfg.Log.Level, l.Level)
	}

	if p := fc.Plot; p != nil {
		if p.WidthIn != nil {
			cfg.Plot.WidthIn = *p.WidthIn
		}
		if p.HeightIn != nil {
			cfg.Plot.HeightIn = *p.HeightIn
		}
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
