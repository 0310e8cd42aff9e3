package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/tessplot/internal/config"
)

// effectiveConfig mirrors the config file keys.
type effectiveConfig struct {
	DownloadDir    string `yaml:"download_dir"`
	Sectors        []int  `yaml:"sectors,flow"`
	Layout         string `yaml:"layout"`
	LayoutMarker   string `yaml:"layout_marker"`
	QualityBitmask int    `yaml:"quality_bitmask"`
	JournalPath    string `yaml:"journal_path"`
	Archive        struct {
		Bucket        string `yaml:"bucket"`
		Region        string `yaml:"region"`
		Endpoint      string `yaml:"endpoint,omitempty"`
		AccessKey     string `yaml:"access_key,omitempty"`
		SecretKey     string `yaml:"secret_key,omitempty"`
		PublicBaseURL string `yaml:"public_base_url"`
		FetchTimeout  string `yaml:"fetch_timeout"`
	} `yaml:"archive"`
	Log struct {
		Format string `yaml:"format"`
		Level  string `yaml:"level"`
	} `yaml:"log"`
	Plot struct {
		WidthIn  float64 `yaml:"width_in"`
		HeightIn float64 `yaml:"height_in"`
	} `yaml:"plot"`
}

func newEffectiveConfig(c *config.Config) effectiveConfig {
	var e effectiveConfig
	e.DownloadDir = c.DownloadDir
	e.Sectors = c.Sectors
	e.Layout = c.Layout
	e.LayoutMarker = c.LayoutMarker
	e.QualityBitmask = c.QualityBitmask
	e.JournalPath = c.JournalPath

	e.Archive.Bucket = c.Archive.Bucket
	e.Archive.Region = c.Archive.Region
	e.Archive.Endpoint = c.Archive.Endpoint
	e.Archive.AccessKey = c.Archive.AccessKey
	if c.Archive.SecretKey != "" {
		e.Archive.SecretKey = "********"
	}
	e.Archive.PublicBaseURL = c.Archive.PublicBaseURL
	e.Archive.FetchTimeout = c.Archive.FetchTimeout.String()

	e.Log.Format = c.Log.Format
	e.Log.Level = c.Log.Level
	e.Plot.WidthIn = c.Plot.WidthIn
	e.Plot.HeightIn = c.Plot.HeightIn
	return e
}

// NewConfigCommand creates the config command, which prints the settings
// after defaults, the config file and flags have been merged.
func NewConfigCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(newEffectiveConfig(app.cfg)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
