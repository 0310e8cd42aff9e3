package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/tessplot/internal/flagx"
)

// NewRootCommand creates the tessplot root command bound to app.
func NewRootCommand(app *App) *cobra.Command {
	cfg := app.cfg

	cmd := &cobra.Command{
		Use:   "tessplot",
		Short: "Plot normalized TESS light curves",
		Long: `tessplot finds the target pixel files of a TIC target on disk, downloads
missing sectors from the public archive, builds a normalized light curve
and overlays it on a figure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&app.configPath, "config", "c", "", "config file (JSON or YAML)")
	pf.StringVar(&cfg.DownloadDir, "download-dir", cfg.DownloadDir, "directory searched for and receiving pixel files")
	pf.Var(flagx.NewSectorList(&cfg.Sectors), "sectors", "sectors to process in order, e.g. 1-7 or 1,3,9")
	pf.StringVar(&cfg.Layout, "layout", cfg.Layout, "download directory layout (auto|sector|flat)")
	pf.StringVar(&cfg.LayoutMarker, "layout-marker", cfg.LayoutMarker, "path substring selecting the per-sector layout in auto mode")
	pf.IntVar(&cfg.QualityBitmask, "quality-bitmask", cfg.QualityBitmask, "drop cadences with any of these quality flags (0 keeps all)")
	pf.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "sqlite journal of runs and downloads (empty disables)")
	pf.StringVar(&cfg.Archive.Endpoint, "endpoint", cfg.Archive.Endpoint, "S3-compatible endpoint of an archive mirror")
	pf.DurationVar(&cfg.Archive.FetchTimeout, "fetch-timeout", cfg.Archive.FetchTimeout, "per-request archive timeout (0 waits indefinitely)")
	pf.BoolVar(&app.offline, "offline", false, "never contact the remote archive")
	pf.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log format (auto|text|json)")
	pf.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug|info|warn|error)")

	cmd.AddCommand(NewPlotCommand(app))
	cmd.AddCommand(NewInspectCommand(app))
	cmd.AddCommand(NewHistoryCommand(app))
	cmd.AddCommand(NewConfigCommand(app))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := NewApp()
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := app.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
