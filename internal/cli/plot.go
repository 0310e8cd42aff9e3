package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/tessplot/internal/figure"
	"github.com/dmitrijs2005/tessplot/internal/flagx"
	"github.com/dmitrijs2005/tessplot/internal/services"
)

const DefaultPlotFile = "lightcurves.png"

type plotOptions struct {
	offsetStep float64
	offset     float64
	saveFITS   bool
	out        string
}

// NewPlotCommand creates the plot command.
func NewPlotCommand(app *App) *cobra.Command {
	opts := &plotOptions{}

	cmd := &cobra.Command{
		Use:   "plot TIC [TIC...]",
		Short: "Overlay the light curves of one or more targets",
		Long: `Plot resolves every configured sector of each target, merges the
normalized light curves and draws them onto one figure. Target i is shifted
down by i * --offset-step so overlapping curves stay readable. The figure is
rendered once, after the last target.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlot(cmd, app, opts, args)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.offsetStep, "offset-step", 0.05, "vertical offset between consecutive targets")
	f.Float64Var(&opts.offset, "offset", 0, "explicit offset (single target only)")
	f.BoolVar(&opts.saveFITS, "save-fits", false, "write <target>Norm.fits to the working directory")
	f.StringVarP(&opts.out, "out", "o", DefaultPlotFile, "figure file; the extension selects the format (empty skips rendering)")
	f.Float64Var(&app.cfg.Plot.WidthIn, "width", app.cfg.Plot.WidthIn, "figure width in inches")
	f.Float64Var(&app.cfg.Plot.HeightIn, "height", app.cfg.Plot.HeightIn, "figure height in inches")

	return cmd
}

func runPlot(cmd *cobra.Command, app *App, opts *plotOptions, args []string) error {
	ctx := cmd.Context()

	targets := make([]int64, 0, len(args))
	for _, a := range args {
		tic, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", a, err)
		}
		targets = append(targets, tic)
	}

	explicitOffset := cmd.Flags().Changed("offset")
	if explicitOffset && len(targets) > 1 {
		return fmt.Errorf("--offset applies to a single target; use --offset-step for several")
	}

	svc, err := app.lightcurveService(ctx)
	if err != nil {
		return err
	}

	fig := figure.New()
	fig.SetSize(app.cfg.Plot.WidthIn, app.cfg.Plot.HeightIn)

	out := cmd.OutOrStdout()
	for i, tic := range targets {
		offset := float64(i) * opts.offsetStep
		if explicitOffset {
			offset = opts.offset
		}
		last := i == len(targets)-1

		res, err := svc.Plot(ctx, fig, services.Request{
			Target:      tic,
			DownloadDir: app.cfg.DownloadDir,
			Sectors:     app.cfg.Sectors,
			Offset:      offset,
			SaveSeries:  opts.saveFITS,
			SavePlot:    last,
			PlotFile:    opts.out,
		})
		if err != nil {
			return fmt.Errorf("target %d: %w", tic, err)
		}

		if res.LightCurve == nil {
			fmt.Fprintf(out, "%d: no light curve found\n", tic)
		} else {
			fmt.Fprintf(out, "%d: %d samples from sectors %s\n",
				tic, res.LightCurve.Len(), flagx.FormatSectors(res.Found()))
		}
		if res.SeriesFile != "" {
			fmt.Fprintf(out, "%d: series written to %s\n", tic, res.SeriesFile)
		}
		if res.PlotFile != "" {
			fmt.Fprintf(out, "figure written to %s\n", res.PlotFile)
		}
	}
	return nil
}
