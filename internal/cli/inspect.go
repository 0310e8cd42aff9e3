package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/tessplot/internal/flagx"
	"github.com/dmitrijs2005/tessplot/internal/lightcurve"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize a saved light curve series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := lightcurve.ReadFITS(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Target:  %d\n", lc.Target)
			if lc.Object != "" {
				fmt.Fprintf(out, "Object:  %s\n", lc.Object)
			}
			fmt.Fprintf(out, "Sectors: %s\n", flagx.FormatSectors(lc.Sectors))
			fmt.Fprintf(out, "Samples: %d\n", lc.Len())
			if lo, hi, ok := lc.TimeSpan(); ok {
				fmt.Fprintf(out, "Time:    %.5f .. %.5f (%.2f days)\n", lo, hi, hi-lo)
			}
			if m := lc.Median(); !math.IsNaN(m) {
				fmt.Fprintf(out, "Median:  %.6f\n", m)
			}
			return nil
		},
	}
}
