package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/tessplot/internal/flagx"
)

var errJournalDisabled = errors.New("journal is disabled: set journal_path or --journal")

// NewHistoryCommand creates the history command.
func NewHistoryCommand(app *App) *cobra.Command {
	var target int64
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded plot runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			j, err := app.openJournal(ctx)
			if err != nil {
				return err
			}
			if j == nil {
				return errJournalDisabled
			}

			runs, err := j.ListRuns(ctx, target, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}

			fmt.Fprintf(out, "%-20s  %-12s  %-16s  %-16s  %8s  %s\n", "CREATED", "TARGET", "REQUESTED", "FOUND", "SAMPLES", "RUN")
			for _, r := range runs {
				fmt.Fprintf(out, "%-20s  %-12d  %-16s  %-16s  %8d  %s\n",
					r.CreatedAt.Local().Format(time.DateTime), r.Target,
					flagx.FormatSectors(r.Requested), flagx.FormatSectors(r.Found), r.Samples, r.ID)

				downloads, err := j.Downloads(ctx, r.ID)
				if err != nil {
					return err
				}
				for _, d := range downloads {
					fmt.Fprintf(out, "    downloaded sector %d: %s (%d bytes)\n", d.Sector, d.Path, d.Bytes)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&target, "target", 0, "only runs for this target")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 lists all)")

	return cmd
}
