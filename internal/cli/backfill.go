package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"yieldscraper/internal/app"
)

var (
	backfillFrom    int
	backfillTo      int
	backfillDryRun  bool
	backfillWorkers int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Load a range of years into storage without touching the output file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillFrom == 0 {
			return fmt.Errorf("--from-year must be provided")
		}

		to := backfillTo
		if to == 0 {
			to = time.Now().Year()
		}
		if backfillFrom > to {
			return fmt.Errorf("--from-year must not be after --to-year")
		}

		opts := app.BackfillOptions{
			FromYear: backfillFrom,
			ToYear:   to,
			DryRun:   backfillDryRun,
			Workers:  backfillWorkers,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillFrom, "from-year", 0, "Oldest year to load (inclusive)")
	backfillCmd.Flags().IntVar(&backfillTo, "to-year", 0, "Newest year to load (inclusive, defaults to the current year)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Run without writing to storage")
	backfillCmd.Flags().IntVar(&backfillWorkers, "workers", 2, "Number of concurrent workers")
}
