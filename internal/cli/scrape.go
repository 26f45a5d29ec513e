package cli

import (
	"github.com/spf13/cobra"

	"yieldscraper/internal/app"
)

var (
	scrapeFromYear int
	scrapeToYear   int
	scrapeWorkers  int
	scrapeOutput   string
	scrapePolicy   string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape every year into the output file and sort it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Scrape(cmd.Context(), app.ScrapeOptions{
			FromYear:   scrapeFromYear,
			ToYear:     scrapeToYear,
			Workers:    scrapeWorkers,
			OutputPath: scrapeOutput,
			Policy:     scrapePolicy,
		})
	},
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeFromYear, "from-year", 0, "Oldest year to scrape (defaults to source.earliest_year)")
	scrapeCmd.Flags().IntVar(&scrapeToYear, "to-year", 0, "Newest year to scrape (defaults to the current year)")
	scrapeCmd.Flags().IntVar(&scrapeWorkers, "workers", 0, "Years fetched concurrently (defaults to config)")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "Output CSV path (defaults to config)")
	scrapeCmd.Flags().StringVar(&scrapePolicy, "policy", "", "Per-year failure policy: skip or abort")
}
