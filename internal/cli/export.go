package cli

import (
	"github.com/spf13/cobra"

	"yieldscraper/internal/app"
)

var (
	exportFrom       string
	exportTo         string
	exportCSVPath    string
	exportXLSXPath   string
	exportPNGPath    string
	exportMaturities []int
	exportMaxPoints  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a date window as CSV, XLSX and/or a PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			From:       exportFrom,
			To:         exportTo,
			CSVPath:    exportCSVPath,
			XLSXPath:   exportXLSXPath,
			PNGPath:    exportPNGPath,
			Maturities: exportMaturities,
			MaxPoints:  exportMaxPoints,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First date (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last date (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportXLSXPath, "xlsx", "", "Path to write an XLSX workbook")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().IntSliceVar(&exportMaturities, "maturities", nil, "Maturities in months to chart (defaults to the alert pair)")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to chart (defaults to config)")
}
