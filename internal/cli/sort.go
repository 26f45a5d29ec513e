package cli

import (
	"github.com/spf13/cobra"
)

var sortNoHeader bool

var sortCmd = &cobra.Command{
	Use:   "sort <file>",
	Short: "Sort a yield CSV file chronologically in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sort(args[0], !sortNoHeader)
	},
}

func init() {
	sortCmd.Flags().BoolVar(&sortNoHeader, "no-header", false, "Treat the first line as data")
}
