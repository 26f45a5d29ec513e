package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateShort string
	simulateLong  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Evaluate the inversion alert against the given rates and send it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateShort == "" || simulateLong == "" {
			return errors.New("--short and --long must be provided")
		}

		short, err := decimal.NewFromString(simulateShort)
		if err != nil {
			return errors.New("--short must be a decimal rate")
		}
		long, err := decimal.NewFromString(simulateLong)
		if err != nil {
			return errors.New("--long must be a decimal rate")
		}
		return getApp().SimulateAlert(cmd.Context(), short, long)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateShort, "short", "", "Short maturity rate in percent, e.g. 4.95")
	simulateCmd.Flags().StringVar(&simulateLong, "long", "", "Long maturity rate in percent, e.g. 4.20")
}
