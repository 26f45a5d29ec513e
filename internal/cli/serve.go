package cli

import (
	"github.com/spf13/cobra"

	"yieldscraper/internal/app"
)

var (
	serveListen string
	serveWatch  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dataset over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), app.ServeOptions{
			ListenAddr: serveListen,
			Watch:      serveWatch,
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (defaults to api.listen_addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Also run the scheduled refresh in this process")
}
