package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the token refresh HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(app.LoadConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return application.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
