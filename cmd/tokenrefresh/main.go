package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/app"
)

var rootCmd = &cobra.Command{
	Use:   "tokenrefresh",
	Short: fmt.Sprintf("Data-plane token refresh service (version: %s)", app.BuildVersion),
	Long: `tokenrefresh issues and refreshes the access tokens consumers use to pull
data from a provider's data plane. Configuration is read from the environment;
see the README for the full list of variables.`,
	Version:       app.BuildVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("tokenrefresh: %v", err)
	}
}
