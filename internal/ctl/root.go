// Package ctl implements the gatewatchctl command tree.
package ctl

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gatewatch-systems/gatewatch/internal/ctl/client"
)

var rootCmd = &cobra.Command{
	Use:   "gatewatchctl",
	Short: "Gatewatch engine CLI",
	Long: `gatewatchctl is the command-line interface for the gatewatch engine.

Inspect dashboard statistics, browse events, and manage IP bans from
your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("url", envOr("GATEWATCH_URL", "http://localhost:8090"), "engine base URL")
	rootCmd.PersistentFlags().String("token", os.Getenv("GATEWATCH_TOKEN"), "bearer token for the engine API")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func apiClient(cmd *cobra.Command) *client.Client {
	url, _ := cmd.Flags().GetString("url")
	token, _ := cmd.Flags().GetString("token")
	return client.New(url, token)
}
