package ctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatewatch-systems/gatewatch/internal/ctl/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the dashboard overview",
	Long:  "Fetch the live stats snapshot: totals, unique IPs, bans and top countries",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := apiClient(cmd).Overview()
		if err != nil {
			return fmt.Errorf("failed to fetch overview: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(snap)
		}

		output.Info("Total events:  %d", snap.TotalEvents)
		output.Info("Unique IPs:    %d", snap.UniqueIPs)
		output.Info("Banned IPs:    %d", snap.BannedIPs)
		output.Info("Recent events: %d", snap.RecentEvents)
		output.Info("As of:         %s", snap.LastUpdated.Format("2006-01-02 15:04:05"))

		if len(snap.TopCountries) > 0 {
			fmt.Println()
			table := output.NewTable([]string{"Country", "Events"})
			for _, c := range snap.TopCountries {
				table.AddRow([]string{c.Country, fmt.Sprintf("%d", c.Count)})
			}
			table.Render()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
