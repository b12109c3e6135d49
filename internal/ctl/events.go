package ctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatewatch-systems/gatewatch/internal/ctl/output"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Browse the event log",
	Long:  "List events newest first, with optional substring search and type filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		eventType, _ := cmd.Flags().GetString("type")
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		result, err := apiClient(cmd).ListEvents(search, eventType, page, limit)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(result.Events)
		}

		if len(result.Events) == 0 {
			output.Info("No events found")
			return nil
		}

		table := output.NewTable([]string{"Time", "Type", "Sev", "Source", "Dest", "Signature", "Country"})
		for _, e := range result.Events {
			table.AddRow([]string{
				e.Timestamp.Format("2006-01-02 15:04:05"),
				string(e.EventType),
				fmt.Sprintf("%d", e.Severity),
				fmt.Sprintf("%s:%d", e.SrcIP, e.SrcPort),
				fmt.Sprintf("%s:%d", e.DestIP, e.DestPort),
				e.Signature,
				e.Country,
			})
		}
		table.Render()

		output.Info("\nShowing page %d of %d (%d total events)",
			result.Pagination.Page, result.Pagination.TotalPages, result.Pagination.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringP("search", "s", "", "substring match on src IP, dest IP or signature")
	eventsCmd.Flags().StringP("type", "t", "", "filter by event type (alert, ssh, http, dns, tls, flow)")
	eventsCmd.Flags().IntP("page", "p", 1, "page number")
	eventsCmd.Flags().IntP("limit", "l", 50, "results per page")
}
