package ctl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatewatch-systems/gatewatch/internal/ctl/output"
	"github.com/gatewatch-systems/gatewatch/internal/models"
)

var bansCmd = &cobra.Command{
	Use:   "bans",
	Short: "IP ban management",
	Long:  "List, apply and lift IP bans on the engine",
}

var bansListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List active bans",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := apiClient(cmd).ListBans()
		if err != nil {
			return fmt.Errorf("failed to list bans: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(records)
		}

		if len(records) == 0 {
			output.Info("No active bans")
			return nil
		}

		table := output.NewTable([]string{"IP", "Reason", "Source", "Expires", "Banned At"})
		for _, r := range records {
			expires := "never"
			if !r.Permanent && r.ExpiresAt != nil {
				expires = r.ExpiresAt.Format("2006-01-02 15:04")
			}
			table.AddRow([]string{
				r.IPAddress,
				r.Reason,
				string(r.Source),
				expires,
				r.BannedAt.Format("2006-01-02 15:04"),
			})
		}
		table.Render()
		return nil
	},
}

var bansAddCmd = &cobra.Command{
	Use:   "add [ip]",
	Short: "Ban an IP address",
	Long:  "Apply a manual ban. Temporary by default; use --permanent or --ttl to adjust",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		permanent, _ := cmd.Flags().GetBool("permanent")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		req := &models.BanRequest{
			IPAddress: args[0],
			Reason:    reason,
			Permanent: permanent,
		}
		if !permanent && ttl > 0 {
			req.TTLSeconds = int64(ttl / time.Second)
		}

		record, err := apiClient(cmd).Ban(req)
		if err != nil {
			return fmt.Errorf("failed to ban %s: %w", args[0], err)
		}

		if record.Permanent {
			output.Success("Permanently banned %s", record.IPAddress)
		} else {
			output.Success("Banned %s until %s", record.IPAddress,
				record.ExpiresAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var bansRemoveCmd = &cobra.Command{
	Use:     "remove [ip-or-id]",
	Aliases: []string{"rm"},
	Short:   "Lift a ban",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient(cmd).Unban(args[0]); err != nil {
			return fmt.Errorf("failed to unban %s: %w", args[0], err)
		}
		output.Success("Unbanned %s", args[0])
		return nil
	},
}

var bansHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent ban transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := apiClient(cmd).History(limit)
		if err != nil {
			return fmt.Errorf("failed to fetch ban history: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(entries)
		}

		if len(entries) == 0 {
			output.Info("No ban history")
			return nil
		}

		table := output.NewTable([]string{"At", "Action", "IP", "Reason"})
		for _, e := range entries {
			table.AddRow([]string{
				e.At.Format("2006-01-02 15:04:05"),
				string(e.Action),
				e.IPAddress,
				e.Reason,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bansCmd)
	bansCmd.AddCommand(bansListCmd)
	bansCmd.AddCommand(bansAddCmd)
	bansCmd.AddCommand(bansRemoveCmd)
	bansCmd.AddCommand(bansHistoryCmd)

	bansAddCmd.Flags().StringP("reason", "r", "manual ban", "reason recorded on the ban")
	bansAddCmd.Flags().Bool("permanent", false, "ban permanently")
	bansAddCmd.Flags().Duration("ttl", 0, "ban duration (default: engine default TTL)")

	bansHistoryCmd.Flags().IntP("limit", "l", 50, "max entries to show")
}
