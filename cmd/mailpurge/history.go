package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailpurge/internal/db"
	"github.com/daviddao/mailpurge/internal/display"
	"github.com/daviddao/mailpurge/internal/types"
)

var (
	historySender string
	historyLimit  int
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past deletion runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if _, err := os.Stat(cfg.DBPath); err != nil {
			if historyJSON {
				return json.NewEncoder(out).Encode(types.HistorySummary{Runs: []*types.Run{}})
			}
			display.Info(out, "No runs recorded yet.")
			return nil
		}

		store, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(historySender, historyLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		summary := types.HistorySummary{Runs: runs, TotalDeleted: store.TotalDeleted(historySender)}
		if summary.Runs == nil {
			summary.Runs = []*types.Run{}
		}
		if historySender == "" {
			senders, err := store.SenderTotals(10)
			if err != nil {
				return fmt.Errorf("sender totals: %w", err)
			}
			summary.Senders = senders
		}

		if historyJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		display.Header(out, "Deletion History")
		scope := "in total"
		if historySender != "" {
			scope = "from " + historySender
		}
		display.Note(out, "%d runs, %d emails deleted %s (%s)", store.RunCount(historySender), summary.TotalDeleted, scope, store.Path())
		fmt.Fprintln(out)

		if len(runs) == 0 {
			display.Info(out, "  No runs recorded yet.")
			return nil
		}
		for _, r := range runs {
			status := display.Success.Render("✓")
			if r.Shortfall() > 0 {
				status = display.Warn.Render("!")
			}
			limit := ""
			if r.Limit > 0 {
				limit = display.Dim.Render(fmt.Sprintf(" (limit %d)", r.Limit))
			}
			fmt.Fprintf(out, "  %s %-32s %6d/%-6d %s  %s%s\n",
				status,
				display.Truncate(r.Sender, 32),
				r.Deleted, r.Found,
				display.Seconds(r.Elapsed),
				display.Muted.Render(display.TimeAgo(r.StartedAt)),
				limit)
		}

		if len(summary.Senders) > 0 {
			fmt.Fprintln(out)
			display.Header(out, "Top Senders")
			fmt.Fprintln(out, "  "+display.Rule(48))
			for _, s := range summary.Senders {
				fmt.Fprintf(out, "  %-32s %6d  %s\n",
					display.Truncate(s.Sender, 32), s.Deleted,
					display.Dim.Render(fmt.Sprintf("%d runs, last %s", s.Runs, display.TimeAgo(s.LastRun))))
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySender, "sender", "", "Only show runs for this sender")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output in JSON format")

	rootCmd.AddCommand(historyCmd)
}
