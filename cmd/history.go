package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and reset user attempt history",
}

var historyStatusCmd = &cobra.Command{
	Use:   "status <user>",
	Short: "Show a user's cooldown status and question usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cooldown, _ := cmd.Flags().GetDuration("cooldown")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.release()

		st, err := rt.engine.Status(cmd.Context(), args[0], cooldown)
		if err != nil {
			return fmt.Errorf("get status: %w", err)
		}

		fmt.Printf("User:       %s\n", st.UserID)
		fmt.Printf("Status:     %s\n", st.Status)
		if st.Remaining > 0 {
			fmt.Printf("Remaining:  %s\n", st.Remaining.Round(time.Second))
		}
		fmt.Printf("Used:       %d\n", st.UsedCount)
		fmt.Printf("Unused:     %d\n", st.Unused)
		if st.LastAttempt != nil {
			fmt.Printf("Last:       %s\n", st.LastAttempt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var historyResetCmd = &cobra.Command{
	Use:   "reset <user>",
	Short: "Clear a user's used questions and cooldown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		note, _ := cmd.Flags().GetString("note")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.release()

		if err := rt.engine.ResetHistory(cmd.Context(), args[0], note); err != nil {
			return fmt.Errorf("reset history: %w", err)
		}
		fmt.Printf("History of %s reset.\n", args[0])
		return nil
	},
}

var historyAttemptsCmd = &cobra.Command{
	Use:   "attempts [user]",
	Short: "List graded attempts and resets (all users when none given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var userID string
		if len(args) == 1 {
			userID = args[0]
		}

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.release()

		events, err := rt.engine.Attempts(cmd.Context(), userID, store.QueryOpts{Limit: limit})
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No attempts found.")
			return nil
		}

		// Header.
		fmt.Printf("%-5s  %-19s  %-14s  %-16s  %-8s  %-9s  %s\n",
			"Seq", "Timestamp", "Kind", "User", "Mode", "Score", "Level")
		fmt.Println(strings.Repeat("─", 100))

		for _, e := range events {
			score := ""
			if e.Kind == store.EventAttemptGraded {
				score = fmt.Sprintf("%d/%d", e.RawScore, e.Total)
			}
			level := e.PerformanceLevel
			if e.Kind == store.EventHistoryReset {
				level = e.Note
			}
			fmt.Printf("%-5d  %-19s  %-14s  %-16s  %-8s  %-9s  %s\n",
				e.Sequence,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Kind,
				truncate(e.UserID, 16),
				e.Mode,
				score,
				level,
			)
		}
		return nil
	},
}

func init() {
	historyStatusCmd.Flags().Duration("cooldown", 0, "Cooldown to check against")
	historyResetCmd.Flags().String("note", "manual reset", "Reason recorded with the reset")
	historyAttemptsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")

	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyResetCmd)
	historyCmd.AddCommand(historyAttemptsCmd)
}
