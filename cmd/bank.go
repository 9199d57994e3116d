package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/bank"
)

var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Inspect question banks",
}

var bankValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Load a question bank and report rejected records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		strict, _ := cmd.Flags().GetBool("strict")

		b, report, err := bank.LoadFile(args[0], bank.LoadOptions{Logger: logger})
		if report != nil {
			printLoadReport(report)
		}
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Printf("%-16s  %6s  %6s  %6s  %6s\n", "Domain", "Easy", "Medium", "Hard", "Total")
		fmt.Println(strings.Repeat("─", 50))
		stats := b.Stats()
		for _, domain := range b.Domains() {
			counts := stats[domain]
			total := 0
			for _, n := range counts {
				total += n
			}
			fmt.Printf("%-16s  %6d  %6d  %6d  %6d\n",
				truncate(domain, 16), counts[bank.Easy], counts[bank.Medium], counts[bank.Hard], total)
		}
		fmt.Println(strings.Repeat("─", 50))
		fmt.Printf("%-16s  %30d\n", "TOTAL", b.Len())

		if strict && len(report.Rejected) > 0 {
			return errors.New("bank has rejected records")
		}
		return nil
	},
}

func printLoadReport(r *bank.LoadReport) {
	fmt.Printf("Source:    %s\n", r.Source)
	fmt.Printf("Records:   %d\n", r.Total)
	fmt.Printf("Accepted:  %d\n", r.Accepted)
	fmt.Printf("Rejected:  %d\n", len(r.Rejected))
	for _, rej := range r.Rejected {
		fmt.Printf("  - %v\n", rej)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func init() {
	bankValidateCmd.Flags().Bool("strict", false, "Fail when any record is rejected")

	bankCmd.AddCommand(bankValidateCmd)
}
