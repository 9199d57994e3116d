package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/compose"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/engine"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/scoring"
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade answers to a composed test",
	Long: `Grade a test written by "compose" against a JSON list of answers:

  [{"display_id": 1, "selected": 2, "elapsed_seconds": 12.5}, ...]

Grading marks the test's questions as used and starts the user's cooldown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		testPath, _ := cmd.Flags().GetString("test")
		answersPath, _ := cmd.Flags().GetString("answers")
		withPercentile, _ := cmd.Flags().GetBool("percentile")
		asJSON, _ := cmd.Flags().GetBool("json")

		var test compose.Test
		if err := readJSONFile(testPath, &test); err != nil {
			return fmt.Errorf("read test: %w", err)
		}
		var answers []compose.Answer
		if err := readJSONFile(answersPath, &answers); err != nil {
			return fmt.Errorf("read answers: %w", err)
		}

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.release()

		report, err := rt.engine.SubmitTest(cmd.Context(), &test, answers,
			engine.SubmitOptions{WithPercentile: withPercentile})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(report)
		}
		printReport(report)
		return nil
	},
}

func printReport(r *scoring.Report) {
	fmt.Printf("Score:       %d/%d (%d%%)\n", r.RawScore, r.Total, r.Percentage)
	fmt.Printf("Level:       %s\n", r.PerformanceLevel)
	fmt.Printf("Unanswered:  %d\n", r.Unanswered)
	switch {
	case r.Percentile != nil:
		fmt.Printf("Percentile:  %.1f\n", *r.Percentile)
	case r.PercentileNote != "":
		fmt.Printf("Percentile:  %s\n", r.PercentileNote)
	}

	domains := make([]string, 0, len(r.PerDomain))
	for d := range r.PerDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	fmt.Println()
	fmt.Printf("%-16s  %7s  %5s  %8s  %s\n", "Domain", "Correct", "Pct", "Avg s", "Mastery")
	fmt.Println(strings.Repeat("─", 60))
	for _, d := range domains {
		ds := r.PerDomain[d]
		fmt.Printf("%-16s  %3d/%-3d  %4d%%  %8.1f  %s\n",
			truncate(d, 16), ds.Correct, ds.Total, ds.Percentage, ds.AvgSeconds, r.Mastery[d])
	}

	if len(r.Rejected) > 0 {
		fmt.Printf("\nIgnored answers for unknown items: %s\n", strings.Join(r.Rejected, ", "))
	}
}

func init() {
	gradeCmd.Flags().String("test", "test.json", "Test file written by compose")
	gradeCmd.Flags().String("answers", "", "Answers file (required)")
	gradeCmd.Flags().Bool("percentile", false, "Include a percentile against earlier scores")
	gradeCmd.Flags().Bool("json", false, "Print the report as JSON")
	_ = gradeCmd.MarkFlagRequired("answers")
}
