package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/adaptive"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/engine"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/scoring"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run an adaptive one-question-at-a-time session",
	Long: `Serve questions one at a time and adapt each skill's difficulty to the
answers. Answers are read from stdin, one choice number per line; an empty
line skips the question. Input may be piped for scripted runs.`,
	RunE: runLive,
}

func init() {
	liveCmd.Flags().String("user", "", "User id (required)")
	liveCmd.Flags().StringSlice("skills", nil, "Skills to rotate through (default: every bank domain)")
	liveCmd.Flags().Int("count", 10, "Number of questions")
	liveCmd.Flags().Duration("time-limit", 0, "Overall time limit (0 = none)")
	liveCmd.Flags().Duration("cooldown", 0, "Retake cooldown to enforce")
	liveCmd.Flags().String("test-type", scoring.TestTypeGeneral, "Banding table for the final report")
	_ = liveCmd.MarkFlagRequired("user")
}

func runLive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID, _ := cmd.Flags().GetString("user")
	skills, _ := cmd.Flags().GetStringSlice("skills")
	count, _ := cmd.Flags().GetInt("count")
	limit, _ := cmd.Flags().GetDuration("time-limit")
	cooldown, _ := cmd.Flags().GetDuration("cooldown")
	testType, _ := cmd.Flags().GetString("test-type")

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.release()

	if len(skills) == 0 {
		skills = rt.engine.Bank().Domains()
	}
	s, err := rt.engine.StartLive(ctx, userID, cooldown)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	started := time.Now()

	for i := 0; i < count; i++ {
		skill := skills[i%len(skills)]
		q, err := s.Next(ctx, skill)
		if errors.Is(err, adaptive.ErrSkillExhausted) {
			fmt.Printf("(no unused %s questions left)\n\n", skill)
			continue
		}
		if err != nil {
			return err
		}

		fmt.Printf("── Question %d/%d · %s · %s ──\n", q.DisplayID, count, q.Domain, q.Difficulty)
		fmt.Println(q.Prompt)
		for j, c := range q.Choices {
			fmt.Printf("  %d) %s\n", j+1, c)
		}

		asked := time.Now()
		fmt.Print("\nYour answer: ")
		if !scanner.Scan() {
			fmt.Println("\n(input closed)")
			break
		}
		elapsed := time.Since(asked)

		if limit > 0 && time.Since(started) > limit {
			s.Expire(elapsed)
			fmt.Println("\033[33m⏱ Time is up.\033[0m")
			break
		}

		selected := parseChoice(scanner.Text(), len(q.Choices))
		res, err := s.Answer(selected, elapsed)
		if err != nil {
			return err
		}
		switch {
		case selected == scoring.Unanswered:
			fmt.Println("(skipped)")
		case res.Correct:
			fmt.Println("\033[32m✓ Correct!\033[0m")
		default:
			fmt.Printf("\033[31m✗ Wrong.\033[0m Answer: %d\n", res.CorrectIndex+1)
		}
		if res.Transition.Changed() {
			fmt.Printf("%s level %d → %d\n", skill, res.Transition.From, res.Transition.To)
		}
		fmt.Println()
	}

	report, err := rt.engine.FinishLive(ctx, userID, s, testType, engine.SubmitOptions{WithPercentile: true})
	if err != nil {
		return err
	}
	fmt.Println("── Summary ──")
	printReport(report)
	return nil
}

// parseChoice turns a 1-based choice number into a 0-based index. Anything
// else is an unanswered item.
func parseChoice(text string, n int) int {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || v < 1 || v > n {
		return scoring.Unanswered
	}
	return v - 1
}
