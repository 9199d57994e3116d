package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/compose"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose a test for a user",
	Long: `Compose a randomized test for a user from a test specification.

The client view (no answers) is printed to stdout. The full test, including
the answer key, is written to --out so that "grade" can score it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		specPath, _ := cmd.Flags().GetString("spec")
		userID, _ := cmd.Flags().GetString("user")
		out, _ := cmd.Flags().GetString("out")

		spec, err := compose.LoadSpecFile(specPath)
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.release()

		test, err := rt.engine.Compose(cmd.Context(), userID, spec)
		if err != nil {
			if compose.IsRetakeNotAllowed(err) {
				fmt.Fprintln(os.Stderr, "Retake not allowed yet:", err)
			}
			return err
		}

		for _, s := range test.Shortfalls {
			fmt.Fprintf(os.Stderr, "note: %s/%s short by %d, backfilled\n", s.Domain, s.Band, s.Missing)
		}
		if test.HistoryReset {
			fmt.Fprintln(os.Stderr, "note: unused questions ran out, history was reset")
		}

		if err := writeJSONFile(out, test); err != nil {
			return fmt.Errorf("write test: %w", err)
		}
		return printJSON(test.Public())
	},
}

func init() {
	composeCmd.Flags().String("spec", "", "Test specification file (.json or .yaml) (required)")
	composeCmd.Flags().String("user", "", "User id (required)")
	composeCmd.Flags().String("out", "test.json", "Where to write the full test with its answer key")
	_ = composeCmd.MarkFlagRequired("spec")
	_ = composeCmd.MarkFlagRequired("user")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
