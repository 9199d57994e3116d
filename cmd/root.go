package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "careerquest",
	Short:         "Adaptive assessment engine",
	Long:          "careerquest composes randomized assessments from a question bank, runs adaptive live sessions and grades attempts.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./careerquest.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides CAREERQUEST_DB env var)")
	rootCmd.PersistentFlags().String("bank", "", "Question bank file (overrides bank.path)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(bankCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then store.dsn, then CAREERQUEST_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, dsn string) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if dsn != "" {
		return dsn, store.EnsureDir(dsn)
	}
	return store.DefaultDBPath()
}

// newLogger writes text logs to stderr so stdout stays machine readable.
func newLogger(cmd *cobra.Command, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
