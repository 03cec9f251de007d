package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/config"
	"github.com/felixgeelhaar/campus/internal/ux"
)

var rootCmd = &cobra.Command{
	Use:   "campus",
	Short: "Session and authorization client for the campus platform",
	Long: `campus signs staff of the English center in and out of the campus platform,
keeps their session fresh and decides which views each role may open.

Teachers, learning advisors and managers share one portal. The session is
stored under ~/.campus (override with CAMPUS_HOME) so every command, and the
interactive portal, sees the same sign-in.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Variables already in the environment win over .env entries.
		return config.LoadDotEnv()
	},
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, so an interrupt cancels
// in-flight requests. Returned errors carry recovery suggestions.
func ExecuteContext(ctx context.Context) error {
	return ux.EnhanceError(rootCmd.ExecuteContext(ctx))
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("home", "", "campus home directory (default $CAMPUS_HOME or ~/.campus)")
	flags.String("api-url", "", "backend base URL (overrides api.base_url)")
	flags.String("store", "", "token store backend: file or memory (overrides store.backend)")
	flags.String("log-level", "", "log level: debug, info, warn, error (overrides logging.level)")
	flags.StringP("output", "o", ux.FormatText, "output format: text, json, yaml")
	flags.Bool("no-input", false, "never prompt; fail when required flags are missing")
}
