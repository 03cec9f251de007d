package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/config"
	"github.com/felixgeelhaar/campus/internal/ux"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or edit campus configuration",
	Long: `Manage the campus configuration stored at ~/.campus/config.yaml

Configuration includes:
  • Backend URL and request timeout
  • Token store backend (file or memory)
  • Background refresh interval and lookahead
  • Landing view per role and route allow-lists
  • Logging settings

CAMPUS_* environment variables, a .env file in the working directory and
command-line flags override the file; 'config view' shows the result.

Examples:
  # View the effective configuration
  campus config view

  # Get a specific value
  campus config get api.base_url

  # Set a specific value
  campus config set api.timeout 10s
  campus config set routes.landing.manager /colleagues
  campus config set routes.access./issues manager

  # Show configuration file path
  campus config path
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	RunE:  runConfigView,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration in $EDITOR",
	Long:  `Open the configuration file in your default editor (from the $EDITOR environment variable).`,
	RunE:  runConfigEdit,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  `Retrieve the effective value of a configuration key using dot notation (e.g., api.base_url).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a specific configuration value",
	Long:  `Set a configuration key using dot notation (e.g., refresh.interval 2m) and save the file.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	cfg, err := cmdCtx.LoadConfig()
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}

	format := cmdCtx.Format
	if format == ux.FormatText {
		format = ux.FormatYAML
	}
	formatter, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	return formatter.Format(cfg)
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	configPath, err := cmdCtx.ConfigPath()
	if err != nil {
		return ux.FormatError(err, "getting config path")
	}

	// Ensure config exists
	if _, err := config.LoadFrom(configPath); err != nil {
		return ux.FormatError(err, "loading configuration")
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.CommandContext(cmd.Context(), editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	// Validate the edited config
	if _, err := config.LoadFrom(configPath); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: configuration may contain errors: %v\n", err)
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration updated successfully")
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	cfg, err := cmdCtx.LoadConfig()
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}

	value, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	configPath, err := cmdCtx.ConfigPath()
	if err != nil {
		return ux.FormatError(err, "getting config path")
	}

	// Overrides from the environment and flags are not persisted.
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Save(configPath); err != nil {
		return ux.FormatError(err, "saving configuration")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %s\n", key, value)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	configPath, err := cmdCtx.ConfigPath()
	if err != nil {
		return ux.FormatError(err, "getting config path")
	}
	fmt.Fprintln(cmd.OutOrStdout(), configPath)
	return nil
}
