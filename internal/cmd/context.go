package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/config"
	"github.com/felixgeelhaar/campus/internal/tui"
	"github.com/felixgeelhaar/campus/internal/ux"
)

// CommandContext holds the persistent flags of one invocation. Commands
// read it instead of package variables so tests can run commands back to
// back.
type CommandContext struct {
	Home     string
	APIURL   string
	Store    string
	LogLevel string
	Format   string
	NoInput  bool
}

// NewCommandContext extracts command context from cobra.Command flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	flags := cmd.Flags()

	home, err := flags.GetString("home")
	if err != nil {
		return nil, err
	}
	apiURL, err := flags.GetString("api-url")
	if err != nil {
		return nil, err
	}
	store, err := flags.GetString("store")
	if err != nil {
		return nil, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return nil, err
	}
	format, err := flags.GetString("output")
	if err != nil {
		return nil, err
	}
	noInput, err := flags.GetBool("no-input")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Home:     home,
		APIURL:   apiURL,
		Store:    store,
		LogLevel: logLevel,
		Format:   format,
		NoInput:  noInput,
	}, nil
}

// HomeDir resolves the campus home directory, --home first.
func (c *CommandContext) HomeDir() (string, error) {
	if c.Home != "" {
		return c.Home, nil
	}
	return config.Home()
}

// ConfigPath is the configuration file inside the home directory.
func (c *CommandContext) ConfigPath() (string, error) {
	home, err := c.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// LoadConfig reads the configuration file and applies environment
// variables, then flags.
func (c *CommandContext) LoadConfig() (*config.Config, error) {
	path, err := c.ConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if c.APIURL != "" {
		cfg.API.BaseURL = c.APIURL
	}
	if c.Store != "" {
		cfg.Store.Backend = c.Store
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	return cfg, cfg.Validate()
}

// Formatter writes command results to the command's output stream.
func (c *CommandContext) Formatter(cmd *cobra.Command) (ux.Formatter, error) {
	return ux.NewFormatter(c.Format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
}

// Structured reports whether the output is JSON or YAML.
func (c *CommandContext) Structured() bool {
	return c.Format == ux.FormatJSON || c.Format == ux.FormatYAML
}

// CanPrompt reports whether missing input may be asked for interactively.
func (c *CommandContext) CanPrompt() bool {
	return !c.NoInput && tui.ShouldPrompt()
}
