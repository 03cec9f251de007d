package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/config"
	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/health"
	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/ux"
	"github.com/felixgeelhaar/campus/internal/version"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, backend and session health",
	Long: `Run diagnostics for the campus client:

  config       the configuration file loads and validates
  token-store  credentials can be persisted
  backend      the backend answers on /health
  contract     the backend's published contract matches the client
  session      the stored access token is present and unexpired

Checks run in parallel. Exits non-zero when any check is unhealthy; a
missing session only degrades the report.

Examples:
  campus doctor
  campus doctor -o json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().Duration("timeout", 5*time.Second, "timeout per check")
	rootCmd.AddCommand(doctorCmd)
}

// doctorReport is the printable result of all checks.
type doctorReport struct {
	Version string          `json:"version" yaml:"version"`
	Status  health.Status   `json:"status" yaml:"status"`
	Checks  []health.Report `json:"checks" yaml:"checks"`
}

var statusIcons = map[health.Status]string{
	health.StatusHealthy:   "✓",
	health.StatusDegraded:  "!",
	health.StatusUnhealthy: "✗",
}

// RenderText prints one line per check followed by the overall status.
func (r doctorReport) RenderText(w io.Writer) error {
	table := ux.NewTable("", "Check", "Status", "Message", "Latency")
	for _, c := range r.Checks {
		table.Append(statusIcons[c.Status], c.Name, c.Status.String(), c.Message,
			c.Latency.Round(time.Millisecond).String())
	}
	if err := table.RenderText(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\ncampus %s: %s\n", r.Version, r.Status)
	return err
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	manager := health.NewManager().WithTimeout(timeout)

	cfg, cfgErr := cmdCtx.LoadConfig()
	manager.AddChecker(configChecker(cmdCtx, cfgErr))

	if cfgErr == nil {
		a, err := newApp(cmd, "")
		if err != nil {
			return err
		}
		defer a.Close()

		storeDir := ""
		if cfg.Store.Backend != config.StoreMemory {
			storeDir = a.home
		}
		httpClient := platform.NewClient(cfg.API.BaseURL, platform.WithTimeout(cfg.API.Timeout)).HTTPClient

		manager.AddChecker(health.NewStoreChecker(a.store, storeDir))
		manager.AddChecker(health.NewBackendChecker(httpClient, cfg.API.BaseURL))
		manager.AddChecker(health.NewContractChecker(httpClient, cfg.API.BaseURL))
		manager.AddChecker(health.NewSessionChecker(a.store, a.validator))
	}

	reports := manager.Check(cmd.Context())
	report := doctorReport{
		Version: version.GetInfo().Short(),
		Status:  health.OverallStatus(reports),
		Checks:  reports,
	}

	formatter, err := cmdCtx.Formatter(cmd)
	if err != nil {
		return err
	}
	if err := formatter.Format(report); err != nil {
		return err
	}

	if report.Status == health.StatusUnhealthy {
		failed := 0
		for _, r := range reports {
			if r.Status == health.StatusUnhealthy {
				failed++
			}
		}
		return ux.NewErrorWithSuggestion(fmt.Errorf("%d health check(s) failed", failed),
			"Fix the unhealthy checks above, then run 'campus doctor' again")
	}
	return nil
}

// configChecker reports the outcome of loading the configuration, which
// happens before any other check can be built.
func configChecker(cmdCtx *CommandContext, loadErr error) health.Checker {
	return health.CheckFunc{
		CheckName: "config",
		Fn: func(context.Context) *health.Result {
			path, _ := cmdCtx.ConfigPath()
			if loadErr != nil {
				return health.Unhealthy(errors.MessageOf(loadErr)).WithDetail("path", path)
			}
			return health.Healthy("configuration is valid").WithDetail("path", path)
		},
	}
}
