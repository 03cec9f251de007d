package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/contract"
	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/ux"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Inspect the backend API contract",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var apiCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the client against the backend OpenAPI contract",
	Long: `Check every endpoint the client calls against the backend's OpenAPI contract:
the path and method must be documented, and the operation must require an
access token exactly when the client sends one.

By default the contract bundled with campus is used. With --remote the
document published by the configured backend at /openapi.yaml is fetched.

Exits with code 3 when the client and the contract disagree.

Examples:
  campus api check
  campus api check --remote --api-url https://api.campus.example
  campus api check --list -o json`,
	Args: cobra.NoArgs,
	RunE: runAPICheck,
}

func init() {
	apiCheckCmd.Flags().Bool("remote", false, "fetch the contract from the configured backend")
	apiCheckCmd.Flags().Bool("list", false, "list documented operations instead of checking")

	apiCmd.AddCommand(apiCheckCmd)
	rootCmd.AddCommand(apiCmd)
}

// checkReport is the printable outcome of a contract check.
type checkReport struct {
	Source    string             `json:"source" yaml:"source"`
	Version   string             `json:"version" yaml:"version"`
	Endpoints int                `json:"endpoints" yaml:"endpoints"`
	Findings  []contract.Finding `json:"findings" yaml:"findings"`
}

// RenderText prints the findings, or a one-line summary when there are none.
func (r checkReport) RenderText(w io.Writer) error {
	if len(r.Findings) == 0 {
		_, err := fmt.Fprintf(w, "✓ All %d client endpoints match the %s contract (version %s)\n",
			r.Endpoints, r.Source, r.Version)
		return err
	}

	table := ux.NewTable("Code", "Method", "Path", "Message")
	for _, f := range r.Findings {
		table.Append(f.Code, f.Method, f.Path, f.Message)
	}
	if err := table.RenderText(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d endpoints disagree with the %s contract\n",
		len(r.Findings), r.Endpoints, r.Source)
	return err
}

func runAPICheck(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	remote, _ := cmd.Flags().GetBool("remote")
	list, _ := cmd.Flags().GetBool("list")

	var (
		c      *contract.Contract
		source = "bundled"
	)
	if remote {
		cfg, err := cmdCtx.LoadConfig()
		if err != nil {
			return err
		}
		source = cfg.API.BaseURL
		c, err = contract.Fetch(cmd.Context(), platform.NewClient(cfg.API.BaseURL,
			platform.WithTimeout(cfg.API.Timeout)).HTTPClient, cfg.API.BaseURL)
		if err != nil {
			return err
		}
	} else {
		c, err = contract.Load(cmd.Context())
		if err != nil {
			return err
		}
	}

	formatter, err := cmdCtx.Formatter(cmd)
	if err != nil {
		return err
	}

	if list {
		if cmdCtx.Structured() {
			return formatter.Format(c.Operations())
		}
		table := ux.NewTable("Method", "Path", "Operation", "Auth")
		for _, op := range c.Operations() {
			auth := "access token"
			if op.Anonymous {
				auth = "none"
			}
			table.Append(op.Method, op.Path, op.ID, auth)
		}
		return formatter.Format(table)
	}

	report := checkReport{
		Source:    source,
		Version:   c.Version(),
		Endpoints: len(platform.Endpoints),
		Findings:  c.Check(platform.Endpoints),
	}
	if report.Findings == nil {
		report.Findings = []contract.Finding{}
	}
	if err := formatter.Format(report); err != nil {
		return err
	}
	if len(report.Findings) > 0 {
		return errors.New(errors.ErrCodeContractViolation,
			fmt.Sprintf("%d client endpoint(s) disagree with the contract", len(report.Findings)))
	}
	return nil
}
