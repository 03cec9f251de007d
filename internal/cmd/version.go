package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information including version number, git commit,
build date, Go version, and platform.

With -o json or -o yaml the full build information is printed.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

var versionVerbose bool

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "show detailed version information")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.GetInfo()
	out := cmd.OutOrStdout()

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	if cmdCtx.Structured() {
		formatter, err := cmdCtx.Formatter(cmd)
		if err != nil {
			return err
		}
		return formatter.Format(info)
	}

	if versionVerbose {
		fmt.Fprintln(out, "\n  ╔══════════════════════════════════════════════════════════════╗")
		fmt.Fprintln(out, "  ║                       [ campus ]                             ║")
		fmt.Fprintln(out, "  ║          Session and access client for the centre            ║")
		fmt.Fprintln(out, "  ╚══════════════════════════════════════════════════════════════╝")
		fmt.Fprintln(out)
		fmt.Fprintln(out, info.String())
		return nil
	}

	fmt.Fprintf(out, "campus %s\n", info.Short())
	return nil
}
