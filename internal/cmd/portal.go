package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/session"
	"github.com/felixgeelhaar/campus/internal/tui"
)

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Open the interactive portal",
	Long: `Open the interactive campus portal in the terminal.

The portal shows the views your role may open, signs you in when needed and
returns you to the view you asked for afterwards. The access token is
refreshed in the background while the portal is open.

Keys:
  1-9  switch view
  r    refresh the access token
  l    sign out
  q    quit

Examples:
  campus portal
  campus portal --path /classes`,
	Args: cobra.NoArgs,
	RunE: runPortal,
}

func init() {
	portalCmd.Flags().String("path", session.HomePath, "view to open first")
	rootCmd.AddCommand(portalCmd)
}

func runPortal(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")

	a, err := newApp(cmd, path)
	if err != nil {
		return err
	}
	defer a.Close()

	if !tui.IsInteractive() {
		return fmt.Errorf("the portal needs an interactive terminal")
	}

	scheduler, err := a.scheduler()
	if err != nil {
		return err
	}
	if err := scheduler.Start(cmd.Context()); err != nil {
		return err
	}
	defer scheduler.Stop()

	a.logger.Info("portal opened", "path", path)
	return tui.RunPortal(cmd.Context(), a.session, a.router)
}
