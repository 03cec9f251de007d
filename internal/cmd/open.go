package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/role"
	"github.com/felixgeelhaar/campus/internal/router"
	"github.com/felixgeelhaar/campus/internal/ux"
)

var openCmd = &cobra.Command{
	Use:   "open [path]",
	Short: "Check whether a view may be opened",
	Long: `Evaluate a portal view for the current session, the same way the portal does.

Without a path, lists the views your role can open. With a path, prints the
decision: the view renders, or you are sent to sign in (exit code 5), or your
role may not open it (exit code 4).

Examples:
  campus open
  campus open /classes
  campus open /colleagues -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

// openResult is the printable decision for one path.
type openResult struct {
	Path     string `json:"path" yaml:"path"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Outcome  string `json:"outcome" yaml:"outcome"`
	Location string `json:"location" yaml:"location"`
	From     string `json:"from,omitempty" yaml:"from,omitempty"`
	Role     string `json:"role,omitempty" yaml:"role,omitempty"`
}

// RenderText prints the decision for humans.
func (r openResult) RenderText(w io.Writer) error {
	var err error
	switch r.Outcome {
	case router.Render.String():
		_, err = fmt.Fprintf(w, "%s (%s) is open to %s.\n", r.Location, r.Title, r.Role)
	case router.RedirectLogin.String():
		_, err = fmt.Fprintf(w, "Sign in first: %s sends you to %s.\n", r.Path, r.Location)
	case router.RedirectUnauthorized.String():
		_, err = fmt.Fprintf(w, "%s is not available to %s.\n", r.Path, r.Role)
	default:
		_, err = fmt.Fprintf(w, "%s: %s\n", r.Path, r.Outcome)
	}
	return err
}

func runOpen(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	a, err := newApp(cmd, path)
	if err != nil {
		return err
	}
	defer a.Close()

	formatter, err := a.ctx.Formatter(cmd)
	if err != nil {
		return err
	}

	if path == "" {
		return listViews(a, formatter)
	}

	view := a.router.View()
	result := openResult{
		Path:     path,
		Title:    view.Route.Title,
		Outcome:  view.Decision.Outcome.String(),
		Location: view.Location.Path,
		From:     view.Location.From,
		Role:     view.State.Role().String(),
	}

	if view.Decision.Outcome == router.Render && view.Route.Path == router.NotFoundPath {
		return errors.NewValidationError("path", fmt.Sprintf("no view at %s", path)).
			WithSuggestion("Run 'campus open' to list the views available to you")
	}

	if err := formatter.Format(result); err != nil {
		return err
	}

	switch view.Decision.Outcome {
	case router.RedirectLogin:
		return errors.NewNotAuthenticatedError()
	case router.RedirectUnauthorized:
		return errors.NewAccessDeniedError(path, result.Role)
	}
	return nil
}

// listViews prints every non-public view the current role may open.
func listViews(a *app, formatter ux.Formatter) error {
	snapshot := a.session.Snapshot()
	if !snapshot.IsAuthenticated {
		return errors.NewNotAuthenticatedError()
	}

	table := ux.NewTable("Path", "Title", "Roles")
	for _, route := range a.router.Table().Navigable(snapshot.Role()) {
		table.Append(route.Path, route.Title, rolesLabel(route.AllowedRoles))
	}
	return formatter.Format(table)
}

func rolesLabel(set role.Set) string {
	switch len(set) {
	case 0:
		return "none"
	case len(role.All):
		return "all"
	}
	return set.String()
}
