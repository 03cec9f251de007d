package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/router"
	"github.com/felixgeelhaar/campus/internal/ux"
)

const classesPath = "/classes"

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List the classes visible to you",
	Long: `List classes from the backend. Teachers see their own classes; learning
advisors and managers see every class.

A rejected access token signs you out, like anywhere else in campus.

Examples:
  campus classes
  campus classes --page 2 --page-size 10
  campus classes -o yaml`,
	Args: cobra.NoArgs,
	RunE: runClasses,
}

func init() {
	classesCmd.Flags().Int("page", 1, "page number")
	classesCmd.Flags().Int("page-size", 20, "classes per page")
	rootCmd.AddCommand(classesCmd)
}

// classPage is the printable page of classes.
type classPage struct {
	*platform.ListClassesResponse
}

// RenderText prints the classes as a table followed by the paging line.
func (p classPage) RenderText(w io.Writer) error {
	if len(p.Classes) == 0 {
		_, err := fmt.Fprintln(w, "No classes found.")
		return err
	}

	table := ux.NewTable("ID", "Name", "Level", "Teacher", "Room", "Schedule", "Students")
	for _, c := range p.Classes {
		table.Append(c.ID, c.Name, c.Level, c.TeacherName, c.Room, c.Schedule, strconv.Itoa(c.Students))
	}
	if err := table.RenderText(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nPage %d, %d of %d classes\n", p.Page, len(p.Classes), p.TotalCount)
	return err
}

func runClasses(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, classesPath)
	if err != nil {
		return err
	}
	defer a.Close()

	// The route authorizer gates the command like it gates the view.
	switch a.router.View().Decision.Outcome {
	case router.RedirectLogin:
		return errors.NewNotAuthenticatedError()
	case router.RedirectUnauthorized:
		return errors.NewAccessDeniedError(classesPath, a.session.Snapshot().Role().String())
	}

	page, _ := cmd.Flags().GetInt("page")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	if page < 1 || pageSize < 1 {
		return errors.NewValidationError("paging", "--page and --page-size must be positive")
	}

	list, err := a.client.ListClasses(cmd.Context(), page, pageSize)
	if err != nil {
		if platform.IsUnauthorized(err) {
			return errors.NewSessionExpiredError()
		}
		return err
	}

	formatter, err := a.ctx.Formatter(cmd)
	if err != nil {
		return err
	}
	if a.ctx.Structured() {
		return formatter.Format(list)
	}
	return formatter.Format(classPage{list})
}
