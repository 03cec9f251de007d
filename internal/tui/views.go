package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/campus/internal/router"
	"github.com/felixgeelhaar/campus/internal/session"
)

// Styles contains lipgloss styles for the portal
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Status      lipgloss.Style
	Error       lipgloss.Style
	Muted       lipgloss.Style
	Border      lipgloss.Style
	Highlighted lipgloss.Style
	Help        lipgloss.Style
	Key         lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2),
		Highlighted: lipgloss.NewStyle().
			Background(lipgloss.Color("63")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1),
		Key: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
	}
}

// View renders the portal
func (p *Portal) View() string {
	if p.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(p.renderHeader())
	b.WriteString("\n\n")

	if menu := p.renderMenu(); menu != "" {
		b.WriteString(menu)
		b.WriteString("\n\n")
	}

	b.WriteString(p.renderBody())
	b.WriteString("\n")

	if p.notice != "" {
		b.WriteString("\n")
		b.WriteString(p.styles.Error.Render(p.notice))
		b.WriteString("\n")
	}
	if p.status != "" {
		b.WriteString("\n")
		b.WriteString(p.styles.Status.Render(p.status))
		b.WriteString("\n")
	}

	b.WriteString(p.renderHelpLine())
	return b.String()
}

func (p *Portal) renderHeader() string {
	title := p.styles.Title.Render("campus portal")

	state := p.view.State
	if !state.IsAuthenticated || state.User == nil {
		return title + "  " + p.styles.Muted.Render("not signed in")
	}
	who := fmt.Sprintf("%s (%s)", state.User.DisplayName(), state.User.Role)
	return title + "  " + p.styles.Subtitle.Render(who)
}

func (p *Portal) renderMenu() string {
	routes := p.menu()
	if len(routes) == 0 {
		return ""
	}
	items := make([]string, len(routes))
	for i, route := range routes {
		label := fmt.Sprintf("%d %s", i+1, route.Title)
		if route.Path == p.view.Location.Path {
			items[i] = p.styles.Highlighted.Render(label)
		} else {
			items[i] = p.styles.Muted.Render(label)
		}
	}
	return strings.Join(items, "  ")
}

func (p *Portal) renderBody() string {
	if p.view.Decision.Outcome == router.Loading || (p.busy && p.form == nil) {
		return p.spinner.View() + " Loading..."
	}

	switch p.view.Location.Path {
	case session.LoginPath:
		return p.renderLogin()
	case session.ForgotPasswordPath:
		return p.styles.Border.Render("Forgot your password?\n\n" +
			"Run 'campus auth forgot-password --email <address>' to receive a verification code.")
	case session.UnauthorizedPath:
		return p.renderUnauthorized()
	}

	route := p.view.Route
	if route.Path == router.NotFoundPath {
		return p.styles.Border.Render(fmt.Sprintf("Page not found: %s", p.view.Location.Path))
	}
	return p.styles.Border.Render(fmt.Sprintf("%s\n\n%s",
		p.styles.Title.Render(route.Title),
		p.styles.Muted.Render("Nothing to show here yet.")))
}

func (p *Portal) renderLogin() string {
	var b strings.Builder
	if p.busy {
		b.WriteString(p.spinner.View() + " Signing in...")
	} else if p.form != nil {
		b.WriteString(p.form.View())
	}
	if msg := p.view.State.Error; msg != "" {
		b.WriteString("\n")
		b.WriteString(p.styles.Error.Render(msg))
	}
	if from := p.view.Location.From; from != "" {
		b.WriteString("\n")
		b.WriteString(p.styles.Muted.Render("You will return to " + from + " after signing in."))
	}
	return b.String()
}

func (p *Portal) renderUnauthorized() string {
	msg := "You do not have access to this page."
	if from := p.view.Location.From; from != "" {
		msg = fmt.Sprintf("You do not have access to %s.", from)
	}
	return p.styles.Border.
		BorderForeground(lipgloss.Color("196")).
		Render(p.styles.Error.Render("Unauthorized") + "\n\n" + msg + "\nPick another view from the menu.")
}

func (p *Portal) renderHelpLine() string {
	var parts []string
	if p.form == nil {
		if p.view.State.IsAuthenticated {
			parts = append(parts,
				p.helpItem(p.keys.Views),
				p.helpItem(p.keys.Refresh),
				p.helpItem(p.keys.Logout),
			)
		}
		parts = append(parts, p.helpItem(p.keys.Quit))
	} else {
		parts = append(parts, p.styles.Key.Render("ctrl+c")+" "+p.styles.Muted.Render("quit"))
	}
	return p.styles.Help.Render(strings.Join(parts, " • "))
}

func (p *Portal) helpItem(b key.Binding) string {
	h := b.Help()
	return p.styles.Key.Render(h.Key) + " " + p.styles.Muted.Render(h.Desc)
}
