package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/campus/internal/router"
	"github.com/felixgeelhaar/campus/internal/session"
)

// Session is the part of the session controller the portal drives.
type Session interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context)
	Refresh(ctx context.Context) (bool, error)
}

// Navigation is the part of the router the portal drives.
type Navigation interface {
	View() router.View
	Navigate(loc session.Location)
	Table() *router.Table
	OnChange(fn func(router.View)) func()
}

// ViewChangedMsg carries a re-evaluated view from the router.
type ViewChangedMsg struct {
	View router.View
}

type loginDoneMsg struct{ err error }

type logoutDoneMsg struct{}

type refreshDoneMsg struct {
	refreshed bool
	err       error
}

// portalKeys defines the keyboard shortcuts outside the login form
type portalKeys struct {
	Quit    key.Binding
	Refresh key.Binding
	Logout  key.Binding
	Views   key.Binding
}

var defaultPortalKeys = portalKeys{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh token"),
	),
	Logout: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "log out"),
	),
	Views: key.NewBinding(
		key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
		key.WithHelp("1-9", "switch view"),
	),
}

// Portal is the interactive portal. It renders whatever view the router
// currently holds; every session change reaches it as a ViewChangedMsg.
type Portal struct {
	ctx     context.Context
	session Session
	nav     Navigation
	keys    portalKeys
	styles  Styles

	view    router.View
	changes chan router.View
	stop    func()

	spinner  spinner.Model
	form     *huh.Form
	username string
	password string

	busy     bool
	status   string
	notice   string
	width    int
	height   int
	quitting bool
}

// NewPortal creates a portal and starts listening to the router.
func NewPortal(ctx context.Context, sess Session, nav Navigation) *Portal {
	p := &Portal{
		ctx:     ctx,
		session: sess,
		nav:     nav,
		keys:    defaultPortalKeys,
		styles:  DefaultStyles(),
		view:    nav.View(),
		changes: make(chan router.View, 1),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	p.stop = nav.OnChange(p.push)
	return p
}

// Close stops listening to the router.
func (p *Portal) Close() {
	if p.stop != nil {
		p.stop()
	}
}

// push keeps only the newest view so the router never blocks on the UI.
func (p *Portal) push(v router.View) {
	for {
		select {
		case p.changes <- v:
			return
		default:
		}
		select {
		case <-p.changes:
		default:
		}
	}
}

func (p *Portal) waitForView() tea.Cmd {
	return func() tea.Msg {
		select {
		case v := <-p.changes:
			return ViewChangedMsg{View: v}
		case <-p.ctx.Done():
			return nil
		}
	}
}

// Init initializes the model
func (p *Portal) Init() tea.Cmd {
	return tea.Batch(p.spinner.Tick, p.waitForView(), p.syncForm())
}

// Update handles messages and updates the model
func (p *Portal) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil

	case ViewChangedMsg:
		p.view = msg.View
		return p, tea.Batch(p.waitForView(), p.syncForm())

	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case loginDoneMsg:
		p.busy = false
		p.password = ""
		if msg.err != nil {
			p.form = nil
			return p, p.syncForm()
		}
		p.status = "Signed in"
		return p, nil

	case logoutDoneMsg:
		p.busy = false
		p.status = "Signed out"
		return p, nil

	case refreshDoneMsg:
		p.busy = false
		switch {
		case msg.err != nil:
			p.notice = session.FriendlyMessage(msg.err)
		case msg.refreshed:
			p.status = "Token refreshed"
			p.notice = ""
		}
		return p, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			p.quitting = true
			return p, tea.Quit
		}
		if p.form == nil {
			return p.handleKey(msg)
		}
	}

	return p.updateForm(msg)
}

func (p *Portal) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, p.keys.Quit):
		p.quitting = true
		return p, tea.Quit

	case p.busy:
		return p, nil

	case key.Matches(msg, p.keys.Refresh):
		if !p.view.State.IsAuthenticated {
			return p, nil
		}
		p.busy = true
		return p, p.refresh()

	case key.Matches(msg, p.keys.Logout):
		if !p.view.State.IsAuthenticated {
			return p, nil
		}
		p.busy = true
		return p, p.logout()

	case key.Matches(msg, p.keys.Views):
		idx := int(msg.Runes[0] - '1')
		routes := p.menu()
		if idx < len(routes) {
			p.notice = ""
			p.nav.Navigate(session.Location{Path: routes[idx].Path})
			p.view = p.nav.View()
			return p, p.syncForm()
		}
	}
	return p, nil
}

func (p *Portal) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if p.form == nil {
		return p, nil
	}

	model, cmd := p.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		p.form = f
	}

	switch p.form.State {
	case huh.StateCompleted:
		if p.busy {
			return p, cmd
		}
		p.busy = true
		return p, p.login()
	case huh.StateAborted:
		p.quitting = true
		return p, tea.Quit
	}
	return p, cmd
}

// syncForm shows the login form on the login view and drops it elsewhere.
func (p *Portal) syncForm() tea.Cmd {
	if p.view.Location.Path != session.LoginPath {
		p.form = nil
		return nil
	}
	if p.form != nil {
		return nil
	}
	p.form = p.newLoginForm()
	return p.form.Init()
}

func (p *Portal) newLoginForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			Prompt{Message: "Username", Required: true}.input(&p.username),
			Prompt{Message: "Password", Required: true, Secret: true}.input(&p.password),
		).Title("Sign in"),
	).WithShowHelp(false)
}

func (p *Portal) login() tea.Cmd {
	username, password := p.username, p.password
	return func() tea.Msg {
		return loginDoneMsg{err: p.session.Login(p.ctx, username, password)}
	}
}

func (p *Portal) logout() tea.Cmd {
	return func() tea.Msg {
		p.session.Logout(p.ctx)
		return logoutDoneMsg{}
	}
}

func (p *Portal) refresh() tea.Cmd {
	return func() tea.Msg {
		ok, err := p.session.Refresh(p.ctx)
		return refreshDoneMsg{refreshed: ok, err: err}
	}
}

// menu lists the views the signed-in role may open, in table order.
func (p *Portal) menu() []router.Route {
	if !p.view.State.IsAuthenticated {
		return nil
	}
	routes := p.nav.Table().Navigable(p.view.State.Role())
	if len(routes) > 9 {
		routes = routes[:9]
	}
	return routes
}

// RunPortal runs the portal until the user quits.
func RunPortal(ctx context.Context, sess Session, nav Navigation) error {
	portal := NewPortal(ctx, sess, nav)
	defer portal.Close()

	program := tea.NewProgram(portal, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run portal: %w", err)
	}
	return nil
}
