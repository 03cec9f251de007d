package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/session"
	"github.com/felixgeelhaar/campus/internal/token"
	"github.com/felixgeelhaar/campus/internal/tokenstore"
	"github.com/felixgeelhaar/campus/internal/tui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, sign out and manage the session",
	Long: `Manage the campus session.

Tokens are kept in the configured token store (~/.campus/credentials.json by
default, readable by you only). Every other command uses the session
established here.

Subcommands:
  login            Sign in with username and password
  logout           Sign out and clear the token store
  status           Show who is signed in and when the token expires
  refresh          Exchange the refresh token for a new access token
  forgot-password  Reset a forgotten password in three steps

Examples:
  campus auth login --username alice
  campus auth status -o json
  campus auth logout`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the campus platform",
	Long: `Sign in with your campus username and password.

Missing credentials are prompted for when the terminal is interactive.
After signing in, the landing view of your role is printed.

Examples:
  campus auth login
  campus auth login --username alice --password '...'`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear stored tokens",
	Long: `Sign out of the campus platform.

The backend is told about the logout on a best-effort basis; local tokens are
removed even when it cannot be reached.`,
	RunE: runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE:  runAuthStatus,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token now",
	Long: `Exchange the stored refresh token for a new access token.

A rejected refresh token ends the session; network failures keep it.`,
	RunE: runAuthRefresh,
}

var authForgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password",
	Short: "Reset a forgotten password",
	Long: `Reset a forgotten password in three steps: request a code by email, verify
the code, then choose a new password. Progress is kept between invocations,
so each step can run on its own.

Examples:
  campus auth forgot-password --email alice@campus.test
  campus auth forgot-password --code 123456
  campus auth forgot-password --password 'new-password'
  campus auth forgot-password --restart`,
	RunE: runAuthForgotPassword,
}

func init() {
	authLoginCmd.Flags().StringP("username", "u", "", "campus username")
	authLoginCmd.Flags().StringP("password", "p", "", "password (prompted when omitted)")

	authForgotPasswordCmd.Flags().String("email", "", "email address of the account")
	authForgotPasswordCmd.Flags().String("code", "", "verification code from the email")
	authForgotPasswordCmd.Flags().String("password", "", "new password")
	authForgotPasswordCmd.Flags().Bool("restart", false, "discard progress and start over")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authForgotPasswordCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, session.LoginPath)
	if err != nil {
		return err
	}
	defer a.Close()

	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	if (username == "" || password == "") && a.ctx.CanPrompt() {
		username, password, err = tui.PromptForCredentials(username, password)
		if err != nil {
			return err
		}
	}
	if username == "" || password == "" {
		return errors.NewValidationError("credentials", "--username and --password are required").
			WithSuggestion("Run 'campus auth login' in a terminal to be prompted")
	}

	if err := a.session.Login(cmd.Context(), username, password); err != nil {
		// The controller already logged the cause; show the sanitized message.
		if code := errors.CodeOf(err); code != "" {
			return errors.New(code, session.FriendlyMessage(err))
		}
		return err
	}

	return printStatus(cmd, a, a.router.Current().Path)
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, "")
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.session.Snapshot().IsAuthenticated {
		// Leftover refresh tokens or a half-finished reset still go.
		a.session.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
		return nil
	}

	name := a.session.Snapshot().User.DisplayName()
	a.session.Logout(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "Signed out %s.\n", name)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, "")
	if err != nil {
		return err
	}
	defer a.Close()
	return printStatus(cmd, a, "")
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, "")
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok := a.store.Get(tokenstore.KeyRefreshToken); !ok && !a.session.Snapshot().IsAuthenticated {
		return errors.NewNotAuthenticatedError()
	}
	if _, err := a.session.Refresh(cmd.Context()); err != nil {
		return err
	}
	return printStatus(cmd, a, "")
}

// authStatus is the printable session summary.
type authStatus struct {
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	UserID        string     `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Username      string     `json:"username,omitempty" yaml:"username,omitempty"`
	FullName      string     `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	Email         string     `json:"email,omitempty" yaml:"email,omitempty"`
	Role          string     `json:"role,omitempty" yaml:"role,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	ExpiresIn     string     `json:"expires_in,omitempty" yaml:"expires_in,omitempty"`
	Landing       string     `json:"landing,omitempty" yaml:"landing,omitempty"`
	Store         string     `json:"store" yaml:"store"`
	API           string     `json:"api" yaml:"api"`
}

func newAuthStatus(a *app, landing string) authStatus {
	st := authStatus{
		Store:   a.store.Name(),
		API:     a.cfg.API.BaseURL,
		Landing: landing,
	}
	snapshot := a.session.Snapshot()
	if !snapshot.IsAuthenticated || snapshot.User == nil {
		return st
	}

	u := snapshot.User
	st.Authenticated = true
	st.UserID = u.ID
	st.Username = u.Username
	st.FullName = u.FullName
	st.Email = u.Email
	st.Role = u.Role.String()

	access, _ := a.store.Get(tokenstore.KeyAccessToken)
	if claims, ok := token.Decode(access); ok {
		exp := claims.ExpiresAt
		st.ExpiresAt = &exp
	}
	if remaining, ok := a.validator.Remaining(access); ok {
		st.ExpiresIn = remaining.Round(time.Second).String()
	}
	return st
}

// RenderText prints the summary for humans.
func (s authStatus) RenderText(w io.Writer) error {
	if !s.Authenticated {
		_, err := fmt.Fprintf(w, "Not signed in (store: %s, api: %s)\nRun 'campus auth login' to sign in.\n", s.Store, s.API)
		return err
	}

	name := s.FullName
	if name == "" {
		name = s.Username
	}
	fmt.Fprintf(w, "Signed in as %s (%s)\n", name, s.Role)
	fmt.Fprintf(w, "  User:    %s", s.Username)
	if s.Email != "" {
		fmt.Fprintf(w, " <%s>", s.Email)
	}
	fmt.Fprintln(w)
	if s.ExpiresAt != nil {
		fmt.Fprintf(w, "  Expires: %s (in %s)\n", s.ExpiresAt.Local().Format(time.RFC1123), s.ExpiresIn)
	}
	if s.Landing != "" {
		fmt.Fprintf(w, "  Landing: %s\n", s.Landing)
	}
	fmt.Fprintf(w, "  Store:   %s\n", s.Store)
	_, err := fmt.Fprintf(w, "  API:     %s\n", s.API)
	return err
}

func printStatus(cmd *cobra.Command, a *app, landing string) error {
	formatter, err := a.ctx.Formatter(cmd)
	if err != nil {
		return err
	}
	return formatter.Format(newAuthStatus(a, landing))
}

func runAuthForgotPassword(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, session.ForgotPasswordPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	flags := cmd.Flags()
	email, _ := flags.GetString("email")
	code, _ := flags.GetString("code")
	password, _ := flags.GetString("password")
	restart, _ := flags.GetBool("restart")

	if restart {
		a.session.ResetForgotPasswordFlow()
		fmt.Fprintln(out, "Password reset restarted.")
	}

	if email == "" && code == "" && password == "" {
		if !a.ctx.CanPrompt() {
			if !restart {
				printForgotStep(out, a.session.ForgotPassword())
			}
			return nil
		}
		return promptForgotPassword(cmd, a)
	}

	if email != "" {
		if err := a.session.SendForgotPasswordEmail(ctx, email); err != nil {
			return err
		}
		fmt.Fprintf(out, "Verification code sent to %s.\n", email)
	}
	if code != "" {
		if err := a.session.VerifyForgotPasswordCode(ctx, code); err != nil {
			return err
		}
		fmt.Fprintln(out, "Code verified.")
	}
	if password != "" {
		if err := a.session.ResetForgottenPassword(ctx, password); err != nil {
			return err
		}
		fmt.Fprintln(out, "Password changed. Sign in with 'campus auth login'.")
		return nil
	}

	printForgotStep(out, a.session.ForgotPassword())
	return nil
}

// promptForgotPassword walks the remaining steps interactively.
func promptForgotPassword(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	for {
		flow := a.session.ForgotPassword()
		switch flow.Step {
		case session.StepEmail:
			email, err := tui.PromptForString(tui.Prompt{Message: "Email", Placeholder: "you@campus.test", Required: true})
			if err != nil {
				return err
			}
			if err := a.session.SendForgotPasswordEmail(ctx, email); err != nil {
				return err
			}
			fmt.Fprintf(out, "Verification code sent to %s.\n", email)

		case session.StepCode:
			code, err := tui.PromptForString(tui.Prompt{Message: "Verification code", Required: true})
			if err != nil {
				return err
			}
			if err := a.session.VerifyForgotPasswordCode(ctx, code); err != nil {
				return err
			}

		case session.StepPassword:
			password, err := tui.PromptForString(tui.Prompt{
				Message:  "New password",
				Required: true,
				Secret:   true,
				Validate: func(s string) error {
					if len(s) < session.MinPasswordLength {
						return fmt.Errorf("must be at least %d characters", session.MinPasswordLength)
					}
					return nil
				},
			})
			if err != nil {
				return err
			}
			if err := a.session.ResetForgottenPassword(ctx, password); err != nil {
				return err
			}
			fmt.Fprintln(out, "Password changed. Sign in with 'campus auth login'.")
			return nil

		default:
			return errors.New(errors.ErrCodeForgotPassword, "unknown forgot-password step")
		}
	}
}

func printForgotStep(w io.Writer, flow session.ForgotPasswordFlow) {
	switch flow.Step {
	case session.StepCode:
		fmt.Fprintf(w, "Next: enter the code sent to %s with --code (or resend with --email).\n", flow.Email)
	case session.StepPassword:
		fmt.Fprintln(w, "Next: choose a new password with --password.")
	default:
		fmt.Fprintln(w, "Next: request a verification code with --email.")
	}
}
