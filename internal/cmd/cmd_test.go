package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/campus/internal/config"
	"github.com/felixgeelhaar/campus/internal/devserver"
	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/exitcode"
	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/tokenstore"
	"github.com/felixgeelhaar/campus/internal/version"
)

// testEnv is an isolated campus home plus a running mock backend.
type testEnv struct {
	t       *testing.T
	home    string
	backend *devserver.Backend
	url     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvStore, "")
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvAPITimeout, "")

	backend, err := devserver.New(devserver.Options{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("devserver.New() error = %v", err)
	}
	srv := httptest.NewServer(devserver.NewServer(backend, devserver.Config{}).Handler())
	t.Cleanup(srv.Close)

	return &testEnv{t: t, home: home, backend: backend, url: srv.URL}
}

// run executes the root command against the mock backend.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	return execute(e.t, append(args, "--api-url", e.url)...)
}

func (e *testEnv) login(username string) {
	e.t.Helper()
	if _, err := e.run("auth", "login", "-u", username, "-p", devserver.DefaultPassword); err != nil {
		e.t.Fatalf("login %s: %v", username, err)
	}
}

// execute runs the root command with flags and contexts reset, since cobra
// keeps both on the command tree between executions.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--no-input"))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := ExecuteContext(t.Context())
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	// A subcommand only inherits the parent context while its own is nil.
	c.SetContext(nil) //nolint:staticcheck
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"auth", "open", "classes", "portal", "config", "api", "dev-server", "doctor", "logs", "version", "completion"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}

	for _, name := range []string{"login", "logout", "status", "refresh", "forgot-password"} {
		if c, _, err := rootCmd.Find([]string{"auth", name}); err != nil || c.Name() != name {
			t.Errorf("auth %s not registered", name)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"home", "api-url", "store", "log-level", "output", "no-input"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag --%s missing", name)
		}
	}
}

func TestAuthLoginStatusLogout(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("auth", "login", "-u", "alice", "-p", devserver.DefaultPassword)
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if !strings.Contains(out, "(Teacher)") {
		t.Errorf("login output = %q, want role", out)
	}
	if !strings.Contains(out, "Landing: /home") {
		t.Errorf("login output = %q, want landing", out)
	}
	if _, err := os.Stat(filepath.Join(env.home, "credentials.json")); err != nil {
		t.Errorf("credentials file not written: %v", err)
	}

	out, err = env.run("auth", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "Signed in as") || !strings.Contains(out, "alice") {
		t.Errorf("status output = %q", out)
	}

	out, err = env.run("auth", "status", "-o", "json")
	if err != nil {
		t.Fatalf("status json error = %v", err)
	}
	var status authStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("status json = %q: %v", out, err)
	}
	if !status.Authenticated || status.Username != "alice" || status.Role != "Teacher" {
		t.Errorf("status = %+v", status)
	}
	if status.ExpiresAt == nil {
		t.Error("status has no expiry")
	}

	out, err = env.run("auth", "logout")
	if err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if !strings.Contains(out, "Signed out") {
		t.Errorf("logout output = %q", out)
	}
	if env.backend.Calls(platform.PathLogout) != 1 {
		t.Errorf("logout calls = %d, want 1", env.backend.Calls(platform.PathLogout))
	}

	out, err = env.run("auth", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "Not signed in") {
		t.Errorf("status after logout = %q", out)
	}
}

func TestSubcommandsGetFreshContextPerRun(t *testing.T) {
	env := newTestEnv(t)

	// Each subtest's context is cancelled when it returns.
	for _, name := range []string{"first", "second", "third"} {
		t.Run(name, func(t *testing.T) {
			env.t = t
			out, err := env.run("auth", "login", "-u", "alice", "-p", devserver.DefaultPassword)
			if err != nil {
				t.Fatalf("login error = %v", err)
			}
			if !strings.Contains(out, "alice") {
				t.Errorf("login output = %q", out)
			}
		})
	}
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("auth", "login", "-u", "alice", "-p", "wrong-password")
	if err == nil {
		t.Fatal("expected error for wrong password")
	}
	if got := errors.CodeOf(err); got != errors.ErrCodeInvalidCredentials {
		t.Errorf("code = %s, want %s", got, errors.ErrCodeInvalidCredentials)
	}
	if got := exitcode.DetermineExitCode(err); got != exitcode.AuthError {
		t.Errorf("exit code = %d, want %d", got, exitcode.AuthError)
	}
	if !strings.Contains(err.Error(), "forgot-password") {
		t.Errorf("error %q should suggest a password reset", err)
	}
}

func TestAuthLoginRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("auth", "login", "-u", "alice")
	if got := exitcode.DetermineExitCode(err); got != exitcode.UsageError {
		t.Errorf("exit code = %d, want %d (err %v)", got, exitcode.UsageError, err)
	}
}

func TestAuthLogoutWhenSignedOut(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("auth", "logout")
	if err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if !strings.Contains(out, "Not signed in.") {
		t.Errorf("logout output = %q", out)
	}
	if env.backend.Calls(platform.PathLogout) != 0 {
		t.Error("logout reached the backend without a session")
	}
}

func TestAuthLogoutClearsLeftoverCredentials(t *testing.T) {
	env := newTestEnv(t)

	store := tokenstore.NewFileStore(filepath.Join(env.home, "credentials.json"), nil)
	store.Set(tokenstore.KeyRefreshToken, "stale-refresh")
	store.Set(tokenstore.KeyUserRole, "Teacher")

	out, err := env.run("auth", "logout")
	if err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if !strings.Contains(out, "Not signed in.") {
		t.Errorf("logout output = %q", out)
	}
	if _, ok := store.Get(tokenstore.KeyRefreshToken); ok {
		t.Error("refresh token survived logout")
	}
	if _, ok := store.Get(tokenstore.KeyUserRole); ok {
		t.Error("cached role survived logout")
	}
	if env.backend.Calls(platform.PathLogout) != 0 {
		t.Error("logout reached the backend without an access token")
	}
}

func TestAuthRefresh(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("auth", "refresh"); !errors.HasCode(err, errors.ErrCodeNotAuthenticated) {
		t.Errorf("refresh without session error = %v, want %s", err, errors.ErrCodeNotAuthenticated)
	}

	env.login("ben")
	out, err := env.run("auth", "refresh")
	if err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if !strings.Contains(out, "(Learning Advisor)") {
		t.Errorf("refresh output = %q", out)
	}
	if env.backend.Calls(platform.PathRefresh) != 1 {
		t.Errorf("refresh calls = %d, want 1", env.backend.Calls(platform.PathRefresh))
	}
}

func TestOpenDecisions(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("open", "/classes")
	if !errors.HasCode(err, errors.ErrCodeNotAuthenticated) {
		t.Fatalf("anonymous open error = %v, want %s", err, errors.ErrCodeNotAuthenticated)
	}
	if exitcode.DetermineExitCode(err) != exitcode.AuthError {
		t.Errorf("anonymous exit code = %d", exitcode.DetermineExitCode(err))
	}
	if !strings.Contains(out, "Sign in first") {
		t.Errorf("anonymous open output = %q", out)
	}

	env.login("alice")

	out, err = env.run("open", "/classes")
	if err != nil {
		t.Fatalf("open /classes error = %v", err)
	}
	if !strings.Contains(out, "/classes (Classes) is open to Teacher.") {
		t.Errorf("open /classes output = %q", out)
	}

	out, err = env.run("open", "/colleagues")
	if !errors.HasCode(err, errors.ErrCodeAccessDenied) {
		t.Fatalf("open /colleagues error = %v, want %s", err, errors.ErrCodeAccessDenied)
	}
	if exitcode.DetermineExitCode(err) != exitcode.AccessDenied {
		t.Errorf("denied exit code = %d, want %d", exitcode.DetermineExitCode(err), exitcode.AccessDenied)
	}
	if !strings.Contains(out, "/colleagues is not available to Teacher.") {
		t.Errorf("open /colleagues output = %q", out)
	}

	if _, err := env.run("open", "/grades"); !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("open /grades error = %v, want %s", err, errors.ErrCodeValidation)
	}
}

func TestOpenJSON(t *testing.T) {
	env := newTestEnv(t)
	env.login("mai")

	out, err := env.run("open", "/colleagues", "-o", "json")
	if err != nil {
		t.Fatalf("open error = %v", err)
	}
	var result openResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("open json = %q: %v", out, err)
	}
	if result.Outcome != "render" || result.Location != "/colleagues" {
		t.Errorf("result = %+v", result)
	}
	if result.Role != "Manager" {
		t.Errorf("role = %q, want Manager", result.Role)
	}
}

func TestOpenListsNavigableViews(t *testing.T) {
	env := newTestEnv(t)
	env.login("alice")

	out, err := env.run("open")
	if err != nil {
		t.Fatalf("open error = %v", err)
	}
	for _, path := range []string{"/home", "/classes", "/attendance", "/materials"} {
		if !strings.Contains(out, path) {
			t.Errorf("view list missing %s:\n%s", path, out)
		}
	}
	for _, path := range []string{"/contracts", "/colleagues", "/auth/login"} {
		if strings.Contains(out, path) {
			t.Errorf("view list should not contain %s:\n%s", path, out)
		}
	}
}

func TestRouteAccessFromConfig(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run("config", "set", "routes.access./issues", "manager"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	env.login("alice")

	if _, err := env.run("open", "/issues"); !errors.HasCode(err, errors.ErrCodeAccessDenied) {
		t.Errorf("open /issues error = %v, want %s", err, errors.ErrCodeAccessDenied)
	}
}

func TestClasses(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("classes"); !errors.HasCode(err, errors.ErrCodeNotAuthenticated) {
		t.Fatalf("anonymous classes error = %v", err)
	}

	env.login("mai")
	out, err := env.run("classes")
	if err != nil {
		t.Fatalf("classes error = %v", err)
	}
	if !strings.Contains(out, "Teacher") || !strings.Contains(out, "Page 1") {
		t.Errorf("classes output = %q", out)
	}

	out, err = env.run("classes", "-o", "json", "--page-size", "1")
	if err != nil {
		t.Fatalf("classes json error = %v", err)
	}
	var list platform.ListClassesResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("classes json = %q: %v", out, err)
	}
	if len(list.Classes) != 1 || list.PageSize != 1 {
		t.Errorf("page = %+v", list)
	}

	if _, err := env.run("classes", "--page", "0"); !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("page 0 error = %v, want %s", err, errors.ErrCodeValidation)
	}
}

func TestClassesRejectedTokenSignsOut(t *testing.T) {
	env := newTestEnv(t)
	env.login("alice")

	env.backend.FailNext(platform.PathClasses, 401)
	_, err := env.run("classes")
	if !errors.HasCode(err, errors.ErrCodeSessionExpired) {
		t.Fatalf("classes error = %v, want %s", err, errors.ErrCodeSessionExpired)
	}

	out, err := env.run("auth", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "Not signed in") {
		t.Errorf("status after 401 = %q", out)
	}
}

func TestForgotPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	const email = "alice@campus.test"
	const newPassword = "a-new-password"

	out, err := env.run("auth", "forgot-password")
	if err != nil {
		t.Fatalf("forgot-password error = %v", err)
	}
	if !strings.Contains(out, "--email") {
		t.Errorf("first step output = %q", out)
	}

	if _, err := env.run("auth", "forgot-password", "--code", "123456"); !errors.HasCode(err, errors.ErrCodeStepOutOfOrder) {
		t.Errorf("early code error = %v, want %s", err, errors.ErrCodeStepOutOfOrder)
	}

	out, err = env.run("auth", "forgot-password", "--email", email)
	if err != nil {
		t.Fatalf("send email error = %v", err)
	}
	if !strings.Contains(out, "Verification code sent to "+email) || !strings.Contains(out, "--code") {
		t.Errorf("email step output = %q", out)
	}

	code, ok := env.backend.ResetCode(email)
	if !ok {
		t.Fatal("no reset code issued")
	}
	out, err = env.run("auth", "forgot-password", "--code", code)
	if err != nil {
		t.Fatalf("verify error = %v", err)
	}
	if !strings.Contains(out, "Code verified.") || !strings.Contains(out, "--password") {
		t.Errorf("code step output = %q", out)
	}

	if _, err := env.run("auth", "forgot-password", "--password", "short"); !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("short password error = %v, want %s", err, errors.ErrCodeValidation)
	}

	out, err = env.run("auth", "forgot-password", "--password", newPassword)
	if err != nil {
		t.Fatalf("reset error = %v", err)
	}
	if !strings.Contains(out, "Password changed") {
		t.Errorf("reset output = %q", out)
	}

	if _, err := env.run("auth", "login", "-u", "alice", "-p", devserver.DefaultPassword); err == nil {
		t.Error("old password still accepted")
	}
	if _, err := env.run("auth", "login", "-u", "alice", "-p", newPassword); err != nil {
		t.Errorf("login with new password error = %v", err)
	}
}

func TestForgotPasswordRestart(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("auth", "forgot-password", "--email", "ben@campus.test"); err != nil {
		t.Fatalf("send email error = %v", err)
	}
	out, err := env.run("auth", "forgot-password", "--restart")
	if err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if !strings.Contains(out, "Password reset restarted.") {
		t.Errorf("restart output = %q", out)
	}

	out, err = env.run("auth", "forgot-password")
	if err != nil {
		t.Fatalf("forgot-password error = %v", err)
	}
	if !strings.Contains(out, "request a verification code") {
		t.Errorf("flow after restart = %q", out)
	}
}

func TestMemoryStoreForgetsSession(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("auth", "login", "-u", "alice", "-p", devserver.DefaultPassword, "--store", "memory"); err != nil {
		t.Fatalf("login error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.home, "credentials.json")); !os.IsNotExist(err) {
		t.Errorf("memory store wrote credentials: %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvAPIURL, "")

	out, err := execute(t, "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if strings.TrimSpace(out) != filepath.Join(home, "config.yaml") {
		t.Errorf("config path = %q", out)
	}

	if _, err := execute(t, "config", "set", "api.timeout", "10s"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	out, err = execute(t, "config", "get", "api.timeout")
	if err != nil {
		t.Fatalf("config get error = %v", err)
	}
	if strings.TrimSpace(out) != "10s" {
		t.Errorf("api.timeout = %q, want 10s", out)
	}

	out, err = execute(t, "config", "get", "api.base_url", "--api-url", "http://override.test")
	if err != nil {
		t.Fatalf("config get error = %v", err)
	}
	if strings.TrimSpace(out) != "http://override.test" {
		t.Errorf("api.base_url = %q, want flag override", out)
	}

	if _, err := execute(t, "config", "set", "store.backend", "vault"); exitcode.DetermineExitCode(err) != exitcode.UsageError {
		t.Errorf("invalid store error = %v, want usage error", err)
	}
	if _, err := execute(t, "config", "get", "nope"); exitcode.DetermineExitCode(err) != exitcode.UsageError {
		t.Errorf("unknown key error = %v, want usage error", err)
	}

	out, err = execute(t, "config", "view")
	if err != nil {
		t.Fatalf("config view error = %v", err)
	}
	if !strings.Contains(out, "timeout: 10s") {
		t.Errorf("config view = %q", out)
	}
}

func TestAPICheck(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("api", "check")
	if err != nil {
		t.Fatalf("api check error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "match the bundled contract") {
		t.Errorf("api check output = %q", out)
	}

	out, err = env.run("api", "check", "--remote")
	if err != nil {
		t.Fatalf("api check --remote error = %v\n%s", err, out)
	}
	if !strings.Contains(out, env.url) {
		t.Errorf("remote check output = %q", out)
	}

	out, err = env.run("api", "check", "--list")
	if err != nil {
		t.Fatalf("api check --list error = %v", err)
	}
	if !strings.Contains(out, platform.PathLogin) || !strings.Contains(out, "none") {
		t.Errorf("operation list = %q", out)
	}
}

func TestVersion(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "campus ") {
		t.Errorf("version output = %q", out)
	}

	out, err = execute(t, "version", "-o", "json")
	if err != nil {
		t.Fatalf("version json error = %v", err)
	}
	var info version.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version json = %q: %v", out, err)
	}
	if info.GoVersion == "" || info.Platform == "" {
		t.Errorf("info = %+v", info)
	}
}

func TestCompletion(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())

	out, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion error = %v", err)
	}
	if !strings.Contains(out, "campus") {
		t.Error("bash completion does not mention campus")
	}

	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestLogs(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("logs")
	if err != nil {
		t.Fatalf("logs error = %v", err)
	}
	if !strings.Contains(out, "No log at") {
		t.Errorf("logs before any command = %q", out)
	}

	env.login("alice")
	out, err = env.run("logs", "-n", "50")
	if err != nil {
		t.Fatalf("logs error = %v", err)
	}
	if !strings.Contains(out, "login") {
		t.Errorf("log tail = %q, want login records", out)
	}
}

func TestFormatLogLine(t *testing.T) {
	line := `{"time":"2026-10-17T09:30:00.123Z","level":"INFO","msg":"login succeeded","user":"u1","role":"Teacher"}`
	got := formatLogLine(line)
	want := "2026-10-17 09:30:00 INFO  login succeeded role=Teacher user=u1"
	if got != want {
		t.Errorf("formatLogLine() = %q, want %q", got, want)
	}

	text := `time=2026-10-17T09:30:00Z level=INFO msg="login succeeded"`
	if formatLogLine(text) != text {
		t.Error("text records should pass through")
	}
}

func TestDevServerCommand(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	resetFlags(rootCmd)

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(200*time.Millisecond, cancel)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"dev-server", "--addr", "127.0.0.1:0", "--no-input"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	if err := ExecuteContext(ctx); err != nil {
		t.Fatalf("dev-server error = %v", err)
	}
	for _, want := range []string{"alice", "Learning Advisor", devserver.DefaultPassword, "Server stopped gracefully"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dev-server output missing %q:\n%s", want, out.String())
		}
	}
}

func TestDoctor(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("doctor")
	if err != nil {
		t.Fatalf("doctor error = %v\n%s", err, out)
	}
	for _, want := range []string{"config", "token-store", "backend", "contract", "session", "not signed in", ": degraded"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}

	env.login("alice")
	out, err = env.run("doctor", "-o", "json")
	if err != nil {
		t.Fatalf("doctor json error = %v", err)
	}
	var report doctorReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("doctor json = %q: %v", out, err)
	}
	if report.Status != "healthy" || len(report.Checks) != 5 {
		t.Errorf("report = %+v", report)
	}
}

func TestDoctorUnreachableBackend(t *testing.T) {
	newTestEnv(t)

	_, err := execute(t, "doctor", "--api-url", "http://127.0.0.1:1", "--timeout", "2s")
	if err == nil {
		t.Fatal("expected doctor to fail without a backend")
	}
	if exitcode.DetermineExitCode(err) != exitcode.GeneralError {
		t.Errorf("exit code = %d, want %d", exitcode.DetermineExitCode(err), exitcode.GeneralError)
	}
}
