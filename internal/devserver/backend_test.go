package devserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/campus/internal/contract"
	"github.com/felixgeelhaar/campus/internal/log"
	"github.com/felixgeelhaar/campus/internal/metrics"
	"github.com/felixgeelhaar/campus/internal/platform"
)

func newTestBackend(t *testing.T) (*Backend, *httptest.Server) {
	t.Helper()
	b, err := New(Options{
		Secret:     []byte("test-secret"),
		BcryptCost: bcrypt.MinCost,
		Logger:     log.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	app := httptest.NewServer(b.Router())
	t.Cleanup(app.Close)
	return b, app
}

func doReq(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func login(t *testing.T, app *httptest.Server, username string) platform.LoginResponse {
	t.Helper()
	resp := doReq(t, http.MethodPost, app.URL+platform.PathLogin, "", platform.LoginRequest{
		Username: username,
		Password: DefaultPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", username, resp.StatusCode)
	}
	return decode[platform.LoginResponse](t, resp)
}

func TestLogin(t *testing.T) {
	b, app := newTestBackend(t)

	out := login(t, app, "alice")
	if out.AccessToken == "" || out.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if out.User == nil || out.User.Role != "Teacher" {
		t.Fatalf("expected Teacher user, got %+v", out.User)
	}

	claims, err := b.parseAccessToken(out.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Username != "alice" || claims.EmployeeID != "T-001" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	// Email works as the login name too.
	resp := doReq(t, http.MethodPost, app.URL+platform.PathLogin, "", platform.LoginRequest{
		Username: "MAI@campus.test",
		Password: DefaultPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("email login: expected 200, got %d", resp.StatusCode)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, app := newTestBackend(t)

	tests := []struct {
		name   string
		req    platform.LoginRequest
		status int
	}{
		{"wrong password", platform.LoginRequest{Username: "alice", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", platform.LoginRequest{Username: "zoe", Password: DefaultPassword}, http.StatusUnauthorized},
		{"missing password", platform.LoginRequest{Username: "alice"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doReq(t, http.MethodPost, app.URL+platform.PathLogin, "", tt.req)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			body := decode[map[string]string](t, resp)
			if body["message"] == "" {
				t.Error("expected a message in the error body")
			}
		})
	}
}

func TestRefreshAndLogout(t *testing.T) {
	_, app := newTestBackend(t)
	out := login(t, app, "ben")

	resp := doReq(t, http.MethodPost, app.URL+platform.PathRefresh, out.RefreshToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}
	refreshed := decode[platform.RefreshResponse](t, resp)
	if refreshed.AccessToken == "" {
		t.Fatal("expected a new access token")
	}

	resp = doReq(t, http.MethodPost, app.URL+platform.PathLogout, refreshed.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}

	// Logout revokes every refresh token of the user.
	resp = doReq(t, http.MethodPost, app.URL+platform.PathRefresh, out.RefreshToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", resp.StatusCode)
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	b, app := newTestBackend(t)

	resp := doReq(t, http.MethodGet, app.URL+platform.PathCurrentUser, "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", resp.StatusCode)
	}

	expired, ok := b.IssueAccessToken("alice", -time.Minute)
	if !ok {
		t.Fatal("IssueAccessToken failed")
	}
	resp = doReq(t, http.MethodGet, app.URL+platform.PathCurrentUser, expired, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expired token: expected 401, got %d", resp.StatusCode)
	}

	out := login(t, app, "alice")
	resp = doReq(t, http.MethodGet, app.URL+platform.PathCurrentUser, out.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", resp.StatusCode)
	}
	if me := decode[platform.User](t, resp); me.Username != "alice" {
		t.Errorf("expected alice, got %q", me.Username)
	}
}

func TestListClassesByRole(t *testing.T) {
	_, app := newTestBackend(t)

	teacher := login(t, app, "alice")
	manager := login(t, app, "mai")

	resp := doReq(t, http.MethodGet, app.URL+platform.PathClasses, teacher.AccessToken, nil)
	teacherList := decode[platform.ListClassesResponse](t, resp)
	for _, c := range teacherList.Classes {
		if c.TeacherID != "T-001" {
			t.Errorf("teacher sees a class taught by %q", c.TeacherID)
		}
	}

	resp = doReq(t, http.MethodGet, app.URL+platform.PathClasses+"?page_size=2", manager.AccessToken, nil)
	managerList := decode[platform.ListClassesResponse](t, resp)
	if managerList.TotalCount != 4 {
		t.Errorf("manager should see all 4 classes, got %d", managerList.TotalCount)
	}
	if len(managerList.Classes) != 2 {
		t.Errorf("expected a page of 2, got %d", len(managerList.Classes))
	}
}

func TestForgotPasswordFlow(t *testing.T) {
	b, app := newTestBackend(t)
	email := "alice@campus.test"

	resp := doReq(t, http.MethodPost, app.URL+platform.PathForgotPasswordEmail, "",
		platform.ForgotPasswordEmailRequest{Email: "nobody@campus.test"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown email: expected 404, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+platform.PathForgotPasswordEmail, "",
		platform.ForgotPasswordEmailRequest{Email: email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("email step: expected 200, got %d", resp.StatusCode)
	}
	code, ok := b.ResetCode(email)
	if !ok || len(code) != 6 {
		t.Fatalf("expected a 6 digit code, got %q", code)
	}

	// Reset before verify is rejected.
	resp = doReq(t, http.MethodPost, app.URL+platform.PathForgotPasswordReset, "",
		platform.ForgotPasswordResetRequest{Email: email, VerificationCode: code, NewPassword: "new-password"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reset before verify: expected 400, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+platform.PathForgotPasswordVerify, "",
		platform.ForgotPasswordVerifyRequest{Email: email, VerificationCode: "000000x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong code: expected 400, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+platform.PathForgotPasswordVerify, "",
		platform.ForgotPasswordVerifyRequest{Email: email, VerificationCode: code})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+platform.PathForgotPasswordReset, "",
		platform.ForgotPasswordResetRequest{Email: email, VerificationCode: code, NewPassword: "short"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short password: expected 400, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+platform.PathForgotPasswordReset, "",
		platform.ForgotPasswordResetRequest{Email: email, VerificationCode: code, NewPassword: "new-password"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+platform.PathLogin, "",
		platform.LoginRequest{Username: "alice", Password: "new-password"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", resp.StatusCode)
	}
	if _, ok := b.ResetCode(email); ok {
		t.Error("code should be consumed after reset")
	}
}

func TestFailNext(t *testing.T) {
	b, app := newTestBackend(t)
	b.FailNext(platform.PathLogin, http.StatusServiceUnavailable)

	resp := doReq(t, http.MethodPost, app.URL+platform.PathLogin, "",
		platform.LoginRequest{Username: "alice", Password: DefaultPassword})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected injected 503, got %d", resp.StatusCode)
	}

	login(t, app, "alice")
	if got := b.Calls(platform.PathLogin); got != 2 {
		t.Errorf("expected 2 login calls, got %d", got)
	}
}

func TestServerHealthAndShutdown(t *testing.T) {
	b, _ := newTestBackend(t)
	s := NewServer(b, Config{Address: "127.0.0.1:0"})

	app := httptest.NewServer(s.Handler())
	defer app.Close()

	resp := doReq(t, http.MethodGet, app.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}

	// API routes are mounted beside the health endpoint.
	resp = doReq(t, http.MethodPost, app.URL+platform.PathLogin, "",
		platform.LoginRequest{Username: "alice", Password: DefaultPassword})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login through server: expected 200, got %d", resp.StatusCode)
	}

	if err := s.Shutdown(t.Context()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !s.IsShuttingDown() {
		t.Error("expected shutting down state")
	}
	resp = doReq(t, http.MethodGet, app.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("health after shutdown: expected 503, got %d", resp.StatusCode)
	}
}

func TestServerDefaults(t *testing.T) {
	b, _ := newTestBackend(t)
	s := NewServer(b, Config{Address: ":0"})

	if s.shutdownTimeout != 5*time.Second {
		t.Errorf("default shutdown timeout: expected 5s, got %v", s.shutdownTimeout)
	}
	if s.httpServer.ReadTimeout != 10*time.Second {
		t.Errorf("default read timeout: expected 10s, got %v", s.httpServer.ReadTimeout)
	}
	if s.httpServer.IdleTimeout != 60*time.Second {
		t.Errorf("default idle timeout: expected 60s, got %v", s.httpServer.IdleTimeout)
	}
}

func TestServerPublishesContract(t *testing.T) {
	b, _ := newTestBackend(t)
	app := httptest.NewServer(NewServer(b, Config{}).Handler())
	defer app.Close()

	resp := doReq(t, http.MethodGet, app.URL+contract.DocumentPath, "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("document: expected 200, got %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !bytes.Equal(data, contract.Document()) {
		t.Error("served document differs from the embedded contract")
	}
}

func TestMetricsCountAuthEvents(t *testing.T) {
	b, app := newTestBackend(t)

	login(t, app, "alice")
	doReq(t, http.MethodPost, app.URL+platform.PathLogin, "",
		platform.LoginRequest{Username: "alice", Password: "nope"})
	b.FailNext(platform.PathClasses, http.StatusServiceUnavailable)
	doReq(t, http.MethodGet, app.URL+platform.PathClasses, "", nil)

	m := b.metrics
	if got := testutil.ToFloat64(m.Logins.WithLabelValues(metrics.OutcomeSuccess)); got != 1 {
		t.Errorf("successful logins = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Logins.WithLabelValues(metrics.OutcomeRejected)); got != 1 {
		t.Errorf("rejected logins = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TokensIssued.WithLabelValues("refresh")); got != 1 {
		t.Errorf("refresh tokens issued = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InjectedFailures.WithLabelValues(platform.PathClasses, "503")); got != 1 {
		t.Errorf("injected failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodPost, platform.PathLogin, "401")); got != 1 {
		t.Errorf("401 login requests = %v, want 1", got)
	}
}

func TestServerExposesMetrics(t *testing.T) {
	b, _ := newTestBackend(t)
	app := httptest.NewServer(NewServer(b, Config{}).Handler())
	defer app.Close()

	doReq(t, http.MethodPost, app.URL+platform.PathLogin, "",
		platform.LoginRequest{Username: "ben", Password: DefaultPassword})

	resp := doReq(t, http.MethodGet, app.URL+"/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{
		`campus_devserver_logins_total{outcome="success"} 1`,
		"campus_devserver_request_duration_seconds",
		"go_goroutines",
	} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
