package devserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/campus/internal/metrics"
	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/role"
)

// MinPasswordLength matches the client-side check.
const MinPasswordLength = 8

func toUser(acc *account) platform.User {
	return platform.User{
		ID:         acc.ID,
		EmployeeID: acc.EmployeeID,
		Username:   acc.Username,
		Email:      acc.Email,
		FullName:   acc.FullName,
		Role:       acc.Role.String(),
	}
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req platform.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Malformed login request")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "Username and password are required")
		return
	}

	acc, ok := b.accounts.lookup(req.Username)
	if !ok || !b.accounts.checkPassword(acc, req.Password) {
		b.metrics.Logins.WithLabelValues(metrics.OutcomeRejected).Inc()
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}

	access, err := b.newAccessToken(acc, b.accessTokenTTL())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Could not issue token")
		return
	}
	refresh, err := newRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Could not issue token")
		return
	}
	b.refresh.SetDefault(hashToken(refresh), acc.Username)
	b.metrics.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()
	b.metrics.TokensIssued.WithLabelValues("access").Inc()
	b.metrics.TokensIssued.WithLabelValues("refresh").Inc()

	b.logger.Info("login", "username", acc.Username, "role", acc.Role.String())
	user := toUser(acc)
	writeJSON(w, http.StatusOK, platform.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         &user,
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refresh := bearerToken(r.Header.Get("Authorization"))
	if refresh == "" {
		writeError(w, http.StatusUnauthorized, "missing_refresh_token", "Refresh token required")
		return
	}

	v, ok := b.refresh.Get(hashToken(refresh))
	if !ok {
		b.metrics.Refreshes.WithLabelValues(metrics.OutcomeRejected).Inc()
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "Refresh token is invalid or expired")
		return
	}
	acc, ok := b.accounts.lookup(v.(string))
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "Refresh token is invalid or expired")
		return
	}

	access, err := b.newAccessToken(acc, b.accessTokenTTL())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Could not issue token")
		return
	}
	b.metrics.Refreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	b.metrics.TokensIssued.WithLabelValues("access").Inc()
	writeJSON(w, http.StatusOK, platform.RefreshResponse{AccessToken: access})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return
	}
	b.revokeRefreshTokens(claims.Username)
	b.metrics.Logouts.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Backend) revokeRefreshTokens(username string) {
	for key, item := range b.refresh.Items() {
		if item.Object == username {
			b.refresh.Delete(key)
		}
	}
}

func (b *Backend) handleForgotPasswordEmail(w http.ResponseWriter, r *http.Request) {
	var req platform.ForgotPasswordEmailRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Email is required")
		return
	}

	acc, ok := b.accounts.lookup(req.Email)
	if !ok || !strings.EqualFold(acc.Email, strings.TrimSpace(req.Email)) {
		b.metrics.PasswordResetSteps.WithLabelValues("email", metrics.OutcomeRejected).Inc()
		writeError(w, http.StatusNotFound, "email_not_found", "No account is registered with this email")
		return
	}

	code, err := newVerificationCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Could not create verification code")
		return
	}
	b.resetCodes.SetDefault(acc.Email, &resetState{code: code})
	b.metrics.PasswordResetSteps.WithLabelValues("email", metrics.OutcomeSuccess).Inc()
	b.logger.Info("verification code issued", "email", acc.Email, "code", code)
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (b *Backend) handleForgotPasswordVerify(w http.ResponseWriter, r *http.Request) {
	var req platform.ForgotPasswordVerifyRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.VerificationCode == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Email and verification code are required")
		return
	}

	state, ok := b.pendingReset(req.Email, req.VerificationCode)
	if !ok {
		b.metrics.PasswordResetSteps.WithLabelValues("verify", metrics.OutcomeRejected).Inc()
		writeError(w, http.StatusBadRequest, "invalid_code", "Verification code is invalid or expired")
		return
	}
	b.resetCodes.SetDefault(normalizeEmail(req.Email), &resetState{code: state.code, verified: true})
	b.metrics.PasswordResetSteps.WithLabelValues("verify", metrics.OutcomeSuccess).Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (b *Backend) handleForgotPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req platform.ForgotPasswordResetRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.VerificationCode == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Email, verification code and new password are required")
		return
	}
	if len(req.NewPassword) < MinPasswordLength {
		writeError(w, http.StatusBadRequest, "weak_password",
			"Password must be at least "+strconv.Itoa(MinPasswordLength)+" characters")
		return
	}

	state, ok := b.pendingReset(req.Email, req.VerificationCode)
	if !ok || !state.verified {
		b.metrics.PasswordResetSteps.WithLabelValues("reset", metrics.OutcomeRejected).Inc()
		writeError(w, http.StatusBadRequest, "invalid_code", "Verification code is invalid or expired")
		return
	}
	acc, ok := b.accounts.lookup(req.Email)
	if !ok {
		writeError(w, http.StatusNotFound, "email_not_found", "No account is registered with this email")
		return
	}
	if err := b.accounts.setPassword(acc, req.NewPassword); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Could not update password")
		return
	}

	b.resetCodes.Delete(acc.Email)
	b.revokeRefreshTokens(acc.Username)
	b.metrics.PasswordResetSteps.WithLabelValues("reset", metrics.OutcomeSuccess).Inc()
	b.logger.Info("password reset", "username", acc.Username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (b *Backend) pendingReset(email, code string) (*resetState, bool) {
	v, ok := b.resetCodes.Get(normalizeEmail(email))
	if !ok {
		return nil, false
	}
	state := v.(*resetState)
	if state.code != strings.TrimSpace(code) {
		return nil, false
	}
	return state, true
}

func (b *Backend) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	acc, ok := b.accounts.lookup(claims.Username)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown_user", "Account no longer exists")
		return
	}
	writeJSON(w, http.StatusOK, toUser(acc))
}

func (b *Backend) handleListClasses(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	visible := make([]platform.Class, 0, len(b.classes))
	for _, c := range b.classes {
		if role.Parse(claims.Role) == role.Teacher && c.TeacherID != claims.EmployeeID {
			continue
		}
		visible = append(visible, c)
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	start := (page - 1) * pageSize
	if start > len(visible) {
		start = len(visible)
	}
	end := start + pageSize
	if end > len(visible) {
		end = len(visible)
	}

	writeJSON(w, http.StatusOK, platform.ListClassesResponse{
		Classes:    visible[start:end],
		TotalCount: len(visible),
		Page:       page,
		PageSize:   pageSize,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
