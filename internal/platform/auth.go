package platform

import (
	"context"
	"net/http"
)

// Endpoint paths.
const (
	PathLogin                = "/auth/login"
	PathLogout               = "/logout"
	PathRefresh              = "/refresh"
	PathForgotPasswordEmail  = "/forgot-password/email"
	PathForgotPasswordVerify = "/forgot-password/verify"
	PathForgotPasswordReset  = "/forgot-password/reset"
	PathCurrentUser          = "/users/me"
	PathClasses              = "/classes"
)

// Endpoint describes one operation the client performs.
type Endpoint struct {
	Method string
	Path   string
	// Anonymous endpoints do not require an access token.
	Anonymous bool
}

// Endpoints lists every call the client makes. The contract check validates
// it against the backend's OpenAPI document.
var Endpoints = []Endpoint{
	{Method: http.MethodPost, Path: PathLogin, Anonymous: true},
	{Method: http.MethodPost, Path: PathLogout},
	{Method: http.MethodPost, Path: PathRefresh, Anonymous: true},
	{Method: http.MethodPost, Path: PathForgotPasswordEmail, Anonymous: true},
	{Method: http.MethodPost, Path: PathForgotPasswordVerify, Anonymous: true},
	{Method: http.MethodPost, Path: PathForgotPasswordReset, Anonymous: true},
	{Method: http.MethodGet, Path: PathCurrentUser},
	{Method: http.MethodGet, Path: PathClasses},
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// RefreshResponse carries the new access token. Backends that rotate
// refresh tokens also return a new refresh token.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// User represents a backend user
type User struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id,omitempty"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"full_name,omitempty"`
	Role       string `json:"role"`
}

// ForgotPasswordEmailRequest starts the reset flow.
type ForgotPasswordEmailRequest struct {
	Email string `json:"email"`
}

// ForgotPasswordVerifyRequest confirms the emailed code.
type ForgotPasswordVerifyRequest struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verification_code"`
}

// ForgotPasswordResetRequest sets the new password.
type ForgotPasswordResetRequest struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verification_code"`
	NewPassword      string `json:"new_password"`
}

// Login authenticates with the backend and returns tokens. A 401 here means
// bad credentials, so it never triggers the unauthorized hook.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	req := LoginRequest{
		Username: username,
		Password: password,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, PathLogin, req, requestOptions{anonymous: true})
	if err != nil {
		return nil, err
	}

	var loginResp LoginResponse
	if err := parseResponse(resp, &loginResp); err != nil {
		return nil, err
	}
	return &loginResp, nil
}

// Logout tells the backend to end the session. Callers treat it as
// best-effort; the local session ends regardless.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, PathLogout, nil, requestOptions{anonymous: true})
	if err != nil {
		return err
	}
	return parseResponse(resp, nil)
}

// Refresh exchanges the refresh token, sent as the bearer credential, for a
// new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, PathRefresh, nil, requestOptions{
		bearer:    refreshToken,
		anonymous: true,
	})
	if err != nil {
		return nil, err
	}

	var refreshResp RefreshResponse
	if err := parseResponse(resp, &refreshResp); err != nil {
		return nil, err
	}
	return &refreshResp, nil
}

// SendForgotPasswordEmail asks the backend to email a verification code.
func (c *Client) SendForgotPasswordEmail(ctx context.Context, email string) error {
	return c.postAnonymous(ctx, PathForgotPasswordEmail, ForgotPasswordEmailRequest{Email: email})
}

// VerifyForgotPasswordCode checks the emailed code.
func (c *Client) VerifyForgotPasswordCode(ctx context.Context, email, code string) error {
	return c.postAnonymous(ctx, PathForgotPasswordVerify, ForgotPasswordVerifyRequest{
		Email:            email,
		VerificationCode: code,
	})
}

// ResetForgottenPassword sets a new password using a verified code.
func (c *Client) ResetForgottenPassword(ctx context.Context, email, code, newPassword string) error {
	return c.postAnonymous(ctx, PathForgotPasswordReset, ForgotPasswordResetRequest{
		Email:            email,
		VerificationCode: code,
		NewPassword:      newPassword,
	})
}

func (c *Client) postAnonymous(ctx context.Context, path string, body any) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body, requestOptions{anonymous: true})
	if err != nil {
		return err
	}
	return parseResponse(resp, nil)
}

// CurrentUser retrieves the currently authenticated user
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, PathCurrentUser, nil, requestOptions{})
	if err != nil {
		return nil, err
	}

	var user User
	if err := parseResponse(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
