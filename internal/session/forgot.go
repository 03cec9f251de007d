package session

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/tokenstore"
)

// MinPasswordLength is the shortest password the reset step accepts.
const MinPasswordLength = 8

// Step is the position in the forgot-password flow.
type Step int

const (
	StepEmail Step = iota + 1
	StepCode
	StepPassword
)

func (s Step) String() string {
	switch s {
	case StepEmail:
		return "email"
	case StepCode:
		return "code"
	case StepPassword:
		return "password"
	default:
		return "unknown"
	}
}

// ForgotPasswordFlow tracks an unfinished password reset. Step only moves
// forward after the backend accepts the current step.
type ForgotPasswordFlow struct {
	Email            string
	VerificationCode string
	Step             Step
}

func newFlow() ForgotPasswordFlow {
	return ForgotPasswordFlow{Step: StepEmail}
}

// Flow keys live in the auth namespace so ClearAll drops them. Persisting
// the flow lets the CLI run each step as a separate invocation.
const (
	keyFlowEmail = tokenstore.Namespace + "forgot_password.email"
	keyFlowCode  = tokenstore.Namespace + "forgot_password.code"
	keyFlowStep  = tokenstore.Namespace + "forgot_password.step"
)

func loadFlow(store tokenstore.Store) ForgotPasswordFlow {
	f := newFlow()
	raw, ok := store.Get(keyFlowStep)
	if !ok {
		return f
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < int(StepEmail) || n > int(StepPassword) {
		return f
	}
	f.Step = Step(n)
	f.Email, _ = store.Get(keyFlowEmail)
	f.VerificationCode, _ = store.Get(keyFlowCode)
	if (f.Step >= StepCode && f.Email == "") || (f.Step == StepPassword && f.VerificationCode == "") {
		return newFlow()
	}
	return f
}

func saveFlow(store tokenstore.Store, f ForgotPasswordFlow) {
	if f.Step == StepEmail {
		store.Remove(keyFlowEmail)
		store.Remove(keyFlowCode)
		store.Remove(keyFlowStep)
		return
	}
	store.Set(keyFlowEmail, f.Email)
	if f.VerificationCode != "" {
		store.Set(keyFlowCode, f.VerificationCode)
	} else {
		store.Remove(keyFlowCode)
	}
	store.Set(keyFlowStep, strconv.Itoa(int(f.Step)))
}

// ForgotPassword returns the current flow.
func (c *Controller) ForgotPassword() ForgotPasswordFlow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flow
}

// ResetForgotPasswordFlow abandons the flow and clears the error.
func (c *Controller) ResetForgotPasswordFlow() {
	c.mu.Lock()
	c.flow = newFlow()
	c.mu.Unlock()
	saveFlow(c.store, newFlow())
	c.setState(func(s *State) { s.Error = "" })
}

func (c *Controller) setFlow(f ForgotPasswordFlow) {
	c.mu.Lock()
	c.flow = f
	c.mu.Unlock()
	saveFlow(c.store, f)
}

// rejectStep records a local validation failure without touching the flow.
func (c *Controller) rejectStep(err *errors.CampusError) error {
	c.setState(func(s *State) { s.Error = err.Message })
	return err
}

func outOfOrder(want, got Step) *errors.CampusError {
	return errors.New(errors.ErrCodeStepOutOfOrder,
		fmt.Sprintf("forgot-password flow is at the %s step, not the %s step", got, want)).
		WithSuggestion("Restart with 'campus auth forgot-password --restart'")
}

// SendForgotPasswordEmail requests a verification code for email. It is
// accepted at the email step, and at the code step to resend.
func (c *Controller) SendForgotPasswordEmail(ctx context.Context, email string) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	flow := c.ForgotPassword()
	if flow.Step != StepEmail && flow.Step != StepCode {
		return c.rejectStep(outOfOrder(StepEmail, flow.Step))
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return c.rejectStep(errors.NewValidationError("email", "is required"))
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return c.rejectStep(errors.NewValidationError("email", "is not a valid address"))
	}

	if err := c.runStep(ctx, func(ctx context.Context) error {
		return c.backend.SendForgotPasswordEmail(ctx, email)
	}); err != nil {
		return err
	}

	c.setFlow(ForgotPasswordFlow{Email: email, Step: StepCode})
	c.logger.Info("verification code requested", "step", StepCode.String())
	return nil
}

// VerifyForgotPasswordCode checks the emailed code.
func (c *Controller) VerifyForgotPasswordCode(ctx context.Context, code string) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	flow := c.ForgotPassword()
	if flow.Step != StepCode {
		return c.rejectStep(outOfOrder(StepCode, flow.Step))
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return c.rejectStep(errors.NewValidationError("verification code", "is required"))
	}

	if err := c.runStep(ctx, func(ctx context.Context) error {
		return c.backend.VerifyForgotPasswordCode(ctx, flow.Email, code)
	}); err != nil {
		return err
	}

	flow.VerificationCode = code
	flow.Step = StepPassword
	c.setFlow(flow)
	return nil
}

// ResetForgottenPassword sets the new password. On success the flow starts
// over and the user is sent to login.
func (c *Controller) ResetForgottenPassword(ctx context.Context, newPassword string) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	flow := c.ForgotPassword()
	if flow.Step != StepPassword {
		return c.rejectStep(outOfOrder(StepPassword, flow.Step))
	}
	if len(newPassword) < MinPasswordLength {
		return c.rejectStep(errors.NewValidationError("password",
			fmt.Sprintf("must be at least %d characters", MinPasswordLength)))
	}

	if err := c.runStep(ctx, func(ctx context.Context) error {
		return c.backend.ResetForgottenPassword(ctx, flow.Email, flow.VerificationCode, newPassword)
	}); err != nil {
		return err
	}

	c.setFlow(newFlow())
	c.logger.Info("password reset completed")
	c.navigator().Navigate(Location{Path: LoginPath})
	return nil
}

func (c *Controller) runStep(ctx context.Context, call func(context.Context) error) error {
	c.setState(func(s *State) {
		s.IsLoading = true
		s.Error = ""
	})
	if err := call(ctx); err != nil {
		return c.fail("forgot-password step failed", err)
	}
	c.setState(func(s *State) { s.IsLoading = false })
	return nil
}
