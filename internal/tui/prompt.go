package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// Prompt represents a simple interactive prompt configuration
type Prompt struct {
	Message     string
	Default     string
	Placeholder string
	Required    bool
	// Secret hides the input, for passwords.
	Secret   bool
	Validate func(string) error
}

// validator combines the Required flag with the custom validation.
func (p Prompt) validator() func(string) error {
	return func(s string) error {
		if p.Required && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", strings.ToLower(p.Message))
		}
		if p.Validate != nil {
			return p.Validate(s)
		}
		return nil
	}
}

func (p Prompt) input(value *string) *huh.Input {
	input := huh.NewInput().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Validate(p.validator()).
		Value(value)
	if p.Secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	return input
}

// PromptForString displays an interactive prompt and returns the user's input
func PromptForString(p Prompt) (string, error) {
	value := p.Default

	form := huh.NewForm(huh.NewGroup(p.input(&value)))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(value), nil
}

// PromptForCredentials asks for whichever of username and password is
// still empty, in a single form.
func PromptForCredentials(username, password string) (string, string, error) {
	var fields []huh.Field
	if username == "" {
		fields = append(fields, Prompt{Message: "Username", Placeholder: "alice", Required: true}.input(&username))
	}
	if password == "" {
		fields = append(fields, Prompt{Message: "Password", Required: true, Secret: true}.input(&password))
	}
	if len(fields) == 0 {
		return username, password, nil
	}

	form := huh.NewForm(huh.NewGroup(fields...).Title("Sign in to campus"))
	if err := form.Run(); err != nil {
		return "", "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(username), password, nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
