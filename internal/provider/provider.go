// File: internal/provider/provider.go

// Package provider defines the contract a chat provider implementation
// fulfills: knowing where the application lives, how to recognize an
// authenticated session, how to drive its login flow and how to exchange a
// single prompt for a response.
package provider

import (
	"context"
	"errors"

	"github.com/xkilldash9x/chatpilot/internal/config"
)

// ErrUnknownProvider is returned when a provider name has no implementation.
var ErrUnknownProvider = errors.New("unknown provider")

// OTPSupplier asynchronously obtains a one-time passcode from an external
// channel (mail inbox, device prompt). It is invoked at most once per
// challenge. Without a supplier, hitting an OTP challenge is fatal.
type OTPSupplier func(ctx context.Context) (string, error)

// Provider drives one chat application through its web UI.
type Provider interface {
	// URL is the application root used for authentication probes.
	URL() string
	// ProfileMarker is the locator whose visibility proves an
	// authenticated session.
	ProfileMarker() string
	// Login drives the full login state machine to completion.
	Login(ctx context.Context, creds config.Credentials) error
	// SendPrompt submits one prompt and returns the extracted response.
	SendPrompt(ctx context.Context, text string) (string, error)
}

// Locators maps every logical UI element the flows touch to a concrete CSS
// locator. The zero value of any field means "use the provider's built-in
// default", so callers override only what a UI change actually moved.
type Locators struct {
	// Authenticated-state marker.
	ProfileButton string
	// Landing page login affordance.
	LoginButton string
	// Native email/password form.
	EmailInput       string
	EmailContinue    string
	PasswordInput    string
	PasswordContinue string
	// Federated login entry point (the provider-side button only; the
	// federated identity pages use fixed locators).
	GoogleButton string
	// One-time passcode challenge.
	OTPInput  string
	OTPSubmit string
	// Conversation surface.
	PromptInput      string
	SendButton       string
	StopButton       string
	AssistantMessage string
	MarkdownBody     string
	// Transient dialogs dismissed opportunistically.
	DialogDismiss string
	StayLoggedOut string
}

// Merge overlays non-empty fields of o onto l and returns the result.
func (l Locators) Merge(o Locators) Locators {
	merged := l
	if o.ProfileButton != "" {
		merged.ProfileButton = o.ProfileButton
	}
	if o.LoginButton != "" {
		merged.LoginButton = o.LoginButton
	}
	if o.EmailInput != "" {
		merged.EmailInput = o.EmailInput
	}
	if o.EmailContinue != "" {
		merged.EmailContinue = o.EmailContinue
	}
	if o.PasswordInput != "" {
		merged.PasswordInput = o.PasswordInput
	}
	if o.PasswordContinue != "" {
		merged.PasswordContinue = o.PasswordContinue
	}
	if o.GoogleButton != "" {
		merged.GoogleButton = o.GoogleButton
	}
	if o.OTPInput != "" {
		merged.OTPInput = o.OTPInput
	}
	if o.OTPSubmit != "" {
		merged.OTPSubmit = o.OTPSubmit
	}
	if o.PromptInput != "" {
		merged.PromptInput = o.PromptInput
	}
	if o.SendButton != "" {
		merged.SendButton = o.SendButton
	}
	if o.StopButton != "" {
		merged.StopButton = o.StopButton
	}
	if o.AssistantMessage != "" {
		merged.AssistantMessage = o.AssistantMessage
	}
	if o.MarkdownBody != "" {
		merged.MarkdownBody = o.MarkdownBody
	}
	if o.DialogDismiss != "" {
		merged.DialogDismiss = o.DialogDismiss
	}
	if o.StayLoggedOut != "" {
		merged.StayLoggedOut = o.StayLoggedOut
	}
	return merged
}

// Validate reports an error if any locator the flows depend on resolved to
// an empty string after merging defaults.
func (l Locators) Validate() error {
	required := map[string]string{
		"profile button":    l.ProfileButton,
		"login button":      l.LoginButton,
		"email input":       l.EmailInput,
		"email continue":    l.EmailContinue,
		"password input":    l.PasswordInput,
		"password continue": l.PasswordContinue,
		"google button":     l.GoogleButton,
		"otp input":         l.OTPInput,
		"otp submit":        l.OTPSubmit,
		"prompt input":      l.PromptInput,
		"send button":       l.SendButton,
		"stop button":       l.StopButton,
		"assistant message": l.AssistantMessage,
	}
	for name, loc := range required {
		if loc == "" {
			return errors.New("locator for " + name + " resolved to an empty string")
		}
	}
	return nil
}
