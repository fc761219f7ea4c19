// File: internal/provider/chatgpt/chatgpt.go

// Package chatgpt drives the ChatGPT web application. The login flow is a
// small state machine: check for an existing session, enter through the
// landing page, submit credentials (native email/password or federated
// Google), then poll for either the authenticated marker or an OTP
// challenge.
package chatgpt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/provider"
)

const applicationURL = "https://chatgpt.com/"

// Locators for the federated Google identity pages. These live outside the
// ChatGPT UI and are not expected to be customized, so they are fixed.
const (
	googleEmailInput    = `input[type="email"]`
	googleEmailNext     = `#identifierNext`
	googlePasswordInput = `input[type="password"]`
	googlePasswordNext  = `#passwordNext`
)

// defaultLocators are the baked-in element locators for the current ChatGPT
// UI. Every field can be overridden through provider.Locators.
var defaultLocators = provider.Locators{
	ProfileButton:    `[data-testid="profile-button"]`,
	LoginButton:      `[data-testid="login-button"]`,
	EmailInput:       `input[name="email"]`,
	EmailContinue:    `button[type="submit"]`,
	PasswordInput:    `input[name="password"]`,
	PasswordContinue: `button[type="submit"]`,
	GoogleButton:     `button[data-provider="google"]`,
	OTPInput:         `input[name="code"]`,
	OTPSubmit:        `button[type="submit"]`,
	PromptInput:      `#prompt-textarea`,
	SendButton:       `[data-testid="send-button"]`,
	StopButton:       `[data-testid="stop-button"]`,
	AssistantMessage: `[data-message-author-role="assistant"]`,
	MarkdownBody:     `div.markdown`,
	DialogDismiss:    `div[role="dialog"] button[aria-label="Close"]`,
	StayLoggedOut:    `[data-testid="stay-logged-out"]`,
}

// timings collects every bounded wait in the flows. Tests shrink these.
type timings struct {
	existingWait   time.Duration // CHECK_EXISTING marker bound
	uiWait         time.Duration // strict waits on credential-entry elements
	pollInterval   time.Duration // AWAIT_RESULT tick
	pollAttempts   int           // AWAIT_RESULT iterations
	finalWait      time.Duration // post-poll and post-OTP marker bound
	indicatorWait  time.Duration // stop-indicator appearance bound
	generationWait time.Duration // stop-indicator disappearance bound
	extractWait    time.Duration // assistant-message appearance bound
	sendGrace      time.Duration // grace before clicking a briefly disabled send control
}

func defaultTimings() timings {
	return timings{
		existingWait:   3 * time.Second,
		uiWait:         10 * time.Second,
		pollInterval:   time.Second,
		pollAttempts:   30,
		finalWait:      30 * time.Second,
		indicatorWait:  5 * time.Second,
		generationWait: 120 * time.Second,
		extractWait:    5 * time.Second,
		sendGrace:      time.Second,
	}
}

// Options configures a Provider instance.
type Options struct {
	// Locators overrides individual element locators; empty fields keep
	// the baked-in defaults.
	Locators provider.Locators
	Logger   *zap.Logger
	// OTP supplies a one-time passcode when the login flow hits a
	// second-factor challenge. Optional; without it, an OTP challenge is
	// fatal.
	OTP provider.OTPSupplier
	// ScreenshotDir receives diagnostic screenshots taken on fatal login
	// failures. Defaults to the system temp directory.
	ScreenshotDir string
}

// Provider implements provider.Provider for the ChatGPT web UI.
type Provider struct {
	page          browser.Page
	logger        *zap.Logger
	loc           provider.Locators
	otp           provider.OTPSupplier
	screenshotDir string
	timing        timings
}

var _ provider.Provider = (*Provider)(nil)

// New builds a ChatGPT provider around an already started page.
func New(page browser.Page, opts Options) (*Provider, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := defaultLocators.Merge(opts.Locators)
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid locator configuration: %w", err)
	}
	dir := opts.ScreenshotDir
	if dir == "" {
		dir = os.TempDir()
	}
	return &Provider{
		page:          page,
		logger:        logger.Named("chatgpt"),
		loc:           loc,
		otp:           opts.OTP,
		screenshotDir: dir,
		timing:        defaultTimings(),
	}, nil
}

// URL returns the application root.
func (p *Provider) URL() string { return applicationURL }

// ProfileMarker returns the locator proving an authenticated session.
func (p *Provider) ProfileMarker() string { return p.loc.ProfileButton }

// Login drives the login state machine to completion. On any fatal failure
// a diagnostic screenshot is captured before the error propagates, because
// the UI state at failure time is otherwise unrecoverable.
func (p *Provider) Login(ctx context.Context, creds config.Credentials) error {
	if err := p.login(ctx, creds); err != nil {
		p.captureFailureScreenshot(ctx)
		return err
	}
	return nil
}

func (p *Provider) login(ctx context.Context, creds config.Credentials) error {
	// CHECK_EXISTING: the profile directory may already carry a session.
	if err := p.page.Navigate(ctx, applicationURL); err != nil {
		return fmt.Errorf("failed to open application root: %w", err)
	}
	p.dismissTransientDialogs(ctx)

	if p.markerVisibleWithin(ctx, p.timing.existingWait) {
		p.logger.Info("Existing session detected; skipping login.")
		return nil
	}

	// LANDING: there is no fallback entry point, so a missing login
	// button is fatal.
	if err := p.page.WaitFor(ctx, p.loc.LoginButton, browser.WaitOptions{
		Timeout: p.timing.uiWait,
		State:   browser.StateVisible,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginUI, err)
	}
	if err := p.page.Click(ctx, p.loc.LoginButton); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginUI, err)
	}

	// CREDENTIAL_ENTRY.
	p.logger.Info("Submitting credentials.", zap.String("method", creds.Method))
	switch creds.Method {
	case "", "email":
		if err := p.enterEmailCredentials(ctx, creds); err != nil {
			return err
		}
	case "google":
		if err := p.enterGoogleCredentials(ctx, creds); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported login method %q", creds.Method)
	}

	// AWAIT_RESULT: race the authenticated marker against an OTP
	// challenge, one probe per tick.
	for i := 0; i < p.timing.pollAttempts; i++ {
		if visible, err := p.page.IsVisible(ctx, p.loc.ProfileButton); err == nil && visible {
			p.logger.Info("Login completed.")
			return nil
		}
		if visible, err := p.page.IsVisible(ctx, p.loc.OTPInput); err == nil && visible {
			return p.solveOTPChallenge(ctx)
		}
		if err := sleepCtx(ctx, p.timing.pollInterval); err != nil {
			return err
		}
	}

	// Neither outcome showed up during polling; one last bounded wait on
	// the marker before declaring failure.
	if err := p.page.WaitFor(ctx, p.loc.ProfileButton, browser.WaitOptions{
		Timeout: p.timing.finalWait,
		State:   browser.StateVisible,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginTimeout, err)
	}
	p.logger.Info("Login completed.")
	return nil
}

// enterEmailCredentials walks the native email/password form in strict
// sequence. Each field is waited for before filling; absence here means a
// genuine UI or credential problem, not a transient.
func (p *Provider) enterEmailCredentials(ctx context.Context, creds config.Credentials) error {
	if err := p.page.WaitFor(ctx, p.loc.EmailInput, browser.WaitOptions{
		Timeout: p.timing.uiWait,
		State:   browser.StateVisible,
	}); err != nil {
		return fmt.Errorf("email field did not appear: %w", err)
	}
	if err := p.page.Fill(ctx, p.loc.EmailInput, creds.Email); err != nil {
		return fmt.Errorf("failed to fill email: %w", err)
	}
	if err := p.page.Click(ctx, p.loc.EmailContinue); err != nil {
		return fmt.Errorf("failed to advance past email: %w", err)
	}

	if err := p.page.WaitFor(ctx, p.loc.PasswordInput, browser.WaitOptions{
		Timeout: p.timing.uiWait,
		State:   browser.StateVisible,
	}); err != nil {
		return fmt.Errorf("password field did not appear: %w", err)
	}
	if err := p.page.Fill(ctx, p.loc.PasswordInput, creds.Password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	if err := p.page.Click(ctx, p.loc.PasswordContinue); err != nil {
		return fmt.Errorf("failed to submit password: %w", err)
	}
	return nil
}

// enterGoogleCredentials hands off to the federated Google pages. Those
// pages are outside the ChatGPT UI, so their locators are fixed.
func (p *Provider) enterGoogleCredentials(ctx context.Context, creds config.Credentials) error {
	if err := p.page.Click(ctx, p.loc.GoogleButton); err != nil {
		return fmt.Errorf("failed to open federated login: %w", err)
	}

	if err := p.page.WaitFor(ctx, googleEmailInput, browser.WaitOptions{
		Timeout: p.timing.uiWait,
		State:   browser.StateVisible,
	}); err != nil {
		return fmt.Errorf("federated email field did not appear: %w", err)
	}
	if err := p.page.Fill(ctx, googleEmailInput, creds.Email); err != nil {
		return fmt.Errorf("failed to fill federated email: %w", err)
	}
	if err := p.page.Click(ctx, googleEmailNext); err != nil {
		return fmt.Errorf("failed to advance federated email: %w", err)
	}

	if err := p.page.WaitFor(ctx, googlePasswordInput, browser.WaitOptions{
		Timeout: p.timing.uiWait,
		State:   browser.StateVisible,
	}); err != nil {
		return fmt.Errorf("federated password field did not appear: %w", err)
	}
	if err := p.page.Fill(ctx, googlePasswordInput, creds.Password); err != nil {
		return fmt.Errorf("failed to fill federated password: %w", err)
	}
	if err := p.page.Click(ctx, googlePasswordNext); err != nil {
		return fmt.Errorf("failed to submit federated password: %w", err)
	}
	return nil
}

// solveOTPChallenge answers a one-time passcode prompt using the injected
// supplier. No supplier configured means the challenge cannot be answered.
func (p *Provider) solveOTPChallenge(ctx context.Context) error {
	if p.otp == nil {
		return ErrOTPUnavailable
	}
	p.logger.Info("One-time passcode challenge detected; requesting code.")

	code, err := p.otp(ctx)
	if err != nil {
		return fmt.Errorf("otp supplier failed: %w", err)
	}
	if err := p.page.Fill(ctx, p.loc.OTPInput, code); err != nil {
		return fmt.Errorf("failed to fill passcode: %w", err)
	}
	if err := p.page.Click(ctx, p.loc.OTPSubmit); err != nil {
		return fmt.Errorf("failed to submit passcode: %w", err)
	}

	if err := p.page.WaitFor(ctx, p.loc.ProfileButton, browser.WaitOptions{
		Timeout: p.timing.finalWait,
		State:   browser.StateVisible,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginTimeout, err)
	}
	p.logger.Info("Login completed after passcode.")
	return nil
}

// markerVisibleWithin waits briefly for the authenticated marker. Used only
// where absence is an expected outcome, not an error.
func (p *Provider) markerVisibleWithin(ctx context.Context, bound time.Duration) bool {
	err := p.page.WaitFor(ctx, p.loc.ProfileButton, browser.WaitOptions{
		Timeout: bound,
		State:   browser.StateVisible,
	})
	return err == nil
}

// dismissTransientDialogs closes the interstitials the UI occasionally
// shows (upsell banner, temporary-chat notice). Their absence is the common
// case, so every step here is try/ignore. Dialogs can reappear across
// turns, which is why this runs before every interaction.
func (p *Provider) dismissTransientDialogs(ctx context.Context) {
	for _, locator := range []string{p.loc.DialogDismiss, p.loc.StayLoggedOut} {
		if locator == "" {
			continue
		}
		visible, err := p.page.IsVisible(ctx, locator)
		if err != nil || !visible {
			continue
		}
		if err := p.page.Click(ctx, locator); err != nil {
			p.logger.Debug("Transient dialog dismissal failed.",
				zap.String("locator", locator), zap.Error(err))
		}
	}
}

// captureFailureScreenshot records the UI state at login-failure time.
func (p *Provider) captureFailureScreenshot(ctx context.Context) {
	name := fmt.Sprintf("chatpilot-login-failure-%d.png", time.Now().Unix())
	path := filepath.Join(p.screenshotDir, name)
	if err := p.page.Screenshot(ctx, path); err != nil {
		p.logger.Warn("Could not capture failure screenshot.", zap.Error(err))
		return
	}
	p.logger.Error("Login failed; diagnostic screenshot captured.", zap.String("path", path))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
