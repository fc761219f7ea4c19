// File: internal/automator/automator.go

// Package automator is the top-level orchestration layer. It owns the
// session store, constructs the selected provider, reconciles authentication
// state on startup and serializes prompt traffic to the single browsing
// context.
package automator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/provider"
	"github.com/xkilldash9x/chatpilot/internal/provider/chatgpt"
	"github.com/xkilldash9x/chatpilot/internal/session"
)

// ErrNotInitialized is returned when prompts are issued before a successful
// Init or after Close.
var ErrNotInitialized = errors.New("automator not initialized: call Init first")

// Options configures an Automator.
type Options struct {
	// Provider names the chat application to drive. Defaults to "chatgpt".
	Provider string
	// Headless controls browser visibility. Logins with interactive
	// challenges usually need a headed browser.
	Headless bool
	// Credentials explicitly supplied by the caller. Empty fields fall
	// back to the environment.
	Credentials config.Credentials
	// SessionPath names the exported session-state file. Empty disables
	// both import and export.
	SessionPath string
	// Locators overrides provider UI locators for a changed frontend.
	Locators provider.Locators
	// OTP answers one-time passcode challenges during login.
	OTP provider.OTPSupplier
	// ScreenshotDir receives login-failure diagnostics.
	ScreenshotDir string

	Browser config.BrowserConfig
	Logger  *zap.Logger
}

// Automator drives one chat provider end to end. All methods are safe for
// concurrent use; prompt traffic is serialized because there is exactly one
// underlying conversation surface.
type Automator struct {
	opts   Options
	logger *zap.Logger
	store  *session.Store

	mu       sync.Mutex
	provider provider.Provider
	closed   bool
}

// New creates an Automator. No browser resources are acquired until Init.
func New(opts Options) *Automator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Provider == "" {
		opts.Provider = "chatgpt"
	}
	// Every run gets an identifier so interleaved log streams from
	// multiple invocations stay attributable.
	runID := uuid.New().String()
	logger = logger.With(zap.String("run_id", runID))
	return &Automator{
		opts:   opts,
		logger: logger.Named("automator"),
		store:  session.NewStore(opts.Browser, logger),
	}
}

// Store exposes the session store, primarily so callers can substitute a
// launcher in tests.
func (a *Automator) Store() *session.Store {
	return a.store
}

// Init starts the browser, restores any persisted session and logs in when
// the restored state is not authenticated. Credentials are resolved before
// any browser resource is touched, so a configuration mistake fails fast.
func (a *Automator) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.provider != nil {
		return nil
	}
	if a.closed {
		return ErrNotInitialized
	}

	if a.opts.Provider != "chatgpt" {
		return fmt.Errorf("%w: %q", provider.ErrUnknownProvider, a.opts.Provider)
	}
	creds, err := config.ResolveCredentials(a.opts.Credentials)
	if err != nil {
		return err
	}

	page, err := a.store.Start(ctx, a.opts.Headless, a.opts.SessionPath)
	if err != nil {
		return err
	}
	if err := page.GrantClipboardPermissions(ctx); err != nil {
		a.logger.Debug("Clipboard permission grant failed.", zap.Error(err))
	}

	prov, err := chatgpt.New(page, chatgpt.Options{
		Locators:      a.opts.Locators,
		Logger:        a.logger,
		OTP:           a.opts.OTP,
		ScreenshotDir: a.opts.ScreenshotDir,
	})
	if err != nil {
		a.teardownLocked()
		return err
	}

	if a.store.IsAuthenticated(ctx, prov.URL(), prov.ProfileMarker()) {
		a.logger.Info("Restored session is authenticated.")
		a.provider = prov
		return nil
	}

	a.logger.Info("No authenticated session; starting login.",
		zap.String("provider", a.opts.Provider),
		zap.String("method", creds.Method))
	if err := prov.Login(ctx, creds); err != nil {
		a.teardownLocked()
		return fmt.Errorf("login failed: %w", err)
	}

	// Export only after a fresh login; a restored session's file is
	// already current.
	if a.opts.SessionPath != "" {
		if err := a.store.SaveSession(ctx, a.opts.SessionPath); err != nil {
			a.logger.Warn("Could not export session state.", zap.Error(err))
		}
	}

	a.provider = prov
	return nil
}

// ProcessPrompt submits a single prompt and returns the response text.
func (a *Automator) ProcessPrompt(ctx context.Context, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.provider == nil {
		return "", ErrNotInitialized
	}
	return a.provider.SendPrompt(ctx, text)
}

// ProcessChain runs the prompts in order, feeding each response into the
// next step's rendering, and returns every response in order. A failed step
// aborts the chain; earlier exchanges remain in the conversation.
func (a *Automator) ProcessChain(ctx context.Context, prompts []Prompt) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.provider == nil {
		return nil, ErrNotInitialized
	}

	responses := make([]string, 0, len(prompts))
	var previous string
	for i, step := range prompts {
		text, err := step.Render(ctx, previous)
		if err != nil {
			return nil, fmt.Errorf("chain step %d: render failed: %w", i+1, err)
		}
		a.logger.Info("Submitting chain step.",
			zap.Int("step", i+1), zap.Int("total", len(prompts)))

		response, err := a.provider.SendPrompt(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("chain step %d: %w", i+1, err)
		}
		responses = append(responses, response)
		previous = response
	}
	return responses, nil
}

// Close releases the browser. Safe before Init and when called repeatedly.
func (a *Automator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.teardownLocked()
}

func (a *Automator) teardownLocked() error {
	a.provider = nil
	a.closed = true
	return a.store.Stop()
}
