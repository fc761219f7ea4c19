// File: internal/session/store.go

// Package session manages the persistent browser profile and the optional
// exported session-state file. The profile directory is the primary
// mechanism: it survives across runs, so repeated use needs no re-login.
// The state file exists to move a session between machines and is therefore
// strictly best-effort on import.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser"
	"github.com/xkilldash9x/chatpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// authCheckTimeout bounds the wait for the authenticated-profile marker
// during an IsAuthenticated probe.
const authCheckTimeout = 5 * time.Second

// Launcher starts a browser and returns its page. Substituted in tests.
type Launcher func(ctx context.Context, opts browser.LaunchOptions) (browser.Page, error)

// Store owns the browsing context for one automator. It is the only
// component holding the live page handle; everything above it operates
// through the capability interface.
type Store struct {
	cfg      config.BrowserConfig
	logger   *zap.Logger
	launcher Launcher

	mu      sync.Mutex
	page    browser.Page
	stopped bool
}

// NewStore creates a session store. The default launcher starts a local
// Chrome via chromedp.
func NewStore(cfg config.BrowserConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:    cfg,
		logger: logger.Named("session"),
		launcher: func(ctx context.Context, opts browser.LaunchOptions) (browser.Page, error) {
			return browser.Launch(ctx, opts)
		},
	}
}

// SetLauncher replaces the browser launcher. Tests use this to substitute a
// fake page.
func (s *Store) SetLauncher(l Launcher) {
	s.launcher = l
}

// Start ensures the profile directory exists, launches the persistent
// browsing context and returns its page. If sessionStatePath names an
// existing file its cookies are imported; import failures are logged and
// swallowed because the profile alone is usually sufficient.
func (s *Store) Start(ctx context.Context, headless bool, sessionStatePath string) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		return s.page, nil
	}

	profileDir := s.cfg.ProfileDir
	if profileDir == "" {
		dir, err := config.DefaultProfileDir()
		if err != nil {
			return nil, err
		}
		profileDir = dir
	}
	if err := os.MkdirAll(profileDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory %s: %w", profileDir, err)
	}

	page, err := s.launcher(ctx, browser.LaunchOptions{
		Headless:          headless,
		ProfileDir:        profileDir,
		UserAgent:         s.cfg.UserAgent,
		ViewportWidth:     s.cfg.ViewportWidth,
		ViewportHeight:    s.cfg.ViewportHeight,
		NavigationTimeout: s.cfg.NavigationTimeout,
		ExtraArgs:         s.cfg.Args,
		Logger:            s.logger,
	})
	if err != nil {
		return nil, err
	}

	if sessionStatePath != "" {
		s.importSessionState(ctx, page, sessionStatePath)
	}

	s.page = page
	s.stopped = false
	s.logger.Info("Session started.",
		zap.Bool("headless", headless),
		zap.String("profile_dir", profileDir))
	return page, nil
}

// importSessionState loads cookies from an exported state file. Every
// failure here is non-fatal: a missing or stale file just means the profile
// has to carry the session on its own.
func (s *Store) importSessionState(ctx context.Context, page browser.Page, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("No session state file to import.", zap.String("path", path))
		} else {
			s.logger.Warn("Could not read session state file.", zap.String("path", path), zap.Error(err))
		}
		return
	}

	var state browser.StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("Session state file is not valid JSON; ignoring.",
			zap.String("path", path), zap.Error(err))
		return
	}
	if len(state.Cookies) == 0 {
		s.logger.Debug("Session state file holds no cookies.", zap.String("path", path))
		return
	}

	if err := page.AddCookies(ctx, state.Cookies); err != nil {
		s.logger.Warn("Failed to import session cookies.", zap.Error(err))
		return
	}
	s.logger.Info("Imported session state.",
		zap.String("path", path), zap.Int("cookies", len(state.Cookies)))
}

// SaveSession serializes the current cookies and storage to path. No-op when
// no context is active.
func (s *Store) SaveSession(ctx context.Context, path string) error {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()

	if page == nil {
		return nil
	}

	state, err := page.StorageState(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture session state: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	// Cookies carry the authenticated session; keep the file private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session state to %s: %w", path, err)
	}

	s.logger.Info("Session state saved.",
		zap.String("path", path), zap.Int("cookies", len(state.Cookies)))
	return nil
}

// IsAuthenticated navigates to url and reports whether the authenticated
// profile marker shows up within a short bound. Navigation failures mean
// "not authenticated", never an error: the caller's next move is a login
// either way.
func (s *Store) IsAuthenticated(ctx context.Context, url, markerLocator string) bool {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()

	if page == nil {
		return false
	}

	if err := page.Navigate(ctx, url); err != nil {
		s.logger.Debug("Authentication probe navigation failed.", zap.Error(err))
		return false
	}
	err := page.WaitFor(ctx, markerLocator, browser.WaitOptions{
		Timeout: authCheckTimeout,
		State:   browser.StateVisible,
	})
	return err == nil
}

// Page returns the live page handle, or nil before Start.
func (s *Store) Page() browser.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Stop releases the browsing context and the browser process. Safe to call
// multiple times and after a partial or failed Start.
func (s *Store) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.page == nil {
		s.stopped = true
		return nil
	}
	err := s.page.Close()
	s.page = nil
	s.stopped = true
	if err != nil {
		return fmt.Errorf("failed to close browsing context: %w", err)
	}
	s.logger.Debug("Session stopped.")
	return nil
}
