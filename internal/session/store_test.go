// File: internal/session/store_test.go
package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/chatpilot/internal/browser"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/session"
)

type recordingPage struct {
	cookiesAdded []browser.Cookie
	cookieErr    error
	navErr       error
	waitErr      error
	state        *browser.StorageState
	stateErr     error
	closes       int
}

func (p *recordingPage) Navigate(context.Context, string) error { return p.navErr }

func (p *recordingPage) WaitFor(context.Context, string, browser.WaitOptions) error {
	return p.waitErr
}

func (p *recordingPage) Fill(context.Context, string, string) error { return nil }

func (p *recordingPage) Click(context.Context, string) error { return nil }

func (p *recordingPage) IsVisible(context.Context, string) (bool, error) { return false, nil }

func (p *recordingPage) IsDisabled(context.Context, string) (bool, error) { return false, nil }

func (p *recordingPage) QueryAll(context.Context, string) ([]browser.Element, error) {
	return nil, nil
}

func (p *recordingPage) Screenshot(context.Context, string) error { return nil }

func (p *recordingPage) AddCookies(_ context.Context, cookies []browser.Cookie) error {
	if p.cookieErr != nil {
		return p.cookieErr
	}
	p.cookiesAdded = append(p.cookiesAdded, cookies...)
	return nil
}

func (p *recordingPage) StorageState(context.Context) (*browser.StorageState, error) {
	if p.stateErr != nil {
		return nil, p.stateErr
	}
	return p.state, nil
}

func (p *recordingPage) GrantClipboardPermissions(context.Context) error { return nil }

func (p *recordingPage) Close() error {
	p.closes++
	return nil
}

func newTestStore(t *testing.T, page *recordingPage) *session.Store {
	t.Helper()
	cfg := config.BrowserConfig{ProfileDir: t.TempDir()}
	s := session.NewStore(cfg, zaptest.NewLogger(t))
	s.SetLauncher(func(context.Context, browser.LaunchOptions) (browser.Page, error) {
		return page, nil
	})
	return s
}

func TestStartImportsSessionState(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	state := `{"cookies":[{"name":"sid","value":"abc","domain":".example.com","path":"/","httpOnly":true,"secure":true}]}`
	require.NoError(t, os.WriteFile(statePath, []byte(state), 0o600))

	page := &recordingPage{}
	s := newTestStore(t, page)

	_, err := s.Start(context.Background(), true, statePath)
	require.NoError(t, err)
	require.Len(t, page.cookiesAdded, 1)
	assert.Equal(t, "sid", page.cookiesAdded[0].Name)
	assert.Equal(t, "abc", page.cookiesAdded[0].Value)
}

func TestStartToleratesMissingStateFile(t *testing.T) {
	page := &recordingPage{}
	s := newTestStore(t, page)

	_, err := s.Start(context.Background(), true, filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, page.cookiesAdded)
}

func TestStartToleratesCorruptStateFile(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte("{not json"), 0o600))

	page := &recordingPage{}
	s := newTestStore(t, page)

	_, err := s.Start(context.Background(), true, statePath)
	require.NoError(t, err)
	assert.Empty(t, page.cookiesAdded)
}

func TestStartToleratesCookieImportFailure(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	state := `{"cookies":[{"name":"sid","value":"abc"}]}`
	require.NoError(t, os.WriteFile(statePath, []byte(state), 0o600))

	page := &recordingPage{cookieErr: errors.New("browser said no")}
	s := newTestStore(t, page)

	_, err := s.Start(context.Background(), true, statePath)
	require.NoError(t, err, "cookie import is best-effort")
}

func TestStartCreatesProfileDirectory(t *testing.T) {
	profileDir := filepath.Join(t.TempDir(), "nested", "profile")
	s := session.NewStore(config.BrowserConfig{ProfileDir: profileDir}, zaptest.NewLogger(t))
	s.SetLauncher(func(_ context.Context, opts browser.LaunchOptions) (browser.Page, error) {
		assert.Equal(t, profileDir, opts.ProfileDir)
		return &recordingPage{}, nil
	})

	_, err := s.Start(context.Background(), true, "")
	require.NoError(t, err)
	info, err := os.Stat(profileDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStartIsIdempotent(t *testing.T) {
	launches := 0
	s := session.NewStore(config.BrowserConfig{ProfileDir: t.TempDir()}, zaptest.NewLogger(t))
	s.SetLauncher(func(context.Context, browser.LaunchOptions) (browser.Page, error) {
		launches++
		return &recordingPage{}, nil
	})

	first, err := s.Start(context.Background(), true, "")
	require.NoError(t, err)
	second, err := s.Start(context.Background(), true, "")
	require.NoError(t, err)
	assert.Same(t, first.(*recordingPage), second.(*recordingPage))
	assert.Equal(t, 1, launches)
}

func TestSaveSessionWritesStateFile(t *testing.T) {
	page := &recordingPage{
		state: &browser.StorageState{
			Cookies: []browser.Cookie{
				{Name: "sid", Value: "abc", Domain: ".example.com", Path: "/", Secure: true},
			},
			LocalStorage: map[string]string{"theme": "dark"},
		},
	}
	s := newTestStore(t, page)
	_, err := s.Start(context.Background(), true, "")
	require.NoError(t, err)

	statePath := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, s.SaveSession(context.Background(), statePath))

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sid"`)
	assert.Contains(t, string(data), `"theme"`)

	info, err := os.Stat(statePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(),
		"the state file carries live credentials")
}

func TestSaveSessionWithoutStartIsNoop(t *testing.T) {
	s := newTestStore(t, &recordingPage{})
	statePath := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, s.SaveSession(context.Background(), statePath))
	_, err := os.Stat(statePath)
	assert.True(t, os.IsNotExist(err))
}

func TestIsAuthenticated(t *testing.T) {
	tests := []struct {
		name string
		page *recordingPage
		want bool
	}{
		{"marker visible", &recordingPage{}, true},
		{"marker absent", &recordingPage{waitErr: errors.New("timeout")}, false},
		{"navigation fails", &recordingPage{navErr: errors.New("dns")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, tt.page)
			_, err := s.Start(context.Background(), true, "")
			require.NoError(t, err)
			got := s.IsAuthenticated(context.Background(), "https://chat.example.com/", "#profile")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsAuthenticatedBeforeStart(t *testing.T) {
	s := newTestStore(t, &recordingPage{})
	assert.False(t, s.IsAuthenticated(context.Background(), "https://chat.example.com/", "#profile"))
}

func TestStopIsIdempotent(t *testing.T) {
	page := &recordingPage{}
	s := newTestStore(t, page)
	_, err := s.Start(context.Background(), true, "")
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.Equal(t, 1, page.closes)
	assert.Nil(t, s.Page())
}

func TestStopBeforeStart(t *testing.T) {
	s := newTestStore(t, &recordingPage{})
	require.NoError(t, s.Stop())
}
