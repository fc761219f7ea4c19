// File: internal/automator/automator_test.go
package automator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/chatpilot/internal/browser"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubPage acts as an already authenticated conversation surface: every
// wait succeeds immediately and each send produces the next canned response.
type stubPage struct {
	mu        sync.Mutex
	filled    []string
	responses []string
	sends     int
	closed    bool
}

func (p *stubPage) Navigate(context.Context, string) error { return nil }

func (p *stubPage) WaitFor(context.Context, string, browser.WaitOptions) error { return nil }

func (p *stubPage) Fill(_ context.Context, _, text string) error {
	p.mu.Lock()
	p.filled = append(p.filled, text)
	p.mu.Unlock()
	return nil
}

func (p *stubPage) Click(_ context.Context, locator string) error { return nil }

func (p *stubPage) IsVisible(context.Context, string) (bool, error) { return false, nil }

func (p *stubPage) IsDisabled(context.Context, string) (bool, error) { return false, nil }

func (p *stubPage) QueryAll(_ context.Context, locator string) ([]browser.Element, error) {
	if locator != `[data-message-author-role="assistant"]` {
		return nil, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sends >= len(p.responses) {
		return nil, nil
	}
	text := p.responses[p.sends]
	p.sends++
	return []browser.Element{&stubElement{text: text}}, nil
}

func (p *stubPage) Screenshot(context.Context, string) error { return nil }

func (p *stubPage) AddCookies(context.Context, []browser.Cookie) error { return nil }

func (p *stubPage) StorageState(context.Context) (*browser.StorageState, error) {
	return &browser.StorageState{}, nil
}

func (p *stubPage) GrantClipboardPermissions(context.Context) error { return nil }

func (p *stubPage) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type stubElement struct{ text string }

func (e *stubElement) InnerText(context.Context) (string, error) { return e.text, nil }

func (e *stubElement) QueryAll(context.Context, string) ([]browser.Element, error) {
	return nil, nil
}

func newTestAutomator(t *testing.T, page *stubPage, opts Options) *Automator {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	if opts.Credentials == (config.Credentials{}) {
		opts.Credentials = config.Credentials{Email: "u@example.com", Password: "pw"}
	}
	a := New(opts)
	a.Store().SetLauncher(func(context.Context, browser.LaunchOptions) (browser.Page, error) {
		return page, nil
	})
	return a
}

func TestProcessPromptBeforeInit(t *testing.T) {
	a := newTestAutomator(t, &stubPage{}, Options{})

	_, err := a.ProcessPrompt(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = a.ProcessChain(context.Background(), []Prompt{Text("hello")})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitFailsFastOnMissingCredentials(t *testing.T) {
	t.Setenv(config.EnvEmail, "")
	t.Setenv(config.EnvPassword, "")

	launched := false
	a := New(Options{
		Logger:      zaptest.NewLogger(t),
		Credentials: config.Credentials{},
	})
	a.Store().SetLauncher(func(context.Context, browser.LaunchOptions) (browser.Page, error) {
		launched = true
		return &stubPage{}, nil
	})

	err := a.Init(context.Background())
	require.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.False(t, launched, "no browser may start when credentials are unresolvable")
}

func TestInitRejectsUnknownProvider(t *testing.T) {
	launched := false
	a := New(Options{
		Logger:      zaptest.NewLogger(t),
		Provider:    "geminiweb",
		Credentials: config.Credentials{Email: "u@example.com", Password: "pw"},
	})
	a.Store().SetLauncher(func(context.Context, browser.LaunchOptions) (browser.Page, error) {
		launched = true
		return &stubPage{}, nil
	})

	err := a.Init(context.Background())
	require.ErrorIs(t, err, provider.ErrUnknownProvider)
	assert.False(t, launched)
}

func TestInitReusesAuthenticatedSession(t *testing.T) {
	// The stub's waits all succeed, so the authentication probe passes and
	// no login interaction happens.
	page := &stubPage{responses: []string{"pong"}}
	a := newTestAutomator(t, page, Options{})
	defer a.Close()

	require.NoError(t, a.Init(context.Background()))
	require.NoError(t, a.Init(context.Background()), "Init is idempotent")

	got, err := a.ProcessPrompt(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
	assert.Equal(t, []string{"ping"}, page.filled)
}

func TestProcessChainFeedsResponsesForward(t *testing.T) {
	page := &stubPage{responses: []string{"alpha", "beta", "gamma"}}
	a := newTestAutomator(t, page, Options{})
	defer a.Close()
	require.NoError(t, a.Init(context.Background()))

	responses, err := a.ProcessChain(context.Background(), []Prompt{
		Text("start"),
		Text("expand on {{previous}}"),
		Transform(func(_ context.Context, previous string) (string, error) {
			return "verbatim:" + previous, nil
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, responses)
	assert.Equal(t, []string{
		"start",
		"expand on alpha",
		"verbatim:beta",
	}, page.filled)
}

func TestProcessChainAbortsOnFailedStep(t *testing.T) {
	// Only one response scripted; the second exchange finds no message.
	page := &stubPage{responses: []string{"alpha"}}
	a := newTestAutomator(t, page, Options{})
	defer a.Close()
	require.NoError(t, a.Init(context.Background()))

	_, err := a.ProcessChain(context.Background(), []Prompt{
		Text("start"),
		Text("expand on {{previous}}"),
		Text("never sent"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain step 2")
	assert.Len(t, page.filled, 2, "the chain stops at the failed step")
}

func TestCloseIsIdempotentAndFinal(t *testing.T) {
	page := &stubPage{responses: []string{"pong"}}
	a := newTestAutomator(t, page, Options{})
	require.NoError(t, a.Init(context.Background()))

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.True(t, page.closed)

	_, err := a.ProcessPrompt(context.Background(), "ping")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, a.Init(context.Background()), ErrNotInitialized)
}

func TestCloseBeforeInitIsSafe(t *testing.T) {
	a := newTestAutomator(t, &stubPage{}, Options{})
	require.NoError(t, a.Close())
}
