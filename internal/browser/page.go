// File: internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser/humanize"
	"github.com/xkilldash9x/chatpilot/internal/browser/stealth"
)

const defaultWaitTimeout = 15 * time.Second

// LaunchOptions configures the browser process and its single page.
type LaunchOptions struct {
	Headless bool
	// ProfileDir is the persistent user-data directory. It must already
	// exist; the session store owns its creation.
	ProfileDir        string
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	ExtraArgs         []string
	Persona           stealth.Persona
	// Typing shapes the keystroke cadence used by Fill. The zero value
	// selects the default human profile; humanize.Instant disables it.
	Typing *humanize.Profile
	Logger *zap.Logger
}

// ChromePage drives one tab of a locally launched Chrome process over CDP.
// It owns the process: Close tears down the tab, the browser and the
// allocator.
type ChromePage struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	navTimeout  time.Duration
	typist      *humanize.Typist

	closeOnce sync.Once
	closeErr  error
}

var _ Page = (*ChromePage)(nil)

// Launch starts a Chrome process bound to the given persistent profile
// directory and returns its initial page. The allocator is parented on a
// background context so the browser outlives the caller's init deadline;
// lifetime is controlled exclusively through Close.
func Launch(ctx context.Context, opts LaunchOptions) (*ChromePage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("page").With(zap.String("page_id", uuid.New().String()))

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(opts.ProfileDir),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
		chromedp.Flag("headless", opts.Headless),
		// Suppress the telltale automation switches.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
	)
	for _, arg := range opts.ExtraArgs {
		allocOpts = append(allocOpts, chromedp.Flag(arg, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(zap.NewStdLog(logger).Printf))

	typingProfile := humanize.DefaultProfile
	if opts.Typing != nil {
		typingProfile = *opts.Typing
	}

	p := &ChromePage{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		logger:      logger,
		navTimeout:  opts.NavigationTimeout,
		typist:      humanize.NewTypist(typingProfile),
	}
	if p.navTimeout <= 0 {
		p.navTimeout = 60 * time.Second
	}

	// The first Run starts the process and attaches to the initial tab of
	// the persistent profile.
	startCtx, startCancel := context.WithTimeout(tabCtx, p.navTimeout)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight))); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if err := chromedp.Run(tabCtx, stealth.Apply(opts.Persona, logger)); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to apply stealth persona: %w", err)
	}

	logger.Debug("Browser launched.",
		zap.Bool("headless", opts.Headless),
		zap.String("profile_dir", opts.ProfileDir))
	return p, nil
}

// run executes chromedp actions bound to both the page lifetime and the
// caller's context.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the document body to become ready.
func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	if err := p.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// WaitFor blocks until the locator reaches the requested state.
func (p *ChromePage) WaitFor(ctx context.Context, locator string, opts WaitOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var action chromedp.Action
	switch opts.State {
	case StateAttached:
		action = chromedp.WaitReady(locator, chromedp.ByQuery)
	case StateDetached:
		action = chromedp.WaitNotPresent(locator, chromedp.ByQuery)
	default:
		action = chromedp.WaitVisible(locator, chromedp.ByQuery)
	}

	if err := p.run(waitCtx, action); err != nil {
		return fmt.Errorf("wait for %q (%s) failed: %w", locator, opts.State, err)
	}
	return nil
}

// Fill clears the target element and types text into it with human cadence.
// SendKeys produces real key events, which SPA frameworks require to notice
// the input; the typist spaces them out so the timing reads as a person.
func (p *ChromePage) Fill(ctx context.Context, locator, text string) error {
	if err := p.run(ctx,
		chromedp.WaitVisible(locator, chromedp.ByQuery),
		chromedp.Clear(locator, chromedp.ByQuery),
		chromedp.Click(locator, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("fill %q failed: %w", locator, err)
	}
	if err := p.typist.Pause(ctx, 200, 80); err != nil {
		return err
	}

	send := func(sendCtx context.Context, keys string) error {
		if keys == humanize.Backspace {
			keys = kb.Backspace
		}
		return p.run(sendCtx, chromedp.SendKeys(locator, keys, chromedp.ByQuery))
	}
	if err := p.typist.Type(ctx, send, text); err != nil {
		return fmt.Errorf("fill %q failed: %w", locator, err)
	}
	return nil
}

// Click clicks the first element matching the locator.
func (p *ChromePage) Click(ctx context.Context, locator string) error {
	if err := p.run(ctx, chromedp.Click(locator, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q failed: %w", locator, err)
	}
	return nil
}

// visibilityScript mirrors the rendering checks a real user cares about:
// the element exists, is not display:none/visibility:hidden, and has a box.
const visibilityScript = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return false;
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none' || style.opacity === '0') return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
})(%q)`

// IsVisible reports whether a matching element is currently rendered.
func (p *ChromePage) IsVisible(ctx context.Context, locator string) (bool, error) {
	var visible bool
	if err := p.run(ctx,
		chromedp.Evaluate(fmt.Sprintf(visibilityScript, locator), &visible)); err != nil {
		return false, fmt.Errorf("visibility check for %q failed: %w", locator, err)
	}
	return visible, nil
}

const disabledScript = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return false;
	return el.disabled === true || el.getAttribute('aria-disabled') === 'true' || el.hasAttribute('disabled');
})(%q)`

// IsDisabled reports whether the first matching element is disabled.
func (p *ChromePage) IsDisabled(ctx context.Context, locator string) (bool, error) {
	var disabled bool
	if err := p.run(ctx,
		chromedp.Evaluate(fmt.Sprintf(disabledScript, locator), &disabled)); err != nil {
		return false, fmt.Errorf("disabled check for %q failed: %w", locator, err)
	}
	return disabled, nil
}

// QueryAll returns handles for every matching element in document order.
func (p *ChromePage) QueryAll(ctx context.Context, locator string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx,
		chromedp.Nodes(locator, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %q failed: %w", locator, err)
	}

	elements := make([]Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &chromeElement{page: p, node: node})
	}
	return elements, nil
}

// Screenshot captures the viewport to a PNG file at path.
func (p *ChromePage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("screenshot capture failed: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot to %s: %w", path, err)
	}
	return nil
}

// AddCookies imports cookies into the browsing context.
func (p *ChromePage) AddCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			param.Expires = &expires
		}
		params = append(params, param)
	}

	if err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return storage.SetCookies(params).Do(c)
	})); err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	return nil
}

const localStorageScript = `(function() {
	const items = {};
	try {
		for (let i = 0; i < localStorage.length; i++) {
			const k = localStorage.key(i);
			if (k) { items[k] = localStorage.getItem(k); }
		}
	} catch (e) { /* storage disabled for this origin */ }
	return items;
})()`

// StorageState captures cookies via CDP and local storage via an in-page
// evaluation. Local storage failures are tolerated; cookies are the part the
// session file contract requires.
func (p *ChromePage) StorageState(ctx context.Context) (*StorageState, error) {
	state := &StorageState{}

	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		cookies, err := network.GetCookies().Do(c)
		if err != nil {
			return fmt.Errorf("failed to read cookies: %w", err)
		}
		for _, ck := range cookies {
			state.Cookies = append(state.Cookies, Cookie{
				Name:     ck.Name,
				Value:    ck.Value,
				Domain:   ck.Domain,
				Path:     ck.Path,
				Expires:  ck.Expires,
				HTTPOnly: ck.HTTPOnly,
				Secure:   ck.Secure,
				SameSite: ck.SameSite.String(),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}

	if err := p.run(ctx, chromedp.Evaluate(localStorageScript, &state.LocalStorage)); err != nil {
		p.logger.Warn("Could not capture local storage.", zap.Error(err))
	}
	return state, nil
}

// GrantClipboardPermissions allows clipboard access for all origins of the
// browsing context.
func (p *ChromePage) GrantClipboardPermissions(ctx context.Context) error {
	if err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return cdpbrowser.GrantPermissions([]cdpbrowser.PermissionType{
			cdpbrowser.PermissionTypeClipboardReadWrite,
			cdpbrowser.PermissionTypeClipboardSanitizedWrite,
		}).Do(c)
	})); err != nil {
		return fmt.Errorf("failed to grant clipboard permissions: %w", err)
	}
	return nil
}

// Close releases the tab, the browser process and the allocator. Safe to
// call multiple times.
func (p *ChromePage) Close() error {
	p.closeOnce.Do(func() {
		// Graceful browser shutdown first so the profile directory is
		// flushed to disk.
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := chromedp.Cancel(p.ctx); err != nil && closeCtx.Err() == nil {
			p.logger.Debug("Graceful browser shutdown failed.", zap.Error(err))
			p.closeErr = err
		}
		p.cancel()
		p.allocCancel()
	})
	return p.closeErr
}

// chromeElement is a handle to one DOM node, addressed by its full XPath so
// later reads survive unrelated DOM mutations.
type chromeElement struct {
	page *ChromePage
	node *cdp.Node
}

func (e *chromeElement) InnerText(ctx context.Context) (string, error) {
	var text string
	if err := e.page.run(ctx,
		chromedp.Text(e.node.FullXPath(), &text, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("failed to read element text: %w", err)
	}
	return text, nil
}

func (e *chromeElement) QueryAll(ctx context.Context, locator string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := e.page.run(ctx,
		chromedp.Nodes(locator, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("descendant query %q failed: %w", locator, err)
	}

	elements := make([]Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &chromeElement{page: e.page, node: node})
	}
	return elements, nil
}
