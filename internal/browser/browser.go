// File: internal/browser/browser.go

// Package browser defines the capability interface the rest of the
// application uses to drive a web page, plus its chromedp-backed
// implementation. Components above this package never touch CDP directly;
// they express every interaction as a locator-based operation so that fakes
// can stand in during tests.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrLaunch indicates the underlying browser could not be started. The
// message tells the operator how to fix the environment.
var ErrLaunch = errors.New(
	"browser driver unavailable: install Google Chrome or Chromium and make sure the binary is on PATH")

// State selects what WaitFor considers a satisfied wait.
type State string

const (
	// StateVisible waits until the element exists and is rendered.
	StateVisible State = "visible"
	// StateAttached waits until the element exists in the DOM, visible or not.
	StateAttached State = "attached"
	// StateDetached waits until no element matches the locator.
	StateDetached State = "detached"
)

// WaitOptions bounds a WaitFor call. A zero Timeout falls back to the
// implementation default.
type WaitOptions struct {
	Timeout time.Duration
	State   State
}

// Cookie is the serializable subset of a browser cookie carried by the
// exported session-state file. Expires is seconds since the Unix epoch;
// zero means a session cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// StorageState is a snapshot of the context's persistent state. The cookies
// array is the load-bearing part; local storage is captured best-effort.
type StorageState struct {
	Cookies      []Cookie          `json:"cookies"`
	LocalStorage map[string]string `json:"localStorage,omitempty"`
}

// Element is a handle to a single DOM node returned by QueryAll. Handles are
// only valid until the next navigation; callers re-query rather than caching
// them across operations.
type Element interface {
	// InnerText returns the rendered text content of the node.
	InnerText(ctx context.Context) (string, error)
	// QueryAll finds descendant nodes of this element by CSS locator.
	QueryAll(ctx context.Context, locator string) ([]Element, error)
}

// Page is the browser-automation capability required by the session store,
// the authentication flow and the interaction engine. Locators are CSS
// selectors. Every method suspends until the driver resolves or the bounded
// wait expires.
type Page interface {
	// Navigate loads the URL and waits for the document to become ready.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until the locator reaches the requested state or the
	// wait times out.
	WaitFor(ctx context.Context, locator string, opts WaitOptions) error
	// Fill clears the element and types text into it with real key events.
	Fill(ctx context.Context, locator, text string) error
	// Click clicks the first element matching the locator.
	Click(ctx context.Context, locator string) error
	// IsVisible reports whether a matching element is currently rendered.
	// A missing element is "not visible", never an error.
	IsVisible(ctx context.Context, locator string) (bool, error)
	// IsDisabled reports whether the first matching element is disabled.
	IsDisabled(ctx context.Context, locator string) (bool, error)
	// QueryAll returns handles for every element matching the locator, in
	// document order. An empty result is not an error.
	QueryAll(ctx context.Context, locator string) ([]Element, error)
	// Screenshot captures the viewport to a PNG file at path.
	Screenshot(ctx context.Context, path string) error
	// AddCookies imports cookies into the browsing context.
	AddCookies(ctx context.Context, cookies []Cookie) error
	// StorageState captures cookies and local storage.
	StorageState(ctx context.Context) (*StorageState, error)
	// GrantClipboardPermissions allows clipboard access for the current
	// origin set. Some chat UIs route copy affordances through the
	// clipboard API.
	GrantClipboardPermissions(ctx context.Context) error
	// Close releases the page and its browser process. Idempotent.
	Close() error
}
