package stealth

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

//go:embed evasions.js
var evasionsScript string

// Persona defines the browser characteristics to emulate. Chat applications
// fingerprint headless browsers aggressively; a consistent desktop persona
// keeps the login flow on the ordinary path.
type Persona struct {
	UserAgent string
	Platform  string
	Languages []string
	Timezone  string
	Locale    string
}

// DefaultPersona provides a realistic default desktop profile.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	Platform:  "Win32",
	Languages: []string{"en-US", "en"},
	Timezone:  "America/Los_Angeles",
	Locale:    "en-US",
}

// Apply builds the CDP actions that make the automated browser present as a
// standard user-operated one: user agent and locale overrides plus an
// evasions script injected before any document scripts run.
func Apply(p Persona, logger *zap.Logger) chromedp.Tasks {
	if p.UserAgent == "" {
		p = DefaultPersona
	}
	logger.Debug("Applying stealth persona.",
		zap.String("user_agent", p.UserAgent),
		zap.String("timezone", p.Timezone))

	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent),

		// The evasions script must be registered before navigation so it
		// runs ahead of any fingerprinting code on the target page.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),

		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),
	}

	if len(p.Languages) > 0 {
		accept := p.Languages[0]
		if len(p.Languages) > 1 {
			accept = fmt.Sprintf("%s,%s;q=0.9", p.Languages[0], p.Languages[1])
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": accept,
		}))
	}

	return tasks
}
