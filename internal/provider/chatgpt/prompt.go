// File: internal/provider/chatgpt/prompt.go
package chatgpt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser"
)

// SendPrompt submits one prompt and returns the assistant's response text.
// The exchange runs in three phases: submit, await generation, extract.
func (p *Provider) SendPrompt(ctx context.Context, text string) (string, error) {
	p.dismissTransientDialogs(ctx)

	if err := p.submitPrompt(ctx, text); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPromptSubmission, err)
	}
	if err := p.awaitCompletion(ctx); err != nil {
		return "", err
	}
	return p.extractResponse(ctx)
}

// submitPrompt fills the composer and clicks send. The send control stays
// disabled for a beat after typing while the UI registers the input, so a
// disabled state gets one bounded grace period before it counts as failure.
func (p *Provider) submitPrompt(ctx context.Context, text string) error {
	if err := p.page.WaitFor(ctx, p.loc.PromptInput, browser.WaitOptions{
		Timeout: p.timing.uiWait,
		State:   browser.StateVisible,
	}); err != nil {
		return fmt.Errorf("prompt input not available: %w", err)
	}
	if err := p.page.Fill(ctx, p.loc.PromptInput, text); err != nil {
		return fmt.Errorf("failed to type prompt: %w", err)
	}

	if err := p.page.WaitFor(ctx, p.loc.SendButton, browser.WaitOptions{
		Timeout: p.timing.uiWait,
		State:   browser.StateVisible,
	}); err != nil {
		return fmt.Errorf("send control not available: %w", err)
	}
	disabled, err := p.page.IsDisabled(ctx, p.loc.SendButton)
	if err != nil {
		return fmt.Errorf("failed to inspect send control: %w", err)
	}
	if disabled {
		if err := sleepCtx(ctx, p.timing.sendGrace); err != nil {
			return err
		}
		disabled, err = p.page.IsDisabled(ctx, p.loc.SendButton)
		if err != nil {
			return fmt.Errorf("failed to inspect send control: %w", err)
		}
		if disabled {
			return errors.New("send control stayed disabled after input")
		}
	}

	if err := p.page.Click(ctx, p.loc.SendButton); err != nil {
		return fmt.Errorf("failed to click send: %w", err)
	}
	return nil
}

// awaitCompletion waits for response generation to finish. The stop
// indicator appearing and then disappearing is the reliable signal. If it
// never appears, a visible send control means generation already finished
// inside the detection window; anything else is ambiguous and fatal, since
// returning a partial response would silently corrupt chain output.
func (p *Provider) awaitCompletion(ctx context.Context) error {
	appeared := p.page.WaitFor(ctx, p.loc.StopButton, browser.WaitOptions{
		Timeout: p.timing.indicatorWait,
		State:   browser.StateVisible,
	}) == nil

	if !appeared {
		visible, err := p.page.IsVisible(ctx, p.loc.SendButton)
		if err == nil && visible {
			p.logger.Debug("Generation finished before the stop indicator was observed.")
			return nil
		}
		return ErrResponseTimeout
	}

	if err := p.page.WaitFor(ctx, p.loc.StopButton, browser.WaitOptions{
		Timeout: p.timing.generationWait,
		State:   browser.StateDetached,
	}); err != nil {
		return fmt.Errorf("%w: generation did not finish: %v", ErrResponseTimeout, err)
	}
	return nil
}

// extractResponse returns the text of the newest assistant message. The
// markdown body inside the message is preferred because the outer element
// also carries action-bar labels; messages without one (code-only replies,
// refusals rendered as plain text) fall back to the whole element.
func (p *Provider) extractResponse(ctx context.Context) (string, error) {
	if err := p.page.WaitFor(ctx, p.loc.AssistantMessage, browser.WaitOptions{
		Timeout: p.timing.extractWait,
		State:   browser.StateAttached,
	}); err != nil {
		return "", ErrNoResponse
	}

	messages, err := p.page.QueryAll(ctx, p.loc.AssistantMessage)
	if err != nil {
		return "", fmt.Errorf("failed to query assistant messages: %w", err)
	}
	if len(messages) == 0 {
		return "", ErrNoResponse
	}
	last := messages[len(messages)-1]

	if p.loc.MarkdownBody != "" {
		bodies, err := last.QueryAll(ctx, p.loc.MarkdownBody)
		if err == nil && len(bodies) > 0 {
			text, err := bodies[0].InnerText(ctx)
			if err == nil {
				return strings.TrimSpace(text), nil
			}
			p.logger.Debug("Markdown body extraction failed; falling back to full message.",
				zap.Error(err))
		}
	}

	text, err := last.InnerText(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read assistant message: %w", err)
	}
	return strings.TrimSpace(text), nil
}
