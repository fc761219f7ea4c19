// File: internal/automator/chain.go
package automator

import (
	"context"
	"strings"
)

// Prompt is one element of a chain. A chain step either renders a text
// template against the previous response or computes its prompt from the
// previous response in code.
type Prompt interface {
	// Render produces the prompt text for this step given the previous
	// step's response. The first step receives the empty string.
	Render(ctx context.Context, previous string) (string, error)
}

// Text is a template-based chain step. The previous response is substituted
// at exactly one site, chosen by precedence:
//
//  1. every occurrence of "{{previous}}"
//  2. the first standalone "{}" token
//  3. the first "{{}}" token
//
// A template with no placeholder passes through unchanged.
type Text string

// placeholderMask temporarily hides "{{}}" occurrences while searching for
// the "{}" token, since "{}" is a substring of "{{}}".
const placeholderMask = "\x00\x00\x00\x00"

// Render implements Prompt.
func (t Text) Render(_ context.Context, previous string) (string, error) {
	return renderTemplate(string(t), previous), nil
}

// Transform is a code-based chain step. The function receives the previous
// response verbatim and returns the next prompt.
type Transform func(ctx context.Context, previous string) (string, error)

// Render implements Prompt.
func (f Transform) Render(ctx context.Context, previous string) (string, error) {
	return f(ctx, previous)
}

func renderTemplate(template, previous string) string {
	if strings.Contains(template, "{{previous}}") {
		return strings.ReplaceAll(template, "{{previous}}", previous)
	}

	masked := strings.ReplaceAll(template, "{{}}", placeholderMask)
	if i := strings.Index(masked, "{}"); i >= 0 {
		rendered := masked[:i] + previous + masked[i+len("{}"):]
		return strings.ReplaceAll(rendered, placeholderMask, "{{}}")
	}

	if i := strings.Index(template, "{{}}"); i >= 0 {
		return template[:i] + previous + template[i+len("{{}}"):]
	}
	return template
}
