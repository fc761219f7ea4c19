// File: internal/browser/context.go
package browser

import "context"

// CombineContext creates a context derived from ctx1 (the page lifetime
// context, which carries the CDP target) that is additionally canceled when
// ctx2 (the per-operation context) is done. chromedp requires the target
// values from ctx1, so the combined context must inherit from it.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
