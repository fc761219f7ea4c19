// File: internal/provider/chatgpt/errors.go
package chatgpt

import "errors"

var (
	// ErrLoginUI means the landing-page login affordance could not be
	// located. There is no fallback entry point into the login flow.
	ErrLoginUI = errors.New("login button not found on landing page")

	// ErrOTPUnavailable means the UI presented a one-time passcode
	// challenge but no supplier was configured to answer it.
	ErrOTPUnavailable = errors.New("one-time passcode required but no supplier is configured")

	// ErrLoginTimeout means neither the authenticated marker nor an OTP
	// challenge appeared within the bounded wait.
	ErrLoginTimeout = errors.New("timed out waiting for login to complete")

	// ErrPromptSubmission wraps failures while filling or sending a
	// prompt. The session itself stays valid.
	ErrPromptSubmission = errors.New("prompt submission failed")

	// ErrResponseTimeout means the UI gave neither a generating indicator
	// nor a ready-to-send state, or generation never finished. Ambiguity
	// is fatal by design choice: it is never treated as success.
	ErrResponseTimeout = errors.New("timed out waiting for response generation")

	// ErrNoResponse means generation appeared to finish but no
	// assistant-authored message exists in the conversation.
	ErrNoResponse = errors.New("no assistant response found")
)
