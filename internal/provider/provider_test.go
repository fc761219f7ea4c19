// File: internal/provider/provider_test.go
package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/chatpilot/internal/provider"
)

func fullLocators() provider.Locators {
	return provider.Locators{
		ProfileButton:    "#profile",
		LoginButton:      "#login",
		EmailInput:       "#email",
		EmailContinue:    "#email-next",
		PasswordInput:    "#password",
		PasswordContinue: "#password-next",
		GoogleButton:     "#google",
		OTPInput:         "#otp",
		OTPSubmit:        "#otp-next",
		PromptInput:      "#prompt",
		SendButton:       "#send",
		StopButton:       "#stop",
		AssistantMessage: "#assistant",
		MarkdownBody:     ".markdown",
		DialogDismiss:    "#dismiss",
		StayLoggedOut:    "#stay",
	}
}

func TestMergeOverlaysOnlyNonEmptyFields(t *testing.T) {
	base := fullLocators()

	merged := base.Merge(provider.Locators{
		PromptInput: "#new-prompt",
		SendButton:  "#new-send",
	})

	assert.Equal(t, "#new-prompt", merged.PromptInput)
	assert.Equal(t, "#new-send", merged.SendButton)
	assert.Equal(t, "#profile", merged.ProfileButton, "untouched fields keep the base value")
	assert.Equal(t, "#assistant", merged.AssistantMessage)
}

func TestMergeWithZeroValueIsIdentity(t *testing.T) {
	base := fullLocators()
	assert.Equal(t, base, base.Merge(provider.Locators{}))
}

func TestValidateRequiresCoreLocators(t *testing.T) {
	assert.NoError(t, fullLocators().Validate())

	missing := fullLocators()
	missing.SendButton = ""
	assert.Error(t, missing.Validate())

	// The transient-dialog locators are optional.
	optional := fullLocators()
	optional.DialogDismiss = ""
	optional.StayLoggedOut = ""
	optional.MarkdownBody = ""
	assert.NoError(t, optional.Validate())
}
