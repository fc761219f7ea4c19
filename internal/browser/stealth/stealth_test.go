package stealth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/chatpilot/internal/browser/stealth"
)

func TestDefaultPersonaIsDesktopChrome(t *testing.T) {
	p := stealth.DefaultPersona
	assert.Contains(t, p.UserAgent, "Chrome/")
	assert.NotContains(t, strings.ToLower(p.UserAgent), "headless")
	assert.NotEmpty(t, p.Timezone)
	assert.NotEmpty(t, p.Locale)
	assert.NotEmpty(t, p.Languages)
}

func TestApplyFallsBackToDefaultPersona(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tasks := stealth.Apply(stealth.Persona{}, logger)
	assert.NotEmpty(t, tasks, "an empty persona still yields the default task set")
}

func TestApplyBuildsHeaderTaskForLanguages(t *testing.T) {
	logger := zaptest.NewLogger(t)

	single := stealth.Apply(stealth.Persona{UserAgent: "ua", Timezone: "UTC", Locale: "en"}, logger)
	multi := stealth.Apply(stealth.Persona{
		UserAgent: "ua",
		Timezone:  "UTC",
		Locale:    "en",
		Languages: []string{"en-US", "en"},
	}, logger)

	assert.Len(t, multi, len(single)+1,
		"declared languages add an Accept-Language override task")
}
