// File: internal/automator/chain_test.go
package automator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		previous string
		want     string
	}{
		{
			name:     "named placeholder substitutes every occurrence",
			template: "summarize {{previous}} and compare with {{previous}}",
			previous: "the report",
			want:     "summarize the report and compare with the report",
		},
		{
			name:     "named placeholder wins over brace tokens",
			template: "{{previous}} then {} then {{}}",
			previous: "X",
			want:     "X then {} then {{}}",
		},
		{
			name:     "standalone braces substitute first occurrence only",
			template: "{} is tasty, {} is not",
			previous: "mango",
			want:     "mango is tasty, {} is not",
		},
		{
			name:     "double braces are not mistaken for standalone braces",
			template: "{{}} is tasty",
			previous: "mango",
			want:     "mango is tasty",
		},
		{
			name:     "standalone braces preferred over double braces",
			template: "keep {{}} but fill {}",
			previous: "this",
			want:     "keep {{}} but fill this",
		},
		{
			name:     "double braces substitute first occurrence only",
			template: "{{}} and {{}}",
			previous: "once",
			want:     "once and {{}}",
		},
		{
			name:     "no placeholder passes through",
			template: "tell me a joke",
			previous: "ignored",
			want:     "tell me a joke",
		},
		{
			name:     "empty previous renders empty substitution",
			template: "start: {}",
			previous: "",
			want:     "start: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderTemplate(tt.template, tt.previous))
		})
	}
}

func TestTextRender(t *testing.T) {
	got, err := Text("echo {}").Render(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo hi", got)
}

func TestTransformReceivesRawPrevious(t *testing.T) {
	var seen string
	step := Transform(func(_ context.Context, previous string) (string, error) {
		seen = previous
		return "next", nil
	})

	got, err := step.Render(context.Background(), "raw {} text {{previous}}")
	require.NoError(t, err)
	assert.Equal(t, "next", got)
	assert.Equal(t, "raw {} text {{previous}}", seen,
		"code steps get the previous response verbatim, untemplated")
}

func TestTransformErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	step := Transform(func(context.Context, string) (string, error) {
		return "", boom
	})

	_, err := step.Render(context.Background(), "")
	assert.ErrorIs(t, err, boom)
}
