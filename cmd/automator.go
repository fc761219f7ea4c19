// File: cmd/automator.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/chatpilot/internal/automator"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

// newAutomator builds an Automator from the resolved configuration plus the
// credential flags. No browser is started here; that happens in Init.
func newAutomator(cmd *cobra.Command) (*automator.Automator, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	email, err := cmd.Flags().GetString("email")
	if err != nil {
		return nil, err
	}
	password, err := cmd.Flags().GetString("password")
	if err != nil {
		return nil, err
	}
	if email == "" {
		email = cfg.Provider.Email
	}
	if password == "" {
		password = cfg.Provider.Password
	}

	return automator.New(automator.Options{
		Provider: cfg.Provider.Name,
		Headless: cfg.Browser.Headless,
		Credentials: config.Credentials{
			Email:    email,
			Password: password,
			Method:   cfg.Provider.Method,
		},
		SessionPath: cfg.Session.StatePath,
		Browser:     cfg.Browser,
		Logger:      observability.GetLogger(),
	}), nil
}
