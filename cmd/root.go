// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatpilot",
	Short: "chatpilot drives a chat web application through a real browser.",
	Long: `chatpilot automates a browser session against a chat web application:
it logs in (reusing a persistent profile when possible), submits prompts and
prints the extracted responses to stdout.`,
	Version: Version,
}

func init() {
	// Assigned here rather than in the rootCmd literal to avoid an
	// initialization cycle with initializeConfig, which refers to rootCmd.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Runs before any command, setting up config and logging.
		if err := initializeConfig(); err != nil {
			return err
		}

		var cfg config.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			// Fall back to a console logger so the failure is visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "chatpilot"})
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "chatpilot"})
			return fmt.Errorf("invalid configuration: %w", err)
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting chatpilot", zap.String("version", Version))
		return nil
	}
}

// Execute runs the root command with a signal-aware context. Ctrl-C cancels
// the in-flight browser operation instead of killing the process mid-write.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("headless", true, "run the browser without a visible window")
	rootCmd.PersistentFlags().String("provider", "chatgpt", "chat provider to drive")
	rootCmd.PersistentFlags().String("method", "email", "login method ('email' or 'google')")
	rootCmd.PersistentFlags().String("email", "", "login email (overrides "+config.EnvEmail+")")
	rootCmd.PersistentFlags().String("password", "", "login password (overrides "+config.EnvPassword+")")
	rootCmd.PersistentFlags().String("session-file", "", "path of the exported session-state file")
	rootCmd.PersistentFlags().String("profile-dir", "", "browser profile directory (default ~/.chatpilot/profile)")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeConfig reads the config file and ENV variables if set.
func initializeConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("CHATPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Flags override file and environment values.
	if err := viper.BindPFlag("browser.headless", rootCmd.PersistentFlags().Lookup("headless")); err != nil {
		return err
	}
	if err := viper.BindPFlag("browser.profile_dir", rootCmd.PersistentFlags().Lookup("profile-dir")); err != nil {
		return err
	}
	if err := viper.BindPFlag("provider.name", rootCmd.PersistentFlags().Lookup("provider")); err != nil {
		return err
	}
	if err := viper.BindPFlag("provider.method", rootCmd.PersistentFlags().Lookup("method")); err != nil {
		return err
	}
	if err := viper.BindPFlag("session.state_path", rootCmd.PersistentFlags().Lookup("session-file")); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}
	return nil
}
