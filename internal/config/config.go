// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Environment variables consulted when credentials are not supplied explicitly.
const (
	EnvEmail    = "CHATGPT_EMAIL"
	EnvPassword = "CHATGPT_PASSWORD"
)

// ErrMissingCredentials is returned when neither explicit credentials nor the
// environment provide both an email and a password. This is a caller mistake,
// not a login failure, and is never retried.
var ErrMissingCredentials = errors.New(
	"credentials not found: pass them explicitly or set " + EnvEmail + " and " + EnvPassword)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the browser instance driving the chat UI.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ProfileDir        string        `mapstructure:"profile_dir" yaml:"profile_dir"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// SessionConfig controls the optional exported session-state file. The
// persistent profile directory is the primary session mechanism; the state
// file is an escape hatch for moving a session between machines.
type SessionConfig struct {
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
}

// ProviderConfig selects the chat provider and carries the login identity.
// Email and password are never written back out to YAML.
type ProviderConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Method   string `mapstructure:"method" yaml:"method"`
	Email    string `mapstructure:"email" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
}

// Credentials is the fully resolved login identity handed to a provider.
// Method selects the login path ("email" or a federated provider like
// "google").
type Credentials struct {
	Email    string
	Password string
	Method   string
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "chatpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "60s")

	// -- Session --
	v.SetDefault("session.state_path", "")

	// -- Provider --
	v.SetDefault("provider.name", "chatgpt")
	v.SetDefault("provider.method", "email")
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Credentials are sensitive and come from the environment by default.
	v.BindEnv("provider.email", EnvEmail)
	v.BindEnv("provider.password", EnvPassword)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Provider.Name == "" {
		return fmt.Errorf("provider.name must not be empty")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	return nil
}

// ResolveCredentials applies the credential precedence rule: explicitly
// supplied values win over environment-sourced ones. Missing email or
// password after resolution is ErrMissingCredentials.
func ResolveCredentials(explicit Credentials) (Credentials, error) {
	creds := explicit
	if creds.Email == "" {
		creds.Email = os.Getenv(EnvEmail)
	}
	if creds.Password == "" {
		creds.Password = os.Getenv(EnvPassword)
	}
	if creds.Method == "" {
		creds.Method = "email"
	}
	if creds.Email == "" || creds.Password == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

// DefaultProfileDir resolves the fixed per-installation browser profile
// directory. The profile outlives any single run so that cookies and local
// storage persist across invocations.
func DefaultProfileDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".chatpilot", "profile"), nil
}
