// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonathan/job-applier/internal/types"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "APPLY_AGENT"

// Config represents settings that can be loaded from a JSON file and overridden
// by environment variables. All fields are optional.
type Config struct {
	// Logging
	LogLevel  string `json:"log_level,omitempty"`  // debug, info, warn, error
	LogFormat string `json:"log_format,omitempty"` // json or console

	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	// Field mapper
	APIKey string `json:"api_key,omitempty"` // Gemini API key

	// Server
	Port               int    `json:"port,omitempty"`
	JWTSecret          string `json:"jwt_secret,omitempty"`
	JWTExpirationHours int    `json:"jwt_expiration_hours,omitempty"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute,omitempty"`

	// Runs
	AllowPrivateHosts   bool            `json:"allow_private_hosts,omitempty"`
	SettleSeconds       int             `json:"settle_seconds,omitempty"`        // wait after navigation
	SubmitSettleSeconds int             `json:"submit_settle_seconds,omitempty"` // wait after submission
	WorkDir             string          `json:"work_dir,omitempty"`              // parent of per-run temp dirs
	ScreenshotDir       string          `json:"screenshot_dir,omitempty"`        // keeps screenshots after a run
	DefaultSettings     *types.Settings `json:"default_settings,omitempty"`      // used when a request omits settings
}

// Defaults returns the built-in configuration
func Defaults() Config {
	settings := types.DefaultSettings()
	return Config{
		LogLevel:            "info",
		LogFormat:           "console",
		Port:                8080,
		JWTExpirationHours:  24,
		RateLimitPerMinute:  30,
		SettleSeconds:       2,
		SubmitSettleSeconds: 3,
		DefaultSettings:     &settings,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load layers built-in defaults, an optional JSON file and environment overrides,
// then validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		file, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = file.MergeWithDefaults(cfg)
	}

	cfg.ApplyEnv(viper.New())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envBinding ties a config key to the environment variables that can set it
type envBinding struct {
	key   string
	extra []string
	apply func(c *Config, v *viper.Viper)
}

var envBindings = []envBinding{
	{key: "log_level", apply: func(c *Config, v *viper.Viper) { c.LogLevel = v.GetString("log_level") }},
	{key: "log_format", apply: func(c *Config, v *viper.Viper) { c.LogFormat = v.GetString("log_format") }},
	{key: "database_url", extra: []string{"DATABASE_URL"}, apply: func(c *Config, v *viper.Viper) { c.DatabaseURL = v.GetString("database_url") }},
	{key: "api_key", extra: []string{"GEMINI_API_KEY"}, apply: func(c *Config, v *viper.Viper) { c.APIKey = v.GetString("api_key") }},
	{key: "port", extra: []string{"PORT"}, apply: func(c *Config, v *viper.Viper) { c.Port = v.GetInt("port") }},
	{key: "jwt_secret", extra: []string{"JWT_SECRET"}, apply: func(c *Config, v *viper.Viper) { c.JWTSecret = v.GetString("jwt_secret") }},
	{key: "jwt_expiration_hours", extra: []string{"JWT_EXPIRATION_HOURS"}, apply: func(c *Config, v *viper.Viper) { c.JWTExpirationHours = v.GetInt("jwt_expiration_hours") }},
	{key: "rate_limit_per_minute", apply: func(c *Config, v *viper.Viper) { c.RateLimitPerMinute = v.GetInt("rate_limit_per_minute") }},
	{key: "allow_private_hosts", apply: func(c *Config, v *viper.Viper) { c.AllowPrivateHosts = v.GetBool("allow_private_hosts") }},
	{key: "settle_seconds", apply: func(c *Config, v *viper.Viper) { c.SettleSeconds = v.GetInt("settle_seconds") }},
	{key: "submit_settle_seconds", apply: func(c *Config, v *viper.Viper) { c.SubmitSettleSeconds = v.GetInt("submit_settle_seconds") }},
	{key: "work_dir", apply: func(c *Config, v *viper.Viper) { c.WorkDir = v.GetString("work_dir") }},
	{key: "screenshot_dir", apply: func(c *Config, v *viper.Viper) { c.ScreenshotDir = v.GetString("screenshot_dir") }},
}

// ApplyEnv overlays environment variables onto c. Each key reads
// APPLY_AGENT_<KEY> first, then any conventional unprefixed name.
func (c *Config) ApplyEnv(v *viper.Viper) {
	for _, b := range envBindings {
		names := append([]string{b.key, EnvPrefix + "_" + strings.ToUpper(b.key)}, b.extra...)
		if err := v.BindEnv(names...); err != nil {
			continue
		}
		if v.IsSet(b.key) {
			b.apply(c, v)
		}
	}
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("config error: unknown 'log_level' %q", c.LogLevel)
	}
	if c.LogFormat != "" && !validLogFormats[c.LogFormat] {
		return fmt.Errorf("config error: 'log_format' must be json or console")
	}

	// Validate numeric ranges
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", c.Port)
	}
	if c.JWTExpirationHours < 0 {
		return fmt.Errorf("config error: 'jwt_expiration_hours' must be non-negative")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("config error: 'rate_limit_per_minute' must be non-negative")
	}
	if c.SettleSeconds < 0 {
		return fmt.Errorf("config error: 'settle_seconds' must be non-negative")
	}
	if c.SubmitSettleSeconds < 0 {
		return fmt.Errorf("config error: 'submit_settle_seconds' must be non-negative")
	}

	if c.WorkDir != "" {
		if info, err := os.Stat(c.WorkDir); err != nil || !info.IsDir() {
			return fmt.Errorf("config error: work directory not found: %s", c.WorkDir)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.JWTSecret == "" {
		result.JWTSecret = defaults.JWTSecret
	}
	if result.WorkDir == "" {
		result.WorkDir = defaults.WorkDir
	}
	if result.ScreenshotDir == "" {
		result.ScreenshotDir = defaults.ScreenshotDir
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.JWTExpirationHours == 0 {
		result.JWTExpirationHours = defaults.JWTExpirationHours
	}
	if result.RateLimitPerMinute == 0 {
		result.RateLimitPerMinute = defaults.RateLimitPerMinute
	}
	if result.SettleSeconds == 0 {
		result.SettleSeconds = defaults.SettleSeconds
	}
	if result.SubmitSettleSeconds == 0 {
		result.SubmitSettleSeconds = defaults.SubmitSettleSeconds
	}

	if result.DefaultSettings == nil {
		result.DefaultSettings = defaults.DefaultSettings
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (environment and CLI flags should always win for bools)

	return result
}

// NavigateSettle is the wait after page navigation
func (c *Config) NavigateSettle() time.Duration {
	return time.Duration(c.SettleSeconds) * time.Second
}

// SubmitSettle is the wait after submission
func (c *Config) SubmitSettle() time.Duration {
	return time.Duration(c.SubmitSettleSeconds) * time.Second
}
