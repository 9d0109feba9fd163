// Package config provides Viper-based hierarchical configuration management
// plus .env loading for secrets.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Server struct {
		Addr          string `mapstructure:"addr" yaml:"addr"`
		WebhookSecret string `mapstructure:"webhook_secret" yaml:"-"` // Never serialize the secret
	} `mapstructure:"server" yaml:"server"`

	Telegram struct {
		Token string `mapstructure:"token" yaml:"-"` // Never serialize the token
	} `mapstructure:"telegram" yaml:"telegram"`

	Extract struct {
		Model          string `mapstructure:"model" yaml:"model"`
		APIKey         string `mapstructure:"api_key" yaml:"-"` // Never serialize the API key
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"extract" yaml:"extract"`

	Ledger struct {
		APIKey         string `mapstructure:"api_key" yaml:"-"` // Never serialize the API key
		BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"ledger" yaml:"ledger"`

	Data struct {
		Directory   string `mapstructure:"directory" yaml:"directory"`
		CacheFile   string `mapstructure:"cache_file" yaml:"cache_file"`
		BucketsFile string `mapstructure:"buckets_file" yaml:"buckets_file"`
	} `mapstructure:"data" yaml:"data"`

	Matching struct {
		Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
	} `mapstructure:"matching" yaml:"matching"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading:
// defaults, then a config file, then KASSABOT_* environment variables.
func InitializeConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.kassabot")
	v.AddConfigPath(".kassabot")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KASSABOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Log the error but don't fail - continue with defaults and env vars
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// Secrets are always bound straight from unprefixed env variables.
	envBindings := map[string]string{
		"telegram.token":        "TELEGRAM_TOKEN",
		"server.webhook_secret": "API_TOKEN",
		"extract.api_key":       "GEMINI_API_KEY",
		"ledger.api_key":        "SPLITWISE_API_KEY",
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			fmt.Printf("Warning: failed to bind %s environment variable: %v\n", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":5000")

	v.SetDefault("extract.model", "gemini-1.5-flash")
	v.SetDefault("extract.timeout_seconds", 120)

	v.SetDefault("ledger.base_url", "https://secure.splitwise.com/api/v3.0")
	v.SetDefault("ledger.timeout_seconds", 30)

	v.SetDefault("data.directory", "data")
	v.SetDefault("data.cache_file", "output.ndjson")
	v.SetDefault("data.buckets_file", "buckets.yaml")

	v.SetDefault("matching.threshold", 0.8)
}

func validateConfig(config *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(config.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Matching.Threshold < 0 || config.Matching.Threshold > 1 {
		return fmt.Errorf("matching threshold must be in [0,1], got %f", config.Matching.Threshold)
	}

	if config.Extract.TimeoutSeconds <= 0 {
		return fmt.Errorf("extract timeout must be positive, got %d", config.Extract.TimeoutSeconds)
	}

	if config.Ledger.TimeoutSeconds <= 0 {
		return fmt.Errorf("ledger timeout must be positive, got %d", config.Ledger.TimeoutSeconds)
	}

	return nil
}
