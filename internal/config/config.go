// Package config loads engine configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable of the engine and its surfaces.
type Config struct {
	// DataDir holds the sqlite database. Defaults to ~/.goalflow.
	DataDir string `mapstructure:"data_dir"`
	// WorkDir roots the file and shell tools.
	WorkDir string `mapstructure:"work_dir"`

	// Concurrency bounds parallel step dispatch. 1 keeps declaration
	// order as the global order.
	Concurrency int `mapstructure:"concurrency"`

	// Provider and Model are the planning and inference defaults.
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`

	// APIAddr is the HTTP listen address for serve.
	APIAddr string `mapstructure:"api_addr"`

	AnthropicKey string `mapstructure:"anthropic_key"`
	OpenAIKey    string `mapstructure:"openai_key"`
}

// Load reads goalflow.yaml from the config dir if present, then
// applies GOALFLOW_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("work_dir", ".")
	v.SetDefault("concurrency", 1)
	v.SetDefault("provider", "anthropic")
	v.SetDefault("model", "claude-sonnet-4-20250514")
	v.SetDefault("api_addr", ":8090")

	v.SetConfigName("goalflow")
	v.SetConfigType("yaml")
	v.AddConfigPath(defaultDataDir())
	v.AddConfigPath(".")

	v.SetEnvPrefix("GOALFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// API keys also come from the conventional env vars.
	if cfg.AnthropicKey == "" {
		cfg.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".goalflow"
	}
	return filepath.Join(home, ".goalflow")
}
