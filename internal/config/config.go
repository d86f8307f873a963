// Package config loads server configuration from a JSON config file and
// RECALL_* environment variables via viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const appName = "recall"

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
	// Origins allowed by the CORS middleware in addition to localhost.
	AllowedOrigins []string `json:"allowedOrigins" mapstructure:"allowedOrigins"`
}

// GoogleOAuthConfig holds the OAuth client used for regular sign-in.
type GoogleOAuthConfig struct {
	ClientID     string `json:"clientId" mapstructure:"clientId"`
	ClientSecret string `json:"clientSecret" mapstructure:"clientSecret"`
	RedirectURL  string `json:"redirectUrl" mapstructure:"redirectUrl"`
}

// SupermemoryConfig holds access to the external memory store.
type SupermemoryConfig struct {
	APIKey  string `json:"apiKey" mapstructure:"apiKey"`
	BaseURL string `json:"baseUrl" mapstructure:"baseUrl"`
}

// ModelConfig describes one selectable chat model.
type ModelConfig struct {
	// Provider-side model identifier, e.g. "gpt-4o".
	ProviderModel string `json:"providerModel" mapstructure:"providerModel"`
	// Reasoning models swap the artifacts prompt for reasoning guardrails.
	Reasoning bool `json:"reasoning" mapstructure:"reasoning"`

	ContextWindow   int     `json:"contextWindow" mapstructure:"contextWindow"`
	MaxOutputTokens int     `json:"maxOutputTokens" mapstructure:"maxOutputTokens"`
	CostPer1KInput  float64 `json:"costPer1KInput" mapstructure:"costPer1KInput"`
	CostPer1KOutput float64 `json:"costPer1KOutput" mapstructure:"costPer1KOutput"`
}

// Config is the root configuration.
type Config struct {
	Server      ServerConfig           `json:"server" mapstructure:"server"`
	Google      GoogleOAuthConfig      `json:"google" mapstructure:"google"`
	Supermemory SupermemoryConfig      `json:"supermemory" mapstructure:"supermemory"`
	OpenAIKey   string                 `json:"openaiApiKey" mapstructure:"openaiApiKey"`
	Models      map[string]ModelConfig `json:"models" mapstructure:"models"`
	DefaultModel string                `json:"defaultModel" mapstructure:"defaultModel"`
	Debug       bool                   `json:"debug" mapstructure:"debug"`
}

// Load reads configuration from the usual paths and the environment.
func Load(debug bool) (*Config, error) {
	configureViper()
	setDefaults(debug)

	if err := readConfig(viper.ReadInConfig()); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Models == nil {
		cfg.Models = map[string]ModelConfig{}
	}
	for name, mc := range defaultModels() {
		if _, ok := cfg.Models[name]; !ok {
			cfg.Models[name] = mc
		}
	}

	return cfg, nil
}

func configureViper() {
	viper.SetConfigName(fmt.Sprintf(".%s", appName))
	viper.SetConfigType("json")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	viper.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	viper.SetEnvPrefix(strings.ToUpper(appName))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func setDefaults(debug bool) {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8790)
	viper.SetDefault("supermemory.baseUrl", "https://api.supermemory.ai")
	viper.SetDefault("defaultModel", "chat-model")
	viper.SetDefault("google.redirectUrl", "http://localhost:8790/api/v1/auth/callback")
	if debug {
		viper.SetDefault("debug", true)
	}
}

// readConfig tolerates a missing config file; everything can come from
// the environment.
func readConfig(err error) error {
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("failed to read config: %w", err)
}

func defaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"chat-model": {
			ProviderModel:   "gpt-4o",
			ContextWindow:   128000,
			MaxOutputTokens: 16384,
			CostPer1KInput:  0.0025,
			CostPer1KOutput: 0.01,
		},
		"chat-model-reasoning": {
			ProviderModel:   "o1-mini",
			Reasoning:       true,
			ContextWindow:   128000,
			MaxOutputTokens: 65536,
			CostPer1KInput:  0.003,
			CostPer1KOutput: 0.012,
		},
	}
}

// Model resolves a selectable model by name, falling back to the
// default model's entry for unknown names.
func (c *Config) Model(name string) ModelConfig {
	if mc, ok := c.Models[name]; ok {
		return mc
	}
	return c.Models[c.DefaultModel]
}

// Addr returns the listen address of the API server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
