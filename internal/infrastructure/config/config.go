// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	engineCfg, err := cfg.EngineConfig()
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"rent-reconciliation-backend/internal/domain/recon"
)

// Config represents the entire application configuration
type Config struct {
	Engine        EngineConfig        `yaml:"engine"`
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	Slack         SlackConfig         `yaml:"slack"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// EngineConfig holds the matching and classification thresholds.
// AmountEpsilon and DuplicateWindow are strings here so the YAML stays
// readable ("0.01", "48h"); EngineConfig() parses them.
type EngineConfig struct {
	NoiseTokens         []string `yaml:"noise_tokens"`
	SimilarityThreshold int      `yaml:"similarity_threshold"`
	AmountEpsilon       string   `yaml:"amount_epsilon"`
	DuplicateWindow     string   `yaml:"duplicate_window"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// GeminiConfig holds Gemini API configuration for run summaries
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// SlackConfig holds the webhook used for run notifications
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EngineConfig converts the string-typed threshold fields into a
// validated engine configuration.
func (c *Config) EngineConfig() (recon.Config, error) {
	engineCfg := recon.DefaultConfig()

	if len(c.Engine.NoiseTokens) > 0 {
		engineCfg.NoiseTokens = c.Engine.NoiseTokens
	}
	if c.Engine.SimilarityThreshold != 0 {
		engineCfg.SimilarityThreshold = c.Engine.SimilarityThreshold
	}
	if c.Engine.AmountEpsilon != "" {
		eps, err := decimal.NewFromString(c.Engine.AmountEpsilon)
		if err != nil {
			return recon.Config{}, fmt.Errorf("parsing amount_epsilon: %w", err)
		}
		engineCfg.AmountEpsilon = eps
	}
	if c.Engine.DuplicateWindow != "" {
		window, err := time.ParseDuration(c.Engine.DuplicateWindow)
		if err != nil {
			return recon.Config{}, fmt.Errorf("parsing duplicate_window: %w", err)
		}
		engineCfg.DuplicateWindow = window
	}

	if err := engineCfg.Validate(); err != nil {
		return recon.Config{}, err
	}
	return engineCfg, nil
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${GEMINI_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	return &Config{
		Engine: EngineConfig{
			SimilarityThreshold: getEnvInt("SIMILARITY_THRESHOLD", 0),
			AmountEpsilon:       os.Getenv("AMOUNT_EPSILON"),
			DuplicateWindow:     os.Getenv("DUPLICATE_WINDOW"),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("RECON_DB_PATH", "reconciliation.db"),
		},
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Slack: SlackConfig{
			WebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvPath("config.yaml")
}

// LoadOrEnvPath tries to load from the specified path, falls back to environment variables
func LoadOrEnvPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// GetAPIKey retrieves an API key from config first, then tries multiple environment variable names
// Usage: GetAPIKey(cfg.Gemini.APIKey, "GEMINI_API_KEY")
func (c *Config) GetAPIKey(configValue string, envVarNames ...string) string {
	// First, try the config value
	if configValue != "" {
		return configValue
	}

	// Then try each environment variable in order
	for _, envVar := range envVarNames {
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}

	return ""
}
