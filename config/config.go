// Package config loads the cahier service configuration from YAML with env
// overrides applied by the binary.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full cahier configuration.
type Config struct {
	Listen      string          `yaml:"listen"`
	DBPath      string          `yaml:"db_path"`
	LogLevel    string          `yaml:"log_level"`
	MaxImportMB int             `yaml:"max_import_mb"`
	MaxMediaMB  int             `yaml:"max_media_mb"`
	Auth        AuthConfig      `yaml:"auth"`
	Storage     StorageConfig   `yaml:"storage"`
	Assistant   AssistantConfig `yaml:"assistant"`
	Retention   RetentionConfig `yaml:"retention"`
}

// AuthConfig configures sessions and cookies.
type AuthConfig struct {
	SessionSecret string `yaml:"session_secret"` // overridable via SESSION_SECRET
	CookieDomain  string `yaml:"cookie_domain"`
	SecureCookies bool   `yaml:"secure_cookies"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// StorageConfig configures the S3-compatible media store.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// AssistantConfig configures the hosted LLM client.
type AssistantConfig struct {
	APIKey    string `yaml:"api_key"` // overridable via ANTHROPIC_API_KEY
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// RetentionConfig configures observability cleanup.
type RetentionConfig struct {
	EventLogsDays int `yaml:"event_logs_days"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:      ":8080",
		DBPath:      "cahier.db",
		LogLevel:    "info",
		MaxImportMB: 50,
		MaxMediaMB:  50,
		Auth: AuthConfig{
			TokenTTLHours: 24,
		},
		Storage: StorageConfig{
			Bucket: "cahier-media",
			Region: "us-east-1",
		},
		Assistant: AssistantConfig{
			Model:     "claude-sonnet-4-5",
			BaseURL:   "https://api.anthropic.com",
			MaxTokens: 4096,
		},
		Retention: RetentionConfig{
			EventLogsDays: 90,
		},
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig
// merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.MaxImportMB <= 0 {
		return fmt.Errorf("max_import_mb must be > 0")
	}
	if c.MaxMediaMB <= 0 {
		return fmt.Errorf("max_media_mb must be > 0")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("auth.token_ttl_hours must be > 0")
	}
	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage.endpoint is set")
	}
	return nil
}

// MaxImportBytes returns the import size cap in bytes.
func (c *Config) MaxImportBytes() int64 { return int64(c.MaxImportMB) * 1024 * 1024 }

// MaxMediaBytes returns the media upload cap in bytes.
func (c *Config) MaxMediaBytes() int64 { return int64(c.MaxMediaMB) * 1024 * 1024 }
