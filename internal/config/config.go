// Package config loads and validates floragent configuration from a YAML
// file with environment overrides. Both remote providers require
// credentials; missing credentials are a fatal startup error, never a
// per-call error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all floragent configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configures the language-model provider.
	LLM LLMConfig `yaml:"llm"`

	// Cryptor configures the encryption provider.
	Cryptor CryptorConfig `yaml:"cryptor"`

	// Storage configures the flat-file stores.
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the language-model provider.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// CryptorConfig configures the Cryptor Service used for PII detection,
// encryption, and decryption.
type CryptorConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Tenant  string `yaml:"tenant"`
	Timeout string `yaml:"timeout"`

	// Threshold is the PII detection sensitivity sent on detect-encrypt.
	Threshold float64 `yaml:"threshold"`
	// Schema is the placeholder schema version.
	Schema string `yaml:"schema"`
}

// StorageConfig configures the persisted order and bundle records. Both
// files are flat JSON, independently resettable by deleting them.
type StorageConfig struct {
	OrdersPath  string `yaml:"orders_path"`
	BundlesPath string `yaml:"bundles_path"`

	// WatchResets reloads the stores when either file is replaced or
	// removed out of band.
	WatchResets bool `yaml:"watch_resets"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "floragent",
		Version: "1.0.0",

		LLM: LLMConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "60s",
		},

		Cryptor: CryptorConfig{
			BaseURL:   "https://private-layer-397444089703.europe-west1.run.app",
			Tenant:    "ai_private_demo",
			Timeout:   "30s",
			Threshold: 0.35,
			Schema:    "v1",
		},

		Storage: StorageConfig{
			OrdersPath:  "orders_db.json",
			BundlesPath: "bundles_db.json",
			WatchResets: true,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("CRYPTOR_API_URL"); url != "" {
		c.Cryptor.BaseURL = url
	}
	if key := os.Getenv("CRYPTOR_API_KEY"); key != "" {
		c.Cryptor.APIKey = key
	}
	if tenant := os.Getenv("CRYPTOR_TENANT"); tenant != "" {
		c.Cryptor.Tenant = tenant
	}
}

// Validate checks the configuration for startup-fatal problems. No turn
// is processed when Validate fails.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set GEMINI_API_KEY)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Cryptor.BaseURL == "" {
		return fmt.Errorf("cryptor.base_url is required (set CRYPTOR_API_URL)")
	}
	if c.Cryptor.APIKey == "" {
		return fmt.Errorf("cryptor.api_key is required (set CRYPTOR_API_KEY)")
	}
	if c.Cryptor.Tenant == "" {
		return fmt.Errorf("cryptor.tenant is required (set CRYPTOR_TENANT)")
	}
	if c.Storage.OrdersPath == "" || c.Storage.BundlesPath == "" {
		return fmt.Errorf("storage paths are required")
	}
	if _, err := c.LLMTimeout(); err != nil {
		return fmt.Errorf("llm.timeout: %w", err)
	}
	if _, err := c.CryptorTimeout(); err != nil {
		return fmt.Errorf("cryptor.timeout: %w", err)
	}
	return nil
}

// LLMTimeout parses the LLM request timeout.
func (c *Config) LLMTimeout() (time.Duration, error) {
	return parseTimeout(c.LLM.Timeout, 60*time.Second)
}

// CryptorTimeout parses the cryptor request timeout.
func (c *Config) CryptorTimeout() (time.Duration, error) {
	return parseTimeout(c.Cryptor.Timeout, 30*time.Second)
}

func parseTimeout(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", s)
	}
	return d, nil
}
