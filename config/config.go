package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ProviderConfig holds the settings for one LLM backend.
type ProviderConfig struct {
	APIKey        string `json:"apiKey"`
	BaseURL       string `json:"baseUrl,omitempty"`       // Empty = provider default endpoint
	Model         string `json:"model"`                   // Primary model
	FallbackModel string `json:"fallbackModel,omitempty"` // Smaller model retried on failure
}

// StoreConfig holds the analytics store connection settings.
type StoreConfig struct {
	Engine string `json:"engine"` // "mysql" or "sqlite"
	// DSN is the MySQL DSN, or the file path for SQLite.
	DSN string `json:"dsn"`
}

// Config structure
type Config struct {
	OpenAI    ProviderConfig `json:"openai"`    // Primary gateway provider
	Anthropic ProviderConfig `json:"anthropic"` // Fallback gateway provider
	Store     StoreConfig    `json:"store"`

	ListenAddr      string `json:"listenAddr"`
	LogDir          string `json:"logDir"`
	DetailedLog     bool   `json:"detailedLog"`
	DefaultTimezone string `json:"defaultTimezone"` // IANA name used when the session has none

	// Agent loop bounds. Zero values take the defaults below.
	MaxToolIterations int `json:"maxToolIterations"` // Tool dispatches per request
	GatewayTimeoutSec int `json:"gatewayTimeoutSec"` // Per model call
	MaxResponseChars  int `json:"maxResponseChars"`  // Cap on raw model output
}

// Defaults for the agent loop. These mirror the dashboard's request budget:
// three tool round-trips is enough for every suggested-query topic, and the
// 45s gateway timeout keeps a worst-case request under the HTTP deadline.
const (
	DefaultMaxToolIterations = 3
	DefaultGatewayTimeoutSec = 45
	DefaultMaxResponseChars  = 200000
)

// Load reads the config file from disk and applies defaults.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8790"
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = "America/Mexico_City"
	}
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = DefaultMaxToolIterations
	}
	if c.GatewayTimeoutSec <= 0 {
		c.GatewayTimeoutSec = DefaultGatewayTimeoutSec
	}
	if c.MaxResponseChars <= 0 {
		c.MaxResponseChars = DefaultMaxResponseChars
	}
	if c.Store.Engine == "" {
		c.Store.Engine = "mysql"
	}
}
