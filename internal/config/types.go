package config

import "time"

// Config represents the complete scrapehook configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	State   StateConfig   `yaml:"state"`
	Webhook WebhookConfig `yaml:"webhook"`
	API     APIConfig     `yaml:"api,omitempty"`
	Scrape  ScrapeConfig  `yaml:"scrape"`

	// Path is the file the config was loaded from; empty when built from defaults.
	Path string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StateConfig defines where verified deliveries are stored.
type StateConfig struct {
	Path string `yaml:"path"`
}

// WebhookConfig defines the callback receiver.
type WebhookConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`

	// Secret is the shared API key used as the HMAC key.
	Secret string `yaml:"secret"`

	// MaxAge is the replay window for x-webhook-timestamp.
	MaxAge time.Duration `yaml:"max_age"`

	// MaxBodySize accepts plain bytes or a KB/MB/GB suffix, e.g. "1MB".
	MaxBodySize string `yaml:"max_body_size,omitempty"`
}

// APIConfig protects the read-only delivery API. Routes are not mounted when Token is empty.
type APIConfig struct {
	Token string `yaml:"token"`
}

// ScrapeConfig defines the outbound scrape service.
type ScrapeConfig struct {
	APIURL  string        `yaml:"api_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default values
const (
	DefaultListen      = "127.0.0.1:3000"
	DefaultWebhookPath = "/api/scrape-callback"
	DefaultMaxAge      = 5 * time.Minute
	DefaultMaxBodySize = 1048576 // 1 MB
	DefaultTimeout     = 60 * time.Second
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "scrapehook",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: "./data/scrapehook.db",
		},
		Webhook: WebhookConfig{
			Listen:      DefaultListen,
			Path:        DefaultWebhookPath,
			MaxAge:      DefaultMaxAge,
			MaxBodySize: "1MB",
		},
		Scrape: ScrapeConfig{
			Timeout: DefaultTimeout,
		},
	}
}
