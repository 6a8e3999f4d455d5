package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfig names a config file when --config is not given.
	EnvConfig = "SCRAPEHOOK_CONFIG"
	// EnvAPIURL and EnvAPIKey fill scrape and webhook settings left empty by the file.
	EnvAPIURL = "SCRAP_API_URL"
	EnvAPIKey = "SCRAP_API_KEY"

	legacyConfigPath = "./scrapehook.yaml"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file, applies defaults and
// environment fallbacks, and validates the result.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.Path = absPath
	return cfg, nil
}

// Parse decodes YAML on top of Defaults, applies environment fallbacks and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyConfigDefaults(cfg)
	applyEnvFallbacks(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configPath when given, otherwise the discovered config,
// otherwise defaults plus environment.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = Discover()
	}
	if configPath != "" {
		return Load(configPath)
	}

	cfg := Defaults()
	applyEnvFallbacks(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Discover returns $SCRAPEHOOK_CONFIG or ./scrapehook.yaml when present, else "".
func Discover() string {
	if path := os.Getenv(EnvConfig); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if _, err := os.Stat(legacyConfigPath); err == nil {
		return legacyConfigPath
	}
	return ""
}

func applyConfigDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.Webhook.Listen == "" {
		cfg.Webhook.Listen = defaults.Webhook.Listen
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = defaults.Webhook.Path
	}
	if cfg.Webhook.MaxAge == 0 {
		cfg.Webhook.MaxAge = defaults.Webhook.MaxAge
	}
	if cfg.Webhook.MaxBodySize == "" {
		cfg.Webhook.MaxBodySize = defaults.Webhook.MaxBodySize
	}
	if cfg.Scrape.Timeout == 0 {
		cfg.Scrape.Timeout = defaults.Scrape.Timeout
	}
}

// applyEnvFallbacks fills the API URL and key from the environment when the
// file leaves them empty. The API key doubles as the webhook secret.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Scrape.APIURL == "" {
		cfg.Scrape.APIURL = os.Getenv(EnvAPIURL)
	}
	if cfg.Scrape.APIKey == "" {
		cfg.Scrape.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.Webhook.Secret == "" {
		cfg.Webhook.Secret = cfg.Scrape.APIKey
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with / (got %q)", cfg.Webhook.Path)
	}
	if cfg.Webhook.MaxAge < 0 {
		return fmt.Errorf("webhook.max_age must not be negative")
	}
	if _, err := ParseMaxBodySize(cfg.Webhook.MaxBodySize); err != nil {
		return fmt.Errorf("webhook.max_body_size %q: %w", cfg.Webhook.MaxBodySize, err)
	}
	if cfg.Scrape.Timeout < 0 {
		return fmt.Errorf("scrape.timeout must not be negative")
	}

	secrets := []struct{ field, value string }{
		{"webhook.secret", cfg.Webhook.Secret},
		{"scrape.api_key", cfg.Scrape.APIKey},
		{"scrape.api_url", cfg.Scrape.APIURL},
		{"api.token", cfg.API.Token},
	}
	for _, s := range secrets {
		if matches := envVarPattern.FindStringSubmatch(s.value); matches != nil {
			return fmt.Errorf("%s references undefined environment variable %s", s.field, matches[1])
		}
	}
	return nil
}

// ParseMaxBodySize parses size strings like "1MB", "2048576", "512KB" to bytes.
// Returns DefaultMaxBodySize if empty.
func ParseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
