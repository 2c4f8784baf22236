// Package config loads the chatcore server configuration from layered
// sources: environment variables, a user-home env file, a local YAML
// override, a default YAML file, then code defaults, in that precedence
// order (highest first).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix        = "CHATCORE__"
	envNestDelimiter = "__"
	homeEnvFileName  = ".chatcore/env"
	localYAMLName    = "chatcore.local.yaml"
	defaultYAMLName  = "chatcore.yaml"
)

// AuthMode selects how /chat and the other gated endpoints authenticate callers.
type AuthMode string

const (
	AuthOff    AuthMode = "off"
	AuthAPIKey AuthMode = "api_key"
	AuthJWT    AuthMode = "jwt"
)

// Config is the complete runtime configuration for the chatcore server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Logging  LoggingConfig  `yaml:"logging"`
	Title    TitleConfig    `yaml:"title"`
	Health   HealthConfig   `yaml:"health"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	StreamTimeout  time.Duration `yaml:"stream_timeout"`
	ReadHeaderTime time.Duration `yaml:"read_header_timeout"`
}

// AuthConfig selects and configures the auth mode.
type AuthConfig struct {
	Mode      AuthMode `yaml:"mode"`
	APIKeys   []string `yaml:"api_keys"`
	JWTSecret string   `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
}

// UpstreamConfig configures the LLM provider used for completions.
type UpstreamConfig struct {
	Provider     string        `yaml:"provider"` // "anthropic" or "openai"
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	MaxRetries   int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TitleConfig configures the /title/generate endpoint.
type TitleConfig struct {
	MaxLength int           `yaml:"max_length"`
	Timeout   time.Duration `yaml:"timeout"`
	Model     string        `yaml:"model"`
}

// HealthConfig configures the health probes.
type HealthConfig struct {
	DeepCheckInterval time.Duration `yaml:"deep_check_interval"`
}

// Load merges ./chatcore.yaml, then ./chatcore.local.yaml, then the file at
// path (each only if present; path may be empty), fills unset fields with
// code defaults, and then applies the home env file and environment
// overrides on top.
func Load(path string) (*Config, error) {
	raw := map[string]any{}

	defaultPath := defaultYAMLName
	if _, err := os.Stat(defaultPath); err == nil {
		r, err := LoadRaw(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading default config: %w", err)
		}
		raw = mergeMaps(raw, r)
	}

	localPath := localYAMLName
	if _, err := os.Stat(localPath); err == nil {
		r, err := LoadRaw(localPath)
		if err != nil {
			return nil, fmt.Errorf("loading local config: %w", err)
		}
		raw = mergeMaps(raw, r)
	}

	if strings.TrimSpace(path) != "" {
		r, err := LoadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		raw = mergeMaps(raw, r)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyHomeEnvFile()
	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.StreamTimeout == 0 {
		cfg.Server.StreamTimeout = 300 * time.Second
	}
	if cfg.Server.ReadHeaderTime == 0 {
		cfg.Server.ReadHeaderTime = 5 * time.Second
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthOff
	}
	if cfg.Auth.JWTExpiry == 0 {
		cfg.Auth.JWTExpiry = 24 * time.Hour
	}
	if cfg.Upstream.Provider == "" {
		cfg.Upstream.Provider = "anthropic"
	}
	if cfg.Upstream.MaxRetries == 0 {
		cfg.Upstream.MaxRetries = 3
	}
	if cfg.Upstream.RequestTimeout == 0 {
		cfg.Upstream.RequestTimeout = 60 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Title.MaxLength == 0 {
		cfg.Title.MaxLength = 50
	}
	if cfg.Title.Timeout == 0 {
		cfg.Title.Timeout = 10 * time.Second
	}
	if cfg.Health.DeepCheckInterval == 0 {
		cfg.Health.DeepCheckInterval = 30 * time.Second
	}
}

// applyHomeEnvFile loads KEY=VALUE lines from ~/.chatcore/env into the
// process environment, without overriding variables already set. This
// mirrors the teacher's precedence of "process env wins over everything".
func applyHomeEnvFile() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(home, homeEnvFileName))
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, strings.TrimSpace(value))
	}
}

// applyEnvOverrides reads CHATCORE__SECTION__FIELD style variables and
// overrides the corresponding config field. Only the handful of fields an
// operator is likely to override at deploy time are wired; anything else
// belongs in the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := lookupEnv("SERVER", "HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := lookupEnv("SERVER", "PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := lookupEnv("AUTH", "MODE"); v != "" {
		cfg.Auth.Mode = AuthMode(v)
	}
	if v := lookupEnv("AUTH", "JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := lookupEnv("UPSTREAM", "PROVIDER"); v != "" {
		cfg.Upstream.Provider = v
	}
	if v := lookupEnv("UPSTREAM", "API_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := lookupEnv("UPSTREAM", "BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := lookupEnv("UPSTREAM", "DEFAULT_MODEL"); v != "" {
		cfg.Upstream.DefaultModel = v
	}
	if v := lookupEnv("LOGGING", "LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func lookupEnv(section, field string) string {
	key := envPrefix + section + envNestDelimiter + field
	return strings.TrimSpace(os.Getenv(key))
}

// ValidationError describes one or more configuration problems found by
// validateConfig.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Issues, "; "))
}

func validateConfig(cfg *Config) error {
	var issues []string

	switch cfg.Auth.Mode {
	case AuthOff:
	case AuthAPIKey:
		if len(cfg.Auth.APIKeys) == 0 {
			issues = append(issues, "auth.mode is api_key but auth.api_keys is empty")
		}
	case AuthJWT:
		if cfg.Auth.JWTSecret == "" {
			issues = append(issues, "auth.mode is jwt but auth.jwt_secret is empty")
		}
	default:
		issues = append(issues, fmt.Sprintf("auth.mode %q is not one of off, api_key, jwt", cfg.Auth.Mode))
	}

	switch cfg.Upstream.Provider {
	case "anthropic", "openai":
	default:
		issues = append(issues, fmt.Sprintf("upstream.provider %q is not one of anthropic, openai", cfg.Upstream.Provider))
	}
	if cfg.Upstream.APIKey == "" {
		issues = append(issues, "upstream.api_key is required")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
