// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBodySizeLimit is the largest accepted request body (1MB)
	DefaultBodySizeLimit int64 = 1 << 20

	minBodySizeLimit int64 = 1 << 10
	maxBodySizeLimit int64 = 100 << 20

	// DefaultModel is used when neither the caller nor the config names one
	DefaultModel = "gpt-4o"

	// DefaultUpstreamTimeout bounds a single completion call
	DefaultUpstreamTimeout = 60 * time.Second

	defaultConfigPath = "config.yaml"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Completion CompletionConfig `yaml:"completion"`
	Identity   IdentityConfig   `yaml:"identity"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// Path is the route of the completion endpoint
	Path string `yaml:"path"`
	// BodySizeLimit accepts a plain byte count or a K/M suffix (e.g. "512K", "1MB")
	BodySizeLimit  string `yaml:"body_size_limit"`
	SwaggerEnabled bool   `yaml:"swagger_enabled"`

	// BodySizeLimitBytes is BodySizeLimit resolved by Load
	BodySizeLimitBytes int64 `yaml:"-"`
}

// CompletionConfig configures the upstream chat-completion provider
type CompletionConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// IdentityConfig selects how bearer tokens are verified
type IdentityConfig struct {
	// Type is "firebase" or "static"
	Type            string   `yaml:"type"`
	ProjectID       string   `yaml:"project_id"`
	CredentialsFile string   `yaml:"credentials_file"`
	CheckRevoked    bool     `yaml:"check_revoked"`
	StaticTokens    []string `yaml:"static_tokens"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LogConfig holds logging settings
type LogConfig struct {
	// Format is "text", "json", or empty to pick by terminal detection
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// defaults returns a Config with every optional value filled in
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Path: "/",
		},
		Completion: CompletionConfig{
			BaseURL:      "https://api.openai.com/v1",
			DefaultModel: DefaultModel,
			Timeout:      DefaultUpstreamTimeout,
		},
		Identity: IdentityConfig{
			Type: "firebase",
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration with the following precedence (highest first):
// environment variables, .env file, YAML file, built-in defaults.
// The YAML file path comes from TIMEFLOW_CONFIG (default config.yaml); a missing file is not an error.
func Load() (*Config, error) {
	// .env values never replace variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()

	path := os.Getenv("TIMEFLOW_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	if err := loadYAML(path, cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	limit, err := ParseBodySizeLimit(cfg.Server.BodySizeLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid server.body_size_limit: %w", err)
	}
	cfg.Server.BodySizeLimitBytes = limit

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandString(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides overlays environment variables onto cfg. Non-empty values win.
func applyEnvOverrides(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	setString("PORT", &cfg.Server.Port)
	setString("TIMEFLOW_COMPLETION_PATH", &cfg.Server.Path)
	setString("BODY_SIZE_LIMIT", &cfg.Server.BodySizeLimit)
	if err := setBool("SWAGGER_ENABLED", &cfg.Server.SwaggerEnabled); err != nil {
		return err
	}

	setString("OPENAI_API_KEY", &cfg.Completion.APIKey)
	setString("OPENAI_BASE_URL", &cfg.Completion.BaseURL)
	setString("TIMEFLOW_DEFAULT_MODEL", &cfg.Completion.DefaultModel)
	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		cfg.Completion.Timeout = d
	}

	setString("IDENTITY_TYPE", &cfg.Identity.Type)
	setString("FIREBASE_PROJECT_ID", &cfg.Identity.ProjectID)
	setString("GOOGLE_APPLICATION_CREDENTIALS", &cfg.Identity.CredentialsFile)
	if err := setBool("FIREBASE_CHECK_REVOKED", &cfg.Identity.CheckRevoked); err != nil {
		return err
	}
	if v := os.Getenv("STATIC_TOKENS"); v != "" {
		cfg.Identity.StaticTokens = splitList(v)
	}

	if err := setBool("METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		return err
	}
	setString("METRICS_ENDPOINT", &cfg.Metrics.Endpoint)

	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("LOG_LEVEL", &cfg.Log.Level)
	return nil
}

// parseDuration accepts plain integers (seconds) or Go duration strings (e.g. "90s", "2m").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envPattern matches ${VAR} and ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders from the environment.
// A placeholder whose variable is unset or empty and has no default is left untouched.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return match
	})
}

var bodySizePattern = regexp.MustCompile(`^(\d+)([KkMm][Bb]?)?$`)

// ParseBodySizeLimit converts a size string into bytes. Empty selects DefaultBodySizeLimit.
// Accepted range is 1KB to 100MB.
func ParseBodySizeLimit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultBodySizeLimit, nil
	}

	m := bodySizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid size %q: expected a number with optional K or M suffix", s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	switch strings.TrimSuffix(strings.ToUpper(m[2]), "B") {
	case "K":
		n <<= 10
	case "M":
		n <<= 20
	}

	if n < minBodySizeLimit || n > maxBodySizeLimit {
		return 0, fmt.Errorf("size %q out of range (1K to 100M)", s)
	}
	return n, nil
}

// Validate checks the settings required to serve traffic.
func (c *Config) Validate() error {
	var errs []error

	if c.Completion.APIKey == "" {
		errs = append(errs, errors.New("completion.api_key (OPENAI_API_KEY) is required"))
	}
	if c.Completion.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("completion.timeout must be positive, got %s", c.Completion.Timeout))
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("server.path must start with '/', got %q", c.Server.Path))
	}

	switch c.Identity.Type {
	case "firebase":
	case "static":
		if len(c.Identity.StaticTokens) == 0 {
			errs = append(errs, errors.New("identity.static_tokens is required when identity.type is static"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown identity.type %q (must be firebase or static)", c.Identity.Type))
	}

	return errors.Join(errs...)
}
