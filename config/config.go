// Package config loads server configuration from YAML with environment
// overrides.
//
// Values are resolved in three passes: defaults, then the YAML file with
// ${VAR} references expanded, then MCP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Auth modes.
const (
	AuthNone   = "none"
	AuthStatic = "static"
	AuthJWT    = "jwt"
	AuthJWKS   = "jwks"
)

// Config is the complete server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Transports TransportsConfig `yaml:"transports"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds the identity and request limits of the server.
type ServerConfig struct {
	Name            string        `yaml:"name" env:"MCP_NAME"`
	Version         string        `yaml:"version" env:"MCP_VERSION"`
	Instructions    string        `yaml:"instructions" env:"MCP_INSTRUCTIONS"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"MCP_REQUEST_TIMEOUT"`
	MaxRequestBytes int64         `yaml:"max_request_bytes" env:"MCP_MAX_REQUEST_BYTES"`
}

// TransportsConfig selects which transports start.
type TransportsConfig struct {
	Stdio     bool            `yaml:"stdio" env:"MCP_STDIO"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Redis     RedisConfig     `yaml:"redis"`
}

// HTTPConfig configures the HTTP and SSE transport.
type HTTPConfig struct {
	Addr           string   `yaml:"addr" env:"MCP_HTTP_ADDR"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"MCP_HTTP_ALLOWED_ORIGINS"`
}

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	Addr string `yaml:"addr" env:"MCP_WS_ADDR"`
}

// RedisConfig configures the Redis relay transport.
type RedisConfig struct {
	URL       string `yaml:"url" env:"MCP_REDIS_URL"`
	KeyPrefix string `yaml:"key_prefix" env:"MCP_REDIS_PREFIX"`
}

// TokenConfig describes the user behind a static token.
type TokenConfig struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// AuthConfig selects how bearer tokens are authenticated.
type AuthConfig struct {
	Mode      string   `yaml:"mode" env:"MCP_AUTH_MODE"`
	JWTSecret string   `yaml:"jwt_secret" env:"MCP_JWT_SECRET"`
	Issuer    string   `yaml:"issuer" env:"MCP_JWT_ISSUER"`
	Audience  []string `yaml:"audience" env:"MCP_JWT_AUDIENCE"`
	JWKSURL   string   `yaml:"jwks_url" env:"MCP_JWKS_URL"`
	// JWKSJSON holds an inline JWK Set.
	JWKSJSON string `yaml:"jwks_json"`
	// Tokens maps static bearer tokens to users.
	Tokens map[string]TokenConfig `yaml:"tokens"`
}

type RateLimitConfig struct {
	// Rate is requests per second; 0 disables limiting.
	Rate  int `yaml:"rate" env:"MCP_RATE_LIMIT"`
	Burst int `yaml:"burst" env:"MCP_RATE_BURST"`
	// Key is global, method or client.
	Key string `yaml:"key" env:"MCP_RATE_KEY"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"MCP_LOG_LEVEL"`
	Format string `yaml:"format" env:"MCP_LOG_FORMAT"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"MCP_METRICS_ENABLED"`
	Path    string `yaml:"path" env:"MCP_METRICS_PATH"`
}

// Default returns a stdio-only configuration without auth.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:            "mcp-server",
			Version:         "0.1.0",
			RequestTimeout:  30 * time.Second,
			MaxRequestBytes: 4 << 20,
		},
		Transports: TransportsConfig{
			Stdio: true,
			Redis: RedisConfig{KeyPrefix: "mcp:relay:"},
		},
		Auth:      AuthConfig{Mode: AuthNone},
		RateLimit: RateLimitConfig{Key: "client"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Metrics:   MetricsConfig{Path: "/metrics"},
	}
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a configuration from defaults and the environment alone.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overwrites fields whose MCP_* variable is set.
func (c *Config) ApplyEnv() error {
	if err := envdecode.Decode(c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or "" when unset.
// ${VAR:-fallback} substitutes fallback for an unset or empty variable.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		name := envRef.FindStringSubmatch(match)[1]
		name, fallback, hasFallback := strings.Cut(name, ":-")
		if v := os.Getenv(name); v != "" || !hasFallback {
			return v
		}
		return fallback
	})
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Server.Name == "" {
		add("server.name is required")
	}
	if c.Server.Version == "" {
		add("server.version is required")
	}
	if c.Server.RequestTimeout < 0 {
		add("server.request_timeout must not be negative")
	}

	t := c.Transports
	if !t.Stdio && t.HTTP.Addr == "" && t.WebSocket.Addr == "" && t.Redis.URL == "" {
		add("at least one transport must be enabled")
	}
	if t.HTTP.Addr != "" && t.HTTP.Addr == t.WebSocket.Addr {
		add("transports.http.addr and transports.websocket.addr must differ")
	}

	switch c.Auth.Mode {
	case "", AuthNone:
	case AuthStatic:
		if len(c.Auth.Tokens) == 0 {
			add("auth.tokens is required for static auth")
		}
	case AuthJWT:
		if len(c.Auth.JWTSecret) < 32 {
			add("auth.jwt_secret must be at least 32 bytes")
		}
	case AuthJWKS:
		if c.Auth.JWKSURL == "" && c.Auth.JWKSJSON == "" {
			add("auth.jwks_url or auth.jwks_json is required for jwks auth")
		}
	default:
		add("auth.mode %q is not one of none, static, jwt, jwks", c.Auth.Mode)
	}

	if c.RateLimit.Rate < 0 || c.RateLimit.Burst < 0 {
		add("rate_limit values must not be negative")
	}
	if c.RateLimit.Rate > 0 && !slices.Contains([]string{"global", "method", "client"}, c.RateLimit.Key) {
		add("rate_limit.key %q is not one of global, method, client", c.RateLimit.Key)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		add("logging.format %q is not one of text, json", c.Logging.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path must start with /")
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("logging.level %q is invalid", s)
	}
	return l, nil
}

// NewLogger builds the process logger. Servers on stdio must pass a writer
// other than stdout.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
