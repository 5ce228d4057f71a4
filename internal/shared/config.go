package shared

import (
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`
	Polling  PollingConfig  `toml:"polling"`
	Auth     AuthConfig     `toml:"auth"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host"`
	Port      int     `toml:"port"`
	StaticDir string  `toml:"static_dir"`
	MaxBodyMB int     `toml:"max_body_mb"`
	RateLimit float64 `toml:"rate_limit"` // generation requests per second per client, 0 disables
	RateBurst int     `toml:"rate_burst"`
}

// ProviderConfig describes the image-synthesis provider.
type ProviderConfig struct {
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key"`
	APIKeyEnv    string `toml:"api_key_env"`
	EditModel    string `toml:"edit_model"`
	EditFunction string `toml:"edit_function"`
	T2IModel     string `toml:"t2i_model"`
	T2ISize      string `toml:"t2i_size"`
	OutputNum    int    `toml:"output_num"`
}

// PollingConfig bounds the status polling loop.
type PollingConfig struct {
	IntervalMS      int `toml:"interval_ms"`
	MaxAttempts     int `toml:"max_attempts"`
	RequestTimeoutS int `toml:"request_timeout_s"`
}

// AuthConfig selects the user store and token settings.
type AuthConfig struct {
	Backend       string `toml:"backend"` // mongo, sqlite or none
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
	JWTSecret     string `toml:"jwt_secret"`
	TokenTTLHours int    `toml:"token_ttl_h"`
	AdminToken    string `toml:"admin_token"`
}

// placeholderSecrets are template values that must never sign tokens.
var placeholderSecrets = []string{"change-me", "changeme", "secret"}

// Enabled reports whether a user store backend is selected.
func (a AuthConfig) Enabled() bool {
	switch strings.ToLower(a.Backend) {
	case "mongo", "sqlite":
		return true
	}
	return false
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `toml:"level"`
}

// Interval is the wait between two status queries.
func (p PollingConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}

// RequestTimeout is the deadline for one whole generation.
func (p PollingConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutS) * time.Second
}

// Budget is the longest the polling loop may wait between queries.
func (p PollingConfig) Budget() time.Duration {
	return time.Duration(p.MaxAttempts) * p.Interval()
}

// TokenTTL is the lifetime of issued login tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads variables from the given .env files into the process environment.
//
// Missing files are ignored and already-set variables win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto c using lookup, usually [os.LookupEnv].
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if c.Provider.APIKeyEnv != "" {
		if v, ok := lookup(c.Provider.APIKeyEnv); ok && v != "" {
			c.Provider.APIKey = v
		}
	}
	if v, ok := lookup("MONGODB_URI"); ok && v != "" {
		c.Auth.MongoURI = v
	}
	if v, ok := lookup("JWT_SECRET"); ok && v != "" {
		c.Auth.JWTSecret = v
	}
	if v, ok := lookup("ANIMX_ADMIN_TOKEN"); ok && v != "" {
		c.Auth.AdminToken = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks that the configuration can drive the polling loop and server.
func (c *Config) Validate() error {
	p := c.Polling
	if p.IntervalMS <= 0 || p.MaxAttempts <= 0 || p.RequestTimeoutS <= 0 {
		return fmt.Errorf("%w: polling values must be positive", ErrInvalidConfig)
	}
	if p.RequestTimeout() <= p.Budget() {
		return fmt.Errorf("%w: request_timeout_s (%s) must exceed the polling budget (%s)",
			ErrInvalidConfig, p.RequestTimeout(), p.Budget())
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("%w: provider.base_url", ErrInvalidConfig)
	}
	if c.Provider.OutputNum < 1 || c.Provider.OutputNum > 4 {
		return fmt.Errorf("%w: provider.output_num must be between 1 and 4", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Auth.Backend) {
	case "mongo":
		if c.Auth.MongoURI == "" {
			return fmt.Errorf("%w: auth.mongo_uri is required for the mongo backend", ErrInvalidConfig)
		}
	case "sqlite", "none", "":
	default:
		return fmt.Errorf("%w: unknown auth backend %q", ErrInvalidConfig, c.Auth.Backend)
	}
	if c.Auth.Enabled() {
		for _, p := range placeholderSecrets {
			if strings.EqualFold(strings.TrimSpace(c.Auth.JWTSecret), p) {
				return fmt.Errorf("%w: auth.jwt_secret is a placeholder, set a unique value or leave it empty", ErrInvalidConfig)
			}
		}
	}
	return nil
}

// EnsureJWTSecret fills an empty token secret with a random one when auth is enabled.
// It reports whether a secret was generated; such tokens do not outlive the process.
func (c *Config) EnsureJWTSecret() bool {
	if !c.Auth.Enabled() || strings.TrimSpace(c.Auth.JWTSecret) != "" {
		return false
	}
	c.Auth.JWTSecret = rand.Text()
	return true
}

// HasCredentials reports whether a provider credential is configured.
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.Provider.APIKey) != ""
}
