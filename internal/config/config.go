package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the liveedit configuration
type Config struct {
	Title   string        `yaml:"title"`
	Server  ServerConfig  `yaml:"server"`
	Page    PageConfig    `yaml:"page"`
	Store   StoreConfig   `yaml:"store"`
	Uploads UploadsConfig `yaml:"uploads"`
	Editor  EditorConfig  `yaml:"editor"`
	API     *APIConfig    `yaml:"api,omitempty"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// PageConfig points at the page being edited
type PageConfig struct {
	File  string `yaml:"file"`  // HTML file of the editable page
	Watch bool   `yaml:"watch"` // reload the preview when the file changes
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Backend  string `yaml:"backend"`            // "sqlite" (default), "postgres", "mongo", "memory"
	Path     string `yaml:"path,omitempty"`     // sqlite: database file (default: ./liveedit.db)
	DSN      string `yaml:"dsn,omitempty"`      // postgres: connection string (env vars expanded)
	URI      string `yaml:"uri,omitempty"`      // mongo: connection URI (env vars expanded)
	Database string `yaml:"database,omitempty"` // mongo: database name
}

// UploadsConfig holds background image upload settings
type UploadsConfig struct {
	Dir        string `yaml:"dir"`                  // on-disk blob directory
	BaseURL    string `yaml:"base_url"`             // public URL prefix for stored blobs
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`// per-upload cap (default: 8)
	Extensions string `yaml:"extensions,omitempty"` // comma-separated allowlist (default: png,jpg,jpeg,gif,webp)
}

// EditorConfig holds editing-behavior settings
type EditorConfig struct {
	SnapshotTimeout string `yaml:"snapshot_timeout,omitempty"` // snapshot request timeout (default: 10s)
}

// APIConfig holds editing API configuration
type APIConfig struct {
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
	Auth      *AuthConfig      `yaml:"auth,omitempty"`
}

// AuthConfig holds authentication configuration for the editing API
type AuthConfig struct {
	// APIKey is the required API key for authentication.
	// Supports environment variable expansion (e.g., "${API_KEY}")
	APIKey string `yaml:"api_key,omitempty"`
	// HeaderName is the HTTP header name for the API key (default: "X-API-Key")
	HeaderName string `yaml:"header_name,omitempty"`
}

// RateLimitConfig holds rate limiting configuration for the editing API
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // default: 10
	Burst             int     `yaml:"burst,omitempty"`               // default: 20
}

// GetDSN returns the postgres DSN with environment variable expansion
func (c StoreConfig) GetDSN() string {
	return os.ExpandEnv(c.DSN)
}

// GetURI returns the mongo URI with environment variable expansion
func (c StoreConfig) GetURI() string {
	return os.ExpandEnv(c.URI)
}

// GetPath returns the sqlite file path (default: ./liveedit.db)
func (c StoreConfig) GetPath() string {
	if c.Path == "" {
		return "liveedit.db"
	}
	return c.Path
}

// GetMaxSizeBytes returns the upload size cap in bytes (default: 8 MiB)
func (c UploadsConfig) GetMaxSizeBytes() int64 {
	if c.MaxSizeMB <= 0 {
		return 8 << 20
	}
	return int64(c.MaxSizeMB) << 20
}

// GetExtensions returns the allowed upload extensions
func (c UploadsConfig) GetExtensions() []string {
	if c.Extensions == "" {
		return []string{"png", "jpg", "jpeg", "gif", "webp"}
	}
	var out []string
	for _, ext := range strings.Split(c.Extensions, ",") {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// GetSnapshotTimeout returns the parsed snapshot timeout (default: 10s)
func (c EditorConfig) GetSnapshotTimeout() time.Duration {
	if c.SnapshotTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(c.SnapshotTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *APIConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *APIConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// IsAuthEnabled returns true if API authentication is configured
func (c *APIConfig) IsAuthEnabled() bool {
	if c == nil || c.Auth == nil {
		return false
	}
	return c.Auth.GetAPIKey() != ""
}

// GetAPIKey returns the configured API key with environment variable expansion
func (c *AuthConfig) GetAPIKey() string {
	if c == nil || c.APIKey == "" {
		return ""
	}
	return os.ExpandEnv(c.APIKey)
}

// GetHeaderName returns the header name for authentication (default: "X-API-Key")
func (c *AuthConfig) GetHeaderName() string {
	if c == nil || c.HeaderName == "" {
		return "X-API-Key"
	}
	return c.HeaderName
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "Live Editor",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Page: PageConfig{
			File:  "index.html",
			Watch: true,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "liveedit.db",
		},
		Uploads: UploadsConfig{
			Dir:     "uploads/editor",
			BaseURL: "/uploads/editor/",
		},
	}
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadFromDir looks for liveedit.yaml in the given directory.
// If it is not found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, "liveedit.yaml"))
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
