package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/20after4/configdir"
	"github.com/BurntSushi/toml"
)

// AppName names the per-user config and cache directories.
const AppName = "plexaa"

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Plex     PlexConfig     `toml:"plex"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Cache    CacheConfig    `toml:"cache"`
}

// PlexConfig contains account and client settings for talking to plex.tv and media servers.
type PlexConfig struct {
	AccountURL       string `toml:"account_url"`
	AuthAppURL       string `toml:"auth_app_url"`
	Product          string `toml:"product"`
	ClientIdentifier string `toml:"client_identifier"`
	Token            string `toml:"token"`
	ProbeTimeout     int    `toml:"probe_timeout"` // seconds
	RequestTimeout   int    `toml:"request_timeout"`
	RetryMax         int    `toml:"retry_max"`
	RecentLimit      int    `toml:"recent_limit"`
	Workers          int    `toml:"workers"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// CacheConfig controls the prefetch audio cache.
type CacheConfig struct {
	Dir           string  `toml:"dir"`
	PrefetchCount int     `toml:"prefetch_count"`
	Workers       int     `toml:"workers"`
	RateLimit     float64 `toml:"rate_limit"`
}

// Addr returns host:port for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProbeTimeoutDuration returns the liveness probe timeout, defaulting to five seconds.
func (p PlexConfig) ProbeTimeoutDuration() time.Duration {
	if p.ProbeTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.ProbeTimeout) * time.Second
}

// RequestTimeoutDuration returns the content request timeout, defaulting to thirty seconds.
func (p PlexConfig) RequestTimeoutDuration() time.Duration {
	if p.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.RequestTimeout) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
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

	if dir := filepath.Dir(path); dir != "." {
		if err := configdir.MakePath(dir); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolvePaths fills empty database and cache paths with per-user locations.
func ResolvePaths(c *Config) {
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(ConfigDir(), AppName+".db")
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = CacheDir("audio")
	}
}
