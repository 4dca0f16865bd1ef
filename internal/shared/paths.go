package shared

import (
	"path/filepath"

	"github.com/20after4/configdir"
)

// ConfigDir returns the per-user configuration directory for the application.
func ConfigDir(parts ...string) string {
	return configdir.LocalConfig(append([]string{AppName}, parts...)...)
}

// CacheDir returns the per-user cache directory for the application.
func CacheDir(parts ...string) string {
	return configdir.LocalCache(append([]string{AppName}, parts...)...)
}

// DefaultConfigPath is where commands look for config.toml when --config is not given.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	return configdir.MakePath(dir)
}
