package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns ~/.synopush, or ./synopush-data if the home
// directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "synopush-data"
	}
	return filepath.Join(home, ".synopush")
}

// DefaultConfigPath returns the default config.toml location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// DBPath returns the sqlite database path under the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "gateway.db")
}

// LogPath returns the daemon log file path under the data dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "gatewayd.log")
}

// EnsureDataDir creates the data dir if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0700)
}
