package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the gateway's config.toml.
type Config struct {
	// ListenAddr is the bind address for the HTTP control surface.
	ListenAddr string `toml:"listen_addr"`
	// DataDir holds the sqlite database, log file and lock file.
	DataDir string `toml:"data_dir"`
	// InsecureTLS skips certificate verification when talking to the DSM.
	// Most home deployments run Synology Chat behind a self-signed cert.
	InsecureTLS bool `toml:"insecure_tls"`
	// RetentionDays is how long pushed message records are kept.
	RetentionDays int `toml:"retention_days"`
	// DirectorySyncCycles is how many poll cycles pass between directory
	// user re-syncs. 0 disables periodic re-sync; the sync on the first
	// cycle after start runs regardless.
	DirectorySyncCycles int `toml:"directory_sync_cycles"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		ListenAddr:          "127.0.0.1:8250",
		DataDir:             DefaultDataDir(),
		RetentionDays:       7,
		DirectorySyncCycles: 720,
	}
}

// Load reads config from the given path, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
