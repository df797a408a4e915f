// Package config manages OVC configuration and the .ovc directory
// structure. It handles loading, saving, and initializing the
// repository configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	OVCDir       = ".ovc"
	ConfigFile   = "config"
	DatabaseFile = "ovc.db"

	// DefaultExpiry is the default GC expiry window.
	DefaultExpiry = 30 * 24 * time.Hour
)

// Supported store backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Config represents the OVC configuration.
type Config struct {
	Backend  string `toml:"backend"`
	GCExpiry string `toml:"gc_expiry"` // e.g. "720h"; empty means DefaultExpiry
	path     string // path to .ovc directory
}

// FindRoot finds the .ovc directory by walking up from the current
// directory.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		ovcPath := filepath.Join(dir, OVCDir)
		if info, err := os.Stat(ovcPath); err == nil && info.IsDir() {
			return ovcPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not an ovc repository (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the .ovc directory.
func Load() (*Config, error) {
	ovcPath, err := FindRoot()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(ovcPath, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = ovcPath
	return &cfg, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	configPath := filepath.Join(c.path, ConfigFile)
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// Path returns the path to the .ovc directory.
func (c *Config) Path() string {
	return c.path
}

// DatabasePath returns the path to the store database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// Expiry returns the configured GC expiry window.
func (c *Config) Expiry() (time.Duration, error) {
	if c.GCExpiry == "" {
		return DefaultExpiry, nil
	}
	d, err := time.ParseDuration(c.GCExpiry)
	if err != nil {
		return 0, fmt.Errorf("invalid gc_expiry %q: %w", c.GCExpiry, err)
	}
	return d, nil
}

// Initialize creates a new .ovc directory with initial configuration.
func Initialize(backend string) (*Config, error) {
	switch backend {
	case BackendSQLite, BackendBolt:
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", backend, BackendSQLite, BackendBolt)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	ovcPath := filepath.Join(cwd, OVCDir)

	if _, err := os.Stat(ovcPath); err == nil {
		return nil, fmt.Errorf("ovc repository already exists")
	}

	if err := os.MkdirAll(ovcPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .ovc directory: %w", err)
	}

	cfg := &Config{
		Backend: backend,
		path:    ovcPath,
	}

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(ovcPath)
		return nil, err
	}

	return cfg, nil
}
