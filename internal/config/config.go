package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the persisted daemon settings.
type Config struct {
	WatchDirectory string        `yaml:"watch_directory"`   // Directory to watch for new HEIC files
	AutoDelete     bool          `yaml:"auto_delete"`       // If true, move sources to trash after conversion
	LogLevel       string        `yaml:"log_level"`         // Logging level: debug, info, warn, error
	Notifications  bool          `yaml:"notifications"`     // If true, send desktop notifications
	Exclude        []string      `yaml:"exclude,omitempty"` // Glob patterns to exclude
	Delay          time.Duration `yaml:"delay"`             // Settle time before processing files
}

// Default returns the configuration used on first run and after a reset.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		WatchDirectory: home,
		LogLevel:       "info",
	}
}

// DefaultPath returns the per-user location of the config file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "heic2jpg", "config.yaml"), nil
}

// Store reads and writes the configuration file at one fixed path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the persisted configuration. A missing file is a first run:
// the defaults are persisted and returned. An unreadable or corrupt file
// falls back to the defaults rather than failing.
func (s *Store) Load() *Config {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := s.Save(cfg); err != nil {
			log.Warnf("Could not persist default config: %v", err)
		}
		return cfg
	}
	if err != nil {
		log.Warnf("Could not read config %s, using defaults: %v", s.path, err)
		return Default()
	}

	// Unmarshal over the defaults so missing fields keep their default
	// values; unknown fields are ignored.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Warnf("Could not parse config %s, using defaults: %v", s.path, err)
		return Default()
	}
	return cfg
}

// Save writes cfg to a temp file next to the target and renames it into
// place, so a crash mid-write never leaves a half-written config.
func (s *Store) Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("could not create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("could not create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("could not write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not write config: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not replace config: %w", err)
	}
	return nil
}

// Reset discards any saved customization and persists the defaults.
func (s *Store) Reset() (*Config, error) {
	cfg := Default()
	if err := s.Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
