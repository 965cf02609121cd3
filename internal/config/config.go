// Package config loads the licensing core's configuration from environment
// variables (prefix CONVERT) layered over an optional YAML file. Environment
// values win over file values; defaults come from struct tags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete configuration for the bridge and the server.
type Config struct {
	Backend BackendConfig `yaml:"backend" envconfig:"BACKEND"`
	License LicenseConfig `yaml:"license" envconfig:"LICENSE"`
	Dev     DevConfig     `yaml:"dev" envconfig:"DEV"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
}

// BackendConfig points at the online license backend. An empty URL disables
// all online calls; the manager then runs offline-only.
type BackendConfig struct {
	URL          string        `yaml:"url" envconfig:"URL"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"5s"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" envconfig:"PROBE_TIMEOUT" default:"2s"`
}

// LicenseConfig controls local license state handling.
type LicenseConfig struct {
	StateFile           string        `yaml:"state_file" envconfig:"STATE_FILE" default:"license.dat"`
	TrialFile           string        `yaml:"trial_file" envconfig:"TRIAL_FILE" default:"trial.json"`
	PublicKeyFile       string        `yaml:"public_key_file" envconfig:"PUBLIC_KEY_FILE"`
	RevalidateInterval  time.Duration `yaml:"revalidate_interval" envconfig:"REVALIDATE_INTERVAL" default:"24h"`
	ValidationCacheTTL  time.Duration `yaml:"validation_cache_ttl" envconfig:"VALIDATION_CACHE_TTL" default:"15m"`
}

// DevConfig enables developer auto-activation. It is honored only in dev
// builds (see DevModeEnabled); the flag alone does nothing in a release.
type DevConfig struct {
	AutoActivate   bool   `yaml:"auto_activate" envconfig:"AUTO_ACTIVATE" default:"false"`
	LicenseKeyFile string `yaml:"license_key_file" envconfig:"LICENSE_KEY_FILE"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// ServerConfig configures the license server binary.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8090"`
	DatabasePath    string        `yaml:"database_path" envconfig:"DATABASE_PATH" default:"licenses.db"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// devBuild is flipped to "true" via ldflags in development builds. Auto
// activation of the developer license is impossible in a release build no
// matter what the environment says.
var devBuild = "false"

// DevModeEnabled reports whether developer auto-activation may run.
func (c *Config) DevModeEnabled() bool {
	return devBuild == "true" && c.Dev.AutoActivate
}

// Load reads configuration from an optional YAML file and the environment.
func Load() (*Config, error) {
	return LoadFrom(configFilePath())
}

// LoadFrom reads configuration from the given YAML file (if it exists) and
// then applies environment overrides.
func LoadFrom(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("CONVERT", &cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	if c.Backend.ProbeTimeout <= 0 {
		return fmt.Errorf("backend probe timeout must be positive")
	}
	if c.License.StateFile == "" {
		return fmt.Errorf("license state file path is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}

// configFilePath looks for convert.yaml next to the executable, falling back
// to the working directory.
func configFilePath() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "convert.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "convert.yaml"
}
