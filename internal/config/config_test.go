package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err, "a missing config file falls back to defaults")

	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Backend.ProbeTimeout)
	assert.Equal(t, "license.dat", cfg.License.StateFile)
	assert.Equal(t, "trial.json", cfg.License.TrialFile)
	assert.Equal(t, 24*time.Hour, cfg.License.RevalidateInterval)
	assert.Equal(t, 15*time.Minute, cfg.License.ValidationCacheTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "licenses.db", cfg.Server.DatabasePath)
	assert.Empty(t, cfg.Backend.URL, "online calls are disabled by default")
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convert.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  url: https://licenses.example.com
  api_key: sk_test_123
license:
  public_key_file: /etc/convert/product.pem
dev:
  license_key_file: dev-license.key
logging:
  file_path: /var/log/convert.log
`), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://licenses.example.com", cfg.Backend.URL)
	assert.Equal(t, "sk_test_123", cfg.Backend.APIKey)
	assert.Equal(t, "/etc/convert/product.pem", cfg.License.PublicKeyFile)
	assert.Equal(t, "dev-license.key", cfg.Dev.LicenseKeyFile)
	assert.Equal(t, "/var/log/convert.log", cfg.Logging.FilePath)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convert.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  url: https://file.example.com\n"), 0o644))

	t.Setenv("CONVERT_BACKEND_URL", "https://env.example.com")
	t.Setenv("CONVERT_BACKEND_TIMEOUT", "9s")
	t.Setenv("CONVERT_SERVER_PORT", "9999")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Backend.URL)
	assert.Equal(t, 9*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadFromRejectsCorruptYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convert.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [not a map"), 0o644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "CONVERT_SERVER_PORT", "70000"},
		{"zero timeout", "CONVERT_BACKEND_TIMEOUT", "0s"},
		{"unknown log level", "CONVERT_LOGGING_LEVEL", "verbose"},
		{"empty state file", "CONVERT_LICENSE_STATE_FILE", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
			assert.Error(t, err)
		})
	}
}

func TestDevModeDisabledInReleaseBuilds(t *testing.T) {
	cfg := &Config{Dev: DevConfig{AutoActivate: true}}
	assert.False(t, cfg.DevModeEnabled(),
		"the config flag alone must not enable dev auto-activation")
}
