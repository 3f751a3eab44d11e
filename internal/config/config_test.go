package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

const testYAML = `
dsn: "postgres://file-host:5432/monojar"
http_server:
  run_address: "127.0.0.1:9090"
monobank:
  address: "https://file.example.com"
  statement_interval: 90s
jwt:
  signing_key: "file_key"
`

func TestLoadFileValuesSurviveUnsetFlags(t *testing.T) {
	path := writeConfigFile(t, testYAML)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := load(fs, []string{"-config", path})
	require.NoError(t, err)

	assert.Equal(t, "postgres://file-host:5432/monojar", cfg.DSN)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTPServer.Address)
	assert.Equal(t, "https://file.example.com", cfg.Monobank.Address)
	assert.Equal(t, 90*time.Second, cfg.Monobank.StatementInterval)
	assert.Equal(t, "file_key", cfg.JWT.SigningKey)

	// Defaults still fill fields the file leaves out.
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 14, cfg.PasswordHashCost)
}

func TestLoadPassedFlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, testYAML)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := load(fs, []string{
		"-config", path,
		"-d", "postgres://flag-host:5432/monojar",
		"-m", "https://flag.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://flag-host:5432/monojar", cfg.DSN)
	assert.Equal(t, "https://flag.example.com", cfg.Monobank.Address)
	// Untouched flag leaves the file value alone.
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTPServer.Address)
}

func TestLoadMissingFile(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	_, err := load(fs, []string{"-config", "/nonexistent/config.yml"})
	assert.Error(t, err)
}
