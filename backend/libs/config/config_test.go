package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`
	Ledger struct {
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"SAMPLE_WRITE_TIMEOUT"`
	} `yaml:"ledger"`
	Origins []string `yaml:"origins" env:"SAMPLE_ORIGINS"`
	Debug   bool     `yaml:"debug"`
	Skip    string   `env:"-"`

	invalid bool
}

func (c *sampleConfig) Validate() error {
	if c.invalid {
		return errors.New("invalid")
	}
	return nil
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: \"9000\"\nledger:\n  writeTimeout: 2s\ndebug: true\n"), 0o600))

	t.Setenv(defaultConfigPathEnv, path)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("SAMPLE_ORIGINS", "a, b,,c")

	var cfg sampleConfig
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, "9100", cfg.HTTP.Port)
	assert.Equal(t, 2*time.Second, cfg.Ledger.WriteTimeout)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Origins)
	assert.True(t, cfg.Debug)
}

func TestLoadConfigDurations(t *testing.T) {
	t.Setenv("SAMPLE_WRITE_TIMEOUT", "7")
	var cfg sampleConfig
	require.NoError(t, LoadConfig(&cfg))
	assert.Equal(t, 7*time.Second, cfg.Ledger.WriteTimeout)

	t.Setenv("SAMPLE_WRITE_TIMEOUT", "250ms")
	require.NoError(t, LoadConfig(&cfg))
	assert.Equal(t, 250*time.Millisecond, cfg.Ledger.WriteTimeout)

	t.Setenv("SAMPLE_WRITE_TIMEOUT", "soon")
	assert.Error(t, LoadConfig(&cfg))
}

func TestLoadConfigValidate(t *testing.T) {
	cfg := sampleConfig{invalid: true}
	err := LoadConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestLoadConfigRejectsNonStruct(t *testing.T) {
	assert.Error(t, LoadConfig(nil))
	s := "x"
	assert.Error(t, LoadConfig(&s))
}
