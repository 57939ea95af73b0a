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

type sample struct {
	Name    string        `yaml:"name" env:"SAMPLE_NAME"`
	Port    int           `yaml:"port" env:"SAMPLE_PORT"`
	Timeout time.Duration `yaml:"timeout"`
	Tags    []string      `yaml:"tags" env:"SAMPLE_TAGS" envSeparator:","`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_HOST_NAME", "from-env")
	path := writeConfig(t, "name: ${SAMPLE_HOST_NAME}\nport: 9000\ntimeout: 2s\n")

	var cfg sample
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestLoad_EnvTagsOverrideFile(t *testing.T) {
	t.Setenv("SAMPLE_PORT", "7000")
	t.Setenv("SAMPLE_TAGS", "a,b")
	path := writeConfig(t, "name: file\nport: 9000\ntags: [x]\n")

	var cfg sample
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, "file", cfg.Name)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
}

func TestLoad_Validates(t *testing.T) {
	path := writeConfig(t, "name: x\nport: 0\n")

	var cfg sample
	err := Load(path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be positive")
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg sample
	require.Error(t, Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
}

func TestLoadOrDefault_MissingFileKeepsDefaults(t *testing.T) {
	cfg := sample{Name: "default", Port: 8080}
	require.NoError(t, LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadOrDefault_MissingFileStillAppliesEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "env")
	cfg := sample{Name: "default", Port: 8080}
	require.NoError(t, LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
	assert.Equal(t, "env", cfg.Name)
}
