package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.HTTPPort)
	assert.Equal(t, "data/cards.json", cfg.DataFile)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"Greg", "Caz", "Justin", "Ansley"}, cfg.Assignees)
	assert.False(t, cfg.Verbose)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"http_port: \"8080\"\n"+
			"data_file: /var/lib/board/cards.json\n"+
			"ambassadors:\n  - Ana Maria\n  - Luis\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "/var/lib/board/cards.json", cfg.DataFile)
	assert.Equal(t, []string{"Ana Maria", "Luis"}, cfg.Ambassadors)
	// Unset keys keep their defaults.
	assert.Equal(t, "data/observer-cache", cfg.CacheDir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BUNDLEBOARD_HTTP_PORT", "9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.HTTPPort)
}

func TestLoadMissingNamedFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
