package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 1500*time.Millisecond, cfg.Challenge.BonusDelay)
	assert.InDelta(t, 0.05, cfg.Challenge.BonusRate, 1e-9)
	assert.Equal(t, "UTC", cfg.Challenge.DefaultTimezone)
	assert.Equal(t, 50, cfg.Challenge.InboxSize)
}

func TestLoad_ChallengeSection(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
challenge:
  catalog_path: /srv/catalog.yaml
  default_timezone: Europe/London
  bonus_delay: 0s
  persona_aliases:
    the builder: builder
`))
	require.NoError(t, err)

	assert.Equal(t, "/srv/catalog.yaml", cfg.Challenge.CatalogPath)
	assert.Equal(t, "Europe/London", cfg.Challenge.DefaultTimezone)
	assert.Zero(t, cfg.Challenge.BonusDelay)
	assert.Equal(t, "builder", cfg.Challenge.PersonaAliases["the builder"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
