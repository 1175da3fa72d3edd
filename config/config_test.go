package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundcheck-live/soundcheck/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "soundcheck.db", cfg.DB.Path)
	assert.Equal(t, ":4242", cfg.Server.Addr)
	assert.Equal(t, 7*24*time.Hour, cfg.Sync.ArtistTTL)
	assert.Equal(t, 24*time.Hour, cfg.Sync.ShowTTL)
	assert.Equal(t, 3, cfg.Voting.AnonymousQuota)
	assert.Equal(t, "/login", cfg.Auth.LoginURL)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db:
  path: /var/lib/soundcheck/soundcheck.db
sync:
  show_ttl: 6h
voting:
  anonymous_quota: 5
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/soundcheck/soundcheck.db", cfg.DB.Path)
	assert.Equal(t, 6*time.Hour, cfg.Sync.ShowTTL)
	assert.Equal(t, 5, cfg.Voting.AnonymousQuota)
	assert.Equal(t, 7*24*time.Hour, cfg.Sync.ArtistTTL, "untouched keys keep defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: :9999\n"), 0o644))

	t.Setenv("SOUNDCHECK_SERVER_ADDR", ":8080")
	t.Setenv("SOUNDCHECK_VOTING_ANONYMOUS_QUOTA", "7")
	t.Setenv("SOUNDCHECK_AUTH_JWT_SECRET", "hunter2")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.Voting.AnonymousQuota)
	assert.Equal(t, "hunter2", cfg.Auth.JWTSecret)
}

func TestExplicitMissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBadQuotaRejected(t *testing.T) {
	t.Setenv("SOUNDCHECK_VOTING_ANONYMOUS_QUOTA", "0")
	_, err := config.Load("")
	assert.Error(t, err)
}
