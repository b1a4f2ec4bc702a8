package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotusgame/duel-server-go/internal/errors"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":50051", cfg.Server.GRPC.Address)
	assert.Equal(t, 200, cfg.Matchmaking.RatingWindow)
	assert.Equal(t, 1000, cfg.Matchmaking.DefaultRating)
	assert.Equal(t, 3, cfg.Matchmaking.MaxClaimAttempts)
	assert.Equal(t, 5*time.Second, cfg.Matchmaking.PublishTimeout)
	assert.Equal(t, "duel/match", cfg.Broadcast.MQTT.TopicPrefix)
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  http:
    address: ":9090"
matchmaking:
  rating_window: 150
archive:
  enabled: true
  interval: 30s
  s3:
    bucket: replays
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("DUEL_MATCHMAKING_RATING_WINDOW", "300")
	t.Setenv("DUEL_DATABASE_URL", "postgres://duel@db:5432/duel")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTP.Address)
	assert.Equal(t, 300, cfg.Matchmaking.RatingWindow)
	assert.Equal(t, "postgres://duel@db:5432/duel", cfg.Database.URL)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Archive.Interval)
	assert.Equal(t, "replays", cfg.Archive.S3.Bucket)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		key    string
	}{
		{"empty grpc address", func(c *Config) { c.Server.GRPC.Address = "" }, "server.grpc.address"},
		{"negative window", func(c *Config) { c.Matchmaking.RatingWindow = -1 }, "matchmaking.rating_window"},
		{"no claim attempts", func(c *Config) { c.Matchmaking.MaxClaimAttempts = 0 }, "matchmaking.max_claim_attempts"},
		{"min above max conns", func(c *Config) { c.Database.MinConns = c.Database.MaxConns + 1 }, "database.min_conns"},
		{"unknown level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"mqtt without broker", func(c *Config) {
			c.Broadcast.MQTT.Enabled = true
			c.Broadcast.MQTT.BrokerURL = ""
		}, "broadcast.mqtt.broker_url"},
		{"archive without target", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Directory = ""
		}, "archive.directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			e, ok := errors.Cast(err)
			require.True(t, ok)
			assert.Equal(t, errors.KindInvalidConfig, e.Kind)
			assert.Equal(t, tt.key, e.Details["key"])
		})
	}

	assert.NoError(t, base.Validate())
}
