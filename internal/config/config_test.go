package config_test

import (
	"dailymatch/backend/internal/config"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnvOverrides(t *testing.T) {
	// Arrange
	t.Setenv("CONFIG_ENV", "test-missing")
	t.Setenv("MATCH_JWT_SECRET", "secret")
	t.Setenv("MATCH_MATCHING_QUEUE_TTL", "10m")
	t.Setenv("MATCH_HTTP_ADDR", ":9090")

	// Act
	cfg, err := config.Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "secret", cfg.JWTSecret)
	assert.Equal(t, 10*time.Minute, cfg.Matching.QueueTTL)
	assert.Equal(t, config.DefaultSessionTTL, cfg.Matching.SessionTTL)
	assert.Equal(t, config.DefaultChannelIDMaxLen, cfg.Matching.ChannelIDMaxLen)
	assert.Equal(t, config.DefaultRanks, cfg.Matching.Ranks)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("CONFIG_ENV", "test-missing")
	t.Setenv("MATCH_JWT_SECRET", "")

	_, err := config.Load()

	assert.ErrorContains(t, err, "jwt_secret")
}

func TestMatchingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.MatchingConfig)
		wantErr string
	}{
		{"defaults are valid", func(*config.MatchingConfig) {}, ""},
		{"zero queue ttl", func(m *config.MatchingConfig) { m.QueueTTL = 0 }, "queue_ttl"},
		{"negative session ttl", func(m *config.MatchingConfig) { m.SessionTTL = -time.Second }, "session_ttl"},
		{"zero sweep interval", func(m *config.MatchingConfig) { m.SweepInterval = 0 }, "sweep_interval"},
		{"channel id above provider bound", func(m *config.MatchingConfig) { m.ChannelIDMaxLen = 31 }, "channel_id_max_len"},
		{"prefix too long", func(m *config.MatchingConfig) { m.ChannelIDPrefix = "daily-match-channel-" }, "channel_id_prefix"},
		{"no ranks", func(m *config.MatchingConfig) { m.Ranks = nil }, "ranks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := config.DefaultMatching()
			tt.mutate(&m)

			err := m.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_RejectsUnknownMode(t *testing.T) {
	t.Setenv("CONFIG_ENV", "test-missing")
	t.Setenv("MATCH_JWT_SECRET", "secret")
	t.Setenv("MATCH_MODE", "production")

	_, err := config.Load()

	assert.ErrorContains(t, err, "mode")
}
