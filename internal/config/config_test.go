package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("FORTNITE_API_KEY", "key")
	t.Setenv("FORTNITE_PLAYERS", "Alice, Bob ,carol")
	t.Setenv("TICK_INTERVAL", "")
	t.Setenv("FETCH_TIMEOUT", "")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DB_PATH", "")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice", "Bob", "carol"}, cfg.Players)
	assert.Equal(t, 15*time.Minute, cfg.TickInterval)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "https://fortnite-api.com", cfg.BaseURL)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_CustomValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TICK_INTERVAL", "30s")
	t.Setenv("FETCH_TIMEOUT", "10s")
	t.Setenv("API_BASE_URL", "http://localhost:9000/")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FORTNITE_API_KEY", "")

	_, err := Load(zerolog.Nop())
	assert.Error(t, err)
}

func TestLoad_NoPlayers(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FORTNITE_PLAYERS", " , ")

	_, err := Load(zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoPlayers)
}

func TestLoad_DuplicatePlayers(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FORTNITE_PLAYERS", "Alice,Bob,Alice")

	_, err := Load(zerolog.Nop())
	assert.ErrorContains(t, err, "duplicate")
}

func TestLoad_PlayersAreCaseSensitive(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FORTNITE_PLAYERS", "alice,Alice")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "Alice"}, cfg.Players)
}

func TestLoad_FetchTimeoutMustBeBelowTick(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TICK_INTERVAL", "10s")
	t.Setenv("FETCH_TIMEOUT", "10s")

	_, err := Load(zerolog.Nop())
	assert.ErrorContains(t, err, "FETCH_TIMEOUT")
}

func TestLoad_InvalidDuration(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TICK_INTERVAL", "soon")

	_, err := Load(zerolog.Nop())
	assert.ErrorContains(t, err, "TICK_INTERVAL")
}
