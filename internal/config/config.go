package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fortnite-tracker/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ErrNoPlayers is returned when no player identifiers are configured.
var ErrNoPlayers = errors.New("at least one player is required")

type Config struct {
	APIKey       string
	Players      []string
	TickInterval time.Duration
	FetchTimeout time.Duration
	BaseURL      string
	DBPath       string
	RedisURL     string
	ServerPort   string
	LogLevel     string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	tickInterval, err := getEnvDuration("TICK_INTERVAL", constants.DefaultTickInterval)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := getEnvDuration("FETCH_TIMEOUT", constants.DefaultFetchTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:       getEnv("FORTNITE_API_KEY", ""),
		Players:      splitPlayers(os.Getenv("FORTNITE_PLAYERS")),
		TickInterval: tickInterval,
		FetchTimeout: fetchTimeout,
		BaseURL:      strings.TrimRight(getEnv("API_BASE_URL", constants.DefaultBaseURL), "/"),
		DBPath:       getEnv("DB_PATH", "fortnite.db"),
		RedisURL:     getEnv("REDIS_URL", ""),
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Int("players", len(cfg.Players)).
		Dur("tick_interval", cfg.TickInterval).
		Dur("fetch_timeout", cfg.FetchTimeout).
		Str("db_path", cfg.DBPath).
		Bool("redis", cfg.RedisURL != "").
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("FORTNITE_API_KEY is required")
	}
	if len(c.Players) == 0 {
		return fmt.Errorf("FORTNITE_PLAYERS: %w", ErrNoPlayers)
	}
	seen := make(map[string]struct{}, len(c.Players))
	for _, p := range c.Players {
		if _, dup := seen[p]; dup {
			return fmt.Errorf("FORTNITE_PLAYERS: duplicate player %q", p)
		}
		seen[p] = struct{}{}
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval)
	}
	if c.FetchTimeout <= 0 || c.FetchTimeout >= c.TickInterval {
		return fmt.Errorf("FETCH_TIMEOUT (%s) must be positive and below TICK_INTERVAL (%s)", c.FetchTimeout, c.TickInterval)
	}
	return nil
}

// splitPlayers keeps configured order; identifiers are case-sensitive.
func splitPlayers(raw string) []string {
	var players []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			players = append(players, p)
		}
	}
	return players
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
