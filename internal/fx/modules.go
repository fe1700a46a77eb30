package fx

import (
	"context"
	"fmt"
	"time"

	"fortnite-tracker/internal/api"
	"fortnite-tracker/internal/config"
	"fortnite-tracker/internal/constants"
	"fortnite-tracker/internal/coordinator"
	"fortnite-tracker/internal/database"
	"fortnite-tracker/internal/logger"
	"fortnite-tracker/internal/publisher"
	"fortnite-tracker/internal/repository"
	"fortnite-tracker/internal/server"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideCoordinator(cfg *config.Config, client *api.FortniteClient, journal *repository.TickRepository, logger zerolog.Logger) (*coordinator.Coordinator, error) {
	return coordinator.New(cfg.Players, client, cfg.TickInterval,
		coordinator.WithLogger(logger.With().Str("component", "coordinator").Logger()),
		coordinator.WithRecorder(journal),
	)
}

// ProvideRedis returns nil when REDIS_URL is unset.
func ProvideRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func ProvideTickHistory(r *repository.TickRepository) server.TickHistory { return r }

func ProvideRateLimitSource(c *api.FortniteClient) server.RateLimitSource { return c }

// RunCoordinator starts the rotation after the journal is pruned and stops
// it before the database closes.
func RunCoordinator(lc fx.Lifecycle, coord *coordinator.Coordinator, journal *repository.TickRepository, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := journal.Prune(ctx, time.Now().Add(-constants.TickJournalRetention)); err != nil {
				logger.Warn().Err(err).Msg("failed to prune tick journal")
			}
			coord.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			coord.Stop()
			return nil
		},
	})
}

func RunPublisher(lc fx.Lifecycle, coord *coordinator.Coordinator, client *redis.Client, logger zerolog.Logger) {
	if client == nil {
		logger.Info().Msg("REDIS_URL not set, snapshot publishing disabled")
		return
	}

	pub := publisher.NewStreamPublisher(client, logger.With().Str("component", "publisher").Logger())
	var sub <-chan *coordinator.Snapshot
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			logger.Info().Msg("connected to redis")
			sub = coord.Subscribe()
			go func() {
				defer close(done)
				pub.Run(context.Background(), sub)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			coord.Unsubscribe(sub)
			select {
			case <-done:
			case <-ctx.Done():
			}
			return client.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(ProvideRedis),
	// repos
	fx.Provide(repository.NewTickRepository),
	fx.Provide(ProvideTickHistory),
	// api client
	fx.Provide(api.NewFortniteClient),
	fx.Provide(ProvideRateLimitSource),
	// rotation
	fx.Provide(ProvideCoordinator),
	// server
	fx.Provide(server.NewTrackerServer),
	fx.Invoke(RunCoordinator),
	fx.Invoke(RunPublisher),
)
