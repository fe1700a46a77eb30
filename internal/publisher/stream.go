package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"fortnite-tracker/internal/constants"
	"fortnite-tracker/internal/coordinator"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamPublisher forwards cache snapshots to a Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger zerolog.Logger
}

func NewStreamPublisher(client *redis.Client, logger zerolog.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: constants.SnapshotStreamKey,
		logger: logger,
	}
}

// PublishSnapshot appends one snapshot to the stream, trimming it to
// roughly SnapshotStreamMax entries.
func (p *StreamPublisher) PublishSnapshot(ctx context.Context, snap *coordinator.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: constants.SnapshotStreamMax,
		Approx: true,
		Values: map[string]interface{}{
			"data":   string(data),
			"ticks":  strconv.FormatUint(snap.Ticks(), 10),
			"cursor": strconv.Itoa(snap.Cursor()),
		},
	}).Err()
}

// Run publishes every snapshot received on snapshots until it is closed.
func (p *StreamPublisher) Run(ctx context.Context, snapshots <-chan *coordinator.Snapshot) {
	for snap := range snapshots {
		pctx, cancel := context.WithTimeout(ctx, constants.PublishTimeout)
		if err := p.PublishSnapshot(pctx, snap); err != nil {
			p.logger.Warn().Err(err).Uint64("ticks", snap.Ticks()).Msg("failed to publish snapshot")
		}
		cancel()
	}
}
