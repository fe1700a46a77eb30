package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"fortnite-tracker/internal/api"
	"fortnite-tracker/internal/constants"
	"fortnite-tracker/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrNoPlayers is returned by New when the player list is empty.
	ErrNoPlayers = errors.New("coordinator: no players configured")

	// ErrTickInFlight is returned by Tick when another tick has not finished.
	ErrTickInFlight = errors.New("coordinator: tick already in flight")
)

// Recorder receives the result of every completed tick.
type Recorder interface {
	RecordTick(ctx context.Context, res domain.TickResult) error
}

type Option func(*Coordinator)

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorders = append(c.recorders, r) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator refreshes one player per tick, rotating through the
// configured players, and keeps the latest stats for all of them.
//
// Tick is the only writer. Reads go through an atomically swapped
// immutable Snapshot and never wait on the network.
type Coordinator struct {
	players   []string
	fetcher   api.Fetcher
	interval  time.Duration
	logger    zerolog.Logger
	recorders []Recorder
	now       func() time.Time

	inflight *semaphore.Weighted
	cache    atomic.Pointer[Snapshot]

	subMu       sync.RWMutex
	subscribers map[chan *Snapshot]struct{}
	subsClosed  bool

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   errgroup.Group
}

func New(players []string, fetcher api.Fetcher, interval time.Duration, opts ...Option) (*Coordinator, error) {
	if len(players) == 0 {
		return nil, ErrNoPlayers
	}
	if fetcher == nil {
		return nil, fmt.Errorf("coordinator: fetcher is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("coordinator: tick interval must be positive, got %s", interval)
	}

	c := &Coordinator{
		players:     append([]string(nil), players...),
		fetcher:     fetcher,
		interval:    interval,
		logger:      zerolog.Nop(),
		now:         time.Now,
		inflight:    semaphore.NewWeighted(1),
		subscribers: make(map[chan *Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache.Store(newSnapshot(c.players))
	return c, nil
}

// Snapshot returns the current cache contents. It never blocks on I/O.
func (c *Coordinator) Snapshot() *Snapshot {
	return c.cache.Load()
}

// Read returns the cached value of key for player, or false when it is
// not known yet. Unknown players and keys also read as absent.
func (c *Coordinator) Read(player string, key domain.StatKey) (float64, bool) {
	return c.cache.Load().Read(player, key)
}

func (c *Coordinator) Cursor() int { return c.cache.Load().Cursor() }

func (c *Coordinator) Players() []string { return append([]string(nil), c.players...) }

// MaxStaleness is the longest any one player waits between refreshes.
func (c *Coordinator) MaxStaleness() time.Duration {
	return time.Duration(len(c.players)) * c.interval
}

// Tick fetches the player under the cursor, applies the outcome and
// advances the cursor by one whatever the outcome. Fetch failures are
// logged and folded into the result. Tick only errors when it did nothing:
// ErrTickInFlight, or ctx was already done before the tick began.
func (c *Coordinator) Tick(ctx context.Context) (domain.TickResult, error) {
	if !c.inflight.TryAcquire(1) {
		c.logger.Warn().Msg("previous tick still in flight, dropping this one")
		return domain.TickResult{}, ErrTickInFlight
	}
	defer c.inflight.Release(1)

	if err := ctx.Err(); err != nil {
		return domain.TickResult{}, err
	}

	prev := c.cache.Load()
	from := prev.Cursor()
	target := c.players[from]
	to := (from + 1) % len(c.players)

	c.logger.Debug().Str("player", target).Int("cursor", from).Msg("tick started")

	started := c.now()
	outcome := c.safeFetch(ctx, target)
	completed := c.now()

	c.logOutcome(target, from, outcome, completed.Sub(started))

	next := prev.advance(target, outcome, to, completed)
	c.cache.Store(next)
	c.publish(next)

	res := domain.TickResult{
		Player:      target,
		CursorFrom:  from,
		CursorTo:    to,
		Outcome:     outcome,
		StartedAt:   started,
		CompletedAt: completed,
	}
	c.record(ctx, res)
	return res, nil
}

// safeFetch calls the fetcher with panic recovery. A panic counts as a
// transport error so the rotation keeps moving.
func (c *Coordinator) safeFetch(ctx context.Context, player string) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			c.logger.Error().
				Str("correlation_id", correlationID).
				Str("player", player).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("fetcher panic")
			out = domain.Outcome{
				Kind: domain.OutcomeTransport,
				Err:  fmt.Errorf("fetcher panic (correlation_id: %s)", correlationID),
			}
		}
	}()
	return c.fetcher.Fetch(ctx, player)
}

func (c *Coordinator) logOutcome(player string, cursor int, out domain.Outcome, took time.Duration) {
	var ev *zerolog.Event
	var msg string

	switch out.Kind {
	case domain.OutcomeSuccess:
		ev, msg = c.logger.Info(), "player stats refreshed"
	case domain.OutcomeRateLimited:
		ev, msg = c.logger.Warn(), "rate limit hit, retrying on the player's next turn"
	case domain.OutcomeNotFound:
		ev, msg = c.logger.Error(), "player not found"
	case domain.OutcomeForbidden:
		ev, msg = c.logger.Error(), "player profile is private"
		if out.Unauthorized() {
			msg = "API key rejected"
		}
	case domain.OutcomeMalformed:
		ev, msg = c.logger.Error(), "malformed stats response"
	default:
		ev, msg = c.logger.Error(), "stats request failed"
	}

	ev = ev.Str("player", player).
		Int("cursor", cursor).
		Str("outcome", string(out.Kind)).
		Dur("took", took)
	if out.StatusCode != 0 {
		ev = ev.Int("status", out.StatusCode)
	}
	if out.Err != nil {
		ev = ev.Err(out.Err)
	}
	ev.Msg(msg)
}

func (c *Coordinator) record(ctx context.Context, res domain.TickResult) {
	if len(c.recorders) == 0 {
		return
	}
	// the tick may have been cut short by shutdown; the journal write still goes through
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DatabaseTimeout)
	defer cancel()

	for _, r := range c.recorders {
		if err := r.RecordTick(rctx, res); err != nil {
			c.logger.Warn().Err(err).Str("player", res.Player).Msg("failed to record tick")
		}
	}
}

// Subscribe returns a channel receiving every published snapshot. Sends
// are non-blocking, so a slow subscriber misses snapshots rather than
// stalling ticks. Call Unsubscribe when done. After Stop the returned
// channel is already closed.
func (c *Coordinator) Subscribe() <-chan *Snapshot {
	ch := make(chan *Snapshot, constants.SubscriberBuffer)

	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.subsClosed {
		close(ch)
		return ch
	}
	c.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscription. Unknown channels are ignored.
func (c *Coordinator) Unsubscribe(ch <-chan *Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for subCh := range c.subscribers {
		if subCh == ch {
			delete(c.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (c *Coordinator) publish(s *Snapshot) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for ch := range c.subscribers {
		select {
		case ch <- s:
		default:
			c.logger.Debug().Msg("subscriber buffer full, snapshot dropped")
		}
	}
}

// Start runs one tick immediately and then one every interval until Stop
// is called or ctx is cancelled. Start is non-blocking and idempotent.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.logger.Info().
		Int("players", len(c.players)).
		Dur("interval", c.interval).
		Dur("max_staleness", c.MaxStaleness()).
		Msg("rotation started")

	c.group.Go(func() error {
		c.run(ctx)
		return nil
	})
}

func (c *Coordinator) run(ctx context.Context) {
	c.fire(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fire(ctx)
		}
	}
}

// fire starts a tick without blocking the timer, so a firing that lands
// while the previous tick is still waiting on the network gets dropped.
func (c *Coordinator) fire(ctx context.Context) {
	c.group.Go(func() error {
		_, _ = c.Tick(ctx)
		return nil
	})
}

// Stop cancels any in-flight fetch, waits for the loop to exit and closes
// all subscriptions. Safe to call more than once, and before Start.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		if c.cancel != nil {
			c.cancel()
		}
	}
	c.mu.Unlock()

	_ = c.group.Wait()

	c.subMu.Lock()
	c.subsClosed = true
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
	c.subMu.Unlock()

	c.logger.Info().Msg("rotation stopped")
}
