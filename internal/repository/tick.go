package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fortnite-tracker/internal/constants"
	"fortnite-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// TickRepository is an append-only journal of tick outcomes. It is never
// read back into the player cache.
type TickRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTickRepository(sqlDB *sql.DB, logger zerolog.Logger) *TickRepository {
	return &TickRepository{db: sqlDB, logger: logger}
}

func (r *TickRepository) RecordTick(ctx context.Context, res domain.TickResult) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate tick id: %w", err)
	}

	errText := ""
	if res.Outcome.Err != nil {
		errText = res.Outcome.Err.Error()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tick_journal (id, player, cursor, outcome, status_code, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		res.Player,
		res.CursorFrom,
		string(res.Outcome.Kind),
		res.Outcome.StatusCode,
		errText,
		res.CompletedAt.Sub(res.StartedAt).Milliseconds(),
		res.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tick: %w", err)
	}

	r.logger.Debug().Str("id", id).Str("player", res.Player).Str("outcome", string(res.Outcome.Kind)).Msg("tick recorded")
	return nil
}

// Recent returns the newest ticks first, optionally for one player.
func (r *TickRepository) Recent(ctx context.Context, player string, limit int) ([]domain.TickRecord, error) {
	if limit <= 0 || limit > constants.TickHistoryMaxRows {
		limit = constants.TickHistoryLimit
	}

	query := `SELECT id, player, cursor, outcome, status_code, error, duration_ms, created_at
		FROM tick_journal`
	args := []any{}
	if player != "" {
		query += ` WHERE player = ?`
		args = append(args, player)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	var out []domain.TickRecord
	for rows.Next() {
		var t domain.TickRecord
		if err := rows.Scan(&t.ID, &t.Player, &t.Cursor, &t.Outcome, &t.StatusCode, &t.Error, &t.DurationMS, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Prune deletes journal rows older than the cutoff.
func (r *TickRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tick_journal WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune ticks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info().Int64("rows", n).Time("before", before).Msg("tick journal pruned")
	}
	return n, nil
}
