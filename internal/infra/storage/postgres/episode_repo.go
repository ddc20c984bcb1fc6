package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
)

// EpisodeRepo implements storage.EpisodeRepository using PostgreSQL.
type EpisodeRepo struct {
	db *DB
}

// NewEpisodeRepo creates a new PostgreSQL episode repository.
func NewEpisodeRepo(db *DB) *EpisodeRepo {
	return &EpisodeRepo{db: db}
}

// Append stores a finalized episode.
func (r *EpisodeRepo) Append(ctx context.Context, ep *domain.Episode) error {
	query := `
		INSERT INTO episodes (
			id, exception_id, state_signature, action, reward,
			next_signature, weight, degraded, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		ep.ID,
		ep.ExceptionID,
		ep.StateSignature,
		string(ep.Action),
		ep.Reward,
		nullIfEmpty(ep.NextSignature),
		ep.Weight,
		ep.Degraded,
		ep.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append episode: %w", err)
	}
	return nil
}

// ListRecent returns the most recently recorded episodes, newest first.
func (r *EpisodeRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Episode, error) {
	query := `
		SELECT id, exception_id, state_signature, action, reward,
		       next_signature, weight, degraded, recorded_at
		FROM episodes
		ORDER BY recorded_at DESC
		LIMIT $1
	`

	var rows []struct {
		ID             string    `db:"id"`
		ExceptionID    string    `db:"exception_id"`
		StateSignature string    `db:"state_signature"`
		Action         string    `db:"action"`
		Reward         *float64  `db:"reward"`
		NextSignature  *string   `db:"next_signature"`
		Weight         float64   `db:"weight"`
		Degraded       bool      `db:"degraded"`
		RecordedAt     time.Time `db:"recorded_at"`
	}

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	out := make([]*domain.Episode, 0, len(rows))
	for _, row := range rows {
		ep := &domain.Episode{
			ID:             row.ID,
			ExceptionID:    row.ExceptionID,
			StateSignature: row.StateSignature,
			Action:         domain.Destination(row.Action),
			Reward:         row.Reward,
			Weight:         row.Weight,
			Degraded:       row.Degraded,
			RecordedAt:     row.RecordedAt,
		}
		if row.NextSignature != nil {
			ep.NextSignature = *row.NextSignature
		}
		out = append(out, ep)
	}
	return out, nil
}

// DeleteOlderThan removes episodes recorded before the cutoff.
func (r *EpisodeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(
		ctx,
		`DELETE FROM episodes WHERE recorded_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune episodes: %w", err)
	}
	return res.RowsAffected()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
