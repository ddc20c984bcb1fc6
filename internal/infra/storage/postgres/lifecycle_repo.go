package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
)

// LifecycleRepo implements storage.LifecycleStore using PostgreSQL. The
// conditional update maps to a guarded UPDATE so concurrent status events
// cannot clobber each other.
type LifecycleRepo struct {
	db *DB
}

// NewLifecycleRepo creates a new PostgreSQL lifecycle store.
func NewLifecycleRepo(db *DB) *LifecycleRepo {
	return &LifecycleRepo{db: db}
}

type lifecycleRow struct {
	ExceptionID string     `db:"exception_id"`
	State       string     `db:"state"`
	Destination string     `db:"destination"`
	Priority    int        `db:"priority"`
	SLADeadline time.Time  `db:"sla_deadline"`
	Degraded    bool       `db:"degraded"`
	Notes       string     `db:"notes"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	ResolvedAt  *time.Time `db:"resolved_at"`
}

func (row *lifecycleRow) toDomain() *domain.LifecycleRecord {
	return &domain.LifecycleRecord{
		ExceptionID: row.ExceptionID,
		State:       domain.LifecycleState(row.State),
		Destination: domain.Destination(row.Destination),
		Priority:    row.Priority,
		SLADeadline: row.SLADeadline,
		Degraded:    row.Degraded,
		Notes:       row.Notes,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		ResolvedAt:  row.ResolvedAt,
	}
}

// Get retrieves the lifecycle record for an exception.
func (r *LifecycleRepo) Get(
	ctx context.Context,
	exceptionID string,
) (*domain.LifecycleRecord, error) {
	query := `
		SELECT exception_id, state, destination, priority, sla_deadline,
		       degraded, notes, created_at, updated_at, resolved_at
		FROM lifecycle_records
		WHERE exception_id = $1
	`
	var row lifecycleRow
	err := r.db.GetContext(ctx, &row, query, exceptionID)
	if err == sql.ErrNoRows {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lifecycle record: %w", err)
	}
	return row.toDomain(), nil
}

// Create stores a new record.
func (r *LifecycleRepo) Create(ctx context.Context, rec *domain.LifecycleRecord) error {
	query := `
		INSERT INTO lifecycle_records (
			exception_id, state, destination, priority, sla_deadline,
			degraded, notes, created_at, updated_at, resolved_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (exception_id) DO NOTHING
	`
	res, err := r.db.ExecContext(
		ctx,
		query,
		rec.ExceptionID,
		string(rec.State),
		string(rec.Destination),
		rec.Priority,
		rec.SLADeadline,
		rec.Degraded,
		rec.Notes,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lifecycle record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrRecordExists
	}
	return nil
}

// Update replaces the record only if its stored state still matches.
func (r *LifecycleRepo) Update(
	ctx context.Context,
	rec *domain.LifecycleRecord,
	expectState domain.LifecycleState,
) error {
	query := `
		UPDATE lifecycle_records
		SET state = $1, destination = $2, priority = $3, sla_deadline = $4,
		    degraded = $5, notes = $6, updated_at = $7, resolved_at = $8
		WHERE exception_id = $9 AND state = $10
	`
	res, err := r.db.ExecContext(
		ctx,
		query,
		string(rec.State),
		string(rec.Destination),
		rec.Priority,
		rec.SLADeadline,
		rec.Degraded,
		rec.Notes,
		rec.UpdatedAt,
		rec.ResolvedAt,
		rec.ExceptionID,
		string(expectState),
	)
	if err != nil {
		return fmt.Errorf("failed to update lifecycle record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish missing record from a lost state race
		if _, getErr := r.Get(ctx, rec.ExceptionID); getErr != nil {
			return getErr
		}
		return storage.ErrStateConflict
	}
	return nil
}

// DeleteOlderThan removes terminal records resolved before the cutoff.
func (r *LifecycleRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(
		ctx,
		`DELETE FROM lifecycle_records
		 WHERE state IN ('RESOLVED', 'ESCALATED', 'FAILED') AND resolved_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune lifecycle records: %w", err)
	}
	return res.RowsAffected()
}

// ListOverdue returns non-terminal records whose SLA deadline has passed.
func (r *LifecycleRepo) ListOverdue(
	ctx context.Context,
	now time.Time,
) ([]*domain.LifecycleRecord, error) {
	query := `
		SELECT exception_id, state, destination, priority, sla_deadline,
		       degraded, notes, created_at, updated_at, resolved_at
		FROM lifecycle_records
		WHERE state IN ('PENDING', 'IN_PROGRESS') AND sla_deadline < $1
		ORDER BY sla_deadline ASC
	`
	var rows []lifecycleRow
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to list overdue records: %w", err)
	}
	out := make([]*domain.LifecycleRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
