package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
)

// CaseRepo implements storage.CaseRepository using PostgreSQL.
type CaseRepo struct {
	db *DB
}

// NewCaseRepo creates a new PostgreSQL case repository.
func NewCaseRepo(db *DB) *CaseRepo {
	return &CaseRepo{db: db}
}

// Save stores or replaces a triage case.
func (r *CaseRepo) Save(ctx context.Context, c *domain.TriageCase) error {
	severity, err := json.Marshal(c.Severity)
	if err != nil {
		return fmt.Errorf("failed to marshal severity: %w", err)
	}
	actions, err := json.Marshal(c.RecommendedActions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		INSERT INTO triage_cases (
			exception_id, trade_id, classification, severity, destination,
			priority, sla_deadline, recommended_actions, state, state_signature,
			override_applied, explored, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (exception_id) DO UPDATE SET
			destination = EXCLUDED.destination,
			priority = EXCLUDED.priority,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(
		ctx,
		query,
		c.ExceptionID,
		c.TradeID,
		string(c.Classification),
		severity,
		string(c.Destination),
		c.Priority,
		c.SLADeadline,
		actions,
		string(c.State),
		c.StateSignature,
		c.OverrideApplied,
		c.Explored,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save triage case: %w", err)
	}
	return nil
}

// Get retrieves a case by exception ID.
func (r *CaseRepo) Get(ctx context.Context, exceptionID string) (*domain.TriageCase, error) {
	query := `
		SELECT exception_id, trade_id, classification, severity, destination,
		       priority, sla_deadline, recommended_actions, state, state_signature,
		       override_applied, explored, created_at, updated_at
		FROM triage_cases
		WHERE exception_id = $1
	`

	var dest struct {
		ExceptionID        string    `db:"exception_id"`
		TradeID            string    `db:"trade_id"`
		Classification     string    `db:"classification"`
		Severity           []byte    `db:"severity"`
		Destination        string    `db:"destination"`
		Priority           int       `db:"priority"`
		SLADeadline        time.Time `db:"sla_deadline"`
		RecommendedActions []byte    `db:"recommended_actions"`
		State              string    `db:"state"`
		StateSignature     string    `db:"state_signature"`
		OverrideApplied    bool      `db:"override_applied"`
		Explored           bool      `db:"explored"`
		CreatedAt          time.Time `db:"created_at"`
		UpdatedAt          time.Time `db:"updated_at"`
	}

	err := r.db.GetContext(ctx, &dest, query, exceptionID)
	if err == sql.ErrNoRows {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get triage case: %w", err)
	}

	c := &domain.TriageCase{
		ExceptionID:     dest.ExceptionID,
		TradeID:         dest.TradeID,
		Classification:  domain.Classification(dest.Classification),
		Destination:     domain.Destination(dest.Destination),
		Priority:        dest.Priority,
		SLADeadline:     dest.SLADeadline,
		State:           domain.CaseState(dest.State),
		StateSignature:  dest.StateSignature,
		OverrideApplied: dest.OverrideApplied,
		Explored:        dest.Explored,
		CreatedAt:       dest.CreatedAt,
		UpdatedAt:       dest.UpdatedAt,
	}
	if err := json.Unmarshal(dest.Severity, &c.Severity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal severity: %w", err)
	}
	if len(dest.RecommendedActions) > 0 {
		if err := json.Unmarshal(dest.RecommendedActions, &c.RecommendedActions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
	}
	return c, nil
}
