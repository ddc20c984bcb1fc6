package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
)

var (
	// ErrRecordNotFound is returned when a record doesn't exist
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists is returned when creating a record that already exists
	ErrRecordExists = errors.New("record already exists")

	// ErrStateConflict is returned when a conditional update loses a race
	ErrStateConflict = errors.New("lifecycle state changed concurrently")
)

// LifecycleStore is the external key-value record store tracking delegated
// cases. Only get/put/conditional-update semantics are required of a backend.
type LifecycleStore interface {
	// Get retrieves the lifecycle record for an exception
	Get(ctx context.Context, exceptionID string) (*domain.LifecycleRecord, error)

	// Create stores a new record; ErrRecordExists if one is already present
	Create(ctx context.Context, rec *domain.LifecycleRecord) error

	// Update replaces the record only if its stored state still equals
	// expectState; ErrStateConflict otherwise
	Update(ctx context.Context, rec *domain.LifecycleRecord, expectState domain.LifecycleState) error

	// ListOverdue returns non-terminal records whose SLA deadline has passed
	ListOverdue(ctx context.Context, now time.Time) ([]*domain.LifecycleRecord, error)
}

// CaseRepository persists triage decisions for audit.
type CaseRepository interface {
	// Save stores or replaces a triage case
	Save(ctx context.Context, c *domain.TriageCase) error

	// Get retrieves a case by exception ID
	Get(ctx context.Context, exceptionID string) (*domain.TriageCase, error)
}

// EpisodeRepository is the append-only training-episode audit log.
type EpisodeRepository interface {
	// Append stores a finalized episode
	Append(ctx context.Context, ep *domain.Episode) error

	// ListRecent returns the most recently recorded episodes, newest first
	ListRecent(ctx context.Context, limit int) ([]*domain.Episode, error)
}
