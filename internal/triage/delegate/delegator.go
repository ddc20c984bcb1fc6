package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/queue"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/triage/metrics"
)

// degradedReward is observed immediately when delegation falls back to the
// default desk after exhausted retries.
const degradedReward = -0.5

// Observer receives finalized training episodes.
type Observer interface {
	Observe(ctx context.Context, ep *domain.Episode)
}

// DelegationResult reports what Delegate did for a case.
type DelegationResult struct {
	Record           *domain.LifecycleRecord
	Published        bool
	Degraded         bool
	AlreadyDelegated bool
}

// Delegator publishes routed cases to their destination queues and creates
// lifecycle records. Publication retries with bounded exponential backoff;
// exhausted retries redirect to the fallback desk instead of dropping.
type Delegator struct {
	cfg       config.DelegateConfig
	publisher queue.Publisher
	lifecycle storage.LifecycleStore
	cases     storage.CaseRepository
	observer  Observer
	log       *slog.Logger
	now       func() time.Time
}

// NewDelegator creates a delegator.
func NewDelegator(
	cfg config.DelegateConfig,
	publisher queue.Publisher,
	lifecycle storage.LifecycleStore,
	cases storage.CaseRepository,
	observer Observer,
) *Delegator {
	return &Delegator{
		cfg:       cfg,
		publisher: publisher,
		lifecycle: lifecycle,
		cases:     cases,
		observer:  observer,
		log:       slog.With("component", "delegate"),
		now:       time.Now,
	}
}

// Delegate hands a routed case to its destination. Idempotent: a case whose
// lifecycle record already exists in a non-restartable state is a no-op
// returning the existing record, so duplicate deliveries from an
// at-least-once queue never double-delegate.
func (d *Delegator) Delegate(ctx context.Context, c *domain.TriageCase) (*DelegationResult, error) {
	var existing *domain.LifecycleRecord
	err := d.storeRetry(ctx, func() error {
		rec, err := d.lifecycle.Get(ctx, c.ExceptionID)
		if err == storage.ErrRecordNotFound {
			existing = nil
			return nil
		}
		if err != nil {
			return err
		}
		existing = rec
		return nil
	})
	if err != nil {
		// Delivery beats strict dedup: downstream desks already tolerate
		// at-least-once, so proceed as if no record exists
		d.log.Warn(
			"Lifecycle lookup failing, delegating without dedup check",
			"exception", c.ExceptionID,
			"error", err,
		)
		existing = nil
	}
	if existing != nil &&
		existing.State != domain.LifecycleNew && existing.State != domain.LifecycleFailed {
		d.log.Debug(
			"Duplicate delegation ignored",
			"exception", c.ExceptionID,
			"state", existing.State,
		)
		return &DelegationResult{Record: existing, AlreadyDelegated: true}, nil
	}

	if err := d.storeRetry(ctx, func() error { return d.cases.Save(ctx, c) }); err != nil {
		// Never drop a consumed exception over the audit row; the save is
		// retried again after delegation
		d.log.Warn(
			"Failed to persist case, continuing with delegation",
			"exception", c.ExceptionID,
			"error", err,
		)
	}

	if c.Destination == domain.DestAutoResolve {
		return d.autoResolve(ctx, c, existing)
	}

	now := d.now()
	destination := c.Destination
	degraded := false
	notes := ""

	if err := d.publishWithRetry(ctx, c, destination); err != nil {
		// Fallback: redirect to the default desk rather than dropping
		d.log.Error(
			"Delegation failed after retries, redirecting to fallback desk",
			"exception", c.ExceptionID,
			"destination", destination,
			"error", err,
		)
		destination = domain.DestOpsDesk
		degraded = true
		notes = fmt.Sprintf("degraded-mode delegation: %s unreachable (%v)", c.Destination, err)

		if fbErr := d.publishWithRetry(ctx, c, destination); fbErr != nil {
			// The record below still tracks the case; the sweep or a
			// re-delegation picks it up once the broker recovers
			d.log.Error(
				"Fallback delegation also failed, recording case without publication",
				"exception", c.ExceptionID,
				"error", fbErr,
			)
		}
		metrics.DegradedDelegations.Inc()

		if d.observer != nil {
			reward := degradedReward
			d.observer.Observe(ctx, &domain.Episode{
				ID:             ulid.Make().String(),
				ExceptionID:    c.ExceptionID,
				StateSignature: c.StateSignature,
				Action:         c.Destination,
				Reward:         &reward,
				Weight:         1,
				Degraded:       true,
				RecordedAt:     now,
			})
		}
	}

	rec := &domain.LifecycleRecord{
		ExceptionID: c.ExceptionID,
		State:       domain.LifecyclePending,
		Destination: destination,
		Priority:    c.Priority,
		SLADeadline: c.SLADeadline,
		Degraded:    degraded,
		Notes:       notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.writeRecord(ctx, rec, existing); err != nil {
		// The case is already published; the sweep cannot track it without a
		// record, but the decision stands
		d.log.Error(
			"Failed to persist lifecycle record",
			"exception", c.ExceptionID,
			"error", err,
		)
	}

	c.State = domain.CaseStateDelegated
	c.UpdatedAt = now
	if err := d.cases.Save(ctx, c); err != nil {
		d.log.Warn("Failed to persist delegated case state", "exception", c.ExceptionID, "error", err)
	}

	if degraded {
		metrics.ExceptionsProcessed.WithLabelValues("degraded").Inc()
	} else {
		metrics.ExceptionsProcessed.WithLabelValues("delegated").Inc()
	}
	return &DelegationResult{Record: rec, Published: true, Degraded: degraded}, nil
}

// autoResolve performs the local resolution action and skips publication.
func (d *Delegator) autoResolve(
	ctx context.Context,
	c *domain.TriageCase,
	existing *domain.LifecycleRecord,
) (*DelegationResult, error) {
	now := d.now()
	rec := &domain.LifecycleRecord{
		ExceptionID: c.ExceptionID,
		State:       domain.LifecycleResolved,
		Destination: domain.DestAutoResolve,
		Priority:    c.Priority,
		SLADeadline: c.SLADeadline,
		Notes:       "auto-resolved",
		CreatedAt:   now,
		UpdatedAt:   now,
		ResolvedAt:  &now,
	}
	if err := d.writeRecord(ctx, rec, existing); err != nil {
		d.log.Error(
			"Failed to persist auto-resolve record",
			"exception", c.ExceptionID,
			"error", err,
		)
	}

	c.State = domain.CaseStateResolved
	c.UpdatedAt = now
	if err := d.cases.Save(ctx, c); err != nil {
		d.log.Warn("Failed to persist resolved case state", "exception", c.ExceptionID, "error", err)
	}

	if d.observer != nil {
		reward := 1.0
		d.observer.Observe(ctx, &domain.Episode{
			ID:             ulid.Make().String(),
			ExceptionID:    c.ExceptionID,
			StateSignature: c.StateSignature,
			Action:         domain.DestAutoResolve,
			Reward:         &reward,
			Weight:         1,
			RecordedAt:     now,
		})
	}

	metrics.ExceptionsProcessed.WithLabelValues("auto_resolved").Inc()
	return &DelegationResult{Record: rec}, nil
}

// writeRecord creates the record, or conditionally replaces a restartable
// NEW/FAILED one. Writes retry with the same bounded backoff as publication.
func (d *Delegator) writeRecord(
	ctx context.Context,
	rec *domain.LifecycleRecord,
	existing *domain.LifecycleRecord,
) error {
	if existing == nil {
		err := d.storeRetry(ctx, func() error {
			err := d.lifecycle.Create(ctx, rec)
			if err == storage.ErrRecordExists {
				// Lost a create race with a duplicate delivery; treat as no-op
				return nil
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to create lifecycle record: %w", err)
		}
		return nil
	}

	rec.CreatedAt = existing.CreatedAt
	err := d.storeRetry(ctx, func() error {
		err := d.lifecycle.Update(ctx, rec, existing.State)
		if err == storage.ErrStateConflict {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update lifecycle record: %w", err)
	}
	return nil
}

// storeRetry runs a storage operation with bounded exponential backoff.
// Callers degrade rather than abort once attempts are exhausted, so a store
// outage never costs a consumed exception its decision.
func (d *Delegator) storeRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxAttempts; attempt++ {
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == d.cfg.MaxAttempts-1 {
			break
		}

		delay := d.backoff(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// publishWithRetry serializes the case and publishes it with exponential
// backoff.
func (d *Delegator) publishWithRetry(
	ctx context.Context,
	c *domain.TriageCase,
	destination domain.Destination,
) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal case: %w", err)
	}
	queueName := queue.DestinationQueue(string(destination))

	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxAttempts; attempt++ {
		if err := d.publisher.Publish(ctx, queueName, payload); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == d.cfg.MaxAttempts-1 {
			break
		}
		metrics.DelegationRetries.WithLabelValues(string(destination)).Inc()

		delay := d.backoff(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", d.cfg.MaxAttempts, lastErr)
}

func (d *Delegator) backoff(attempt int) time.Duration {
	delay := float64(d.cfg.InitialDelay) * math.Pow(d.cfg.BackoffMultiple, float64(attempt))
	if delay > float64(d.cfg.MaxDelay) {
		delay = float64(d.cfg.MaxDelay)
	}
	return time.Duration(delay)
}
