package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/queue"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/triage/metrics"
)

// Rewards observed on terminal lifecycle transitions.
const (
	rewardResolvedInSLA = 1.0
	rewardResolvedLate  = -0.25
	rewardEscalated     = -0.6
	rewardFailed        = -1.0
	rewardReassignedOld = -0.8
	rewardReassignedNew = 1.0
)

// conflictRetries bounds how often UpdateStatus replays a conditional
// update that lost a race.
const conflictRetries = 3

// Tracker ingests resolution outcomes, drives the lifecycle state machine,
// and finalizes training episodes on terminal transitions.
type Tracker struct {
	lifecycle        storage.LifecycleStore
	cases            storage.CaseRepository
	publisher        queue.Publisher
	observer         Observer
	supervisedWeight float64
	log              *slog.Logger
	now              func() time.Time
}

// NewTracker creates a lifecycle tracker. supervisedWeight scales the
// learning rate of human-correction episodes.
func NewTracker(
	lifecycle storage.LifecycleStore,
	cases storage.CaseRepository,
	publisher queue.Publisher,
	observer Observer,
	supervisedWeight float64,
) *Tracker {
	if supervisedWeight <= 0 {
		supervisedWeight = 1
	}
	return &Tracker{
		lifecycle:        lifecycle,
		cases:            cases,
		publisher:        publisher,
		observer:         observer,
		supervisedWeight: supervisedWeight,
		log:              slog.With("component", "lifecycle"),
		now:              time.Now,
	}
}

// HandleOutcome routes a feedback-channel event to the matching transition.
func (t *Tracker) HandleOutcome(ctx context.Context, out *domain.Outcome) error {
	switch out.Kind {
	case domain.OutcomeInProgress:
		_, err := t.UpdateStatus(ctx, out.ExceptionID, domain.LifecycleInProgress, out.Notes)
		return err
	case domain.OutcomeResolved:
		_, err := t.UpdateStatus(ctx, out.ExceptionID, domain.LifecycleResolved, out.Notes)
		return err
	case domain.OutcomeEscalated:
		_, err := t.UpdateStatus(ctx, out.ExceptionID, domain.LifecycleEscalated, out.Notes)
		return err
	case domain.OutcomeFailed:
		_, err := t.UpdateStatus(ctx, out.ExceptionID, domain.LifecycleFailed, out.Notes)
		return err
	case domain.OutcomeReassigned:
		return t.Reassign(ctx, out.ExceptionID, out.Destination, out.Actor, out.Notes)
	default:
		return fmt.Errorf("unknown outcome kind %q for %s", out.Kind, out.ExceptionID)
	}
}

// UpdateStatus transitions a lifecycle record. Illegal transitions are
// rejected with a LifecycleError and logged as anomalies; the stored state
// is untouched. Terminal transitions finalize a training episode.
func (t *Tracker) UpdateStatus(
	ctx context.Context,
	exceptionID string,
	newState domain.LifecycleState,
	notes string,
) (*domain.LifecycleRecord, error) {
	for attempt := 0; attempt < conflictRetries; attempt++ {
		rec, err := t.lifecycle.Get(ctx, exceptionID)
		if err != nil {
			return nil, fmt.Errorf("lifecycle lookup failed: %w", err)
		}

		if !domain.CanTransition(rec.State, newState) {
			lifecycleErr := &domain.LifecycleError{
				ExceptionID: exceptionID,
				From:        rec.State,
				To:          newState,
			}
			metrics.LifecycleAnomalies.Inc()
			t.log.Warn("Rejected illegal lifecycle transition", "error", lifecycleErr)
			return nil, lifecycleErr
		}

		prev := rec.State
		now := t.now()
		rec.State = newState
		rec.UpdatedAt = now
		if notes != "" {
			rec.Notes = notes
		}
		if newState.Terminal() {
			rec.ResolvedAt = &now
		}

		err = t.lifecycle.Update(ctx, rec, prev)
		if err == storage.ErrStateConflict {
			continue // someone moved the record; re-read and re-check
		}
		if err != nil {
			return nil, fmt.Errorf("lifecycle update failed: %w", err)
		}

		if newState.Terminal() {
			t.finalizeEpisode(ctx, rec, now)
		}
		return rec, nil
	}
	return nil, storage.ErrStateConflict
}

// Reassign applies a human destination override to a delegated case before
// resolution. The correction is published to the new desk and recorded as a
// pair of high-weight supervised episodes so routing converges toward the
// operator's choice faster than automatic feedback would.
func (t *Tracker) Reassign(
	ctx context.Context,
	exceptionID string,
	newDest domain.Destination,
	actor string,
	notes string,
) error {
	if !domain.ValidDestination(newDest) {
		return fmt.Errorf("unknown destination %q", newDest)
	}

	rec, err := t.lifecycle.Get(ctx, exceptionID)
	if err != nil {
		return fmt.Errorf("lifecycle lookup failed: %w", err)
	}
	if rec.State.Terminal() {
		return &domain.LifecycleError{
			ExceptionID: exceptionID,
			From:        rec.State,
			To:          rec.State,
		}
	}
	if rec.Destination == newDest {
		return nil
	}

	c, err := t.cases.Get(ctx, exceptionID)
	if err != nil {
		return fmt.Errorf("case lookup failed: %w", err)
	}

	oldDest := rec.Destination
	now := t.now()
	rec.Destination = newDest
	rec.UpdatedAt = now
	if notes != "" {
		rec.Notes = notes
	}
	if err := t.lifecycle.Update(ctx, rec, rec.State); err != nil {
		return fmt.Errorf("lifecycle update failed: %w", err)
	}

	if t.publisher != nil {
		payload, err := json.Marshal(c)
		if err == nil {
			queueName := queue.DestinationQueue(string(newDest))
			if err := t.publisher.Publish(ctx, queueName, payload); err != nil {
				t.log.Error(
					"Failed to publish reassigned case",
					"exception", exceptionID,
					"destination", newDest,
					"error", err,
				)
			}
		}
	}

	t.log.Info(
		"Case reassigned by operator",
		"exception", exceptionID,
		"from", oldDest,
		"to", newDest,
		"actor", actor,
	)

	if t.observer != nil {
		oldReward := rewardReassignedOld
		newReward := rewardReassignedNew
		t.observer.Observe(ctx, &domain.Episode{
			ID:             ulid.Make().String(),
			ExceptionID:    exceptionID,
			StateSignature: c.StateSignature,
			Action:         oldDest,
			Reward:         &oldReward,
			Weight:         t.supervisedWeight,
			RecordedAt:     now,
		})
		t.observer.Observe(ctx, &domain.Episode{
			ID:             ulid.Make().String(),
			ExceptionID:    exceptionID,
			StateSignature: c.StateSignature,
			Action:         newDest,
			Reward:         &newReward,
			Weight:         t.supervisedWeight,
			RecordedAt:     now,
		})
	}
	return nil
}

// SweepOverdue escalates non-terminal cases past their SLA deadline.
// Returns the number of cases escalated.
func (t *Tracker) SweepOverdue(ctx context.Context) (int, error) {
	overdue, err := t.lifecycle.ListOverdue(ctx, t.now())
	if err != nil {
		return 0, fmt.Errorf("overdue scan failed: %w", err)
	}

	escalated := 0
	for _, rec := range overdue {
		_, err := t.UpdateStatus(
			ctx,
			rec.ExceptionID,
			domain.LifecycleEscalated,
			"SLA deadline breached",
		)
		if err != nil {
			t.log.Warn("Failed to escalate overdue case", "exception", rec.ExceptionID, "error", err)
			continue
		}
		metrics.SLABreaches.Inc()
		escalated++

		if t.publisher != nil {
			if c, err := t.cases.Get(ctx, rec.ExceptionID); err == nil {
				if payload, err := json.Marshal(c); err == nil {
					queueName := queue.DestinationQueue(string(domain.DestSeniorOps))
					if err := t.publisher.Publish(ctx, queueName, payload); err != nil {
						t.log.Error(
							"Failed to publish escalated case",
							"exception", rec.ExceptionID,
							"error", err,
						)
					}
				}
			}
		}
	}
	return escalated, nil
}

// finalizeEpisode builds and hands off the training episode for a terminal
// transition. Reward depends on outcome, SLA adherence, and whether the case
// ended at the originally-chosen destination.
func (t *Tracker) finalizeEpisode(ctx context.Context, rec *domain.LifecycleRecord, now time.Time) {
	if t.observer == nil {
		return
	}

	c, err := t.cases.Get(ctx, rec.ExceptionID)
	if err != nil {
		t.log.Warn("No case found for episode finalization", "exception", rec.ExceptionID, "error", err)
		return
	}

	var reward float64
	switch rec.State {
	case domain.LifecycleResolved:
		if !now.After(rec.SLADeadline) && rec.Destination == c.Destination {
			reward = rewardResolvedInSLA
		} else {
			reward = rewardResolvedLate
		}
	case domain.LifecycleEscalated:
		reward = rewardEscalated
	default:
		reward = rewardFailed
	}

	t.observer.Observe(ctx, &domain.Episode{
		ID:             ulid.Make().String(),
		ExceptionID:    rec.ExceptionID,
		StateSignature: c.StateSignature,
		Action:         c.Destination,
		Reward:         &reward,
		Weight:         1,
		Degraded:       rec.Degraded,
		RecordedAt:     now,
	})
}
