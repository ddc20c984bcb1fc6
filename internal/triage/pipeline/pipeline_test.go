package pipeline

import (
	"context"
	"encoding/json"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/queue"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/infra/storage/memory"
	"github.com/vietddude/triage/internal/policy"
	"github.com/vietddude/triage/internal/triage/delegate"
	"github.com/vietddude/triage/internal/triage/router"
	"github.com/vietddude/triage/internal/triage/severity"
)

type pipelineFixture struct {
	pipeline  *Pipeline
	queue     *queue.MemoryQueue
	lifecycle storage.LifecycleStore
	cases     storage.CaseRepository
	learner   *policy.Learner
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	store := memory.NewMemoryStorage()
	lifecycle := memory.NewLifecycleStore(store)
	cases := memory.NewCaseRepo(store)
	q := queue.NewMemoryQueue(64)

	// Epsilon pinned to zero so routing is fully deterministic
	learner := policy.NewLearner(config.PolicyConfig{
		Alpha:            0.1,
		Gamma:            0.9,
		EpsilonDecay:     0.995,
		OverrideMargin:   0.2,
		SupervisedWeight: 3.0,
		ReplayCapacity:   100,
		SnapshotPath:     filepath.Join(t.TempDir(), "model.json"),
		Seed:             42,
	}, memory.NewEpisodeRepo(store))

	scorer := severity.NewScorer(config.TriageConfig{
		MatchWeight:       0.3,
		RetryWeight:       0.1,
		RetryCap:          5,
		MediumThreshold:   0.30,
		HighThreshold:     0.60,
		CriticalThreshold: 0.85,
	})

	rt, err := router.NewRouter(router.DefaultRules(), learner, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}

	delegateCfg := config.DelegateConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2.0,
	}
	delegator := delegate.NewDelegator(delegateCfg, q, lifecycle, cases, learner)
	tracker := delegate.NewTracker(lifecycle, cases, q, learner, 3.0)

	p := NewPipeline(
		config.PipelineConfig{Workers: 2, QueueDepth: 64, DrainTimeout: 5 * time.Second},
		q, scorer, rt, delegator, tracker, learner,
	)
	return &pipelineFixture{
		pipeline:  p,
		queue:     q,
		lifecycle: lifecycle,
		cases:     cases,
		learner:   learner,
	}
}

func (f *pipelineFixture) publishException(t *testing.T, rec *domain.ExceptionRecord) {
	t.Helper()
	payload, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.queue.Publish(context.Background(), queue.InboundQueue, payload); err != nil {
		t.Fatal(err)
	}
}

// waitForRecord polls the lifecycle store until the record appears in the
// wanted state or the deadline passes.
func (f *pipelineFixture) waitForRecord(
	t *testing.T,
	id string,
	want domain.LifecycleState,
) *domain.LifecycleRecord {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := f.lifecycle.Get(context.Background(), id)
		if err == nil && rec.State == want {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Record %s never reached %s", id, want)
	return nil
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.pipeline.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.pipeline.Stop()

	match := 0.4
	f.publishException(t, &domain.ExceptionRecord{
		ID:            "exc-1",
		TradeID:       "trade-1",
		ExceptionType: domain.ExceptionTypeSettlementMismatch,
		ReasonCodes:   []string{"AMOUNT_MISMATCH"},
		MatchScore:    &match,
		SourceAgent:   "recon-agent-1",
		CreatedAt:     time.Now(),
	})

	rec := f.waitForRecord(t, "exc-1", domain.LifecyclePending)
	if rec.Destination != domain.DestOpsDesk {
		t.Errorf("Expected OPS_DESK for a medium data-quality issue, got %s", rec.Destination)
	}
	if rec.Priority != 3 {
		t.Errorf("Expected priority 3, got %d", rec.Priority)
	}

	c, err := f.cases.Get(ctx, "exc-1")
	if err != nil {
		t.Fatal(err)
	}
	if c.Classification != domain.ClassDataQualityIssue {
		t.Errorf("Expected DATA_QUALITY_ISSUE, got %s", c.Classification)
	}
	if c.Severity.Level != domain.SeverityMedium {
		t.Errorf("Expected MEDIUM, got %s", c.Severity.Level)
	}
	if c.State != domain.CaseStateDelegated {
		t.Errorf("Expected DELEGATED, got %s", c.State)
	}

	// The delegated copy arrives on the destination queue
	payload, ok, err := f.queue.Receive(ctx, queue.DestinationQueue("OPS_DESK"), time.Second)
	if err != nil || !ok {
		t.Fatalf("Expected a delegated case on OPS_DESK queue: ok=%v err=%v", ok, err)
	}
	var delivered domain.TriageCase
	if err := json.Unmarshal(payload, &delivered); err != nil {
		t.Fatal(err)
	}
	if delivered.ExceptionID != "exc-1" {
		t.Errorf("Expected exc-1 on the desk queue, got %s", delivered.ExceptionID)
	}
}

func TestPipelineFeedbackLoop(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.pipeline.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.pipeline.Stop()

	f.publishException(t, &domain.ExceptionRecord{
		ID:            "exc-1",
		TradeID:       "trade-1",
		ExceptionType: domain.ExceptionTypeUnmatchedTrade,
		ReasonCodes:   []string{"MISSING_CONFIRMATION"},
		SourceAgent:   "recon-agent-1",
		CreatedAt:     time.Now(),
	})
	f.waitForRecord(t, "exc-1", domain.LifecyclePending)

	outcome, _ := json.Marshal(domain.Outcome{
		ExceptionID: "exc-1",
		Kind:        domain.OutcomeResolved,
		Actor:       "ops-user",
		OccurredAt:  time.Now(),
	})
	if err := f.queue.Publish(ctx, queue.FeedbackQueue, outcome); err != nil {
		t.Fatal(err)
	}

	rec := f.waitForRecord(t, "exc-1", domain.LifecycleResolved)
	if rec.ResolvedAt == nil {
		t.Error("Expected ResolvedAt to be set")
	}

	// The terminal transition trained the policy
	deadline := time.Now().Add(2 * time.Second)
	for f.learner.CellCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if f.learner.CellCount() == 0 {
		t.Error("Expected a learned cell after the resolved outcome")
	}
}

func TestPipelineRejectsMalformed(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.pipeline.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.pipeline.Stop()

	// Neither malformed JSON nor an invalid record produces a case
	if err := f.queue.Publish(ctx, queue.InboundQueue, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	invalid, _ := json.Marshal(domain.ExceptionRecord{ID: "exc-bad"})
	if err := f.queue.Publish(ctx, queue.InboundQueue, invalid); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if _, err := f.cases.Get(ctx, "exc-bad"); err == nil {
		t.Error("Expected invalid record to be rejected before triage")
	}
}

func TestPipelineDoubleStart(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.pipeline.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.pipeline.Stop()

	if err := f.pipeline.Start(ctx); err == nil {
		t.Error("Expected error on double start")
	}
}
