package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/queue"
	"github.com/vietddude/triage/internal/triage/classifier"
	"github.com/vietddude/triage/internal/triage/delegate"
	"github.com/vietddude/triage/internal/triage/metrics"
	"github.com/vietddude/triage/internal/triage/router"
	"github.com/vietddude/triage/internal/triage/severity"
)

// receiveTimeout bounds one queue poll so workers notice shutdown promptly.
const receiveTimeout = 1 * time.Second

// Adjuster supplies the severity correction term from learned history.
type Adjuster interface {
	HistoricalAdjustment(sig string) float64
}

// Pipeline runs the fixed worker pool: each worker independently takes one
// exception through validate → classify → score → route → delegate. Workers
// share no per-exception state; the policy table behind the Adjuster and
// router is the only shared resource.
type Pipeline struct {
	cfg       config.PipelineConfig
	queue     queue.Queue
	scorer    *severity.Scorer
	router    *router.Router
	delegator *delegate.Delegator
	tracker   *delegate.Tracker
	adjuster  Adjuster

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
	log     *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(
	cfg config.PipelineConfig,
	q queue.Queue,
	scorer *severity.Scorer,
	rt *router.Router,
	delegator *delegate.Delegator,
	tracker *delegate.Tracker,
	adjuster Adjuster,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		queue:     q,
		scorer:    scorer,
		router:    rt,
		delegator: delegator,
		tracker:   tracker,
		adjuster:  adjuster,
		stop:      make(chan struct{}),
		log:       slog.With("component", "pipeline"),
	}
}

// Start launches the worker pool and the feedback consumer.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline already running")
	}

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.wg.Add(1)
	go p.feedbackLoop(ctx)

	p.log.Info("Pipeline started", "workers", p.cfg.Workers)
	return nil
}

// Stop drains in-flight work. Workers finish their current exception; after
// the drain timeout remaining cases are logged as incomplete, not lost; the
// inbound queue still holds anything unacknowledged.
func (p *Pipeline) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stop)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("Pipeline drained")
	case <-time.After(p.cfg.DrainTimeout):
		p.log.Warn("Drain timeout reached, in-flight work incomplete", "timeout", p.cfg.DrainTimeout)
	}
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With("worker", id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		payload, ok, err := p.queue.Receive(ctx, queue.InboundQueue, receiveTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("Inbound receive failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		if err := p.process(ctx, payload); err != nil {
			log.Error("Exception processing failed", "error", err)
		}
	}
}

// process runs one exception through the full decision path.
func (p *Pipeline) process(ctx context.Context, payload []byte) error {
	start := time.Now()

	var rec domain.ExceptionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		metrics.ExceptionsProcessed.WithLabelValues("rejected").Inc()
		return fmt.Errorf("malformed exception event: %w", err)
	}
	if err := rec.Validate(); err != nil {
		metrics.ExceptionsProcessed.WithLabelValues("rejected").Inc()
		return fmt.Errorf("rejected exception %s: %w", rec.ID, err)
	}

	classification := classifier.Classify(rec.ExceptionType, rec.ReasonCodes)

	// The learned correction is keyed by signature, which needs a severity
	// band; a provisional rlAdj-free pass supplies it.
	provisional := p.scorer.Score(&rec, 0)
	var adjustment float64
	if p.adjuster != nil {
		sig := domain.StateSignature(classification, provisional.Level, rec.SourceAgent)
		adjustment = p.adjuster.HistoricalAdjustment(sig)
	}
	assessment := p.scorer.Score(&rec, adjustment)

	triageCase := p.router.Route(&rec, classification, assessment)

	result, err := p.delegator.Delegate(ctx, triageCase)
	if err != nil {
		return fmt.Errorf("delegation failed for %s: %w", rec.ID, err)
	}

	metrics.DecisionLatency.Observe(time.Since(start).Seconds())
	p.log.Debug(
		"Exception triaged",
		"exception", rec.ID,
		"classification", classification,
		"severity", assessment.Level,
		"destination", result.Record.Destination,
		"degraded", result.Degraded,
		"duplicate", result.AlreadyDelegated,
	)
	return nil
}

// feedbackLoop consumes resolution/override events and applies them to the
// lifecycle tracker.
func (p *Pipeline) feedbackLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		payload, ok, err := p.queue.Receive(ctx, queue.FeedbackQueue, receiveTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("Feedback receive failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		var out domain.Outcome
		if err := json.Unmarshal(payload, &out); err != nil {
			p.log.Error("Malformed outcome event", "error", err)
			continue
		}
		if err := p.tracker.HandleOutcome(ctx, &out); err != nil {
			p.log.Warn("Outcome handling failed", "exception", out.ExceptionID, "error", err)
		}
	}
}
