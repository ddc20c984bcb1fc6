package policy

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/triage/metrics"
)

// replayAlphaScale reduces the learning rate for consolidation passes so
// replayed episodes smooth rather than dominate live updates.
const replayAlphaScale = 0.5

// severityAdjustScale converts mean Q-values into a severity correction.
const (
	severityAdjustScale = 0.15
	severityAdjustCap   = 0.15
)

// Advice is the learner's answer to a routing consultation.
type Advice struct {
	Best          domain.Destination
	BestValue     float64
	BaselineValue float64
	// Confident means the value gap clears the configured override margin
	Confident bool
}

// Learner owns the shared policy model. All reads and writes go through one
// mutex; routing lookups hold it only for the table access.
type Learner struct {
	mu      sync.RWMutex
	model   *Model
	cfg     config.PolicyConfig
	replay  *ReplayBuffer
	rng     *rand.Rand
	rngMu   sync.Mutex
	audit   storage.EpisodeRepository
	log     *slog.Logger
}

// NewLearner creates a learner, loading the latest valid snapshot if one
// exists at cfg.SnapshotPath. With no usable snapshot the model starts empty
// at maximum epsilon (full exploration until data accumulates).
func NewLearner(cfg config.PolicyConfig, audit storage.EpisodeRepository) *Learner {
	log := slog.With("component", "policy")

	model, err := LoadSnapshot(cfg.SnapshotPath)
	switch {
	case err == nil:
		log.Info(
			"Loaded policy snapshot",
			"version", model.Version,
			"epsilon", model.Epsilon,
			"cells", model.CellCount(),
		)
	case errors.Is(err, os.ErrNotExist):
		model = NewModel(cfg.EpsilonMax)
		log.Info("No policy snapshot found, starting empty", "epsilon", cfg.EpsilonMax)
	default:
		model = NewModel(cfg.EpsilonMax)
		log.Warn("Discarding unusable policy snapshot", "error", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	l := &Learner{
		model:  model,
		cfg:    cfg,
		replay: NewReplayBuffer(cfg.ReplayCapacity),
		rng:    rand.New(rand.NewSource(seed)),
		audit:  audit,
		log:    log,
	}
	l.publishGauges()
	return l
}

// Epsilon returns the current exploration rate.
func (l *Learner) Epsilon() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.model.Epsilon
}

// Version returns the snapshot version counter.
func (l *Learner) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.model.Version
}

// CellCount returns the number of learned state-action cells.
func (l *Learner) CellCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.model.CellCount()
}

// Advise looks up the best learned action for a signature and whether its
// advantage over the baseline clears the override margin. The critical
// section is a map lookup; routing never waits on training beyond that.
func (l *Learner) Advise(sig string, baseline domain.Destination) Advice {
	l.mu.RLock()
	defer l.mu.RUnlock()

	best, bestValue, ok := l.model.Best(sig)
	baselineValue := l.model.Value(sig, baseline)
	if !ok {
		return Advice{Best: baseline, BaselineValue: baselineValue}
	}
	return Advice{
		Best:          best,
		BestValue:     bestValue,
		BaselineValue: baselineValue,
		Confident:     best != baseline && bestValue-baselineValue > l.cfg.OverrideMargin,
	}
}

// HistoricalAdjustment derives the severity correction term from past
// outcomes for a signature: consistently negative rewards push severity up,
// consistently positive ones pull it down. Bounded to ±severityAdjustCap.
func (l *Learner) HistoricalAdjustment(sig string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	row := l.model.Entries[sig]
	if len(row) == 0 {
		return 0
	}
	var sum float64
	for _, v := range row {
		sum += v
	}
	adj := -(sum / float64(len(row))) * severityAdjustScale
	if adj > severityAdjustCap {
		adj = severityAdjustCap
	}
	if adj < -severityAdjustCap {
		adj = -severityAdjustCap
	}
	return adj
}

// Observe applies one finalized episode to the model and buffers it for
// replay. Episodes without a reward are ignored.
func (l *Learner) Observe(ctx context.Context, ep *domain.Episode) {
	if ep.Reward == nil {
		return
	}

	l.mu.Lock()
	l.applyUpdate(ep, 1.0)
	l.model.Epsilon *= l.cfg.EpsilonDecay
	if l.model.Epsilon < l.cfg.EpsilonMin {
		l.model.Epsilon = l.cfg.EpsilonMin
	}
	l.mu.Unlock()

	l.replay.Push(*ep)
	l.publishGauges()

	kind := "automatic"
	if ep.Weight > 1 {
		kind = "supervised"
	}
	metrics.EpisodesObserved.WithLabelValues(kind).Inc()

	if l.audit != nil {
		if err := l.audit.Append(ctx, ep); err != nil {
			l.log.Warn("Failed to persist episode", "episode", ep.ID, "error", err)
		}
	}
}

// Consolidate re-applies a sampled batch from the replay buffer at reduced
// alpha, smoothing noisy single-episode updates. Runs on its own schedule
// and never blocks routing beyond the per-update critical sections.
func (l *Learner) Consolidate(ctx context.Context) {
	l.rngMu.Lock()
	batch := l.replay.Sample(l.rng, l.cfg.ConsolidateBatch)
	l.rngMu.Unlock()
	if len(batch) == 0 {
		return
	}

	for i := range batch {
		select {
		case <-ctx.Done():
			return
		default:
		}
		l.mu.Lock()
		l.applyUpdate(&batch[i], replayAlphaScale)
		l.mu.Unlock()
		metrics.EpisodesObserved.WithLabelValues("replay").Inc()
	}

	l.publishGauges()
	l.log.Debug("Consolidation pass complete", "batch", len(batch))
}

// applyUpdate runs the tabular Q-learning update for one episode. Callers
// hold l.mu. The episode weight scales the effective learning rate so
// human-validated corrections converge faster than automatic feedback.
func (l *Learner) applyUpdate(ep *domain.Episode, alphaScale float64) {
	weight := ep.Weight
	if weight <= 0 {
		weight = 1
	}
	alpha := l.cfg.Alpha * weight * alphaScale
	if alpha > 1 {
		alpha = 1
	}

	var future float64
	if ep.NextSignature != "" {
		if _, best, ok := l.model.Best(ep.NextSignature); ok {
			future = best
		}
	}

	current := l.model.Value(ep.StateSignature, ep.Action)
	target := *ep.Reward + l.cfg.Gamma*future
	l.model.set(ep.StateSignature, ep.Action, current+alpha*(target-current))
}

// Checkpoint persists the model atomically. The version counter only
// advances once the snapshot is durable; a failed write leaves the in-memory
// model serving at its old version and the next tick retries.
func (l *Learner) Checkpoint() error {
	l.mu.Lock()
	snapshot := Model{
		Entries: make(map[string]map[domain.Destination]float64, len(l.model.Entries)),
		Epsilon: l.model.Epsilon,
		Version: l.model.Version + 1,
	}
	for sig, row := range l.model.Entries {
		copied := make(map[domain.Destination]float64, len(row))
		for a, v := range row {
			copied[a] = v
		}
		snapshot.Entries[sig] = copied
	}
	l.mu.Unlock()

	if err := SaveSnapshot(l.cfg.SnapshotPath, &snapshot); err != nil {
		metrics.SnapshotFailures.Inc()
		l.log.Error("Policy checkpoint failed", "error", err)
		return err
	}

	l.mu.Lock()
	l.model.Version = snapshot.Version
	l.mu.Unlock()

	l.log.Debug("Policy checkpoint written", "version", snapshot.Version)
	return nil
}

func (l *Learner) publishGauges() {
	l.mu.RLock()
	metrics.PolicyTableSize.Set(float64(l.model.CellCount()))
	metrics.PolicyEpsilon.Set(l.model.Epsilon)
	l.mu.RUnlock()
}
