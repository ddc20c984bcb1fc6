package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/robfig/cron/v3"

	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/worker"
	"github.com/vietddude/triage/internal/infra/queue"
	redisclient "github.com/vietddude/triage/internal/infra/redis"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/infra/storage/memory"
	"github.com/vietddude/triage/internal/infra/storage/postgres"
	"github.com/vietddude/triage/internal/ops"
	"github.com/vietddude/triage/internal/policy"
	"github.com/vietddude/triage/internal/triage/delegate"
	"github.com/vietddude/triage/internal/triage/pipeline"
	"github.com/vietddude/triage/internal/triage/router"
	"github.com/vietddude/triage/internal/triage/severity"
)

// Engine wires the triage components together and manages their lifecycle.
type Engine struct {
	cfg         *config.AppConfig
	pipeline    *pipeline.Pipeline
	learner     *policy.Learner
	tracker     *delegate.Tracker
	opsServer   *ops.Server
	cron        *cron.Cron
	pruner      *worker.Pruner
	prunerStop  context.CancelFunc
	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger
}

// NewEngine creates an engine with all dependencies initialized. Backends
// are chosen by config presence: redis for queues and lifecycle records,
// postgres for the case/episode audit trail, in-memory fallbacks otherwise.
func NewEngine(cfg *config.AppConfig) (*Engine, error) {
	log := slog.Default()

	// 1. Storage
	var (
		db          *postgres.DB
		caseRepo    storage.CaseRepository
		episodeRepo storage.EpisodeRepository
		lifecycle   storage.LifecycleStore
		memStore    *memory.MemoryStorage
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		caseRepo = postgres.NewCaseRepo(db)
		episodeRepo = postgres.NewEpisodeRepo(db)
		lifecycle = postgres.NewLifecycleRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		memStore = memory.NewMemoryStorage()
		caseRepo = memory.NewCaseRepo(memStore)
		episodeRepo = memory.NewEpisodeRepo(memStore)
		lifecycle = memory.NewLifecycleStore(memStore)
		log.Info("Using memory storage")
	}

	// 2. Queues and lifecycle record store
	var (
		q           queue.Queue
		redisClient *redisclient.Client
	)
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		q = queue.NewRedisQueue(redisClient)
		// Redis is the preferred lifecycle record store when available
		lifecycle = redisclient.NewLifecycleStore(redisClient)
		log.Info("Using Redis queues and lifecycle store")
	} else {
		q = queue.NewMemoryQueue(cfg.Pipeline.QueueDepth)
		log.Info("Using memory queues")
	}

	// 3. Policy learner (loads latest snapshot or starts empty)
	learner := policy.NewLearner(cfg.Policy, episodeRepo)

	// 4. Decision components
	scorer := severity.NewScorer(cfg.Triage)

	seed := cfg.Policy.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rt, err := router.NewRouter(
		router.DefaultRules(),
		learner,
		rand.New(rand.NewSource(seed)),
	)
	if err != nil {
		return nil, err
	}

	delegator := delegate.NewDelegator(cfg.Delegate, q, lifecycle, caseRepo, learner)
	tracker := delegate.NewTracker(lifecycle, caseRepo, q, learner, cfg.Policy.SupervisedWeight)

	pipe := pipeline.NewPipeline(cfg.Pipeline, q, scorer, rt, delegator, tracker, learner)

	opsServer := ops.NewServer(lifecycle, caseRepo, tracker, learner, cfg.Server.Port)

	// 5. Scheduled jobs: replay consolidation, model checkpoint, SLA sweep
	c := cron.New()
	if _, err := c.AddFunc(cfg.Policy.ConsolidateSchedule, func() {
		learner.Consolidate(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid consolidate schedule: %w", err)
	}
	c.Schedule(cron.Every(cfg.Policy.SnapshotInterval), cron.FuncJob(func() {
		_ = learner.Checkpoint()
	}))
	if _, err := c.AddFunc(cfg.Delegate.SweepSchedule, func() {
		n, err := tracker.SweepOverdue(context.Background())
		if err != nil {
			log.Error("SLA sweep failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("SLA sweep escalated overdue cases", "count", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule: %w", err)
	}

	// 6. Retention pruner over terminal audit data
	pruneTargets := map[string]worker.Retention{}
	if r, ok := episodeRepo.(worker.Retention); ok {
		pruneTargets["episodes"] = r
	}
	if r, ok := lifecycle.(worker.Retention); ok {
		pruneTargets["lifecycle"] = r
	}
	pruner := worker.NewPruner(cfg.Delegate.Retention, pruneTargets)

	return &Engine{
		cfg:         cfg,
		pipeline:    pipe,
		learner:     learner,
		tracker:     tracker,
		opsServer:   opsServer,
		cron:        c,
		pruner:      pruner,
		db:          db,
		redisClient: redisClient,
		log:         log,
	}, nil
}

// Start starts the engine and all its components.
func (e *Engine) Start(ctx context.Context) error {
	go func() {
		if err := e.opsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("Ops server failed", "error", err)
		}
	}()

	if err := e.pipeline.Start(ctx); err != nil {
		return err
	}

	e.cron.Start()

	pruneCtx, cancel := context.WithCancel(context.Background())
	e.prunerStop = cancel
	go e.pruner.Start(pruneCtx)

	return nil
}

// Stop drains the pipeline, checkpoints the model, and releases resources.
func (e *Engine) Stop(ctx context.Context) error {
	e.log.Info("Stopping triage engine...")

	// Drain workers first so no decision is cut off mid-flight
	e.pipeline.Stop()

	if e.prunerStop != nil {
		e.prunerStop()
	}

	cronCtx := e.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		e.log.Warn("Timed out waiting for scheduled jobs")
	}

	// Final checkpoint; a failure is logged, never fatal
	_ = e.learner.Checkpoint()

	if err := e.opsServer.Stop(ctx); err != nil {
		e.log.Warn("Failed to stop ops server", "error", err)
	}

	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("Failed to close database", "error", err)
		}
	}

	e.log.Info("Triage engine stopped")
	return nil
}
