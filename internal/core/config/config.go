package config

import (
	"time"

	redisclient "github.com/vietddude/triage/internal/infra/redis"
	"github.com/vietddude/triage/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Pipeline PipelineConfig     `yaml:"pipeline"`
	Triage   TriageConfig       `yaml:"triage"`
	Policy   PolicyConfig       `yaml:"policy"`
	Delegate DelegateConfig     `yaml:"delegate"`
}

// ServerConfig holds ops HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// PipelineConfig holds worker-pool settings.
type PipelineConfig struct {
	Workers      int           `yaml:"workers"`
	QueueDepth   int           `yaml:"queue_depth"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// TriageConfig holds severity scoring weights and level thresholds.
type TriageConfig struct {
	MatchWeight       float64 `yaml:"match_weight"`
	RetryWeight       float64 `yaml:"retry_weight"`
	RetryCap          int     `yaml:"retry_cap"`
	MediumThreshold   float64 `yaml:"medium_threshold"`
	HighThreshold     float64 `yaml:"high_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
}

// PolicyConfig holds the learner's hyperparameters and persistence settings.
type PolicyConfig struct {
	Alpha               float64       `yaml:"alpha"`
	Gamma               float64       `yaml:"gamma"`
	EpsilonMax          float64       `yaml:"epsilon_max"`
	EpsilonMin          float64       `yaml:"epsilon_min"`
	EpsilonDecay        float64       `yaml:"epsilon_decay"`
	OverrideMargin      float64       `yaml:"override_margin"`
	SupervisedWeight    float64       `yaml:"supervised_weight"`
	ReplayCapacity      int           `yaml:"replay_capacity"`
	ConsolidateBatch    int           `yaml:"consolidate_batch"`
	ConsolidateSchedule string        `yaml:"consolidate_schedule"` // cron expression
	SnapshotPath        string        `yaml:"snapshot_path"`
	SnapshotInterval    time.Duration `yaml:"snapshot_interval"`
	Seed                int64         `yaml:"seed"` // 0 = time-based
}

// DelegateConfig holds delegation retry behavior and the SLA sweep schedule.
type DelegateConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
	SweepSchedule   string        `yaml:"sweep_schedule"` // cron expression
	Retention       time.Duration `yaml:"retention"`      // 0 = keep forever
}
