package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (cfg *AppConfig) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Pipeline.QueueDepth == 0 {
		cfg.Pipeline.QueueDepth = 256
	}
	if cfg.Pipeline.DrainTimeout == 0 {
		cfg.Pipeline.DrainTimeout = 30 * time.Second
	}

	if cfg.Triage.MatchWeight == 0 {
		cfg.Triage.MatchWeight = 0.3
	}
	if cfg.Triage.RetryWeight == 0 {
		cfg.Triage.RetryWeight = 0.1
	}
	if cfg.Triage.RetryCap == 0 {
		cfg.Triage.RetryCap = 5
	}
	if cfg.Triage.MediumThreshold == 0 {
		cfg.Triage.MediumThreshold = 0.30
	}
	if cfg.Triage.HighThreshold == 0 {
		cfg.Triage.HighThreshold = 0.60
	}
	if cfg.Triage.CriticalThreshold == 0 {
		cfg.Triage.CriticalThreshold = 0.85
	}

	if cfg.Policy.Alpha == 0 {
		cfg.Policy.Alpha = 0.1
	}
	if cfg.Policy.Gamma == 0 {
		cfg.Policy.Gamma = 0.9
	}
	if cfg.Policy.EpsilonMax == 0 {
		cfg.Policy.EpsilonMax = 0.3
	}
	if cfg.Policy.EpsilonMin == 0 {
		cfg.Policy.EpsilonMin = 0.02
	}
	if cfg.Policy.EpsilonDecay == 0 {
		cfg.Policy.EpsilonDecay = 0.995
	}
	if cfg.Policy.OverrideMargin == 0 {
		cfg.Policy.OverrideMargin = 0.2
	}
	if cfg.Policy.SupervisedWeight == 0 {
		cfg.Policy.SupervisedWeight = 3.0
	}
	if cfg.Policy.ReplayCapacity == 0 {
		cfg.Policy.ReplayCapacity = 1000
	}
	if cfg.Policy.ConsolidateBatch == 0 {
		cfg.Policy.ConsolidateBatch = 32
	}
	if cfg.Policy.ConsolidateSchedule == "" {
		cfg.Policy.ConsolidateSchedule = "@every 5m"
	}
	if cfg.Policy.SnapshotPath == "" {
		cfg.Policy.SnapshotPath = "policy_model.json"
	}
	if cfg.Policy.SnapshotInterval == 0 {
		cfg.Policy.SnapshotInterval = 10 * time.Minute
	}

	if cfg.Delegate.MaxAttempts == 0 {
		cfg.Delegate.MaxAttempts = 5
	}
	if cfg.Delegate.InitialDelay == 0 {
		cfg.Delegate.InitialDelay = 200 * time.Millisecond
	}
	if cfg.Delegate.MaxDelay == 0 {
		cfg.Delegate.MaxDelay = 10 * time.Second
	}
	if cfg.Delegate.BackoffMultiple == 0 {
		cfg.Delegate.BackoffMultiple = 2.0
	}
	if cfg.Delegate.SweepSchedule == "" {
		cfg.Delegate.SweepSchedule = "@every 1m"
	}
}

func (cfg *AppConfig) validate() error {
	t := cfg.Triage
	if t.MatchWeight < 0 || t.RetryWeight < 0 {
		return fmt.Errorf("severity weights must be non-negative")
	}
	if !(t.MediumThreshold < t.HighThreshold && t.HighThreshold < t.CriticalThreshold) {
		return fmt.Errorf(
			"severity thresholds must be strictly increasing: %v < %v < %v",
			t.MediumThreshold, t.HighThreshold, t.CriticalThreshold,
		)
	}
	if t.CriticalThreshold > 1 {
		return fmt.Errorf("critical threshold must be <= 1, got %v", t.CriticalThreshold)
	}

	p := cfg.Policy
	if p.Alpha <= 0 || p.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0,1], got %v", p.Alpha)
	}
	if p.Gamma < 0 || p.Gamma >= 1 {
		return fmt.Errorf("gamma must be in [0,1), got %v", p.Gamma)
	}
	if p.EpsilonMin > p.EpsilonMax {
		return fmt.Errorf("epsilon_min %v exceeds epsilon_max %v", p.EpsilonMin, p.EpsilonMax)
	}
	if p.EpsilonDecay <= 0 || p.EpsilonDecay > 1 {
		return fmt.Errorf("epsilon_decay must be in (0,1], got %v", p.EpsilonDecay)
	}

	if cfg.Delegate.MaxAttempts < 1 {
		return fmt.Errorf("delegate max_attempts must be >= 1")
	}
	return nil
}
