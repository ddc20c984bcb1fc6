package severity

import (
	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/triage/classifier"
)

// Breakdown keys recorded on every assessment.
const (
	FactorBase     = "base"
	FactorMatchAdj = "matchAdj"
	FactorRetryAdj = "retryAdj"
	FactorRLAdj    = "rlAdj"
	FactorClampAdj = "clampAdjustment"
)

// Scorer computes severity assessments from configured weights. Stateless
// and safe for concurrent use.
type Scorer struct {
	cfg config.TriageConfig
}

// NewScorer creates a scorer with the given weights and thresholds.
func NewScorer(cfg config.TriageConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the severity assessment for an exception. Inputs are
// assumed validated upstream; historicalAdjustment comes from the policy
// learner and may be negative. The breakdown's entries minus the clamp
// adjustment always sum to the pre-clamp raw value.
func (s *Scorer) Score(
	rec *domain.ExceptionRecord,
	historicalAdjustment float64,
) domain.SeverityAssessment {
	base := classifier.BaseScore(rec.ReasonCodes)

	var matchAdj float64
	if rec.MatchScore != nil {
		matchAdj = (1 - *rec.MatchScore) * s.cfg.MatchWeight
	}

	retries := rec.RetryCount
	if retries > s.cfg.RetryCap {
		retries = s.cfg.RetryCap
	}
	retryAdj := float64(retries) * s.cfg.RetryWeight

	raw := base + matchAdj + retryAdj + historicalAdjustment
	score := raw
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	breakdown := map[string]float64{
		FactorBase:     base,
		FactorMatchAdj: matchAdj,
		FactorRetryAdj: retryAdj,
		FactorRLAdj:    historicalAdjustment,
	}
	if score != raw {
		breakdown[FactorClampAdj] = score - raw
	}

	return domain.SeverityAssessment{
		Score:     score,
		Level:     s.levelFor(score),
		Breakdown: breakdown,
	}
}

// levelFor buckets a clamped score using the configured thresholds.
func (s *Scorer) levelFor(score float64) domain.SeverityLevel {
	switch {
	case score < s.cfg.MediumThreshold:
		return domain.SeverityLow
	case score < s.cfg.HighThreshold:
		return domain.SeverityMedium
	case score < s.cfg.CriticalThreshold:
		return domain.SeverityHigh
	default:
		return domain.SeverityCritical
	}
}
