package severity

import (
	"math"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/domain"
)

func testConfig() config.TriageConfig {
	return config.TriageConfig{
		MatchWeight:       0.3,
		RetryWeight:       0.1,
		RetryCap:          5,
		MediumThreshold:   0.30,
		HighThreshold:     0.60,
		CriticalThreshold: 0.85,
	}
}

func record(codes []string, matchScore *float64, retries int) *domain.ExceptionRecord {
	return &domain.ExceptionRecord{
		ID:            "exc-1",
		TradeID:       "trade-1",
		ExceptionType: domain.ExceptionTypeSettlementMismatch,
		ReasonCodes:   codes,
		MatchScore:    matchScore,
		RetryCount:    retries,
		SourceAgent:   "recon-agent-1",
		CreatedAt:     time.Now(),
	}
}

func TestScoreAmountMismatch(t *testing.T) {
	s := NewScorer(testConfig())
	match := 0.4

	got := s.Score(record([]string{"AMOUNT_MISMATCH"}, &match, 0), 0)

	// base 0.35 + (1-0.4)*0.3 = 0.53
	if math.Abs(got.Score-0.53) > 1e-9 {
		t.Errorf("Expected score 0.53, got %v", got.Score)
	}
	if got.Level != domain.SeverityMedium {
		t.Errorf("Expected MEDIUM, got %s", got.Level)
	}
}

func TestScoreBreakdownSumsToScore(t *testing.T) {
	s := NewScorer(testConfig())
	match := 0.2

	cases := []struct {
		name string
		rec  *domain.ExceptionRecord
		adj  float64
	}{
		{"plain", record([]string{"AMOUNT_MISMATCH"}, &match, 2), 0},
		{"with adjustment", record([]string{"KYC_FLAG"}, &match, 1), 0.1},
		{"negative adjustment", record([]string{"STALE_FEED"}, nil, 0), -0.12},
		{"clamped high", record([]string{"KYC_FLAG"}, &match, 5), 0.15},
		{"clamped low", record(nil, nil, 0), -0.15},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.rec, tt.adj)

			var sum float64
			for _, v := range got.Breakdown {
				sum += v
			}
			if math.Abs(sum-got.Score) > 1e-6 {
				t.Errorf("Breakdown sums to %v, score is %v", sum, got.Score)
			}
			if got.Score < 0 || got.Score > 1 {
				t.Errorf("Score %v outside [0,1]", got.Score)
			}
		})
	}
}

func TestScoreRetryCap(t *testing.T) {
	s := NewScorer(testConfig())

	atCap := s.Score(record(nil, nil, 5), 0)
	overCap := s.Score(record(nil, nil, 50), 0)
	if atCap.Score != overCap.Score {
		t.Errorf("Expected retry contribution capped: %v vs %v", atCap.Score, overCap.Score)
	}
	if atCap.Breakdown[FactorRetryAdj] != 0.5 {
		t.Errorf("Expected retryAdj 0.5, got %v", atCap.Breakdown[FactorRetryAdj])
	}
}

func TestScoreMissingMatchScore(t *testing.T) {
	s := NewScorer(testConfig())

	got := s.Score(record([]string{"AMOUNT_MISMATCH"}, nil, 0), 0)
	if got.Breakdown[FactorMatchAdj] != 0 {
		t.Errorf("Expected zero matchAdj without a match score, got %v", got.Breakdown[FactorMatchAdj])
	}
	if got.Score != 0.35 {
		t.Errorf("Expected base-only score 0.35, got %v", got.Score)
	}
}

func TestScoreClampRecorded(t *testing.T) {
	s := NewScorer(testConfig())
	match := 0.0

	// base 0.80 + 0.3 + 0.5 + 0.15 = 1.75, clamps to 1
	got := s.Score(record([]string{"KYC_FLAG"}, &match, 5), 0.15)
	if got.Score != 1 {
		t.Fatalf("Expected clamped score 1, got %v", got.Score)
	}
	clamp, ok := got.Breakdown[FactorClampAdj]
	if !ok {
		t.Fatal("Expected clampAdjustment entry when clamping occurs")
	}
	if math.Abs(clamp-(-0.75)) > 1e-9 {
		t.Errorf("Expected clampAdjustment -0.75, got %v", clamp)
	}

	// No clamp entry when no clamping
	got = s.Score(record([]string{"ROUNDING_DIFF"}, nil, 0), 0)
	if _, ok := got.Breakdown[FactorClampAdj]; ok {
		t.Error("Unexpected clampAdjustment entry without clamping")
	}
}

func TestLevelThresholds(t *testing.T) {
	s := NewScorer(testConfig())
	tests := []struct {
		score float64
		want  domain.SeverityLevel
	}{
		{0, domain.SeverityLow},
		{0.29, domain.SeverityLow},
		{0.30, domain.SeverityMedium},
		{0.59, domain.SeverityMedium},
		{0.60, domain.SeverityHigh},
		{0.84, domain.SeverityHigh},
		{0.85, domain.SeverityCritical},
		{1, domain.SeverityCritical},
	}
	for _, tt := range tests {
		if got := s.levelFor(tt.score); got != tt.want {
			t.Errorf("levelFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
