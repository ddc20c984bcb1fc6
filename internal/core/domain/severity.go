package domain

// SeverityLevel buckets a severity score into operator-facing bands.
type SeverityLevel string

const (
	SeverityLow      SeverityLevel = "LOW"
	SeverityMedium   SeverityLevel = "MEDIUM"
	SeverityHigh     SeverityLevel = "HIGH"
	SeverityCritical SeverityLevel = "CRITICAL"
)

// SeverityLevels lists every level from least to most severe.
var SeverityLevels = []SeverityLevel{
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityCritical,
}

// SeverityAssessment is the scorer's output. Breakdown records every named
// contribution so the clamped score stays explainable: the sum of all
// breakdown entries except "clampAdjustment" equals the pre-clamp raw value.
type SeverityAssessment struct {
	Score     float64            `json:"score"`
	Level     SeverityLevel      `json:"level"`
	Breakdown map[string]float64 `json:"breakdown"`
}
