package classifier

import (
	"log/slog"

	"github.com/vietddude/triage/internal/core/domain"
)

// taxonomyEntry maps a reason code to its category and base severity
// contribution.
type taxonomyEntry struct {
	Classification domain.Classification
	BaseScore      float64
}

// taxonomy is the static reason-code table. First recognized code in the
// record's ordered sequence decides the classification; the base severity is
// the maximum across all recognized codes.
var taxonomy = map[string]taxonomyEntry{
	// Data quality
	"AMOUNT_MISMATCH":      {domain.ClassDataQualityIssue, 0.35},
	"PRICE_MISMATCH":       {domain.ClassDataQualityIssue, 0.35},
	"QUANTITY_MISMATCH":    {domain.ClassDataQualityIssue, 0.30},
	"VALUE_DATE_MISMATCH":  {domain.ClassDataQualityIssue, 0.25},
	"COUNTERPARTY_UNKNOWN": {domain.ClassDataQualityIssue, 0.40},

	// Operational
	"MISSING_CONFIRMATION": {domain.ClassOperationalIssue, 0.30},
	"LATE_MATCH":           {domain.ClassOperationalIssue, 0.20},
	"MANUAL_BOOKING":       {domain.ClassOperationalIssue, 0.25},

	// System
	"STALE_FEED":    {domain.ClassSystemIssue, 0.45},
	"FEED_TIMEOUT":  {domain.ClassSystemIssue, 0.50},
	"PARSE_FAILURE": {domain.ClassSystemIssue, 0.40},

	// Compliance
	"LIMIT_BREACH":          {domain.ClassComplianceIssue, 0.70},
	"RESTRICTED_INSTRUMENT": {domain.ClassComplianceIssue, 0.75},
	"KYC_FLAG":              {domain.ClassComplianceIssue, 0.80},

	// Auto-resolvable
	"ROUNDING_DIFF":          {domain.ClassAutoResolvable, 0.05},
	"TOLERANCE_BREACH_MINOR": {domain.ClassAutoResolvable, 0.10},
	"DUPLICATE_FEED_ENTRY":   {domain.ClassAutoResolvable, 0.10},
}

// typeFallback classifies by exception type alone when no reason code is
// recognized.
var typeFallback = map[domain.ExceptionType]domain.Classification{
	domain.ExceptionTypeSettlementMismatch: domain.ClassOperationalIssue,
	domain.ExceptionTypeUnmatchedTrade:     domain.ClassOperationalIssue,
	domain.ExceptionTypeDuplicateTrade:     domain.ClassAutoResolvable,
	domain.ExceptionTypeFeedGap:            domain.ClassSystemIssue,
	domain.ExceptionTypeLimitBreach:        domain.ClassComplianceIssue,
}

// Classify maps an exception to its category. Total and deterministic:
// (a) first recognized reason code wins; (b) exception-type fallback;
// (c) OPERATIONAL_ISSUE. A missing mapping is expected, not an error.
func Classify(exceptionType domain.ExceptionType, reasonCodes []string) domain.Classification {
	for _, code := range reasonCodes {
		if entry, ok := taxonomy[code]; ok {
			return entry.Classification
		}
	}

	if c, ok := typeFallback[exceptionType]; ok {
		return c
	}

	slog.Debug(
		"no taxonomy match, defaulting classification",
		"exception_type", exceptionType,
		"reason_codes", reasonCodes,
	)
	return domain.ClassOperationalIssue
}

// BaseScore returns the taxonomy's base severity for a reason-code sequence:
// the maximum across recognized codes, 0 if none are recognized.
func BaseScore(reasonCodes []string) float64 {
	var base float64
	for _, code := range reasonCodes {
		if entry, ok := taxonomy[code]; ok && entry.BaseScore > base {
			base = entry.BaseScore
		}
	}
	return base
}

// KnownCode reports whether a reason code is in the taxonomy.
func KnownCode(code string) bool {
	_, ok := taxonomy[code]
	return ok
}
