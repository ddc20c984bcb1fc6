package domain

import (
	"fmt"
	"time"
)

// ExceptionType identifies the reconciliation failure mode reported upstream.
type ExceptionType string

const (
	ExceptionTypeSettlementMismatch ExceptionType = "SETTLEMENT_MISMATCH"
	ExceptionTypeUnmatchedTrade     ExceptionType = "UNMATCHED_TRADE"
	ExceptionTypeDuplicateTrade     ExceptionType = "DUPLICATE_TRADE"
	ExceptionTypeFeedGap            ExceptionType = "FEED_GAP"
	ExceptionTypeLimitBreach        ExceptionType = "LIMIT_BREACH"
)

// ExceptionRecord is the immutable inbound event describing an unresolved
// trade discrepancy. Upstream agents create it; nothing here mutates it.
type ExceptionRecord struct {
	ID            string        `json:"id"`
	TradeID       string        `json:"trade_id"`
	ExceptionType ExceptionType `json:"exception_type"`
	ReasonCodes   []string      `json:"reason_codes,omitempty"`
	MatchScore    *float64      `json:"match_score,omitempty"`
	RetryCount    int           `json:"retry_count"`
	SourceAgent   string        `json:"source_agent"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Validate checks required fields and numeric ranges. It returns a
// *ValidationError describing the first problem found, or nil.
func (r *ExceptionRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "missing"}
	}
	if r.TradeID == "" {
		return &ValidationError{Field: "trade_id", Reason: "missing"}
	}
	if r.SourceAgent == "" {
		return &ValidationError{Field: "source_agent", Reason: "missing"}
	}
	if r.MatchScore != nil && (*r.MatchScore < 0 || *r.MatchScore > 1) {
		return &ValidationError{
			Field:  "match_score",
			Reason: fmt.Sprintf("out of range [0,1]: %v", *r.MatchScore),
		}
	}
	if r.RetryCount < 0 {
		return &ValidationError{
			Field:  "retry_count",
			Reason: fmt.Sprintf("negative: %d", r.RetryCount),
		}
	}
	if r.CreatedAt.IsZero() {
		return &ValidationError{Field: "created_at", Reason: "missing"}
	}
	return nil
}
