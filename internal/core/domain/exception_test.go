package domain

import (
	"errors"
	"testing"
	"time"
)

func validRecord() *ExceptionRecord {
	match := 0.4
	return &ExceptionRecord{
		ID:            "exc-1",
		TradeID:       "trade-1",
		ExceptionType: ExceptionTypeSettlementMismatch,
		ReasonCodes:   []string{"AMOUNT_MISMATCH"},
		MatchScore:    &match,
		RetryCount:    1,
		SourceAgent:   "recon-agent-1",
		CreatedAt:     time.Now(),
	}
}

func TestExceptionRecordValidate(t *testing.T) {
	if err := validRecord().Validate(); err != nil {
		t.Fatalf("Expected valid record, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ExceptionRecord)
		field  string
	}{
		{"missing id", func(r *ExceptionRecord) { r.ID = "" }, "id"},
		{"missing trade id", func(r *ExceptionRecord) { r.TradeID = "" }, "trade_id"},
		{"missing source agent", func(r *ExceptionRecord) { r.SourceAgent = "" }, "source_agent"},
		{"match score above 1", func(r *ExceptionRecord) { v := 1.5; r.MatchScore = &v }, "match_score"},
		{"match score below 0", func(r *ExceptionRecord) { v := -0.1; r.MatchScore = &v }, "match_score"},
		{"negative retries", func(r *ExceptionRecord) { r.RetryCount = -1 }, "retry_count"},
		{"missing created at", func(r *ExceptionRecord) { r.CreatedAt = time.Time{} }, "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)

			err := rec.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected *ValidationError, got %T", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, vErr.Field)
			}
		})
	}
}

func TestExceptionRecordValidateOptionalMatchScore(t *testing.T) {
	rec := validRecord()
	rec.MatchScore = nil
	if err := rec.Validate(); err != nil {
		t.Errorf("Expected nil match score to be valid, got %v", err)
	}
}
