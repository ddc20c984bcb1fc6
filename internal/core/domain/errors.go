package domain

import "fmt"

// ValidationError rejects a malformed exception record before triage begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid exception: field %q %s", e.Field, e.Reason)
}

// LifecycleError rejects an illegal lifecycle state transition. The original
// state is preserved by the caller; the error is logged as an anomaly.
type LifecycleError struct {
	ExceptionID string
	From        LifecycleState
	To          LifecycleState
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf(
		"illegal lifecycle transition for %s: %s -> %s",
		e.ExceptionID, e.From, e.To,
	)
}
