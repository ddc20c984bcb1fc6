package domain

import "time"

// LifecycleState tracks a delegated case in the external record store.
type LifecycleState string

const (
	LifecycleNew        LifecycleState = "NEW"
	LifecyclePending    LifecycleState = "PENDING"
	LifecycleInProgress LifecycleState = "IN_PROGRESS"
	LifecycleResolved   LifecycleState = "RESOLVED"
	LifecycleEscalated  LifecycleState = "ESCALATED"
	LifecycleFailed     LifecycleState = "FAILED"
)

// Terminal reports whether s ends the lifecycle. FAILED is terminal for the
// case but a fresh delegation may restart it.
func (s LifecycleState) Terminal() bool {
	return s == LifecycleResolved || s == LifecycleEscalated || s == LifecycleFailed
}

// lifecycleTransitions is the exhaustive legal-transition table. Anything
// absent here is rejected with a LifecycleError.
var lifecycleTransitions = map[LifecycleState][]LifecycleState{
	LifecycleNew:        {LifecyclePending},
	LifecyclePending:    {LifecycleInProgress, LifecycleResolved, LifecycleEscalated, LifecycleFailed},
	LifecycleInProgress: {LifecycleResolved, LifecycleEscalated, LifecycleFailed},
	LifecycleResolved:   {},
	LifecycleEscalated:  {},
	LifecycleFailed:     {LifecyclePending}, // re-delegation after failure
}

// CanTransition reports whether from → to is a legal lifecycle transition.
func CanTransition(from, to LifecycleState) bool {
	for _, next := range lifecycleTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LifecycleRecord is the durable per-exception tracking row, keyed by
// exception ID in the external record store.
type LifecycleRecord struct {
	ExceptionID string         `json:"exception_id"`
	State       LifecycleState `json:"state"`
	Destination Destination    `json:"destination"`
	Priority    int            `json:"priority"`
	SLADeadline time.Time      `json:"sla_deadline"`
	Degraded    bool           `json:"degraded"`
	Notes       string         `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}
