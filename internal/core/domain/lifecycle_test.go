package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    LifecycleState
		to      LifecycleState
		allowed bool
	}{
		{LifecycleNew, LifecyclePending, true},
		{LifecycleNew, LifecycleResolved, false},
		{LifecyclePending, LifecycleInProgress, true},
		{LifecyclePending, LifecycleResolved, true},
		{LifecyclePending, LifecycleEscalated, true},
		{LifecyclePending, LifecycleFailed, true},
		{LifecyclePending, LifecycleNew, false},
		{LifecycleInProgress, LifecycleResolved, true},
		{LifecycleInProgress, LifecycleEscalated, true},
		{LifecycleInProgress, LifecycleFailed, true},
		{LifecycleInProgress, LifecyclePending, false},
		{LifecycleResolved, LifecyclePending, false},
		{LifecycleResolved, LifecycleInProgress, false},
		{LifecycleEscalated, LifecycleResolved, false},
		{LifecycleFailed, LifecyclePending, true}, // re-delegation
		{LifecycleFailed, LifecycleResolved, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := []LifecycleState{LifecycleResolved, LifecycleEscalated, LifecycleFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}

	open := []LifecycleState{LifecycleNew, LifecyclePending, LifecycleInProgress}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("Expected %s not to be terminal", s)
		}
	}

	// Terminal states allow no transitions except FAILED -> PENDING
	for _, from := range []LifecycleState{LifecycleResolved, LifecycleEscalated} {
		for _, to := range []LifecycleState{
			LifecycleNew, LifecyclePending, LifecycleInProgress,
			LifecycleResolved, LifecycleEscalated, LifecycleFailed,
		} {
			if CanTransition(from, to) {
				t.Errorf("Expected no transition out of %s, got %s -> %s", from, from, to)
			}
		}
	}
}
