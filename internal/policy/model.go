package policy

import (
	"github.com/vietddude/triage/internal/core/domain"
)

// Model is the tabular Q-function: (state signature, destination) value
// estimates plus the current exploration rate. It is not safe for concurrent
// use on its own; the Learner owns it behind one lock.
type Model struct {
	Entries map[string]map[domain.Destination]float64 `json:"entries"`
	Epsilon float64                                   `json:"epsilon"`
	Version uint64                                    `json:"version"`
}

// NewModel creates an empty model starting at the given exploration rate.
func NewModel(epsilon float64) *Model {
	return &Model{
		Entries: make(map[string]map[domain.Destination]float64),
		Epsilon: epsilon,
	}
}

// Value returns the estimate for a state-action cell, 0 if unseen.
func (m *Model) Value(sig string, action domain.Destination) float64 {
	return m.Entries[sig][action]
}

// Best returns the highest-valued action for a signature. ok=false when the
// signature has never been updated.
func (m *Model) Best(sig string) (action domain.Destination, value float64, ok bool) {
	row, exists := m.Entries[sig]
	if !exists || len(row) == 0 {
		return "", 0, false
	}
	// Iterate the fixed action order so ties break deterministically
	first := true
	for _, a := range domain.Destinations {
		v, seen := row[a]
		if !seen {
			continue
		}
		if first || v > value {
			action, value = a, v
			first = false
		}
	}
	return action, value, !first
}

// set writes one cell, allocating the row on first touch.
func (m *Model) set(sig string, action domain.Destination, value float64) {
	row, ok := m.Entries[sig]
	if !ok {
		row = make(map[domain.Destination]float64)
		m.Entries[sig] = row
	}
	row[action] = value
}

// CellCount returns the number of learned state-action cells.
func (m *Model) CellCount() int {
	n := 0
	for _, row := range m.Entries {
		n += len(row)
	}
	return n
}
