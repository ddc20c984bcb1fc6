package domain

import (
	"fmt"
	"hash/fnv"
	"time"
)

// agentBuckets bounds the source-agent dimension of the state signature so
// the policy table generalizes across agents instead of keying every one.
const agentBuckets = 8

// StateSignature derives the discretized feature key the policy table is
// indexed by: classification, severity band, and a hashed agent bucket.
func StateSignature(c Classification, level SeverityLevel, sourceAgent string) string {
	h := fnv.New32a()
	h.Write([]byte(sourceAgent))
	return fmt.Sprintf("%s|%s|a%d", c, level, h.Sum32()%agentBuckets)
}

// Episode is one state/action/reward training unit for the policy learner.
// Reward stays nil until the case reaches a terminal lifecycle state.
type Episode struct {
	ID             string      `json:"id"`
	ExceptionID    string      `json:"exception_id"`
	StateSignature string      `json:"state_signature"`
	Action         Destination `json:"action"`
	Reward         *float64    `json:"reward,omitempty"`
	NextSignature  string      `json:"next_signature,omitempty"`
	Weight         float64     `json:"weight"`
	Degraded       bool        `json:"degraded"`
	RecordedAt     time.Time   `json:"recorded_at"`
}

// OutcomeKind classifies a resolution event arriving on the feedback channel.
type OutcomeKind string

const (
	OutcomeResolved   OutcomeKind = "resolved"
	OutcomeEscalated  OutcomeKind = "escalated"
	OutcomeFailed     OutcomeKind = "failed"
	OutcomeReassigned OutcomeKind = "reassigned"
	OutcomeInProgress OutcomeKind = "in_progress"
)

// Outcome is a resolution/escalation/override event for a delegated case.
type Outcome struct {
	ExceptionID string      `json:"exception_id"`
	Kind        OutcomeKind `json:"kind"`
	Destination Destination `json:"destination,omitempty"` // set for reassignments
	Notes       string      `json:"notes,omitempty"`
	Actor       string      `json:"actor,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
