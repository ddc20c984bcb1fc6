package domain

import "time"

// Destination names a handler queue an exception can be routed to.
type Destination string

const (
	DestAutoResolve Destination = "AUTO_RESOLVE"
	DestOpsDesk     Destination = "OPS_DESK"
	DestSeniorOps   Destination = "SENIOR_OPS"
	DestCompliance  Destination = "COMPLIANCE"
	DestEngineering Destination = "ENGINEERING"
)

// Destinations is the full action space, in stable order.
var Destinations = []Destination{
	DestAutoResolve,
	DestOpsDesk,
	DestSeniorOps,
	DestCompliance,
	DestEngineering,
}

// ValidDestination reports whether d names a known destination.
func ValidDestination(d Destination) bool {
	for _, known := range Destinations {
		if d == known {
			return true
		}
	}
	return false
}

// CaseState tracks a triage case through its decision pipeline.
type CaseState string

const (
	CaseStateNew        CaseState = "NEW"
	CaseStateClassified CaseState = "CLASSIFIED"
	CaseStateScored     CaseState = "SCORED"
	CaseStateRouted     CaseState = "ROUTED"
	CaseStateDelegated  CaseState = "DELEGATED"
	CaseStateInProgress CaseState = "IN_PROGRESS"
	CaseStateResolved   CaseState = "RESOLVED"
	CaseStateEscalated  CaseState = "ESCALATED"
	CaseStateFailed     CaseState = "FAILED"
)

// Terminal reports whether s ends the case lifecycle.
func (s CaseState) Terminal() bool {
	return s == CaseStateResolved || s == CaseStateEscalated || s == CaseStateFailed
}

// TriageCase is the central mutable entity, one per ExceptionRecord. The
// router owns it exclusively until delegation; afterwards it is read-only.
type TriageCase struct {
	ExceptionID        string             `json:"exception_id"`
	TradeID            string             `json:"trade_id"`
	Classification     Classification     `json:"classification"`
	Severity           SeverityAssessment `json:"severity"`
	Destination        Destination        `json:"destination"`
	Priority           int                `json:"priority"`
	SLADeadline        time.Time          `json:"sla_deadline"`
	RecommendedActions []string           `json:"recommended_actions,omitempty"`
	State              CaseState          `json:"state"`
	StateSignature     string             `json:"state_signature"`
	OverrideApplied    bool               `json:"override_applied"`
	Explored           bool               `json:"explored"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}
