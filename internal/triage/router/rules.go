package router

import (
	"fmt"

	"github.com/vietddude/triage/internal/core/domain"
)

// Rule is one baseline routing outcome.
type Rule struct {
	Destination domain.Destination
	Priority    int // 1 = highest, 5 = lowest
}

// RuleTable maps (classification, severity level) to a baseline rule. The
// table must be exhaustive; NewRouter rejects a partial one at startup.
type RuleTable map[domain.Classification]map[domain.SeverityLevel]Rule

// DefaultRules returns the static destination/priority table.
func DefaultRules() RuleTable {
	return RuleTable{
		domain.ClassAutoResolvable: {
			domain.SeverityLow:      {domain.DestAutoResolve, 5},
			domain.SeverityMedium:   {domain.DestAutoResolve, 4},
			domain.SeverityHigh:     {domain.DestOpsDesk, 3},
			domain.SeverityCritical: {domain.DestSeniorOps, 2},
		},
		domain.ClassOperationalIssue: {
			domain.SeverityLow:      {domain.DestOpsDesk, 4},
			domain.SeverityMedium:   {domain.DestOpsDesk, 3},
			domain.SeverityHigh:     {domain.DestSeniorOps, 2},
			domain.SeverityCritical: {domain.DestSeniorOps, 1},
		},
		domain.ClassDataQualityIssue: {
			domain.SeverityLow:      {domain.DestOpsDesk, 4},
			domain.SeverityMedium:   {domain.DestOpsDesk, 3},
			domain.SeverityHigh:     {domain.DestSeniorOps, 2},
			domain.SeverityCritical: {domain.DestSeniorOps, 1},
		},
		domain.ClassSystemIssue: {
			domain.SeverityLow:      {domain.DestEngineering, 4},
			domain.SeverityMedium:   {domain.DestEngineering, 3},
			domain.SeverityHigh:     {domain.DestEngineering, 2},
			domain.SeverityCritical: {domain.DestEngineering, 1},
		},
		domain.ClassComplianceIssue: {
			domain.SeverityLow:      {domain.DestCompliance, 3},
			domain.SeverityMedium:   {domain.DestCompliance, 2},
			domain.SeverityHigh:     {domain.DestCompliance, 1},
			domain.SeverityCritical: {domain.DestCompliance, 1},
		},
	}
}

// Validate checks the table covers every (classification, severity) pair.
func (t RuleTable) Validate() error {
	for _, c := range domain.Classifications {
		row, ok := t[c]
		if !ok {
			return fmt.Errorf("rule table missing classification %s", c)
		}
		for _, level := range domain.SeverityLevels {
			rule, ok := row[level]
			if !ok {
				return fmt.Errorf("rule table missing entry for (%s, %s)", c, level)
			}
			if !domain.ValidDestination(rule.Destination) {
				return fmt.Errorf(
					"rule table entry (%s, %s) has unknown destination %q",
					c, level, rule.Destination,
				)
			}
			if rule.Priority < 1 || rule.Priority > 5 {
				return fmt.Errorf(
					"rule table entry (%s, %s) has priority %d outside 1..5",
					c, level, rule.Priority,
				)
			}
		}
	}
	return nil
}

// recommendedActions holds the advisory action templates per classification.
// The list never affects downstream control flow.
var recommendedActions = map[domain.Classification][]string{
	domain.ClassAutoResolvable: {
		"Apply tolerance auto-match and close",
		"Verify the correction posted to the trade ledger",
	},
	domain.ClassOperationalIssue: {
		"Confirm booking details with the counterparty",
		"Check for a pending confirmation in the settlement queue",
	},
	domain.ClassDataQualityIssue: {
		"Compare source and target field values for the trade",
		"Request a corrected feed entry from the source system",
	},
	domain.ClassSystemIssue: {
		"Check feed handler status and recent deploys",
		"Replay the affected feed window once the handler recovers",
	},
	domain.ClassComplianceIssue: {
		"Freeze downstream settlement pending review",
		"Notify the compliance officer on call",
	},
}
