package domain

// Classification is the triage category assigned to an exception.
type Classification string

const (
	ClassAutoResolvable   Classification = "AUTO_RESOLVABLE"
	ClassOperationalIssue Classification = "OPERATIONAL_ISSUE"
	ClassDataQualityIssue Classification = "DATA_QUALITY_ISSUE"
	ClassSystemIssue      Classification = "SYSTEM_ISSUE"
	ClassComplianceIssue  Classification = "COMPLIANCE_ISSUE"
)

// Classifications lists every category, in priority-table order.
var Classifications = []Classification{
	ClassAutoResolvable,
	ClassOperationalIssue,
	ClassDataQualityIssue,
	ClassSystemIssue,
	ClassComplianceIssue,
}
