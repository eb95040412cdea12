package models

import "time"

// Severity tags a compliance issue. Only error-severity issues block the
// Validated transition; warnings and infos are surfaced but do not gate.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// PenaltyWeight is the score deduction per issue of this severity.
func (s Severity) PenaltyWeight() int {
	switch s {
	case SeverityError:
		return 15
	case SeverityWarning:
		return 5
	default:
		return 1
	}
}

// ComplianceIssue is one finding from the compliance pass. Issues are never
// persisted independently; they live inside a chart's compliance summary
// and are recomputed on demand.
type ComplianceIssue struct {
	Severity   Severity `json:"severity"`
	RuleCode   string   `json:"rule_code"`
	Message    string   `json:"message"`
	EntityKind string   `json:"entity_kind,omitempty"`
	EntityID   string   `json:"entity_id,omitempty"`
}

// ComplianceSummary is the scored result of one compliance pass.
type ComplianceSummary struct {
	Score       int               `json:"score"`
	Issues      []ComplianceIssue `json:"issues"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}

// ErrorCount returns the number of error-severity issues.
func (s ComplianceSummary) ErrorCount() int {
	n := 0
	for _, issue := range s.Issues {
		if issue.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Blocking reports whether the summary prevents the Validated transition.
func (s ComplianceSummary) Blocking() bool { return s.ErrorCount() > 0 }

// ScoreFromIssues computes 100 minus the weighted penalty of issues,
// floored at zero.
func ScoreFromIssues(issues []ComplianceIssue) int {
	score := 100
	for _, issue := range issues {
		score -= issue.Severity.PenaltyWeight()
	}
	if score < 0 {
		score = 0
	}
	return score
}
