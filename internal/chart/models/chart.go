package models

import (
	"time"

	id "orgchart/pkg/domain"
	dErrors "orgchart/pkg/domain-errors"
)

// ChartState is the lifecycle state of one chart version.
type ChartState string

const (
	StateDraft      ChartState = "draft"
	StateValidated  ChartState = "validated"
	StateApproved   ChartState = "approved"
	StateSuperseded ChartState = "superseded"
)

// transitions encodes the one-directional lifecycle. Draft is re-entrant
// from Validated because structural edits invalidate prior validation.
var transitions = map[ChartState][]ChartState{
	StateDraft:      {StateValidated},
	StateValidated:  {StateApproved, StateDraft},
	StateApproved:   {StateSuperseded},
	StateSuperseded: {},
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s ChartState) CanTransitionTo(next ChartState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s ChartState) String() string { return string(s) }

// ParseChartState validates a stored state value.
func ParseChartState(v string) (ChartState, error) {
	switch ChartState(v) {
	case StateDraft, StateValidated, StateApproved, StateSuperseded:
		return ChartState(v), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown chart state: "+v)
}

// Chart is the aggregate root for one versioned organizational structure.
//
// Invariants:
//   - Version is monotonic per organization
//   - At most one chart per organization has IsCurrent = true
//   - Revision increments on every write; writers must present the revision
//     they read (optimistic concurrency)
//   - Structure (areas/positions) is mutable only while State is Draft
//   - Compliance is recomputed on demand, never edited directly
type Chart struct {
	ID         id.ChartID         `json:"id"`
	OrgID      id.OrgID           `json:"organization_id"`
	Sector     id.Sector          `json:"sector"`
	Version    int                `json:"version"`
	State      ChartState         `json:"state"`
	IsCurrent  bool               `json:"is_current"`
	Revision   int64              `json:"revision"`
	Compliance *ComplianceSummary `json:"compliance,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	ApprovedAt *time.Time         `json:"approved_at,omitempty"`
	ApprovedBy *id.UserID         `json:"approved_by,omitempty"`
}

// CurrentRef pins the organization's current chart as the approver observed
// it (nil observation means no chart was current). The approve flip is
// rejected when the stored current no longer matches, so two concurrent
// approvals for one organization can never both succeed.
type CurrentRef struct {
	ChartID  id.ChartID
	Revision int64
}

// NewChart constructs a Draft chart at the given version.
func NewChart(chartID id.ChartID, orgID id.OrgID, sector id.Sector, version int, now time.Time) (*Chart, error) {
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "chart requires an organization")
	}
	if version < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "chart version must be positive")
	}
	return &Chart{
		ID:        chartID,
		OrgID:     orgID,
		Sector:    sector,
		Version:   version,
		State:     StateDraft,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Editable reports whether structure mutations are currently permitted.
// Validated counts: the edit itself drops the chart back to Draft.
func (c *Chart) Editable() bool {
	return c.State == StateDraft || c.State == StateValidated
}

// CanValidate checks the Draft→Validated transition.
func (c *Chart) CanValidate() error {
	if c.State != StateDraft {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"only draft charts can be validated, chart is "+c.State.String())
	}
	return nil
}

// ApplyValidated records a passing validation.
func (c *Chart) ApplyValidated(summary ComplianceSummary, now time.Time) {
	c.State = StateValidated
	c.Compliance = &summary
	c.UpdatedAt = now
}

// ApplyComplianceSummary stores the latest compliance recomputation without
// changing state (used when validation finds blocking errors).
func (c *Chart) ApplyComplianceSummary(summary ComplianceSummary, now time.Time) {
	c.Compliance = &summary
	c.UpdatedAt = now
}

// CanApprove checks the Validated→Approved transition.
func (c *Chart) CanApprove() error {
	if c.State != StateValidated {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"only validated charts can be approved, chart is "+c.State.String())
	}
	return nil
}

// ApplyApproved stamps approver and timestamp and marks the chart current.
func (c *Chart) ApplyApproved(approver id.UserID, now time.Time) {
	c.State = StateApproved
	c.IsCurrent = true
	c.ApprovedBy = &approver
	c.ApprovedAt = &now
	c.UpdatedAt = now
}

// ApplySuperseded demotes a previously current chart.
func (c *Chart) ApplySuperseded(now time.Time) {
	c.State = StateSuperseded
	c.IsCurrent = false
	c.UpdatedAt = now
}

// ApplyEdited drops a Validated chart back to Draft. Prior validation no
// longer describes the structure, so the summary is cleared.
func (c *Chart) ApplyEdited(now time.Time) {
	c.State = StateDraft
	c.Compliance = nil
	c.UpdatedAt = now
}
