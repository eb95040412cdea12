package models

import (
	"time"

	id "orgchart/pkg/domain"
	dErrors "orgchart/pkg/domain-errors"
)

// AssignmentType distinguishes how a person holds a position.
type AssignmentType string

const (
	AssignmentPermanent AssignmentType = "permanent"
	AssignmentActing    AssignmentType = "acting"
	AssignmentTemporary AssignmentType = "temporary"
)

// Assignment binds a user to a position for a time interval. At most one
// assignment per position may be open-ended; a position with no active
// assignment is vacant, which is the default state.
type Assignment struct {
	ID         id.AssignmentID `json:"id"`
	PositionID id.PositionID   `json:"position_id"`
	UserID     id.UserID       `json:"user_id"`
	Type       AssignmentType  `json:"type"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
}

// NewAssignment constructs an Assignment, validating interval ordering.
func NewAssignment(assignmentID id.AssignmentID, positionID id.PositionID, userID id.UserID, typ AssignmentType, start time.Time, end *time.Time) (*Assignment, error) {
	if positionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "assignment requires a position")
	}
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "assignment requires a user")
	}
	if end != nil && end.Before(start) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "assignment end date precedes start date")
	}
	return &Assignment{
		ID:         assignmentID,
		PositionID: positionID,
		UserID:     userID,
		Type:       typ,
		StartDate:  start,
		EndDate:    end,
	}, nil
}

// ActiveAt reports whether the assignment occupies its position at t.
func (a *Assignment) ActiveAt(t time.Time) bool {
	if t.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || t.Before(*a.EndDate)
}
