// Package domain holds the typed identifiers and enums shared across the
// chart engine. IDs are uuid wrappers so a ChartID can never be passed where
// an AreaID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "orgchart/pkg/domain-errors"
)

type (
	// OrgID identifies a tenant organization.
	OrgID uuid.UUID
	// ChartID identifies one versioned organizational chart.
	ChartID uuid.UUID
	// AreaID identifies an organizational unit node.
	AreaID uuid.UUID
	// PositionID identifies a job slot within an area.
	PositionID uuid.UUID
	// AssignmentID identifies a person-to-position binding.
	AssignmentID uuid.UUID
	// UserID identifies a person (approver, occupant).
	UserID uuid.UUID
)

func (id OrgID) String() string        { return uuid.UUID(id).String() }
func (id ChartID) String() string      { return uuid.UUID(id).String() }
func (id AreaID) String() string       { return uuid.UUID(id).String() }
func (id PositionID) String() string   { return uuid.UUID(id).String() }
func (id AssignmentID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string       { return uuid.UUID(id).String() }

// IDs serialize as canonical uuid strings. Wrapper types do not inherit the
// underlying uuid methods, so each forwards text marshaling explicitly.

func (id OrgID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id ChartID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id AreaID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id PositionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id AssignmentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *OrgID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ChartID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AreaID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PositionID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AssignmentID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id OrgID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ChartID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AreaID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id PositionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AssignmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// NewOrgID returns a fresh random OrgID.
func NewOrgID() OrgID { return OrgID(uuid.New()) }

// NewChartID returns a fresh random ChartID.
func NewChartID() ChartID { return ChartID(uuid.New()) }

// NewAreaID returns a fresh random AreaID.
func NewAreaID() AreaID { return AreaID(uuid.New()) }

// NewPositionID returns a fresh random PositionID.
func NewPositionID() PositionID { return PositionID(uuid.New()) }

// NewAssignmentID returns a fresh random AssignmentID.
func NewAssignmentID() AssignmentID { return AssignmentID(uuid.New()) }

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

func parseUUID(s, kind string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	return u, nil
}

// ParseOrgID parses s into an OrgID, rejecting malformed input.
func ParseOrgID(s string) (OrgID, error) {
	u, err := parseUUID(s, "organization")
	return OrgID(u), err
}

// ParseChartID parses s into a ChartID, rejecting malformed input.
func ParseChartID(s string) (ChartID, error) {
	u, err := parseUUID(s, "chart")
	return ChartID(u), err
}

// ParseAreaID parses s into an AreaID, rejecting malformed input.
func ParseAreaID(s string) (AreaID, error) {
	u, err := parseUUID(s, "area")
	return AreaID(u), err
}

// ParsePositionID parses s into a PositionID, rejecting malformed input.
func ParsePositionID(s string) (PositionID, error) {
	u, err := parseUUID(s, "position")
	return PositionID(u), err
}

// ParseUserID parses s into a UserID, rejecting malformed input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user")
	return UserID(u), err
}
