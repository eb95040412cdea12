package models

import (
	"strings"

	id "orgchart/pkg/domain"
	dErrors "orgchart/pkg/domain-errors"
)

// Area is an organizational unit node. Parent links form the unit tree;
// they are ids rather than pointers so the acyclicity check is a plain
// graph traversal over explicit edges.
type Area struct {
	ID       id.AreaID  `json:"id"`
	ChartID  id.ChartID `json:"chart_id"`
	Name     string     `json:"name"`
	ParentID *id.AreaID `json:"parent_id,omitempty"`
	Type     string     `json:"type,omitempty"`
}

// NewArea constructs an Area, validating local invariants. Referential
// integrity (parent exists, no cycles) is the integrity package's job.
func NewArea(areaID id.AreaID, chartID id.ChartID, name string, parentID *id.AreaID, areaType string) (*Area, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "area name cannot be empty")
	}
	if parentID != nil && *parentID == areaID {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "area cannot be its own parent")
	}
	return &Area{ID: areaID, ChartID: chartID, Name: name, ParentID: parentID, Type: areaType}, nil
}

// HierarchyLevel is the coarse rank of a position. Lower Rank() outranks
// higher: an executive outranks a director.
type HierarchyLevel string

const (
	LevelExecutive  HierarchyLevel = "executive"
	LevelDirector   HierarchyLevel = "director"
	LevelManager    HierarchyLevel = "manager"
	LevelSpecialist HierarchyLevel = "specialist"
	LevelOperative  HierarchyLevel = "operative"
)

var levelRank = map[HierarchyLevel]int{
	LevelExecutive:  1,
	LevelDirector:   2,
	LevelManager:    3,
	LevelSpecialist: 4,
	LevelOperative:  5,
}

// Rank returns the numeric rank of the level; unknown levels sort last.
func (l HierarchyLevel) Rank() int {
	if r, ok := levelRank[l]; ok {
		return r
	}
	return len(levelRank) + 1
}

// Outranks reports whether l is strictly higher in the hierarchy than other.
func (l HierarchyLevel) Outranks(other HierarchyLevel) bool {
	return l.Rank() < other.Rank()
}

// ParseHierarchyLevel validates a stored level value.
func ParseHierarchyLevel(v string) (HierarchyLevel, error) {
	l := HierarchyLevel(v)
	if _, ok := levelRank[l]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown hierarchy level: "+v)
	}
	return l, nil
}

// Position is a job slot attached to exactly one Area. ReportsTo may cross
// areas; the reports-to graph per chart must stay acyclic.
type Position struct {
	ID           id.PositionID  `json:"id"`
	ChartID      id.ChartID     `json:"chart_id"`
	AreaID       id.AreaID      `json:"area_id"`
	Code         string         `json:"code"`
	Level        HierarchyLevel `json:"level"`
	ReportsTo    *id.PositionID `json:"reports_to,omitempty"`
	Critical     bool           `json:"critical"`
	Headcount    int            `json:"headcount"`
	ProcessOwner bool           `json:"is_process_owner"`
	Management   bool           `json:"is_management"`
	Temporary    bool           `json:"is_temporary"`
}

// NewPosition constructs a Position, validating local invariants.
func NewPosition(positionID id.PositionID, chartID id.ChartID, areaID id.AreaID, code string, level HierarchyLevel, reportsTo *id.PositionID) (*Position, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "position code cannot be empty")
	}
	if areaID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "position requires an area")
	}
	if reportsTo != nil && *reportsTo == positionID {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "position cannot report to itself")
	}
	if _, ok := levelRank[level]; !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown hierarchy level: "+string(level))
	}
	return &Position{
		ID:        positionID,
		ChartID:   chartID,
		AreaID:    areaID,
		Code:      code,
		Level:     level,
		ReportsTo: reportsTo,
		Headcount: 1,
	}, nil
}
