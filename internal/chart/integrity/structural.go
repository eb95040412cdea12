// Package integrity validates the relational references of a chart before
// tree construction (structural pass) and evaluates sector compliance rules
// against the built tree (compliance pass). Structural failures abort the
// build; compliance findings are data.
package integrity

import (
	"fmt"
	"sort"
	"strings"

	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
)

// Relation names the reference graph a structural error was found in.
type Relation string

const (
	RelationAreaParent   Relation = "area_parent"
	RelationReportsTo    Relation = "reports_to"
	RelationPositionArea Relation = "position_area"
)

// CycleError reports a reference cycle. Path lists the ids along the cycle
// with the entry node repeated at the end, e.g. [P1 P2 P1] for a 2-cycle.
type CycleError struct {
	Relation Relation
	Path     []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle in %s graph: %s", e.Relation, strings.Join(e.Path, " -> "))
}

// OrphanError reports a reference to an id absent from the chart snapshot.
type OrphanError struct {
	Relation Relation
	From     string
	Missing  string
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("%s reference from %s to missing id %s", e.Relation, e.From, e.Missing)
}

// RootError reports a root-count violation: zero roots always fail; more
// than one fails unless the chart allows multiple root areas.
type RootError struct {
	Roots []id.AreaID
}

func (e *RootError) Error() string {
	if len(e.Roots) == 0 {
		return "chart has no root area"
	}
	return fmt.Sprintf("chart has %d root areas, exactly one required", len(e.Roots))
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

// CheckStructure runs the full structural pass over the raw area and
// position collections. It must pass before any metric computation.
func CheckStructure(areas []models.Area, positions []models.Position, cfg Config) error {
	if err := CheckAreas(areas, cfg); err != nil {
		return err
	}
	areaByID := make(map[id.AreaID]models.Area, len(areas))
	for _, a := range areas {
		areaByID[a.ID] = a
	}
	if err := checkPositionAreas(positions, areaByID); err != nil {
		return err
	}
	return CheckPositions(positions)
}

// CheckAreas validates the area collection on its own: root count and the
// parent reference graph. Used when an edit replaces only the areas;
// position-to-area references are re-checked at validation time.
func CheckAreas(areas []models.Area, cfg Config) error {
	areaByID := make(map[id.AreaID]models.Area, len(areas))
	for _, a := range areas {
		areaByID[a.ID] = a
	}

	roots := make([]id.AreaID, 0, 1)
	for _, a := range areas {
		if a.ParentID == nil {
			roots = append(roots, a.ID)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].String() < roots[j].String() })
	if len(roots) == 0 || (len(roots) > 1 && !cfg.AllowMultipleRoots) {
		return &RootError{Roots: roots}
	}

	return checkAreaParents(areas, areaByID)
}

// CheckPositions validates the reports-to graph on its own. Area membership
// is deliberately not checked here: while a draft is being edited the two
// collections may be replaced in either order.
func CheckPositions(positions []models.Position) error {
	positionByID := make(map[id.PositionID]models.Position, len(positions))
	for _, p := range positions {
		positionByID[p.ID] = p
	}
	return checkReportsTo(positions, positionByID)
}

func checkAreaParents(areas []models.Area, areaByID map[id.AreaID]models.Area) error {
	ordered := make([]models.Area, len(areas))
	copy(ordered, areas)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID.String() < ordered[j].ID.String() })

	color := make(map[id.AreaID]int, len(areas))
	for _, start := range ordered {
		if color[start.ID] != colorWhite {
			continue
		}
		// Each node has at most one parent edge, so the gray path from the
		// start node is linear and doubles as the DFS stack.
		path := make([]id.AreaID, 0, 8)
		node := start
		for {
			color[node.ID] = colorGray
			path = append(path, node.ID)

			if node.ParentID == nil {
				break
			}
			parent, ok := areaByID[*node.ParentID]
			if !ok {
				return &OrphanError{
					Relation: RelationAreaParent,
					From:     node.ID.String(),
					Missing:  node.ParentID.String(),
				}
			}
			if color[parent.ID] == colorGray {
				return &CycleError{Relation: RelationAreaParent, Path: areaCyclePath(path, parent.ID)}
			}
			if color[parent.ID] == colorBlack {
				// Joins an already-verified chain.
				break
			}
			node = parent
		}
		for _, visited := range path {
			color[visited] = colorBlack
		}
	}
	return nil
}

func checkPositionAreas(positions []models.Position, areaByID map[id.AreaID]models.Area) error {
	ordered := make([]models.Position, len(positions))
	copy(ordered, positions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID.String() < ordered[j].ID.String() })

	for _, p := range ordered {
		if _, ok := areaByID[p.AreaID]; !ok {
			return &OrphanError{
				Relation: RelationPositionArea,
				From:     p.ID.String(),
				Missing:  p.AreaID.String(),
			}
		}
	}
	return nil
}

func checkReportsTo(positions []models.Position, positionByID map[id.PositionID]models.Position) error {
	ordered := make([]models.Position, len(positions))
	copy(ordered, positions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID.String() < ordered[j].ID.String() })

	color := make(map[id.PositionID]int, len(positions))
	for _, start := range ordered {
		if color[start.ID] != colorWhite {
			continue
		}
		path := make([]id.PositionID, 0, 8)
		node := start
		for {
			color[node.ID] = colorGray
			path = append(path, node.ID)

			if node.ReportsTo == nil {
				break
			}
			manager, ok := positionByID[*node.ReportsTo]
			if !ok {
				return &OrphanError{
					Relation: RelationReportsTo,
					From:     node.ID.String(),
					Missing:  node.ReportsTo.String(),
				}
			}
			if color[manager.ID] == colorGray {
				return &CycleError{Relation: RelationReportsTo, Path: positionCyclePath(path, manager.ID)}
			}
			if color[manager.ID] == colorBlack {
				break
			}
			node = manager
		}
		for _, visited := range path {
			color[visited] = colorBlack
		}
	}
	return nil
}

func areaCyclePath(path []id.AreaID, entry id.AreaID) []string {
	out := make([]string, 0, len(path)+1)
	collecting := false
	for _, n := range path {
		if n == entry {
			collecting = true
		}
		if collecting {
			out = append(out, n.String())
		}
	}
	return append(out, entry.String())
}

func positionCyclePath(path []id.PositionID, entry id.PositionID) []string {
	out := make([]string, 0, len(path)+1)
	collecting := false
	for _, n := range path {
		if n == entry {
			collecting = true
		}
		if collecting {
			out = append(out, n.String())
		}
	}
	return append(out, entry.String())
}
