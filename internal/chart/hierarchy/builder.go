// Package hierarchy assembles a structurally-valid flat area/position
// snapshot into an in-memory tree with derived metrics. Build is a pure
// function over its inputs: the same snapshot always yields the same tree,
// with no dependence on input ordering.
package hierarchy

import (
	"fmt"
	"sort"

	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
)

// AreaNode is one organizational unit with its computed placement.
type AreaNode struct {
	ID            id.AreaID  `json:"id"`
	ParentID      *id.AreaID `json:"parent_id,omitempty"`
	Name          string     `json:"name"`
	Type          string     `json:"type,omitempty"`
	Depth         int        `json:"depth"`
	Path          []string   `json:"path"`
	PositionCount int        `json:"position_count"`
}

// PositionNode is one job slot with its computed placement and occupancy.
type PositionNode struct {
	ID            id.PositionID         `json:"id"`
	AreaID        id.AreaID             `json:"area_id"`
	ReportsTo     *id.PositionID        `json:"reports_to,omitempty"`
	Code          string                `json:"code"`
	Level         models.HierarchyLevel `json:"level"`
	Depth         int                   `json:"depth"`
	Path          []string              `json:"path"`
	DirectReports int                   `json:"direct_reports"`
	Vacant        bool                  `json:"vacant"`
	Critical      bool                  `json:"critical"`
	Management    bool                  `json:"management"`
	Temporary     bool                  `json:"temporary"`
	ProcessOwner  bool                  `json:"process_owner"`
	Headcount     int                   `json:"headcount"`
}

// Metrics are the per-chart aggregates computed once per build.
type Metrics struct {
	TotalPositions     int     `json:"total_positions"`
	VacantPositions    int     `json:"vacant_positions"`
	VacancyRatePercent float64 `json:"vacancy_rate_percent"`
	MaxDepth           int     `json:"max_depth"`
	MaxAreaDepth       int     `json:"max_area_depth"`
}

// Tree is the built hierarchy. Areas are sorted by (depth, name), positions
// by (depth, code); ties fall back to id so output is fully deterministic.
type Tree struct {
	RootAreaID id.AreaID      `json:"root_area_id"`
	Areas      []AreaNode     `json:"areas"`
	Positions  []PositionNode `json:"positions"`
	Metrics    Metrics        `json:"metrics"`
}

// Build constructs the tree. Inputs must already have passed the structural
// pass; a dangling reference here means the caller skipped it and is
// reported as a plain error rather than silently dropping nodes.
// occupied holds the position ids that have an active assignment.
func Build(areas []models.Area, positions []models.Position, occupied map[id.PositionID]bool) (*Tree, error) {
	areaNodes, rootAreaID, maxAreaDepth, err := buildAreas(areas)
	if err != nil {
		return nil, err
	}

	positionNodes, maxDepth, vacant, err := buildPositions(positions, occupied)
	if err != nil {
		return nil, err
	}

	counts := make(map[id.AreaID]int, len(areaNodes))
	for _, p := range positions {
		counts[p.AreaID]++
	}
	for i := range areaNodes {
		areaNodes[i].PositionCount = counts[areaNodes[i].ID]
	}

	total := len(positions)
	rate := 0.0
	if total > 0 {
		rate = float64(vacant) / float64(total) * 100
	}

	return &Tree{
		RootAreaID: rootAreaID,
		Areas:      areaNodes,
		Positions:  positionNodes,
		Metrics: Metrics{
			TotalPositions:     total,
			VacantPositions:    vacant,
			VacancyRatePercent: rate,
			MaxDepth:           maxDepth,
			MaxAreaDepth:       maxAreaDepth,
		},
	}, nil
}

func buildAreas(areas []models.Area) ([]AreaNode, id.AreaID, int, error) {
	byID := make(map[id.AreaID]models.Area, len(areas))
	children := make(map[id.AreaID][]id.AreaID, len(areas))
	roots := make([]id.AreaID, 0, 1)
	for _, a := range areas {
		byID[a.ID] = a
		if a.ParentID == nil {
			roots = append(roots, a.ID)
			continue
		}
		children[*a.ParentID] = append(children[*a.ParentID], a.ID)
	}
	if len(roots) == 0 && len(areas) > 0 {
		return nil, id.AreaID{}, 0, fmt.Errorf("build areas: no root area")
	}
	sortAreaIDs(roots, byID)
	for _, kids := range children {
		sortAreaIDs(kids, byID)
	}

	// Breadth-first from the roots guarantees termination and gives each
	// node depth = parent depth + 1 without recursion.
	depth := make(map[id.AreaID]int, len(areas))
	queue := append([]id.AreaID(nil), roots...)
	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, child := range children[current] {
			depth[child] = depth[current] + 1
			queue = append(queue, child)
		}
	}
	if visited != len(areas) {
		return nil, id.AreaID{}, 0, fmt.Errorf("build areas: %d of %d areas unreachable from root", len(areas)-visited, len(areas))
	}

	nodes := make([]AreaNode, 0, len(areas))
	maxDepth := 0
	for _, a := range areas {
		d := depth[a.ID]
		if d > maxDepth {
			maxDepth = d
		}
		nodes = append(nodes, AreaNode{
			ID:       a.ID,
			ParentID: a.ParentID,
			Name:     a.Name,
			Type:     a.Type,
			Depth:    d,
			Path:     areaPath(a, byID),
		})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].ID.String() < nodes[j].ID.String()
	})

	rootID := id.AreaID{}
	if len(roots) > 0 {
		rootID = roots[0]
	}
	return nodes, rootID, maxDepth, nil
}

// areaPath walks parent links root-ward collecting ancestor names, then
// reverses so the root comes first. The node itself is excluded.
func areaPath(a models.Area, byID map[id.AreaID]models.Area) []string {
	path := make([]string, 0, 4)
	for cursor := a.ParentID; cursor != nil; {
		parent := byID[*cursor]
		path = append(path, parent.Name)
		cursor = parent.ParentID
	}
	reverse(path)
	return path
}

func buildPositions(positions []models.Position, occupied map[id.PositionID]bool) ([]PositionNode, int, int, error) {
	byID := make(map[id.PositionID]models.Position, len(positions))
	reports := make(map[id.PositionID][]id.PositionID, len(positions))
	roots := make([]id.PositionID, 0, 1)
	for _, p := range positions {
		byID[p.ID] = p
		if p.ReportsTo == nil {
			roots = append(roots, p.ID)
			continue
		}
		reports[*p.ReportsTo] = append(reports[*p.ReportsTo], p.ID)
	}
	if len(roots) == 0 && len(positions) > 0 {
		return nil, 0, 0, fmt.Errorf("build positions: every position reports to another")
	}
	sortPositionIDs(roots, byID)
	for _, kids := range reports {
		sortPositionIDs(kids, byID)
	}

	depth := make(map[id.PositionID]int, len(positions))
	queue := append([]id.PositionID(nil), roots...)
	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, report := range reports[current] {
			depth[report] = depth[current] + 1
			queue = append(queue, report)
		}
	}
	if visited != len(positions) {
		return nil, 0, 0, fmt.Errorf("build positions: %d of %d positions unreachable from roots", len(positions)-visited, len(positions))
	}

	nodes := make([]PositionNode, 0, len(positions))
	maxDepth := 0
	vacant := 0
	for _, p := range positions {
		d := depth[p.ID]
		if d > maxDepth {
			maxDepth = d
		}
		isVacant := !occupied[p.ID]
		if isVacant {
			vacant++
		}
		nodes = append(nodes, PositionNode{
			ID:            p.ID,
			AreaID:        p.AreaID,
			ReportsTo:     p.ReportsTo,
			Code:          p.Code,
			Level:         p.Level,
			Depth:         d,
			Path:          positionPath(p, byID),
			DirectReports: len(reports[p.ID]),
			Vacant:        isVacant,
			Critical:      p.Critical,
			Management:    p.Management,
			Temporary:     p.Temporary,
			ProcessOwner:  p.ProcessOwner,
			Headcount:     p.Headcount,
		})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		if nodes[i].Code != nodes[j].Code {
			return nodes[i].Code < nodes[j].Code
		}
		return nodes[i].ID.String() < nodes[j].ID.String()
	})
	return nodes, maxDepth, vacant, nil
}

func positionPath(p models.Position, byID map[id.PositionID]models.Position) []string {
	path := make([]string, 0, 4)
	for cursor := p.ReportsTo; cursor != nil; {
		manager := byID[*cursor]
		path = append(path, manager.Code)
		cursor = manager.ReportsTo
	}
	reverse(path)
	return path
}

func sortAreaIDs(ids []id.AreaID, byID map[id.AreaID]models.Area) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := byID[ids[i]], byID[ids[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.String() < b.ID.String()
	})
}

func sortPositionIDs(ids []id.PositionID, byID map[id.PositionID]models.Position) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := byID[ids[i]], byID[ids[j]]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ID.String() < b.ID.String()
	})
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
