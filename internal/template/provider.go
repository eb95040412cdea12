// Package template seeds new draft charts with a sector starting structure,
// so an organization's first draft is not an empty canvas. Seeds are plain
// data; every instantiation mints fresh ids bound to the target chart.
package template

import (
	"context"

	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
)

type seedArea struct {
	key       string
	name      string
	parentKey string
	areaType  string
}

type seedPosition struct {
	code         string
	areaKey      string
	level        models.HierarchyLevel
	reportsTo    string
	critical     bool
	processOwner bool
	management   bool
}

type seed struct {
	areas     []seedArea
	positions []seedPosition
}

var sectorSeeds = map[id.Sector]seed{
	id.SectorHealth: {
		areas: []seedArea{
			{key: "direction", name: "General Direction", areaType: "management"},
			{key: "clinical", name: "Clinical Services", parentKey: "direction", areaType: "operational"},
			{key: "quality", name: "Quality Management", parentKey: "direction", areaType: "support"},
		},
		positions: []seedPosition{
			{code: "DIR-001", areaKey: "direction", level: models.LevelExecutive, management: true},
			{code: "MED-001", areaKey: "clinical", level: models.LevelDirector, reportsTo: "DIR-001", critical: true, management: true},
			{code: "QUA-001", areaKey: "quality", level: models.LevelManager, reportsTo: "DIR-001", processOwner: true, management: true},
			{code: "NUR-001", areaKey: "clinical", level: models.LevelSpecialist, reportsTo: "MED-001"},
		},
	},
	id.SectorGeneric: {
		areas: []seedArea{
			{key: "direction", name: "Direction", areaType: "management"},
			{key: "operations", name: "Operations", parentKey: "direction", areaType: "operational"},
		},
		positions: []seedPosition{
			{code: "DIR-001", areaKey: "direction", level: models.LevelExecutive, management: true},
			{code: "OPS-001", areaKey: "operations", level: models.LevelManager, reportsTo: "DIR-001", management: true},
		},
	},
}

// Static serves the built-in sector seeds.
type Static struct{}

// NewStatic constructs the built-in provider.
func NewStatic() *Static {
	return &Static{}
}

// Bootstrap instantiates the sector's seed structure for the given chart.
// Sectors without a seed fall back to the generic one; both result sets come
// back empty only if the generic seed is ever removed.
func (p *Static) Bootstrap(_ context.Context, chartID id.ChartID, sector id.Sector) ([]models.Area, []models.Position, error) {
	s, ok := sectorSeeds[sector]
	if !ok {
		s = sectorSeeds[id.SectorGeneric]
	}

	areaIDs := make(map[string]id.AreaID, len(s.areas))
	areas := make([]models.Area, 0, len(s.areas))
	for _, sa := range s.areas {
		areaIDs[sa.key] = id.NewAreaID()
	}
	for _, sa := range s.areas {
		var parent *id.AreaID
		if sa.parentKey != "" {
			p := areaIDs[sa.parentKey]
			parent = &p
		}
		area, err := models.NewArea(areaIDs[sa.key], chartID, sa.name, parent, sa.areaType)
		if err != nil {
			return nil, nil, err
		}
		areas = append(areas, *area)
	}

	positionIDs := make(map[string]id.PositionID, len(s.positions))
	for _, sp := range s.positions {
		positionIDs[sp.code] = id.NewPositionID()
	}
	positions := make([]models.Position, 0, len(s.positions))
	for _, sp := range s.positions {
		var reportsTo *id.PositionID
		if sp.reportsTo != "" {
			r := positionIDs[sp.reportsTo]
			reportsTo = &r
		}
		position, err := models.NewPosition(positionIDs[sp.code], chartID, areaIDs[sp.areaKey], sp.code, sp.level, reportsTo)
		if err != nil {
			return nil, nil, err
		}
		position.Critical = sp.critical
		position.ProcessOwner = sp.processOwner
		position.Management = sp.management
		positions = append(positions, *position)
	}
	return areas, positions, nil
}
