package handler

import (
	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
	dErrors "orgchart/pkg/domain-errors"
)

// newVersionRequest creates a draft. Sector is only consulted for an
// organization's first chart; later versions inherit the lineage sector.
type newVersionRequest struct {
	Sector string `json:"sector,omitempty"`
}

type revisionRequest struct {
	Revision int64 `json:"revision"`
}

// validateResponse reports a passing validation run. Non-blocking findings
// ride along with the score; the chart carries the revision callers need for
// a subsequent approve.
type validateResponse struct {
	OK     bool                     `json:"ok"`
	Score  int                      `json:"score"`
	Issues []models.ComplianceIssue `json:"issues"`
	Chart  *models.Chart            `json:"chart"`
}

type areaPayload struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	Type     string  `json:"type,omitempty"`
}

type replaceAreasRequest struct {
	Revision int64         `json:"revision"`
	Areas    []areaPayload `json:"areas"`
}

type positionPayload struct {
	ID           string  `json:"id,omitempty"`
	AreaID       string  `json:"area_id"`
	Code         string  `json:"code"`
	Level        string  `json:"level"`
	ReportsTo    *string `json:"reports_to,omitempty"`
	Critical     bool    `json:"critical,omitempty"`
	Headcount    int     `json:"headcount,omitempty"`
	ProcessOwner bool    `json:"is_process_owner,omitempty"`
	Management   bool    `json:"is_management,omitempty"`
	Temporary    bool    `json:"is_temporary,omitempty"`
}

type replacePositionsRequest struct {
	Revision  int64             `json:"revision"`
	Positions []positionPayload `json:"positions"`
}

func (r replaceAreasRequest) toModels(chartID id.ChartID) ([]models.Area, error) {
	areas := make([]models.Area, 0, len(r.Areas))
	for _, p := range r.Areas {
		areaID, err := optionalAreaID(p.ID)
		if err != nil {
			return nil, err
		}
		var parentID *id.AreaID
		if p.ParentID != nil {
			parsed, err := id.ParseAreaID(*p.ParentID)
			if err != nil {
				return nil, err
			}
			parentID = &parsed
		}
		area, err := models.NewArea(areaID, chartID, p.Name, parentID, p.Type)
		if err != nil {
			return nil, toValidation(err)
		}
		areas = append(areas, *area)
	}
	return areas, nil
}

func (r replacePositionsRequest) toModels(chartID id.ChartID) ([]models.Position, error) {
	positions := make([]models.Position, 0, len(r.Positions))
	for _, p := range r.Positions {
		positionID, err := optionalPositionID(p.ID)
		if err != nil {
			return nil, err
		}
		areaID, err := id.ParseAreaID(p.AreaID)
		if err != nil {
			return nil, err
		}
		var reportsTo *id.PositionID
		if p.ReportsTo != nil {
			parsed, err := id.ParsePositionID(*p.ReportsTo)
			if err != nil {
				return nil, err
			}
			reportsTo = &parsed
		}
		position, err := models.NewPosition(positionID, chartID, areaID, p.Code, models.HierarchyLevel(p.Level), reportsTo)
		if err != nil {
			return nil, toValidation(err)
		}
		position.Critical = p.Critical
		position.ProcessOwner = p.ProcessOwner
		position.Management = p.Management
		position.Temporary = p.Temporary
		if p.Headcount > 0 {
			position.Headcount = p.Headcount
		}
		positions = append(positions, *position)
	}
	return positions, nil
}

func optionalAreaID(raw string) (id.AreaID, error) {
	if raw == "" {
		return id.NewAreaID(), nil
	}
	return id.ParseAreaID(raw)
}

func optionalPositionID(raw string) (id.PositionID, error) {
	if raw == "" {
		return id.NewPositionID(), nil
	}
	return id.ParsePositionID(raw)
}

// toValidation downgrades constructor invariant violations to validation
// errors: bad client input, not a broken internal invariant.
func toValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}
