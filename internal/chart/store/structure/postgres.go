package structure

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
	"orgchart/pkg/platform/sentinel"
)

// Postgres persists areas and positions. Replace operations delete and
// re-insert the chart's rows in one transaction; a Draft-only guard
// mirrors the in-memory contract.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed structure store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) GetAreas(ctx context.Context, chartID id.ChartID) ([]models.Area, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chart_id, name, parent_id, type
		FROM areas WHERE chart_id = $1
		ORDER BY name, id`, uuid.UUID(chartID))
	if err != nil {
		return nil, fmt.Errorf("get areas: %w", err)
	}
	defer rows.Close()

	areas := make([]models.Area, 0)
	for rows.Next() {
		var (
			area     models.Area
			areaID   uuid.UUID
			cID      uuid.UUID
			parentID uuid.NullUUID
		)
		if err := rows.Scan(&areaID, &cID, &area.Name, &parentID, &area.Type); err != nil {
			return nil, fmt.Errorf("scan area: %w", err)
		}
		area.ID = id.AreaID(areaID)
		area.ChartID = id.ChartID(cID)
		if parentID.Valid {
			p := id.AreaID(parentID.UUID)
			area.ParentID = &p
		}
		areas = append(areas, area)
	}
	return areas, rows.Err()
}

func (s *Postgres) GetPositions(ctx context.Context, chartID id.ChartID) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chart_id, area_id, code, level, reports_to, critical, headcount,
		       is_process_owner, is_management, is_temporary
		FROM positions WHERE chart_id = $1
		ORDER BY code, id`, uuid.UUID(chartID))
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	defer rows.Close()

	positions := make([]models.Position, 0)
	for rows.Next() {
		var (
			position  models.Position
			posID     uuid.UUID
			cID       uuid.UUID
			areaID    uuid.UUID
			level     string
			reportsTo uuid.NullUUID
		)
		if err := rows.Scan(&posID, &cID, &areaID, &position.Code, &level, &reportsTo,
			&position.Critical, &position.Headcount, &position.ProcessOwner,
			&position.Management, &position.Temporary); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		position.ID = id.PositionID(posID)
		position.ChartID = id.ChartID(cID)
		position.AreaID = id.AreaID(areaID)
		position.Level = models.HierarchyLevel(level)
		if reportsTo.Valid {
			r := id.PositionID(reportsTo.UUID)
			position.ReportsTo = &r
		}
		positions = append(positions, position)
	}
	return positions, rows.Err()
}

func (s *Postgres) ReplaceAreas(ctx context.Context, chart *models.Chart, areas []models.Area) error {
	if chart.State != models.StateDraft {
		return sentinel.ErrImmutable
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM areas WHERE chart_id = $1`, uuid.UUID(chart.ID)); err != nil {
			return fmt.Errorf("clear areas: %w", err)
		}
		for _, area := range areas {
			var parentID uuid.NullUUID
			if area.ParentID != nil {
				parentID = uuid.NullUUID{UUID: uuid.UUID(*area.ParentID), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO areas (id, chart_id, name, parent_id, type)
				VALUES ($1, $2, $3, $4, $5)`,
				uuid.UUID(area.ID), uuid.UUID(chart.ID), area.Name, parentID, area.Type); err != nil {
				return fmt.Errorf("insert area: %w", err)
			}
		}
		return nil
	})
}

func (s *Postgres) ReplacePositions(ctx context.Context, chart *models.Chart, positions []models.Position) error {
	if chart.State != models.StateDraft {
		return sentinel.ErrImmutable
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE chart_id = $1`, uuid.UUID(chart.ID)); err != nil {
			return fmt.Errorf("clear positions: %w", err)
		}
		for _, position := range positions {
			var reportsTo uuid.NullUUID
			if position.ReportsTo != nil {
				reportsTo = uuid.NullUUID{UUID: uuid.UUID(*position.ReportsTo), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO positions (id, chart_id, area_id, code, level, reports_to,
					critical, headcount, is_process_owner, is_management, is_temporary)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				uuid.UUID(position.ID), uuid.UUID(chart.ID), uuid.UUID(position.AreaID),
				position.Code, string(position.Level), reportsTo, position.Critical,
				position.Headcount, position.ProcessOwner, position.Management,
				position.Temporary); err != nil {
				return fmt.Errorf("insert position: %w", err)
			}
		}
		return nil
	})
}

func (s *Postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
