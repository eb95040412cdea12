//go:build integration

package structure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"orgchart/internal/chart/models"
	chartstore "orgchart/internal/chart/store/chart"
	id "orgchart/pkg/domain"
	"orgchart/pkg/platform/sentinel"
	"orgchart/pkg/testutil/containers"
)

type PostgresStructureSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	store  *Postgres
	charts *chartstore.Postgres
	ctx    context.Context
	now    time.Time
	chart  *models.Chart
}

func (s *PostgresStructureSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.charts = chartstore.NewPostgres(s.pg.DB)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStructureSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))

	chart, err := models.NewChart(id.NewChartID(), id.NewOrgID(), id.SectorHealth, 1, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.charts.Create(s.ctx, chart))
	s.chart = chart
}

func TestPostgresStructureSuite(t *testing.T) {
	suite.Run(t, new(PostgresStructureSuite))
}

func (s *PostgresStructureSuite) TestReplaceAndGetAreas() {
	root := models.Area{ID: id.NewAreaID(), ChartID: s.chart.ID, Name: "Direction", Type: "management"}
	child := models.Area{ID: id.NewAreaID(), ChartID: s.chart.ID, Name: "Clinical", ParentID: &root.ID, Type: "operational"}
	s.Require().NoError(s.store.ReplaceAreas(s.ctx, s.chart, []models.Area{root, child}))

	areas, err := s.store.GetAreas(s.ctx, s.chart.ID)
	s.Require().NoError(err)
	s.Require().Len(areas, 2)
	s.Equal("Clinical", areas[0].Name, "ordered by name")
	s.Require().NotNil(areas[0].ParentID)
	s.Equal(root.ID, *areas[0].ParentID)
	s.Nil(areas[1].ParentID)
}

func (s *PostgresStructureSuite) TestReplaceAndGetPositions() {
	area := models.Area{ID: id.NewAreaID(), ChartID: s.chart.ID, Name: "Direction"}
	s.Require().NoError(s.store.ReplaceAreas(s.ctx, s.chart, []models.Area{area}))

	boss := models.Position{
		ID: id.NewPositionID(), ChartID: s.chart.ID, AreaID: area.ID,
		Code: "DIR-001", Level: models.LevelExecutive, Management: true, Headcount: 1,
	}
	report := models.Position{
		ID: id.NewPositionID(), ChartID: s.chart.ID, AreaID: area.ID,
		Code: "ADM-001", Level: models.LevelSpecialist, ReportsTo: &boss.ID,
		Critical: true, ProcessOwner: true, Headcount: 2,
	}
	s.Require().NoError(s.store.ReplacePositions(s.ctx, s.chart, []models.Position{boss, report}))

	positions, err := s.store.GetPositions(s.ctx, s.chart.ID)
	s.Require().NoError(err)
	s.Require().Len(positions, 2)
	s.Equal("ADM-001", positions[0].Code, "ordered by code")
	s.Require().NotNil(positions[0].ReportsTo)
	s.Equal(boss.ID, *positions[0].ReportsTo)
	s.True(positions[0].Critical)
	s.True(positions[0].ProcessOwner)
	s.Equal(2, positions[0].Headcount)
	s.Equal(models.LevelExecutive, positions[1].Level)
}

func (s *PostgresStructureSuite) TestReplaceIsFullSwap() {
	first := models.Area{ID: id.NewAreaID(), ChartID: s.chart.ID, Name: "First"}
	s.Require().NoError(s.store.ReplaceAreas(s.ctx, s.chart, []models.Area{first}))

	second := models.Area{ID: id.NewAreaID(), ChartID: s.chart.ID, Name: "Second"}
	s.Require().NoError(s.store.ReplaceAreas(s.ctx, s.chart, []models.Area{second}))

	areas, err := s.store.GetAreas(s.ctx, s.chart.ID)
	s.Require().NoError(err)
	s.Require().Len(areas, 1)
	s.Equal(second.ID, areas[0].ID)
}

func (s *PostgresStructureSuite) TestImmutableOutsideDraft() {
	area := models.Area{ID: id.NewAreaID(), ChartID: s.chart.ID, Name: "Kept"}
	s.Require().NoError(s.store.ReplaceAreas(s.ctx, s.chart, []models.Area{area}))

	s.chart.ApplyValidated(models.ComplianceSummary{}, s.now)
	s.Require().ErrorIs(s.store.ReplaceAreas(s.ctx, s.chart, nil), sentinel.ErrImmutable)
	s.Require().ErrorIs(s.store.ReplacePositions(s.ctx, s.chart, nil), sentinel.ErrImmutable)

	areas, err := s.store.GetAreas(s.ctx, s.chart.ID)
	s.Require().NoError(err)
	s.Len(areas, 1)
}

func (s *PostgresStructureSuite) TestCascadeDeleteWithChart() {
	area := models.Area{ID: id.NewAreaID(), ChartID: s.chart.ID, Name: "Direction"}
	s.Require().NoError(s.store.ReplaceAreas(s.ctx, s.chart, []models.Area{area}))

	_, err := s.pg.DB.ExecContext(s.ctx, `DELETE FROM charts WHERE id = $1`, s.chart.ID.String())
	s.Require().NoError(err)

	areas, err := s.store.GetAreas(s.ctx, s.chart.ID)
	s.Require().NoError(err)
	s.Empty(areas)
}
