package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"orgchart/internal/audit"
	"orgchart/internal/chart/hierarchy"
	"orgchart/internal/chart/integrity"
	"orgchart/internal/chart/models"
	"orgchart/internal/chart/viz"
	id "orgchart/pkg/domain"
	dErrors "orgchart/pkg/domain-errors"
	"orgchart/pkg/requestcontext"
)

// GetCurrent returns the organization's single current chart.
func (s *Service) GetCurrent(ctx context.Context, orgID id.OrgID) (*models.Chart, error) {
	ctx, span := s.tracer.Start(ctx, "chart.GetCurrent")
	defer span.End()

	chart, err := s.charts.FindCurrentByOrg(ctx, orgID)
	if err != nil {
		return nil, translateStoreErr(err, "current chart")
	}
	return chart, nil
}

// GetChart returns one chart version by id.
func (s *Service) GetChart(ctx context.Context, chartID id.ChartID) (*models.Chart, error) {
	chart, err := s.charts.FindByID(ctx, chartID)
	if err != nil {
		return nil, translateStoreErr(err, "chart")
	}
	return chart, nil
}

// GetStructure returns a chart's areas and positions, fetched concurrently.
func (s *Service) GetStructure(ctx context.Context, chartID id.ChartID) ([]models.Area, []models.Position, error) {
	if _, err := s.charts.FindByID(ctx, chartID); err != nil {
		return nil, nil, translateStoreErr(err, "chart")
	}
	return s.loadSnapshot(ctx, chartID)
}

// CreateNewVersion opens a new Draft for the organization. With a current
// chart the structure is cloned under fresh ids; without one, the first
// version is seeded from the sector template when a provider is configured,
// else starts empty.
func (s *Service) CreateNewVersion(ctx context.Context, orgID id.OrgID, sector id.Sector) (*models.Chart, error) {
	ctx, span := s.tracer.Start(ctx, "chart.CreateNewVersion")
	defer span.End()

	now := requestcontext.Now(ctx)

	current, err := s.charts.FindCurrentByOrg(ctx, orgID)
	if err != nil && !dErrors.HasCode(translateStoreErr(err, "current chart"), dErrors.CodeNotFound) {
		return nil, translateStoreErr(err, "current chart")
	}
	if current != nil {
		// The new draft continues the lineage; the caller's sector hint is
		// ignored in favor of the org's established sector.
		sector = current.Sector
	}

	version, err := s.charts.NextVersion(ctx, orgID)
	if err != nil {
		return nil, translateStoreErr(err, "chart version")
	}

	chart, err := models.NewChart(id.NewChartID(), orgID, sector, version, now)
	if err != nil {
		return nil, err
	}
	if err := s.charts.Create(ctx, chart); err != nil {
		return nil, translateStoreErr(err, "chart")
	}

	var areas []models.Area
	var positions []models.Position
	switch {
	case current != nil:
		sourceAreas, sourcePositions, err := s.loadSnapshot(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		areas, positions = cloneStructure(chart.ID, sourceAreas, sourcePositions)
	case s.templates != nil:
		areas, positions, err = s.templates.Bootstrap(ctx, chart.ID, sector)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed chart from template")
		}
	}
	if len(areas) > 0 {
		if err := s.structures.ReplaceAreas(ctx, chart, areas); err != nil {
			return nil, translateStoreErr(err, "chart structure")
		}
	}
	if len(positions) > 0 {
		if err := s.structures.ReplacePositions(ctx, chart, positions); err != nil {
			return nil, translateStoreErr(err, "chart structure")
		}
	}

	s.emitAudit(ctx, audit.EventChartCreated, chart, nil)
	if s.metrics != nil {
		s.metrics.ChartsCreated.Inc()
	}
	return chart, nil
}

// ReplaceAreas swaps a draft chart's full area set. A Validated chart drops
// back to Draft; the stale compliance summary is cleared.
func (s *Service) ReplaceAreas(ctx context.Context, chartID id.ChartID, expectedRevision int64, areas []models.Area) (*models.Chart, error) {
	ctx, span := s.tracer.Start(ctx, "chart.ReplaceAreas")
	defer span.End()

	for i := range areas {
		areas[i].ChartID = chartID
	}
	if err := integrity.CheckAreas(areas, s.validatorCfg); err != nil {
		return nil, structuralError(err)
	}
	return s.replaceStructure(ctx, chartID, expectedRevision, func(chart *models.Chart) error {
		return s.structures.ReplaceAreas(ctx, chart, areas)
	})
}

// ReplacePositions swaps a draft chart's full position set.
func (s *Service) ReplacePositions(ctx context.Context, chartID id.ChartID, expectedRevision int64, positions []models.Position) (*models.Chart, error) {
	ctx, span := s.tracer.Start(ctx, "chart.ReplacePositions")
	defer span.End()

	for i := range positions {
		positions[i].ChartID = chartID
	}
	if err := integrity.CheckPositions(positions); err != nil {
		return nil, structuralError(err)
	}
	return s.replaceStructure(ctx, chartID, expectedRevision, func(chart *models.Chart) error {
		return s.structures.ReplacePositions(ctx, chart, positions)
	})
}

func (s *Service) replaceStructure(ctx context.Context, chartID id.ChartID, expectedRevision int64, write func(chart *models.Chart) error) (*models.Chart, error) {
	now := requestcontext.Now(ctx)
	updated, err := s.charts.Execute(ctx, chartID, expectedRevision,
		func(chart *models.Chart) error {
			if !chart.Editable() {
				return dErrors.New(dErrors.CodeInvalidTransition,
					"structure is immutable once a chart is "+chart.State.String())
			}
			return nil
		},
		func(chart *models.Chart) {
			chart.ApplyEdited(now)
		})
	if err != nil {
		translated := translateStoreErr(err, "chart")
		s.countConflict(translated)
		return nil, preferDomain(err, translated)
	}
	if err := write(updated); err != nil {
		return nil, translateStoreErr(err, "chart structure")
	}
	s.emitAudit(ctx, audit.EventChartEdited, updated, nil)
	return updated, nil
}

// Validate runs the structural pass, builds the tree, evaluates compliance,
// and transitions Draft→Validated when no error-severity issues remain.
// Blocking issues leave the chart in Draft with the summary stored and are
// returned as a ValidationFailed error carrying the issue list.
func (s *Service) Validate(ctx context.Context, chartID id.ChartID, expectedRevision int64) (*models.Chart, error) {
	ctx, span := s.tracer.Start(ctx, "chart.Validate")
	defer span.End()
	start := time.Now()
	defer s.observeValidate(start)

	chart, err := s.charts.FindByID(ctx, chartID)
	if err != nil {
		return nil, translateStoreErr(err, "chart")
	}

	summary, err := s.evaluate(ctx, chart)
	if err != nil {
		s.countValidationFailure()
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ComplianceScore.Observe(float64(summary.Score))
	}

	now := requestcontext.Now(ctx)
	if summary.Blocking() {
		// Persist the summary so callers can inspect findings, but hold the
		// chart in Draft.
		if _, err := s.charts.Execute(ctx, chartID, expectedRevision,
			func(c *models.Chart) error { return c.CanValidate() },
			func(c *models.Chart) { c.ApplyComplianceSummary(*summary, now) },
		); err != nil {
			translated := translateStoreErr(err, "chart")
			s.countConflict(translated)
			return nil, preferDomain(err, translated)
		}
		s.countValidationFailure()
		return nil, dErrors.New(dErrors.CodeValidationFailed,
			fmt.Sprintf("validation found %d blocking issue(s)", summary.ErrorCount())).
			WithDetails(summary.Issues)
	}

	updated, err := s.charts.Execute(ctx, chartID, expectedRevision,
		func(c *models.Chart) error { return c.CanValidate() },
		func(c *models.Chart) { c.ApplyValidated(*summary, now) },
	)
	if err != nil {
		translated := translateStoreErr(err, "chart")
		s.countConflict(translated)
		return nil, preferDomain(err, translated)
	}
	s.emitAudit(ctx, audit.EventChartValidated, updated, &summary.Score)
	return updated, nil
}

// Approve promotes a Validated chart to Approved and makes it the single
// current chart for its organization; the previously current chart is
// superseded in the same atomic store operation. Compliance is re-evaluated
// defensively so a stale Validated state cannot slip through.
func (s *Service) Approve(ctx context.Context, chartID id.ChartID, expectedRevision int64) (*models.Chart, error) {
	ctx, span := s.tracer.Start(ctx, "chart.Approve")
	defer span.End()

	approver := requestcontext.UserID(ctx)
	if approver.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "approver identity required")
	}

	chart, err := s.charts.FindByID(ctx, chartID)
	if err != nil {
		return nil, translateStoreErr(err, "chart")
	}
	if err := chart.CanApprove(); err != nil {
		return nil, err
	}

	// Pin the current chart as observed here; the flip is rejected if another
	// approval changes it before ours commits.
	observed, err := s.charts.FindCurrentByOrg(ctx, chart.OrgID)
	if err != nil && !dErrors.HasCode(translateStoreErr(err, "current chart"), dErrors.CodeNotFound) {
		return nil, translateStoreErr(err, "current chart")
	}
	var currentRef *models.CurrentRef
	if observed != nil {
		currentRef = &models.CurrentRef{ChartID: observed.ID, Revision: observed.Revision}
	}

	summary, err := s.evaluate(ctx, chart)
	if err != nil {
		return nil, err
	}
	if summary.Blocking() {
		return nil, dErrors.New(dErrors.CodeValidationFailed,
			fmt.Sprintf("chart no longer passes validation: %d blocking issue(s)", summary.ErrorCount())).
			WithDetails(summary.Issues)
	}

	now := requestcontext.Now(ctx)
	var superseded *models.Chart
	updated, err := s.charts.ApproveCurrent(ctx, chartID, expectedRevision, currentRef,
		func(c *models.Chart) error {
			if err := c.CanApprove(); err != nil {
				return err
			}
			c.ApplyComplianceSummary(*summary, now)
			c.ApplyApproved(approver, now)
			return nil
		},
		func(previous *models.Chart) {
			previous.ApplySuperseded(now)
			copied := *previous
			superseded = &copied
		})
	if err != nil {
		translated := translateStoreErr(err, "chart")
		s.countConflict(translated)
		return nil, preferDomain(err, translated)
	}

	if superseded != nil {
		s.emitAudit(ctx, audit.EventChartSuperseded, superseded, nil)
	}
	s.emitAudit(ctx, audit.EventChartApproved, updated, &summary.Score)
	if s.metrics != nil {
		s.metrics.ChartsApproved.Inc()
	}
	return updated, nil
}

// Visualization builds (or serves from cache) the rendering payload for a
// chart. The payload is keyed by revision, so edits invalidate naturally.
func (s *Service) Visualization(ctx context.Context, chartID id.ChartID) (*viz.Payload, error) {
	ctx, span := s.tracer.Start(ctx, "chart.Visualization")
	defer span.End()

	chart, err := s.charts.FindByID(ctx, chartID)
	if err != nil {
		return nil, translateStoreErr(err, "chart")
	}

	if s.vizCache != nil {
		if payload, ok := s.vizCache.Get(ctx, chart.ID, chart.Revision); ok {
			if s.metrics != nil {
				s.metrics.VizCacheHits.Inc()
			}
			return payload, nil
		}
		if s.metrics != nil {
			s.metrics.VizCacheMisses.Inc()
		}
	}

	tree, err := s.buildTree(ctx, chart)
	if err != nil {
		return nil, err
	}
	payload := viz.BuildPayload(chart, tree)
	if s.vizCache != nil {
		s.vizCache.Put(ctx, chart.ID, chart.Revision, payload)
	}
	return payload, nil
}

// evaluate runs the full pipeline: structural pass, build, compliance pass.
func (s *Service) evaluate(ctx context.Context, chart *models.Chart) (*models.ComplianceSummary, error) {
	tree, err := s.buildTree(ctx, chart)
	if err != nil {
		return nil, err
	}
	summary := integrity.EvaluateCompliance(tree, chart.Sector, s.validatorCfg, requestcontext.Now(ctx))
	return &summary, nil
}

func (s *Service) buildTree(ctx context.Context, chart *models.Chart) (*hierarchy.Tree, error) {
	areas, positions, err := s.loadSnapshot(ctx, chart.ID)
	if err != nil {
		return nil, err
	}
	if err := integrity.CheckStructure(areas, positions, s.validatorCfg); err != nil {
		return nil, structuralError(err)
	}

	positionIDs := make([]id.PositionID, 0, len(positions))
	for _, p := range positions {
		positionIDs = append(positionIDs, p.ID)
	}
	occupied, err := s.directory.ActivePositions(ctx, positionIDs, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve position occupancy")
	}

	start := time.Now()
	tree, err := hierarchy.Build(areas, positions, occupied)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build hierarchy")
	}
	if s.metrics != nil {
		s.metrics.ObserveBuild(start)
	}
	return tree, nil
}

// loadSnapshot fetches areas and positions concurrently.
func (s *Service) loadSnapshot(ctx context.Context, chartID id.ChartID) ([]models.Area, []models.Position, error) {
	var (
		areas     []models.Area
		positions []models.Position
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		areas, err = s.structures.GetAreas(gctx, chartID)
		return err
	})
	g.Go(func() error {
		var err error
		positions, err = s.structures.GetPositions(gctx, chartID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load chart structure")
	}
	return areas, positions, nil
}

// cloneStructure copies a structure under fresh ids, remapping parent and
// reports-to references onto the new ids.
func cloneStructure(chartID id.ChartID, areas []models.Area, positions []models.Position) ([]models.Area, []models.Position) {
	areaIDs := make(map[id.AreaID]id.AreaID, len(areas))
	for _, a := range areas {
		areaIDs[a.ID] = id.NewAreaID()
	}
	clonedAreas := make([]models.Area, 0, len(areas))
	for _, a := range areas {
		next := a
		next.ID = areaIDs[a.ID]
		next.ChartID = chartID
		if a.ParentID != nil {
			p := areaIDs[*a.ParentID]
			next.ParentID = &p
		}
		clonedAreas = append(clonedAreas, next)
	}

	positionIDs := make(map[id.PositionID]id.PositionID, len(positions))
	for _, p := range positions {
		positionIDs[p.ID] = id.NewPositionID()
	}
	clonedPositions := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		next := p
		next.ID = positionIDs[p.ID]
		next.ChartID = chartID
		next.AreaID = areaIDs[p.AreaID]
		if p.ReportsTo != nil {
			r := positionIDs[*p.ReportsTo]
			next.ReportsTo = &r
		}
		clonedPositions = append(clonedPositions, next)
	}
	return clonedAreas, clonedPositions
}

// preferDomain returns err unchanged when it already carries a domain code
// (a Can* check failing inside a store callback), else the translation.
func preferDomain(err, translated error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de
	}
	return translated
}

func (s *Service) countConflict(err error) {
	if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeConflict) {
		s.metrics.RevisionConflicts.Inc()
	}
}

func (s *Service) countValidationFailure() {
	if s.metrics != nil {
		s.metrics.ValidationFailures.Inc()
	}
}

func (s *Service) observeValidate(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveValidate(start)
	}
}
