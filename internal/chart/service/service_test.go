package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"orgchart/internal/audit"
	"orgchart/internal/chart/integrity"
	"orgchart/internal/chart/models"
	chartstore "orgchart/internal/chart/store/chart"
	structurestore "orgchart/internal/chart/store/structure"
	"orgchart/internal/chart/viz"
	"orgchart/internal/directory"
	"orgchart/internal/template"
	id "orgchart/pkg/domain"
	dErrors "orgchart/pkg/domain-errors"
	"orgchart/pkg/requestcontext"
)

// fakeVizCache counts hits so tests can assert caching behavior without Redis.
type fakeVizCache struct {
	entries map[string]*viz.Payload
	puts    int
}

func newFakeVizCache() *fakeVizCache {
	return &fakeVizCache{entries: map[string]*viz.Payload{}}
}

func (c *fakeVizCache) key(chartID id.ChartID, revision int64) string {
	return chartID.String() + ":" + strconv.FormatInt(revision, 10)
}

func (c *fakeVizCache) Get(_ context.Context, chartID id.ChartID, revision int64) (*viz.Payload, bool) {
	p, ok := c.entries[c.key(chartID, revision)]
	return p, ok
}

func (c *fakeVizCache) Put(_ context.Context, chartID id.ChartID, revision int64, payload *viz.Payload) {
	c.puts++
	c.entries[c.key(chartID, revision)] = payload
}

type ServiceSuite struct {
	suite.Suite
	svc        *Service
	charts     *chartstore.InMemory
	structures *structurestore.InMemory
	dir        *directory.InMemory
	publisher  *audit.InMemory
	cache      *fakeVizCache
	orgID      id.OrgID
	approver   id.UserID
	now        time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.charts = chartstore.NewInMemory()
	s.structures = structurestore.NewInMemory()
	s.dir = directory.NewInMemory()
	s.publisher = audit.NewInMemory()
	s.cache = newFakeVizCache()
	s.orgID = id.NewOrgID()
	s.approver = id.NewUserID()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.svc = New(s.charts, s.structures, s.dir,
		WithTemplateProvider(template.NewStatic()),
		WithAuditPublisher(s.publisher),
		WithVizCache(s.cache),
	)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	return requestcontext.WithUserID(ctx, s.approver)
}

// bootstrapDraft creates the org's first draft from the health template.
func (s *ServiceSuite) bootstrapDraft() *models.Chart {
	chart, err := s.svc.CreateNewVersion(s.ctx(), s.orgID, id.SectorHealth)
	s.Require().NoError(err)
	return chart
}

// approvedChart walks a draft through validate and approve.
func (s *ServiceSuite) approvedChart() *models.Chart {
	draft := s.bootstrapDraft()
	validated, err := s.svc.Validate(s.ctx(), draft.ID, draft.Revision)
	s.Require().NoError(err)
	approved, err := s.svc.Approve(s.ctx(), validated.ID, validated.Revision)
	s.Require().NoError(err)
	return approved
}

func (s *ServiceSuite) TestCreateNewVersion() {
	s.Run("bootstraps first version from sector template", func() {
		chart := s.bootstrapDraft()
		s.Equal(1, chart.Version)
		s.Equal(models.StateDraft, chart.State)
		s.Equal(id.SectorHealth, chart.Sector)
		s.False(chart.IsCurrent)

		areas, positions, err := s.svc.GetStructure(s.ctx(), chart.ID)
		s.Require().NoError(err)
		s.NotEmpty(areas)
		s.NotEmpty(positions)
		for _, a := range areas {
			s.Equal(chart.ID, a.ChartID)
		}
	})

	s.Run("clones current chart structure under fresh ids", func() {
		s.orgID = id.NewOrgID()
		approved := s.approvedChart()
		sourceAreas, sourcePositions, err := s.svc.GetStructure(s.ctx(), approved.ID)
		s.Require().NoError(err)

		draft, err := s.svc.CreateNewVersion(s.ctx(), s.orgID, id.SectorGeneric)
		s.Require().NoError(err)
		s.Equal(2, draft.Version)
		s.Equal(id.SectorHealth, draft.Sector, "lineage sector wins over the request hint")

		areas, positions, err := s.svc.GetStructure(s.ctx(), draft.ID)
		s.Require().NoError(err)
		s.Len(areas, len(sourceAreas))
		s.Len(positions, len(sourcePositions))

		sourceIDs := make(map[id.AreaID]bool)
		for _, a := range sourceAreas {
			sourceIDs[a.ID] = true
		}
		for _, a := range areas {
			s.False(sourceIDs[a.ID], "cloned area must not reuse source ids")
			s.Equal(draft.ID, a.ChartID)
		}

		// The clone must itself be structurally sound.
		s.NoError(integrity.CheckStructure(areas, positions, integrity.DefaultConfig()))
	})

	s.Run("emits a created audit event", func() {
		before := len(s.publisher.Events())
		s.bootstrapDraft()
		events := s.publisher.Events()
		s.Require().Greater(len(events), before)
		s.Equal(audit.EventChartCreated, events[len(events)-1].Action)
	})
}

func (s *ServiceSuite) TestValidate() {
	s.Run("healthy draft becomes validated with summary", func() {
		draft := s.bootstrapDraft()
		validated, err := s.svc.Validate(s.ctx(), draft.ID, draft.Revision)
		s.Require().NoError(err)
		s.Equal(models.StateValidated, validated.State)
		s.Require().NotNil(validated.Compliance)
		s.False(validated.Compliance.Blocking())
		s.Equal(s.now, validated.Compliance.EvaluatedAt)
	})

	s.Run("blocking issues hold the chart in draft", func() {
		draft := s.bootstrapDraft()
		// Strip the process owner: a blocking rule in the health sector.
		_, positions, err := s.svc.GetStructure(s.ctx(), draft.ID)
		s.Require().NoError(err)
		for i := range positions {
			positions[i].ProcessOwner = false
		}
		edited, err := s.svc.ReplacePositions(s.ctx(), draft.ID, draft.Revision, positions)
		s.Require().NoError(err)

		_, err = s.svc.Validate(s.ctx(), edited.ID, edited.Revision)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidationFailed))
		issues, ok := dErrors.DetailsOf(err).([]models.ComplianceIssue)
		s.Require().True(ok, "details must carry the issue list")
		s.NotEmpty(issues)

		stored, err := s.svc.GetChart(s.ctx(), edited.ID)
		s.Require().NoError(err)
		s.Equal(models.StateDraft, stored.State)
		s.Require().NotNil(stored.Compliance, "summary is stored for inspection")
		s.True(stored.Compliance.Blocking())
	})

	s.Run("dangling manager rejected at replace", func() {
		draft := s.bootstrapDraft()
		_, positions, err := s.svc.GetStructure(s.ctx(), draft.ID)
		s.Require().NoError(err)
		ghost := id.NewPositionID()
		positions[0].ReportsTo = &ghost

		_, err = s.svc.ReplacePositions(s.ctx(), draft.ID, draft.Revision, positions)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("stale revision conflicts", func() {
		draft := s.bootstrapDraft()
		_, err := s.svc.Validate(s.ctx(), draft.ID, draft.Revision+10)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown chart not found", func() {
		_, err := s.svc.Validate(s.ctx(), id.NewChartID(), 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestApprove() {
	s.Run("approves validated chart as current", func() {
		approved := s.approvedChart()
		s.Equal(models.StateApproved, approved.State)
		s.True(approved.IsCurrent)
		s.Require().NotNil(approved.ApprovedBy)
		s.Equal(s.approver, *approved.ApprovedBy)

		current, err := s.svc.GetCurrent(s.ctx(), s.orgID)
		s.Require().NoError(err)
		s.Equal(approved.ID, current.ID)
	})

	s.Run("supersedes the previous current chart", func() {
		first := s.approvedChart()

		draft, err := s.svc.CreateNewVersion(s.ctx(), s.orgID, id.SectorHealth)
		s.Require().NoError(err)
		validated, err := s.svc.Validate(s.ctx(), draft.ID, draft.Revision)
		s.Require().NoError(err)
		second, err := s.svc.Approve(s.ctx(), validated.ID, validated.Revision)
		s.Require().NoError(err)
		s.True(second.IsCurrent)

		demoted, err := s.svc.GetChart(s.ctx(), first.ID)
		s.Require().NoError(err)
		s.Equal(models.StateSuperseded, demoted.State)
		s.False(demoted.IsCurrent)

		current, err := s.svc.GetCurrent(s.ctx(), s.orgID)
		s.Require().NoError(err)
		s.Equal(second.ID, current.ID)
	})

	s.Run("requires approver identity", func() {
		draft := s.bootstrapDraft()
		validated, err := s.svc.Validate(s.ctx(), draft.ID, draft.Revision)
		s.Require().NoError(err)

		anonymous := requestcontext.WithTime(context.Background(), s.now)
		_, err = s.svc.Approve(anonymous, validated.ID, validated.Revision)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects draft chart", func() {
		draft := s.bootstrapDraft()
		_, err := s.svc.Approve(s.ctx(), draft.ID, draft.Revision)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("stale revision conflicts", func() {
		draft := s.bootstrapDraft()
		validated, err := s.svc.Validate(s.ctx(), draft.ID, draft.Revision)
		s.Require().NoError(err)

		_, err = s.svc.Approve(s.ctx(), validated.ID, validated.Revision+5)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("emits approved and superseded audit events", func() {
		s.approvedChart()
		draft, err := s.svc.CreateNewVersion(s.ctx(), s.orgID, id.SectorHealth)
		s.Require().NoError(err)
		validated, err := s.svc.Validate(s.ctx(), draft.ID, draft.Revision)
		s.Require().NoError(err)
		_, err = s.svc.Approve(s.ctx(), validated.ID, validated.Revision)
		s.Require().NoError(err)

		var actions []audit.ChartEvent
		for _, e := range s.publisher.Events() {
			actions = append(actions, e.Action)
		}
		s.Contains(actions, audit.EventChartSuperseded)
		s.Contains(actions, audit.EventChartApproved)
	})
}

// gatedChartStore holds every approver at the current-chart read until all
// expected readers have arrived, so each one observes the pre-flip state.
type gatedChartStore struct {
	ChartStore
	gate *sync.WaitGroup
}

func (g *gatedChartStore) FindCurrentByOrg(ctx context.Context, orgID id.OrgID) (*models.Chart, error) {
	chart, err := g.ChartStore.FindCurrentByOrg(ctx, orgID)
	g.gate.Done()
	g.gate.Wait()
	return chart, err
}

// TestConcurrentApprovalsSingleWinner races two approvals of two distinct
// Validated charts for one organization. Both observe no current chart before
// either commits; exactly one may become current, the other must get a
// conflict and stay Validated for retry.
func (s *ServiceSuite) TestConcurrentApprovalsSingleWinner() {
	firstDraft := s.bootstrapDraft()
	first, err := s.svc.Validate(s.ctx(), firstDraft.ID, firstDraft.Revision)
	s.Require().NoError(err)

	secondDraft, err := s.svc.CreateNewVersion(s.ctx(), s.orgID, id.SectorHealth)
	s.Require().NoError(err)
	second, err := s.svc.Validate(s.ctx(), secondDraft.ID, secondDraft.Revision)
	s.Require().NoError(err)

	gate := &sync.WaitGroup{}
	gate.Add(2)
	gated := New(&gatedChartStore{ChartStore: s.charts, gate: gate}, s.structures, s.dir,
		WithTemplateProvider(template.NewStatic()),
	)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, chart := range []*models.Chart{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gated.Approve(s.ctx(), chart.ID, chart.Revision)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeConflict), "loser must see a conflict, got %v", err)
		conflicts++
	}
	s.Equal(1, wins, "exactly one approval may land")
	s.Equal(1, conflicts)

	current, err := s.svc.GetCurrent(s.ctx(), s.orgID)
	s.Require().NoError(err)
	for _, chart := range []*models.Chart{first, second} {
		if chart.ID == current.ID {
			continue
		}
		loser, err := s.svc.GetChart(s.ctx(), chart.ID)
		s.Require().NoError(err)
		s.Equal(models.StateValidated, loser.State)
		s.False(loser.IsCurrent)
	}
}

func (s *ServiceSuite) TestEditDropsValidatedState() {
	draft := s.bootstrapDraft()
	validated, err := s.svc.Validate(s.ctx(), draft.ID, draft.Revision)
	s.Require().NoError(err)
	s.Require().NotNil(validated.Compliance)

	areas, _, err := s.svc.GetStructure(s.ctx(), validated.ID)
	s.Require().NoError(err)
	edited, err := s.svc.ReplaceAreas(s.ctx(), validated.ID, validated.Revision, areas)
	s.Require().NoError(err)
	s.Equal(models.StateDraft, edited.State)
	s.Nil(edited.Compliance, "edit clears the stale summary")
}

func (s *ServiceSuite) TestEditRejectedAfterApproval() {
	approved := s.approvedChart()
	areas, _, err := s.svc.GetStructure(s.ctx(), approved.ID)
	s.Require().NoError(err)

	_, err = s.svc.ReplaceAreas(s.ctx(), approved.ID, approved.Revision, areas)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *ServiceSuite) TestOccupancyFeedsMetrics() {
	draft := s.bootstrapDraft()
	_, positions, err := s.svc.GetStructure(s.ctx(), draft.ID)
	s.Require().NoError(err)

	// Fill every seat; the vacancy findings disappear.
	for _, p := range positions {
		s.dir.Record(models.Assignment{
			ID:         id.NewAssignmentID(),
			PositionID: p.ID,
			UserID:     id.NewUserID(),
			StartDate:  s.now.AddDate(0, -1, 0),
		})
	}

	validated, err := s.svc.Validate(s.ctx(), draft.ID, draft.Revision)
	s.Require().NoError(err)
	s.Require().NotNil(validated.Compliance)
	s.Equal(100, validated.Compliance.Score)

	payload, err := s.svc.Visualization(s.ctx(), validated.ID)
	s.Require().NoError(err)
	s.Zero(payload.Metadata.VacancyRate)
}

func (s *ServiceSuite) TestVisualizationCaching() {
	approved := s.approvedChart()

	first, err := s.svc.Visualization(s.ctx(), approved.ID)
	s.Require().NoError(err)
	s.Equal(1, s.cache.puts)
	s.Equal(approved.ID.String(), first.Metadata.ChartID)
	s.Equal(string(models.StateApproved), first.Metadata.State)
	s.NotEmpty(first.Nodes)
	s.NotEmpty(first.RootID)

	second, err := s.svc.Visualization(s.ctx(), approved.ID)
	s.Require().NoError(err)
	s.Equal(1, s.cache.puts, "second read must come from cache")
	s.Equal(first, second)
}
