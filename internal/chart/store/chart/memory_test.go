package chart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
	"orgchart/pkg/platform/sentinel"
)

type ChartStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *ChartStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func TestChartStoreSuite(t *testing.T) {
	suite.Run(t, new(ChartStoreSuite))
}

func (s *ChartStoreSuite) newChart(orgID id.OrgID, version int) *models.Chart {
	chart, err := models.NewChart(id.NewChartID(), orgID, id.SectorHealth, version, s.now)
	s.Require().NoError(err)
	return chart
}

func (s *ChartStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds by id", func() {
		chart := s.newChart(id.NewOrgID(), 1)
		s.Require().NoError(s.store.Create(s.ctx, chart))

		found, err := s.store.FindByID(s.ctx, chart.ID)
		s.Require().NoError(err)
		s.Equal(chart.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewChartID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate id", func() {
		chart := s.newChart(id.NewOrgID(), 1)
		s.Require().NoError(s.store.Create(s.ctx, chart))
		s.Require().ErrorIs(s.store.Create(s.ctx, chart), sentinel.ErrConflict)
	})

	s.Run("rejects duplicate org version", func() {
		orgID := id.NewOrgID()
		s.Require().NoError(s.store.Create(s.ctx, s.newChart(orgID, 1)))
		s.Require().ErrorIs(s.store.Create(s.ctx, s.newChart(orgID, 1)), sentinel.ErrConflict)
	})

	s.Run("stored chart is isolated from caller mutation", func() {
		chart := s.newChart(id.NewOrgID(), 1)
		s.Require().NoError(s.store.Create(s.ctx, chart))
		chart.Version = 99

		found, err := s.store.FindByID(s.ctx, chart.ID)
		s.Require().NoError(err)
		s.Equal(1, found.Version)
	})
}

func (s *ChartStoreSuite) TestNextVersion() {
	orgID := id.NewOrgID()

	next, err := s.store.NextVersion(s.ctx, orgID)
	s.Require().NoError(err)
	s.Equal(1, next)

	s.Require().NoError(s.store.Create(s.ctx, s.newChart(orgID, 1)))
	s.Require().NoError(s.store.Create(s.ctx, s.newChart(orgID, 2)))

	next, err = s.store.NextVersion(s.ctx, orgID)
	s.Require().NoError(err)
	s.Equal(3, next)
}

func (s *ChartStoreSuite) TestExecuteRevisionCheck() {
	chart := s.newChart(id.NewOrgID(), 1)
	s.Require().NoError(s.store.Create(s.ctx, chart))

	s.Run("advances revision on success", func() {
		updated, err := s.store.Execute(s.ctx, chart.ID, 1,
			func(c *models.Chart) error { return nil },
			func(c *models.Chart) { c.ApplyValidated(models.ComplianceSummary{Score: 90}, s.now) },
		)
		s.Require().NoError(err)
		s.Equal(int64(2), updated.Revision)
		s.Equal(models.StateValidated, updated.State)
	})

	s.Run("rejects stale revision", func() {
		_, err := s.store.Execute(s.ctx, chart.ID, 1,
			func(c *models.Chart) error { return nil },
			func(c *models.Chart) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrRevisionMismatch)
	})

	s.Run("validate failure leaves stored chart untouched", func() {
		boom := sentinel.ErrInvalidState
		_, err := s.store.Execute(s.ctx, chart.ID, 2,
			func(c *models.Chart) error { return boom },
			func(c *models.Chart) { c.ApplySuperseded(s.now) },
		)
		s.Require().ErrorIs(err, boom)

		found, err := s.store.FindByID(s.ctx, chart.ID)
		s.Require().NoError(err)
		s.Equal(models.StateValidated, found.State)
		s.Equal(int64(2), found.Revision)
	})
}

// approveFns returns the approve/supersede callbacks the service would pass.
func (s *ChartStoreSuite) approveFns(approver id.UserID) (func(*models.Chart) error, func(*models.Chart)) {
	return func(c *models.Chart) error {
			if err := c.CanApprove(); err != nil {
				return err
			}
			c.ApplyApproved(approver, s.now)
			return nil
		},
		func(previous *models.Chart) { previous.ApplySuperseded(s.now) }
}

// currentRef reads the org's current chart and pins it for an approve call.
func (s *ChartStoreSuite) currentRef(orgID id.OrgID) *models.CurrentRef {
	current, err := s.store.FindCurrentByOrg(s.ctx, orgID)
	if err != nil {
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		return nil
	}
	return &models.CurrentRef{ChartID: current.ID, Revision: current.Revision}
}

func (s *ChartStoreSuite) TestApproveCurrentFlip() {
	orgID := id.NewOrgID()
	approver := id.NewUserID()
	approve, supersede := s.approveFns(approver)

	first := s.newChart(orgID, 1)
	first.ApplyValidated(models.ComplianceSummary{}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, first))

	approved, err := s.store.ApproveCurrent(s.ctx, first.ID, first.Revision, s.currentRef(orgID), approve, supersede)
	s.Require().NoError(err)
	s.True(approved.IsCurrent)

	second := s.newChart(orgID, 2)
	second.ApplyValidated(models.ComplianceSummary{}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, second))

	_, err = s.store.ApproveCurrent(s.ctx, second.ID, second.Revision, s.currentRef(orgID), approve, supersede)
	s.Require().NoError(err)

	current, err := s.store.FindCurrentByOrg(s.ctx, orgID)
	s.Require().NoError(err)
	s.Equal(second.ID, current.ID)

	demoted, err := s.store.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(models.StateSuperseded, demoted.State)
	s.False(demoted.IsCurrent)
}

// TestApproveCurrentStaleObservation approves with a pin taken before another
// approval flipped the current chart; the flip must be rejected.
func (s *ChartStoreSuite) TestApproveCurrentStaleObservation() {
	orgID := id.NewOrgID()
	approve, supersede := s.approveFns(id.NewUserID())

	first := s.newChart(orgID, 1)
	first.ApplyValidated(models.ComplianceSummary{}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, first))

	second := s.newChart(orgID, 2)
	second.ApplyValidated(models.ComplianceSummary{}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, second))

	stale := s.currentRef(orgID)
	s.Require().Nil(stale)

	_, err := s.store.ApproveCurrent(s.ctx, first.ID, first.Revision, stale, approve, supersede)
	s.Require().NoError(err)

	_, err = s.store.ApproveCurrent(s.ctx, second.ID, second.Revision, stale, approve, supersede)
	s.Require().ErrorIs(err, sentinel.ErrRevisionMismatch)

	// A fresh observation succeeds.
	_, err = s.store.ApproveCurrent(s.ctx, second.ID, second.Revision, s.currentRef(orgID), approve, supersede)
	s.Require().NoError(err)
}

// TestConcurrentApprovals pits two approvers against the same chart; exactly
// one must win, the loser gets a revision mismatch.
func (s *ChartStoreSuite) TestConcurrentApprovals() {
	orgID := id.NewOrgID()
	chart := s.newChart(orgID, 1)
	chart.ApplyValidated(models.ComplianceSummary{}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, chart))

	approve, supersede := s.approveFns(id.NewUserID())
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.ApproveCurrent(s.ctx, chart.ID, chart.Revision, nil, approve, supersede)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, sentinel.ErrRevisionMismatch)
			losses++
		}
	}
	s.Equal(1, wins)
	s.Equal(1, losses)

	current, err := s.store.FindCurrentByOrg(s.ctx, orgID)
	s.Require().NoError(err)
	s.Equal(chart.ID, current.ID)
}

// TestConcurrentApprovalsDifferentCharts races two approvals of two distinct
// Validated charts for one organization. Both carry the same observation (no
// current chart), so exactly one flip may land; the loser must see a mismatch
// even though its own chart's revision never moved.
func (s *ChartStoreSuite) TestConcurrentApprovalsDifferentCharts() {
	orgID := id.NewOrgID()
	charts := []*models.Chart{s.newChart(orgID, 1), s.newChart(orgID, 2)}
	for _, c := range charts {
		c.ApplyValidated(models.ComplianceSummary{}, s.now)
		s.Require().NoError(s.store.Create(s.ctx, c))
	}

	approve, supersede := s.approveFns(id.NewUserID())
	var wg sync.WaitGroup
	results := make(chan error, len(charts))
	for _, c := range charts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.ApproveCurrent(s.ctx, c.ID, c.Revision, nil, approve, supersede)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, sentinel.ErrRevisionMismatch)
			losses++
		}
	}
	s.Equal(1, wins)
	s.Equal(1, losses)

	// Exactly one chart is current; the loser is untouched and retryable.
	current, err := s.store.FindCurrentByOrg(s.ctx, orgID)
	s.Require().NoError(err)
	for _, c := range charts {
		if c.ID == current.ID {
			continue
		}
		loser, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StateValidated, loser.State)
		s.False(loser.IsCurrent)
	}
}
