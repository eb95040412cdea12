// Package chart persists chart aggregates. The in-memory implementation is
// the reference for the optimistic-concurrency contract: every write
// presents the revision it read and fails with ErrRevisionMismatch if the
// stored revision has advanced.
package chart

import (
	"context"
	"sync"

	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
	"orgchart/pkg/platform/sentinel"
)

// InMemory keeps charts in a map guarded by one mutex. A single lock keeps
// the current-version swap trivially atomic; clarity over throughput.
type InMemory struct {
	mu     sync.Mutex
	charts map[id.ChartID]*models.Chart
}

// NewInMemory constructs an empty in-memory chart store.
func NewInMemory() *InMemory {
	return &InMemory{charts: make(map[id.ChartID]*models.Chart)}
}

// Create inserts a new chart. Fails with ErrConflict on duplicate id or on
// a duplicate (organization, version) pair.
func (s *InMemory) Create(_ context.Context, chart *models.Chart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.charts[chart.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.charts {
		if existing.OrgID == chart.OrgID && existing.Version == chart.Version {
			return sentinel.ErrConflict
		}
	}
	s.charts[chart.ID] = clone(chart)
	return nil
}

// FindByID returns a copy of the chart.
func (s *InMemory) FindByID(_ context.Context, chartID id.ChartID) (*models.Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chart, ok := s.charts[chartID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(chart), nil
}

// FindCurrentByOrg returns the single current chart for an organization.
func (s *InMemory) FindCurrentByOrg(_ context.Context, orgID id.OrgID) (*models.Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chart := range s.charts {
		if chart.OrgID == orgID && chart.IsCurrent {
			return clone(chart), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// NextVersion returns the next monotonic version number for an organization.
func (s *InMemory) NextVersion(_ context.Context, orgID id.OrgID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, chart := range s.charts {
		if chart.OrgID == orgID && chart.Version > max {
			max = chart.Version
		}
	}
	return max + 1, nil
}

// Execute runs an atomic validate-then-mutate against one chart. The write
// is rejected with ErrRevisionMismatch when expectedRevision no longer
// matches; on success the revision is advanced and the updated chart
// returned. validate sees the stored state under the lock, so lifecycle
// checks inside it cannot race with concurrent writers.
func (s *InMemory) Execute(_ context.Context, chartID id.ChartID, expectedRevision int64, validate func(*models.Chart) error, mutate func(*models.Chart)) (*models.Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.charts[chartID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if stored.Revision != expectedRevision {
		return nil, sentinel.ErrRevisionMismatch
	}
	next := clone(stored)
	if err := validate(next); err != nil {
		return nil, err
	}
	mutate(next)
	next.Revision++
	s.charts[chartID] = next
	return clone(next), nil
}

// ApproveCurrent atomically approves one chart and supersedes the
// organization's previously current chart. No intermediate state is
// observable: the map swap happens under the single store lock, so at no
// point are zero or two charts current for the organization.
//
// Conflict detection is org-scoped, not just chart-scoped: the flip is
// rejected with ErrRevisionMismatch when the org's current chart is not the
// one the approver observed, so the loser of two concurrent approvals of
// different charts must re-read and retry against the new current.
func (s *InMemory) ApproveCurrent(_ context.Context, chartID id.ChartID, expectedRevision int64, observedCurrent *models.CurrentRef, approve func(*models.Chart) error, supersede func(*models.Chart)) (*models.Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.charts[chartID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if stored.Revision != expectedRevision {
		return nil, sentinel.ErrRevisionMismatch
	}

	var previous *models.Chart
	for _, candidate := range s.charts {
		if candidate.OrgID == stored.OrgID && candidate.IsCurrent && candidate.ID != chartID {
			previous = clone(candidate)
			break
		}
	}
	if !currentMatches(observedCurrent, previous) {
		return nil, sentinel.ErrRevisionMismatch
	}

	next := clone(stored)
	if err := approve(next); err != nil {
		return nil, err
	}
	next.Revision++

	if previous != nil {
		supersede(previous)
		previous.Revision++
		s.charts[previous.ID] = previous
	}
	s.charts[chartID] = next
	return clone(next), nil
}

// currentMatches reports whether the stored current chart is still the one
// the approver observed.
func currentMatches(observed *models.CurrentRef, stored *models.Chart) bool {
	if observed == nil {
		return stored == nil
	}
	return stored != nil && stored.ID == observed.ChartID && stored.Revision == observed.Revision
}

func clone(c *models.Chart) *models.Chart {
	out := *c
	if c.Compliance != nil {
		summary := *c.Compliance
		summary.Issues = append([]models.ComplianceIssue(nil), c.Compliance.Issues...)
		out.Compliance = &summary
	}
	if c.ApprovedAt != nil {
		t := *c.ApprovedAt
		out.ApprovedAt = &t
	}
	if c.ApprovedBy != nil {
		u := *c.ApprovedBy
		out.ApprovedBy = &u
	}
	return &out
}
