// Package structure persists the area/position working set of a chart
// version. Pure data access: the only rule enforced here is the immutable
// chart contract — mutations outside Draft fail with ErrImmutable.
package structure

import (
	"context"
	"sort"
	"sync"

	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
	"orgchart/pkg/platform/sentinel"
)

// InMemory keeps structure snapshots keyed by chart id.
type InMemory struct {
	mu        sync.RWMutex
	areas     map[id.ChartID][]models.Area
	positions map[id.ChartID][]models.Position
}

// NewInMemory constructs an empty in-memory structure store.
func NewInMemory() *InMemory {
	return &InMemory{
		areas:     make(map[id.ChartID][]models.Area),
		positions: make(map[id.ChartID][]models.Position),
	}
}

// GetAreas returns the chart's areas in a deterministic (name, id) order.
// A chart with no stored areas yields an empty set, not an error: a fresh
// bootstrap draft legitimately has none.
func (s *InMemory) GetAreas(_ context.Context, chartID id.ChartID) ([]models.Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.Area(nil), s.areas[chartID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// GetPositions returns the chart's positions in a deterministic (code, id)
// order.
func (s *InMemory) GetPositions(_ context.Context, chartID id.ChartID) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.Position(nil), s.positions[chartID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// ReplaceAreas swaps the chart's full area set. Permitted only while the
// owning chart is Draft.
func (s *InMemory) ReplaceAreas(_ context.Context, chart *models.Chart, areas []models.Area) error {
	if chart.State != models.StateDraft {
		return sentinel.ErrImmutable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.areas[chart.ID] = append([]models.Area(nil), areas...)
	return nil
}

// ReplacePositions swaps the chart's full position set. Permitted only
// while the owning chart is Draft.
func (s *InMemory) ReplacePositions(_ context.Context, chart *models.Chart, positions []models.Position) error {
	if chart.State != models.StateDraft {
		return sentinel.ErrImmutable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[chart.ID] = append([]models.Position(nil), positions...)
	return nil
}
