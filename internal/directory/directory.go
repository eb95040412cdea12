// Package directory is the person/assignment oracle. The chart engine only
// ever asks which positions have an active occupant; assignment bookkeeping
// itself lives with the external HR system this package fronts.
package directory

import (
	"context"
	"sync"
	"time"

	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
)

// InMemory is a directory backed by locally registered assignments. It
// serves tests and single-node deployments; a remote HR directory satisfies
// the same lookup contract.
type InMemory struct {
	mu          sync.RWMutex
	assignments map[id.PositionID][]models.Assignment
}

// NewInMemory constructs an empty directory.
func NewInMemory() *InMemory {
	return &InMemory{assignments: make(map[id.PositionID][]models.Assignment)}
}

// Record registers an assignment with the directory.
func (d *InMemory) Record(assignment models.Assignment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assignments[assignment.PositionID] = append(d.assignments[assignment.PositionID], assignment)
}

// ActivePositions reports which of the given positions have an active
// assignment at time t. Positions absent from the result are vacant.
func (d *InMemory) ActivePositions(_ context.Context, positionIDs []id.PositionID, t time.Time) (map[id.PositionID]bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	active := make(map[id.PositionID]bool, len(positionIDs))
	for _, positionID := range positionIDs {
		for _, assignment := range d.assignments[positionID] {
			if assignment.ActiveAt(t) {
				active[positionID] = true
				break
			}
		}
	}
	return active, nil
}
