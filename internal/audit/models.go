// Package audit captures chart lifecycle actions for the quality-management
// trail. Events are transport-agnostic; sinks decide persistence.
package audit

import (
	"time"

	id "orgchart/pkg/domain"
)

type ChartEvent string

const (
	EventChartCreated    ChartEvent = "chart_created"
	EventChartEdited     ChartEvent = "chart_edited"
	EventChartValidated  ChartEvent = "chart_validated"
	EventChartApproved   ChartEvent = "chart_approved"
	EventChartSuperseded ChartEvent = "chart_superseded"
)

// Event is emitted from the chart service at every lifecycle transition.
type Event struct {
	Action    ChartEvent `json:"action"`
	Timestamp time.Time  `json:"timestamp"`
	OrgID     id.OrgID   `json:"org_id"`
	ChartID   id.ChartID `json:"chart_id"`
	Version   int        `json:"version"`
	ActorID   id.UserID  `json:"actor_id,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	// Score carries the compliance score for validated/approved events.
	Score *int `json:"score,omitempty"`
}
