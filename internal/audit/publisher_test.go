package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	id "orgchart/pkg/domain"
)

func TestInMemoryCollectsEvents(t *testing.T) {
	p := NewInMemory()
	defer p.Close()

	orgID := id.NewOrgID()
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, p.Emit(context.Background(), Event{
		Action: EventChartCreated, Timestamp: ts, OrgID: orgID, ChartID: id.NewChartID(), Version: 1,
	}))
	require.NoError(t, p.Emit(context.Background(), Event{
		Action: EventChartValidated, OrgID: orgID, ChartID: id.NewChartID(), Version: 1,
	}))

	events := p.Events()
	require.Len(t, events, 2)
	require.Equal(t, EventChartCreated, events[0].Action)
	require.Equal(t, ts, events[0].Timestamp)
	require.False(t, events[1].Timestamp.IsZero(), "missing timestamp is stamped on emit")

	// Events returns a copy; mutating it must not leak back.
	events[0].Version = 99
	require.Equal(t, 1, p.Events()[0].Version)
}

func TestEventEncoding(t *testing.T) {
	score := 94
	event := Event{
		Action:    EventChartApproved,
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		OrgID:     id.NewOrgID(),
		ChartID:   id.NewChartID(),
		Version:   3,
		ActorID:   id.NewUserID(),
		RequestID: "req-1",
		Score:     &score,
	}
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "chart_approved", decoded["action"])
	require.Equal(t, event.OrgID.String(), decoded["org_id"], "ids encode as uuid strings")
	require.Equal(t, float64(94), decoded["score"])
}
