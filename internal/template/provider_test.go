package template

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"orgchart/internal/chart/integrity"
	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
)

func TestBootstrapSeedsAreStructurallySound(t *testing.T) {
	provider := NewStatic()
	for _, sector := range []id.Sector{id.SectorHealth, id.SectorGeneric, id.SectorEducation} {
		chartID := id.NewChartID()
		areas, positions, err := provider.Bootstrap(context.Background(), chartID, sector)
		require.NoError(t, err, sector)
		require.NotEmpty(t, areas, sector)
		require.NotEmpty(t, positions, sector)
		require.NoError(t, integrity.CheckStructure(areas, positions, integrity.DefaultConfig()), sector)

		for _, a := range areas {
			require.Equal(t, chartID, a.ChartID)
		}
		for _, p := range positions {
			require.Equal(t, chartID, p.ChartID)
		}
	}
}

func TestBootstrapHealthSeed(t *testing.T) {
	areas, positions, err := NewStatic().Bootstrap(context.Background(), id.NewChartID(), id.SectorHealth)
	require.NoError(t, err)
	require.Len(t, areas, 3)
	require.Len(t, positions, 4)

	var hasProcessOwner, hasManagement bool
	for _, p := range positions {
		hasProcessOwner = hasProcessOwner || p.ProcessOwner
		hasManagement = hasManagement || p.Management
	}
	require.True(t, hasProcessOwner, "health seed must satisfy the process owner rule")
	require.True(t, hasManagement)
}

func TestBootstrapUnknownSectorFallsBackToGeneric(t *testing.T) {
	provider := NewStatic()
	fromUnknown, _, err := provider.Bootstrap(context.Background(), id.NewChartID(), id.SectorManufacturing)
	require.NoError(t, err)
	fromGeneric, _, err := provider.Bootstrap(context.Background(), id.NewChartID(), id.SectorGeneric)
	require.NoError(t, err)

	names := func(areas []models.Area) []string {
		out := make([]string, 0, len(areas))
		for _, a := range areas {
			out = append(out, a.Name)
		}
		return out
	}
	require.Equal(t, names(fromGeneric), names(fromUnknown))
}

func TestBootstrapMintsFreshIDsPerCall(t *testing.T) {
	provider := NewStatic()
	first, firstPositions, err := provider.Bootstrap(context.Background(), id.NewChartID(), id.SectorHealth)
	require.NoError(t, err)
	second, secondPositions, err := provider.Bootstrap(context.Background(), id.NewChartID(), id.SectorHealth)
	require.NoError(t, err)

	seen := map[id.AreaID]bool{}
	for _, a := range first {
		seen[a.ID] = true
	}
	for _, a := range second {
		require.False(t, seen[a.ID])
	}
	seenPositions := map[id.PositionID]bool{}
	for _, p := range firstPositions {
		seenPositions[p.ID] = true
	}
	for _, p := range secondPositions {
		require.False(t, seenPositions[p.ID])
	}
}
