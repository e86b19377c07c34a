package cluster

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doback-data/stability.report/internal/stability"
)

var t0 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func event(lat, lon float64, level stability.Level, pct float64, cause stability.Cause) stability.Event {
	return stability.Event{
		ID:         "test",
		Timestamp:  t0,
		Lat:        lat,
		Lon:        lon,
		Level:      level,
		Percentage: pct,
		Types:      []stability.Cause{cause},
	}
}

// moderate builds an event that on its own keeps a cluster "Moderada".
func moderate(lat, lon float64, cause stability.Cause) stability.Event {
	return event(lat, lon, stability.LevelModerate, 45, cause)
}

func TestAggregate_EmptyInput(t *testing.T) {
	assert.Empty(t, Aggregate(nil, DefaultParams()))
}

func TestAggregate_MinEventsGate(t *testing.T) {
	// Two members: never surfaced. Three: surfaced.
	events := []stability.Event{
		moderate(40.0000, -3.0000, stability.CauseSinCausaClara),
		moderate(40.0001, -3.0000, stability.CauseSinCausaClara),
		moderate(41.0000, -3.0000, stability.CauseSinCausaClara),
		moderate(41.0001, -3.0000, stability.CauseSinCausaClara),
		moderate(41.0002, -3.0000, stability.CauseSinCausaClara),
	}

	clusters := Aggregate(events, DefaultParams())
	require.Len(t, clusters, 1)
	assert.Equal(t, 3, clusters[0].EventCount)
	assert.NotEmpty(t, clusters[0].ID)
}

func TestAggregate_MembersNearFinalCentroid(t *testing.T) {
	events := []stability.Event{
		moderate(40.00000, -3.00000, stability.CauseCurvaBrusca),
		moderate(40.00040, -3.00020, stability.CauseCurvaBrusca),
		moderate(40.00020, -3.00040, stability.CauseCurvaBrusca),
		moderate(40.00030, -3.00010, stability.CauseCurvaBrusca),
	}

	clusters := Aggregate(events, DefaultParams())
	require.Len(t, clusters, 1)
	c := clusters[0]

	for _, ev := range c.Events {
		d := math.Hypot(c.CenterLat-ev.Lat, c.CenterLon-ev.Lon)
		assert.LessOrEqual(t, d, DefaultParams().ProximityDegrees,
			"member must lie within the proximity threshold of the final centroid")
	}
	assert.LessOrEqual(t, c.RadiusDegrees, DefaultParams().ProximityDegrees)
}

func TestAggregate_CentroidIsMeanOfMembers(t *testing.T) {
	events := []stability.Event{
		moderate(40.0000, -3.0000, stability.CauseSinCausaClara),
		moderate(40.0002, -3.0002, stability.CauseSinCausaClara),
		moderate(40.0004, -3.0004, stability.CauseSinCausaClara),
	}

	clusters := Aggregate(events, DefaultParams())
	require.Len(t, clusters, 1)
	assert.InDelta(t, 40.0002, clusters[0].CenterLat, 1e-9)
	assert.InDelta(t, -3.0002, clusters[0].CenterLon, 1e-9)
}

func TestAggregate_SeverityLabels(t *testing.T) {
	t.Run("critical member makes cluster Crítica", func(t *testing.T) {
		events := []stability.Event{
			moderate(40.0, -3.0, stability.CauseSinCausaClara),
			moderate(40.0, -3.0, stability.CauseSinCausaClara),
			event(40.0, -3.0, stability.LevelCritical, 5, stability.CauseCurvaBrusca),
		}
		clusters := Aggregate(events, DefaultParams())
		require.Len(t, clusters, 1)
		assert.Equal(t, SeverityCritical, clusters[0].Severity)
	})

	t.Run("low percentage alone makes cluster Crítica", func(t *testing.T) {
		events := []stability.Event{
			moderate(40.0, -3.0, stability.CauseSinCausaClara),
			moderate(40.0, -3.0, stability.CauseSinCausaClara),
			event(40.0, -3.0, stability.LevelDanger, 25, stability.CauseSinCausaClara),
		}
		clusters := Aggregate(events, DefaultParams())
		require.Len(t, clusters, 1)
		assert.Equal(t, SeverityCritical, clusters[0].Severity)
	})

	t.Run("all mild members stay Moderada", func(t *testing.T) {
		events := []stability.Event{
			moderate(40.0, -3.0, stability.CauseSinCausaClara),
			moderate(40.0, -3.0, stability.CauseSinCausaClara),
			moderate(40.0, -3.0, stability.CauseSinCausaClara),
		}
		clusters := Aggregate(events, DefaultParams())
		require.Len(t, clusters, 1)
		assert.Equal(t, SeverityModerate, clusters[0].Severity)
	})
}

func TestAggregate_PrimaryTypeMostFrequentTieFirstEncountered(t *testing.T) {
	events := []stability.Event{
		moderate(40.0, -3.0, stability.CausePendienteLateral),
		moderate(40.0, -3.0, stability.CauseCurvaBrusca),
		moderate(40.0, -3.0, stability.CauseCurvaBrusca),
		moderate(40.0, -3.0, stability.CausePendienteLateral),
	}

	clusters := Aggregate(events, DefaultParams())
	require.Len(t, clusters, 1)
	// Two of each; pendiente_lateral was encountered first.
	assert.Equal(t, stability.CausePendienteLateral, clusters[0].PrimaryType)
}

func TestAggregate_RanksByMemberCountDescending(t *testing.T) {
	var events []stability.Event
	for i := 0; i < 3; i++ {
		events = append(events, moderate(40.0, -3.0, stability.CauseSinCausaClara))
	}
	for i := 0; i < 5; i++ {
		events = append(events, moderate(41.0, -3.0, stability.CauseSinCausaClara))
	}

	clusters := Aggregate(events, DefaultParams())
	require.Len(t, clusters, 2)
	assert.Equal(t, 5, clusters[0].EventCount)
	assert.Equal(t, 3, clusters[1].EventCount)
}

func TestAggregate_IsPureFunctionOfInput(t *testing.T) {
	events := []stability.Event{
		moderate(40.0, -3.0, stability.CauseSinCausaClara),
		moderate(40.0, -3.0, stability.CauseSinCausaClara),
		moderate(40.0, -3.0, stability.CauseSinCausaClara),
	}

	first := Aggregate(events, DefaultParams())
	second := Aggregate(events, DefaultParams())
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	// No state across calls: same membership and ranking (IDs are fresh).
	assert.Equal(t, first[0].EventCount, second[0].EventCount)
	assert.Equal(t, first[0].CenterLat, second[0].CenterLat)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}
