// Package cluster reduces a batch of stability events into geographic
// hotspot clusters for map display and operational review.
//
// Aggregation is a pure function of its input batch: it holds no state
// across calls, so callers re-run it over the full current event set
// whenever they need fresh clusters.
package cluster

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/doback-data/stability.report/internal/config"
	"github.com/doback-data/stability.report/internal/stability"
)

// Cluster severity labels, in the vocabulary the reporting layer expects.
const (
	SeverityCritical = "Crítica"
	SeverityModerate = "Moderada"
)

// Params controls aggregation.
type Params struct {
	// ProximityDegrees is the centroid proximity threshold. The historical
	// behavior conflates degrees of latitude and longitude (~100 m only near
	// the 40th parallel and below); it is kept as the default for parity but
	// callers may substitute a value derived from a true metric radius.
	ProximityDegrees float64

	// MinEvents is the minimum member count for a cluster to surface as a
	// hotspot. Weaker clusters are dropped from the result.
	MinEvents int
}

// DefaultParams returns the aggregation parameters used in production.
func DefaultParams() Params {
	return ParamsFromTuning(config.EmptyTuningConfig())
}

// ParamsFromTuning builds Params from a loaded TuningConfig.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{
		ProximityDegrees: cfg.GetClusterProximityDeg(),
		MinEvents:        cfg.GetClusterMinEvents(),
	}
}

// Cluster is one geographic hotspot built from nearby events.
type Cluster struct {
	ID            string            `json:"id"`
	CenterLat     float64           `json:"center_lat"`
	CenterLon     float64           `json:"center_lon"`
	RadiusDegrees float64           `json:"radius_degrees"`
	Events        []stability.Event `json:"events"`
	Severity      string            `json:"severity"`
	PrimaryType   stability.Cause   `json:"primary_type"`
	EventCount    int               `json:"event_count"`
}

// Aggregate groups geographically close events into clusters.
//
// Greedy single pass in input order: each event joins the first existing
// cluster whose centroid lies within the proximity threshold, recomputing
// that cluster's centroid as the arithmetic mean of all member positions;
// otherwise it seeds a new cluster. A post-pass drops clusters below the
// minimum member count and ranks the rest descending by member count.
func Aggregate(events []stability.Event, params Params) []Cluster {
	var working []*Cluster

	for _, ev := range events {
		var home *Cluster
		for _, c := range working {
			if math.Hypot(c.CenterLat-ev.Lat, c.CenterLon-ev.Lon) <= params.ProximityDegrees {
				home = c
				break
			}
		}

		if home == nil {
			working = append(working, &Cluster{
				CenterLat: ev.Lat,
				CenterLon: ev.Lon,
				Events:    []stability.Event{ev},
			})
			continue
		}

		home.Events = append(home.Events, ev)
		home.CenterLat, home.CenterLon = centroid(home.Events)
	}

	out := make([]Cluster, 0, len(working))
	for _, c := range working {
		if len(c.Events) < params.MinEvents {
			continue
		}
		c.ID = uuid.New().String()
		c.EventCount = len(c.Events)
		c.RadiusDegrees = radius(c)
		c.Severity = severity(c.Events)
		c.PrimaryType = primaryType(c.Events)
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventCount > out[j].EventCount
	})
	return out
}

// centroid is the arithmetic mean of member positions.
func centroid(events []stability.Event) (lat, lon float64) {
	lats := make([]float64, len(events))
	lons := make([]float64, len(events))
	for i, ev := range events {
		lats[i] = ev.Lat
		lons[i] = ev.Lon
	}
	return stat.Mean(lats, nil), stat.Mean(lons, nil)
}

// radius is the largest member distance from the final centroid, in degrees.
func radius(c *Cluster) float64 {
	max := 0.0
	for _, ev := range c.Events {
		if d := math.Hypot(c.CenterLat-ev.Lat, c.CenterLon-ev.Lon); d > max {
			max = d
		}
	}
	return max
}

// severity is "Crítica" when any member is critical-level or sits below 30%
// stability, "Moderada" otherwise.
func severity(events []stability.Event) string {
	for _, ev := range events {
		if ev.Level == stability.LevelCritical || ev.Percentage < 30 {
			return SeverityCritical
		}
	}
	return SeverityModerate
}

// primaryType is the most frequent cause tag among members, ties broken by
// first encountered.
func primaryType(events []stability.Event) stability.Cause {
	counts := make(map[stability.Cause]int)
	var order []stability.Cause
	for _, ev := range events {
		for _, tag := range ev.Types {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	var best stability.Cause
	bestCount := 0
	for _, tag := range order {
		if counts[tag] > bestCount {
			best = tag
			bestCount = counts[tag]
		}
	}
	return best
}
