// Package track turns a raw, possibly corrupt, possibly huge chronological
// list of GPS fixes into a trustworthy, bounded-size route.
//
// The pass is staged: range filtering, coordinate repair, timestamp sort,
// sequential jump filtering, then uniform downsampling. Each stage feeds the
// next and reports how many points it rejected so callers can surface
// "X% of points filtered" without re-deriving it.
package track

import (
	"math"
	"sort"
	"time"

	"github.com/doback-data/stability.report/internal/config"
	"github.com/doback-data/stability.report/internal/geo"
	"github.com/doback-data/stability.report/internal/telemetry"
)

// Config controls the sanitization pass.
type Config struct {
	// MaxJumpMeters rejects any point this far from the last accepted one.
	MaxJumpMeters float64

	// ShortJumpMeters and ShortJumpWindow together reject points that moved
	// too far in too little time.
	ShortJumpMeters float64
	ShortJumpWindow time.Duration

	// MaxImpliedSpeedKmh rejects points whose implied speed versus the last
	// accepted point exceeds this threshold.
	MaxImpliedSpeedKmh float64

	// MaxPoints bounds the output size; longer tracks are uniformly
	// downsampled. Must be at least 1.
	MaxPoints int

	// Region enables the coordinate repair heuristic. Nil disables repair,
	// in which case out-of-range components simply drop the sample.
	Region *RegionDefaults
}

// RegionDefaults describes the fleet's operating region for the coordinate
// repair heuristic. The heuristic pattern-matches decimal digit shapes to
// guess a corrupted GPS component; it is a known fragile hack kept for
// parity with the historical processing chain, which is why it is carried
// as data here instead of being hard-coded.
type RegionDefaults struct {
	// Latitude and Longitude are the expected regional values; their integer
	// parts are spliced onto truncated components.
	Latitude  float64
	Longitude float64

	// FallbackLatitude and FallbackLongitude substitute components that are
	// wildly outside any plausible range and cannot be repaired.
	FallbackLatitude  float64
	FallbackLongitude float64
}

// DefaultConfig returns the sanitizer configuration used in production.
func DefaultConfig() Config {
	return FromTuning(config.EmptyTuningConfig())
}

// FromTuning builds a sanitizer Config from a loaded TuningConfig.
func FromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MaxJumpMeters:      cfg.GetMaxJumpMeters(),
		ShortJumpMeters:    cfg.GetShortJumpMeters(),
		ShortJumpWindow:    time.Duration(cfg.GetShortJumpWindowSec() * float64(time.Second)),
		MaxImpliedSpeedKmh: cfg.GetMaxImpliedSpeedKmh(),
		MaxPoints:          cfg.GetMaxTrackPoints(),
		Region: &RegionDefaults{
			Latitude:          cfg.GetRegionLatitude(),
			Longitude:         cfg.GetRegionLongitude(),
			FallbackLatitude:  cfg.GetFallbackLatitude(),
			FallbackLongitude: cfg.GetFallbackLongitude(),
		},
	}
}

// Stats reports what the sanitization pass did, per stage.
type Stats struct {
	Input             int `json:"input"`
	DroppedOutOfRange int `json:"dropped_out_of_range"`
	Repaired          int `json:"repaired"`
	Substituted       int `json:"substituted"`
	DroppedJump       int `json:"dropped_jump"`
	Downsampled       int `json:"downsampled"` // points removed by the budget pass
	Kept              int `json:"kept"`
}

// Sanitize cleans a raw positional track. It never fails: a session with
// zero valid points returns an empty track plus full rejection counts.
// Input order is not trusted; the output is sorted by timestamp ascending.
func Sanitize(samples []telemetry.PositionalSample, cfg Config) ([]telemetry.PositionalSample, Stats) {
	stats := Stats{Input: len(samples)}
	if cfg.MaxPoints < 1 {
		cfg.MaxPoints = 1
	}
	if len(samples) == 0 {
		return []telemetry.PositionalSample{}, stats
	}

	// Stage a+b: drop non-finite components, repair the repairable, drop
	// whatever remains out of range.
	valid := make([]telemetry.PositionalSample, 0, len(samples))
	for _, s := range samples {
		if !finite(s.Latitude) || !finite(s.Longitude) {
			stats.DroppedOutOfRange++
			continue
		}

		lat, lon := s.Latitude, s.Longitude
		if cfg.Region != nil {
			var repaired, substituted bool
			lat, repaired, substituted = repairComponent(lat, cfg.Region.Latitude, cfg.Region.FallbackLatitude, 90)
			if repaired {
				stats.Repaired++
			}
			if substituted {
				stats.Substituted++
			}
			lon, repaired, substituted = repairComponent(lon, cfg.Region.Longitude, cfg.Region.FallbackLongitude, 180)
			if repaired {
				stats.Repaired++
			}
			if substituted {
				stats.Substituted++
			}
		}

		if !geo.ValidLatLon(lat, lon) {
			stats.DroppedOutOfRange++
			continue
		}

		s.Latitude, s.Longitude = lat, lon
		valid = append(valid, s)
	}

	// Stage c: sort by timestamp ascending.
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})

	// Stage d: sequential jump filter against the last ACCEPTED sample, so
	// one bad fix does not drag the reference point along with it.
	accepted := make([]telemetry.PositionalSample, 0, len(valid))
	for _, s := range valid {
		if len(accepted) == 0 {
			accepted = append(accepted, s)
			continue
		}
		last := accepted[len(accepted)-1]
		a := geo.LatLon{Lat: last.Latitude, Lon: last.Longitude}
		b := geo.LatLon{Lat: s.Latitude, Lon: s.Longitude}
		dist := geo.DistanceMeters(a, b)
		elapsed := s.Timestamp.Sub(last.Timestamp)
		speed := geo.ImpliedSpeedKmh(a, b, elapsed)

		switch {
		case dist > cfg.MaxJumpMeters:
			stats.DroppedJump++
		case dist > cfg.ShortJumpMeters && elapsed < cfg.ShortJumpWindow:
			stats.DroppedJump++
		case speed > cfg.MaxImpliedSpeedKmh:
			stats.DroppedJump++
		default:
			accepted = append(accepted, s)
		}
	}

	// Stage e: uniform downsampling to the point budget. Deterministic:
	// keep every ceil(n/budget)-th sample.
	out := accepted
	if len(accepted) > cfg.MaxPoints {
		stride := (len(accepted) + cfg.MaxPoints - 1) / cfg.MaxPoints
		out = make([]telemetry.PositionalSample, 0, cfg.MaxPoints)
		for i := 0; i < len(accepted); i += stride {
			out = append(out, accepted[i])
		}
		stats.Downsampled = len(accepted) - len(out)
	}

	stats.Kept = len(out)
	return out, stats
}

// repairComponent applies the magnitude-splice heuristic to one coordinate
// component. Truncated values (fraction only, e.g. 0.4168 where the region
// sits at 40.x) get the region's integer part spliced back on. Values
// shifted left of the decimal point (e.g. 4041.68) are shifted back; if the
// result still does not land near the region, the fixed regional fallback
// is substituted.
func repairComponent(v, regional, fallback, limit float64) (out float64, repaired, substituted bool) {
	if v >= -limit && v <= limit {
		if math.Abs(v) >= 1 || regional == 0 {
			return v, false, false
		}
		// Truncated decimal: splice the regional integer part.
		intPart := math.Trunc(regional)
		out = intPart + math.Copysign(math.Abs(v)-math.Trunc(math.Abs(v)), intPart)
		if intPart == 0 {
			out = v
			return out, false, false
		}
		return out, true, false
	}

	// Shifted decimal: walk the value right of the decimal point until it
	// lands on the regional magnitude; substitute the fallback if it never
	// does.
	shifted := v
	for i := 0; i < 8 && math.Abs(shifted) > limit; i++ {
		shifted /= 10
	}
	for i := 0; i < 3 && math.Abs(shifted) <= limit; i++ {
		if math.Trunc(shifted) == math.Trunc(regional) {
			return shifted, true, false
		}
		shifted /= 10
	}
	return fallback, false, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
