// Package config loads tuning parameters for the stability pipeline.
//
// The schema uses pointer fields so a partial JSON file only overrides the
// values it names; the Get* accessors fall back to the built-in defaults for
// everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Default tuning values. These match the behavior of the fleet's original
// processing chain and are overridden per deployment via a JSON file.
const (
	DefaultMaxJumpMeters      = 2000.0
	DefaultShortJumpMeters    = 500.0
	DefaultShortJumpWindowSec = 10.0
	DefaultMaxImpliedSpeedKmh = 200.0
	DefaultMaxTrackPoints     = 2000

	DefaultRegionLatitude    = 40.0
	DefaultRegionLongitude   = -3.0
	DefaultFallbackLatitude  = 40.4168
	DefaultFallbackLongitude = -3.7038

	DefaultCriticalBelowPct  = 10.0
	DefaultDangerBelowPct    = 30.0
	DefaultModerateBelowPct  = 50.0
	DefaultRollLimitDeg      = 5.0
	DefaultLateralCalmG      = 0.5
	DefaultLateralSharpG     = 1.5
	DefaultYawRateSharp      = 0.1
	DefaultYawRateDerivLimit = 1.0
	DefaultLateralDerivLimit = 3.0
	DefaultRollRateLimit     = 20.0
	DefaultAdherenceResidual = 0.2
	DefaultMinSpeedFloor     = 0.1

	DefaultClusterProximityDeg = 0.001
	DefaultClusterMinEvents    = 3
)

// TuningConfig represents the root configuration for pipeline tuning.
// Fields omitted from the JSON file retain their defaults, so partial
// configs are safe.
type TuningConfig struct {
	// Track sanitizer params
	MaxJumpMeters      *float64 `json:"max_jump_meters,omitempty"`
	ShortJumpMeters    *float64 `json:"short_jump_meters,omitempty"`
	ShortJumpWindowSec *float64 `json:"short_jump_window_sec,omitempty"`
	MaxImpliedSpeedKmh *float64 `json:"max_implied_speed_kmh,omitempty"`
	MaxTrackPoints     *int     `json:"max_track_points,omitempty"`
	RegionLatitude     *float64 `json:"region_latitude,omitempty"`
	RegionLongitude    *float64 `json:"region_longitude,omitempty"`
	FallbackLatitude   *float64 `json:"fallback_latitude,omitempty"`
	FallbackLongitude  *float64 `json:"fallback_longitude,omitempty"`

	// Stability classifier params
	CriticalBelowPct  *float64 `json:"critical_below_pct,omitempty"`
	DangerBelowPct    *float64 `json:"danger_below_pct,omitempty"`
	ModerateBelowPct  *float64 `json:"moderate_below_pct,omitempty"`
	RollLimitDeg      *float64 `json:"roll_limit_deg,omitempty"`
	LateralCalmG      *float64 `json:"lateral_calm_g,omitempty"`
	LateralSharpG     *float64 `json:"lateral_sharp_g,omitempty"`
	YawRateSharp      *float64 `json:"yaw_rate_sharp,omitempty"`
	YawRateDerivLimit *float64 `json:"yaw_rate_deriv_limit,omitempty"`
	LateralDerivLimit *float64 `json:"lateral_deriv_limit,omitempty"`
	RollRateLimit     *float64 `json:"roll_rate_limit,omitempty"`
	AdherenceResidual *float64 `json:"adherence_residual,omitempty"`
	MinSpeedFloor     *float64 `json:"min_speed_floor,omitempty"`

	// Cluster aggregation params
	ClusterProximityDeg *float64 `json:"cluster_proximity_deg,omitempty"`
	ClusterMinEvents    *int     `json:"cluster_min_events,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset, so every
// accessor falls back to the defaults above.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all set values are usable by the pipeline.
func (c *TuningConfig) Validate() error {
	positives := map[string]*float64{
		"max_jump_meters":       c.MaxJumpMeters,
		"short_jump_meters":     c.ShortJumpMeters,
		"short_jump_window_sec": c.ShortJumpWindowSec,
		"max_implied_speed_kmh": c.MaxImpliedSpeedKmh,
		"roll_limit_deg":        c.RollLimitDeg,
		"lateral_calm_g":        c.LateralCalmG,
		"lateral_sharp_g":       c.LateralSharpG,
		"yaw_rate_sharp":        c.YawRateSharp,
		"yaw_rate_deriv_limit":  c.YawRateDerivLimit,
		"lateral_deriv_limit":   c.LateralDerivLimit,
		"roll_rate_limit":       c.RollRateLimit,
		"adherence_residual":    c.AdherenceResidual,
		"min_speed_floor":       c.MinSpeedFloor,
		"cluster_proximity_deg": c.ClusterProximityDeg,
	}
	for name, v := range positives {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, *v)
		}
	}

	if c.MaxTrackPoints != nil && *c.MaxTrackPoints < 1 {
		return fmt.Errorf("max_track_points must be at least 1, got %d", *c.MaxTrackPoints)
	}
	if c.ClusterMinEvents != nil && *c.ClusterMinEvents < 1 {
		return fmt.Errorf("cluster_min_events must be at least 1, got %d", *c.ClusterMinEvents)
	}

	// Severity bands must stay ordered: critical < danger < moderate.
	crit := c.GetCriticalBelowPct()
	danger := c.GetDangerBelowPct()
	moderate := c.GetModerateBelowPct()
	if crit >= danger || danger >= moderate {
		return fmt.Errorf("severity bands out of order: critical %v, danger %v, moderate %v", crit, danger, moderate)
	}

	if lat := c.RegionLatitude; lat != nil && (*lat < -90 || *lat > 90) {
		return fmt.Errorf("region_latitude out of range: %v", *lat)
	}
	if lon := c.RegionLongitude; lon != nil && (*lon < -180 || *lon > 180) {
		return fmt.Errorf("region_longitude out of range: %v", *lon)
	}

	return nil
}

func f64(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func i(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

// GetMaxJumpMeters returns the absolute jump rejection distance.
func (c *TuningConfig) GetMaxJumpMeters() float64 { return f64(c.MaxJumpMeters, DefaultMaxJumpMeters) }

// GetShortJumpMeters returns the short-window jump rejection distance.
func (c *TuningConfig) GetShortJumpMeters() float64 {
	return f64(c.ShortJumpMeters, DefaultShortJumpMeters)
}

// GetShortJumpWindowSec returns the short-window duration in seconds.
func (c *TuningConfig) GetShortJumpWindowSec() float64 {
	return f64(c.ShortJumpWindowSec, DefaultShortJumpWindowSec)
}

// GetMaxImpliedSpeedKmh returns the implied-speed rejection threshold.
func (c *TuningConfig) GetMaxImpliedSpeedKmh() float64 {
	return f64(c.MaxImpliedSpeedKmh, DefaultMaxImpliedSpeedKmh)
}

// GetMaxTrackPoints returns the downsampling point budget.
func (c *TuningConfig) GetMaxTrackPoints() int { return i(c.MaxTrackPoints, DefaultMaxTrackPoints) }

// GetRegionLatitude returns the expected regional latitude magnitude.
func (c *TuningConfig) GetRegionLatitude() float64 {
	return f64(c.RegionLatitude, DefaultRegionLatitude)
}

// GetRegionLongitude returns the expected regional longitude magnitude.
func (c *TuningConfig) GetRegionLongitude() float64 {
	return f64(c.RegionLongitude, DefaultRegionLongitude)
}

// GetFallbackLatitude returns the substitute latitude for unrepairable values.
func (c *TuningConfig) GetFallbackLatitude() float64 {
	return f64(c.FallbackLatitude, DefaultFallbackLatitude)
}

// GetFallbackLongitude returns the substitute longitude for unrepairable values.
func (c *TuningConfig) GetFallbackLongitude() float64 {
	return f64(c.FallbackLongitude, DefaultFallbackLongitude)
}

// GetCriticalBelowPct returns the critical severity band upper bound.
func (c *TuningConfig) GetCriticalBelowPct() float64 {
	return f64(c.CriticalBelowPct, DefaultCriticalBelowPct)
}

// GetDangerBelowPct returns the danger severity band upper bound.
func (c *TuningConfig) GetDangerBelowPct() float64 {
	return f64(c.DangerBelowPct, DefaultDangerBelowPct)
}

// GetModerateBelowPct returns the moderate severity band upper bound.
func (c *TuningConfig) GetModerateBelowPct() float64 {
	return f64(c.ModerateBelowPct, DefaultModerateBelowPct)
}

// GetRollLimitDeg returns the roll threshold separating slope causes.
func (c *TuningConfig) GetRollLimitDeg() float64 { return f64(c.RollLimitDeg, DefaultRollLimitDeg) }

// GetLateralCalmG returns the lateral acceleration considered calm.
func (c *TuningConfig) GetLateralCalmG() float64 { return f64(c.LateralCalmG, DefaultLateralCalmG) }

// GetLateralSharpG returns the lateral acceleration considered a sharp turn.
func (c *TuningConfig) GetLateralSharpG() float64 { return f64(c.LateralSharpG, DefaultLateralSharpG) }

// GetYawRateSharp returns the yaw rate threshold for sharp turns.
func (c *TuningConfig) GetYawRateSharp() float64 { return f64(c.YawRateSharp, DefaultYawRateSharp) }

// GetYawRateDerivLimit returns the yaw rate derivative limit for harsh maneuvers.
func (c *TuningConfig) GetYawRateDerivLimit() float64 {
	return f64(c.YawRateDerivLimit, DefaultYawRateDerivLimit)
}

// GetLateralDerivLimit returns the lateral acceleration derivative limit.
func (c *TuningConfig) GetLateralDerivLimit() float64 {
	return f64(c.LateralDerivLimit, DefaultLateralDerivLimit)
}

// GetRollRateLimit returns the roll derivative limit for rough terrain.
func (c *TuningConfig) GetRollRateLimit() float64 { return f64(c.RollRateLimit, DefaultRollRateLimit) }

// GetAdherenceResidual returns the yaw/lateral residual for traction loss.
func (c *TuningConfig) GetAdherenceResidual() float64 {
	return f64(c.AdherenceResidual, DefaultAdherenceResidual)
}

// GetMinSpeedFloor returns the minimum speed used for adherence division.
func (c *TuningConfig) GetMinSpeedFloor() float64 { return f64(c.MinSpeedFloor, DefaultMinSpeedFloor) }

// GetClusterProximityDeg returns the cluster proximity threshold in degrees.
func (c *TuningConfig) GetClusterProximityDeg() float64 {
	return f64(c.ClusterProximityDeg, DefaultClusterProximityDeg)
}

// GetClusterMinEvents returns the minimum member count for a hotspot.
func (c *TuningConfig) GetClusterMinEvents() int {
	return i(c.ClusterMinEvents, DefaultClusterMinEvents)
}
