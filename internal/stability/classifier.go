// Package stability walks a chronological sensor sample stream and emits
// classified stability events: a severity band derived from the stability
// index plus a probable cause attributed from the vehicle dynamics.
package stability

import (
	"fmt"
	"math"
	"time"

	"github.com/doback-data/stability.report/internal/config"
	"github.com/doback-data/stability.report/internal/telemetry"
)

// Level is the severity band of an event.
type Level string

const (
	LevelCritical Level = "critical"
	LevelDanger   Level = "danger"
	LevelModerate Level = "moderate"

	// LevelNone marks point-of-interest events that carry no severity band.
	LevelNone Level = ""
)

// Cause tags the probable cause of an event. The tags are kept in the
// fleet's original Spanish vocabulary because downstream reporting and
// operator training material use them verbatim.
type Cause string

const (
	CausePendienteLateral  Cause = "pendiente_lateral"  // lateral slope
	CauseCurvaBrusca       Cause = "curva_brusca"       // sharp turn
	CauseManiobraBrusca    Cause = "maniobra_brusca"    // harsh maneuver
	CauseTerrenoIrregular  Cause = "terreno_irregular"  // rough terrain
	CausePerdidaAdherencia Cause = "perdida_adherencia" // traction loss
	CauseSinCausaClara     Cause = "sin_causa_clara"    // no clear cause

	// Point-of-interest tags, emitted without a severity band.
	CauseGiroEstable Cause = "giro_estable" // sustained stable turn
	CauseCambioCarga Cause = "cambio_carga" // load shift
)

// Event is one classified stability event. Immutable once created; temporal
// deduplication is the clustering stage's job, not this one's.
type Event struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Lat        float64                `json:"lat"`
	Lon        float64                `json:"lon"`
	Level      Level                  `json:"level,omitempty"`
	Percentage float64                `json:"percentage"`
	Types      []Cause                `json:"types"`
	Values     map[string]float64     `json:"values"`
	CAN        *telemetry.CANSnapshot `json:"can,omitempty"`
}

// Thresholds holds the classifier's decision constants.
type Thresholds struct {
	CriticalBelowPct float64 // si% below this is critical
	DangerBelowPct   float64 // si% below this is danger
	ModerateBelowPct float64 // si% below this is moderate

	RollLimitDeg      float64 // roll separating slope-dominated causes
	LateralCalmG      float64 // lateral accel considered calm
	LateralSharpG     float64 // lateral accel considered a sharp turn
	YawRateSharp      float64 // yaw rate confirming a sharp turn
	YawRateDerivLimit float64 // |d(yaw rate)/dt| for harsh maneuver
	LateralDerivLimit float64 // |d(lateral accel)/dt| for harsh maneuver
	RollRateLimit     float64 // |d(roll)/dt| for rough terrain
	AdherenceResidual float64 // |yaw rate - ay/speed| for traction loss
	MinSpeedFloor     float64 // speed floor for the adherence division

	// Point-of-interest rules.
	LoadShiftRollDeg float64 // |Δroll| marking a load shift
	LoadShiftCalmG   float64 // lateral accel ceiling during a load shift
}

// DefaultThresholds returns the classifier thresholds used in production.
func DefaultThresholds() Thresholds {
	return ThresholdsFromTuning(config.EmptyTuningConfig())
}

// ThresholdsFromTuning builds Thresholds from a loaded TuningConfig.
func ThresholdsFromTuning(cfg *config.TuningConfig) Thresholds {
	return Thresholds{
		CriticalBelowPct:  cfg.GetCriticalBelowPct(),
		DangerBelowPct:    cfg.GetDangerBelowPct(),
		ModerateBelowPct:  cfg.GetModerateBelowPct(),
		RollLimitDeg:      cfg.GetRollLimitDeg(),
		LateralCalmG:      cfg.GetLateralCalmG(),
		LateralSharpG:     cfg.GetLateralSharpG(),
		YawRateSharp:      cfg.GetYawRateSharp(),
		YawRateDerivLimit: cfg.GetYawRateDerivLimit(),
		LateralDerivLimit: cfg.GetLateralDerivLimit(),
		RollRateLimit:     cfg.GetRollRateLimit(),
		AdherenceResidual: cfg.GetAdherenceResidual(),
		MinSpeedFloor:     cfg.GetMinSpeedFloor(),
		LoadShiftRollDeg:  3.0,
		LoadShiftCalmG:    0.3,
	}
}

// Classify walks the sample stream in order and emits zero or more events.
// Multiple qualifying samples in immediate succession are NOT merged here.
func Classify(samples []telemetry.Sample, th Thresholds) []Event {
	events := []Event{}

	for i := range samples {
		s := samples[i]
		var prev *telemetry.Sample
		if i > 0 {
			prev = &samples[i-1]
		}

		pct := percentage(s.SI)
		level := severityLevel(pct, th)

		if level != LevelNone {
			cause, values := attributeCause(s, prev, th)
			events = append(events, newEvent(s, level, pct, cause, values))
			continue
		}

		// No severity band; the sample may still mark a point of interest.
		if cause, values, ok := pointOfInterest(s, prev, th); ok {
			events = append(events, newEvent(s, LevelNone, pct, cause, values))
		}
	}

	return events
}

// percentage expresses the stability index on the 0-100 scale. Sources that
// already report percentages (si > 1) pass through unscaled.
func percentage(si float64) float64 {
	if si > 1 {
		return si
	}
	return si * 100
}

func severityLevel(pct float64, th Thresholds) Level {
	switch {
	case pct < th.CriticalBelowPct:
		return LevelCritical
	case pct < th.DangerBelowPct:
		return LevelDanger
	case pct < th.ModerateBelowPct:
		return LevelModerate
	default:
		return LevelNone
	}
}

// attributeCause runs the fixed cause decision tree, first match wins.
func attributeCause(s telemetry.Sample, prev *telemetry.Sample, th Thresholds) (Cause, map[string]float64) {
	roll := math.Abs(s.Roll)
	ay := math.Abs(s.AY)
	yawRate := math.Abs(s.GZ)

	// 1. Lateral slope: leaned over but not cornering.
	if roll > th.RollLimitDeg && ay < th.LateralCalmG {
		return CausePendienteLateral, map[string]float64{"roll": s.Roll, "ay": s.AY}
	}

	// 2. Sharp turn: hard lateral load with yaw, on level chassis.
	if ay > th.LateralSharpG && yawRate > th.YawRateSharp && roll <= th.RollLimitDeg {
		return CauseCurvaBrusca, map[string]float64{"roll": s.Roll, "ay": s.AY, "yaw_rate": s.GZ}
	}

	dt := 0.0
	if prev != nil {
		dt = s.Timestamp.Sub(prev.Timestamp).Seconds()
	}

	// 3. Harsh maneuver: sudden change in yaw rate or lateral load.
	if prev != nil && dt > 0 && roll <= th.RollLimitDeg {
		yawDeriv := math.Abs(s.GZ-prev.GZ) / dt
		ayDeriv := math.Abs(s.AY-prev.AY) / dt
		if yawDeriv > th.YawRateDerivLimit || ayDeriv > th.LateralDerivLimit {
			return CauseManiobraBrusca, map[string]float64{
				"roll": s.Roll, "yaw_rate_deriv": yawDeriv, "ay_deriv": ayDeriv,
			}
		}
	}

	// 4. Rough terrain: fast roll changes without lateral load.
	if prev != nil && dt > 0 {
		rollDeriv := math.Abs(s.Roll-prev.Roll) / dt
		if rollDeriv > th.RollRateLimit && ay < th.LateralCalmG {
			return CauseTerrenoIrregular, map[string]float64{"roll_deriv": rollDeriv, "ay": s.AY}
		}
	}

	// 5. Traction loss: yaw rate disagrees with the turn the lateral load
	// implies at this speed.
	speed := th.MinSpeedFloor
	if s.Speed != nil && *s.Speed > speed {
		speed = *s.Speed
	} else if s.CAN != nil && s.CAN.SpeedKmh > speed {
		speed = s.CAN.SpeedKmh
	}
	residual := math.Abs(s.GZ - s.AY/speed)
	if residual > th.AdherenceResidual {
		return CausePerdidaAdherencia, map[string]float64{
			"yaw_rate": s.GZ, "ay": s.AY, "speed": speed, "residual": residual,
		}
	}

	// 6. No clear cause.
	return CauseSinCausaClara, map[string]float64{"roll": s.Roll, "ay": s.AY, "yaw_rate": s.GZ}
}

// pointOfInterest evaluates the low-priority annotation rules for samples
// inside the stable band.
func pointOfInterest(s telemetry.Sample, prev *telemetry.Sample, th Thresholds) (Cause, map[string]float64, bool) {
	roll := math.Abs(s.Roll)
	ay := math.Abs(s.AY)

	// Stable turn: meaningful but controlled lateral load on level chassis.
	if roll <= th.RollLimitDeg && ay > th.LateralCalmG && ay <= th.LateralSharpG {
		return CauseGiroEstable, map[string]float64{"roll": s.Roll, "ay": s.AY}, true
	}

	// Load shift: roll swings between consecutive samples without cornering.
	if prev != nil {
		dRoll := math.Abs(s.Roll - prev.Roll)
		if dRoll > th.LoadShiftRollDeg && ay < th.LoadShiftCalmG {
			return CauseCambioCarga, map[string]float64{"roll_delta": dRoll, "ay": s.AY}, true
		}
	}

	return "", nil, false
}

func newEvent(s telemetry.Sample, level Level, pct float64, cause Cause, values map[string]float64) Event {
	var lat, lon float64
	if s.Lat != nil {
		lat = *s.Lat
	}
	if s.Lon != nil {
		lon = *s.Lon
	}

	return Event{
		ID:         eventID(s.Timestamp, lat, lon, cause),
		Timestamp:  s.Timestamp,
		Lat:        lat,
		Lon:        lon,
		Level:      level,
		Percentage: pct,
		Types:      []Cause{cause},
		Values:     values,
		CAN:        s.CAN,
	}
}

// eventID builds the deterministic event identity from timestamp, position
// and primary cause, so re-running a session yields the same IDs.
func eventID(ts time.Time, lat, lon float64, cause Cause) string {
	return fmt.Sprintf("%d_%.6f_%.6f_%s", ts.UnixMilli(), lat, lon, cause)
}
