// Package telemetry defines the shared sample types exchanged between the
// ingestion, sanitization, classification and clustering stages.
//
// Samples are produced by the upstream session parser and consumed
// read-only; nothing in this package mutates a sample after construction.
package telemetry

import (
	"math"
	"time"
)

// Sample is one time-stamped reading from the vehicle's stability unit.
// Orientation is in degrees, angular rates in deg/s, accelerations in g.
type Sample struct {
	Timestamp time.Time

	// Orientation (degrees)
	Roll  float64
	Pitch float64
	Yaw   float64

	// Angular rates (deg/s). GZ is the yaw rate.
	GX float64
	GY float64
	GZ float64

	// Accelerations (g). AY is the lateral axis.
	AX float64
	AY float64
	AZ float64

	// AccMag is the derived acceleration vector magnitude.
	AccMag float64

	// SI is the stability index in [0,1]; lower means less stable.
	SI float64

	// Optional position and speed, present when the session carried GPS.
	Lat   *float64
	Lon   *float64
	Speed *float64 // km/h

	// Optional CAN bus snapshot taken at the same instant.
	CAN *CANSnapshot
}

// CANSnapshot captures the CAN bus state at a sample's instant.
type CANSnapshot struct {
	SpeedKmh float64 `json:"speed_kmh"`
	RPM      float64 `json:"rpm"`
	BeaconOn bool    `json:"beacon_on"`
}

// PositionalSample is one GPS fix. Speed, heading and altitude are
// optional; nil means the receiver did not report them.
type PositionalSample struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Speed     *float64 // km/h
	Heading   *float64 // degrees
	Altitude  *float64 // meters
}

// AccelMagnitude computes the acceleration vector magnitude in g.
func AccelMagnitude(ax, ay, az float64) float64 {
	return math.Sqrt(ax*ax + ay*ay + az*az)
}
