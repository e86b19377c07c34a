// Package parse turns raw sensor file bytes into sample slices.
//
// This is collaborator-side glue, not part of the core pipeline contract:
// the sanitizer and classifier take plain sample slices and do not care
// where they came from. The line formats here match the onboard unit's
// semicolon-separated text dumps.
//
// GPS lines:         unixMillis;lat;lon[;speed[;heading[;altitude]]]
// ESTABILIDAD lines: unixMillis;roll;pitch;yaw;gx;gy;gz;ax;ay;az;si[;lat;lon;speed]
//
// Blank lines and lines starting with '#' are ignored. Malformed lines are
// skipped and counted, matching the core's unrecognized-input policy.
package parse

import (
	"strconv"
	"strings"
	"time"

	"github.com/doback-data/stability.report/internal/telemetry"
)

// GPS parses a GPS dump into positional samples. Returns the samples and
// the number of malformed lines skipped.
func GPS(data []byte) ([]telemetry.PositionalSample, int) {
	var out []telemetry.PositionalSample
	skipped := 0

	for _, line := range lines(data) {
		fields := strings.Split(line, ";")
		if len(fields) < 3 {
			skipped++
			continue
		}

		ts, err1 := strconv.ParseInt(fields[0], 10, 64)
		lat, err2 := strconv.ParseFloat(fields[1], 64)
		lon, err3 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			skipped++
			continue
		}

		s := telemetry.PositionalSample{
			Timestamp: time.UnixMilli(ts).UTC(),
			Latitude:  lat,
			Longitude: lon,
		}
		s.Speed = optionalField(fields, 3)
		s.Heading = optionalField(fields, 4)
		s.Altitude = optionalField(fields, 5)
		out = append(out, s)
	}

	return out, skipped
}

// Stability parses an ESTABILIDAD dump into telemetry samples. Returns the
// samples and the number of malformed lines skipped. The acceleration
// magnitude is derived here so downstream stages never recompute it.
func Stability(data []byte) ([]telemetry.Sample, int) {
	var out []telemetry.Sample
	skipped := 0

	for _, line := range lines(data) {
		fields := strings.Split(line, ";")
		if len(fields) < 11 {
			skipped++
			continue
		}

		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			skipped++
			continue
		}

		vals := make([]float64, 10)
		ok := true
		for i := 0; i < 10; i++ {
			vals[i], err = strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				ok = false
				break
			}
		}
		if !ok {
			skipped++
			continue
		}

		s := telemetry.Sample{
			Timestamp: time.UnixMilli(ts).UTC(),
			Roll:      vals[0],
			Pitch:     vals[1],
			Yaw:       vals[2],
			GX:        vals[3],
			GY:        vals[4],
			GZ:        vals[5],
			AX:        vals[6],
			AY:        vals[7],
			AZ:        vals[8],
			SI:        vals[9],
		}
		s.AccMag = telemetry.AccelMagnitude(s.AX, s.AY, s.AZ)
		s.Lat = optionalField(fields, 11)
		s.Lon = optionalField(fields, 12)
		s.Speed = optionalField(fields, 13)
		out = append(out, s)
	}

	return out, skipped
}

func lines(data []byte) []string {
	raw := strings.Split(string(data), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		out = append(out, l)
	}
	return out
}

func optionalField(fields []string, idx int) *float64 {
	if idx >= len(fields) || strings.TrimSpace(fields[idx]) == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[idx]), 64)
	if err != nil {
		return nil
	}
	return &v
}
