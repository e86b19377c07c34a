package track

import (
	"math"
	"testing"
	"time"

	"github.com/doback-data/stability.report/internal/telemetry"
)

var t0 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func point(tsOffset time.Duration, lat, lon float64) telemetry.PositionalSample {
	return telemetry.PositionalSample{
		Timestamp: t0.Add(tsOffset),
		Latitude:  lat,
		Longitude: lon,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Region = nil // repair heuristic exercised separately
	return cfg
}

func TestSanitize_EmptyInput(t *testing.T) {
	out, stats := Sanitize(nil, testConfig())
	if len(out) != 0 {
		t.Errorf("expected empty track, got %d points", len(out))
	}
	if stats.Input != 0 || stats.Kept != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestSanitize_DropsInvalidCoordinates(t *testing.T) {
	samples := []telemetry.PositionalSample{
		point(0, 40.0, -3.0),
		point(time.Second, math.NaN(), -3.0),
		point(2*time.Second, 40.0, math.Inf(1)),
		point(3*time.Second, 91.0, -3.0),
		point(4*time.Second, 40.0001, -3.0),
	}

	out, stats := Sanitize(samples, testConfig())
	if len(out) != 2 {
		t.Fatalf("expected 2 kept points, got %d", len(out))
	}
	if stats.DroppedOutOfRange != 3 {
		t.Errorf("DroppedOutOfRange = %d, want 3", stats.DroppedOutOfRange)
	}
}

func TestSanitize_SortsByTimestamp(t *testing.T) {
	samples := []telemetry.PositionalSample{
		point(2*time.Second, 40.0002, -3.0),
		point(0, 40.0, -3.0),
		point(time.Second, 40.0001, -3.0),
	}

	out, _ := Sanitize(samples, testConfig())
	if len(out) != 3 {
		t.Fatalf("expected 3 points, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.Before(out[i-1].Timestamp) {
			t.Fatalf("output not sorted at %d", i)
		}
	}
}

func TestSanitize_RejectsLongJump(t *testing.T) {
	// Two points ~3300 m apart, 1 s apart: distance > 2000 m rejects the
	// second one.
	samples := []telemetry.PositionalSample{
		point(0, 40.0, -3.0),
		point(time.Second, 40.03, -3.0),
	}

	out, stats := Sanitize(samples, testConfig())
	if len(out) != 1 {
		t.Fatalf("expected 1 kept point, got %d", len(out))
	}
	if stats.DroppedJump != 1 {
		t.Errorf("DroppedJump = %d, want 1", stats.DroppedJump)
	}
}

func TestSanitize_KeepsSlowNearbyPoints(t *testing.T) {
	// Two points ~1 m apart, 100 s apart: no rule violated, both kept.
	samples := []telemetry.PositionalSample{
		point(0, 40.0, -3.0),
		point(100*time.Second, 40.00001, -3.0),
	}

	out, stats := Sanitize(samples, testConfig())
	if len(out) != 2 {
		t.Fatalf("expected 2 kept points, got %d (stats %+v)", len(out), stats)
	}
}

func TestSanitize_RejectsShortWindowJump(t *testing.T) {
	// ~670 m in 5 s: below the absolute limit but over 500 m inside the
	// 10 s window.
	samples := []telemetry.PositionalSample{
		point(0, 40.0, -3.0),
		point(5*time.Second, 40.006, -3.0),
	}

	out, stats := Sanitize(samples, testConfig())
	if len(out) != 1 {
		t.Fatalf("expected 1 kept point, got %d", len(out))
	}
	if stats.DroppedJump != 1 {
		t.Errorf("DroppedJump = %d, want 1", stats.DroppedJump)
	}
}

func TestSanitize_RejectsImpossibleSpeed(t *testing.T) {
	// ~1100 m in 15 s ≈ 267 km/h: under both distance rules but over the
	// 200 km/h implied speed limit.
	samples := []telemetry.PositionalSample{
		point(0, 40.0, -3.0),
		point(15*time.Second, 40.01, -3.0),
	}

	out, stats := Sanitize(samples, testConfig())
	if len(out) != 1 {
		t.Fatalf("expected 1 kept point, got %d", len(out))
	}
	if stats.DroppedJump != 1 {
		t.Errorf("DroppedJump = %d, want 1", stats.DroppedJump)
	}
}

func TestSanitize_ComparesAgainstLastAccepted(t *testing.T) {
	// A single wild outlier must not drag the reference point: the sample
	// after it is judged against the last ACCEPTED point and kept.
	samples := []telemetry.PositionalSample{
		point(0, 40.0, -3.0),
		point(time.Second, 40.5, -3.0), // outlier, rejected
		point(2*time.Second, 40.0001, -3.0),
	}

	out, stats := Sanitize(samples, testConfig())
	if len(out) != 2 {
		t.Fatalf("expected 2 kept points, got %d", len(out))
	}
	if stats.DroppedJump != 1 {
		t.Errorf("DroppedJump = %d, want 1", stats.DroppedJump)
	}
}

func TestSanitize_DownsamplesToBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPoints = 100

	samples := make([]telemetry.PositionalSample, 1000)
	for i := range samples {
		// One fix per 10 s, creeping north slowly.
		samples[i] = point(time.Duration(i)*10*time.Second, 40.0+float64(i)*0.00001, -3.0)
	}

	out, stats := Sanitize(samples, cfg)
	if len(out) > cfg.MaxPoints {
		t.Fatalf("output %d exceeds budget %d", len(out), cfg.MaxPoints)
	}
	if stats.Downsampled != 1000-len(out) {
		t.Errorf("Downsampled = %d, want %d", stats.Downsampled, 1000-len(out))
	}
	if out[0].Timestamp != samples[0].Timestamp {
		t.Error("first sample must survive downsampling")
	}
}

func TestSanitize_RepairsTruncatedLatitude(t *testing.T) {
	cfg := DefaultConfig() // region defaults enabled: lat≈40, lon≈-3

	samples := []telemetry.PositionalSample{
		point(0, 40.4168, -3.7038),
		point(time.Second, 0.41685, -3.70381), // latitude lost its integer part
	}

	out, stats := Sanitize(samples, cfg)
	if len(out) != 2 {
		t.Fatalf("expected repaired point to survive, got %d points (stats %+v)", len(out), stats)
	}
	if stats.Repaired != 1 {
		t.Errorf("Repaired = %d, want 1", stats.Repaired)
	}
	if got := out[1].Latitude; math.Abs(got-40.41685) > 1e-9 {
		t.Errorf("repaired latitude = %v, want 40.41685", got)
	}
}

func TestSanitize_SubstitutesWildValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxJumpMeters = 1e9 // keep the jump filter out of this test
	cfg.MaxImpliedSpeedKmh = 1e9
	cfg.ShortJumpMeters = 1e9

	samples := []telemetry.PositionalSample{
		point(0, 40.4168, -3.7038),
		point(time.Hour, 123456.789, -3.7038), // no decimal shift lands near 40.x
	}

	out, stats := Sanitize(samples, cfg)
	if len(out) != 2 {
		t.Fatalf("expected substituted point to survive, got %d", len(out))
	}
	if stats.Substituted != 1 {
		t.Errorf("Substituted = %d, want 1", stats.Substituted)
	}
	if got := out[1].Latitude; got != cfg.Region.FallbackLatitude {
		t.Errorf("substituted latitude = %v, want %v", got, cfg.Region.FallbackLatitude)
	}
}

func TestSanitize_RepairsShiftedLongitude(t *testing.T) {
	cfg := DefaultConfig()

	samples := []telemetry.PositionalSample{
		point(0, 40.4168, -3.7038),
		point(time.Second, 40.41681, -370.38), // longitude shifted two places
	}

	out, stats := Sanitize(samples, cfg)
	if len(out) != 2 {
		t.Fatalf("expected repaired point to survive, got %d (stats %+v)", len(out), stats)
	}
	if stats.Repaired != 1 {
		t.Errorf("Repaired = %d, want 1", stats.Repaired)
	}
	if got := out[1].Longitude; math.Abs(got-(-3.7038)) > 1e-9 {
		t.Errorf("repaired longitude = %v, want -3.7038", got)
	}
}
