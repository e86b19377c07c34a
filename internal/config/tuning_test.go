package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/doback-data/stability.report/internal/testutil"
)

func TestEmptyConfigReturnsDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetMaxJumpMeters(); got != DefaultMaxJumpMeters {
		t.Errorf("GetMaxJumpMeters = %v, want %v", got, DefaultMaxJumpMeters)
	}
	if got := cfg.GetMaxTrackPoints(); got != DefaultMaxTrackPoints {
		t.Errorf("GetMaxTrackPoints = %v, want %v", got, DefaultMaxTrackPoints)
	}
	if got := cfg.GetCriticalBelowPct(); got != DefaultCriticalBelowPct {
		t.Errorf("GetCriticalBelowPct = %v, want %v", got, DefaultCriticalBelowPct)
	}
	if got := cfg.GetClusterProximityDeg(); got != DefaultClusterProximityDeg {
		t.Errorf("GetClusterProximityDeg = %v, want %v", got, DefaultClusterProximityDeg)
	}
	if got := cfg.GetClusterMinEvents(); got != DefaultClusterMinEvents {
		t.Errorf("GetClusterMinEvents = %v, want %v", got, DefaultClusterMinEvents)
	}
}

func TestLoadTuningConfig_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	content := `{"max_jump_meters": 1500, "cluster_min_events": 5}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadTuningConfig(path)
	testutil.AssertNoError(t, err)

	if got := cfg.GetMaxJumpMeters(); got != 1500 {
		t.Errorf("GetMaxJumpMeters = %v, want 1500", got)
	}
	if got := cfg.GetClusterMinEvents(); got != 5 {
		t.Errorf("GetClusterMinEvents = %v, want 5", got)
	}
	// Untouched fields keep defaults.
	if got := cfg.GetMaxImpliedSpeedKmh(); got != DefaultMaxImpliedSpeedKmh {
		t.Errorf("GetMaxImpliedSpeedKmh = %v, want default", got)
	}
}

func TestLoadTuningConfig_RejectsNonJSONExtension(t *testing.T) {
	_, err := LoadTuningConfig("/etc/passwd")
	testutil.AssertError(t, err)
}

func TestLoadTuningConfig_MissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	testutil.AssertError(t, err)
}

func TestValidate(t *testing.T) {
	neg := -1.0
	zero := 0
	badBand := 60.0
	badLat := 120.0

	tests := []struct {
		name string
		cfg  TuningConfig
		ok   bool
	}{
		{"empty is valid", TuningConfig{}, true},
		{"negative threshold", TuningConfig{MaxJumpMeters: &neg}, false},
		{"zero min events", TuningConfig{ClusterMinEvents: &zero}, false},
		{"bands out of order", TuningConfig{CriticalBelowPct: &badBand}, false},
		{"latitude out of range", TuningConfig{RegionLatitude: &badLat}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
