package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadTuningConfig_Partial(t *testing.T) {
	path := writeTempConfig(t, `{"curvature_in": 0.01, "lock_min_samples": 3}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if got := cfg.GetCurvatureIn(); got != 0.01 {
		t.Errorf("GetCurvatureIn = %v, want 0.01", got)
	}
	if got := cfg.GetLockMinSamples(); got != 3 {
		t.Errorf("GetLockMinSamples = %v, want 3", got)
	}
	// Omitted fields fall back to defaults.
	if got := cfg.GetCurvatureOut(); got != 0.004 {
		t.Errorf("GetCurvatureOut = %v, want default 0.004", got)
	}
	if got := cfg.GetQueueCapacity(); got != 8 {
		t.Errorf("GetQueueCapacity = %v, want default 8", got)
	}
}

func TestLoadTuningConfig_RejectsNonJSON(t *testing.T) {
	if _, err := LoadTuningConfig("tuning.yaml"); err == nil {
		t.Error("expected error for non-.json extension")
	}
}

func TestLoadTuningConfig_RejectsMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig("does-not-exist.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_HysteresisOrdering(t *testing.T) {
	path := writeTempConfig(t, `{"curvature_in": 0.004, "curvature_out": 0.006}`)
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("expected error when curvature_out >= curvature_in")
	}
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"brake threshold above 1", `{"brake_threshold": 1.5}`},
		{"negative brake threshold", `{"brake_threshold": -0.1}`},
		{"lock_brake_min above 1", `{"lock_brake_min": 2.0}`},
		{"zero lock samples", `{"lock_min_samples": 0}`},
		{"zero resample step", `{"resample_step_meters": 0}`},
		{"zero queue capacity", `{"queue_capacity": 0}`},
		{"negative poll hz", `{"poll_hz": -60}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, tt.json)
			if _, err := LoadTuningConfig(path); err == nil {
				t.Errorf("expected validation error for %s", tt.json)
			}
		})
	}
}

func TestDefaults_MatchCanonicalFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Skipf("defaults file not reachable: %v", err)
	}

	empty := EmptyTuningConfig()
	if cfg.GetCurvatureIn() != empty.GetCurvatureIn() {
		t.Errorf("curvature_in default drift: file=%v code=%v", cfg.GetCurvatureIn(), empty.GetCurvatureIn())
	}
	if cfg.GetLockCooldownMs() != empty.GetLockCooldownMs() {
		t.Errorf("lock_cooldown_ms default drift: file=%v code=%v", cfg.GetLockCooldownMs(), empty.GetLockCooldownMs())
	}
	if cfg.GetBrakeLateThresholdM() != empty.GetBrakeLateThresholdM() {
		t.Errorf("brake_late_threshold_m default drift: file=%v code=%v",
			cfg.GetBrakeLateThresholdM(), empty.GetBrakeLateThresholdM())
	}
	if cfg.GetPollHz() != empty.GetPollHz() {
		t.Errorf("poll_hz default drift: file=%v code=%v", cfg.GetPollHz(), empty.GetPollHz())
	}
}
