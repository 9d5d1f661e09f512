package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Fields are pointers so a partial JSON file only overrides what it names;
// the Get* accessors supply compiled-in defaults for the rest.
type TuningConfig struct {
	// Track model builder params
	SmoothingWindowMeters *float64 `json:"smoothing_window_meters,omitempty"`
	CurvatureIn           *float64 `json:"curvature_in,omitempty"`
	CurvatureOut          *float64 `json:"curvature_out,omitempty"`
	MinCornerLengthMeters *float64 `json:"min_corner_length_meters,omitempty"`
	ClosureToleranceM     *float64 `json:"closure_tolerance_m,omitempty"`

	// Reference lap params
	ResampleStepMeters *float64 `json:"resample_step_meters,omitempty"`
	BrakeThreshold     *float64 `json:"brake_threshold,omitempty"`
	BrakeLookbackM     *float64 `json:"brake_lookback_m,omitempty"`

	// Position tracker params
	StartLineToleranceM *float64 `json:"start_line_tolerance_m,omitempty"`
	LapWrapBandM        *float64 `json:"lap_wrap_band_m,omitempty"`

	// Event engine params
	LockSlipThreshold *float64 `json:"lock_slip_threshold,omitempty"`
	LockBrakeMin      *float64 `json:"lock_brake_min,omitempty"`
	LockMinSamples    *int     `json:"lock_min_samples,omitempty"`

	// Cue rule params
	BrakeLateThresholdM *float64 `json:"brake_late_threshold_m,omitempty"`
	LockCooldownMs      *int     `json:"lock_cooldown_ms,omitempty"`

	// Pipeline params
	QueueCapacity *int     `json:"queue_capacity,omitempty"`
	PollHz        *float64 `json:"poll_hz,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
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

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/storage/sqlite/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.CurvatureIn != nil && c.CurvatureOut != nil {
		if *c.CurvatureOut >= *c.CurvatureIn {
			return fmt.Errorf("curvature_out (%f) must be below curvature_in (%f) for hysteresis",
				*c.CurvatureOut, *c.CurvatureIn)
		}
	}

	if c.BrakeThreshold != nil {
		if *c.BrakeThreshold < 0 || *c.BrakeThreshold > 1 {
			return fmt.Errorf("brake_threshold must be between 0 and 1, got %f", *c.BrakeThreshold)
		}
	}

	if c.LockBrakeMin != nil {
		if *c.LockBrakeMin < 0 || *c.LockBrakeMin > 1 {
			return fmt.Errorf("lock_brake_min must be between 0 and 1, got %f", *c.LockBrakeMin)
		}
	}

	if c.LockMinSamples != nil && *c.LockMinSamples < 1 {
		return fmt.Errorf("lock_min_samples must be at least 1, got %d", *c.LockMinSamples)
	}

	if c.ResampleStepMeters != nil && *c.ResampleStepMeters <= 0 {
		return fmt.Errorf("resample_step_meters must be positive, got %f", *c.ResampleStepMeters)
	}

	if c.QueueCapacity != nil && *c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", *c.QueueCapacity)
	}

	if c.PollHz != nil && *c.PollHz <= 0 {
		return fmt.Errorf("poll_hz must be positive, got %f", *c.PollHz)
	}

	return nil
}

// GetSmoothingWindowMeters returns the smoothing_window_meters value or the default.
func (c *TuningConfig) GetSmoothingWindowMeters() float64 {
	if c.SmoothingWindowMeters == nil {
		return 10.0
	}
	return *c.SmoothingWindowMeters
}

// GetCurvatureIn returns the curvature_in value or the default.
func (c *TuningConfig) GetCurvatureIn() float64 {
	if c.CurvatureIn == nil {
		return 0.006 // rad/m
	}
	return *c.CurvatureIn
}

// GetCurvatureOut returns the curvature_out value or the default.
func (c *TuningConfig) GetCurvatureOut() float64 {
	if c.CurvatureOut == nil {
		return 0.004 // rad/m, below curvature_in for hysteresis
	}
	return *c.CurvatureOut
}

// GetMinCornerLengthMeters returns the min_corner_length_meters value or the default.
func (c *TuningConfig) GetMinCornerLengthMeters() float64 {
	if c.MinCornerLengthMeters == nil {
		return 8.0
	}
	return *c.MinCornerLengthMeters
}

// GetClosureToleranceM returns the closure_tolerance_m value or the default.
func (c *TuningConfig) GetClosureToleranceM() float64 {
	if c.ClosureToleranceM == nil {
		return 25.0
	}
	return *c.ClosureToleranceM
}

// GetResampleStepMeters returns the resample_step_meters value or the default.
func (c *TuningConfig) GetResampleStepMeters() float64 {
	if c.ResampleStepMeters == nil {
		return 1.0
	}
	return *c.ResampleStepMeters
}

// GetBrakeThreshold returns the brake_threshold value or the default.
func (c *TuningConfig) GetBrakeThreshold() float64 {
	if c.BrakeThreshold == nil {
		return 0.15
	}
	return *c.BrakeThreshold
}

// GetBrakeLookbackM returns the brake_lookback_m value or the default.
func (c *TuningConfig) GetBrakeLookbackM() float64 {
	if c.BrakeLookbackM == nil {
		return 50.0
	}
	return *c.BrakeLookbackM
}

// GetStartLineToleranceM returns the start_line_tolerance_m value or the default.
func (c *TuningConfig) GetStartLineToleranceM() float64 {
	if c.StartLineToleranceM == nil {
		return 20.0
	}
	return *c.StartLineToleranceM
}

// GetLapWrapBandM returns the lap_wrap_band_m value or the default.
func (c *TuningConfig) GetLapWrapBandM() float64 {
	if c.LapWrapBandM == nil {
		return 30.0
	}
	return *c.LapWrapBandM
}

// GetLockSlipThreshold returns the lock_slip_threshold value or the default.
func (c *TuningConfig) GetLockSlipThreshold() float64 {
	if c.LockSlipThreshold == nil {
		return 0.6
	}
	return *c.LockSlipThreshold
}

// GetLockBrakeMin returns the lock_brake_min value or the default.
func (c *TuningConfig) GetLockBrakeMin() float64 {
	if c.LockBrakeMin == nil {
		return 0.2
	}
	return *c.LockBrakeMin
}

// GetLockMinSamples returns the lock_min_samples value or the default.
func (c *TuningConfig) GetLockMinSamples() int {
	if c.LockMinSamples == nil {
		return 5
	}
	return *c.LockMinSamples
}

// GetBrakeLateThresholdM returns the brake_late_threshold_m value or the default.
func (c *TuningConfig) GetBrakeLateThresholdM() float64 {
	if c.BrakeLateThresholdM == nil {
		return 10.0
	}
	return *c.BrakeLateThresholdM
}

// GetLockCooldownMs returns the lock_cooldown_ms value or the default.
func (c *TuningConfig) GetLockCooldownMs() int {
	if c.LockCooldownMs == nil {
		return 1000
	}
	return *c.LockCooldownMs
}

// GetQueueCapacity returns the queue_capacity value or the default.
func (c *TuningConfig) GetQueueCapacity() int {
	if c.QueueCapacity == nil {
		return 8
	}
	return *c.QueueCapacity
}

// GetPollHz returns the poll_hz value or the default.
func (c *TuningConfig) GetPollHz() float64 {
	if c.PollHz == nil {
		return 60.0
	}
	return *c.PollHz
}
