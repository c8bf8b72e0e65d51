package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the counting tuning parameters. All fields are
// pointers so a partial JSON file only overrides what it names; the Get*
// accessors supply defaults for everything else.
type TuningConfig struct {
	// Crossing zone params (pixels, detection frame coordinates)
	LineY      *float64 `json:"line_y,omitempty"`
	Offset     *float64 `json:"offset,omitempty"`
	MotoOffset *float64 `json:"moto_offset,omitempty"`
	MinTravel  *float64 `json:"min_travel,omitempty"`
	MotoTravel *float64 `json:"moto_travel,omitempty"`

	// Frame sampling
	FrameStride *int `json:"frame_stride,omitempty"`

	// Reporting params
	ReportInterval *string `json:"report_interval,omitempty"` // duration string like "30s"
	OccupancyMode  *string `json:"occupancy_mode,omitempty"`  // latest | mean | peak

	// Track state eviction ("0s" keeps state for the whole session)
	TrackMaxAge *string `json:"track_max_age,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to have a .json extension and to be under the max file size.
// Fields omitted from the JSON retain their defaults, so partial configs
// are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory. Panics
// if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/<pkg>/
		"../../../" + DefaultConfigPath,
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
	if c.Offset != nil && *c.Offset <= 0 {
		return fmt.Errorf("offset must be positive, got %f", *c.Offset)
	}
	if c.MotoOffset != nil && *c.MotoOffset <= 0 {
		return fmt.Errorf("moto_offset must be positive, got %f", *c.MotoOffset)
	}
	if c.MinTravel != nil && *c.MinTravel < 0 {
		return fmt.Errorf("min_travel must be non-negative, got %f", *c.MinTravel)
	}
	if c.MotoTravel != nil && *c.MotoTravel < 0 {
		return fmt.Errorf("moto_travel must be non-negative, got %f", *c.MotoTravel)
	}
	if c.FrameStride != nil && *c.FrameStride < 1 {
		return fmt.Errorf("frame_stride must be at least 1, got %d", *c.FrameStride)
	}
	if c.ReportInterval != nil && *c.ReportInterval != "" {
		if _, err := time.ParseDuration(*c.ReportInterval); err != nil {
			return fmt.Errorf("invalid report_interval '%s': %w", *c.ReportInterval, err)
		}
	}
	if c.TrackMaxAge != nil && *c.TrackMaxAge != "" {
		if _, err := time.ParseDuration(*c.TrackMaxAge); err != nil {
			return fmt.Errorf("invalid track_max_age '%s': %w", *c.TrackMaxAge, err)
		}
	}
	if c.OccupancyMode != nil {
		switch *c.OccupancyMode {
		case "latest", "mean", "peak":
		default:
			return fmt.Errorf("occupancy_mode must be latest, mean or peak, got %q", *c.OccupancyMode)
		}
	}
	return nil
}

// GetLineY returns the line_y value or the default.
func (c *TuningConfig) GetLineY() float64 {
	if c.LineY == nil {
		return 500
	}
	return *c.LineY
}

// GetOffset returns the offset value or the default.
func (c *TuningConfig) GetOffset() float64 {
	if c.Offset == nil {
		return 15
	}
	return *c.Offset
}

// GetMotoOffset returns the moto_offset value or the default.
func (c *TuningConfig) GetMotoOffset() float64 {
	if c.MotoOffset == nil {
		return 25
	}
	return *c.MotoOffset
}

// GetMinTravel returns the min_travel value or the default.
func (c *TuningConfig) GetMinTravel() float64 {
	if c.MinTravel == nil {
		return 15
	}
	return *c.MinTravel
}

// GetMotoTravel returns the moto_travel value or the default.
func (c *TuningConfig) GetMotoTravel() float64 {
	if c.MotoTravel == nil {
		return 8
	}
	return *c.MotoTravel
}

// GetFrameStride returns the frame_stride value or the default.
func (c *TuningConfig) GetFrameStride() int {
	if c.FrameStride == nil {
		return 2
	}
	return *c.FrameStride
}

// GetReportInterval parses and returns the ReportInterval as a
// time.Duration.
func (c *TuningConfig) GetReportInterval() time.Duration {
	if c.ReportInterval == nil || *c.ReportInterval == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ReportInterval)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}

// GetTrackMaxAge parses and returns the TrackMaxAge as a time.Duration.
// Zero disables eviction.
func (c *TuningConfig) GetTrackMaxAge() time.Duration {
	if c.TrackMaxAge == nil || *c.TrackMaxAge == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.TrackMaxAge)
	if err != nil {
		return 0
	}
	return d
}

// GetOccupancyMode returns the occupancy_mode value or the default.
func (c *TuningConfig) GetOccupancyMode() string {
	if c.OccupancyMode == nil || *c.OccupancyMode == "" {
		return "latest"
	}
	return *c.OccupancyMode
}
