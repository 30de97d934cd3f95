// Package config loads the pairing tuning parameters. The JSON schema uses
// pointer fields so a partial file only overrides what it names; the Get*
// accessors supply the published defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitosis-data/spindle.report/internal/spindle"
)

// TuningConfig represents the root configuration for pairing thresholds.
// Distances are microns, overlap is frames, frame interval is seconds.
type TuningConfig struct {
	MaxDist       *float64 `json:"max_dist,omitempty"`
	MinDist       *float64 `json:"min_dist,omitempty"`
	MaxCongDist   *float64 `json:"max_cong_dist,omitempty"`
	MinOverlap    *float64 `json:"min_overlap,omitempty"`
	FrameInterval *float64 `json:"frame_interval,omitempty"`
	Workers       *int     `json:"workers,omitempty"`

	// Border bounds of the registered movie's valid-pixel region. Optional
	// here because they are usually passed on the command line or derived
	// from ROI registration; the pairer treats absent bounds as fatal.
	Bounds *BoundsConfig `json:"bounds,omitempty"`
}

// BoundsConfig mirrors spindle.Bounds in the JSON schema.
type BoundsConfig struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
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

// Validate checks that the configuration values are in range. Threshold
// problems are rejected here, before any pair processing begins.
func (c *TuningConfig) Validate() error {
	if c.MaxDist != nil && *c.MaxDist <= 0 {
		return fmt.Errorf("max_dist must be positive, got %g", *c.MaxDist)
	}
	if c.MinDist != nil && *c.MinDist <= 0 {
		return fmt.Errorf("min_dist must be positive, got %g", *c.MinDist)
	}
	if c.MaxCongDist != nil && *c.MaxCongDist <= 0 {
		return fmt.Errorf("max_cong_dist must be positive, got %g", *c.MaxCongDist)
	}
	if c.MinOverlap != nil && *c.MinOverlap <= 0 {
		return fmt.Errorf("min_overlap must be positive, got %g", *c.MinOverlap)
	}
	if c.FrameInterval != nil && *c.FrameInterval <= 0 {
		return fmt.Errorf("frame_interval must be positive, got %g", *c.FrameInterval)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.Bounds != nil {
		b := spindle.Bounds{Top: c.Bounds.Top, Bottom: c.Bounds.Bottom, Left: c.Bounds.Left, Right: c.Bounds.Right}
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetMaxDist returns the max_dist value or the default (11 microns).
func (c *TuningConfig) GetMaxDist() float64 {
	if c.MaxDist == nil {
		return 11
	}
	return *c.MaxDist
}

// GetMinDist returns the min_dist value or the default (4 microns).
func (c *TuningConfig) GetMinDist() float64 {
	if c.MinDist == nil {
		return 4
	}
	return *c.MinDist
}

// GetMaxCongDist returns the max_cong_dist value or the default (4 microns).
func (c *TuningConfig) GetMaxCongDist() float64 {
	if c.MaxCongDist == nil {
		return 4
	}
	return *c.MaxCongDist
}

// GetMinOverlap returns the min_overlap value or the default (10 frames).
func (c *TuningConfig) GetMinOverlap() float64 {
	if c.MinOverlap == nil {
		return 10
	}
	return *c.MinOverlap
}

// GetFrameInterval returns the frame_interval value or the default (1s).
// The TrackMate export's own interval, when present, wins over this
// default; callers resolve that precedence via PairerConfig.
func (c *TuningConfig) GetFrameInterval() float64 {
	if c.FrameInterval == nil {
		return 1
	}
	return *c.FrameInterval
}

// GetWorkers returns the workers value or 1 (sequential).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetBounds returns the configured border bounds, or false when the file
// does not carry any.
func (c *TuningConfig) GetBounds() (spindle.Bounds, bool) {
	if c.Bounds == nil {
		return spindle.Bounds{}, false
	}
	return spindle.Bounds{
		Top:    c.Bounds.Top,
		Bottom: c.Bounds.Bottom,
		Left:   c.Bounds.Left,
		Right:  c.Bounds.Right,
	}, true
}

// PairerConfig assembles the engine configuration from the tuning values.
// frameInterval overrides the config's own value when positive (it comes
// from the TrackMate export).
func (c *TuningConfig) PairerConfig(frameInterval float64) spindle.PairerConfig {
	if frameInterval <= 0 {
		frameInterval = c.GetFrameInterval()
	}
	return spindle.PairerConfig{
		MaxDist:       c.GetMaxDist(),
		MinDist:       c.GetMinDist(),
		MaxCongDist:   c.GetMaxCongDist(),
		MinOverlap:    c.GetMinOverlap(),
		FrameInterval: frameInterval,
		Workers:       c.GetWorkers(),
	}
}
