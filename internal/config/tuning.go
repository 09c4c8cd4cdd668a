// Package config loads registration tuning parameters from JSON.
//
// Fields are pointers so partial config files are safe: anything
// omitted falls back to the built-in defaults through the Get*
// accessors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/scanmatch/internal/register/icp"
	"github.com/banshee-data/scanmatch/internal/units"
)

// Default tuning values. These mirror icp.DefaultConfig and the
// replay driver defaults.
const (
	DefaultMaxIterations             = 50
	DefaultTransformationEpsilon     = 1e-6
	DefaultEuclideanFitnessEpsilon   = 1e-8
	DefaultMaxCorrespondenceDistance = 1.0
	DefaultMinCorrespondences        = 3
	DefaultSpeedUnits                = units.MPS
)

// RegistrationConfig is the root tuning configuration for the
// registration replay tooling.
type RegistrationConfig struct {
	// ICP params
	MaxIterations             *int     `json:"max_iterations,omitempty"`
	TransformationEpsilon     *float64 `json:"transformation_epsilon,omitempty"`
	EuclideanFitnessEpsilon   *float64 `json:"euclidean_fitness_epsilon,omitempty"`
	MaxCorrespondenceDistance *float64 `json:"max_correspondence_distance,omitempty"`
	MinCorrespondences        *int     `json:"min_correspondences,omitempty"`
	Debug                     *bool    `json:"debug,omitempty"`

	// Reporting params
	SpeedUnits *string `json:"speed_units,omitempty"`
}

// EmptyRegistrationConfig returns a config with all fields unset.
func EmptyRegistrationConfig() *RegistrationConfig {
	return &RegistrationConfig{}
}

// LoadRegistrationConfig loads a RegistrationConfig from a JSON file.
// The file must have a .json extension and be under the max file
// size. Omitted fields retain their defaults, so partial configs are
// safe.
func LoadRegistrationConfig(path string) (*RegistrationConfig, error) {
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

	cfg := EmptyRegistrationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks field ranges. Unset fields are always valid.
func (c *RegistrationConfig) Validate() error {
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", *c.MaxIterations)
	}
	if c.TransformationEpsilon != nil && *c.TransformationEpsilon < 0 {
		return fmt.Errorf("transformation_epsilon must be >= 0, got %g", *c.TransformationEpsilon)
	}
	if c.EuclideanFitnessEpsilon != nil && *c.EuclideanFitnessEpsilon < 0 {
		return fmt.Errorf("euclidean_fitness_epsilon must be >= 0, got %g", *c.EuclideanFitnessEpsilon)
	}
	if c.MaxCorrespondenceDistance != nil && *c.MaxCorrespondenceDistance <= 0 {
		return fmt.Errorf("max_correspondence_distance must be > 0, got %g", *c.MaxCorrespondenceDistance)
	}
	if c.MinCorrespondences != nil && *c.MinCorrespondences < 3 {
		return fmt.Errorf("min_correspondences must be >= 3, got %d", *c.MinCorrespondences)
	}
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("speed_units must be one of %s, got %q", units.GetValidUnitsString(), *c.SpeedUnits)
	}
	return nil
}

// GetMaxIterations returns the configured value or the default.
func (c *RegistrationConfig) GetMaxIterations() int {
	if c.MaxIterations != nil {
		return *c.MaxIterations
	}
	return DefaultMaxIterations
}

// GetTransformationEpsilon returns the configured value or the default.
func (c *RegistrationConfig) GetTransformationEpsilon() float64 {
	if c.TransformationEpsilon != nil {
		return *c.TransformationEpsilon
	}
	return DefaultTransformationEpsilon
}

// GetEuclideanFitnessEpsilon returns the configured value or the default.
func (c *RegistrationConfig) GetEuclideanFitnessEpsilon() float64 {
	if c.EuclideanFitnessEpsilon != nil {
		return *c.EuclideanFitnessEpsilon
	}
	return DefaultEuclideanFitnessEpsilon
}

// GetMaxCorrespondenceDistance returns the configured value or the default.
func (c *RegistrationConfig) GetMaxCorrespondenceDistance() float64 {
	if c.MaxCorrespondenceDistance != nil {
		return *c.MaxCorrespondenceDistance
	}
	return DefaultMaxCorrespondenceDistance
}

// GetMinCorrespondences returns the configured value or the default.
func (c *RegistrationConfig) GetMinCorrespondences() int {
	if c.MinCorrespondences != nil {
		return *c.MinCorrespondences
	}
	return DefaultMinCorrespondences
}

// GetDebug returns the configured value or false.
func (c *RegistrationConfig) GetDebug() bool {
	return c.Debug != nil && *c.Debug
}

// GetSpeedUnits returns the configured value or the default.
func (c *RegistrationConfig) GetSpeedUnits() string {
	if c.SpeedUnits != nil {
		return *c.SpeedUnits
	}
	return DefaultSpeedUnits
}

// ICPConfig assembles the aligner configuration from this tuning
// config.
func (c *RegistrationConfig) ICPConfig() icp.Config {
	return icp.Config{
		MaxIterations:             c.GetMaxIterations(),
		TransformationEpsilon:     c.GetTransformationEpsilon(),
		EuclideanFitnessEpsilon:   c.GetEuclideanFitnessEpsilon(),
		MaxCorrespondenceDistance: c.GetMaxCorrespondenceDistance(),
		MinCorrespondences:        c.GetMinCorrespondences(),
		Debug:                     c.GetDebug(),
	}
}
