package leiden

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

const (
	DefaultResolution  = 1.0
	DefaultRandomness  = 1e-2
	DefaultNIterations = 50
)

// Config holds the parameters of a Leiden run. The resolution is usually
// replaced per level through SetResolution.
type Config struct {
	Resolution  float64 `mapstructure:"resolution" json:"resolution"`
	NIterations int     `mapstructure:"n_iterations" json:"n_iterations"`
	Randomness  float64 `mapstructure:"randomness" json:"randomness"`
	Seed        int64   `mapstructure:"seed" json:"seed"`
}

// DefaultConfig returns the parameters used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		Resolution:  DefaultResolution,
		NIterations: DefaultNIterations,
		Randomness:  DefaultRandomness,
	}
}

// Validate checks the parameters
func (c Config) Validate() error {
	if !ValidResolution(c.Resolution) {
		return fmt.Errorf("resolution must be a non-negative number, got %g", c.Resolution)
	}
	if c.NIterations <= 0 {
		return fmt.Errorf("n_iterations must be a positive integer, got %d", c.NIterations)
	}
	if !(c.Randomness > 0) || math.IsInf(c.Randomness, 1) {
		return fmt.Errorf("randomness must be positive, got %g", c.Randomness)
	}
	return nil
}

// ValidResolution reports whether r is a finite non-negative resolution
func ValidResolution(r float64) bool {
	return r >= 0 && !math.IsInf(r, 1)
}

// NewFromConfig validates cfg and creates a Leiden algorithm logging
// iteration progress to logger
func NewFromConfig(cfg Config, logger zerolog.Logger) (*Leiden, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(cfg.Resolution, cfg.NIterations, cfg.Randomness, cfg.Seed).WithLogger(logger), nil
}
