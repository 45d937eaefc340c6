package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/gilchrisn/publication-classification/pkg/leiden"
)

// EnvPrefix is the prefix of environment variables overriding configuration
const EnvPrefix = "PUBCLASS"

var levelNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LevelConfig describes one level of the classification
type LevelConfig struct {
	Name       string  `mapstructure:"name" json:"name"`
	Resolution float64 `mapstructure:"resolution" json:"resolution"`
	Threshold  float64 `mapstructure:"threshold" json:"threshold"`
}

// Config holds the parameters of a classification run
type Config struct {
	LargestComponent bool          `mapstructure:"largest_component" json:"largest_component"`
	NIterations      int           `mapstructure:"n_iterations" json:"n_iterations"`
	Randomness       float64       `mapstructure:"randomness" json:"randomness"`
	Seed             int64         `mapstructure:"seed" json:"seed"`
	Levels           []LevelConfig `mapstructure:"levels" json:"levels"`
	Progress         bool          `mapstructure:"progress" json:"progress"`
}

// DefaultLevels are the micro, meso and macro levels used when no levels are
// configured
func DefaultLevels() []LevelConfig {
	return []LevelConfig{
		{Name: "micro", Resolution: 2e-5, Threshold: 50},
		{Name: "meso", Resolution: 2e-6, Threshold: 500},
		{Name: "macro", Resolution: 2e-7, Threshold: 5000},
	}
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	algorithm := leiden.DefaultConfig()
	return Config{
		NIterations: algorithm.NIterations,
		Randomness:  algorithm.Randomness,
		Seed:        algorithm.Seed,
		Levels:      DefaultLevels(),
	}
}

// NewViper creates a viper instance with defaults and environment overrides.
// Environment variables use the PUBCLASS_ prefix, e.g. PUBCLASS_N_ITERATIONS.
func NewViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("largest_component", defaults.LargestComponent)
	v.SetDefault("n_iterations", defaults.NIterations)
	v.SetDefault("randomness", defaults.Randomness)
	v.SetDefault("seed", defaults.Seed)
	v.SetDefault("progress", defaults.Progress)

	levels := make([]map[string]any, len(defaults.Levels))
	for i, level := range defaults.Levels {
		levels[i] = map[string]any{
			"name":       level.Name,
			"resolution": level.Resolution,
			"threshold":  level.Threshold,
		}
	}
	v.SetDefault("levels", levels)

	v.SetDefault("logging.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig loads and validates configuration from an optional file, the
// environment and defaults
func LoadConfig(path string) (*Config, error) {
	return FromViper(NewViper(), path)
}

// FromViper reads an optional config file into v, then decodes and
// validates the configuration
func FromViper(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration. Levels must have distinct identifier
// names and strictly decreasing resolutions; the first level needs a
// positive threshold.
func (c *Config) Validate() error {
	if err := c.Algorithm().Validate(); err != nil {
		return err
	}
	if len(c.Levels) == 0 {
		return errors.New("at least one level is required")
	}

	names := make(map[string]bool, len(c.Levels))
	for i, level := range c.Levels {
		if !levelNameRegex.MatchString(level.Name) {
			return fmt.Errorf("level %d: invalid name %q", i, level.Name)
		}
		if names[level.Name] {
			return fmt.Errorf("level %d: duplicate name %q", i, level.Name)
		}
		names[level.Name] = true

		if !leiden.ValidResolution(level.Resolution) {
			return fmt.Errorf("level %s: resolution must be a non-negative number, got %g", level.Name, level.Resolution)
		}
		if !(level.Threshold >= 0) {
			return fmt.Errorf("level %s: threshold must be non-negative, got %g", level.Name, level.Threshold)
		}
		if i == 0 && level.Threshold <= 0 {
			return fmt.Errorf("level %s: threshold must be positive, got %g", level.Name, level.Threshold)
		}
		if i > 0 && !(level.Resolution < c.Levels[i-1].Resolution) {
			return fmt.Errorf("level %s: resolution %g must be lower than %g of level %s",
				level.Name, level.Resolution, c.Levels[i-1].Resolution, c.Levels[i-1].Name)
		}
	}
	return nil
}

// Algorithm returns the Leiden parameters of the run. Each level replaces
// the resolution.
func (c *Config) Algorithm() leiden.Config {
	return leiden.Config{
		Resolution:  leiden.DefaultResolution,
		NIterations: c.NIterations,
		Randomness:  c.Randomness,
		Seed:        c.Seed,
	}
}

// LevelNames returns the names of the configured levels
func (c *Config) LevelNames() []string {
	names := make([]string, len(c.Levels))
	for i, level := range c.Levels {
		names[i] = level.Name
	}
	return names
}

// ParseLevel parses a level given as name:resolution:threshold
func ParseLevel(s string) (LevelConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return LevelConfig{}, fmt.Errorf("level %q must have the form name:resolution:threshold", s)
	}
	resolution, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return LevelConfig{}, fmt.Errorf("level %q: resolution must be a number", s)
	}
	threshold, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return LevelConfig{}, fmt.Errorf("level %q: threshold must be a number", s)
	}
	return LevelConfig{Name: parts[0], Resolution: resolution, Threshold: threshold}, nil
}
