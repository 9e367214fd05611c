// Package config holds the numerical settings of lattice calibration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. RATETREE_TOLERANCE.
const EnvPrefix = "RATETREE"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid calibration config")

// Calibration holds the bisection settings used for every lattice level.
type Calibration struct {
	// Tolerance is the absolute discount-factor residual at which a level
	// counts as calibrated.
	Tolerance float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gt=0"`

	// MaxIterations caps bisection trials per level. A level that hits the
	// cap keeps its last trial and is reported as not converged.
	MaxIterations int `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" validate:"gt=0"`

	// LowerBound and UpperBound bracket the middle rate u(i).
	LowerBound float64 `yaml:"lower_bound" envconfig:"LOWER_BOUND" validate:"gt=0"`
	UpperBound float64 `yaml:"upper_bound" envconfig:"UPPER_BOUND" validate:"gtfield=LowerBound"`
}

// DefaultConfig provides production-ready default values.
var DefaultConfig = Calibration{
	Tolerance:     1e-8,
	MaxIterations: 100,
	LowerBound:    1e-4,
	UpperBound:    0.5,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the bracket and the convergence settings.
func (c Calibration) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Load reads settings from a YAML file (optional, "" skips it), applies
// RATETREE_* environment overrides, and validates the result. Fields absent
// from both sources keep DefaultConfig values.
func Load(path string) (Calibration, error) {
	cfg := DefaultConfig

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Calibration{}, fmt.Errorf("Load: read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Calibration{}, fmt.Errorf("Load: parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Calibration{}, fmt.Errorf("Load: env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Calibration{}, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}
