package bdt

import (
	"github.com/meenmo/ratetree/config"
	"github.com/meenmo/ratetree/diagnostics"
)

// Option customizes calibration. Later options override earlier ones.
type Option func(*settings)

type settings struct {
	cfg      config.Calibration
	observer diagnostics.Observer
}

func newSettings(opts ...Option) settings {
	s := settings{
		cfg:      config.DefaultConfig,
		observer: diagnostics.Nop,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithConfig replaces the bisection settings.
func WithConfig(cfg config.Calibration) Option {
	return func(s *settings) {
		s.cfg = cfg
	}
}

// WithObserver routes diagnostic events to obs. A nil observer, typed or
// untyped, is ignored.
func WithObserver(obs diagnostics.Observer) Option {
	return func(s *settings) {
		if obs = diagnostics.Multi(obs); obs != diagnostics.Nop {
			s.observer = obs
		}
	}
}
