package diagnostics

import (
	"context"
	"log/slog"
)

// SlogObserver writes events as structured log records.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver returns an observer logging to logger, or to slog.Default() when nil.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) Observe(e Event) {
	ctx := context.Background()
	level := e.Kind.Level()
	if !o.logger.Enabled(ctx, level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("kind", string(e.Kind)),
		slog.String("run_id", e.RunID.String()),
	}
	switch e.Kind {
	case CalibrationConverged, CalibrationNotConverged:
		attrs = append(attrs,
			slog.Int("lattice_level", e.Level),
			slog.Float64("residual", e.Residual),
			slog.Int("iterations", e.Iterations),
			slog.Float64("middle_rate", e.MiddleRate),
		)
	case DayCountFallback:
		attrs = append(attrs, slog.String("day_count", e.DayCount))
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	o.logger.LogAttrs(ctx, level, msg, attrs...)
}
