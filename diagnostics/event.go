// Package diagnostics carries non-fatal calibration and construction events
// from the lattice code to whatever the caller wires in: structured logs,
// Prometheus metrics, or an in-memory recorder for tests.
package diagnostics

import (
	"log/slog"
	"reflect"

	"github.com/google/uuid"
)

// Kind classifies an Event.
type Kind string

const (
	// CalibrationConverged is emitted once per level whose bisection met the tolerance.
	CalibrationConverged Kind = "calibration_converged"
	// CalibrationNotConverged is emitted when a level exhausts its iteration cap.
	// The last trial middle rate is kept.
	CalibrationNotConverged Kind = "calibration_not_converged"
	// DayCountFallback is emitted when an unrecognized day-count tag is replaced by ACT/365.
	DayCountFallback Kind = "daycount_fallback"
)

// Level returns the slog severity the event is logged at.
func (k Kind) Level() slog.Level {
	switch k {
	case CalibrationConverged:
		return slog.LevelDebug
	case CalibrationNotConverged, DayCountFallback:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Event is a single diagnostic. Fields that do not apply to a Kind are zero.
type Event struct {
	Kind Kind
	// RunID identifies one calibration run; all events of a run share it.
	RunID uuid.UUID
	// Level is the lattice level being calibrated.
	Level      int
	Residual   float64
	Iterations int
	MiddleRate float64
	// DayCount is the rejected tag for DayCountFallback.
	DayCount string
	Message  string
}

// Observer receives diagnostic events. Implementations must be safe for
// concurrent use when the same observer is shared across calibrations.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type nop struct{}

func (nop) Observe(Event) {}

// Nop discards every event.
var Nop Observer = nop{}

type multi []Observer

func (m multi) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Multi fans events out to every non-nil observer in order. Typed nils such
// as (*Recorder)(nil) are dropped too.
func Multi(observers ...Observer) Observer {
	out := make(multi, 0, len(observers))
	for _, o := range observers {
		if !isNil(o) {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return Nop
	case 1:
		return out[0]
	}
	return out
}

func isNil(o Observer) bool {
	if o == nil {
		return true
	}
	v := reflect.ValueOf(o)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
