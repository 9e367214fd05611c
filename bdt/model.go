// Package bdt calibrates a Black-Derman-Toy short-rate lattice to a zero curve
// and values bonds with embedded call and put schedules on it.
package bdt

import (
	"fmt"
	"time"

	"github.com/meenmo/ratetree/diagnostics"
	"github.com/meenmo/ratetree/utils"
)

// Market is the construction input of a Model.
type Market struct {
	// ValuationDate must equal Grid[0].
	ValuationDate time.Time
	// Grid holds the lattice levels' calendar dates, strictly increasing.
	Grid []time.Time
	// ZeroRates and Volatilities are continuously compounded, annualized and
	// indexed like Grid. Index 0 of each is unused.
	ZeroRates    []float64
	Volatilities []float64
	// DayCount is "ACT/365" or "ACT/360" ("30/360" is also accepted).
	// Anything else falls back to ACT/365 with a DayCountFallback event.
	DayCount string
}

// Model is a validated market with its derived step sequence.
type Model struct {
	valuation time.Time
	grid      []time.Time
	zeros     []float64
	vols      []float64
	dayCount  utils.DayCount
	steps     []float64
	opts      []Option
}

// NewModel validates the market and derives the step sequence.
func NewModel(m Market, opts ...Option) (*Model, error) {
	s := newSettings(opts...)

	n := len(m.Grid)
	if n != len(m.ZeroRates) || n != len(m.Volatilities) {
		return nil, fmt.Errorf("NewModel: %w: grid=%d rates=%d vols=%d",
			ErrShapeMismatch, n, len(m.ZeroRates), len(m.Volatilities))
	}
	if n < 2 {
		return nil, fmt.Errorf("NewModel: %w: got %d", ErrTooFewPoints, n)
	}
	if !utils.SameDay(m.Grid[0], m.ValuationDate) {
		return nil, fmt.Errorf("NewModel: %w: grid[0] %s != valuation date %s",
			ErrGridOrder, m.Grid[0].Format(utils.DateLayout), m.ValuationDate.Format(utils.DateLayout))
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewModel: %w", err)
	}

	dc, ok := utils.ParseDayCount(m.DayCount)
	if !ok {
		s.observer.Observe(diagnostics.Event{
			Kind:     diagnostics.DayCountFallback,
			DayCount: m.DayCount,
			Message:  "unsupported day count convention, using ACT/365",
		})
	}

	steps, err := utils.StepFractions(m.Grid, dc)
	if err != nil {
		return nil, fmt.Errorf("NewModel: %w: %v", ErrGridOrder, err)
	}

	model := &Model{
		valuation: m.ValuationDate,
		grid:      append([]time.Time(nil), m.Grid...),
		zeros:     append([]float64(nil), m.ZeroRates...),
		vols:      append([]float64(nil), m.Volatilities...),
		dayCount:  dc,
		steps:     steps,
		opts:      opts,
	}
	if err := checkCurves(model.steps, model.zeros, model.vols); err != nil {
		return nil, fmt.Errorf("NewModel: %w", err)
	}
	return model, nil
}

// BuildTree calibrates a fresh lattice. Repeated calls on the same model
// return bit-identical lattices.
func (m *Model) BuildTree() (*Lattice, error) {
	return Calibrate(m.steps, m.zeros, m.vols, m.opts...)
}

// Shift returns a copy of the model with every zero rate moved by delta.
func (m *Model) Shift(delta float64) *Model {
	out := *m
	out.zeros = make([]float64, len(m.zeros))
	for i, r := range m.zeros {
		if i == 0 {
			out.zeros[i] = r
			continue
		}
		out.zeros[i] = r + delta
	}
	return &out
}

// ValuationDate returns the valuation date.
func (m *Model) ValuationDate() time.Time { return m.valuation }

// Grid returns a copy of the grid dates.
func (m *Model) Grid() []time.Time { return append([]time.Time(nil), m.grid...) }

// Steps returns a copy of the step sequence.
func (m *Model) Steps() []float64 { return append([]float64(nil), m.steps...) }

// DayCount returns the effective convention after any fallback.
func (m *Model) DayCount() utils.DayCount { return m.dayCount }

// ZeroRate returns R(i).
func (m *Model) ZeroRate(i int) float64 { return m.zeros[i] }

// IndexOf returns the grid index whose date falls on the same day as t.
func (m *Model) IndexOf(t time.Time) (int, bool) {
	for i, g := range m.grid {
		if utils.SameDay(g, t) {
			return i, true
		}
	}
	return 0, false
}
