package bdt

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/meenmo/ratetree/config"
	"github.com/meenmo/ratetree/diagnostics"
	"github.com/meenmo/ratetree/lattice"
	"github.com/meenmo/ratetree/utils"
)

// Calibrate builds a BDT lattice that reprices the zero curve.
//
// steps is the year-fraction step sequence (steps[0] is ignored, steps[i] is
// the length of the period ending at grid point i). zeroRates and vols are
// continuously compounded annualized curves indexed like steps; index 0 of
// each is a placeholder.
//
// Level 0 is pinned by R(1). Levels 1..N-2 are solved in order by bisecting
// the middle rate u(i) until sum_j Q(i,j) d(i,j) matches exp(-R(i+1) t(i+1)).
// A level that exhausts cfg.MaxIterations keeps its last trial and emits a
// CalibrationNotConverged event; calibration continues with the next level.
func Calibrate(steps, zeroRates, vols []float64, opts ...Option) (*Lattice, error) {
	s := newSettings(opts...)
	if err := checkCurves(steps, zeroRates, vols); err != nil {
		return nil, fmt.Errorf("Calibrate: %w", err)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Calibrate: %w", err)
	}

	n := len(steps)
	l := &Lattice{
		steps:      append([]float64(nil), steps...),
		middle:     make([]float64, n-1),
		rates:      lattice.NewTriangle(n),
		discounts:  lattice.NewTriangle(n - 1),
		states:     lattice.NewTriangle(n),
		targets:    make([]float64, n),
		residuals:  make([]float64, n-1),
		iterations: make([]int, n-1),
		converged:  make([]bool, n-1),
	}
	l.steps[0] = 0
	l.times = utils.CumulativeTimes(l.steps)
	l.targets[0] = 1
	for k := 1; k < n; k++ {
		l.targets[k] = math.Exp(-zeroRates[k] * l.times[k])
	}

	// Root: one point pins itself.
	l.middle[0] = zeroRates[1]
	l.rates.Set(0, 0, zeroRates[1])
	l.discounts.Set(0, 0, math.Exp(-zeroRates[1]*l.steps[1]))
	l.states.Set(0, 0, 1)
	l.residuals[0] = math.Abs(l.discounts.At(0, 0) - l.targets[1])
	l.converged[0] = true

	runID := uuid.New()
	for i := 1; i <= n-2; i++ {
		propagateStatePrices(l.states.Row(i-1), l.discounts.Row(i-1), l.states.Row(i))
		calibrateLevel(l, i, vols[i], s.cfg)

		kind := diagnostics.CalibrationConverged
		msg := "lattice level calibrated"
		if !l.converged[i] {
			kind = diagnostics.CalibrationNotConverged
			msg = "lattice level did not converge; keeping last trial"
		}
		s.observer.Observe(diagnostics.Event{
			Kind:       kind,
			RunID:      runID,
			Level:      i,
			Residual:   l.residuals[i],
			Iterations: l.iterations[i],
			MiddleRate: l.middle[i],
			Message:    msg,
		})
	}

	// Terminal level: state prices only, plus an extrapolated rate row.
	last := n - 1
	propagateStatePrices(l.states.Row(last-1), l.discounts.Row(last-1), l.states.Row(last))
	fillShortRates(l.rates.Row(last), last, l.middle[last-1], vols[last], l.steps[last])

	return l, nil
}

// calibrateLevel bisects u(i). The state prices of level i must already be set.
func calibrateLevel(l *Lattice, i int, sigma float64, cfg config.Calibration) {
	q := l.states.Row(i)
	r := l.rates.Row(i)
	d := l.discounts.Row(i)
	dt := l.steps[i+1]
	target := l.targets[i+1]

	lo, hi := cfg.LowerBound, cfg.UpperBound
	var u, residual float64
	iter := 0
	converged := false
	for iter < cfg.MaxIterations {
		u = 0.5 * (lo + hi)
		iter++

		fillShortRates(r, i, u, sigma, dt)
		fillDiscounts(d, r, dt)
		model := floats.Dot(q, d)

		residual = math.Abs(model - target)
		if residual < cfg.Tolerance {
			converged = true
			break
		}
		// Model price above market means the rate level is too low.
		if model > target {
			lo = u
		} else {
			hi = u
		}
	}

	l.middle[i] = u
	l.residuals[i] = residual
	l.iterations[i] = iter
	l.converged[i] = converged
}

// fillShortRates writes r(i,j) = u * exp(sigma * (i-j) * sqrt(dt)).
func fillShortRates(row []float64, i int, u, sigma, dt float64) {
	spread := sigma * math.Sqrt(dt)
	for j := range row {
		row[j] = u * math.Exp(spread*float64(i-j))
	}
}

func fillDiscounts(d, r []float64, dt float64) {
	for j := range d {
		d[j] = math.Exp(-r[j] * dt)
	}
}

// propagateStatePrices rolls Q one level forward under 1/2-1/2 branching.
// Node j moves up to j and down to j+2 on the next level.
func propagateStatePrices(prevQ, prevD, next []float64) {
	for j := range next {
		next[j] = 0
	}
	for j := range prevQ {
		half := 0.5 * prevQ[j] * prevD[j]
		next[j] += half
		next[j+2] += half
	}
}

// modelDiscount evaluates sum_j Q(j) exp(-u exp(sigma (i-j) sqrt(dt)) dt) for a
// trial middle rate without touching a lattice.
func modelDiscount(q []float64, i int, u, sigma, dt float64) float64 {
	r := make([]float64, len(q))
	d := make([]float64, len(q))
	fillShortRates(r, i, u, sigma, dt)
	fillDiscounts(d, r, dt)
	return floats.Dot(q, d)
}

func checkCurves(steps, zeroRates, vols []float64) error {
	if len(steps) != len(zeroRates) || len(steps) != len(vols) {
		return fmt.Errorf("%w: steps=%d rates=%d vols=%d", ErrShapeMismatch, len(steps), len(zeroRates), len(vols))
	}
	if len(steps) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewPoints, len(steps))
	}
	for i := 1; i < len(steps); i++ {
		if !isFinite(steps[i]) || !isFinite(zeroRates[i]) || !isFinite(vols[i]) {
			return fmt.Errorf("%w at index %d", ErrInvalidInput, i)
		}
		if steps[i] <= 0 {
			return fmt.Errorf("%w: step %d is %.12f", ErrGridOrder, i, steps[i])
		}
		if vols[i] < 0 {
			return fmt.Errorf("%w: vol[%d] = %g", ErrNegativeVolatility, i, vols[i])
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
