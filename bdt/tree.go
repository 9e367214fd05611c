package bdt

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/meenmo/ratetree/lattice"
)

// Lattice is a calibrated BDT short-rate tree. It is immutable once Calibrate
// returns and may be shared by concurrent valuations.
//
// Levels run 0..N-1. Short rates and state prices cover every level; discount
// factors cover 0..N-2 because the terminal level has no further step. The
// terminal short-rate row is extrapolated from the last middle rate and is
// informational only.
type Lattice struct {
	steps []float64
	times []float64

	middle    []float64 // u(i) for levels 0..N-2, u(0) = r(0,0)
	rates     *lattice.Triangle
	discounts *lattice.Triangle
	states    *lattice.Triangle

	targets    []float64 // market discount factor to each grid point
	residuals  []float64
	iterations []int
	converged  []bool
}

// Validate reports ErrUncalibrated unless every lattice array is fully populated.
func (l *Lattice) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: nil lattice", ErrUncalibrated)
	}
	n := len(l.steps)
	switch {
	case n < 2:
		return fmt.Errorf("%w: %d levels", ErrUncalibrated, n)
	case l.rates.Levels() != n:
		return fmt.Errorf("%w: short-rate lattice has %d of %d levels", ErrUncalibrated, l.rates.Levels(), n)
	case l.states.Levels() != n:
		return fmt.Errorf("%w: state-price lattice has %d of %d levels", ErrUncalibrated, l.states.Levels(), n)
	case l.discounts.Levels() != n-1:
		return fmt.Errorf("%w: discount lattice has %d of %d levels", ErrUncalibrated, l.discounts.Levels(), n-1)
	case len(l.middle) != n-1 || len(l.times) != n || len(l.targets) != n:
		return fmt.Errorf("%w: level metadata incomplete", ErrUncalibrated)
	case len(l.residuals) != n-1 || len(l.iterations) != n-1 || len(l.converged) != n-1:
		return fmt.Errorf("%w: calibration results incomplete", ErrUncalibrated)
	}
	return nil
}

// Levels returns N, the number of grid points and tree levels.
func (l *Lattice) Levels() int { return len(l.steps) }

// Steps returns a copy of the step sequence (Steps()[0] == 0).
func (l *Lattice) Steps() []float64 { return append([]float64(nil), l.steps...) }

// Times returns a copy of the cumulative year fractions of each level.
func (l *Lattice) Times() []float64 { return append([]float64(nil), l.times...) }

// MiddleRate returns u(i) for 0 <= i <= N-2.
func (l *Lattice) MiddleRate(i int) float64 { return l.middle[i] }

// ShortRate returns r(i, j).
func (l *Lattice) ShortRate(i, j int) float64 { return l.rates.At(i, j) }

// Discount returns d(i, j) for levels 0..N-2.
func (l *Lattice) Discount(i, j int) float64 { return l.discounts.At(i, j) }

// StatePrice returns the Arrow-Debreu price Q(i, j).
func (l *Lattice) StatePrice(i, j int) float64 { return l.states.At(i, j) }

// ShortRates returns a copy of the short-rate lattice.
func (l *Lattice) ShortRates() *lattice.Triangle { return l.rates.Clone() }

// Discounts returns a copy of the discount-factor lattice.
func (l *Lattice) Discounts() *lattice.Triangle { return l.discounts.Clone() }

// StatePrices returns a copy of the state-price lattice.
func (l *Lattice) StatePrices() *lattice.Triangle { return l.states.Clone() }

// ModelDiscountFactor returns the lattice price of a zero-coupon bond paying 1
// at level k, i.e. the sum of the level's state prices.
func (l *Lattice) ModelDiscountFactor(k int) float64 {
	return floats.Sum(l.states.Row(k))
}

// MarketDiscountFactor returns exp(-R(k) t(k)), the calibration target for level k-1.
func (l *Lattice) MarketDiscountFactor(k int) float64 { return l.targets[k] }

// Residual returns |sum_j Q(i,j) d(i,j) - B*(i+1)| left by calibration at level i.
func (l *Lattice) Residual(i int) float64 { return l.residuals[i] }

// Iterations returns the bisection trials spent on level i (0 for the root).
func (l *Lattice) Iterations(i int) int { return l.iterations[i] }

// Converged reports whether level i met the tolerance.
func (l *Lattice) Converged(i int) bool { return l.converged[i] }

// AllConverged reports whether every calibrated level met the tolerance.
func (l *Lattice) AllConverged() bool {
	for _, ok := range l.converged {
		if !ok {
			return false
		}
	}
	return true
}

// Equal reports whether two lattices hold bit-identical rows.
func (l *Lattice) Equal(o *Lattice) bool {
	if l == nil || o == nil {
		return l == o
	}
	return floats.Same(l.steps, o.steps) &&
		floats.Same(l.middle, o.middle) &&
		l.rates.Equal(o.rates) &&
		l.discounts.Equal(o.discounts) &&
		l.states.Equal(o.states)
}
