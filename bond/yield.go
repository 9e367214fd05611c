package bond

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/ratetree/utils"
)

// YieldResult is the output of ImpliedYield.
type YieldResult struct {
	// Yield is continuously compounded, in decimal (0.04 = 4%).
	Yield float64
	// Iterations is the number of Newton-Raphson steps taken.
	Iterations int
}

// ImpliedYield solves for the flat continuously compounded yield y such that
// Σ CF_k · exp(−y·t_k) equals price, with t_k measured from valuation under dc.
// Cashflows on or before the valuation date are ignored.
//
// The yield is on the same basis as the lattice zero rates, so an
// option-adjusted price can be read as a yield directly.
func ImpliedYield(price float64, valuation time.Time, cashflows []Cashflow, dc utils.DayCount) (YieldResult, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return YieldResult{}, fmt.Errorf("ImpliedYield: price must be positive and finite, got %v", price)
	}

	times := make([]float64, 0, len(cashflows))
	amounts := make([]float64, 0, len(cashflows))
	for _, cf := range cashflows {
		if !cf.Date.After(valuation) {
			continue
		}
		times = append(times, dc.YearFraction(valuation, cf.Date))
		amounts = append(amounts, cf.Amount())
	}
	if len(times) == 0 {
		return YieldResult{}, fmt.Errorf("ImpliedYield: no cashflows after %s", valuation.Format(utils.DateLayout))
	}

	y, iterations, err := solveYield(price, times, amounts)
	if err != nil {
		return YieldResult{}, err
	}
	return YieldResult{Yield: y, Iterations: iterations}, nil
}

const (
	yieldTolerance = 1e-12
	yieldMaxIter   = 100
	yieldFloor     = -0.05
	yieldCeiling   = 0.50
)

// solveYield finds y such that priceAndDeriv(y) == target via Newton-Raphson.
func solveYield(target float64, times, amounts []float64) (float64, int, error) {
	y := clamp(0.025, yieldFloor, yieldCeiling)

	for iter := 0; iter < yieldMaxIter; iter++ {
		price, dPdy := priceAndDeriv(y, times, amounts)
		f := price - target

		if math.Abs(f) < yieldTolerance {
			return y, iter + 1, nil
		}
		if math.Abs(dPdy) < 1e-15 {
			return y, iter + 1, fmt.Errorf("ImpliedYield: derivative too small at iter %d", iter)
		}

		y = clamp(y-f/dPdy, yieldFloor, yieldCeiling)
	}

	return y, yieldMaxIter, fmt.Errorf("ImpliedYield: did not converge after %d iterations", yieldMaxIter)
}

// priceAndDeriv returns (price, dPrice/dy):
//
//	price = Σ CF_k · exp(−y·t_k)
//	dP/dy = Σ −t_k · CF_k · exp(−y·t_k)
func priceAndDeriv(y float64, times, amounts []float64) (float64, float64) {
	var price, deriv float64
	for k, t := range times {
		pv := amounts[k] * math.Exp(-y*t)
		price += pv
		deriv -= t * pv
	}
	return price, deriv
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
