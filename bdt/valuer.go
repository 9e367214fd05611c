package bdt

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Flow is an amount (cashflow or strike) attached to a lattice level.
type Flow struct {
	Index  int
	Amount float64
}

// Instrument is a fixed cashflow schedule with optional issuer calls and
// holder puts. Calls and Puts may be nil.
type Instrument struct {
	Cashflows []Flow
	Calls     []Flow
	Puts      []Flow
}

// PriceCallableBond values cashflows with embedded call and put schedules.
func (l *Lattice) PriceCallableBond(cashflows, calls, puts []Flow) (float64, error) {
	return l.Price(Instrument{Cashflows: cashflows, Calls: calls, Puts: puts})
}

// Price values inst by backward induction.
//
// At every level the value is the discounted 1/2-1/2 continuation plus the
// cashflow due at that level; a scheduled call then caps it at the call
// strike and a scheduled put floors it at the put strike. The cashflow is
// included before either comparison, and exercise applies at the terminal
// level as well.
func (l *Lattice) Price(inst Instrument) (float64, error) {
	if err := l.Validate(); err != nil {
		return 0, fmt.Errorf("Price: %w", err)
	}
	n := l.Levels()

	cf, maturity, err := cashflowsByLevel(inst.Cashflows, n)
	if err != nil {
		return 0, fmt.Errorf("Price: cashflows: %w", err)
	}
	calls, err := strikesByLevel(inst.Calls, n, maturity)
	if err != nil {
		return 0, fmt.Errorf("Price: call schedule: %w", err)
	}
	puts, err := strikesByLevel(inst.Puts, n, maturity)
	if err != nil {
		return 0, fmt.Errorf("Price: put schedule: %w", err)
	}

	width := 2*n - 1
	next := make([]float64, width)
	cur := make([]float64, width)

	for j := range next {
		next[j] = cf[n-1]
	}
	exercise(next, calls[n-1], puts[n-1])

	for i := n - 2; i >= 0; i-- {
		row := cur[:2*i+1]
		d := l.discounts.Row(i)
		for j := range row {
			row[j] = 0.5*(next[j]+next[j+2])*d[j] + cf[i]
		}
		exercise(row, calls[i], puts[i])
		cur, next = next, cur
	}
	return next[0], nil
}

// DiscountCashflows values cashflows with no optionality: sum_k CF(k) * sum_j Q(k,j).
func (l *Lattice) DiscountCashflows(cashflows []Flow) (float64, error) {
	if err := l.Validate(); err != nil {
		return 0, fmt.Errorf("DiscountCashflows: %w", err)
	}
	cf, _, err := cashflowsByLevel(cashflows, l.Levels())
	if err != nil {
		return 0, fmt.Errorf("DiscountCashflows: %w", err)
	}
	pv := 0.0
	for k, amt := range cf {
		if amt != 0 {
			pv += amt * l.ModelDiscountFactor(k)
		}
	}
	return pv, nil
}

// PriceMany values instruments concurrently against one lattice. Results are
// in input order; the first error cancels the remaining work.
func PriceMany(ctx context.Context, l *Lattice, insts []Instrument) ([]float64, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("PriceMany: %w", err)
	}
	out := make([]float64, len(insts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k := range insts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pv, err := l.Price(insts[k])
			if err != nil {
				return fmt.Errorf("PriceMany: instrument %d: %w", k, err)
			}
			out[k] = pv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// strike is an optional exercise price.
type strike struct {
	price float64
	set   bool
}

func exercise(row []float64, call, put strike) {
	if call.set {
		for j := range row {
			row[j] = math.Min(row[j], call.price)
		}
	}
	if put.set {
		for j := range row {
			row[j] = math.Max(row[j], put.price)
		}
	}
}

// cashflowsByLevel sums flows per level and returns the last level carrying one.
func cashflowsByLevel(flows []Flow, n int) ([]float64, int, error) {
	cf := make([]float64, n)
	maturity := 0
	for _, f := range flows {
		if f.Index < 1 || f.Index > n-1 {
			return nil, 0, fmt.Errorf("%w: index %d not in [1, %d]", ErrIndexOutOfRange, f.Index, n-1)
		}
		if !isFinite(f.Amount) {
			return nil, 0, fmt.Errorf("%w: cashflow at index %d", ErrInvalidInput, f.Index)
		}
		cf[f.Index] += f.Amount
		if f.Index > maturity {
			maturity = f.Index
		}
	}
	return cf, maturity, nil
}

func strikesByLevel(flows []Flow, n, maturity int) ([]strike, error) {
	out := make([]strike, n)
	for _, f := range flows {
		if f.Index < 1 || f.Index > n-1 {
			return nil, fmt.Errorf("%w: index %d not in [1, %d]", ErrIndexOutOfRange, f.Index, n-1)
		}
		if f.Index > maturity {
			return nil, fmt.Errorf("%w: index %d, last cashflow at %d", ErrExerciseAfterMaturity, f.Index, maturity)
		}
		if !isFinite(f.Amount) || f.Amount < 0 {
			return nil, fmt.Errorf("%w: %g at index %d", ErrInvalidStrike, f.Amount, f.Index)
		}
		if out[f.Index].set {
			return nil, fmt.Errorf("%w: index %d", ErrDuplicateStrike, f.Index)
		}
		out[f.Index] = strike{price: f.Amount, set: true}
	}
	return out, nil
}
