package bond

import (
	"fmt"
	"time"

	"github.com/meenmo/ratetree/bdt"
	"github.com/meenmo/ratetree/utils"
)

// Cashflow is a single dated cash payment for a bond.
//
// Amounts are in price-per-100 or currency units; the lattice does not care
// as long as strikes use the same units.
type Cashflow struct {
	Date      time.Time
	Coupon    float64
	Principal float64
}

func (c Cashflow) Amount() float64 {
	return c.Coupon + c.Principal
}

// Strike is a dated exercise price of a call or put.
type Strike struct {
	Date  time.Time
	Price float64
}

// CallableBond is a fixed cashflow bond with optional issuer calls and holder puts.
type CallableBond struct {
	Cashflows []Cashflow
	Calls     []Strike
	Puts      []Strike
}

// Maturity returns the latest cashflow date.
func (b CallableBond) Maturity() time.Time {
	var m time.Time
	for _, cf := range b.Cashflows {
		if cf.Date.After(m) {
			m = cf.Date
		}
	}
	return m
}

// Straight returns the same cashflows without any embedded option.
func (b CallableBond) Straight() CallableBond {
	return CallableBond{Cashflows: b.Cashflows}
}

// GridIndexer maps a date onto a lattice level. *bdt.Model implements it.
type GridIndexer interface {
	IndexOf(t time.Time) (int, bool)
}

// Instrument maps every dated entry onto the grid. Dates that do not fall on a
// grid point are rejected.
func (b CallableBond) Instrument(grid GridIndexer) (bdt.Instrument, error) {
	var inst bdt.Instrument
	for _, cf := range b.Cashflows {
		idx, ok := grid.IndexOf(cf.Date)
		if !ok {
			return bdt.Instrument{}, fmt.Errorf("Instrument: %w: cashflow date %s is not a grid point",
				bdt.ErrIndexOutOfRange, cf.Date.Format(utils.DateLayout))
		}
		inst.Cashflows = append(inst.Cashflows, bdt.Flow{Index: idx, Amount: cf.Amount()})
	}
	calls, err := strikeFlows(grid, b.Calls, "call")
	if err != nil {
		return bdt.Instrument{}, err
	}
	puts, err := strikeFlows(grid, b.Puts, "put")
	if err != nil {
		return bdt.Instrument{}, err
	}
	inst.Calls, inst.Puts = calls, puts
	return inst, nil
}

func strikeFlows(grid GridIndexer, strikes []Strike, kind string) ([]bdt.Flow, error) {
	if len(strikes) == 0 {
		return nil, nil
	}
	out := make([]bdt.Flow, 0, len(strikes))
	for _, s := range strikes {
		idx, ok := grid.IndexOf(s.Date)
		if !ok {
			return nil, fmt.Errorf("Instrument: %w: %s date %s is not a grid point",
				bdt.ErrIndexOutOfRange, kind, s.Date.Format(utils.DateLayout))
		}
		out = append(out, bdt.Flow{Index: idx, Amount: s.Price})
	}
	return out, nil
}

// Price calibrates the model and values the bond on the resulting lattice.
func Price(model *bdt.Model, b CallableBond) (float64, error) {
	if model == nil {
		return 0, fmt.Errorf("Price: model is required")
	}
	inst, err := b.Instrument(model)
	if err != nil {
		return 0, err
	}
	lat, err := model.BuildTree()
	if err != nil {
		return 0, fmt.Errorf("Price: %w", err)
	}
	return lat.Price(inst)
}
