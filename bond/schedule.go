package bond

import (
	"fmt"
	"time"

	"github.com/meenmo/ratetree/calendar"
	"github.com/meenmo/ratetree/utils"
)

// GenerateGrid returns the valuation date followed by periods dates spaced
// monthsPerPeriod apart, each rolled with conv on cal.
// Dates are generated from the unadjusted anchor so rolls do not drift.
func GenerateGrid(valuation time.Time, periods, monthsPerPeriod int, cal calendar.CalendarID, conv calendar.Convention) ([]time.Time, error) {
	if periods < 1 {
		return nil, fmt.Errorf("GenerateGrid: periods must be positive, got %d", periods)
	}
	if monthsPerPeriod < 1 {
		return nil, fmt.Errorf("GenerateGrid: monthsPerPeriod must be positive, got %d", monthsPerPeriod)
	}

	grid := make([]time.Time, 0, periods+1)
	grid = append(grid, valuation)
	for k := 1; k <= periods; k++ {
		d := calendar.Roll(conv, cal, utils.AddMonth(valuation, k*monthsPerPeriod))
		if !d.After(grid[len(grid)-1]) {
			return nil, fmt.Errorf("GenerateGrid: adjusted date %s does not advance the grid", d.Format(utils.DateLayout))
		}
		grid = append(grid, d)
	}
	return grid, nil
}

// FixedCouponBond builds a bullet bond paying couponRate (decimal, annual) on
// every grid point after the valuation date, accrued with dc, and notional at
// the last grid point.
func FixedCouponBond(grid []time.Time, couponRate, notional float64, dc utils.DayCount) ([]Cashflow, error) {
	if len(grid) < 2 {
		return nil, fmt.Errorf("FixedCouponBond: need at least two grid dates, got %d", len(grid))
	}
	cfs := make([]Cashflow, 0, len(grid)-1)
	for i := 1; i < len(grid); i++ {
		cf := Cashflow{
			Date:   grid[i],
			Coupon: notional * couponRate * dc.YearFraction(grid[i-1], grid[i]),
		}
		if i == len(grid)-1 {
			cf.Principal = notional
		}
		cfs = append(cfs, cf)
	}
	return cfs, nil
}
