package bonds

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meenmo/ratetree/bond"
)

// CashflowCents mirrors a feed where coupon/principal are stored as integer
// minor units (e.g., cents for EUR).
type CashflowCents struct {
	Date           time.Time
	CouponCents    int64
	PrincipalCents int64
}

func (c CashflowCents) ToCashflow() bond.Cashflow {
	return bond.Cashflow{
		Date:      c.Date,
		Coupon:    centsToUnits(c.CouponCents),
		Principal: centsToUnits(c.PrincipalCents),
	}
}

func ToCashflows(in []CashflowCents) []bond.Cashflow {
	out := make([]bond.Cashflow, 0, len(in))
	for _, cf := range in {
		out = append(out, cf.ToCashflow())
	}
	return out
}

// StrikeCents is a call or put price in minor units.
type StrikeCents struct {
	Date       time.Time
	PriceCents int64
}

func (s StrikeCents) ToStrike() bond.Strike {
	return bond.Strike{Date: s.Date, Price: centsToUnits(s.PriceCents)}
}

func ToStrikes(in []StrikeCents) []bond.Strike {
	if len(in) == 0 {
		return nil
	}
	out := make([]bond.Strike, 0, len(in))
	for _, s := range in {
		out = append(out, s.ToStrike())
	}
	return out
}

// ToCallableBond assembles a bond from feed rows.
func ToCallableBond(cfs []CashflowCents, calls, puts []StrikeCents) bond.CallableBond {
	return bond.CallableBond{
		Cashflows: ToCashflows(cfs),
		Calls:     ToStrikes(calls),
		Puts:      ToStrikes(puts),
	}
}

// ToCents rounds a unit amount to the nearest minor unit, half away from zero.
func ToCents(v float64) int64 {
	return decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()
}

func centsToUnits(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}
