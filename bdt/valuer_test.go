package bdt_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/ratetree/bdt"
	"github.com/meenmo/ratetree/config"
)

var scenarioCashflows = []bdt.Flow{
	{Index: 1, Amount: 5},
	{Index: 2, Amount: 5},
	{Index: 3, Amount: 105},
}

func TestPrice_EndToEndScenario(t *testing.T) {
	t.Parallel()

	lat := buildLattice(t, scenarioMarket())
	for i := 1; i <= 2; i++ {
		require.True(t, lat.Converged(i))
		require.Less(t, lat.Residual(i), 1e-8)
	}

	calls := []bdt.Flow{{Index: 2, Amount: 102}, {Index: 3, Amount: 102}}
	callable, err := lat.PriceCallableBond(scenarioCashflows, calls, nil)
	require.NoError(t, err)

	straight, err := lat.PriceCallableBond(scenarioCashflows, nil, nil)
	require.NoError(t, err)

	assert.Positive(t, callable)
	assert.LessOrEqual(t, callable, straight)
	assert.Less(t, callable, straight, "the maturity call caps 105 at 102")

	market := 5*math.Exp(-0.03) + 5*math.Exp(-0.07) + 105*math.Exp(-0.12)
	assert.InDelta(t, market, straight, 1e-6)
}

func TestPrice_PureBondMatchesStatePrices(t *testing.T) {
	t.Parallel()

	mkt := semiannualMarket()
	lat := buildLattice(t, mkt)
	n := lat.Levels()

	flows := make([]bdt.Flow, 0, n-1)
	for k := 1; k < n; k++ {
		flows = append(flows, bdt.Flow{Index: k, Amount: 2})
	}
	flows[len(flows)-1].Amount += 100

	pv, err := lat.Price(bdt.Instrument{Cashflows: flows})
	require.NoError(t, err)

	viaStates, err := lat.DiscountCashflows(flows)
	require.NoError(t, err)
	assert.InEpsilon(t, viaStates, pv, 1e-12)

	times := lat.Times()
	market := 0.0
	for _, f := range flows {
		market += f.Amount * math.Exp(-mkt.ZeroRates[f.Index]*times[f.Index])
	}
	assert.InDelta(t, market, pv, 120*config.DefaultConfig.Tolerance)
}

func TestPrice_CallBoundaries(t *testing.T) {
	t.Parallel()

	lat := buildLattice(t, scenarioMarket())
	straight, err := lat.PriceCallableBond(scenarioCashflows, nil, nil)
	require.NoError(t, err)

	t.Run("unreachable strike never binds", func(t *testing.T) {
		pv, err := lat.PriceCallableBond(scenarioCashflows, []bdt.Flow{{Index: 1, Amount: 1e9}, {Index: 2, Amount: 1e9}, {Index: 3, Amount: 1e9}}, nil)
		require.NoError(t, err)
		assert.Equal(t, straight, pv)
	})

	t.Run("zero strike zeroes the price", func(t *testing.T) {
		pv, err := lat.PriceCallableBond(scenarioCashflows, []bdt.Flow{{Index: 1, Amount: 0}}, nil)
		require.NoError(t, err)
		assert.Zero(t, pv)
	})

	t.Run("zero strike later keeps earlier cashflows", func(t *testing.T) {
		pv, err := lat.PriceCallableBond(scenarioCashflows, []bdt.Flow{{Index: 2, Amount: 0}}, nil)
		require.NoError(t, err)
		assert.InDelta(t, 5*lat.ModelDiscountFactor(1), pv, 1e-12)
	})
}

func TestPrice_PutBoundaries(t *testing.T) {
	t.Parallel()

	lat := buildLattice(t, scenarioMarket())
	straight, err := lat.PriceCallableBond(scenarioCashflows, nil, nil)
	require.NoError(t, err)

	pv, err := lat.PriceCallableBond(scenarioCashflows, nil, []bdt.Flow{{Index: 2, Amount: 0}})
	require.NoError(t, err)
	assert.Equal(t, straight, pv, "a zero put never binds")

	pv, err = lat.PriceCallableBond(scenarioCashflows, nil, []bdt.Flow{{Index: 2, Amount: 1e6}})
	require.NoError(t, err)
	want := 1e6*lat.ModelDiscountFactor(2) + 5*lat.ModelDiscountFactor(1)
	assert.InEpsilon(t, want, pv, 1e-12)

	pv, err = lat.PriceCallableBond(scenarioCashflows, nil, []bdt.Flow{{Index: 2, Amount: 101}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pv, straight)
}

// twoPointLattice has a single step so every exercise decision happens on the
// terminal level and the price is value * DF(1).
func twoPointLattice(t *testing.T) *bdt.Lattice {
	t.Helper()
	val := date(2025, 1, 1)
	return buildLattice(t, bdt.Market{
		ValuationDate: val,
		Grid:          []time.Time{val, date(2026, 1, 1)},
		ZeroRates:     []float64{0, 0.04},
		Volatilities:  []float64{0, 0.1},
		DayCount:      "ACT/365",
	})
}

func TestPrice_CashflowBeforeExercise(t *testing.T) {
	t.Parallel()

	lat := twoPointLattice(t)
	df := math.Exp(-0.04)
	cfs := []bdt.Flow{{Index: 1, Amount: 105}}

	// Comparison is against the value including the coupon: min(105, 102).
	pv, err := lat.PriceCallableBond(cfs, []bdt.Flow{{Index: 1, Amount: 102}}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 102*df, pv, 1e-12)

	pv, err = lat.PriceCallableBond(cfs, nil, []bdt.Flow{{Index: 1, Amount: 110}})
	require.NoError(t, err)
	assert.InDelta(t, 110*df, pv, 1e-12)
}

func TestPrice_CallAppliedBeforePut(t *testing.T) {
	t.Parallel()

	lat := twoPointLattice(t)
	df := math.Exp(-0.04)
	cfs := []bdt.Flow{{Index: 1, Amount: 105}}

	pv, err := lat.PriceCallableBond(cfs, []bdt.Flow{{Index: 1, Amount: 100}}, []bdt.Flow{{Index: 1, Amount: 101}})
	require.NoError(t, err)
	assert.InDelta(t, 101*df, pv, 1e-12, "max(min(105, 100), 101)")
}

func TestPrice_DuplicateCashflowsAreSummed(t *testing.T) {
	t.Parallel()

	lat := buildLattice(t, scenarioMarket())
	split, err := lat.PriceCallableBond([]bdt.Flow{{Index: 3, Amount: 5}, {Index: 3, Amount: 100}}, nil, nil)
	require.NoError(t, err)
	single, err := lat.PriceCallableBond([]bdt.Flow{{Index: 3, Amount: 105}}, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, single, split, 1e-12)
}

func TestPrice_EmptyInstrument(t *testing.T) {
	t.Parallel()

	lat := buildLattice(t, scenarioMarket())
	pv, err := lat.Price(bdt.Instrument{})
	require.NoError(t, err)
	assert.Zero(t, pv)
}

func TestPrice_Errors(t *testing.T) {
	t.Parallel()

	lat := buildLattice(t, scenarioMarket())
	tests := []struct {
		name string
		inst bdt.Instrument
		want error
	}{
		{"cashflow at valuation", bdt.Instrument{Cashflows: []bdt.Flow{{Index: 0, Amount: 1}}}, bdt.ErrIndexOutOfRange},
		{"cashflow past grid", bdt.Instrument{Cashflows: []bdt.Flow{{Index: 4, Amount: 1}}}, bdt.ErrIndexOutOfRange},
		{"nan cashflow", bdt.Instrument{Cashflows: []bdt.Flow{{Index: 1, Amount: math.NaN()}}}, bdt.ErrInvalidInput},
		{"call past grid", bdt.Instrument{Cashflows: scenarioCashflows, Calls: []bdt.Flow{{Index: 7, Amount: 100}}}, bdt.ErrIndexOutOfRange},
		{"put after maturity", bdt.Instrument{
			Cashflows: []bdt.Flow{{Index: 1, Amount: 5}, {Index: 2, Amount: 105}},
			Puts:      []bdt.Flow{{Index: 3, Amount: 100}},
		}, bdt.ErrExerciseAfterMaturity},
		{"duplicate call", bdt.Instrument{Cashflows: scenarioCashflows, Calls: []bdt.Flow{{Index: 2, Amount: 101}, {Index: 2, Amount: 102}}}, bdt.ErrDuplicateStrike},
		{"negative put", bdt.Instrument{Cashflows: scenarioCashflows, Puts: []bdt.Flow{{Index: 2, Amount: -1}}}, bdt.ErrInvalidStrike},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lat.Price(tt.inst)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPrice_UncalibratedLattice(t *testing.T) {
	t.Parallel()

	var nilLattice *bdt.Lattice
	_, err := nilLattice.PriceCallableBond(scenarioCashflows, nil, nil)
	assert.ErrorIs(t, err, bdt.ErrUncalibrated)

	_, err = (&bdt.Lattice{}).PriceCallableBond(scenarioCashflows, nil, nil)
	assert.ErrorIs(t, err, bdt.ErrUncalibrated)

	_, err = (&bdt.Lattice{}).DiscountCashflows(scenarioCashflows)
	assert.ErrorIs(t, err, bdt.ErrUncalibrated)

	_, err = bdt.PriceMany(context.Background(), nil, nil)
	assert.ErrorIs(t, err, bdt.ErrUncalibrated)
}

func TestPriceMany(t *testing.T) {
	t.Parallel()

	lat := buildLattice(t, semiannualMarket())
	n := lat.Levels()

	insts := make([]bdt.Instrument, 0, 24)
	for k := 0; k < 24; k++ {
		cfs := make([]bdt.Flow, 0, n-1)
		for i := 1; i < n; i++ {
			cfs = append(cfs, bdt.Flow{Index: i, Amount: 1 + 0.25*float64(k)})
		}
		cfs[len(cfs)-1].Amount += 100
		insts = append(insts, bdt.Instrument{
			Cashflows: cfs,
			Calls:     []bdt.Flow{{Index: n / 2, Amount: 100 + float64(k%4)}},
		})
	}

	got, err := bdt.PriceMany(context.Background(), lat, insts)
	require.NoError(t, err)
	require.Len(t, got, len(insts))
	for k, inst := range insts {
		want, err := lat.Price(inst)
		require.NoError(t, err)
		assert.Equal(t, want, got[k], "instrument %d", k)
	}

	insts[5].Calls = []bdt.Flow{{Index: n + 3, Amount: 100}}
	_, err = bdt.PriceMany(context.Background(), lat, insts)
	assert.ErrorIs(t, err, bdt.ErrIndexOutOfRange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bdt.PriceMany(ctx, lat, insts[:3])
	assert.ErrorIs(t, err, context.Canceled)
}
