package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/ratetree/config"
	"github.com/meenmo/ratetree/diagnostics"
)

const scenarioJSON = `{
  "task_id": "t1",
  "valuation_date": "2025-01-01",
  "day_count": "ACT/365",
  "curve": [
    {"date": "2026-01-01", "zero_rate": 0.03, "volatility": 0.10},
    {"date": "2027-01-01", "zero_rate": 0.035, "volatility": 0.12},
    {"date": "2028-01-01", "zero_rate": 0.04, "volatility": 0.15}
  ],
  "cashflows": [
    {"date": "2026-01-01", "coupon": 500},
    {"date": "2027-01-01", "coupon": 500},
    {"date": "2028-01-01", "coupon": 500, "principal": 10000}
  ],
  "calls": [
    {"date": "2027-01-01", "price": 10200},
    {"date": "2028-01-01", "price": 10200}
  ]
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseInputs(t *testing.T) {
	inputs, isArray, err := parseInputs([]byte(scenarioJSON))
	require.NoError(t, err)
	assert.False(t, isArray)
	require.Len(t, inputs, 1)
	assert.Equal(t, "t1", inputs[0].TaskID)
	assert.Len(t, inputs[0].Curve, 3)
	assert.Equal(t, int64(10000), inputs[0].Cashflows[2].Principal)

	inputs, isArray, err = parseInputs([]byte("[" + scenarioJSON + "," + scenarioJSON + "]"))
	require.NoError(t, err)
	assert.True(t, isArray)
	assert.Len(t, inputs, 2)

	yamlInput := `
valuation_date: "2025-01-01"
curve:
  - {date: "2026-01-01", zero_rate: 0.03, volatility: 0.1}
cashflows:
  - {date: "2026-01-01", coupon: 500, principal: 10000}
`
	inputs, _, err = parseInputs([]byte(yamlInput))
	require.NoError(t, err)
	assert.Equal(t, 0.1, inputs[0].Curve[0].Volatility)

	_, _, err = parseInputs([]byte("  "))
	assert.Error(t, err)
	_, _, err = parseInputs([]byte("[]"))
	assert.Error(t, err)
}

func TestProcess(t *testing.T) {
	inputs, _, err := parseInputs([]byte(scenarioJSON))
	require.NoError(t, err)

	rec := &diagnostics.Recorder{}
	out, err := process(context.Background(), inputs[0], config.DefaultConfig, rec, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "t1", out.TaskID)
	assert.True(t, out.Converged)
	require.NotNil(t, out.Price)
	require.NotNil(t, out.StraightPrice)

	price := out.Price.InexactFloat64()
	straight := out.StraightPrice.InexactFloat64()
	market := 5*math.Exp(-0.03) + 5*math.Exp(-0.07) + 105*math.Exp(-0.12)
	assert.InDelta(t, market, straight, 1e-5)
	assert.Less(t, price, straight)
	assert.Positive(t, out.OptionValue.InexactFloat64())
	assert.Positive(t, out.EffectiveDuration)
	assert.Positive(t, out.Yield)
	assert.NotEmpty(t, rec.OfKind(diagnostics.CalibrationConverged))
}

func TestProcess_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *priceInput)
	}{
		{"missing valuation date", func(in *priceInput) { in.ValuationDate = "" }},
		{"bad valuation date", func(in *priceInput) { in.ValuationDate = "01/01/2025" }},
		{"no curve", func(in *priceInput) { in.Curve = nil }},
		{"negative volatility", func(in *priceInput) { in.Curve[1].Volatility = -0.1 }},
		{"off-grid call", func(in *priceInput) { in.Calls[0].Date = "2026-06-30" }},
		{"negative bump", func(in *priceInput) { in.BumpBP = -1 }},
		{"no cashflows or schedule", func(in *priceInput) { in.Cashflows = nil }},
		{"unknown calendar", func(in *priceInput) { in.Calendar = "JPN" }},
		{"missing curve date", func(in *priceInput) { in.Curve[0].Date = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh, _, err := parseInputs([]byte(scenarioJSON))
			require.NoError(t, err)
			in := fresh[0]
			tt.mutate(&in)
			_, err = process(context.Background(), in, config.DefaultConfig, diagnostics.Nop, quietLogger())
			assert.Error(t, err)
		})
	}
}

const scheduledYAML = `
task_id: sched
trade_date: "2024-12-30"
settlement_days: 2
calendar: TARGET
day_count: ACT/365
schedule:
  periods: 3
  months_per_period: 12
  coupon_rate: 0.05
curve:
  - {zero_rate: 0.03, volatility: 0.10}
  - {zero_rate: 0.035, volatility: 0.12}
  - {date: "2028-01-03", zero_rate: 0.04, volatility: 0.15}
calls:
  - {date: "2027-01-04", price: 10200}
  - {date: "2028-01-03", price: 10200}
`

func TestProcess_GeneratedSchedule(t *testing.T) {
	inputs, _, err := parseInputs([]byte(scheduledYAML))
	require.NoError(t, err)

	out, err := process(context.Background(), inputs[0], config.DefaultConfig, diagnostics.Nop, quietLogger())
	require.NoError(t, err)

	// 2025-01-01 is a TARGET holiday, so T+2 from Monday 2024-12-30 lands on 2025-01-02.
	assert.Equal(t, "2025-01-02", out.ValuationDate)
	assert.True(t, out.Converged)

	// Grid rolls to 2026-01-02, 2027-01-04 and 2028-01-03; coupons are rounded to cents.
	t1 := 365.0 / 365
	t2 := t1 + 367.0/365
	t3 := t2 + 364.0/365
	market := 5.00*math.Exp(-0.03*t1) + 5.03*math.Exp(-0.035*t2) + 104.99*math.Exp(-0.04*t3)
	assert.InDelta(t, market, out.StraightPrice.InexactFloat64(), 1e-5)
	assert.Less(t, out.Price.InexactFloat64(), out.StraightPrice.InexactFloat64())
	assert.Positive(t, out.Yield)
}

func TestProcess_ScheduleErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *priceInput)
	}{
		{"curve shorter than schedule", func(in *priceInput) { in.Curve = in.Curve[:2] }},
		{"curve date off schedule", func(in *priceInput) { in.Curve[2].Date = "2028-01-02" }},
		{"bad roll", func(in *priceInput) { in.Schedule.Roll = "P" }},
		{"no valuation or trade date", func(in *priceInput) { in.TradeDate = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs, _, err := parseInputs([]byte(scheduledYAML))
			require.NoError(t, err)
			in := inputs[0]
			tt.mutate(&in)
			_, err = process(context.Background(), in, config.DefaultConfig, diagnostics.Nop, quietLogger())
			assert.Error(t, err)
		})
	}
}

func TestProcess_ImpliedYieldFailureIsLogged(t *testing.T) {
	inputs, _, err := parseInputs([]byte(scenarioJSON))
	require.NoError(t, err)
	in := inputs[0]
	// A zero call at the first coupon date makes the bond worthless.
	in.Calls = []strikeJSON{{Date: "2026-01-01", Price: 0}}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	out, err := process(context.Background(), in, config.DefaultConfig, diagnostics.Nop, logger)
	require.NoError(t, err)

	assert.True(t, out.Price.IsZero())
	assert.Zero(t, out.Yield)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "implied yield unavailable")
	assert.Contains(t, buf.String(), `"task_id":"t1"`)
}
