package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/meenmo/ratetree/bdt"
	"github.com/meenmo/ratetree/bond"
	"github.com/meenmo/ratetree/calendar"
	"github.com/meenmo/ratetree/config"
	"github.com/meenmo/ratetree/diagnostics"
	"github.com/meenmo/ratetree/instruments/bonds"
	"github.com/meenmo/ratetree/utils"
)

// priceInput is one valuation request. Amounts are integer cents per 100
// notional; rates and volatilities are decimals.
//
// The valuation date is either given or derived from trade_date plus
// settlement_days business days on calendar. With a schedule, the grid and
// (when cashflows are omitted) a fixed-coupon bullet are generated and curve
// points follow the generated dates in order.
type priceInput struct {
	TaskID         string         `yaml:"task_id"`
	ValuationDate  string         `yaml:"valuation_date" validate:"required_without=TradeDate"`
	TradeDate      string         `yaml:"trade_date"`
	SettlementDays int            `yaml:"settlement_days" validate:"gte=0"`
	Calendar       string         `yaml:"calendar" validate:"omitempty,oneof=NONE TARGET USD"`
	DayCount       string         `yaml:"day_count"`
	Schedule       *scheduleJSON  `yaml:"schedule"`
	Curve          []curvePoint   `yaml:"curve" validate:"min=1,dive"`
	Cashflows      []cashflowJSON `yaml:"cashflows" validate:"required_without=Schedule,dive"`
	Calls          []strikeJSON   `yaml:"calls" validate:"dive"`
	Puts           []strikeJSON   `yaml:"puts" validate:"dive"`
	BumpBP         float64        `yaml:"bump_bp" validate:"gte=0"`
}

type scheduleJSON struct {
	Periods         int     `yaml:"periods" validate:"gt=0"`
	MonthsPerPeriod int     `yaml:"months_per_period" validate:"gt=0"`
	Roll            string  `yaml:"roll" validate:"omitempty,oneof=MF F"`
	CouponRate      float64 `yaml:"coupon_rate" validate:"gte=0"`
	Notional        float64 `yaml:"notional" validate:"gte=0"`
}

// curvePoint dates are required without a schedule and optional with one.
type curvePoint struct {
	Date       string  `yaml:"date"`
	ZeroRate   float64 `yaml:"zero_rate"`
	Volatility float64 `yaml:"volatility" validate:"gte=0"`
}

type cashflowJSON struct {
	Date      string `yaml:"date" validate:"required"`
	Coupon    int64  `yaml:"coupon"`
	Principal int64  `yaml:"principal"`
}

type strikeJSON struct {
	Date  string `yaml:"date" validate:"required"`
	Price int64  `yaml:"price" validate:"gte=0"`
}

type priceOutput struct {
	TaskID             string           `json:"task_id,omitempty"`
	ValuationDate      string           `json:"valuation_date,omitempty"`
	Price              *decimal.Decimal `json:"price,omitempty"`
	StraightPrice      *decimal.Decimal `json:"straight_price,omitempty"`
	OptionValue        *decimal.Decimal `json:"option_value,omitempty"`
	Yield              float64          `json:"yield,omitempty"`
	EffectiveDuration  float64          `json:"effective_duration,omitempty"`
	EffectiveConvexity float64          `json:"effective_convexity,omitempty"`
	Converged          bool             `json:"converged"`
	Error              string           `json:"error,omitempty"`
}

const (
	defaultBumpBP   = 1.0
	defaultNotional = 100.0
	pricePlaces     = 6
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func main() {
	inputPath := flag.String("input", "", "YAML or JSON input path (reads stdin if omitted)")
	configPath := flag.String("config", "", "calibration config YAML (RATETREE_* env vars override it)")
	verbose := flag.Bool("v", false, "Log converged levels too")
	help := flag.Bool("h", false, "Show help")
	flag.BoolVar(help, "help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "Usage: callablebond -input <path> [-config <path>]")
		fmt.Fprintln(os.Stderr, "Price callable/putable bonds on a calibrated BDT lattice.")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	path := strings.TrimSpace(*inputPath)
	if path == "" {
		if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
			fmt.Fprintln(os.Stderr, "Usage: callablebond -input <path>")
			os.Exit(2)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		exitError(fmt.Sprintf("load config: %v", err))
	}

	raw, err := readInput(path)
	if err != nil {
		exitError(fmt.Sprintf("read input: %v", err))
	}

	inputs, isArray, err := parseInputs(raw)
	if err != nil {
		exitError(fmt.Sprintf("parse input: %v", err))
	}

	reg := prometheus.NewRegistry()
	metrics, err := diagnostics.NewPrometheusObserver(reg)
	if err != nil {
		exitError(fmt.Sprintf("metrics: %v", err))
	}
	obs := diagnostics.Multi(diagnostics.NewSlogObserver(logger), metrics)

	ctx := context.Background()
	hadError := false
	outputs := make([]priceOutput, 0, len(inputs))
	for _, in := range inputs {
		out, err := process(ctx, in, cfg, obs, logger)
		if err != nil {
			hadError = true
			logger.Error("valuation failed", "task_id", in.TaskID, "error", err)
			outputs = append(outputs, priceOutput{TaskID: in.TaskID, Error: err.Error()})
			continue
		}
		outputs = append(outputs, *out)
	}

	logSummary(logger, reg)

	if isArray {
		b, _ := json.Marshal(outputs)
		fmt.Println(string(b))
	} else {
		b, _ := json.Marshal(outputs[0])
		fmt.Println(string(b))
	}

	if hadError {
		os.Exit(1)
	}
}

func process(ctx context.Context, in priceInput, cfg config.Calibration, obs diagnostics.Observer, logger *slog.Logger) (*priceOutput, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid request: %v", err)
	}
	cal := calendar.CalendarID(in.Calendar)
	if cal == "" {
		cal = calendar.NONE
	}

	valuation, err := valuationDate(in, cal)
	if err != nil {
		return nil, err
	}
	grid, err := buildGrid(in, valuation, cal)
	if err != nil {
		return nil, err
	}

	mkt := bdt.Market{
		ValuationDate: valuation,
		Grid:          grid,
		ZeroRates:     []float64{0},
		Volatilities:  []float64{0},
		DayCount:      in.DayCount,
	}
	for _, p := range in.Curve {
		mkt.ZeroRates = append(mkt.ZeroRates, p.ZeroRate)
		mkt.Volatilities = append(mkt.Volatilities, p.Volatility)
	}

	model, err := bdt.NewModel(mkt, bdt.WithConfig(cfg), bdt.WithObserver(obs))
	if err != nil {
		return nil, err
	}

	cfs, err := cashflowRows(in, grid, model.DayCount())
	if err != nil {
		return nil, err
	}
	calls, err := toStrikes(in.Calls, "call")
	if err != nil {
		return nil, err
	}
	puts, err := toStrikes(in.Puts, "put")
	if err != nil {
		return nil, err
	}
	b := bonds.ToCallableBond(cfs, calls, puts)

	bump := in.BumpBP
	if bump == 0 {
		bump = defaultBumpBP
	}
	res, err := bond.Analyze(ctx, model, b, bump)
	if err != nil {
		return nil, err
	}

	out := &priceOutput{
		TaskID:             in.TaskID,
		ValuationDate:      valuation.Format(utils.DateLayout),
		Price:              rounded(res.Price),
		StraightPrice:      rounded(res.StraightPrice),
		OptionValue:        rounded(res.OptionValue),
		EffectiveDuration:  res.EffectiveDuration,
		EffectiveConvexity: res.EffectiveConvexity,
		Converged:          res.Converged,
	}
	y, err := bond.ImpliedYield(res.Price, valuation, b.Cashflows, model.DayCount())
	if err != nil {
		logger.Warn("implied yield unavailable", "task_id", in.TaskID, "price", res.Price, "error", err)
	} else {
		out.Yield = y.Yield
	}
	return out, nil
}

func valuationDate(in priceInput, cal calendar.CalendarID) (time.Time, error) {
	if in.ValuationDate != "" {
		d, err := utils.ParseDate(in.ValuationDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid valuation_date: %v", err)
		}
		return d, nil
	}
	trade, err := utils.ParseDate(in.TradeDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid trade_date: %v", err)
	}
	return calendar.AddBusinessDays(cal, trade, in.SettlementDays), nil
}

// buildGrid returns the lattice dates: generated from the schedule, or read
// from the curve points.
func buildGrid(in priceInput, valuation time.Time, cal calendar.CalendarID) ([]time.Time, error) {
	if in.Schedule == nil {
		grid := []time.Time{valuation}
		for _, p := range in.Curve {
			d, err := utils.ParseDate(p.Date)
			if err != nil {
				return nil, fmt.Errorf("invalid curve date %q: %v", p.Date, err)
			}
			grid = append(grid, d)
		}
		return grid, nil
	}

	s := in.Schedule
	if len(in.Curve) != s.Periods {
		return nil, fmt.Errorf("schedule has %d periods but curve has %d points", s.Periods, len(in.Curve))
	}
	grid, err := bond.GenerateGrid(valuation, s.Periods, s.MonthsPerPeriod, cal, calendar.Convention(s.Roll))
	if err != nil {
		return nil, err
	}
	for k, p := range in.Curve {
		if p.Date == "" {
			continue
		}
		d, err := utils.ParseDate(p.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid curve date %q: %v", p.Date, err)
		}
		if !utils.SameDay(d, grid[k+1]) {
			return nil, fmt.Errorf("curve date %s does not match scheduled date %s",
				p.Date, grid[k+1].Format(utils.DateLayout))
		}
	}
	return grid, nil
}

// cashflowRows returns the request cashflows, or a fixed-coupon bullet on the
// scheduled grid rounded to cents.
func cashflowRows(in priceInput, grid []time.Time, dc utils.DayCount) ([]bonds.CashflowCents, error) {
	if len(in.Cashflows) == 0 {
		notional := in.Schedule.Notional
		if notional == 0 {
			notional = defaultNotional
		}
		generated, err := bond.FixedCouponBond(grid, in.Schedule.CouponRate, notional, dc)
		if err != nil {
			return nil, err
		}
		out := make([]bonds.CashflowCents, 0, len(generated))
		for _, cf := range generated {
			out = append(out, bonds.CashflowCents{
				Date:           cf.Date,
				CouponCents:    bonds.ToCents(cf.Coupon),
				PrincipalCents: bonds.ToCents(cf.Principal),
			})
		}
		return out, nil
	}

	out := make([]bonds.CashflowCents, 0, len(in.Cashflows))
	for _, cf := range in.Cashflows {
		d, err := utils.ParseDate(cf.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid cashflow date %s: %v", cf.Date, err)
		}
		out = append(out, bonds.CashflowCents{Date: d, CouponCents: cf.Coupon, PrincipalCents: cf.Principal})
	}
	return out, nil
}

func toStrikes(in []strikeJSON, kind string) ([]bonds.StrikeCents, error) {
	out := make([]bonds.StrikeCents, 0, len(in))
	for _, s := range in {
		d, err := utils.ParseDate(s.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid %s date %s: %v", kind, s.Date, err)
		}
		out = append(out, bonds.StrikeCents{Date: d, PriceCents: s.Price})
	}
	return out, nil
}

func rounded(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v).Round(pricePlaces)
	return &d
}

// logSummary reports the calibration counters gathered over the whole run.
func logSummary(logger *slog.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("gather metrics", "error", err)
		return
	}
	attrs := make([]any, 0, 8)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += "_" + lp.GetValue()
			}
			attrs = append(attrs, name, m.GetCounter().GetValue())
		}
	}
	logger.Info("calibration summary", attrs...)
}

func readInput(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(os.Stdin)
}

// parseInputs accepts a single request or a list of them. JSON is read as YAML.
func parseInputs(raw []byte) ([]priceInput, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, false, err
	}
	if len(node.Content) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}
	if node.Content[0].Kind == yaml.SequenceNode {
		var inputs []priceInput
		if err := node.Decode(&inputs); err != nil {
			return nil, true, err
		}
		if len(inputs) == 0 {
			return nil, true, fmt.Errorf("empty input array")
		}
		return inputs, true, nil
	}
	var input priceInput
	if err := node.Decode(&input); err != nil {
		return nil, false, err
	}
	return []priceInput{input}, false, nil
}

func exitError(msg string) {
	b, _ := json.Marshal(priceOutput{Error: msg})
	fmt.Println(string(b))
	os.Exit(1)
}
