package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/meenmo/ratetree/bdt"
	"github.com/meenmo/ratetree/diagnostics"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	val := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	model, err := bdt.NewModel(bdt.Market{
		ValuationDate: val,
		Grid:          []time.Time{val, val.AddDate(1, 0, 0), val.AddDate(2, 0, 0), val.AddDate(3, 0, 0)},
		ZeroRates:     []float64{0, 0.03, 0.035, 0.04},
		Volatilities:  []float64{0, 0.01, 0.015, 0.02},
		DayCount:      "ACT/365",
	}, bdt.WithObserver(diagnostics.NewSlogObserver(logger)))
	if err != nil {
		logger.Error("build model", "error", err)
		os.Exit(1)
	}

	lat, err := model.BuildTree()
	if err != nil {
		logger.Error("calibrate", "error", err)
		os.Exit(1)
	}

	cashflows := []bdt.Flow{{Index: 1, Amount: 5}, {Index: 2, Amount: 5}, {Index: 3, Amount: 105}}
	calls := []bdt.Flow{{Index: 2, Amount: 102}, {Index: 3, Amount: 102}}

	straight, err := lat.PriceCallableBond(cashflows, nil, nil)
	if err != nil {
		logger.Error("price straight bond", "error", err)
		os.Exit(1)
	}
	callable, err := lat.PriceCallableBond(cashflows, calls, nil)
	if err != nil {
		logger.Error("price callable bond", "error", err)
		os.Exit(1)
	}

	for i := 0; i < lat.Levels()-1; i++ {
		fmt.Printf("level %d: u=%.6f residual=%.2e iterations=%d\n",
			i, lat.MiddleRate(i), lat.Residual(i), lat.Iterations(i))
	}
	fmt.Printf("Straight: %.6f\n", straight)
	fmt.Printf("Callable: %.6f\n", callable)
	fmt.Printf("Call value: %.6f\n", straight-callable)
}
