package bond

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/meenmo/ratetree/bdt"
)

// Analytics summarizes a callable bond valuation.
type Analytics struct {
	// Price is the value with the embedded options.
	Price float64
	// StraightPrice is the value of the same cashflows without options.
	StraightPrice float64
	// OptionValue is StraightPrice − Price: positive when the issuer call
	// dominates, negative when the holder put dominates.
	OptionValue float64
	// EffectiveDuration and EffectiveConvexity come from parallel shifts of
	// the zero curve by ±BumpBP basis points with full recalibration.
	EffectiveDuration  float64
	EffectiveConvexity float64
	BumpBP             float64
	// Converged is false when any calibration behind these numbers hit the
	// iteration cap.
	Converged bool
}

type scenario struct {
	price, straight float64
	converged       bool
}

// Analyze prices the bond on the base curve and on curves shifted up and down
// by bumpBP basis points. The three calibrations run concurrently.
func Analyze(ctx context.Context, model *bdt.Model, b CallableBond, bumpBP float64) (Analytics, error) {
	if model == nil {
		return Analytics{}, fmt.Errorf("Analyze: model is required")
	}
	if bumpBP <= 0 {
		return Analytics{}, fmt.Errorf("Analyze: bumpBP must be positive, got %v", bumpBP)
	}
	inst, err := b.Instrument(model)
	if err != nil {
		return Analytics{}, fmt.Errorf("Analyze: %w", err)
	}
	straight := bdt.Instrument{Cashflows: inst.Cashflows}

	shift := bumpBP / 10000
	models := [3]*bdt.Model{model, model.Shift(shift), model.Shift(-shift)}
	var results [3]scenario

	g, ctx := errgroup.WithContext(ctx)
	for k, m := range models {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lat, err := m.BuildTree()
			if err != nil {
				return err
			}
			p, err := lat.Price(inst)
			if err != nil {
				return err
			}
			s, err := lat.Price(straight)
			if err != nil {
				return err
			}
			results[k] = scenario{price: p, straight: s, converged: lat.AllConverged()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Analytics{}, fmt.Errorf("Analyze: %w", err)
	}

	base, up, down := results[0], results[1], results[2]
	out := Analytics{
		Price:         base.price,
		StraightPrice: base.straight,
		OptionValue:   base.straight - base.price,
		BumpBP:        bumpBP,
		Converged:     base.converged && up.converged && down.converged,
	}
	if base.price != 0 {
		out.EffectiveDuration = (down.price - up.price) / (2 * base.price * shift)
		out.EffectiveConvexity = (down.price + up.price - 2*base.price) / (base.price * shift * shift)
	}
	return out, nil
}
