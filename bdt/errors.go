package bdt

import "errors"

var (
	// ErrShapeMismatch is returned when grid, zero rates and volatilities differ in length.
	ErrShapeMismatch = errors.New("grid, zero rates and volatilities differ in length")
	// ErrTooFewPoints is returned for grids with fewer than two points.
	ErrTooFewPoints = errors.New("at least two grid points are required")
	// ErrGridOrder is returned when the grid does not start at the valuation date
	// or is not strictly increasing.
	ErrGridOrder = errors.New("grid must start at the valuation date and be strictly increasing")
	// ErrNegativeVolatility is returned for volatilities below zero.
	ErrNegativeVolatility = errors.New("volatility must be non-negative")
	// ErrInvalidInput is returned for NaN or infinite rates, vols or steps.
	ErrInvalidInput = errors.New("non-finite market input")

	// ErrUncalibrated is returned when pricing against a missing or partially built lattice.
	ErrUncalibrated = errors.New("lattice is not calibrated")
	// ErrIndexOutOfRange is returned for schedule entries with no lattice level.
	ErrIndexOutOfRange = errors.New("schedule index outside lattice levels")
	// ErrExerciseAfterMaturity is returned for exercise dates after the last cashflow.
	ErrExerciseAfterMaturity = errors.New("exercise index after final cashflow")
	// ErrDuplicateStrike is returned when one schedule lists the same index twice.
	ErrDuplicateStrike = errors.New("duplicate strike for one index")
	// ErrInvalidStrike is returned for negative or non-finite strikes.
	ErrInvalidStrike = errors.New("strike must be finite and non-negative")
)
