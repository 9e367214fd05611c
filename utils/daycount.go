package utils

import (
	"fmt"
	"strings"
	"time"
)

// DayCount is a year-fraction convention.
type DayCount string

const (
	Act365 DayCount = "ACT/365"
	Act360 DayCount = "ACT/360"
	Thirty DayCount = "30/360"
)

// ParseDayCount normalizes a convention tag. Unrecognized tags return Act365
// and ok == false so the caller can report the fallback.
func ParseDayCount(tag string) (DayCount, bool) {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "ACT/365", "ACT/365F", "ACT/365 FIXED":
		return Act365, true
	case "ACT/360":
		return Act360, true
	case "30/360", "30E/360":
		return Thirty, true
	default:
		return Act365, false
	}
}

// YearFraction returns the fraction of a year between start and end.
func (dc DayCount) YearFraction(start, end time.Time) float64 {
	switch dc {
	case Act360:
		return Days(start, end) / 360.0
	case Thirty:
		// 30E/360 ISDA (Eurobond basis)
		// D1 and D2 are capped at 30
		d1 := start.Day()
		if d1 > 30 {
			d1 = 30
		}
		d2 := end.Day()
		if d2 > 30 {
			d2 = 30
		}
		y1, m1 := start.Year(), int(start.Month())
		y2, m2 := end.Year(), int(end.Month())
		return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
	default:
		return Days(start, end) / 365.0
	}
}

// StepFractions converts an ordered grid into the step sequence used by the
// lattice: out[0] = 0 and out[i] is the year fraction from grid[i-1] to grid[i].
func StepFractions(grid []time.Time, dc DayCount) ([]float64, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("StepFractions: empty grid")
	}
	steps := make([]float64, len(grid))
	for i := 1; i < len(grid); i++ {
		if !grid[i].After(grid[i-1]) {
			return nil, fmt.Errorf("StepFractions: grid[%d] (%s) is not after grid[%d] (%s)",
				i, grid[i].Format(DateLayout), i-1, grid[i-1].Format(DateLayout))
		}
		steps[i] = dc.YearFraction(grid[i-1], grid[i])
		if steps[i] <= 0 {
			return nil, fmt.Errorf("StepFractions: non-positive step %.12f at grid index %d", steps[i], i)
		}
	}
	return steps, nil
}

// CumulativeTimes returns t[i] = steps[1] + ... + steps[i].
func CumulativeTimes(steps []float64) []float64 {
	out := make([]float64, len(steps))
	for i := 1; i < len(steps); i++ {
		out[i] = out[i-1] + steps[i]
	}
	return out
}
