package series

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when a trend cannot be fitted
var ErrInsufficientData = errors.New("not enough valid values")

const daysPerYear = 365.25

// Despike replaces isolated spikes with NaN. A value is a spike when it differs from
// both its previous and next valid neighbours by more than maxChange in the same
// direction. The largest spike is removed first and the scan repeats until none is
// left. It returns a new slice and the number of values removed.
func Despike(values []float64, maxChange float64) ([]float64, int) {
	out := append([]float64(nil), values...)
	if !(maxChange > 0) {
		return out, 0
	}

	removed := 0
	for {
		valid := make([]int, 0, len(out))
		for i, v := range out {
			if !math.IsNaN(v) {
				valid = append(valid, i)
			}
		}

		worst, worstSize := -1, 0.0
		for k := 1; k < len(valid)-1; k++ {
			v := out[valid[k]]
			d1 := v - out[valid[k-1]]
			d2 := v - out[valid[k+1]]
			if math.Abs(d1) <= maxChange || math.Abs(d2) <= maxChange || (d1 > 0) != (d2 > 0) {
				continue
			}
			if size := math.Min(math.Abs(d1), math.Abs(d2)); size > worstSize {
				worst, worstSize = valid[k], size
			}
		}

		if worst < 0 {
			return out, removed
		}
		out[worst] = math.NaN()
		removed++
	}
}

// Despike returns a copy of the table with spikes removed from every column,
// and the number of cells removed per transect
func (t *Table) Despike(maxChange float64) (*Table, map[string]int) {
	clone := t.Clone()
	removed := make(map[string]int, len(t.Names))
	for c, name := range clone.Names {
		clone.Values[c], removed[name] = Despike(clone.Values[c], maxChange)
	}
	return clone, removed
}

// MaskRemoved returns a copy of t with NaN in every cell that is valid in before
// and NaN in after. Columns are matched by name; columns missing from either
// table are left unchanged.
func (t *Table) MaskRemoved(before, after *Table) *Table {
	clone := t.Clone()
	for c, name := range clone.Names {
		b, err := before.Column(name)
		if err != nil {
			continue
		}
		a, err := after.Column(name)
		if err != nil {
			continue
		}
		for r := range clone.Values[c] {
			if r < len(b) && r < len(a) && !math.IsNaN(b[r]) && math.IsNaN(a[r]) {
				clone.Values[c][r] = math.NaN()
			}
		}
	}
	return clone
}

// TrendResult is a linear fit of distance against time
type TrendResult struct {
	// Rate in distance units per year; positive is seaward (accretion).
	Rate      float64
	Intercept float64
	RSquared  float64
	N         int
	Origin    time.Time
}

// Trend fits a straight line through the valid values of a transect. Time is
// measured in years from the first valid date.
func (t *Table) Trend(name string) (TrendResult, error) {
	values, err := t.Column(name)
	if err != nil {
		return TrendResult{}, err
	}

	var xs, ys []float64
	var origin time.Time
	for r, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if len(xs) == 0 {
			origin = t.Dates[r]
		}
		xs = append(xs, t.Dates[r].Sub(origin).Hours()/24/daysPerYear)
		ys = append(ys, v)
	}
	if len(xs) < 2 {
		return TrendResult{}, fmt.Errorf("%w: %s has %d", ErrInsufficientData, name, len(xs))
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return TrendResult{
		Rate:      beta,
		Intercept: alpha,
		RSquared:  stat.RSquared(xs, ys, nil, alpha, beta),
		N:         len(xs),
		Origin:    origin,
	}, nil
}
