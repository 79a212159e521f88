package intersect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// cellKind is the outcome of the statistics pass for one (transect, date) cell
type cellKind int

const (
	kindInsufficient cellKind = iota
	kindSingle
	kindMultiple
	kindDispersed
)

// cell holds everything the resolution pass needs for one date
type cell struct {
	kind cellKind
	// median of all selected chainages for kindSingle, of the seaward cluster for kindMultiple
	value    float64
	clusters int
}

// dispersion returns the population standard deviation and the range of values
func dispersion(values []float64) (std, rng float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopStdDev(values, nil), floats.Max(values) - floats.Min(values)
}

// median of an ascending slice; even lengths average the two middle values
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// splitClusters splits ascending chainages wherever consecutive values are more than gap apart
func splitClusters(sorted []float64, gap float64) [][]float64 {
	if len(sorted) == 0 {
		return nil
	}
	var clusters [][]float64
	start := 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] > gap {
			clusters = append(clusters, sorted[start:i])
			start = i
		}
	}
	return append(clusters, sorted[start:])
}

// coherent reports whether a set of chainages passes the dispersion gate
func (s Settings) coherent(values []float64) bool {
	std, rng := dispersion(values)
	return std <= s.MaxStd && rng <= s.MaxRange
}

// classify runs the statistics pass on the chainages of one cell
func (s Settings) classify(chainages []float64) cell {
	if len(chainages) < s.MinPoints || len(chainages) == 0 {
		return cell{kind: kindInsufficient, value: math.NaN()}
	}

	sorted := make([]float64, len(chainages))
	copy(sorted, chainages)
	sort.Float64s(sorted)

	if s.coherent(sorted) {
		return cell{kind: kindSingle, value: median(sorted), clusters: 1}
	}

	clusters := splitClusters(sorted, s.clusterGap())
	if len(clusters) < 2 {
		return cell{kind: kindDispersed, value: math.NaN(), clusters: 1}
	}
	for _, c := range clusters {
		if !s.coherent(c) {
			return cell{kind: kindDispersed, value: math.NaN(), clusters: len(clusters)}
		}
	}

	seaward := clusters[len(clusters)-1]
	return cell{kind: kindMultiple, value: median(seaward), clusters: len(clusters)}
}
