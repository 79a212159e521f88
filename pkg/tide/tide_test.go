package tide

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

var t0 = time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

func hourly(levels ...float64) []models.TideSample {
	samples := make([]models.TideSample, len(levels))
	for i, l := range levels {
		samples[i] = models.TideSample{Time: t0.Add(time.Duration(i) * time.Hour), Level: l}
	}
	return samples
}

func TestNearest(t *testing.T) {
	// Shuffled input is sorted on construction
	samples := hourly(0.1, 0.2, 0.3, 0.4)
	samples[0], samples[3] = samples[3], samples[0]
	s, err := NewSeries(samples)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())

	testCases := []struct {
		name     string
		at       time.Time
		expected float64
	}{
		{"before first", t0.Add(-5 * time.Hour), 0.1},
		{"exact", t0.Add(2 * time.Hour), 0.3},
		{"closer to later", t0.Add(80 * time.Minute), 0.2},
		{"closer to earlier", t0.Add(20 * time.Minute), 0.1},
		{"tie picks earlier", t0.Add(90 * time.Minute), 0.2},
		{"after last", t0.Add(48 * time.Hour), 0.4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, s.Nearest(tc.at).Level)
		})
	}
}

func TestMaxGap(t *testing.T) {
	s, err := NewSeries(hourly(1, 2))
	require.NoError(t, err)
	s.MaxGap = 2 * time.Hour

	assert.Equal(t, 2.0, s.Level(t0.Add(3*time.Hour)))
	assert.True(t, math.IsNaN(s.Level(t0.Add(4*time.Hour))))
}

func TestNewSeriesEmpty(t *testing.T) {
	_, err := NewSeries(nil)
	assert.ErrorIs(t, err, ErrNoSamples)

	_, err = NewSeries([]models.TideSample{{Time: t0, Level: math.NaN()}})
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestCorrect(t *testing.T) {
	tides, err := NewSeries(hourly(0.5, -0.5, 1.0))
	require.NoError(t, err)
	dates := []time.Time{t0, t0.Add(time.Hour), t0.Add(2 * time.Hour)}

	raw := map[string][]float64{
		"A": {100, 100, math.NaN()},
		"B": {50, 60, 70},
	}
	cfg := Config{
		ReferenceElevation: 0,
		Slopes:             Slopes{Global: 0.1, PerTransect: map[string]float64{"B": 0.05}},
	}

	got, err := Correct(raw, dates, tides, cfg)
	require.NoError(t, err)

	assert.InDelta(t, 105, got["A"][0], 1e-9)
	assert.InDelta(t, 95, got["A"][1], 1e-9)
	assert.True(t, math.IsNaN(got["A"][2]))
	assert.InDelta(t, 60, got["B"][0], 1e-9)
	assert.InDelta(t, 50, got["B"][1], 1e-9)
	assert.InDelta(t, 90, got["B"][2], 1e-9)

	// Input is left untouched
	assert.Equal(t, 100.0, raw["A"][0])
}

func TestCorrectAtReferenceIsIdentity(t *testing.T) {
	tides, err := NewSeries(hourly(0.73))
	require.NoError(t, err)
	raw := map[string][]float64{"A": {123.4}}

	got, err := Correct(raw, []time.Time{t0}, tides, Config{
		ReferenceElevation: 0.73,
		Slopes:             Slopes{Global: 0.08},
	})
	require.NoError(t, err)
	assert.Equal(t, 123.4, got["A"][0])
}

func TestCorrectRejectsSlopes(t *testing.T) {
	tides, err := NewSeries(hourly(0))
	require.NoError(t, err)
	dates := []time.Time{t0}

	testCases := []struct {
		name   string
		slopes Slopes
	}{
		{"zero global", Slopes{Global: 0}},
		{"negative global", Slopes{Global: -0.1}},
		{"infinite global", Slopes{Global: math.Inf(1)}},
		{"bad override", Slopes{Global: 0.1, PerTransect: map[string]float64{"A": 0}}},
		{"unused bad override", Slopes{Global: 0.1, PerTransect: map[string]float64{"Z": math.NaN()}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Correct(map[string][]float64{"A": {1}}, dates, tides, Config{Slopes: tc.slopes})
			assert.ErrorIs(t, err, ErrInvalidSlope)
		})
	}

	// Override alone is enough when there is no global slope
	_, err = Correct(map[string][]float64{"A": {1}}, dates, tides, Config{Slopes: Slopes{PerTransect: map[string]float64{"A": 0.1}}})
	assert.NoError(t, err)
}

func TestCorrectLengthMismatch(t *testing.T) {
	tides, err := NewSeries(hourly(0))
	require.NoError(t, err)
	_, err = Correct(map[string][]float64{"A": {1, 2}}, []time.Time{t0}, tides, Config{Slopes: Slopes{Global: 0.1}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
