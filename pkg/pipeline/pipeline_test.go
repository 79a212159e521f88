package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/1F47E/shoreline-transects/pkg/intersect"
	"github.com/1F47E/shoreline-transects/pkg/models"
	"github.com/1F47E/shoreline-transects/pkg/synth"
	"github.com/1F47E/shoreline-transects/pkg/tide"
)

var (
	baseDate = time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	na1      = models.Transect{Name: "NA1", Origin: models.Point{X: 0, Y: 0}, End: models.Point{X: 0, Y: 300}}
)

func record(day int, chainages ...float64) models.ShorelineRecord {
	points := make([]models.Point, len(chainages))
	for i, c := range chainages {
		points[i] = models.Point{X: float64(i*3 - 3), Y: c}
	}
	return models.ShorelineRecord{Date: baseDate.AddDate(0, 0, day), Sensor: "S2", Points: points}
}

func exampleInput() Input {
	in := Input{
		Transects: []models.Transect{na1},
		Records: []models.ShorelineRecord{
			record(0, 100, 102, 98),
			record(16, 100, 102, 98),
			record(32, 100, 102, 98),
			record(48, 40, 41, 160),
		},
	}
	for _, r := range in.Records {
		in.Tides = append(in.Tides, models.TideSample{Time: r.Date.Add(10 * time.Minute), Level: 0.5})
	}
	return in
}

func TestRunEndToEnd(t *testing.T) {
	testCases := []struct {
		policy intersect.Policy
		last   float64
	}{
		{intersect.PolicyNaN, math.NaN()},
		{intersect.PolicyMax, 160},
	}

	for _, tc := range testCases {
		t.Run(string(tc.policy), func(t *testing.T) {
			opts := DefaultOptions(0.1)
			opts.Settings.MultipleInter = tc.policy

			res, err := Run(context.Background(), exampleInput(), opts, zaptest.NewLogger(t))
			require.NoError(t, err)
			require.False(t, res.Empty)
			assert.Len(t, res.Curated, 4)

			raw, err := res.Raw.Column("NA1")
			require.NoError(t, err)
			require.Len(t, raw, 4)
			assert.Equal(t, []float64{100, 100, 100}, raw[:3])

			corrected, err := res.Corrected.Column("NA1")
			require.NoError(t, err)
			for r := 0; r < 3; r++ {
				assert.InDelta(t, 105, corrected[r], 1e-9)
			}

			if math.IsNaN(tc.last) {
				assert.True(t, math.IsNaN(raw[3]))
				assert.True(t, math.IsNaN(corrected[3]))
			} else {
				assert.Equal(t, tc.last, raw[3])
				assert.InDelta(t, tc.last+5, corrected[3], 1e-9)
			}
			assert.Equal(t, []string{"S2", "S2", "S2", "S2"}, res.Raw.Sensors)
		})
	}
}

func TestRunWithoutTides(t *testing.T) {
	in := exampleInput()
	in.Tides = nil

	// No slope is needed when nothing is corrected
	res, err := Run(context.Background(), in, DefaultOptions(0), nil)
	require.NoError(t, err)
	assert.Nil(t, res.Corrected)
	assert.Same(t, res.Raw, res.Final())
}

func TestRunDespikeMasksRawAndCorrected(t *testing.T) {
	in := Input{Transects: []models.Transect{na1}}
	for i, c := range []float64{100, 100, 160, 100, 100} {
		r := record(16*i, c, c+2, c-2)
		in.Records = append(in.Records, r)
		in.Tides = append(in.Tides, models.TideSample{Time: r.Date, Level: 0.5})
	}

	opts := DefaultOptions(0.1)
	opts.MaxCrossChange = 20
	res, err := Run(context.Background(), in, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"NA1": 1}, res.Despiked)

	raw, err := res.Raw.Column("NA1")
	require.NoError(t, err)
	corrected, err := res.Corrected.Column("NA1")
	require.NoError(t, err)
	require.Len(t, raw, 5)
	for r := range raw {
		assert.Equal(t, math.IsNaN(corrected[r]), math.IsNaN(raw[r]), "row %d", r)
	}
	assert.True(t, math.IsNaN(raw[2]))
	assert.Equal(t, 100.0, raw[3])
	assert.InDelta(t, 105, corrected[3], 1e-9)
}

func TestRunRejectsBadConfigurationFirst(t *testing.T) {
	opts := DefaultOptions(0)
	_, err := Run(context.Background(), exampleInput(), opts, nil)
	assert.ErrorIs(t, err, tide.ErrInvalidSlope)

	opts = DefaultOptions(0.1)
	opts.Settings.MultipleInter = "min"
	_, err = Run(context.Background(), exampleInput(), opts, nil)
	assert.ErrorIs(t, err, intersect.ErrInvalidSettings)

	opts = DefaultOptions(0.1)
	opts.MaxCrossChange = -1
	_, err = Run(context.Background(), exampleInput(), opts, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestRunEmptyInputs(t *testing.T) {
	in := exampleInput()
	in.Records = nil
	res, err := Run(context.Background(), in, DefaultOptions(0.1), nil)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.NotEmpty(t, res.Reason)

	in = exampleInput()
	in.Transects = nil
	res, err = Run(context.Background(), in, DefaultOptions(0.1), nil)
	require.NoError(t, err)
	assert.True(t, res.Empty)

	// Every record filtered out
	in = exampleInput()
	for i := range in.Records {
		in.Records[i].GeoAccuracy = math.NaN()
	}
	opts := DefaultOptions(0.1)
	opts.Curation.AccuracyThreshold = 5
	res, err = Run(context.Background(), in, opts, nil)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, intersect.ErrNoShorelines.Error(), res.Reason)
}

func TestRunMalformedTransect(t *testing.T) {
	in := exampleInput()
	in.Transects = append(in.Transects, models.Transect{Name: "bad", Origin: models.Point{X: 1, Y: 1}, End: models.Point{X: 1, Y: 1}})
	in.Tides = nil
	_, err := Run(context.Background(), in, DefaultOptions(0.1), nil)
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, exampleInput(), DefaultOptions(0.1), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSimple(t *testing.T) {
	opts := DefaultOptions(0.1)
	opts.Simple = true
	res, err := Run(context.Background(), exampleInput(), opts, nil)
	require.NoError(t, err)

	raw, err := res.Raw.Column("NA1")
	require.NoError(t, err)
	assert.Equal(t, 41.0, raw[3], "median of the band without quality control")
}

func TestRunSyntheticCoast(t *testing.T) {
	scenario := synth.DefaultScenario()
	scenario.LagoonFraction = 0.4
	ds, err := synth.Generate(scenario)
	require.NoError(t, err)

	opts := DefaultOptions(scenario.Slope)
	opts.MaxCrossChange = 40
	res, err := Run(context.Background(), Input{
		Transects: ds.Transects,
		Records:   ds.Records,
		Tides:     ds.Tides,
	}, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.False(t, res.Empty)

	for _, name := range res.Corrected.Names {
		values, err := res.Corrected.Column(name)
		require.NoError(t, err)
		require.Len(t, values, len(ds.Records))

		// The lagoon is frequent enough for auto to take the seaward crossing
		assert.Equal(t, intersect.PolicyMax, res.Diagnostics[name].Policy)
		for r, v := range values {
			if math.IsNaN(v) {
				continue
			}
			assert.InDelta(t, scenario.TruePosition(res.Corrected.Dates[r]), v, 5)
		}

		trend, err := res.Corrected.Trend(name)
		require.NoError(t, err)
		assert.InDelta(t, scenario.Trend, trend.Rate, 1.0)
	}
}
