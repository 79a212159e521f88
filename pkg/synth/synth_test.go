package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	s := DefaultScenario()
	ds, err := Generate(s)
	require.NoError(t, err)

	assert.Len(t, ds.Transects, s.Transects)
	assert.Len(t, ds.Records, s.Dates)
	assert.NotEmpty(t, ds.Tides)
	assert.Equal(t, "T1", ds.Transects[0].Name)

	for i := 1; i < len(ds.Records); i++ {
		assert.True(t, ds.Records[i].Date.After(ds.Records[i-1].Date))
		assert.NotEmpty(t, ds.Records[i].Points)
	}
	assert.True(t, ds.Tides[0].Time.Before(ds.Records[0].Date))
	assert.False(t, ds.Tides[len(ds.Tides)-1].Time.Before(ds.Records[len(ds.Records)-1].Date))
}

func TestGenerateIsDeterministic(t *testing.T) {
	s := DefaultScenario()
	s.Workers = 1
	a, err := Generate(s)
	require.NoError(t, err)

	s.Workers = 7
	b, err := Generate(s)
	require.NoError(t, err)

	assert.Equal(t, a.Records, b.Records)
}

func TestGenerateLagoon(t *testing.T) {
	s := DefaultScenario()
	s.LagoonFraction = 1
	ds, err := Generate(s)
	require.NoError(t, err)

	noLagoon := DefaultScenario()
	noLagoon.LagoonFraction = 0
	plain, err := Generate(noLagoon)
	require.NoError(t, err)

	assert.Equal(t, 2*len(plain.Records[0].Points), len(ds.Records[0].Points))
}

func TestGenerateInvalid(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Scenario)
	}{
		{"no transects", func(s *Scenario) { s.Transects = 0 }},
		{"no dates", func(s *Scenario) { s.Dates = 0 }},
		{"zero slope", func(s *Scenario) { s.Slope = 0 }},
		{"zero point spacing", func(s *Scenario) { s.PointSpacing = 0 }},
		{"lagoon fraction", func(s *Scenario) { s.LagoonFraction = 2 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultScenario()
			tc.mutate(&s)
			_, err := Generate(s)
			assert.ErrorIs(t, err, ErrInvalidScenario)
		})
	}
}
