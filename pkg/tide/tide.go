// Package tide shifts cross-shore distances onto a reference water level
// using tide levels and beach slopes.
package tide

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

var (
	// ErrNoSamples is returned when a tide series has no samples
	ErrNoSamples = errors.New("no tide samples")
	// ErrInvalidSlope is returned for slopes that are missing, non-positive or non-finite
	ErrInvalidSlope = errors.New("invalid beach slope")
	// ErrLengthMismatch is returned when a series and the date axis disagree
	ErrLengthMismatch = errors.New("series length does not match dates")
)

// Series is an immutable, time-ordered tide record
type Series struct {
	samples []models.TideSample
	// MaxGap, when positive, makes Level return NaN if the nearest sample is further away.
	MaxGap time.Duration
}

// NewSeries copies and sorts samples; samples with a NaN level are discarded
func NewSeries(samples []models.TideSample) (*Series, error) {
	sorted := make([]models.TideSample, 0, len(samples))
	for _, s := range samples {
		if math.IsNaN(s.Level) {
			continue
		}
		sorted = append(sorted, s)
	}
	if len(sorted) == 0 {
		return nil, ErrNoSamples
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return &Series{samples: sorted}, nil
}

// Len returns the number of samples
func (s *Series) Len() int {
	return len(s.samples)
}

// Nearest returns the sample closest in time to t; on a tie the earlier sample wins
func (s *Series) Nearest(t time.Time) models.TideSample {
	// First sample not before t
	i := sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].Time.Before(t)
	})
	switch {
	case i == 0:
		return s.samples[0]
	case i == len(s.samples):
		return s.samples[len(s.samples)-1]
	}

	before, after := s.samples[i-1], s.samples[i]
	if after.Time.Sub(t) < t.Sub(before.Time) {
		return after
	}
	return before
}

// Level returns the tide level nearest to t
func (s *Series) Level(t time.Time) float64 {
	sample := s.Nearest(t)
	if s.MaxGap > 0 && absDuration(sample.Time.Sub(t)) > s.MaxGap {
		return math.NaN()
	}
	return sample.Level
}

// Levels returns the tide level for every date
func (s *Series) Levels(dates []time.Time) []float64 {
	levels := make([]float64, len(dates))
	for i, d := range dates {
		levels[i] = s.Level(d)
	}
	return levels
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Slopes holds beach slopes (rise over run); PerTransect overrides Global
type Slopes struct {
	Global      float64
	PerTransect map[string]float64
}

// For returns the slope that applies to a transect
func (s Slopes) For(name string) (float64, error) {
	slope, ok := s.PerTransect[name]
	if !ok {
		slope = s.Global
	}
	if err := checkSlope(slope); err != nil {
		return 0, fmt.Errorf("transect %s: %w", name, err)
	}
	return slope, nil
}

// Validate checks every configured slope and that each named transect has one
func (s Slopes) Validate(names []string) error {
	for name, slope := range s.PerTransect {
		if err := checkSlope(slope); err != nil {
			return fmt.Errorf("transect %s: %w", name, err)
		}
	}
	for _, name := range names {
		if _, err := s.For(name); err != nil {
			return err
		}
	}
	return nil
}

func checkSlope(slope float64) error {
	if !(slope > 0) || math.IsInf(slope, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSlope, slope)
	}
	return nil
}

// Config parameterises a correction
type Config struct {
	ReferenceElevation float64
	Slopes             Slopes
}

// Shift returns the horizontal correction for a tide level
func Shift(level, reference, slope float64) float64 {
	return (level - reference) / slope
}

// Correct returns raw + (tide(date) - reference) / slope for every cell. Slopes are
// validated for every transect before anything is computed; NaN cells stay NaN.
func Correct(raw map[string][]float64, dates []time.Time, tides *Series, cfg Config) (map[string][]float64, error) {
	if tides == nil {
		return nil, ErrNoSamples
	}

	names := make([]string, 0, len(raw))
	for name, values := range raw {
		if len(values) != len(dates) {
			return nil, fmt.Errorf("%w: %s has %d values for %d dates", ErrLengthMismatch, name, len(values), len(dates))
		}
		names = append(names, name)
	}
	if err := cfg.Slopes.Validate(names); err != nil {
		return nil, err
	}

	levels := tides.Levels(dates)
	corrected := make(map[string][]float64, len(raw))
	for name, values := range raw {
		slope, _ := cfg.Slopes.For(name)
		out := make([]float64, len(values))
		for j, v := range values {
			out[j] = v + Shift(levels[j], cfg.ReferenceElevation, slope)
		}
		corrected[name] = out
	}
	return corrected, nil
}
