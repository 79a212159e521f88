// Package curation prepares shoreline records for intersection: duplicates of
// the same day and sensor are dropped, as are records with poor georeferencing
// or heavy cloud cover.
package curation

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

// ErrNoRecords is returned when there is nothing to curate
var ErrNoRecords = errors.New("no shoreline records")

// UnknownAccuracy decides what happens to records without a usable accuracy estimate
type UnknownAccuracy int

const (
	// DropUnknown removes records whose accuracy is negative, NaN or infinite
	DropUnknown UnknownAccuracy = iota
	// KeepUnknown lets such records through the accuracy filter
	KeepUnknown
)

// Options controls Curate
type Options struct {
	// AccuracyThreshold in metres; zero or negative disables the filter.
	AccuracyThreshold float64
	UnknownAccuracy   UnknownAccuracy
	// MaxCloudCover as a fraction; values >= 1 disable the filter.
	MaxCloudCover float64
}

// DefaultOptions returns options that only deduplicate
func DefaultOptions() Options {
	return Options{MaxCloudCover: 1}
}

type dedupKey struct {
	day    string
	sensor string
}

func keyOf(r models.ShorelineRecord) dedupKey {
	return dedupKey{day: r.Date.UTC().Format(time.DateOnly), sensor: r.Sensor}
}

// Deduplicate keeps the first record encountered for each (UTC calendar day, sensor)
// pair. The relative order of kept records is unchanged.
func Deduplicate(records []models.ShorelineRecord) []models.ShorelineRecord {
	seen := make(map[dedupKey]struct{}, len(records))
	out := make([]models.ShorelineRecord, 0, len(records))
	for _, r := range records {
		k := keyOf(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// FilterByAccuracy drops records whose georeferencing accuracy exceeds threshold.
// Negative and non-finite accuracies mark a failed check and follow the unknown policy.
func FilterByAccuracy(records []models.ShorelineRecord, threshold float64, unknown UnknownAccuracy) []models.ShorelineRecord {
	out := make([]models.ShorelineRecord, 0, len(records))
	for _, r := range records {
		acc := r.GeoAccuracy
		if math.IsNaN(acc) || math.IsInf(acc, 0) || acc < 0 {
			if unknown == KeepUnknown {
				out = append(out, r)
			}
			continue
		}
		if acc <= threshold {
			out = append(out, r)
		}
	}
	return out
}

// FilterByCloudCover drops records with a cloud fraction above max
func FilterByCloudCover(records []models.ShorelineRecord, max float64) []models.ShorelineRecord {
	out := make([]models.ShorelineRecord, 0, len(records))
	for _, r := range records {
		if r.CloudCover <= max {
			out = append(out, r)
		}
	}
	return out
}

// Curate sorts records chronologically and applies deduplication and the
// configured filters. The result may be empty when every record was rejected.
func Curate(records []models.ShorelineRecord, opts Options) ([]models.ShorelineRecord, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	sorted := make([]models.ShorelineRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	curated := Deduplicate(sorted)
	if opts.AccuracyThreshold > 0 {
		curated = FilterByAccuracy(curated, opts.AccuracyThreshold, opts.UnknownAccuracy)
	}
	if opts.MaxCloudCover < 1 {
		curated = FilterByCloudCover(curated, opts.MaxCloudCover)
	}
	return curated, nil
}

// Dates returns the date axis of a curated set
func Dates(records []models.ShorelineRecord) []time.Time {
	dates := make([]time.Time, len(records))
	for i, r := range records {
		dates[i] = r.Date
	}
	return dates
}

// Sensors returns the sensor of each record of a curated set
func Sensors(records []models.ShorelineRecord) []string {
	sensors := make([]string, len(records))
	for i, r := range records {
		sensors[i] = r.Sensor
	}
	return sensors
}
