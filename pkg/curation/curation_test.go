package curation

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

func record(date string, sensor string, acc float64) models.ShorelineRecord {
	d, err := time.Parse(time.RFC3339, date)
	if err != nil {
		panic(err)
	}
	return models.ShorelineRecord{
		Date:        d,
		Sensor:      sensor,
		Points:      []models.Point{{X: 1, Y: 2}},
		GeoAccuracy: acc,
	}
}

func TestDeduplicate(t *testing.T) {
	records := []models.ShorelineRecord{
		record("2020-01-01T10:00:00Z", "L8", 5),
		record("2020-01-01T10:00:05Z", "L8", 6), // same day, same sensor
		record("2020-01-01T10:00:05Z", "S2", 7), // same day, other sensor
		record("2020-01-02T10:00:00Z", "L8", 8),
	}

	got := Deduplicate(records)
	require.Len(t, got, 3)
	assert.Equal(t, 5.0, got[0].GeoAccuracy, "first encountered record is kept")
	assert.Equal(t, "S2", got[1].Sensor)
	assert.Equal(t, 8.0, got[2].GeoAccuracy)
}

func TestDeduplicateUsesUTCDay(t *testing.T) {
	// 23:30 at -02:00 is the next UTC day
	late, err := time.Parse(time.RFC3339, "2020-01-01T23:30:00-02:00")
	require.NoError(t, err)
	records := []models.ShorelineRecord{
		record("2020-01-02T08:00:00Z", "L8", 1),
		{Date: late, Sensor: "L8", GeoAccuracy: 2},
	}
	assert.Len(t, Deduplicate(records), 1)
}

func TestDeduplicateIdempotent(t *testing.T) {
	records := []models.ShorelineRecord{
		record("2020-01-01T10:00:00Z", "L8", 5),
		record("2020-01-01T11:00:00Z", "L8", 6),
		record("2020-02-01T10:00:00Z", "S2", 7),
		record("2020-02-01T10:00:00Z", "S2", 8),
		record("2020-03-01T10:00:00Z", "L7", 9),
	}

	once := Deduplicate(records)
	twice := Deduplicate(once)
	assert.Equal(t, once, twice)
}

func TestFilterByAccuracy(t *testing.T) {
	records := []models.ShorelineRecord{
		record("2020-01-01T10:00:00Z", "L8", 5),
		record("2020-01-02T10:00:00Z", "L8", 10),
		record("2020-01-03T10:00:00Z", "L8", 10.5),
		record("2020-01-04T10:00:00Z", "L8", math.NaN()),
		record("2020-01-05T10:00:00Z", "L8", math.Inf(1)),
		record("2020-01-06T10:00:00Z", "L8", -1),
	}

	testCases := []struct {
		name     string
		unknown  UnknownAccuracy
		expected []float64
	}{
		{"drop unknown", DropUnknown, []float64{5, 10}},
		{"keep unknown", KeepUnknown, []float64{5, 10, math.NaN(), math.Inf(1), -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterByAccuracy(records, 10, tc.unknown)
			require.Len(t, got, len(tc.expected))
			for i, r := range got {
				if math.IsNaN(tc.expected[i]) {
					assert.True(t, math.IsNaN(r.GeoAccuracy))
					continue
				}
				assert.Equal(t, tc.expected[i], r.GeoAccuracy)
			}
		})
	}
}

func TestCurate(t *testing.T) {
	cloudy := record("2020-01-03T10:00:00Z", "S2", 3)
	cloudy.CloudCover = 0.8

	records := []models.ShorelineRecord{
		record("2020-01-05T10:00:00Z", "L8", 4),
		record("2020-01-01T10:00:00Z", "L8", 20),
		cloudy,
		record("2020-01-05T12:00:00Z", "L8", 1),
		record("2020-01-02T10:00:00Z", "L8", 2),
	}

	got, err := Curate(records, Options{AccuracyThreshold: 10, MaxCloudCover: 0.5})
	require.NoError(t, err)

	dates := Dates(got)
	require.Len(t, dates, 2)
	assert.Equal(t, "2020-01-02", dates[0].Format(time.DateOnly))
	assert.Equal(t, "2020-01-05", dates[1].Format(time.DateOnly))
	assert.Equal(t, 4.0, got[1].GeoAccuracy, "earliest of the duplicate pair wins after sorting")
	assert.Equal(t, []string{"L8", "L8"}, Sensors(got))

	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i].After(dates[i-1]))
	}
}

func TestCurateEmpty(t *testing.T) {
	_, err := Curate(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoRecords)

	// Everything filtered is an empty set, not an error
	got, err := Curate([]models.ShorelineRecord{record("2020-01-01T00:00:00Z", "L8", 50)}, Options{AccuracyThreshold: 10, MaxCloudCover: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotRoundTrip(t *testing.T) {
	records := []models.ShorelineRecord{
		record("2020-01-01T10:00:00Z", "L8", 5),
		record("2020-01-02T10:00:00Z", "S2", 6),
	}
	opts := Options{AccuracyThreshold: 10, MaxCloudCover: 0.5}

	filename := filepath.Join(t.TempDir(), "curated.gob")
	require.NoError(t, SaveSnapshot(filename, records, opts))

	snap, err := LoadSnapshot(filename)
	require.NoError(t, err)
	assert.Equal(t, opts, snap.Options)
	require.Len(t, snap.Records, 2)
	for i := range records {
		assert.True(t, records[i].Date.Equal(snap.Records[i].Date))
		assert.Equal(t, records[i].Sensor, snap.Records[i].Sensor)
		assert.Equal(t, records[i].Points, snap.Records[i].Points)
	}

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}
