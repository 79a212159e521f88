package ingest

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

const transectsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "NA1"},
     "geometry": {"type": "LineString", "coordinates": [[342836, 6269215], [342900, 6269300], [343000, 6269400]]}},
    {"type": "Feature", "properties": {"id": 3},
     "geometry": {"type": "LineString", "coordinates": [[0, 0], [0, 300]]}}
  ]
}`

func TestReadTransects(t *testing.T) {
	transects, err := ReadTransects(strings.NewReader(transectsJSON), "")
	require.NoError(t, err)
	require.Len(t, transects, 2)

	assert.Equal(t, models.Transect{
		Name:   "NA1",
		Origin: models.Point{X: 342836, Y: 6269215},
		End:    models.Point{X: 343000, Y: 6269400},
	}, transects[0])
	assert.Equal(t, "1", transects[1].Name, "falls back to feature position")

	transects, err = ReadTransects(strings.NewReader(transectsJSON), "id")
	require.NoError(t, err)
	assert.Equal(t, "3", transects[1].Name)
}

func TestReadTransectsRejectsPoints(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}]}`
	_, err := ReadTransects(strings.NewReader(doc), "")
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)

	_, err = ReadTransects(strings.NewReader("not json"), "")
	assert.Error(t, err)
}

func TestTransectsFromCoords(t *testing.T) {
	transects := TransectsFromCoords(map[string][2]models.Point{
		"B": {{X: 1, Y: 1}, {X: 2, Y: 2}},
		"A": {{X: 0, Y: 0}, {X: 0, Y: 5}},
	})
	require.Len(t, transects, 2)
	assert.Equal(t, "A", transects[0].Name)
	assert.Equal(t, models.Point{X: 0, Y: 5}, transects[0].End)
}

func TestTransectsRoundTrip(t *testing.T) {
	in := []models.Transect{
		{Name: "T1", Origin: models.Point{X: 1.5, Y: 2}, End: models.Point{X: 3, Y: 400}},
		{Name: "T2", Origin: models.Point{X: -1, Y: 0}, End: models.Point{X: -1, Y: 9}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTransects(&buf, in))

	out, err := ReadTransects(&buf, "")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadShorelines(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"date":"2019-01-03 10:24:11","satname":"L8","geoaccuracy":5.2,"cloud_cover":0.1},
	   "geometry":{"type":"MultiLineString","coordinates":[[[0,100],[10,101]],[[20,99]]]}},
	  {"type":"Feature","properties":{"date":"2019-01-19T10:24:11Z","satname":"S2"},
	   "geometry":{"type":"LineString","coordinates":[[0,90],[5,91]]}}
	]}`

	records, err := ReadShorelines(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, time.Date(2019, 1, 3, 10, 24, 11, 0, time.UTC), records[0].Date)
	assert.Equal(t, "L8", records[0].Sensor)
	assert.Equal(t, []models.Point{{X: 0, Y: 100}, {X: 10, Y: 101}, {X: 20, Y: 99}}, records[0].Points)
	assert.Equal(t, 5.2, records[0].GeoAccuracy)
	assert.Equal(t, 0.1, records[0].CloudCover)

	assert.True(t, math.IsNaN(records[1].GeoAccuracy))
	assert.Equal(t, 0.0, records[1].CloudCover)
}

func TestReadShorelinesRequiresDate(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,90],[5,91]]}}]}`
	_, err := ReadShorelines(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestShorelinesRoundTrip(t *testing.T) {
	in := []models.ShorelineRecord{{
		Date:        time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC),
		Sensor:      "S2",
		Points:      []models.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
		GeoAccuracy: 7.5,
		CloudCover:  0.2,
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteShorelines(&buf, in))

	out, err := ReadShorelines(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadTides(t *testing.T) {
	doc := "dates,tide\n2019-01-01 00:00:00,0.52\n2019-01-01T01:00:00Z, -0.1\n"
	samples, err := ReadTides(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), samples[0].Time)
	assert.Equal(t, 0.52, samples[0].Level)
	assert.Equal(t, -0.1, samples[1].Level)

	_, err = ReadTides(strings.NewReader("dates,tide\n2019-01-01,abc\n"))
	assert.Error(t, err)

	_, err = ReadTides(strings.NewReader("2019-01-01\n"))
	assert.Error(t, err)
}

func TestTidesRoundTrip(t *testing.T) {
	in := []models.TideSample{
		{Time: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Level: 0.25},
		{Time: time.Date(2020, 1, 1, 0, 30, 0, 0, time.UTC), Level: -1.125},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTides(&buf, in))

	out, err := ReadTides(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
