// Package ingest converts external transect, shoreline and tide files into
// the models used by the analysis.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

// DefaultNameProperty is the feature property holding a transect name
const DefaultNameProperty = "name"

// ErrUnsupportedGeometry is returned for features that cannot become a transect or shoreline
var ErrUnsupportedGeometry = errors.New("unsupported geometry")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseTime accepts RFC3339 and the common "YYYY-MM-DD hh:mm:ss" forms; times
// without a zone are taken as UTC
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func toPoint(p orb.Point) models.Point {
	return models.Point{X: p[0], Y: p[1]}
}

func fromPoint(p models.Point) orb.Point {
	return orb.Point{p.X, p.Y}
}

func stringProperty(props geojson.Properties, key string) (string, bool) {
	switch v := props[key].(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

func floatProperty(props geojson.Properties, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// ReadTransects decodes a GeoJSON FeatureCollection of LineStrings. The first and
// last vertices become the origin and end; the name comes from nameProperty, or
// the feature position when the property is missing.
func ReadTransects(r io.Reader, nameProperty string) ([]models.Transect, error) {
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read transects: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transects: %w", err)
	}

	transects := make([]models.Transect, 0, len(fc.Features))
	for i, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok || len(ls) < 2 {
			return nil, fmt.Errorf("%w: transect feature %d is %T", ErrUnsupportedGeometry, i, f.Geometry)
		}
		name, ok := stringProperty(f.Properties, nameProperty)
		if !ok {
			name = strconv.Itoa(i)
		}
		transects = append(transects, models.Transect{
			Name:   name,
			Origin: toPoint(ls[0]),
			End:    toPoint(ls[len(ls)-1]),
		})
	}
	return transects, nil
}

// TransectsFromCoords normalises literal origin/end pairs, ordered by name
func TransectsFromCoords(coords map[string][2]models.Point) []models.Transect {
	names := make([]string, 0, len(coords))
	for name := range coords {
		names = append(names, name)
	}
	sort.Strings(names)

	transects := make([]models.Transect, len(names))
	for i, name := range names {
		transects[i] = models.Transect{Name: name, Origin: coords[name][0], End: coords[name][1]}
	}
	return transects
}

// WriteTransects encodes transects as a GeoJSON FeatureCollection of LineStrings
func WriteTransects(w io.Writer, transects []models.Transect) error {
	fc := geojson.NewFeatureCollection()
	for _, t := range transects {
		f := geojson.NewFeature(orb.LineString{fromPoint(t.Origin), fromPoint(t.End)})
		f.Properties[DefaultNameProperty] = t.Name
		fc.Append(f)
	}
	return writeCollection(w, fc)
}

// ReadShorelines decodes shoreline features. LineString, MultiLineString and
// MultiPoint geometries are accepted; properties date, satname, geoaccuracy and
// cloud_cover fill the record. A missing geoaccuracy is NaN.
func ReadShorelines(r io.Reader) ([]models.ShorelineRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read shorelines: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode shorelines: %w", err)
	}

	records := make([]models.ShorelineRecord, 0, len(fc.Features))
	for i, f := range fc.Features {
		var points []models.Point
		switch g := f.Geometry.(type) {
		case orb.LineString:
			points = appendPoints(points, g)
		case orb.MultiPoint:
			points = appendPoints(points, g)
		case orb.MultiLineString:
			for _, ls := range g {
				points = appendPoints(points, ls)
			}
		default:
			return nil, fmt.Errorf("%w: shoreline feature %d is %T", ErrUnsupportedGeometry, i, f.Geometry)
		}

		raw, ok := stringProperty(f.Properties, "date")
		if !ok {
			return nil, fmt.Errorf("shoreline feature %d has no date", i)
		}
		date, err := ParseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("shoreline feature %d: %w", i, err)
		}
		sensor, _ := stringProperty(f.Properties, "satname")

		cloud := floatProperty(f.Properties, "cloud_cover")
		if math.IsNaN(cloud) {
			cloud = 0
		}

		records = append(records, models.ShorelineRecord{
			Date:        date,
			Sensor:      sensor,
			Points:      points,
			GeoAccuracy: floatProperty(f.Properties, "geoaccuracy"),
			CloudCover:  cloud,
		})
	}
	return records, nil
}

func appendPoints(dst []models.Point, src []orb.Point) []models.Point {
	for _, p := range src {
		dst = append(dst, toPoint(p))
	}
	return dst
}

// WriteShorelines encodes records as MultiPoint features with their metadata
func WriteShorelines(w io.Writer, records []models.ShorelineRecord) error {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		mp := make(orb.MultiPoint, len(r.Points))
		for i, p := range r.Points {
			mp[i] = fromPoint(p)
		}
		f := geojson.NewFeature(mp)
		f.Properties["date"] = r.Date.UTC().Format(time.RFC3339)
		f.Properties["satname"] = r.Sensor
		if !math.IsNaN(r.GeoAccuracy) {
			f.Properties["geoaccuracy"] = r.GeoAccuracy
		}
		f.Properties["cloud_cover"] = r.CloudCover
		fc.Append(f)
	}
	return writeCollection(w, fc)
}

func writeCollection(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write features: %w", err)
	}
	return nil
}
