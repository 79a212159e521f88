// Package geo provides transect geometry and an R-Tree backed point index
// for selecting shoreline points inside a transect's alongshore band.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

// ErrMalformedTransect is returned when a transect cannot define a direction
var ErrMalformedTransect = errors.New("malformed transect")

// Line is a validated transect together with its derived axes
type Line struct {
	models.Transect

	// Dir is the unit vector from origin to end (seaward).
	Dir models.Point
	// Normal is Dir rotated counter-clockwise by 90 degrees (alongshore axis).
	Normal models.Point
	Length float64
}

// NewLine validates a transect and derives its direction, normal and length
func NewLine(t models.Transect) (*Line, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrMalformedTransect)
	}
	for _, v := range []float64{t.Origin.X, t.Origin.Y, t.End.X, t.End.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s has non-finite coordinates", ErrMalformedTransect, t.Name)
		}
	}

	dx := t.End.X - t.Origin.X
	dy := t.End.Y - t.Origin.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil, fmt.Errorf("%w: %s has zero length", ErrMalformedTransect, t.Name)
	}

	dir := models.Point{X: dx / length, Y: dy / length}
	return &Line{
		Transect: t,
		Dir:      dir,
		Normal:   models.Point{X: -dir.Y, Y: dir.X},
		Length:   length,
	}, nil
}

// Project returns the chainage of p along the line and its perpendicular distance from it
func (l *Line) Project(p models.Point) (chainage, offset float64) {
	chainage = l.Chainage(p)
	offset = math.Abs(l.SignedOffset(p))
	return chainage, offset
}

// Chainage returns the signed distance of the projection of p from the origin
func (l *Line) Chainage(p models.Point) float64 {
	return (p.X-l.Origin.X)*l.Dir.X + (p.Y-l.Origin.Y)*l.Dir.Y
}

// SignedOffset returns the alongshore distance of p from the line, positive on the Normal side
func (l *Line) SignedOffset(p models.Point) float64 {
	return (p.X-l.Origin.X)*l.Normal.X + (p.Y-l.Origin.Y)*l.Normal.Y
}

// PointAt returns the point at the given chainage on the (infinite) line
func (l *Line) PointAt(chainage float64) models.Point {
	return models.Point{
		X: l.Origin.X + chainage*l.Dir.X,
		Y: l.Origin.Y + chainage*l.Dir.Y,
	}
}

// WithinBand returns the points whose offset from the line is at most band,
// whatever their chainage. Input order is preserved.
func (l *Line) WithinBand(points []models.Point, band float64) []models.Point {
	selected := make([]models.Point, 0)
	for _, p := range points {
		if math.Abs(l.SignedOffset(p)) <= band {
			selected = append(selected, p)
		}
	}
	return selected
}

// Chainages projects every point onto the line
func (l *Line) Chainages(points []models.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = l.Chainage(p)
	}
	return out
}

// Angle returns the bearing of the line direction in radians, counter-clockwise from +X
func (l *Line) Angle() float64 {
	return math.Atan2(l.Dir.Y, l.Dir.X)
}
