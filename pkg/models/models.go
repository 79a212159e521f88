package models

import "time"

// Point represents a planar coordinate in the analysis reference system
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transect represents a shore-normal line from its landward origin to its seaward end
type Transect struct {
	Name   string `json:"name"`
	Origin Point  `json:"origin"`
	End    Point  `json:"end"`
}

// ShorelineRecord is one detected shoreline for one acquisition
type ShorelineRecord struct {
	Date        time.Time `json:"date"`
	Sensor      string    `json:"satname"`
	Points      []Point   `json:"points"`
	GeoAccuracy float64   `json:"geoaccuracy"`
	CloudCover  float64   `json:"cloud_cover"`
}

// TideSample represents one tide level observation
type TideSample struct {
	Time  time.Time `json:"time"`
	Level float64   `json:"level"`
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	Min Point
	Max Point
}
