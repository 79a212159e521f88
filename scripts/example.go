package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/1F47E/shoreline-transects/pkg/ingest"
	"github.com/1F47E/shoreline-transects/pkg/intersect"
	"github.com/1F47E/shoreline-transects/pkg/models"
	"github.com/1F47E/shoreline-transects/pkg/pipeline"
)

func main() {
	// Two shore-normal transects, origin on the dune, end offshore
	transects := ingest.TransectsFromCoords(map[string][2]models.Point{
		"NA1": {{X: 342836, Y: 6269215}, {X: 343136, Y: 6269215}},
		"NA2": {{X: 342836, Y: 6269315}, {X: 343136, Y: 6269315}},
	})

	// Each image sees the beach at a slightly different position; the last
	// one also picks up the lagoon behind the dune.
	start := time.Date(2019, 3, 1, 10, 15, 0, 0, time.UTC)
	positions := []float64{100, 101, 99, 98}
	var records []models.ShorelineRecord
	var tides []models.TideSample
	for i, pos := range positions {
		date := start.AddDate(0, 0, 16*i)
		var points []models.Point
		for y := 6269195.0; y <= 6269335; y += 5 {
			points = append(points, models.Point{X: 342836 + pos + math.Sin(y)*0.5, Y: y})
			if i == len(positions)-1 {
				points = append(points, models.Point{X: 342836 + 40, Y: y})
			}
		}
		records = append(records, models.ShorelineRecord{
			Date:        date,
			Sensor:      "S2",
			Points:      points,
			GeoAccuracy: 6,
		})
		tides = append(tides, models.TideSample{Time: date.Add(-7 * time.Minute), Level: 0.2 * float64(i)})
	}

	in := pipeline.Input{Transects: transects, Records: records, Tides: tides}
	for _, policy := range []intersect.Policy{intersect.PolicyNaN, intersect.PolicyMax} {
		opts := pipeline.DefaultOptions(0.1)
		opts.Settings.MultipleInter = policy

		res, err := pipeline.Run(context.Background(), in, opts, nil)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Printf("=== multiple_inter=%s ===\n", policy)
		fmt.Println("Raw distances:")
		if err := res.Raw.WriteCSV(os.Stdout); err != nil {
			log.Fatal(err)
		}
		fmt.Println("Tidally corrected distances:")
		if err := res.Corrected.WriteCSV(os.Stdout); err != nil {
			log.Fatal(err)
		}
		for _, name := range res.Raw.Names {
			d := res.Diagnostics[name]
			fmt.Printf("%s: %d multiple crossings, %d rejected\n", name, d.MultipleDates, d.Rejected())
		}
		fmt.Println()
	}
}
