// Package synth generates synthetic coastlines for demos and tests: a straight
// beach backed by an optional lagoon, observed at varying tide levels.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

// ErrInvalidScenario is returned for scenarios that cannot be generated
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario describes a synthetic coast. The shoreline runs along +X and the
// sea lies towards +Y; transects start at Y=0.
type Scenario struct {
	Transects int
	Spacing   float64
	Length    float64

	Start    time.Time
	Dates    int
	Interval time.Duration
	Sensors  []string

	// ShorePosition is the chainage of the shoreline at the reference water level.
	ShorePosition float64
	// Trend moves the shoreline by this many metres per year.
	Trend        float64
	Noise        float64
	PointSpacing float64

	// LagoonChainage and LagoonFraction add a second crossing on a share of dates.
	LagoonChainage float64
	LagoonFraction float64

	TideAmplitude float64
	TidePeriod    time.Duration
	TideStep      time.Duration
	Slope         float64

	Seed    int64
	Workers int
}

// Dataset is the generated input of one analysis
type Dataset struct {
	Transects []models.Transect
	Records   []models.ShorelineRecord
	Tides     []models.TideSample
}

// DefaultScenario returns a small coast with a lagoon on one image in five
func DefaultScenario() Scenario {
	return Scenario{
		Transects:      5,
		Spacing:        100,
		Length:         300,
		Start:          time.Date(2015, 1, 1, 10, 0, 0, 0, time.UTC),
		Dates:          60,
		Interval:       16 * 24 * time.Hour,
		Sensors:        []string{"L8", "S2"},
		ShorePosition:  150,
		Trend:          -1.5,
		Noise:          2,
		PointSpacing:   5,
		LagoonChainage: 40,
		LagoonFraction: 0.2,
		TideAmplitude:  0.8,
		TidePeriod:     12*time.Hour + 25*time.Minute,
		TideStep:       30 * time.Minute,
		Slope:          0.1,
		Seed:           1,
	}
}

func (s Scenario) validate() error {
	switch {
	case s.Transects < 1:
		return fmt.Errorf("%w: need at least one transect", ErrInvalidScenario)
	case s.Dates < 1:
		return fmt.Errorf("%w: need at least one date", ErrInvalidScenario)
	case !(s.PointSpacing > 0):
		return fmt.Errorf("%w: point spacing must be positive", ErrInvalidScenario)
	case !(s.Slope > 0):
		return fmt.Errorf("%w: slope must be positive", ErrInvalidScenario)
	case !(s.Length > 0):
		return fmt.Errorf("%w: transect length must be positive", ErrInvalidScenario)
	case s.Interval <= 0 || s.TideStep <= 0 || s.TidePeriod <= 0:
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidScenario)
	case s.LagoonFraction < 0 || s.LagoonFraction > 1:
		return fmt.Errorf("%w: lagoon fraction must be within [0, 1]", ErrInvalidScenario)
	}
	return nil
}

// TideAt returns the synthetic tide level at t
func (s Scenario) TideAt(t time.Time) float64 {
	phase := float64(t.Sub(s.Start)) / float64(s.TidePeriod)
	return s.TideAmplitude * math.Sin(2*math.Pi*phase)
}

// TruePosition returns the shoreline chainage at the reference water level on t
func (s Scenario) TruePosition(t time.Time) float64 {
	years := t.Sub(s.Start).Hours() / 24 / 365.25
	return s.ShorePosition + s.Trend*years
}

// Generate builds transects, records and tides for a scenario. Records are
// generated by a pool of workers; the output only depends on the seed.
func Generate(s Scenario) (*Dataset, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	ds := &Dataset{
		Transects: make([]models.Transect, s.Transects),
		Records:   make([]models.ShorelineRecord, s.Dates),
	}
	for i := range ds.Transects {
		x := float64(i) * s.Spacing
		ds.Transects[i] = models.Transect{
			Name:   fmt.Sprintf("T%d", i+1),
			Origin: models.Point{X: x, Y: 0},
			End:    models.Point{X: x, Y: s.Length},
		}
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > s.Dates {
		workers = s.Dates
	}

	type workRange struct {
		start, end int
	}
	work := make(chan workRange, workers)
	done := make(chan bool, workers)

	for w := 0; w < workers; w++ {
		go func() {
			for wr := range work {
				for j := wr.start; j < wr.end; j++ {
					ds.Records[j] = s.record(j)
				}
			}
			done <- true
		}()
	}

	perWorker := s.Dates / workers
	remainder := s.Dates % workers
	start := 0
	for w := 0; w < workers; w++ {
		size := perWorker
		if w < remainder {
			size++
		}
		work <- workRange{start: start, end: start + size}
		start += size
	}
	close(work)

	for w := 0; w < workers; w++ {
		<-done
	}

	end := s.Start.Add(time.Duration(s.Dates) * s.Interval)
	for t := s.Start.Add(-s.Interval); !t.After(end); t = t.Add(s.TideStep) {
		ds.Tides = append(ds.Tides, models.TideSample{Time: t, Level: s.TideAt(t)})
	}

	return ds, nil
}

// record generates the shoreline of date j with its own random source
func (s Scenario) record(j int) models.ShorelineRecord {
	r := rand.New(rand.NewSource(s.Seed + int64(j)*7919))
	date := s.Start.Add(time.Duration(j) * s.Interval)

	// The waterline sits landward of the reference shoreline at high tide
	observed := s.TruePosition(date) - s.TideAt(date)/s.Slope
	lagoon := r.Float64() < s.LagoonFraction

	minX := -s.Spacing / 2
	maxX := float64(s.Transects-1)*s.Spacing + s.Spacing/2
	var points []models.Point
	for x := minX; x <= maxX; x += s.PointSpacing {
		points = append(points, models.Point{X: x, Y: observed + r.NormFloat64()*s.Noise})
		if lagoon {
			points = append(points, models.Point{X: x, Y: s.LagoonChainage + r.NormFloat64()*s.Noise})
		}
	}

	sensor := ""
	if len(s.Sensors) > 0 {
		sensor = s.Sensors[j%len(s.Sensors)]
	}
	return models.ShorelineRecord{
		Date:        date,
		Sensor:      sensor,
		Points:      points,
		GeoAccuracy: 3 + r.Float64()*5,
		CloudCover:  r.Float64() * 0.3,
	}
}
