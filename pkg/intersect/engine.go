// Package intersect reduces shoreline point clouds to cross-shore distances
// along transects, with statistical quality control and resolution of
// multiple shoreline crossings.
package intersect

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/1F47E/shoreline-transects/pkg/geo"
	"github.com/1F47E/shoreline-transects/pkg/models"
)

var (
	// ErrNoShorelines is returned when the curated set is empty
	ErrNoShorelines = errors.New("no shorelines")
	// ErrNoTransects is returned when no transect is given
	ErrNoTransects = errors.New("no transects")
	// ErrDuplicateTransect is returned when two transects share a name
	ErrDuplicateTransect = errors.New("duplicate transect name")
)

// Series maps a transect name to one value per curated date; rejected cells are NaN
type Series map[string][]float64

// Status explains the value of one cell
type Status int

const (
	StatusValid Status = iota
	StatusInsufficientPoints
	StatusDispersion
	StatusAmbiguous
	StatusResolved
	StatusLandward
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInsufficientPoints:
		return "insufficient_points"
	case StatusDispersion:
		return "dispersion"
	case StatusAmbiguous:
		return "ambiguous"
	case StatusResolved:
		return "resolved"
	case StatusLandward:
		return "landward"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Diagnostics summarises the quality control of one transect
type Diagnostics struct {
	Statuses []Status
	// MultipleDates is the number of dates with more than one crossing
	MultipleDates int
	// Policy is the policy actually applied; PolicyAuto resolves to max or nan.
	// It is empty for ComputeSimple, which applies no policy.
	Policy Policy
}

// Count returns how many dates ended with the given status
func (d Diagnostics) Count(status Status) int {
	n := 0
	for _, s := range d.Statuses {
		if s == status {
			n++
		}
	}
	return n
}

// Rejected returns how many dates were set to NaN
func (d Diagnostics) Rejected() int {
	return len(d.Statuses) - d.Count(StatusValid) - d.Count(StatusResolved)
}

// Result is the output of one engine run
type Result struct {
	Dates       []time.Time
	Series      Series
	Diagnostics map[string]Diagnostics
}

// Names returns the transect names in ascending order
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Series))
	for name := range r.Series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Engine computes cross-shore distances for a fixed set of settings
type Engine struct {
	settings Settings
	logger   *zap.Logger
}

// NewEngine validates settings and creates an engine
func NewEngine(settings Settings, logger *zap.Logger) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{settings: settings, logger: logger}, nil
}

// prepared holds validated, read-only inputs shared by every transect worker
type prepared struct {
	lines   []*geo.Line
	indexes []*geo.PointIndex
	dates   []time.Time
}

func (e *Engine) prepare(transects []models.Transect, records []models.ShorelineRecord) (*prepared, error) {
	if len(transects) == 0 {
		return nil, ErrNoTransects
	}
	if len(records) == 0 {
		return nil, ErrNoShorelines
	}

	lines := make([]*geo.Line, len(transects))
	seen := make(map[string]struct{}, len(transects))
	for i, t := range transects {
		l, err := geo.NewLine(t)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[t.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTransect, t.Name)
		}
		seen[t.Name] = struct{}{}
		lines[i] = l
	}

	p := &prepared{
		lines:   lines,
		indexes: make([]*geo.PointIndex, len(records)),
		dates:   make([]time.Time, len(records)),
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				p.indexes[j] = geo.NewPointIndex(records[j].Points)
			}
		}()
	}
	for j, r := range records {
		p.dates[j] = r.Date
		jobs <- j
	}
	close(jobs)
	wg.Wait()

	return p, nil
}

func (e *Engine) workers() int {
	if e.settings.Workers > 0 {
		return e.settings.Workers
	}
	return runtime.NumCPU()
}

// chainages selects the band points of one record and projects them onto the line
func (e *Engine) chainages(l *geo.Line, index *geo.PointIndex) ([]float64, error) {
	points, err := index.WithinBand(l, e.settings.AlongDist)
	if err != nil {
		return nil, fmt.Errorf("failed to select points for %s: %w", l.Name, err)
	}
	return l.Chainages(points), nil
}

// Compute runs the quality-controlled intersection of every transect with every record.
// Transects are processed concurrently; the dates of one transect go through a
// statistics pass followed by a resolution pass.
func (e *Engine) Compute(transects []models.Transect, records []models.ShorelineRecord) (*Result, error) {
	p, err := e.prepare(transects, records)
	if err != nil {
		return nil, err
	}

	values := make([][]float64, len(p.lines))
	diags := make([]Diagnostics, len(p.lines))

	var g errgroup.Group
	g.SetLimit(e.workers())
	for i, l := range p.lines {
		g.Go(func() error {
			cells, err := e.collect(l, p.indexes)
			if err != nil {
				return err
			}
			values[i], diags[i] = e.resolve(l.Name, cells)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Dates:       p.dates,
		Series:      make(Series, len(p.lines)),
		Diagnostics: make(map[string]Diagnostics, len(p.lines)),
	}
	for i, l := range p.lines {
		res.Series[l.Name] = values[i]
		res.Diagnostics[l.Name] = diags[i]
	}
	return res, nil
}

// collect is the statistics pass over every date of one transect
func (e *Engine) collect(l *geo.Line, indexes []*geo.PointIndex) ([]cell, error) {
	cells := make([]cell, len(indexes))
	for j, index := range indexes {
		ch, err := e.chainages(l, index)
		if err != nil {
			return nil, err
		}
		cells[j] = e.settings.classify(ch)
	}
	return cells, nil
}

// decide turns the configured policy into the policy applied to one transect
func (e *Engine) decide(cells []cell) (Policy, int) {
	multiple := 0
	for _, c := range cells {
		if c.kind == kindMultiple {
			multiple++
		}
	}

	policy := e.settings.MultipleInter
	if policy == PolicyAuto {
		policy = PolicyNaN
		if len(cells) > 0 && float64(multiple)/float64(len(cells)) > e.settings.AutoPrc {
			policy = PolicyMax
		}
	}
	return policy, multiple
}

// resolve is the resolution pass over the cells of one transect
func (e *Engine) resolve(name string, cells []cell) ([]float64, Diagnostics) {
	policy, multiple := e.decide(cells)
	e.logger.Debug("resolved multiple intersection policy",
		zap.String("transect", name),
		zap.String("configured", string(e.settings.MultipleInter)),
		zap.String("applied", string(policy)),
		zap.Int("multiple_dates", multiple),
		zap.Int("dates", len(cells)),
	)

	values := make([]float64, len(cells))
	diag := Diagnostics{
		Statuses:      make([]Status, len(cells)),
		MultipleDates: multiple,
		Policy:        policy,
	}

	for j, c := range cells {
		value, status := math.NaN(), StatusValid
		switch c.kind {
		case kindInsufficient:
			status = StatusInsufficientPoints
		case kindDispersed:
			status = StatusDispersion
		case kindSingle:
			value = c.value
		case kindMultiple:
			if policy == PolicyMax {
				value, status = c.value, StatusResolved
			} else {
				status = StatusAmbiguous
			}
		}

		if !math.IsNaN(value) && value < e.settings.MinChainage {
			value, status = math.NaN(), StatusLandward
		}
		values[j] = value
		diag.Statuses[j] = status
	}

	return values, diag
}

// ComputeSimple returns, for every transect and record, the median chainage of the
// points inside the alongshore band, without any quality control. Cells with no
// point in the band are NaN.
func (e *Engine) ComputeSimple(transects []models.Transect, records []models.ShorelineRecord) (*Result, error) {
	p, err := e.prepare(transects, records)
	if err != nil {
		return nil, err
	}

	values := make([][]float64, len(p.lines))
	for i := range values {
		values[i] = make([]float64, len(p.indexes))
	}

	// Cells are independent here, so dates fan out as well as transects
	var g errgroup.Group
	g.SetLimit(e.workers())
	for i, l := range p.lines {
		for j, index := range p.indexes {
			g.Go(func() error {
				ch, err := e.chainages(l, index)
				if err != nil {
					return err
				}
				sort.Float64s(ch)
				values[i][j] = median(ch)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Dates:       p.dates,
		Series:      make(Series, len(p.lines)),
		Diagnostics: make(map[string]Diagnostics, len(p.lines)),
	}
	for i, l := range p.lines {
		statuses := make([]Status, len(values[i]))
		for j, v := range values[i] {
			if math.IsNaN(v) {
				statuses[j] = StatusInsufficientPoints
			}
		}
		res.Series[l.Name] = values[i]
		res.Diagnostics[l.Name] = Diagnostics{Statuses: statuses}
	}
	return res, nil
}
