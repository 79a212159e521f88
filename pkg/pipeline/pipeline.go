// Package pipeline runs one shoreline analysis: curation, intersection,
// tidal correction and assembly of the distance tables.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/1F47E/shoreline-transects/pkg/curation"
	"github.com/1F47E/shoreline-transects/pkg/intersect"
	"github.com/1F47E/shoreline-transects/pkg/models"
	"github.com/1F47E/shoreline-transects/pkg/series"
	"github.com/1F47E/shoreline-transects/pkg/tide"
)

// ErrInvalidOptions is returned when options fail validation
var ErrInvalidOptions = errors.New("invalid pipeline options")

// Input is the immutable data of one run. Tides may be empty, in which case
// no correction is applied.
type Input struct {
	Transects []models.Transect
	Records   []models.ShorelineRecord
	Tides     []models.TideSample
}

// Options configures one run
type Options struct {
	Settings intersect.Settings
	// Simple replaces the quality-controlled engine by the band median
	Simple   bool
	Curation curation.Options
	Tide     tide.Config
	// MaxGap rejects tide samples further than this from the image date; zero disables.
	MaxGap time.Duration
	// MaxCrossChange despikes the final series when positive
	MaxCrossChange float64
}

// DefaultOptions returns the standard settings with a given global slope
func DefaultOptions(slope float64) Options {
	return Options{
		Settings: intersect.DefaultSettings(),
		Curation: curation.DefaultOptions(),
		Tide:     tide.Config{Slopes: tide.Slopes{Global: slope}},
	}
}

// Validate checks the options against the transects of a run. Slopes are only
// required when a correction will be applied.
func (o Options) Validate(in Input) error {
	if err := o.Settings.Validate(); err != nil {
		return err
	}
	if o.MaxCrossChange < 0 || math.IsNaN(o.MaxCrossChange) {
		return fmt.Errorf("%w: max cross change must not be negative", ErrInvalidOptions)
	}
	if o.MaxGap < 0 {
		return fmt.Errorf("%w: max gap must not be negative", ErrInvalidOptions)
	}
	if len(in.Tides) == 0 {
		return nil
	}
	names := make([]string, len(in.Transects))
	for i, t := range in.Transects {
		names[i] = t.Name
	}
	return o.Tide.Slopes.Validate(names)
}

// Result of one run. When Empty is set the other fields are zero and Reason
// explains which input was missing.
type Result struct {
	Empty  bool
	Reason string

	Curated     []models.ShorelineRecord
	Raw         *series.Table
	Corrected   *series.Table
	Diagnostics map[string]intersect.Diagnostics
	// Despiked counts the cells removed per transect
	Despiked map[string]int
}

// Final returns the corrected table when available, the raw table otherwise
func (r *Result) Final() *series.Table {
	if r.Corrected != nil {
		return r.Corrected
	}
	return r.Raw
}

func empty(reason error) *Result {
	return &Result{Empty: true, Reason: reason.Error()}
}

// Run executes one analysis. Configuration errors are returned before any
// computation; missing shorelines or transects yield an empty result.
func Run(ctx context.Context, in Input, opts Options, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Validate(in); err != nil {
		return nil, err
	}
	if len(in.Transects) == 0 {
		return empty(intersect.ErrNoTransects), nil
	}

	start := time.Now()
	curated, err := curation.Curate(in.Records, opts.Curation)
	if errors.Is(err, curation.ErrNoRecords) {
		return empty(err), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to curate records: %w", err)
	}
	logger.Info("Curated shorelines",
		zap.Int("input", len(in.Records)),
		zap.Int("kept", len(curated)))
	if len(curated) == 0 {
		return empty(intersect.ErrNoShorelines), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine, err := intersect.NewEngine(opts.Settings, logger)
	if err != nil {
		return nil, err
	}
	var res *intersect.Result
	if opts.Simple {
		res, err = engine.ComputeSimple(in.Transects, curated)
	} else {
		res, err = engine.Compute(in.Transects, curated)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to intersect transects: %w", err)
	}
	rejected := 0
	for _, d := range res.Diagnostics {
		rejected += d.Rejected()
	}
	logger.Info("Intersected transects",
		zap.Int("transects", len(res.Series)),
		zap.Int("dates", len(res.Dates)),
		zap.Int("rejected", rejected),
		zap.Duration("elapsed", time.Since(start)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Result{
		Curated:     curated,
		Diagnostics: res.Diagnostics,
	}
	sensors := curation.Sensors(curated)
	if out.Raw, err = series.Assemble(res.Dates, sensors, res.Series); err != nil {
		return nil, fmt.Errorf("failed to assemble raw series: %w", err)
	}

	if len(in.Tides) > 0 {
		tides, err := tide.NewSeries(in.Tides)
		if err != nil {
			return nil, fmt.Errorf("failed to load tides: %w", err)
		}
		tides.MaxGap = opts.MaxGap
		corrected, err := tide.Correct(res.Series, res.Dates, tides, opts.Tide)
		if err != nil {
			return nil, fmt.Errorf("failed to apply tidal correction: %w", err)
		}
		if out.Corrected, err = series.Assemble(res.Dates, sensors, corrected); err != nil {
			return nil, fmt.Errorf("failed to assemble corrected series: %w", err)
		}
		logger.Info("Applied tidal correction",
			zap.Int("samples", tides.Len()),
			zap.Float64("reference", opts.Tide.ReferenceElevation))
	} else {
		logger.Info("No tide samples, skipping correction")
	}

	if opts.MaxCrossChange > 0 {
		despiked, removed := out.Final().Despike(opts.MaxCrossChange)
		if out.Corrected != nil {
			// Raw drops the same cells so both tables agree on what was rejected
			out.Raw = out.Raw.MaskRemoved(out.Corrected, despiked)
			out.Corrected = despiked
		} else {
			out.Raw = despiked
		}
		out.Despiked = removed
	}

	logger.Info("Analysis complete", zap.Duration("elapsed", time.Since(start)))
	return out, nil
}
