package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1F47E/shoreline-transects/pkg/ingest"
	"github.com/1F47E/shoreline-transects/pkg/synth"
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate a synthetic coast",
	Long: `Generate transects, shorelines and tides for a straight beach backed by a
lagoon. The files can be fed back into the analyze command.`,
	RunE: runSynth,
}

var scenario = synth.DefaultScenario()

var outputDir string

func init() {
	synthCmd.Flags().StringVarP(&outputDir, "out", "o", "data", "Output directory")
	synthCmd.Flags().IntVar(&scenario.Transects, "transects", scenario.Transects, "Number of transects")
	synthCmd.Flags().IntVar(&scenario.Dates, "dates", scenario.Dates, "Number of images")
	synthCmd.Flags().Float64Var(&scenario.Noise, "noise", scenario.Noise, "Shoreline noise in metres")
	synthCmd.Flags().Float64Var(&scenario.Trend, "trend", scenario.Trend, "Shoreline trend in metres per year")
	synthCmd.Flags().Float64Var(&scenario.LagoonFraction, "lagoon", scenario.LagoonFraction, "Fraction of images showing the lagoon")
	synthCmd.Flags().Float64Var(&scenario.Slope, "slope", scenario.Slope, "Beach slope")
	synthCmd.Flags().Int64Var(&scenario.Seed, "seed", time.Now().UnixNano(), "Random seed")
	synthCmd.Flags().IntVarP(&scenario.Workers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
}

func runSynth(cmd *cobra.Command, args []string) error {
	_, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	start := time.Now()
	ds, err := synth.Generate(scenario)
	if err != nil {
		return err
	}
	logger.Info("Generated coast",
		zap.Int("transects", len(ds.Transects)),
		zap.Int("shorelines", len(ds.Records)),
		zap.Int("tides", len(ds.Tides)),
		zap.Int64("seed", scenario.Seed),
		zap.Duration("elapsed", time.Since(start)))

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"transects.geojson", func(w io.Writer) error { return ingest.WriteTransects(w, ds.Transects) }},
		{"shorelines.geojson", func(w io.Writer) error { return ingest.WriteShorelines(w, ds.Records) }},
		{"tides.csv", func(w io.Writer) error { return ingest.WriteTides(w, ds.Tides) }},
	}
	for _, file := range files {
		path := filepath.Join(outputDir, file.name)
		if err := writeFile(path, file.write); err != nil {
			return err
		}
		logger.Info("Wrote file", zap.String("path", path))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Analyse with:\n  shoreline-transects analyze -t %s -s %s --tides %s --slope %g\n",
		filepath.Join(outputDir, "transects.geojson"),
		filepath.Join(outputDir, "shorelines.geojson"),
		filepath.Join(outputDir, "tides.csv"),
		scenario.Slope)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
