package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1F47E/shoreline-transects/internal/config"
	"github.com/1F47E/shoreline-transects/pkg/curation"
	"github.com/1F47E/shoreline-transects/pkg/ingest"
	"github.com/1F47E/shoreline-transects/pkg/intersect"
	"github.com/1F47E/shoreline-transects/pkg/models"
	"github.com/1F47E/shoreline-transects/pkg/pipeline"
	"github.com/1F47E/shoreline-transects/pkg/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute transect time series from shorelines",
	Long: `Read shorelines and transects (GeoJSON) and optional tides (CSV), run the
intersection with quality control, apply the tidal correction and write the
time series as CSV. Results can also be stored in SQLite or PostgreSQL.

Curated shorelines saved with --snapshot can be reused with --from-snapshot
instead of --shorelines.`,
	RunE: runAnalyze,
}

var (
	shorelinesFile string
	transectsFile  string
	tidesFile      string
	nameProperty   string
	snapshotFile   string
	fromSnapshot   string
	outputCSV      string
	dbDriver       string
	dbDSN          string
	runLabel       string
	policy         string
	slope          float64
	simple         bool
)

func init() {
	analyzeCmd.Flags().StringVarP(&shorelinesFile, "shorelines", "s", "", "Shorelines GeoJSON file")
	analyzeCmd.Flags().StringVarP(&transectsFile, "transects", "t", "", "Transects GeoJSON file")
	analyzeCmd.Flags().StringVar(&tidesFile, "tides", "", "Tide levels CSV file (dates,tide)")
	analyzeCmd.Flags().StringVar(&nameProperty, "name-property", ingest.DefaultNameProperty, "Transect name property")
	analyzeCmd.Flags().StringVar(&snapshotFile, "snapshot", "", "Save the curated shorelines to this gob file")
	analyzeCmd.Flags().StringVar(&fromSnapshot, "from-snapshot", "", "Read curated shorelines from a gob file instead of GeoJSON")
	analyzeCmd.Flags().StringVarP(&outputCSV, "output", "o", "", "Output CSV file (default stdout)")
	analyzeCmd.Flags().StringVar(&dbDriver, "db-driver", "", "Store the run in a database (sqlite or postgres)")
	analyzeCmd.Flags().StringVar(&dbDSN, "db-dsn", "", "Database DSN or SQLite file")
	analyzeCmd.Flags().StringVar(&runLabel, "label", "", "Label of the stored run")
	analyzeCmd.Flags().StringVar(&policy, "policy", "", "Multiple intersection policy (auto, nan, max)")
	analyzeCmd.Flags().Float64Var(&slope, "slope", 0, "Global beach slope")
	analyzeCmd.Flags().BoolVar(&simple, "simple", false, "Band median without quality control")

	analyzeCmd.MarkFlagRequired("transects")
	analyzeCmd.MarkFlagsOneRequired("shorelines", "from-snapshot")
	analyzeCmd.MarkFlagsMutuallyExclusive("shorelines", "from-snapshot")
}

// applyFlags overrides configuration values with explicitly set flags
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.CSV = outputCSV
	}
	if flags.Changed("db-driver") {
		cfg.Output.DBDriver = dbDriver
	}
	if flags.Changed("db-dsn") {
		cfg.Output.DBDSN = dbDSN
	}
	if flags.Changed("label") {
		cfg.Output.Label = runLabel
	}
	if flags.Changed("policy") {
		cfg.Analysis.MultipleInter = policy
	}
	if flags.Changed("slope") {
		cfg.Tide.Slope = slope
	}
	if flags.Changed("simple") {
		cfg.Analysis.Simple = simple
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	in, err := readInput(logger)
	if err != nil {
		return err
	}
	logger.Info("Loaded input",
		zap.Int("shorelines", len(in.Records)),
		zap.Int("transects", len(in.Transects)),
		zap.Int("tides", len(in.Tides)))

	ctx := cmd.Context()
	res, err := pipeline.Run(ctx, in, cfg.PipelineOptions(), logger)
	if err != nil {
		return err
	}
	if res.Empty {
		logger.Warn("Nothing to analyse", zap.String("reason", res.Reason))
		return nil
	}

	if snapshotFile != "" {
		if err := curation.SaveSnapshot(snapshotFile, res.Curated, cfg.CurationOptions()); err != nil {
			return err
		}
		logger.Info("Saved curated snapshot", zap.String("file", snapshotFile))
	}

	if err := writeCSV(cmd, cfg.Output.CSV, res); err != nil {
		return err
	}

	if cfg.Output.DBDriver != "" {
		id, err := saveRun(ctx, cfg, res)
		if err != nil {
			return err
		}
		logger.Info("Stored run", zap.String("id", id), zap.String("driver", cfg.Output.DBDriver))
	}

	printSummary(cmd.ErrOrStderr(), res)
	return nil
}

func readInput(logger *zap.Logger) (pipeline.Input, error) {
	var in pipeline.Input

	transects, err := readFile(transectsFile, func(r io.Reader) ([]models.Transect, error) {
		return ingest.ReadTransects(r, nameProperty)
	})
	if err != nil {
		return in, err
	}
	in.Transects = transects

	switch {
	case fromSnapshot != "" && shorelinesFile != "":
		return in, fmt.Errorf("--shorelines and --from-snapshot are mutually exclusive")
	case fromSnapshot != "":
		snap, err := curation.LoadSnapshot(fromSnapshot)
		if err != nil {
			return in, fmt.Errorf("failed to read %s: %w", fromSnapshot, err)
		}
		logger.Info("Loaded curated snapshot",
			zap.String("file", fromSnapshot),
			zap.Time("created", snap.CreatedAt))
		in.Records = snap.Records
	case shorelinesFile != "":
		if in.Records, err = readFile(shorelinesFile, ingest.ReadShorelines); err != nil {
			return in, err
		}
	default:
		return in, fmt.Errorf("one of --shorelines or --from-snapshot is required")
	}

	if tidesFile != "" {
		if in.Tides, err = readFile(tidesFile, ingest.ReadTides); err != nil {
			return in, err
		}
	}
	return in, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	items, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return items, nil
}

func writeCSV(cmd *cobra.Command, path string, res *pipeline.Result) error {
	if path == "" {
		return res.Final().WriteCSV(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := res.Final().WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func saveRun(ctx context.Context, cfg *config.Config, res *pipeline.Result) (string, error) {
	s, err := store.Open(cfg.Output.DBDriver, cfg.Output.DBDSN)
	if err != nil {
		return "", err
	}
	defer s.Close()

	if err := s.InitSchema(ctx); err != nil {
		return "", err
	}

	settings, err := json.Marshal(struct {
		Analysis config.AnalysisConfig `json:"analysis"`
		Curation config.CurationConfig `json:"curation"`
		Tide     config.TideConfig     `json:"tide"`
		Outliers config.OutliersConfig `json:"outliers"`
	}{cfg.Analysis, cfg.Curation, cfg.Tide, cfg.Outliers})
	if err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}

	return s.SaveRun(ctx, cfg.Output.Label, string(settings), res.Raw, res.Corrected)
}

func printSummary(w io.Writer, res *pipeline.Result) {
	final := res.Final()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "transect\tvalid\trejected\tpolicy\trate (m/yr)\tr2")
	for _, name := range final.Names {
		d := res.Diagnostics[name]
		valid := d.Count(intersect.StatusValid) + d.Count(intersect.StatusResolved)
		rate, r2, applied := "-", "-", string(d.Policy)
		if applied == "" {
			applied = "-"
		}
		if trend, err := final.Trend(name); err == nil {
			rate = fmt.Sprintf("%.2f", trend.Rate)
			r2 = fmt.Sprintf("%.2f", trend.RSquared)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n", name, valid, d.Rejected(), applied, rate, r2)
	}
	tw.Flush()
}
