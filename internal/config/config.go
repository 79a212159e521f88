package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/1F47E/shoreline-transects/pkg/curation"
	"github.com/1F47E/shoreline-transects/pkg/intersect"
	"github.com/1F47E/shoreline-transects/pkg/pipeline"
	"github.com/1F47E/shoreline-transects/pkg/tide"
)

// EnvPrefix prefixes every environment override, e.g. SHORELINE_TIDE_SLOPE
const EnvPrefix = "SHORELINE"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for one analysis run
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Curation CurationConfig `mapstructure:"curation"`
	Tide     TideConfig     `mapstructure:"tide"`
	Outliers OutliersConfig `mapstructure:"outliers"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
}

// AnalysisConfig holds the intersection settings
type AnalysisConfig struct {
	AlongDist     float64 `mapstructure:"along_dist"`
	MinPoints     int     `mapstructure:"min_points"`
	MaxStd        float64 `mapstructure:"max_std"`
	MaxRange      float64 `mapstructure:"max_range"`
	MinChainage   float64 `mapstructure:"min_chainage"`
	MultipleInter string  `mapstructure:"multiple_inter"`
	AutoPrc       float64 `mapstructure:"auto_prc"`
	ClusterGap    float64 `mapstructure:"cluster_gap"`
	Workers       int     `mapstructure:"workers"`
	// Simple skips quality control and takes the median of the band
	Simple bool `mapstructure:"simple"`
}

// CurationConfig holds the record filters
type CurationConfig struct {
	AccuracyThreshold   float64 `mapstructure:"accuracy_threshold"`
	KeepUnknownAccuracy bool    `mapstructure:"keep_unknown_accuracy"`
	MaxCloudCover       float64 `mapstructure:"max_cloud_cover"`
}

// TransectSlope overrides the global slope for one transect. A list is used
// instead of a map because viper lower-cases map keys.
type TransectSlope struct {
	Transect string  `mapstructure:"transect"`
	Slope    float64 `mapstructure:"slope"`
}

// TideConfig holds the tidal correction parameters
type TideConfig struct {
	ReferenceElevation float64         `mapstructure:"reference_elevation"`
	Slope              float64         `mapstructure:"slope"`
	Slopes             []TransectSlope `mapstructure:"slopes"`
	MaxGap             time.Duration   `mapstructure:"max_gap"`
}

// OutliersConfig controls despiking of the corrected series; zero disables it
type OutliersConfig struct {
	MaxCrossChange float64 `mapstructure:"max_cross_change"`
}

// OutputConfig selects where results are written
type OutputConfig struct {
	CSV      string `mapstructure:"csv"`
	DBDriver string `mapstructure:"db_driver"`
	DBDSN    string `mapstructure:"db_dsn"`
	Label    string `mapstructure:"label"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"` // debug, info, warn, error
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	d := intersect.DefaultSettings()
	v.SetDefault("analysis.along_dist", d.AlongDist)
	v.SetDefault("analysis.min_points", d.MinPoints)
	v.SetDefault("analysis.max_std", d.MaxStd)
	v.SetDefault("analysis.max_range", d.MaxRange)
	v.SetDefault("analysis.min_chainage", d.MinChainage)
	v.SetDefault("analysis.multiple_inter", string(d.MultipleInter))
	v.SetDefault("analysis.auto_prc", d.AutoPrc)
	v.SetDefault("analysis.cluster_gap", 0.0)
	v.SetDefault("analysis.workers", 0)
	v.SetDefault("analysis.simple", false)

	v.SetDefault("curation.accuracy_threshold", 0.0)
	v.SetDefault("curation.keep_unknown_accuracy", false)
	v.SetDefault("curation.max_cloud_cover", 1.0)

	v.SetDefault("tide.reference_elevation", 0.0)
	v.SetDefault("tide.slope", 0.0)
	v.SetDefault("tide.max_gap", "0s")

	v.SetDefault("outliers.max_cross_change", 0.0)

	v.SetDefault("output.csv", "")
	v.SetDefault("output.db_driver", "")
	v.SetDefault("output.db_dsn", "")
	v.SetDefault("output.label", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func newViper(env bool) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	if !env {
		return v
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in defaults
func Default() *Config {
	cfg, err := decode(newViper(false))
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}

// Load reads configuration from a YAML file and environment variables.
// An empty path searches ./shoreline.yaml and ./config/shoreline.yaml and
// falls back to defaults when neither exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := newViper(true)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shoreline")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// Settings returns the intersection engine settings
func (c *Config) Settings() intersect.Settings {
	a := c.Analysis
	return intersect.Settings{
		AlongDist:     a.AlongDist,
		MinPoints:     a.MinPoints,
		MaxStd:        a.MaxStd,
		MaxRange:      a.MaxRange,
		MinChainage:   a.MinChainage,
		MultipleInter: intersect.Policy(strings.ToLower(a.MultipleInter)),
		AutoPrc:       a.AutoPrc,
		ClusterGap:    a.ClusterGap,
		Workers:       a.Workers,
	}
}

// CurationOptions returns the record filters
func (c *Config) CurationOptions() curation.Options {
	opts := curation.Options{
		AccuracyThreshold: c.Curation.AccuracyThreshold,
		UnknownAccuracy:   curation.DropUnknown,
		MaxCloudCover:     c.Curation.MaxCloudCover,
	}
	if c.Curation.KeepUnknownAccuracy {
		opts.UnknownAccuracy = curation.KeepUnknown
	}
	return opts
}

// TideCorrection returns the tidal correction parameters
func (c *Config) TideCorrection() tide.Config {
	slopes := tide.Slopes{Global: c.Tide.Slope}
	if len(c.Tide.Slopes) > 0 {
		slopes.PerTransect = make(map[string]float64, len(c.Tide.Slopes))
		for _, s := range c.Tide.Slopes {
			slopes.PerTransect[s.Transect] = s.Slope
		}
	}
	return tide.Config{
		ReferenceElevation: c.Tide.ReferenceElevation,
		Slopes:             slopes,
	}
}

// PipelineOptions returns the options of one analysis run
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Settings:       c.Settings(),
		Simple:         c.Analysis.Simple,
		Curation:       c.CurationOptions(),
		Tide:           c.TideCorrection(),
		MaxGap:         c.Tide.MaxGap,
		MaxCrossChange: c.Outliers.MaxCrossChange,
	}
}

// Validate checks everything that does not depend on the input data.
// Slopes are checked against the transect names by the pipeline.
func (c *Config) Validate() error {
	if err := c.Settings().Validate(); err != nil {
		return err
	}
	if math.IsNaN(c.Curation.AccuracyThreshold) {
		return fmt.Errorf("%w: curation.accuracy_threshold is NaN", ErrInvalidConfig)
	}
	if !(c.Curation.MaxCloudCover >= 0) {
		return fmt.Errorf("%w: curation.max_cloud_cover must not be negative", ErrInvalidConfig)
	}
	if math.IsNaN(c.Tide.ReferenceElevation) || math.IsInf(c.Tide.ReferenceElevation, 0) {
		return fmt.Errorf("%w: tide.reference_elevation must be finite", ErrInvalidConfig)
	}
	if c.Tide.MaxGap < 0 {
		return fmt.Errorf("%w: tide.max_gap must not be negative", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Tide.Slopes))
	for _, s := range c.Tide.Slopes {
		if s.Transect == "" {
			return fmt.Errorf("%w: tide.slopes entry without transect", ErrInvalidConfig)
		}
		if seen[s.Transect] {
			return fmt.Errorf("%w: duplicate slope for transect %s", ErrInvalidConfig, s.Transect)
		}
		seen[s.Transect] = true
	}
	if c.Outliers.MaxCrossChange < 0 || math.IsNaN(c.Outliers.MaxCrossChange) {
		return fmt.Errorf("%w: outliers.max_cross_change must not be negative", ErrInvalidConfig)
	}
	if (c.Output.DBDriver == "") != (c.Output.DBDSN == "") {
		return fmt.Errorf("%w: output.db_driver and output.db_dsn must be set together", ErrInvalidConfig)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a zap logger from the log section
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}
	return logger, nil
}
