package intersect

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSettings wraps every settings validation failure
var ErrInvalidSettings = errors.New("invalid intersection settings")

// Policy selects how dates with several shoreline crossings are resolved
type Policy string

const (
	// PolicyAuto picks PolicyMax or PolicyNaN per transect from how often crossings repeat
	PolicyAuto Policy = "auto"
	// PolicyNaN rejects every date with more than one crossing
	PolicyNaN Policy = "nan"
	// PolicyMax keeps the seaward-most crossing
	PolicyMax Policy = "max"
)

// ParsePolicy converts a configuration string into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyAuto, PolicyNaN, PolicyMax:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown multiple intersection policy %q", ErrInvalidSettings, s)
	}
}

// Settings holds the quality-control parameters of the intersection engine.
// Distances are in the units of the input coordinates (metres).
type Settings struct {
	AlongDist     float64
	MinPoints     int
	MaxStd        float64
	MaxRange      float64
	MinChainage   float64
	MultipleInter Policy
	AutoPrc       float64
	// ClusterGap is the smallest gap between sorted chainages that separates
	// two crossings. Zero means twice MaxStd.
	ClusterGap float64
	// Workers bounds the number of transects processed concurrently. Zero means NumCPU.
	Workers int
}

// DefaultSettings returns the standard quality-control parameters
func DefaultSettings() Settings {
	return Settings{
		AlongDist:     25,
		MinPoints:     3,
		MaxStd:        15,
		MaxRange:      50,
		MinChainage:   -100,
		MultipleInter: PolicyAuto,
		AutoPrc:       0.1,
	}
}

// Validate reports the first invalid parameter
func (s Settings) Validate() error {
	switch {
	case !(s.AlongDist > 0) || math.IsInf(s.AlongDist, 0):
		return fmt.Errorf("%w: along_dist must be positive, got %v", ErrInvalidSettings, s.AlongDist)
	case s.MinPoints < 1:
		return fmt.Errorf("%w: min_points must be at least 1, got %d", ErrInvalidSettings, s.MinPoints)
	case !(s.MaxStd > 0):
		return fmt.Errorf("%w: max_std must be positive, got %v", ErrInvalidSettings, s.MaxStd)
	case !(s.MaxRange > 0):
		return fmt.Errorf("%w: max_range must be positive, got %v", ErrInvalidSettings, s.MaxRange)
	case math.IsNaN(s.MinChainage):
		return fmt.Errorf("%w: min_chainage is NaN", ErrInvalidSettings)
	case !(s.AutoPrc >= 0 && s.AutoPrc <= 1):
		return fmt.Errorf("%w: auto_prc must be within [0, 1], got %v", ErrInvalidSettings, s.AutoPrc)
	case s.ClusterGap < 0 || math.IsNaN(s.ClusterGap):
		return fmt.Errorf("%w: cluster_gap must not be negative, got %v", ErrInvalidSettings, s.ClusterGap)
	case s.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidSettings, s.Workers)
	}
	if _, err := ParsePolicy(string(s.MultipleInter)); err != nil {
		return err
	}
	return nil
}

func (s Settings) clusterGap() float64 {
	if s.ClusterGap > 0 {
		return s.ClusterGap
	}
	return 2 * s.MaxStd
}
