// Package calibration estimates per-route correction factors that reconcile
// the simulated concentration curve with measured lab values
package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/mrcode/hrt-tracker/internal/models"
)

// ErrInvalidPolicy is returned when policy constants are out of range
var ErrInvalidPolicy = errors.New("invalid calibration policy")

// Policy holds the tuning constants of the update rule
type Policy struct {
	// OutlierRatio rejects points whose measured/predicted ratio is above it
	// or below its reciprocal. Must be > 1.
	OutlierRatio float64
	// MinContributionShare is the share of the combined prediction a route
	// needs before a point may update its factor.
	MinContributionShare float64
	// EMAAlpha weighs the new target on every update after a route's first.
	EMAAlpha float64
	// MinPredictedPGmL is the signal floor below which a point is skipped.
	MinPredictedPGmL float64
}

// DefaultPolicy returns the standard constants
func DefaultPolicy() Policy {
	return Policy{
		OutlierRatio:         3.0,
		MinContributionShare: 0.1,
		EMAAlpha:             0.4,
		MinPredictedPGmL:     1.0,
	}
}

// PolicyFromSettings projects the calibration fields of settings
func PolicyFromSettings(s *models.Settings) Policy {
	c := s.Clone()
	return Policy{
		OutlierRatio:         c.OutlierRatio,
		MinContributionShare: c.MinContributionShare,
		EMAAlpha:             c.EMAAlpha,
		MinPredictedPGmL:     c.MinPredictedPGmL,
	}
}

// Validate checks that every constant is usable
func (p Policy) Validate() error {
	switch {
	case math.IsNaN(p.OutlierRatio) || p.OutlierRatio <= 1:
		return fmt.Errorf("%w: outlier ratio must be > 1, got %v", ErrInvalidPolicy, p.OutlierRatio)
	case math.IsNaN(p.MinContributionShare) || p.MinContributionShare < 0 || p.MinContributionShare >= 1:
		return fmt.Errorf("%w: min contribution share must be in [0, 1), got %v", ErrInvalidPolicy, p.MinContributionShare)
	case math.IsNaN(p.EMAAlpha) || p.EMAAlpha <= 0 || p.EMAAlpha > 1:
		return fmt.Errorf("%w: EMA alpha must be in (0, 1], got %v", ErrInvalidPolicy, p.EMAAlpha)
	case math.IsNaN(p.MinPredictedPGmL) || p.MinPredictedPGmL <= 0:
		return fmt.Errorf("%w: signal floor must be positive, got %v", ErrInvalidPolicy, p.MinPredictedPGmL)
	}
	return nil
}

// isOutlier reports whether ratio falls outside [1/OutlierRatio, OutlierRatio].
// NaN is never inside the band.
func (p Policy) isOutlier(ratio float64) bool {
	return !(ratio >= 1/p.OutlierRatio && ratio <= p.OutlierRatio)
}
