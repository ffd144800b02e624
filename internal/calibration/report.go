package calibration

import (
	"sort"

	"github.com/mrcode/hrt-tracker/internal/models"
)

// Outcome describes what a calibration run did with one measurement
type Outcome string

// Outcome constants
const (
	OutcomeApplied   Outcome = "applied"    // Ratio accepted, routes above the share minimum updated
	OutcomeLowSignal Outcome = "low_signal" // Combined prediction under the signal floor
	OutcomeOutlier   Outcome = "outlier"    // Ratio outside the accepted band
)

// RouteUpdate records how one route was treated for one measurement
type RouteUpdate struct {
	Route        models.Route `json:"route"`
	Contribution float64      `json:"contribution"` // Calibrated pg/mL at the measurement time
	Share        float64      `json:"share"`        // Contribution / total predicted
	OldFactor    float64      `json:"oldFactor"`
	TargetFactor float64      `json:"targetFactor,omitempty"`
	NewFactor    float64      `json:"newFactor,omitempty"`
	Alpha        float64      `json:"alpha,omitempty"`
	Skipped      bool         `json:"skipped"` // Share below the minimum, factor untouched
}

// Step is the trace of one measurement through the update rule
type Step struct {
	Measurement    models.LabMeasurement `json:"measurement"`
	TotalPredicted float64               `json:"totalPredicted"`
	Ratio          float64               `json:"ratio,omitempty"` // measured / total predicted
	Outcome        Outcome               `json:"outcome"`
	Updates        []RouteUpdate         `json:"updates,omitempty"`
}

// Report is the result of a calibration run
type Report struct {
	Factors models.CalibrationFactors `json:"factors"`
	Steps   []Step                    `json:"steps"`

	// Uncalibrated per-route curves the run compared against
	RouteCurves map[models.Route]*models.PredictedCurve `json:"-"`
}

// Count returns the number of steps with the given outcome
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}

// StepsWith returns the steps with the given outcome, in processing order
func (r *Report) StepsWith(outcome Outcome) []Step {
	var steps []Step
	for _, s := range r.Steps {
		if s.Outcome == outcome {
			steps = append(steps, s)
		}
	}
	return steps
}

// Combined returns the sum of the route curves scaled by factors. It is nil
// when the run simulated nothing.
func (r *Report) Combined(factors models.CalibrationFactors) *models.PredictedCurve {
	if len(r.RouteCurves) == 0 {
		return nil
	}
	routes := make([]models.Route, 0, len(r.RouteCurves))
	for route := range r.RouteCurves {
		routes = append(routes, route)
	}
	models.SortRoutes(routes)

	// Curves from a per-route fallback may use different grids, so sample
	// every route on the union of the grid points
	grid := unionGrid(r.RouteCurves, routes)
	combined := &models.PredictedCurve{TimeH: grid, ConcPGmL: make([]float64, len(grid))}
	for _, route := range routes {
		curve := r.RouteCurves[route]
		f := factors.Get(route)
		for i, t := range grid {
			combined.ConcPGmL[i] += curve.At(t) * f
		}
	}
	return combined
}

func unionGrid(curves map[models.Route]*models.PredictedCurve, routes []models.Route) []float64 {
	seen := make(map[float64]bool)
	var grid []float64
	for _, route := range routes {
		for _, t := range curves[route].TimeH {
			if !seen[t] {
				seen[t] = true
				grid = append(grid, t)
			}
		}
	}
	sort.Float64s(grid)
	return grid
}
