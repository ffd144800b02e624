package calibration

import (
	"context"

	"github.com/mrcode/hrt-tracker/internal/logger"
	"github.com/mrcode/hrt-tracker/internal/models"
	"github.com/mrcode/hrt-tracker/internal/pk"
)

// Observer receives advisory diagnostics while a run progresses
type Observer interface {
	OutlierRejected(step Step)
}

// Engine fits per-route correction factors to lab measurements
type Engine struct {
	sim      pk.Simulator
	policy   Policy
	log      *logger.Logger
	observer Observer
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(sim pk.Simulator, policy Policy, log *logger.Logger) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{sim: sim, policy: policy, log: log}, nil
}

// SetObserver registers the diagnostics observer
func (e *Engine) SetObserver(o Observer) {
	e.observer = o
}

// Policy returns the engine's tuning constants
func (e *Engine) Policy() Policy {
	return e.policy
}

// Calibrate returns the correction factor of every route that received at
// least one update. Routes without an entry are implicitly 1.0.
func (e *Engine) Calibrate(
	ctx context.Context,
	measurements []models.LabMeasurement,
	events []models.DoseEvent,
	bodyWeightKG float64,
) (models.CalibrationFactors, error) {
	report, err := e.Run(ctx, measurements, events, bodyWeightKG)
	if err != nil {
		return nil, err
	}
	return report.Factors, nil
}

// Run performs a calibration and returns the factors with a per-measurement trace
func (e *Engine) Run(
	ctx context.Context,
	measurements []models.LabMeasurement,
	events []models.DoseEvent,
	bodyWeightKG float64,
) (*Report, error) {
	report := &Report{Factors: models.CalibrationFactors{}}

	eligible := models.EligibleMeasurements(measurements)
	if len(eligible) == 0 {
		e.log.Debug("No eligible measurements, nothing to calibrate", "total", len(measurements))
		return report, nil
	}

	curves, err := RouteCurves(ctx, e.sim, events, bodyWeightKG)
	if err != nil {
		return nil, err
	}
	report.RouteCurves = curves

	routes := make([]models.Route, 0, len(curves))
	for r := range curves {
		routes = append(routes, r)
	}
	models.SortRoutes(routes)

	state := &runState{
		factors: report.Factors,
		updated: make(routeSet),
	}
	for _, m := range eligible {
		step := e.step(m, routes, curves, state)
		report.Steps = append(report.Steps, step)

		switch step.Outcome {
		case OutcomeOutlier:
			e.log.Warn("Rejected outlier measurement",
				"id", m.ID,
				"timeH", m.TimeH,
				"measuredPGmL", m.ConcPGmL,
				"predictedPGmL", step.TotalPredicted,
				"ratio", step.Ratio)
			if e.observer != nil {
				e.observer.OutlierRejected(step)
			}
		case OutcomeLowSignal:
			e.log.Debug("Skipped measurement below signal floor",
				"id", m.ID,
				"timeH", m.TimeH,
				"predictedPGmL", step.TotalPredicted)
		}
	}

	e.log.Info("Calibration complete",
		"measurements", len(eligible),
		"applied", report.Count(OutcomeApplied),
		"outliers", report.Count(OutcomeOutlier),
		"lowSignal", report.Count(OutcomeLowSignal),
		"routesCalibrated", len(report.Factors))

	return report, nil
}

// runState is the private working copy a run folds over
type runState struct {
	factors models.CalibrationFactors
	updated routeSet
}

// routeSet tracks which routes already had an update in this run
type routeSet map[models.Route]struct{}

func (s routeSet) has(r models.Route) bool {
	_, ok := s[r]
	return ok
}

func (s routeSet) add(r models.Route) {
	s[r] = struct{}{}
}

// step applies the update rule for one measurement. Shares are computed from
// the factors in effect before this measurement; updates are visible from
// the next one.
func (e *Engine) step(
	m models.LabMeasurement,
	routes []models.Route,
	curves map[models.Route]*models.PredictedCurve,
	state *runState,
) Step {
	contributions := make([]float64, len(routes))
	var total float64
	for i, r := range routes {
		contributions[i] = curves[r].At(m.TimeH) * state.factors.Get(r)
		total += contributions[i]
	}

	step := Step{Measurement: m, TotalPredicted: total}
	if total < e.policy.MinPredictedPGmL {
		step.Outcome = OutcomeLowSignal
		return step
	}

	ratio := m.ConcPGmL / total
	step.Ratio = ratio
	if e.policy.isOutlier(ratio) {
		step.Outcome = OutcomeOutlier
		return step
	}
	step.Outcome = OutcomeApplied

	for i, r := range routes {
		c := contributions[i]
		if c <= 0 {
			continue
		}
		update := RouteUpdate{
			Route:        r,
			Contribution: c,
			Share:        c / total,
			OldFactor:    state.factors.Get(r),
		}
		if update.Share < e.policy.MinContributionShare {
			update.Skipped = true
			step.Updates = append(step.Updates, update)
			continue
		}

		alpha := e.policy.EMAAlpha
		if !state.updated.has(r) {
			alpha = 1.0
		}
		update.Alpha = alpha
		update.TargetFactor = update.OldFactor * ratio
		update.NewFactor = update.OldFactor*(1-alpha) + update.TargetFactor*alpha

		state.factors[r] = update.NewFactor
		state.updated.add(r)
		step.Updates = append(step.Updates, update)
	}
	return step
}
