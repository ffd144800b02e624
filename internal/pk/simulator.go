// Package pk provides the forward pharmacokinetic simulation used to predict
// estradiol concentration from a dosing schedule
package pk

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mrcode/hrt-tracker/internal/models"
)

// Precondition errors. Callers are expected to validate input before
// simulating; these make violations loud instead of producing a silent wrong curve.
var (
	ErrInvalidBodyWeight = errors.New("body weight must be a positive number")
	ErrInvalidEvent      = errors.New("invalid dose event")
)

// Simulator turns a dosing schedule into a combined concentration curve.
// factors scales each route's contribution; an empty mapping is the identity.
type Simulator interface {
	Simulate(ctx context.Context, events []models.DoseEvent, bodyWeightKG float64, factors models.CalibrationFactors) (*models.PredictedCurve, error)
}

// RouteSimulator additionally exposes the uncalibrated curve of every route
// from one invocation
type RouteSimulator interface {
	Simulator
	SimulateRoutes(ctx context.Context, events []models.DoseEvent, bodyWeightKG float64) (map[models.Route]*models.PredictedCurve, error)
}

// Model is a one-compartment model with first-order absorption per dose
// (zero-order input while a patch is worn) and first-order elimination
type Model struct {
	config Config
}

// NewModel creates a Model. Zero-valued config fields fall back to DefaultConfig.
func NewModel(config Config) *Model {
	return &Model{config: config.withDefaults()}
}

// Config returns the effective model configuration
func (m *Model) Config() Config {
	return m.config
}

// Simulate returns the combined curve with each route scaled by its factor
func (m *Model) Simulate(
	ctx context.Context,
	events []models.DoseEvent,
	bodyWeightKG float64,
	factors models.CalibrationFactors,
) (*models.PredictedCurve, error) {
	perRoute, err := m.SimulateRoutes(ctx, events, bodyWeightKG)
	if err != nil {
		return nil, err
	}
	if len(perRoute) == 0 {
		return &models.PredictedCurve{}, nil
	}

	routes := make([]models.Route, 0, len(perRoute))
	for r := range perRoute {
		routes = append(routes, r)
	}
	models.SortRoutes(routes)

	grid := perRoute[routes[0]].TimeH
	combined := &models.PredictedCurve{
		TimeH:    append([]float64(nil), grid...),
		ConcPGmL: make([]float64, len(grid)),
	}
	for _, r := range routes {
		f := factors.Get(r)
		for i, v := range perRoute[r].ConcPGmL {
			combined.ConcPGmL[i] += v * f
		}
	}
	return combined, nil
}

// SimulateRoutes returns one uncalibrated curve per route present in events.
// All curves share the same time grid.
func (m *Model) SimulateRoutes(
	ctx context.Context,
	events []models.DoseEvent,
	bodyWeightKG float64,
) (map[models.Route]*models.PredictedCurve, error) {
	if math.IsNaN(bodyWeightKG) || bodyWeightKG <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidBodyWeight, bodyWeightKG)
	}
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidEvent, events[i].ID, err)
		}
	}
	if len(events) == 0 {
		return map[models.Route]*models.PredictedCurve{}, nil
	}

	grid, err := m.grid(events)
	if err != nil {
		return nil, err
	}
	volumeML := m.config.VdLPerKG * bodyWeightKG * 1000

	result := make(map[models.Route]*models.PredictedCurve)
	for route, routeEvents := range models.GroupByRoute(events) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conc := make([]float64, len(grid))
		for _, e := range routeEvents {
			for i, t := range grid {
				conc[i] += m.eventConcentration(e, t-e.TimeH, volumeML)
			}
		}
		result[route] = &models.PredictedCurve{
			TimeH:    append([]float64(nil), grid...),
			ConcPGmL: conc,
		}
	}
	return result, nil
}

// grid spans from the first dose to the end of the last dose plus the tail
func (m *Model) grid(events []models.DoseEvent) ([]float64, error) {
	start := math.Inf(1)
	end := math.Inf(-1)
	for _, e := range events {
		if e.TimeH < start {
			start = e.TimeH
		}
		last := e.TimeH
		if e.Route == models.RoutePatch {
			last += e.DurationH
		}
		if last > end {
			end = last
		}
	}
	end += m.config.TailH

	steps := math.Ceil((end - start) / m.config.StepH)
	if math.IsInf(steps, 0) || steps+1 > float64(m.config.MaxGridPoints) {
		return nil, fmt.Errorf("%w: schedule spans %v h, more than %d points at %v h steps",
			ErrInvalidEvent, end-start, m.config.MaxGridPoints, m.config.StepH)
	}
	grid := make([]float64, int(steps)+1)
	for i := range grid {
		grid[i] = start + float64(i)*m.config.StepH
	}
	return grid, nil
}

// eventConcentration returns the pg/mL contributed by one dose dt hours after it
func (m *Model) eventConcentration(e models.DoseEvent, dt, volumeML float64) float64 {
	if dt <= 0 || e.DoseMG == 0 {
		return 0
	}
	ke := m.config.KeH
	params := m.config.Routes[e.Route]

	if e.Route == models.RoutePatch {
		// DoseMG is the labelled release rate in mg/day
		ratePGPerH := e.DoseMG * params.F * 1e9 / 24
		steady := ratePGPerH / (ke * volumeML)
		if dt <= e.DurationH {
			return steady * (1 - math.Exp(-ke*dt))
		}
		atRemoval := steady * (1 - math.Exp(-ke*e.DurationH))
		return atRemoval * math.Exp(-ke*(dt-e.DurationH))
	}

	ka := params.Ka
	amountPG := e.DoseMG * params.F * 1e9
	if e.Route == models.RouteInjection {
		ka = m.config.esterKa(e.Ester)
		amountPG *= esterFraction(e.Ester)
	}
	return bateman(amountPG/volumeML, ka, ke, dt)
}

// bateman is the one-compartment first-order absorption solution
func bateman(c0, ka, ke, t float64) float64 {
	if math.Abs(ka-ke) < 1e-9 {
		return c0 * ke * t * math.Exp(-ke*t)
	}
	return c0 * ka / (ka - ke) * (math.Exp(-ke*t) - math.Exp(-ka*t))
}
