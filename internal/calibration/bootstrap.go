package calibration

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mrcode/hrt-tracker/internal/models"
	"github.com/mrcode/hrt-tracker/internal/pk"
)

// RouteCurves returns the uncalibrated curve of every route in events. A
// simulator with a native per-route breakdown is called once; otherwise each
// route is simulated on its own events, concurrently.
func RouteCurves(
	ctx context.Context,
	sim pk.Simulator,
	events []models.DoseEvent,
	bodyWeightKG float64,
) (map[models.Route]*models.PredictedCurve, error) {
	if rs, ok := sim.(pk.RouteSimulator); ok {
		curves, err := rs.SimulateRoutes(ctx, events, bodyWeightKG)
		if err != nil {
			return nil, fmt.Errorf("simulating routes: %w", err)
		}
		return curves, nil
	}

	groups := models.GroupByRoute(events)
	curves := make(map[models.Route]*models.PredictedCurve, len(groups))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for route, routeEvents := range groups {
		route, routeEvents := route, routeEvents
		g.Go(func() error {
			curve, err := sim.Simulate(gctx, routeEvents, bodyWeightKG, models.CalibrationFactors{})
			if err != nil {
				return fmt.Errorf("simulating route %s: %w", route, err)
			}
			mu.Lock()
			curves[route] = curve
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return curves, nil
}
