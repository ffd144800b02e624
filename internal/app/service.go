// Package app wires dataset loading, simulation, calibration, persistence and
// alerts into the operations the command line exposes
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mrcode/hrt-tracker/internal/calibration"
	"github.com/mrcode/hrt-tracker/internal/chart"
	"github.com/mrcode/hrt-tracker/internal/dataset"
	"github.com/mrcode/hrt-tracker/internal/logger"
	"github.com/mrcode/hrt-tracker/internal/models"
	"github.com/mrcode/hrt-tracker/internal/notifications"
	"github.com/mrcode/hrt-tracker/internal/pk"
)

// Prediction is the simulated concentration at one point in time
type Prediction struct {
	TimeH          float64                   `json:"timeH"`
	CalibratedPGmL float64                   `json:"calibratedPGmL"`
	RawPGmL        float64                   `json:"rawPGmL"`
	Status         string                    `json:"status"` // low, normal or high against the target range
	Factors        models.CalibrationFactors `json:"factors"`
	CalibratedAt   time.Time                 `json:"calibratedAt,omitempty"`
}

// Service runs calibrations and predictions for the configured subject
type Service struct {
	settings *models.Settings
	log      *logger.Logger
	client   *dataset.Client
	sim      pk.Simulator
	engine   *calibration.Engine
	notifier *notifications.Manager
	store    *FactorStore
	renderer *chart.Renderer

	now func() time.Time
}

// NewService builds the service from settings. A nil logger discards output.
func NewService(settings *models.Settings, log *logger.Logger, store *FactorStore) (*Service, error) {
	if log == nil {
		log = logger.Nop()
	}
	snapshot := settings.Clone()

	sim := pk.NewModel(pk.Config{
		StepH: snapshot.SimStepHours,
		TailH: snapshot.SimTailHours,
	})
	engine, err := calibration.NewEngine(sim, calibration.PolicyFromSettings(snapshot), log.With("component", "calibration"))
	if err != nil {
		return nil, err
	}

	notifier := notifications.NewManager(settings, log.With("component", "notifications"))
	engine.SetObserver(notifier)

	return &Service{
		settings: settings,
		log:      log,
		client:   dataset.NewClient(snapshot.APIToken),
		sim:      sim,
		engine:   engine,
		notifier: notifier,
		store:    store,
		renderer: chart.NewRenderer(settings),
		now:      time.Now,
	}, nil
}

// Notifier returns the alert manager
func (s *Service) Notifier() *notifications.Manager {
	return s.notifier
}

// Calibrate fits factors to the dataset at location and persists them. An
// empty location uses the configured data source.
func (s *Service) Calibrate(ctx context.Context, location string) (*calibration.Report, error) {
	report, _, err := s.run(ctx, location)
	if err != nil {
		return nil, err
	}

	applied := report.Count(calibration.OutcomeApplied)
	stored := &StoredFactors{
		Factors:          report.Factors,
		CalibratedAt:     s.now().UTC(),
		MeasurementsUsed: applied,
		Source:           s.resolve(location),
	}
	if err := s.store.Save(stored); err != nil {
		return nil, fmt.Errorf("saving factors: %w", err)
	}

	s.log.Info("Saved calibration factors",
		"path", s.store.Path(),
		"routes", len(report.Factors),
		"measurementsUsed", applied)
	return report, nil
}

// Predict returns the calibrated concentration at timeH using the last saved
// factors, and raises a level alert when it is outside the target range
func (s *Service) Predict(ctx context.Context, location string, timeH float64) (*Prediction, error) {
	ds, weight, err := s.load(ctx, location)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading factors: %w", err)
	}

	calibrated, err := s.sim.Simulate(ctx, ds.Events, weight, stored.Factors)
	if err != nil {
		return nil, err
	}
	raw, err := s.sim.Simulate(ctx, ds.Events, weight, nil)
	if err != nil {
		return nil, err
	}

	p := &Prediction{
		TimeH:          timeH,
		CalibratedPGmL: calibrated.At(timeH),
		RawPGmL:        raw.At(timeH),
		Factors:        stored.Factors,
		CalibratedAt:   stored.CalibratedAt,
	}
	p.Status = s.settings.GetLevelStatus(p.CalibratedPGmL)

	if err := s.notifier.CheckLevel(timeH, p.CalibratedPGmL); err != nil {
		s.log.Warn("Failed to send level notification", "error", err)
	}

	s.log.Debug("Prediction",
		"timeH", timeH,
		"calibratedPGmL", p.CalibratedPGmL,
		"rawPGmL", p.RawPGmL,
		"status", p.Status)
	return p, nil
}

// RenderChart calibrates against the dataset without saving and writes the
// result as a PNG chart to outPath
func (s *Service) RenderChart(ctx context.Context, location, outPath string) (*calibration.Report, error) {
	report, ds, err := s.run(ctx, location)
	if err != nil {
		return nil, err
	}
	if len(report.RouteCurves) == 0 {
		// Nothing to calibrate against, still chart the simulated curve
		report.RouteCurves, err = calibration.RouteCurves(ctx, s.sim, ds.Events, ds.BodyWeightKG)
		if err != nil {
			return nil, err
		}
	}
	if err := s.renderer.SavePNG(outPath, chart.SeriesFromReport(report)); err != nil {
		return nil, err
	}
	s.log.Info("Wrote chart", "path", outPath)
	return report, nil
}

func (s *Service) run(ctx context.Context, location string) (*calibration.Report, *dataset.Dataset, error) {
	ds, weight, err := s.load(ctx, location)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.engine.Run(ctx, ds.Measurements, ds.Events, weight)
	if err != nil {
		return nil, nil, err
	}
	return report, ds, nil
}

// load fetches and validates the dataset, falling back to the configured
// body weight when the dataset has none
func (s *Service) load(ctx context.Context, location string) (*dataset.Dataset, float64, error) {
	location = s.resolve(location)
	ds, err := s.client.Fetch(ctx, location)
	if err != nil {
		return nil, 0, err
	}
	if ds.BodyWeightKG == 0 {
		ds.BodyWeightKG = s.settings.Clone().BodyWeightKG
	}
	if err := ds.Validate(); err != nil {
		return nil, 0, err
	}

	s.log.Debug("Loaded dataset",
		"location", location,
		"events", len(ds.Events),
		"measurements", len(ds.Measurements),
		"bodyWeightKG", ds.BodyWeightKG)
	return ds, ds.BodyWeightKG, nil
}

func (s *Service) resolve(location string) string {
	if location != "" {
		return location
	}
	return s.settings.Clone().DataSource
}
