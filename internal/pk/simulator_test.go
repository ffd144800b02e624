package pk

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/mrcode/hrt-tracker/internal/models"
)

func testEvents() []models.DoseEvent {
	return []models.DoseEvent{
		{ID: "inj-1", Route: models.RouteInjection, TimeH: 0, DoseMG: 5, Ester: models.EsterValerate},
		{ID: "oral-1", Route: models.RouteOral, TimeH: 0, DoseMG: 2},
		{ID: "oral-2", Route: models.RouteOral, TimeH: 24, DoseMG: 2},
	}
}

func TestModel_SimulateRoutes(t *testing.T) {
	model := NewModel(Config{})

	curves, err := model.SimulateRoutes(context.Background(), testEvents(), 70)
	if err != nil {
		t.Fatalf("SimulateRoutes() error = %v", err)
	}
	if len(curves) != 2 {
		t.Fatalf("SimulateRoutes() returned %d routes, want 2", len(curves))
	}

	inj := curves[models.RouteInjection]
	oral := curves[models.RouteOral]
	if inj.Len() != oral.Len() {
		t.Errorf("route curves must share a grid: %d vs %d", inj.Len(), oral.Len())
	}
	if inj.ConcPGmL[0] != 0 {
		t.Errorf("concentration at dose time = %v, want 0", inj.ConcPGmL[0])
	}
	for i := 1; i < inj.Len(); i++ {
		if inj.TimeH[i] < inj.TimeH[i-1] {
			t.Fatalf("grid not sorted at %d", i)
		}
	}

	// A valerate depot peaks within days, well above zero
	if peak := inj.Peak(); peak < 50 || peak > 2000 {
		t.Errorf("injection peak = %v pg/mL, outside plausible range", peak)
	}
	if oral.At(2) <= 0 {
		t.Error("oral route should contribute shortly after dosing")
	}
}

func TestModel_SimulateAppliesFactors(t *testing.T) {
	model := NewModel(Config{})
	ctx := context.Background()
	events := testEvents()

	raw, err := model.Simulate(ctx, events, 70, nil)
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	routes, err := model.SimulateRoutes(ctx, events, 70)
	if err != nil {
		t.Fatalf("SimulateRoutes() error = %v", err)
	}

	calibrated, err := model.Simulate(ctx, events, 70, models.CalibrationFactors{models.RouteInjection: 2})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	for _, at := range []float64{6, 30, 100} {
		want := 2*routes[models.RouteInjection].At(at) + routes[models.RouteOral].At(at)
		if got := calibrated.At(at); math.Abs(got-want) > 1e-9 {
			t.Errorf("calibrated At(%v) = %v, want %v", at, got, want)
		}
		sum := routes[models.RouteInjection].At(at) + routes[models.RouteOral].At(at)
		if got := raw.At(at); math.Abs(got-sum) > 1e-9 {
			t.Errorf("raw At(%v) = %v, want %v", at, got, sum)
		}
	}
}

func TestModel_Preconditions(t *testing.T) {
	model := NewModel(Config{})
	ctx := context.Background()

	tests := []struct {
		name    string
		events  []models.DoseEvent
		weight  float64
		wantErr error
	}{
		{"Zero weight", testEvents(), 0, ErrInvalidBodyWeight},
		{"Negative weight", testEvents(), -60, ErrInvalidBodyWeight},
		{"NaN weight", testEvents(), math.NaN(), ErrInvalidBodyWeight},
		{"Unknown route", []models.DoseEvent{{ID: "x", Route: "nasal", DoseMG: 1}}, 70, ErrInvalidEvent},
		{"Negative dose", []models.DoseEvent{{ID: "y", Route: models.RouteOral, DoseMG: -1}}, 70, ErrInvalidEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.SimulateRoutes(ctx, tt.events, tt.weight)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SimulateRoutes() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestModel_ScheduleTooLong(t *testing.T) {
	oral := func(id string, timeH float64) models.DoseEvent {
		return models.DoseEvent{ID: id, Route: models.RouteOral, TimeH: timeH, DoseMG: 1}
	}

	tests := []struct {
		name    string
		config  Config
		events  []models.DoseEvent
		wantErr bool
	}{
		{"Epoch hours mixed with zero", Config{}, []models.DoseEvent{oral("a", 0), oral("b", 1e15)}, true},
		{"Exactly at the cap", Config{StepH: 1, TailH: 5, MaxGridPoints: 10}, []models.DoseEvent{oral("a", 0), oral("b", 4)}, false},
		{"One point over the cap", Config{StepH: 1, TailH: 5, MaxGridPoints: 10}, []models.DoseEvent{oral("a", 0), oral("b", 5)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewModel(tt.config)
			curves, err := model.SimulateRoutes(context.Background(), tt.events, 70)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEvent) {
					t.Errorf("SimulateRoutes() error = %v, want ErrInvalidEvent", err)
				}
				if _, err := model.Simulate(context.Background(), tt.events, 70, nil); !errors.Is(err, ErrInvalidEvent) {
					t.Errorf("Simulate() error = %v, want ErrInvalidEvent", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SimulateRoutes() error = %v", err)
			}
			if n := curves[models.RouteOral].Len(); n != tt.config.MaxGridPoints {
				t.Errorf("grid points = %d, want %d", n, tt.config.MaxGridPoints)
			}
		})
	}
}

func TestModel_NoEvents(t *testing.T) {
	model := NewModel(Config{})

	curve, err := model.Simulate(context.Background(), nil, 70, nil)
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if curve.Len() != 0 {
		t.Errorf("curve len = %d, want 0", curve.Len())
	}
}

func TestModel_CancelledContext(t *testing.T) {
	model := NewModel(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := model.SimulateRoutes(ctx, testEvents(), 70)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SimulateRoutes() error = %v, want context.Canceled", err)
	}
}

func TestModel_PatchPlateauAndWashout(t *testing.T) {
	model := NewModel(Config{})
	events := []models.DoseEvent{
		{ID: "patch", Route: models.RoutePatch, TimeH: 0, DoseMG: 0.1, DurationH: 84},
	}

	curves, err := model.SimulateRoutes(context.Background(), events, 70)
	if err != nil {
		t.Fatalf("SimulateRoutes() error = %v", err)
	}
	patch := curves[models.RoutePatch]

	cfg := model.Config()
	volumeML := cfg.VdLPerKG * 70 * 1000
	steady := 0.1 * 1e9 / 24 / (cfg.KeH * volumeML)

	if got := patch.At(80); math.Abs(got-steady)/steady > 0.01 {
		t.Errorf("plateau = %v, want about %v", got, steady)
	}
	if patch.At(84+48) > steady*0.01 {
		t.Errorf("level two days after removal = %v, want near zero", patch.At(132))
	}
}

func TestBateman_EqualRates(t *testing.T) {
	// ka == ke uses the limit form and must stay finite
	got := bateman(100, 0.1, 0.1, 10)
	want := 100 * 0.1 * 10 * math.Exp(-1)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("bateman() = %v, want %v", got, want)
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{
		StepH:  2,
		Routes: map[models.Route]RouteParams{models.RouteOral: {Ka: 1, F: 0.2}},
	}.withDefaults()

	if cfg.StepH != 2 {
		t.Errorf("StepH = %v, want 2", cfg.StepH)
	}
	if cfg.MaxGridPoints != DefaultConfig().MaxGridPoints {
		t.Errorf("MaxGridPoints = %d, want default", cfg.MaxGridPoints)
	}
	if cfg.Routes[models.RouteOral].F != 0.2 {
		t.Errorf("oral F = %v, want override 0.2", cfg.Routes[models.RouteOral].F)
	}
	if cfg.Routes[models.RouteGel].F != DefaultConfig().Routes[models.RouteGel].F {
		t.Error("gel params should fall back to defaults")
	}
	if cfg.esterKa("unknown") != cfg.Routes[models.RouteInjection].Ka {
		t.Error("unknown ester should use the injection route rate")
	}
}
