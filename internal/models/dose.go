// Package models contains data structures used throughout the application
package models

import (
	"fmt"
	"math"
)

// Route is an administration modality that contributes its own additive
// concentration curve
type Route string

// Supported administration routes
const (
	RouteInjection  Route = "injection"
	RouteOral       Route = "oral"
	RouteSublingual Route = "sublingual"
	RouteGel        Route = "gel"
	RoutePatch      Route = "patch"
)

// Routes lists every supported route in display order
var Routes = []Route{RouteInjection, RouteOral, RouteSublingual, RouteGel, RoutePatch}

// Valid returns true if the route is one of the supported modalities
func (r Route) Valid() bool {
	for _, known := range Routes {
		if r == known {
			return true
		}
	}
	return false
}

// Ester identifies the injected estradiol formulation
type Ester string

// Supported esters
const (
	EsterNone      Ester = "E2"
	EsterBenzoate  Ester = "EB"
	EsterValerate  Ester = "EV"
	EsterCypionate Ester = "EC"
	EsterEnanthate Ester = "EEn"
)

// DoseEvent represents a single administered dose
type DoseEvent struct {
	ID        string  `json:"id" yaml:"id"`
	Route     Route   `json:"route" yaml:"route"`
	TimeH     float64 `json:"timeH" yaml:"timeH"`                             // Hours on the shared timeline
	DoseMG    float64 `json:"doseMG" yaml:"doseMG"`                           // Compound in mg, or mg/day release for patches
	Ester     Ester   `json:"ester,omitempty" yaml:"ester,omitempty"`         // Injection formulation
	DurationH float64 `json:"durationH,omitempty" yaml:"durationH,omitempty"` // Patch wear time
}

// Validate returns an error describing why the event cannot be simulated
func (d *DoseEvent) Validate() error {
	if !d.Route.Valid() {
		return fmt.Errorf("unknown route %q", d.Route)
	}
	if math.IsNaN(d.TimeH) || math.IsInf(d.TimeH, 0) {
		return fmt.Errorf("time must be finite, got %v", d.TimeH)
	}
	if math.IsNaN(d.DoseMG) || d.DoseMG < 0 {
		return fmt.Errorf("dose must be non-negative, got %v", d.DoseMG)
	}
	if d.Route == RoutePatch && !(d.DurationH > 0) {
		return fmt.Errorf("patch wear duration must be positive, got %v", d.DurationH)
	}
	return nil
}

// EventRoutes returns the distinct routes present in events, in first-seen order
func EventRoutes(events []DoseEvent) []Route {
	seen := make(map[Route]bool)
	var routes []Route
	for _, e := range events {
		if !seen[e.Route] {
			seen[e.Route] = true
			routes = append(routes, e.Route)
		}
	}
	return routes
}

// GroupByRoute splits events by route, preserving their relative order
func GroupByRoute(events []DoseEvent) map[Route][]DoseEvent {
	groups := make(map[Route][]DoseEvent)
	for _, e := range events {
		groups[e.Route] = append(groups[e.Route], e)
	}
	return groups
}
