// Package models contains data structures used throughout the application
package models

import "sort"

// CalibrationFactors maps a route to its multiplicative correction. A route
// without an entry has never been calibrated and is treated as 1.0.
type CalibrationFactors map[Route]float64

// DefaultFactor is the implicit factor for routes without an entry
const DefaultFactor = 1.0

// Get returns the factor for route, or DefaultFactor if it has none
func (f CalibrationFactors) Get(route Route) float64 {
	if v, ok := f[route]; ok {
		return v
	}
	return DefaultFactor
}

// Has returns true if the route has an explicit factor
func (f CalibrationFactors) Has(route Route) bool {
	_, ok := f[route]
	return ok
}

// Clone returns an independent copy of the mapping. A nil mapping clones to
// an empty one.
func (f CalibrationFactors) Clone() CalibrationFactors {
	out := make(CalibrationFactors, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Routes returns the routes with an explicit factor, sorted by name
func (f CalibrationFactors) Routes() []Route {
	routes := make([]Route, 0, len(f))
	for r := range f {
		routes = append(routes, r)
	}
	SortRoutes(routes)
	return routes
}

// SortRoutes sorts routes by name in place
func SortRoutes(routes []Route) {
	sort.Slice(routes, func(i, j int) bool { return routes[i] < routes[j] })
}
