// Package models contains data structures used throughout the application
package models

import "sort"

// PredictedCurve is a simulated concentration time series. TimeH is
// non-decreasing and has the same length as ConcPGmL.
type PredictedCurve struct {
	TimeH    []float64 `json:"timeH"`
	ConcPGmL []float64 `json:"concPGmL"`
}

// Len returns the number of samples in the curve
func (c *PredictedCurve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.TimeH)
}

// At returns the predicted concentration at time t. Values outside the grid
// are clamped to the boundary samples and interior values are linearly
// interpolated. A nil or empty curve contributes 0.
func (c *PredictedCurve) At(t float64) float64 {
	n := c.Len()
	if n == 0 {
		return 0
	}
	if t <= c.TimeH[0] {
		return c.ConcPGmL[0]
	}
	if t >= c.TimeH[n-1] {
		return c.ConcPGmL[n-1]
	}

	// First index with TimeH > t, so TimeH[lo] <= t < TimeH[hi]. At a
	// repeated time the last sample wins.
	hi := sort.Search(n, func(i int) bool { return c.TimeH[i] > t })
	lo := hi - 1

	t0, t1 := c.TimeH[lo], c.TimeH[hi]
	frac := (t - t0) / (t1 - t0)
	return c.ConcPGmL[lo] + frac*(c.ConcPGmL[hi]-c.ConcPGmL[lo])
}

// SampleAt returns the concentration of curve at time t, treating a nil curve
// as no contribution
func SampleAt(curve *PredictedCurve, t float64) float64 {
	return curve.At(t)
}

// Scaled returns a copy of the curve with every concentration multiplied by factor
func (c *PredictedCurve) Scaled(factor float64) *PredictedCurve {
	if c == nil {
		return nil
	}
	out := &PredictedCurve{
		TimeH:    make([]float64, len(c.TimeH)),
		ConcPGmL: make([]float64, len(c.ConcPGmL)),
	}
	copy(out.TimeH, c.TimeH)
	for i, v := range c.ConcPGmL {
		out.ConcPGmL[i] = v * factor
	}
	return out
}

// Peak returns the maximum concentration of the curve, or 0 for an empty curve
func (c *PredictedCurve) Peak() float64 {
	var peak float64
	if c == nil {
		return peak
	}
	for _, v := range c.ConcPGmL {
		if v > peak {
			peak = v
		}
	}
	return peak
}
