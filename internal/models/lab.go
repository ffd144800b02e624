// Package models contains data structures used throughout the application
package models

import "sort"

// PgMLToPmolL converts estradiol pg/mL to pmol/L
const PgMLToPmolL = 3.671

// LabMeasurement represents a single user-entered assay result
type LabMeasurement struct {
	ID       string  `json:"id" yaml:"id"`
	TimeH    float64 `json:"timeH" yaml:"timeH"`       // Hours on the shared timeline
	ConcPGmL float64 `json:"concPGmL" yaml:"concPGmL"` // Measured concentration in pg/mL
	Ignored  bool    `json:"ignored,omitempty" yaml:"ignored,omitempty"`
}

// ConcPmolL returns the measured concentration in pmol/L
func (m *LabMeasurement) ConcPmolL() float64 {
	return m.ConcPGmL * PgMLToPmolL
}

// ToPmolL converts a pg/mL value to pmol/L
func ToPmolL(pgml float64) float64 {
	return pgml * PgMLToPmolL
}

// ToPgML converts a pmol/L value to pg/mL
func ToPgML(pmoll float64) float64 {
	return pmoll / PgMLToPmolL
}

// EligibleMeasurements returns a time-sorted copy of the measurements that
// are not ignored. Equal timestamps keep their input order.
func EligibleMeasurements(measurements []LabMeasurement) []LabMeasurement {
	eligible := make([]LabMeasurement, 0, len(measurements))
	for _, m := range measurements {
		if !m.Ignored {
			eligible = append(eligible, m)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].TimeH < eligible[j].TimeH
	})
	return eligible
}
