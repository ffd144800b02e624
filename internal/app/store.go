package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mrcode/hrt-tracker/internal/models"
)

const factorsFile = "factors.json"

// StoredFactors is the persisted result of the last calibration
type StoredFactors struct {
	Factors          models.CalibrationFactors `json:"factors"`
	CalibratedAt     time.Time                 `json:"calibratedAt"`
	MeasurementsUsed int                       `json:"measurementsUsed"` // Points that updated at least one route
	Source           string                    `json:"source,omitempty"`
}

// FactorStore saves and loads calibration factors as JSON
type FactorStore struct {
	path string
	mu   sync.RWMutex
}

// NewFactorStore creates a store backed by the file at path
func NewFactorStore(path string) *FactorStore {
	return &FactorStore{path: path}
}

// DefaultFactorStore returns the store in the application config directory
func DefaultFactorStore() (*FactorStore, error) {
	dir, err := models.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return NewFactorStore(filepath.Join(dir, factorsFile)), nil
}

// Path returns the backing file path
func (s *FactorStore) Path() string {
	return s.path
}

// Save writes stored factors, replacing the previous file
func (s *FactorStore) Save(stored *StoredFactors) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}

// Load reads the stored factors. A missing file yields an empty mapping,
// which means every route is uncalibrated.
func (s *FactorStore) Load() (*StoredFactors, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &StoredFactors{Factors: models.CalibrationFactors{}}, nil
		}
		return nil, err
	}

	var stored StoredFactors
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parsing stored factors: %w", err)
	}
	if stored.Factors == nil {
		stored.Factors = models.CalibrationFactors{}
	}
	return &stored, nil
}
