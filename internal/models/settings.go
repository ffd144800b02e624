// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Unit constants
const (
	UnitPgML  = "pg/mL"
	UnitPmolL = "pmol/L"
)

// Level status constants
const (
	LevelLow    = "low"
	LevelNormal = "normal"
	LevelHigh   = "high"
)

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Data source settings
	DataSource string `json:"dataSource"` // File path or http(s) URL of the dataset
	APIToken   string `json:"apiToken"`   // Bearer token for remote datasets

	// Subject settings
	BodyWeightKG float64 `json:"bodyWeightKG"` // Used when the dataset has no weight

	// Display settings
	Unit       string  `json:"unit"`       // "pg/mL" or "pmol/L"
	TargetLow  float64 `json:"targetLow"`  // pg/mL
	TargetHigh float64 `json:"targetHigh"` // pg/mL

	// Calibration policy
	OutlierRatio         float64 `json:"outlierRatio"`
	MinContributionShare float64 `json:"minContributionShare"`
	EMAAlpha             float64 `json:"emaAlpha"`
	MinPredictedPGmL     float64 `json:"minPredictedPGmL"`

	// Simulation settings
	SimStepHours float64 `json:"simStepHours"`
	SimTailHours float64 `json:"simTailHours"`

	// Alert settings
	EnableOutlierAlerts bool `json:"enableOutlierAlerts"`
	EnableLevelAlerts   bool `json:"enableLevelAlerts"`  // Predicted level outside the target range
	RepeatAlertMinutes  int  `json:"repeatAlertMinutes"` // 0 = alert once

	// Chart settings
	ChartWidth            int    `json:"chartWidth"`
	ChartHeight           int    `json:"chartHeight"`
	ChartColorCalibrated  string `json:"chartColorCalibrated"` // Hex color
	ChartColorRaw         string `json:"chartColorRaw"`
	ChartColorMeasurement string `json:"chartColorMeasurement"`
	ChartColorOutlier     string `json:"chartColorOutlier"`
	ChartShowRaw          bool   `json:"chartShowRaw"`    // Draw the uncalibrated curve
	ChartShowTarget       bool   `json:"chartShowTarget"` // Show target range band
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		DataSource: "",
		APIToken:   "",

		BodyWeightKG: 70,

		Unit:       UnitPgML,
		TargetLow:  100,
		TargetHigh: 200,

		OutlierRatio:         3.0,
		MinContributionShare: 0.1,
		EMAAlpha:             0.4,
		MinPredictedPGmL:     1.0,

		SimStepHours: 0.5,
		SimTailHours: 14 * 24,

		EnableOutlierAlerts: true,
		EnableLevelAlerts:   true,
		RepeatAlertMinutes:  60,

		ChartWidth:            900,
		ChartHeight:           500,
		ChartColorCalibrated:  "#4ade80", // Green
		ChartColorRaw:         "#9ca3af", // Gray
		ChartColorMeasurement: "#3b82f6", // Blue
		ChartColorOutlier:     "#ef4444", // Red
		ChartShowRaw:          true,
		ChartShowTarget:       true,
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "hrt-tracker")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from the default config path
func (s *Settings) Load() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.LoadFrom(path)
}

// LoadFrom loads settings from path. A missing file leaves the defaults in place.
func (s *Settings) LoadFrom(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is chosen by the user running the tool
	if err != nil {
		if os.IsNotExist(err) {
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}

	return nil
}

// Save saves settings to the default config path
func (s *Settings) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.SaveTo(path)
}

// SaveTo saves settings to path
func (s *Settings) SaveTo(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.DataSource = other.DataSource
	s.APIToken = other.APIToken
	s.BodyWeightKG = other.BodyWeightKG
	s.Unit = other.Unit
	s.TargetLow = other.TargetLow
	s.TargetHigh = other.TargetHigh
	s.OutlierRatio = other.OutlierRatio
	s.MinContributionShare = other.MinContributionShare
	s.EMAAlpha = other.EMAAlpha
	s.MinPredictedPGmL = other.MinPredictedPGmL
	s.SimStepHours = other.SimStepHours
	s.SimTailHours = other.SimTailHours
	s.EnableOutlierAlerts = other.EnableOutlierAlerts
	s.EnableLevelAlerts = other.EnableLevelAlerts
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.ChartWidth = other.ChartWidth
	s.ChartHeight = other.ChartHeight
	s.ChartColorCalibrated = other.ChartColorCalibrated
	s.ChartColorRaw = other.ChartColorRaw
	s.ChartColorMeasurement = other.ChartColorMeasurement
	s.ChartColorOutlier = other.ChartColorOutlier
	s.ChartShowRaw = other.ChartShowRaw
	s.ChartShowTarget = other.ChartShowTarget
}

// IsConfigured returns true if minimum required settings are set
func (s *Settings) IsConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.DataSource != ""
}

// GetLevelStatus returns the status string for a concentration in pg/mL
func (s *Settings) GetLevelStatus(pgml float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case pgml < s.TargetLow:
		return LevelLow
	case pgml > s.TargetHigh:
		return LevelHigh
	default:
		return LevelNormal
	}
}

// FormatLevel formats a pg/mL concentration in the configured unit
func (s *Settings) FormatLevel(pgml float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Unit == UnitPmolL {
		return fmt.Sprintf("%.0f pmol/L", ToPmolL(pgml))
	}
	return fmt.Sprintf("%.1f pg/mL", pgml)
}
