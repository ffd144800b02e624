// Package notifications handles system notifications and alerts
package notifications

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/hrt-tracker/internal/calibration"
	"github.com/mrcode/hrt-tracker/internal/logger"
	"github.com/mrcode/hrt-tracker/internal/models"
)

// Alert type constants
const (
	alertOutlier = "outlier"
	alertLow     = "low"
	alertHigh    = "high"
)

var _ calibration.Observer = (*Manager)(nil)

// Manager sends calibration and level alerts
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	log           *logger.Logger
	mu            sync.Mutex

	notify func(title, message string) error
	now    func() time.Time
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		log:           log,
		notify:        sendNotification,
		now:           time.Now,
	}
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// OutlierRejected notifies about a lab value the calibration refused
func (m *Manager) OutlierRejected(step calibration.Step) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.settings.EnableOutlierAlerts {
		return
	}

	key := alertOutlier + ":" + measurementKey(step.Measurement)
	if m.suppressed(key) {
		return
	}

	title, message := m.formatOutlier(step)
	if err := m.notify(title, message); err != nil {
		m.log.Warn("Failed to send outlier notification", "id", step.Measurement.ID, "error", err)
		return
	}
	m.lastAlertTime[key] = m.now()
}

// CheckLevel alerts when a predicted concentration leaves the target range
func (m *Manager) CheckLevel(timeH, pgml float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.settings.EnableLevelAlerts {
		return nil
	}

	alertType := m.settings.GetLevelStatus(pgml)
	if alertType == models.LevelNormal {
		// Back in range, re-arm both directions
		delete(m.lastAlertTime, alertLow)
		delete(m.lastAlertTime, alertHigh)
		return nil
	}
	if m.suppressed(alertType) {
		return nil
	}

	title, message := m.formatLevel(timeH, pgml, alertType)
	if err := m.notify(title, message); err != nil {
		return err
	}

	m.lastAlertTime[alertType] = m.now()
	return nil
}

// suppressed reports whether an alert with key was sent too recently
func (m *Manager) suppressed(key string) bool {
	lastTime, ok := m.lastAlertTime[key]
	if !ok {
		return false
	}
	if m.settings.RepeatAlertMinutes <= 0 {
		// No repeat, only alert once
		return true
	}
	repeatDuration := time.Duration(m.settings.RepeatAlertMinutes) * time.Minute
	return m.now().Sub(lastTime) < repeatDuration
}

func (m *Manager) formatOutlier(step calibration.Step) (string, string) {
	title := "⚠️ Lab value rejected"
	message := fmt.Sprintf("Measured %s vs predicted %s at %.1f h (ratio %.2f), factors unchanged",
		m.settings.FormatLevel(step.Measurement.ConcPGmL),
		m.settings.FormatLevel(step.TotalPredicted),
		step.Measurement.TimeH,
		step.Ratio)
	return title, message
}

func (m *Manager) formatLevel(timeH, pgml float64, alertType string) (string, string) {
	valueStr := m.settings.FormatLevel(pgml)

	var title, message string
	switch alertType {
	case alertLow:
		title = "⬇️ Below Target"
		message = fmt.Sprintf("Predicted estradiol is low at %.1f h: %s (target from %s)",
			timeH, valueStr, m.settings.FormatLevel(m.settings.TargetLow))
	case alertHigh:
		title = "⬆️ Above Target"
		message = fmt.Sprintf("Predicted estradiol is high at %.1f h: %s (target up to %s)",
			timeH, valueStr, m.settings.FormatLevel(m.settings.TargetHigh))
	}
	return title, message
}

func measurementKey(lab models.LabMeasurement) string {
	if lab.ID != "" {
		return lab.ID
	}
	return fmt.Sprintf("t%g", lab.TimeH)
}

// sendNotification sends a system notification
func sendNotification(title, message string) error {
	// Use beeep for cross-platform notifications
	return beeep.Notify(title, message, "")
}

// ClearAlertState clears the alert state for a specific key or all keys
func (m *Manager) ClearAlertState(alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alertType == "" {
		m.lastAlertTime = make(map[string]time.Time)
	} else {
		delete(m.lastAlertTime, alertType)
	}
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.notify("HRT Tracker", "Test notification - alerts are working!")
}
