package health

import (
	"fmt"
	"strings"
)

// Status is an engine health class.
type Status string

const (
	StatusHealthy Status = "Healthy"
	StatusMinor   Status = "Minor"
	StatusMajor   Status = "Major"
	StatusBroken  Status = "Broken"
)

// Statuses lists every Status from best to worst.
var Statuses = []Status{StatusHealthy, StatusMinor, StatusMajor, StatusBroken}

// Thresholds are the lower RUL bounds (exclusive) of the better classes.
type Thresholds struct {
	Healthy float64 `json:"healthy"`
	Minor   float64 `json:"minor"`
	Major   float64 `json:"major"`
}

// DefaultThresholds matches the full deployment: 100 / 50 / 20.
var DefaultThresholds = Thresholds{Healthy: 100, Minor: 50, Major: 20}

// Validate checks Healthy > Minor > Major >= 0.
func (t Thresholds) Validate() error {
	if t.Healthy > t.Minor && t.Minor > t.Major && t.Major >= 0 {
		return nil
	}
	return fmt.Errorf("health: thresholds %v/%v/%v must satisfy healthy > minor > major >= 0",
		t.Healthy, t.Minor, t.Major)
}

// Classify maps rul to a Status.
func (t Thresholds) Classify(rul float64) Status {
	switch {
	case rul > t.Healthy:
		return StatusHealthy
	case rul > t.Minor:
		return StatusMinor
	case rul > t.Major:
		return StatusMajor
	default:
		return StatusBroken
	}
}

// ParseStatus accepts a Status name in any letter case.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", fmt.Errorf("health: unknown status %q", s)
}
