package models

import (
	"time"
)

// AlertType identifies the condition that raised an alert.
type AlertType string

const (
	AlertFever       AlertType = "FEVER"
	AlertHypothermia AlertType = "HYPOTHERMIA"
	AlertTachycardia AlertType = "TACHYCARDIA"
	AlertBradycardia AlertType = "BRADYCARDIA"
	AlertFall        AlertType = "FALL"
	AlertImmobility  AlertType = "IMMOBILITY"
)

// Severity of an alert.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Alert is created by the evaluator and never mutated afterwards.
type Alert struct {
	ID          string    `json:"id" db:"id"`
	PetID       string    `json:"pet_id" db:"pet_id"`
	DeviceID    string    `json:"device_id" db:"device_id"`
	Type        AlertType `json:"type" db:"alert_type"`
	Severity    Severity  `json:"severity" db:"severity"`
	Message     string    `json:"message" db:"message"`
	HeartRate   *int      `json:"heart_rate,omitempty" db:"heart_rate"`
	Temperature *float64  `json:"temperature,omitempty" db:"temperature"`
	OccurredAt  time.Time `json:"occurred_at" db:"occurred_at"`
}
