// Package evaluator turns a reading, its thresholds and its motion class into
// health alerts.
package evaluator

import (
	"fmt"

	"vitalpaw-monitor/internal/models"
)

// Evaluate applies every rule to reading and returns the alerts that fire, in
// rule order: fever, hypothermia, tachycardia, bradycardia, fall, immobility.
// Values equal to a bound are in range. The result is nil when all is normal.
func Evaluate(reading models.VitalReading, t models.Thresholds, motion models.MotionClass) []models.Alert {
	var alerts []models.Alert
	b := builder{reading: reading}

	switch {
	case reading.TemperatureC > t.MaxTemperature:
		alerts = append(alerts, b.vital(models.AlertFever, models.SeverityHigh,
			fmt.Sprintf("Fever: temperature %.1f°C is above %.1f°C", reading.TemperatureC, t.MaxTemperature)))
	case reading.TemperatureC < t.MinTemperature:
		alerts = append(alerts, b.vital(models.AlertHypothermia, models.SeverityMedium,
			fmt.Sprintf("Hypothermia: temperature %.1f°C is below %.1f°C", reading.TemperatureC, t.MinTemperature)))
	}

	switch {
	case reading.HeartRate > t.MaxHeartRate:
		alerts = append(alerts, b.vital(models.AlertTachycardia, models.SeverityHigh,
			fmt.Sprintf("Tachycardia: heart rate %d bpm is above %d bpm", reading.HeartRate, t.MaxHeartRate)))
	case reading.HeartRate < t.MinHeartRate:
		alerts = append(alerts, b.vital(models.AlertBradycardia, models.SeverityMedium,
			fmt.Sprintf("Bradycardia: heart rate %d bpm is below %d bpm", reading.HeartRate, t.MinHeartRate)))
	}

	switch motion {
	case models.MotionFall:
		alerts = append(alerts, b.motion(models.AlertFall, models.SeverityHigh,
			fmt.Sprintf("Possible fall detected (acceleration %.1f)", reading.Accel.Magnitude())))
	case models.MotionImmobile:
		alerts = append(alerts, b.motion(models.AlertImmobility, models.SeverityMedium,
			"Prolonged immobility detected"))
	}

	return alerts
}

type builder struct {
	reading models.VitalReading
}

func (b builder) vital(typ models.AlertType, sev models.Severity, msg string) models.Alert {
	a := b.motion(typ, sev, msg)
	hr := b.reading.HeartRate
	temp := b.reading.TemperatureC
	a.HeartRate = &hr
	a.Temperature = &temp
	return a
}

func (b builder) motion(typ models.AlertType, sev models.Severity, msg string) models.Alert {
	return models.Alert{
		PetID:      b.reading.PetID,
		DeviceID:   b.reading.DeviceID,
		Type:       typ,
		Severity:   sev,
		Message:    msg,
		OccurredAt: b.reading.ObservedAt,
	}
}
