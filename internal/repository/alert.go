package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/models"
)

// AlertRepository persists alerts.
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository creates an alert repository.
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts alert and returns its id. An id is generated when alert.ID is empty.
func (r *AlertRepository) Save(ctx context.Context, alert models.Alert) (string, error) {
	if alert.PetID == "" {
		return "", fmt.Errorf("pet_id is required")
	}
	id := alert.ID
	if id == "" {
		id = uuid.New().String()
	}

	query := `
		INSERT INTO alerts (
			id, pet_id, device_id, alert_type, severity,
			message, heart_rate, temperature, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var heartRate sql.NullInt64
	if alert.HeartRate != nil {
		heartRate = sql.NullInt64{Int64: int64(*alert.HeartRate), Valid: true}
	}
	var temperature sql.NullFloat64
	if alert.Temperature != nil {
		temperature = sql.NullFloat64{Float64: *alert.Temperature, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		id,
		alert.PetID,
		alert.DeviceID,
		string(alert.Type),
		string(alert.Severity),
		alert.Message,
		heartRate,
		temperature,
		alert.OccurredAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert alert: %w", err)
	}

	r.logger.Debug("Alert saved",
		zap.String("alert_id", id),
		zap.String("pet_id", alert.PetID),
		zap.String("type", string(alert.Type)))
	return id, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListRecentByPet returns up to limit alerts for petID, newest first.
func (r *AlertRepository) ListRecentByPet(ctx context.Context, petID string, limit int) ([]models.Alert, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	query := `
		SELECT id, pet_id, device_id, alert_type, severity,
		       message, heart_rate, temperature, occurred_at
		FROM alerts
		WHERE pet_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, petID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var (
			a           models.Alert
			alertType   string
			severity    string
			heartRate   sql.NullInt64
			temperature sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.PetID, &a.DeviceID, &alertType, &severity,
			&a.Message, &heartRate, &temperature, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Type = models.AlertType(alertType)
		a.Severity = models.Severity(severity)
		if heartRate.Valid {
			hr := int(heartRate.Int64)
			a.HeartRate = &hr
		}
		if temperature.Valid {
			t := temperature.Float64
			a.Temperature = &t
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}
