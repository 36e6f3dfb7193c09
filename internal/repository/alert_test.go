package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/models"
)

func setupMockAlertDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewAlertRepository(db, zap.NewNop())
}

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestAlertSave_VitalAlert(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	occurredAt := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	alert := models.Alert{
		PetID:       "pet-1",
		DeviceID:    "collar-1",
		Type:        models.AlertTachycardia,
		Severity:    models.SeverityHigh,
		Message:     "Tachycardia: heart rate 150 bpm is above 120 bpm",
		HeartRate:   intPtr(150),
		Temperature: floatPtr(38.0),
		OccurredAt:  occurredAt,
	}

	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(sqlmock.AnyArg(), "pet-1", "collar-1", "TACHYCARDIA", "HIGH", alert.Message, 150, 38.0, occurredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Save(context.Background(), alert)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "generated id is a uuid")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertSave_MotionAlertKeepsIDAndNulls(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	id := uuid.New().String()
	occurredAt := time.Now()
	alert := models.Alert{
		ID:         id,
		PetID:      "pet-1",
		DeviceID:   "collar-1",
		Type:       models.AlertFall,
		Severity:   models.SeverityHigh,
		Message:    "Possible fall detected",
		OccurredAt: occurredAt,
	}

	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(id, "pet-1", "collar-1", "FALL", "HIGH", "Possible fall detected", nil, nil, occurredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Save(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertSave_Errors(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	_, err := repo.Save(context.Background(), models.Alert{})
	assert.ErrorContains(t, err, "pet_id is required")

	mock.ExpectExec(`INSERT INTO alerts`).WillReturnError(errors.New("connection reset"))
	_, err = repo.Save(context.Background(), models.Alert{PetID: "pet-1", Type: models.AlertFever})
	assert.ErrorContains(t, err, "failed to insert alert")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecentByPet(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "pet_id", "device_id", "alert_type", "severity",
		"message", "heart_rate", "temperature", "occurred_at",
	}).
		AddRow("a2", "pet-1", "collar-1", "FEVER", "HIGH", "Fever", 90, 40.2, now).
		AddRow("a1", "pet-1", "collar-1", "IMMOBILITY", "MEDIUM", "Immobile", nil, nil, now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT (.+) FROM alerts`).
		WithArgs("pet-1", 50).
		WillReturnRows(rows)

	alerts, err := repo.ListRecentByPet(context.Background(), "pet-1", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, models.AlertFever, alerts[0].Type)
	require.NotNil(t, alerts[0].Temperature)
	assert.Equal(t, 40.2, *alerts[0].Temperature)
	assert.Equal(t, models.SeverityMedium, alerts[1].Severity)
	assert.Nil(t, alerts[1].HeartRate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecentByPet_ClampsLimit(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	columns := []string{
		"id", "pet_id", "device_id", "alert_type", "severity",
		"message", "heart_rate", "temperature", "occurred_at",
	}
	mock.ExpectQuery(`SELECT (.+) FROM alerts`).
		WithArgs("pet-1", 500).
		WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery(`SELECT (.+) FROM alerts`).
		WithArgs("pet-1", 120).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.ListRecentByPet(context.Background(), "pet-1", 1000)
	require.NoError(t, err)
	_, err = repo.ListRecentByPet(context.Background(), "pet-1", 120)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
