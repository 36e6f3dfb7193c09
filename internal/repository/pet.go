package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vitalpaw-monitor/internal/models"
)

// PetRepository resolves devices to the pets wearing them.
type PetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPetRepository creates a pet repository.
func NewPetRepository(db *sql.DB, logger *zap.Logger) *PetRepository {
	return &PetRepository{
		db:     db,
		logger: logger,
	}
}

// GetPetForDevice returns the pet bound to an active device, or ErrNotFound.
// Breed is empty when the pet has none recorded.
func (r *PetRepository) GetPetForDevice(ctx context.Context, deviceID string) (*models.PetProfile, error) {
	query := `
		SELECT p.pet_id, p.name, p.breed
		FROM devices d
		JOIN pets p ON p.pet_id = d.pet_id
		WHERE d.device_id = $1 AND d.active
	`

	var (
		pet   models.PetProfile
		breed sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&pet.PetID, &pet.Name, &breed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pet for device: %w", err)
	}
	pet.Breed = breed.String
	return &pet, nil
}

// GetPet returns the pet with petID, or ErrNotFound.
func (r *PetRepository) GetPet(ctx context.Context, petID string) (*models.PetProfile, error) {
	query := `SELECT pet_id, name, breed FROM pets WHERE pet_id = $1`

	var (
		pet   models.PetProfile
		breed sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, petID).Scan(&pet.PetID, &pet.Name, &breed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pet %s: %w", petID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	pet.Breed = breed.String
	return &pet, nil
}
