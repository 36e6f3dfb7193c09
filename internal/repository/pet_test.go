package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockPetDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PetRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPetRepository(db, zap.NewNop())
}

func TestGetPetForDevice(t *testing.T) {
	db, mock, repo := setupMockPetDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM devices d`).
		WithArgs("collar-1").
		WillReturnRows(sqlmock.NewRows([]string{"pet_id", "name", "breed"}).AddRow("pet-1", "Toby", "Beagle"))

	pet, err := repo.GetPetForDevice(context.Background(), "collar-1")
	require.NoError(t, err)
	assert.Equal(t, "pet-1", pet.PetID)
	assert.Equal(t, "Toby", pet.Name)
	assert.Equal(t, "Beagle", pet.Breed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPetForDevice_NullBreed(t *testing.T) {
	db, mock, repo := setupMockPetDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM devices d`).
		WithArgs("collar-2").
		WillReturnRows(sqlmock.NewRows([]string{"pet_id", "name", "breed"}).AddRow("pet-2", "Luna", nil))

	pet, err := repo.GetPetForDevice(context.Background(), "collar-2")
	require.NoError(t, err)
	assert.Equal(t, "", pet.Breed)
}

func TestGetPetForDevice_NotFound(t *testing.T) {
	db, mock, repo := setupMockPetDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM devices d`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetPetForDevice(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPet(t *testing.T) {
	db, mock, repo := setupMockPetDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT pet_id, name, breed FROM pets`).
		WithArgs("pet-1").
		WillReturnRows(sqlmock.NewRows([]string{"pet_id", "name", "breed"}).AddRow("pet-1", "Toby", "Beagle"))
	mock.ExpectQuery(`SELECT pet_id, name, breed FROM pets`).
		WithArgs("pet-9").
		WillReturnError(sql.ErrNoRows)

	pet, err := repo.GetPet(context.Background(), "pet-1")
	require.NoError(t, err)
	assert.Equal(t, "Toby", pet.Name)

	_, err = repo.GetPet(context.Background(), "pet-9")
	assert.ErrorIs(t, err, ErrNotFound)
}
