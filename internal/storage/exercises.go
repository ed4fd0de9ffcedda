package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/repstack/internal/models"
)

// InsertExercise adds an exercise to the library.
func (db *DB) InsertExercise(ctx context.Context, name, muscleGroup string) (*models.ExerciseRow, error) {
	row := db.Pool.QueryRow(ctx,
		`INSERT INTO exercises (id, name, muscle_group)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, muscle_group, created_at`,
		uuid.New(), name, muscleGroup)

	var ex models.ExerciseRow
	if err := row.Scan(&ex.ID, &ex.Name, &ex.MuscleGroup, &ex.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting exercise: %w", err)
	}
	return &ex, nil
}

// ListExercises returns the exercise library ordered by name.
func (db *DB) ListExercises(ctx context.Context) ([]models.ExerciseRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, muscle_group, created_at FROM exercises ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseRow
	for rows.Next() {
		var ex models.ExerciseRow
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.MuscleGroup, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, ex)
	}
	return result, rows.Err()
}

// GetExercise retrieves a single exercise by ID.
func (db *DB) GetExercise(ctx context.Context, id uuid.UUID) (*models.ExerciseRow, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, name, muscle_group, created_at FROM exercises WHERE id = $1`, id)

	var ex models.ExerciseRow
	if err := row.Scan(&ex.ID, &ex.Name, &ex.MuscleGroup, &ex.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("exercise %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("querying exercise: %w", err)
	}
	return &ex, nil
}
