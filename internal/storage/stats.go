package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about all stored data.
type DataStats struct {
	TotalExercises  int64      `json:"total_exercises"`
	TotalTemplates  int64      `json:"total_templates"`
	TotalSessions   int64      `json:"total_sessions"`
	TotalSets       int64      `json:"total_sets"`
	TotalVolumeKg   float64    `json:"total_volume_kg"`
	LastSessionTime *time.Time `json:"last_session_time"`
}

// GetDataStats returns aggregate statistics for the stored data.
func (db *DB) GetDataStats(ctx context.Context) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exercises`).Scan(&stats.TotalExercises)
	if err != nil {
		return nil, fmt.Errorf("counting exercises: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM templates`).Scan(&stats.TotalTemplates)
	if err != nil {
		return nil, fmt.Errorf("counting templates: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(started_at) FROM sessions`).Scan(&stats.TotalSessions, &stats.LastSessionTime)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(reps * weight_kg), 0) FROM session_sets`).Scan(
		&stats.TotalSets, &stats.TotalVolumeKg)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	return stats, nil
}
