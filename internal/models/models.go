package models

import (
	"time"

	"github.com/google/uuid"
)

// GroupKind classifies how a group's items are performed.
type GroupKind string

const (
	KindSingle  GroupKind = "single"
	KindPaired  GroupKind = "paired"
	KindTriple  GroupKind = "triple"
	KindCircuit GroupKind = "circuit"
)

// Valid reports whether k is one of the known group kinds.
func (k GroupKind) Valid() bool {
	switch k {
	case KindSingle, KindPaired, KindTriple, KindCircuit:
		return true
	}
	return false
}

// ExerciseRow is a row in the exercises table (the exercise library).
type ExerciseRow struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	MuscleGroup string    `json:"muscle_group"`
	CreatedAt   time.Time `json:"created_at"`
}

// TemplateRow is a row in the templates table.
type TemplateRow struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupRow is a row in the template_groups table. Position is a fractional
// order key, unique within the template.
type GroupRow struct {
	ID          uuid.UUID
	TemplateID  uuid.UUID
	Name        string
	Kind        GroupKind
	RestSeconds int
	Position    string
}

// ItemRow is a row in the template_items table. FlatPosition is derived from
// (group position, item position) and kept in sync by the store; a nil
// RestSecondsOverride means the group default applies.
type ItemRow struct {
	ID                  uuid.UUID
	GroupID             uuid.UUID
	ExerciseID          uuid.UUID
	Position            string
	FlatPosition        string
	TargetSets          int
	TargetReps          int
	TargetWeightKg      float64
	RestSecondsOverride *int
}

// SessionRow is a row in the sessions table: an immutable point-in-time copy
// of a template, plus totals computed when the session is finished.
type SessionRow struct {
	ID            uuid.UUID  `json:"id"`
	TemplateID    *uuid.UUID `json:"template_id,omitempty"`
	Name          string     `json:"name"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	TotalSets     int        `json:"total_sets"`
	TotalReps     int        `json:"total_reps"`
	TotalVolumeKg float64    `json:"total_volume_kg"`
}

// SessionGroupRow is a row in the session_groups table.
type SessionGroupRow struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Name        string
	Kind        GroupKind
	RestSeconds int
	Position    string
}

// SessionItemRow is a row in the session_items table. RestSeconds is already
// resolved (override or group default, collapsed at snapshot time) and
// ExerciseName is denormalized so later library edits cannot corrupt history.
type SessionItemRow struct {
	ID             uuid.UUID
	SessionGroupID uuid.UUID
	ExerciseID     *uuid.UUID
	ExerciseName   string
	Position       string
	FlatPosition   string
	TargetSets     int
	TargetReps     int
	TargetWeightKg float64
	RestSeconds    int
}

// SetRow is a row in the session_sets table: one logged set.
type SetRow struct {
	ID            uuid.UUID `json:"id"`
	SessionItemID uuid.UUID `json:"session_item_id"`
	SetNumber     int       `json:"set_number"`
	Reps          int       `json:"reps"`
	WeightKg      float64   `json:"weight_kg"`
	LoggedAt      time.Time `json:"logged_at"`
}
