package models

import (
	"time"

	"github.com/google/uuid"
)

// TemplateTree is the read shape served to the view layer: groups ordered by
// position, items pre-sorted by flat key, RestSecondsEffective always
// populated (override-or-default resolved for display; the stored rows keep
// the distinction).
type TemplateTree struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Groups []TreeGroup `json:"groups"`
}

// TreeGroup is one ordered group within a TemplateTree.
type TreeGroup struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Kind        GroupKind  `json:"kind"`
	RestSeconds int        `json:"rest_seconds"`
	Position    string     `json:"position"`
	Items       []TreeItem `json:"items"`
}

// TreeItem is one ordered item within a TreeGroup.
type TreeItem struct {
	ID                   uuid.UUID `json:"id"`
	ExerciseID           uuid.UUID `json:"exercise_id"`
	ExerciseName         string    `json:"exercise_name"`
	Position             string    `json:"position"`
	TargetSets           int       `json:"target_sets"`
	TargetReps           int       `json:"target_reps"`
	TargetWeightKg       float64   `json:"target_weight_kg"`
	RestSecondsEffective int       `json:"rest_seconds_effective"`
}

// SessionDetail is the read shape for one session: the frozen tree plus all
// logged sets.
type SessionDetail struct {
	SessionRow
	Groups []SessionTreeGroup `json:"groups"`
}

// SessionTreeGroup is one ordered group within a SessionDetail.
type SessionTreeGroup struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Kind        GroupKind         `json:"kind"`
	RestSeconds int               `json:"rest_seconds"`
	Position    string            `json:"position"`
	Items       []SessionTreeItem `json:"items"`
}

// SessionTreeItem is one ordered item within a SessionTreeGroup. RestSeconds
// is the value resolved at snapshot time.
type SessionTreeItem struct {
	ID             uuid.UUID  `json:"id"`
	ExerciseID     *uuid.UUID `json:"exercise_id,omitempty"`
	ExerciseName   string     `json:"exercise_name"`
	Position       string     `json:"position"`
	TargetSets     int        `json:"target_sets"`
	TargetReps     int        `json:"target_reps"`
	TargetWeightKg float64    `json:"target_weight_kg"`
	RestSeconds    int        `json:"rest_seconds"`
	Sets           []SetEntry `json:"sets"`
}

// SetEntry is one logged set within a SessionTreeItem.
type SetEntry struct {
	ID        uuid.UUID `json:"id"`
	SetNumber int       `json:"set_number"`
	Reps      int       `json:"reps"`
	WeightKg  float64   `json:"weight_kg"`
	LoggedAt  time.Time `json:"logged_at"`
}
