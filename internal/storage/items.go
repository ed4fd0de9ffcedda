package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/repstack/internal/models"
	"github.com/meltforce/repstack/internal/ordering"
)

// ItemParams are the editable fields of a template item. Zero targets fall
// back to schema defaults; a nil RestSecondsOverride inherits the group's
// rest default.
type ItemParams struct {
	TargetSets          int
	TargetReps          int
	TargetWeightKg      float64
	RestSecondsOverride *int
}

// InsertItem appends an item to a group, or places it directly after
// afterItemID when given.
func (db *DB) InsertItem(ctx context.Context, groupID, exerciseID uuid.UUID, afterItemID *uuid.UUID, p ItemParams) (*models.ItemRow, error) {
	if p.TargetSets <= 0 {
		p.TargetSets = 3
	}
	if p.TargetReps <= 0 {
		p.TargetReps = 8
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var groupKey string
	err = tx.QueryRow(ctx,
		`SELECT position FROM template_groups WHERE id = $1`, groupID).Scan(&groupKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
		}
		return nil, fmt.Errorf("querying group: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exercises WHERE id = $1)`, exerciseID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking exercise: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("exercise %s: %w", exerciseID, ErrNotFound)
	}

	position, err := db.placeItem(ctx, tx, groupID, uuid.Nil, afterItemID, nil)
	if err != nil {
		return nil, err
	}

	it := &models.ItemRow{
		ID:                  uuid.New(),
		GroupID:             groupID,
		ExerciseID:          exerciseID,
		Position:            position,
		FlatPosition:        ordering.Flat(groupKey, position),
		TargetSets:          p.TargetSets,
		TargetReps:          p.TargetReps,
		TargetWeightKg:      p.TargetWeightKg,
		RestSecondsOverride: p.RestSecondsOverride,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO template_items
		 (id, group_id, exercise_id, position, flat_position,
		  target_sets, target_reps, target_weight_kg, rest_seconds_override)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		it.ID, it.GroupID, it.ExerciseID, it.Position, it.FlatPosition,
		it.TargetSets, it.TargetReps, it.TargetWeightKg, it.RestSecondsOverride); err != nil {
		return nil, fmt.Errorf("inserting item: %w", err)
	}
	if err := touchTemplateOfGroup(ctx, tx, groupID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}
	return it, nil
}

// MoveItem re-keys an item relative to beforeItemID within targetGroupID;
// nil beforeItemID means "to the end of that group". Cross-group moves are
// allowed only within the same template.
func (db *DB) MoveItem(ctx context.Context, itemID, targetGroupID uuid.UUID, beforeItemID *uuid.UUID) error {
	if beforeItemID != nil && *beforeItemID == itemID {
		return fmt.Errorf("item %s relative to itself: %w", itemID, ErrInvalidMove)
	}
	// Two levels cannot cycle, but reject shape violations at the boundary.
	if targetGroupID == itemID {
		return fmt.Errorf("item %s as its own parent: %w", itemID, ErrInvalidMove)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var sourceTemplate uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT g.template_id
		 FROM template_items i JOIN template_groups g ON g.id = i.group_id
		 WHERE i.id = $1`, itemID).Scan(&sourceTemplate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
		}
		return fmt.Errorf("querying item: %w", err)
	}

	var targetTemplate uuid.UUID
	var targetGroupKey string
	err = tx.QueryRow(ctx,
		`SELECT template_id, position FROM template_groups WHERE id = $1`,
		targetGroupID).Scan(&targetTemplate, &targetGroupKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("target group %s: %w", targetGroupID, ErrNotFound)
		}
		return fmt.Errorf("querying target group: %w", err)
	}
	if targetTemplate != sourceTemplate {
		return fmt.Errorf("target group %s is in another template: %w", targetGroupID, ErrStructuralMismatch)
	}

	position, err := db.placeItem(ctx, tx, targetGroupID, itemID, nil, beforeItemID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE template_items SET group_id = $2, position = $3, flat_position = $4 WHERE id = $1`,
		itemID, targetGroupID, position, ordering.Flat(targetGroupKey, position)); err != nil {
		return fmt.Errorf("moving item: %w", err)
	}
	if err := touchTemplate(ctx, tx, sourceTemplate); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// DeleteItem removes one item. Siblings keep their keys.
func (db *DB) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM template_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// placeItem allocates a key within groupID, positioned after afterItemID or
// before beforeItemID (at most one is set; both nil appends to the end).
// excludeID keeps a moved row from bounding itself.
func (db *DB) placeItem(ctx context.Context, tx pgx.Tx, groupID, excludeID uuid.UUID, afterItemID, beforeItemID *uuid.UUID) (string, error) {
	var before, after string
	switch {
	case afterItemID != nil:
		if err := tx.QueryRow(ctx,
			`SELECT position FROM template_items WHERE id = $1 AND group_id = $2`,
			*afterItemID, groupID).Scan(&before); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", fmt.Errorf("after-item %s in group %s: %w", *afterItemID, groupID, ErrStructuralMismatch)
			}
			return "", fmt.Errorf("querying after-item: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MIN(position), '') FROM template_items
			 WHERE group_id = $1 AND position > $2 AND id <> $3`,
			groupID, before, excludeID).Scan(&after); err != nil {
			return "", fmt.Errorf("querying next item: %w", err)
		}
	case beforeItemID != nil:
		if err := tx.QueryRow(ctx,
			`SELECT position FROM template_items WHERE id = $1 AND group_id = $2`,
			*beforeItemID, groupID).Scan(&after); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", fmt.Errorf("before-item %s in group %s: %w", *beforeItemID, groupID, ErrStructuralMismatch)
			}
			return "", fmt.Errorf("querying before-item: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), '') FROM template_items
			 WHERE group_id = $1 AND position < $2 AND id <> $3`,
			groupID, after, excludeID).Scan(&before); err != nil {
			return "", fmt.Errorf("querying previous item: %w", err)
		}
	default:
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), '') FROM template_items
			 WHERE group_id = $1 AND id <> $2`,
			groupID, excludeID).Scan(&before); err != nil {
			return "", fmt.Errorf("querying last item: %w", err)
		}
	}

	key, err := ordering.Between(before, after)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ordering.ErrPrecisionExhausted) {
		return "", fmt.Errorf("allocating item key: %w", err)
	}

	if err := compactItems(ctx, tx, groupID); err != nil {
		return "", err
	}
	return db.placeItem(ctx, tx, groupID, excludeID, afterItemID, beforeItemID)
}

// compactItems renumbers one group's item list with evenly spaced keys,
// preserving relative order and re-deriving every flat key. Same temporary
// prefix trick as compactGroups.
func compactItems(ctx context.Context, tx pgx.Tx, groupID uuid.UUID) error {
	var groupKey string
	if err := tx.QueryRow(ctx,
		`SELECT position FROM template_groups WHERE id = $1`, groupID).Scan(&groupKey); err != nil {
		return fmt.Errorf("compacting items: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT id FROM template_items WHERE group_id = $1 ORDER BY position ASC`, groupID)
	if err != nil {
		return fmt.Errorf("compacting items: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return fmt.Errorf("compacting items: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE template_items SET position = '*' || position WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("compacting items: %w", err)
	}

	keys := ordering.Spread(len(ids))
	for i, id := range ids {
		if _, err := tx.Exec(ctx,
			`UPDATE template_items SET position = $2, flat_position = $3 WHERE id = $1`,
			id, keys[i], ordering.Flat(groupKey, keys[i])); err != nil {
			return fmt.Errorf("compacting items: %w", err)
		}
	}
	return nil
}

func touchTemplateOfGroup(ctx context.Context, tx pgx.Tx, groupID uuid.UUID) error {
	if _, err := tx.Exec(ctx,
		`UPDATE templates SET updated_at = now()
		 WHERE id = (SELECT template_id FROM template_groups WHERE id = $1)`, groupID); err != nil {
		return fmt.Errorf("touching template: %w", err)
	}
	return nil
}
