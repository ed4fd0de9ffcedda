package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/repstack/internal/models"
)

// CreateTemplate creates an empty template.
func (db *DB) CreateTemplate(ctx context.Context, name string) (*models.TemplateRow, error) {
	row := db.Pool.QueryRow(ctx,
		`INSERT INTO templates (id, name)
		 VALUES ($1, $2)
		 RETURNING id, name, created_at, updated_at`,
		uuid.New(), name)

	var t models.TemplateRow
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("inserting template: %w", err)
	}
	return &t, nil
}

// ListTemplates returns all templates, most recently updated first.
func (db *DB) ListTemplates(ctx context.Context) ([]models.TemplateRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, created_at, updated_at FROM templates ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var result []models.TemplateRow
	for rows.Next() {
		var t models.TemplateRow
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// RenameTemplate changes a template's display name.
func (db *DB) RenameTemplate(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE templates SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("renaming template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteTemplate removes a template; groups and items cascade.
func (db *DB) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetTemplateTree reads a full template: groups in position order, items in
// flat-key order fetched with a single ORDER BY (no two-level sort), and
// rest already resolved for display.
func (db *DB) GetTemplateTree(ctx context.Context, id uuid.UUID) (*models.TemplateTree, error) {
	tree := &models.TemplateTree{ID: id}
	err := db.Pool.QueryRow(ctx,
		`SELECT name FROM templates WHERE id = $1`, id).Scan(&tree.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("querying template: %w", err)
	}

	groupRows, err := db.Pool.Query(ctx,
		`SELECT id, name, kind, rest_seconds, position
		 FROM template_groups
		 WHERE template_id = $1
		 ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer groupRows.Close()

	byGroup := make(map[uuid.UUID]int)
	restDefaults := make(map[uuid.UUID]int)
	for groupRows.Next() {
		var g models.TreeGroup
		if err := groupRows.Scan(&g.ID, &g.Name, &g.Kind, &g.RestSeconds, &g.Position); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		g.Items = []models.TreeItem{}
		byGroup[g.ID] = len(tree.Groups)
		restDefaults[g.ID] = g.RestSeconds
		tree.Groups = append(tree.Groups, g)
	}
	if err := groupRows.Err(); err != nil {
		return nil, err
	}

	// Flat-key order across the whole tree; items land in their groups in
	// the right relative order because the flat key is monotonic in both
	// the group key and the item key.
	itemRows, err := db.Pool.Query(ctx,
		`SELECT i.id, i.group_id, i.exercise_id, e.name, i.position,
		        i.target_sets, i.target_reps, i.target_weight_kg, i.rest_seconds_override
		 FROM template_items i
		 JOIN template_groups g ON g.id = i.group_id
		 JOIN exercises e ON e.id = i.exercise_id
		 WHERE g.template_id = $1
		 ORDER BY i.flat_position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			it       models.TreeItem
			groupID  uuid.UUID
			override *int
		)
		if err := itemRows.Scan(&it.ID, &groupID, &it.ExerciseID, &it.ExerciseName, &it.Position,
			&it.TargetSets, &it.TargetReps, &it.TargetWeightKg, &override); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		gi, ok := byGroup[groupID]
		if !ok {
			continue
		}
		it.RestSecondsEffective = effectiveRest(override, restDefaults[groupID])
		tree.Groups[gi].Items = append(tree.Groups[gi].Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	if tree.Groups == nil {
		tree.Groups = []models.TreeGroup{}
	}
	return tree, nil
}

// effectiveRest collapses an (override, default) pair into one value.
func effectiveRest(override *int, groupDefault int) int {
	if override != nil {
		return *override
	}
	return groupDefault
}
