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

// InsertGroup appends a group to a template, or places it directly after
// afterGroupID when given. The display name defaults to the next unused
// letter. Allocation never renumbers siblings unless precision runs out, in
// which case the whole sibling list is compacted inside the transaction.
func (db *DB) InsertGroup(ctx context.Context, templateID uuid.UUID, afterGroupID *uuid.UUID, kind models.GroupKind, restSeconds int) (*models.GroupRow, error) {
	if kind == "" {
		kind = models.KindSingle
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("group kind %q: %w", kind, ErrInvalidMove)
	}
	if restSeconds <= 0 {
		restSeconds = 90
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM templates WHERE id = $1)`, templateID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking template: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
	}

	position, err := db.placeGroup(ctx, tx, templateID, uuid.Nil, afterGroupID)
	if err != nil {
		return nil, err
	}

	name, err := nextGroupLabel(ctx, tx, templateID)
	if err != nil {
		return nil, err
	}

	g := &models.GroupRow{
		ID:          uuid.New(),
		TemplateID:  templateID,
		Name:        name,
		Kind:        kind,
		RestSeconds: restSeconds,
		Position:    position,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO template_groups (id, template_id, name, kind, rest_seconds, position)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.TemplateID, g.Name, g.Kind, g.RestSeconds, g.Position); err != nil {
		return nil, fmt.Errorf("inserting group: %w", err)
	}
	if err := touchTemplate(ctx, tx, templateID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}
	return g, nil
}

// MoveGroup re-keys one group relative to beforeGroupID; nil means "to the
// end of the list". Items under the moved group get their flat keys
// re-derived in the same transaction.
func (db *DB) MoveGroup(ctx context.Context, groupID uuid.UUID, beforeGroupID *uuid.UUID) error {
	if beforeGroupID != nil && *beforeGroupID == groupID {
		return fmt.Errorf("group %s relative to itself: %w", groupID, ErrInvalidMove)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var templateID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT template_id FROM template_groups WHERE id = $1`, groupID).Scan(&templateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
		}
		return fmt.Errorf("querying group: %w", err)
	}

	position, err := db.placeGroupBefore(ctx, tx, templateID, groupID, beforeGroupID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE template_groups SET position = $2 WHERE id = $1`, groupID, position); err != nil {
		return fmt.Errorf("moving group: %w", err)
	}
	if err := refreshFlatKeys(ctx, tx, groupID, position); err != nil {
		return err
	}
	if err := touchTemplate(ctx, tx, templateID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// DeleteGroup removes a group and, via cascade, its items. Siblings keep
// their keys; deletion is gap-tolerant.
func (db *DB) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM template_groups WHERE id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	return nil
}

// placeGroup allocates a key after afterGroupID (or at the end when nil).
// excludeID is left out of neighbor lookups so a moved row never bounds
// itself.
func (db *DB) placeGroup(ctx context.Context, tx pgx.Tx, templateID, excludeID uuid.UUID, afterGroupID *uuid.UUID) (string, error) {
	var before, after string
	if afterGroupID != nil {
		if err := tx.QueryRow(ctx,
			`SELECT position FROM template_groups WHERE id = $1 AND template_id = $2`,
			*afterGroupID, templateID).Scan(&before); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", fmt.Errorf("after-group %s in template %s: %w", *afterGroupID, templateID, ErrStructuralMismatch)
			}
			return "", fmt.Errorf("querying after-group: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MIN(position), '') FROM template_groups
			 WHERE template_id = $1 AND position > $2 AND id <> $3`,
			templateID, before, excludeID).Scan(&after); err != nil {
			return "", fmt.Errorf("querying next sibling: %w", err)
		}
	} else {
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), '') FROM template_groups
			 WHERE template_id = $1 AND id <> $2`,
			templateID, excludeID).Scan(&before); err != nil {
			return "", fmt.Errorf("querying last sibling: %w", err)
		}
	}
	return db.allocateGroupKey(ctx, tx, templateID, excludeID, before, after, afterGroupID, nil)
}

// placeGroupBefore allocates a key before beforeGroupID (or at the end when
// nil), validating the sibling belongs to the same template.
func (db *DB) placeGroupBefore(ctx context.Context, tx pgx.Tx, templateID, movedID uuid.UUID, beforeGroupID *uuid.UUID) (string, error) {
	var before, after string
	if beforeGroupID != nil {
		if err := tx.QueryRow(ctx,
			`SELECT position FROM template_groups WHERE id = $1 AND template_id = $2`,
			*beforeGroupID, templateID).Scan(&after); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", fmt.Errorf("before-group %s in template %s: %w", *beforeGroupID, templateID, ErrStructuralMismatch)
			}
			return "", fmt.Errorf("querying before-group: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), '') FROM template_groups
			 WHERE template_id = $1 AND position < $2 AND id <> $3`,
			templateID, after, movedID).Scan(&before); err != nil {
			return "", fmt.Errorf("querying previous sibling: %w", err)
		}
	} else {
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), '') FROM template_groups
			 WHERE template_id = $1 AND id <> $2`,
			templateID, movedID).Scan(&before); err != nil {
			return "", fmt.Errorf("querying last sibling: %w", err)
		}
	}
	return db.allocateGroupKey(ctx, tx, templateID, movedID, before, after, nil, beforeGroupID)
}

// allocateGroupKey runs midpoint allocation and, on precision exhaustion,
// compacts the sibling list once and re-derives the neighbors before
// retrying. Compaction never escapes the store.
func (db *DB) allocateGroupKey(ctx context.Context, tx pgx.Tx, templateID, excludeID uuid.UUID, before, after string, afterID, beforeID *uuid.UUID) (string, error) {
	key, err := ordering.Between(before, after)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ordering.ErrPrecisionExhausted) {
		return "", fmt.Errorf("allocating group key: %w", err)
	}

	if err := compactGroups(ctx, tx, templateID); err != nil {
		return "", err
	}
	switch {
	case afterID != nil:
		return db.placeGroup(ctx, tx, templateID, excludeID, afterID)
	case beforeID != nil:
		return db.placeGroupBefore(ctx, tx, templateID, excludeID, beforeID)
	default:
		return db.placeGroup(ctx, tx, templateID, excludeID, nil)
	}
}

// compactGroups renumbers every group of a template with evenly spaced keys
// and rewrites dependent item flat keys. Relative order is preserved. The
// temporary '*' prefix sidesteps the immediate unique constraint while keys
// shuffle ('*' is not in the key alphabet, so no final key collides).
func compactGroups(ctx context.Context, tx pgx.Tx, templateID uuid.UUID) error {
	rows, err := tx.Query(ctx,
		`SELECT id FROM template_groups WHERE template_id = $1 ORDER BY position ASC`, templateID)
	if err != nil {
		return fmt.Errorf("compacting groups: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return fmt.Errorf("compacting groups: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE template_groups SET position = '*' || position WHERE template_id = $1`, templateID); err != nil {
		return fmt.Errorf("compacting groups: %w", err)
	}

	keys := ordering.Spread(len(ids))
	for i, id := range ids {
		if _, err := tx.Exec(ctx,
			`UPDATE template_groups SET position = $2 WHERE id = $1`, id, keys[i]); err != nil {
			return fmt.Errorf("compacting groups: %w", err)
		}
		if err := refreshFlatKeys(ctx, tx, id, keys[i]); err != nil {
			return err
		}
	}
	return nil
}

// refreshFlatKeys re-derives the flat key of every item under a group from
// the group's (new) key. Flat(g, i) is pure, so this is the only site that
// needs to run when a group key changes.
func refreshFlatKeys(ctx context.Context, tx pgx.Tx, groupID uuid.UUID, groupKey string) error {
	prefix := ordering.Flat(groupKey, "")
	if _, err := tx.Exec(ctx,
		`UPDATE template_items SET flat_position = $2 || position WHERE group_id = $1`,
		groupID, prefix); err != nil {
		return fmt.Errorf("refreshing flat keys: %w", err)
	}
	return nil
}

// nextGroupLabel picks a default display name for a new group.
func nextGroupLabel(ctx context.Context, tx pgx.Tx, templateID uuid.UUID) (string, error) {
	rows, err := tx.Query(ctx,
		`SELECT name FROM template_groups WHERE template_id = $1`, templateID)
	if err != nil {
		return "", fmt.Errorf("querying group names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("scanning group name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return nextLabel(names), nil
}

// nextLabel returns the first unused letter A..Z, falling back to "Group N"
// once the alphabet is spent.
func nextLabel(existing []string) string {
	used := make(map[string]bool, len(existing))
	for _, name := range existing {
		used[name] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		if !used[string(c)] {
			return string(c)
		}
	}
	return fmt.Sprintf("Group %d", len(existing)+1)
}

func touchTemplate(ctx context.Context, tx pgx.Tx, templateID uuid.UUID) error {
	if _, err := tx.Exec(ctx,
		`UPDATE templates SET updated_at = now() WHERE id = $1`, templateID); err != nil {
		return fmt.Errorf("touching template: %w", err)
	}
	return nil
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
