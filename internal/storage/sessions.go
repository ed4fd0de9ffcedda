package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meltforce/repstack/internal/models"
)

// snapshotGroup and snapshotItem are the template rows the copy reads.
type snapshotGroup struct {
	ID          uuid.UUID
	Name        string
	Kind        models.GroupKind
	RestSeconds int
	Position    string
}

type snapshotItem struct {
	GroupID             uuid.UUID
	ExerciseID          uuid.UUID
	ExerciseName        string
	Position            string
	FlatPosition        string
	TargetSets          int
	TargetReps          int
	TargetWeightKg      float64
	RestSecondsOverride *int
}

// planSnapshot maps template rows to session rows: every copied row gets a
// fresh id, items follow their group through the id map, effective rest is
// resolved exactly once, and the exercise name travels with the item. Input
// order is preserved on both sides.
func planSnapshot(sessionID uuid.UUID, groups []snapshotGroup, items []snapshotItem) ([]models.SessionGroupRow, []models.SessionItemRow) {
	type target struct {
		id      uuid.UUID
		restDef int
	}
	groupMap := make(map[uuid.UUID]target, len(groups))

	groupRows := make([]models.SessionGroupRow, 0, len(groups))
	for _, g := range groups {
		row := models.SessionGroupRow{
			ID:          uuid.New(),
			SessionID:   sessionID,
			Name:        g.Name,
			Kind:        g.Kind,
			RestSeconds: g.RestSeconds,
			Position:    g.Position,
		}
		groupMap[g.ID] = target{id: row.ID, restDef: g.RestSeconds}
		groupRows = append(groupRows, row)
	}

	itemRows := make([]models.SessionItemRow, 0, len(items))
	for _, it := range items {
		tgt, ok := groupMap[it.GroupID]
		if !ok {
			continue
		}
		exerciseID := it.ExerciseID
		itemRows = append(itemRows, models.SessionItemRow{
			ID:             uuid.New(),
			SessionGroupID: tgt.id,
			ExerciseID:     &exerciseID,
			ExerciseName:   it.ExerciseName,
			Position:       it.Position,
			FlatPosition:   it.FlatPosition,
			TargetSets:     it.TargetSets,
			TargetReps:     it.TargetReps,
			TargetWeightKg: it.TargetWeightKg,
			RestSeconds:    effectiveRest(it.RestSecondsOverride, tgt.restDef),
		})
	}
	return groupRows, itemRows
}

// snapshotWriteErr maps referential failures during the copy to
// ErrSourceNotFound. Under repeatable read the template can be deleted after
// the snapshot began; that surfaces at write time as a foreign-key violation
// (23503) or a serialization failure (40001), not as an empty read.
func snapshotWriteErr(err error, templateID uuid.UUID) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "40001") {
		return fmt.Errorf("template %s: %w", templateID, ErrSourceNotFound)
	}
	return err
}

// StartSession snapshots a template into a new immutable session tree.
//
// The whole copy runs in one repeatable-read transaction, so the template is
// observed at a single consistent point and readers never see a partial
// session. Each template group maps to a fresh session group through an
// explicit id map; items resolve their effective rest (override or group
// default) exactly once here, and the exercise name is denormalized so the
// session survives later library edits.
func (db *DB) StartSession(ctx context.Context, templateID uuid.UUID) (uuid.UUID, error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return uuid.Nil, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var templateName string
	err = tx.QueryRow(ctx,
		`SELECT name FROM templates WHERE id = $1`, templateID).Scan(&templateName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("template %s: %w", templateID, ErrSourceNotFound)
		}
		return uuid.Nil, fmt.Errorf("querying template: %w", err)
	}

	groupRows, err := tx.Query(ctx,
		`SELECT id, name, kind, rest_seconds, position
		 FROM template_groups
		 WHERE template_id = $1
		 ORDER BY position ASC`, templateID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("querying groups: %w", err)
	}

	var groups []snapshotGroup
	for groupRows.Next() {
		var g snapshotGroup
		if err := groupRows.Scan(&g.ID, &g.Name, &g.Kind, &g.RestSeconds, &g.Position); err != nil {
			groupRows.Close()
			return uuid.Nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, g)
	}
	groupRows.Close()
	if err := groupRows.Err(); err != nil {
		return uuid.Nil, err
	}

	itemRows, err := tx.Query(ctx,
		`SELECT i.group_id, i.exercise_id, e.name, i.position, i.flat_position,
		        i.target_sets, i.target_reps, i.target_weight_kg, i.rest_seconds_override
		 FROM template_items i
		 JOIN template_groups g ON g.id = i.group_id
		 JOIN exercises e ON e.id = i.exercise_id
		 WHERE g.template_id = $1
		 ORDER BY i.flat_position ASC`, templateID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("querying items: %w", err)
	}

	var items []snapshotItem
	for itemRows.Next() {
		var it snapshotItem
		if err := itemRows.Scan(&it.GroupID, &it.ExerciseID, &it.ExerciseName,
			&it.Position, &it.FlatPosition, &it.TargetSets, &it.TargetReps,
			&it.TargetWeightKg, &it.RestSecondsOverride); err != nil {
			itemRows.Close()
			return uuid.Nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return uuid.Nil, err
	}

	sessionID := uuid.New()
	sessionGroups, sessionItems := planSnapshot(sessionID, groups, items)

	// From here every write can trip over a concurrent template delete; map
	// those failures to the same typed error as an empty first read.
	if _, err := tx.Exec(ctx,
		`INSERT INTO sessions (id, template_id, name) VALUES ($1, $2, $3)`,
		sessionID, templateID, templateName); err != nil {
		return uuid.Nil, fmt.Errorf("inserting session: %w", snapshotWriteErr(err, templateID))
	}

	for _, g := range sessionGroups {
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_groups (id, session_id, name, kind, rest_seconds, position)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			g.ID, g.SessionID, g.Name, g.Kind, g.RestSeconds, g.Position); err != nil {
			return uuid.Nil, fmt.Errorf("inserting session group: %w", snapshotWriteErr(err, templateID))
		}
	}

	for _, it := range sessionItems {
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_items
			 (id, session_group_id, exercise_id, exercise_name, position, flat_position,
			  target_sets, target_reps, target_weight_kg, rest_seconds)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			it.ID, it.SessionGroupID, it.ExerciseID, it.ExerciseName, it.Position,
			it.FlatPosition, it.TargetSets, it.TargetReps, it.TargetWeightKg,
			it.RestSeconds); err != nil {
			return uuid.Nil, fmt.Errorf("inserting session item: %w", snapshotWriteErr(err, templateID))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("committing snapshot: %w", snapshotWriteErr(err, templateID))
	}
	return sessionID, nil
}

// LogSet appends one set to a session item. Sessions are append-only until
// finished; a finished session rejects further sets.
func (db *DB) LogSet(ctx context.Context, sessionItemID uuid.UUID, reps int, weightKg float64) (*models.SetRow, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var finished bool
	err = tx.QueryRow(ctx,
		`SELECT s.finished_at IS NOT NULL
		 FROM session_items i
		 JOIN session_groups g ON g.id = i.session_group_id
		 JOIN sessions s ON s.id = g.session_id
		 WHERE i.id = $1`, sessionItemID).Scan(&finished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session item %s: %w", sessionItemID, ErrNotFound)
		}
		return nil, fmt.Errorf("querying session item: %w", err)
	}
	if finished {
		return nil, fmt.Errorf("logging set: %w", ErrSessionFinished)
	}

	set := &models.SetRow{ID: uuid.New(), SessionItemID: sessionItemID, Reps: reps, WeightKg: weightKg}
	err = tx.QueryRow(ctx,
		`INSERT INTO session_sets (id, session_item_id, set_number, reps, weight_kg)
		 VALUES ($1, $2,
		         (SELECT COALESCE(MAX(set_number), 0) + 1 FROM session_sets WHERE session_item_id = $2),
		         $3, $4)
		 RETURNING set_number, logged_at`,
		set.ID, sessionItemID, reps, weightKg).Scan(&set.SetNumber, &set.LoggedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting set: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}
	return set, nil
}

// FinishSession marks a session read-only and recomputes its aggregate
// totals from the logged sets. Re-finishing recomputes totals but keeps the
// original finish time.
func (db *DB) FinishSession(ctx context.Context, sessionID uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE sessions SET
		   finished_at = COALESCE(finished_at, now()),
		   total_sets = agg.sets,
		   total_reps = agg.reps,
		   total_volume_kg = agg.volume
		 FROM (
		   SELECT COUNT(st.id) AS sets,
		          COALESCE(SUM(st.reps), 0) AS reps,
		          COALESCE(SUM(st.reps * st.weight_kg), 0) AS volume
		   FROM session_groups g
		   JOIN session_items i ON i.session_group_id = g.id
		   LEFT JOIN session_sets st ON st.session_item_id = i.id
		   WHERE g.session_id = $1
		 ) agg
		 WHERE sessions.id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// ListSessions returns session summaries, most recent first.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]models.SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, template_id, name, started_at, finished_at,
		        total_sets, total_reps, total_volume_kg
		 FROM sessions
		 ORDER BY started_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionRow
	for rows.Next() {
		var s models.SessionRow
		if err := rows.Scan(&s.ID, &s.TemplateID, &s.Name, &s.StartedAt, &s.FinishedAt,
			&s.TotalSets, &s.TotalReps, &s.TotalVolumeKg); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetSession reads one session's frozen tree plus all logged sets, items in
// flat-key order.
func (db *DB) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.SessionDetail, error) {
	detail := &models.SessionDetail{}
	err := db.Pool.QueryRow(ctx,
		`SELECT id, template_id, name, started_at, finished_at,
		        total_sets, total_reps, total_volume_kg
		 FROM sessions WHERE id = $1`, sessionID).Scan(
		&detail.ID, &detail.TemplateID, &detail.Name, &detail.StartedAt, &detail.FinishedAt,
		&detail.TotalSets, &detail.TotalReps, &detail.TotalVolumeKg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}

	groupRows, err := db.Pool.Query(ctx,
		`SELECT id, name, kind, rest_seconds, position
		 FROM session_groups
		 WHERE session_id = $1
		 ORDER BY position ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session groups: %w", err)
	}
	defer groupRows.Close()

	byGroup := make(map[uuid.UUID]int)
	for groupRows.Next() {
		var g models.SessionTreeGroup
		if err := groupRows.Scan(&g.ID, &g.Name, &g.Kind, &g.RestSeconds, &g.Position); err != nil {
			return nil, fmt.Errorf("scanning session group: %w", err)
		}
		g.Items = []models.SessionTreeItem{}
		byGroup[g.ID] = len(detail.Groups)
		detail.Groups = append(detail.Groups, g)
	}
	if err := groupRows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := db.Pool.Query(ctx,
		`SELECT i.id, i.session_group_id, i.exercise_id, i.exercise_name, i.position,
		        i.target_sets, i.target_reps, i.target_weight_kg, i.rest_seconds
		 FROM session_items i
		 JOIN session_groups g ON g.id = i.session_group_id
		 WHERE g.session_id = $1
		 ORDER BY i.flat_position ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session items: %w", err)
	}
	defer itemRows.Close()

	byItem := make(map[uuid.UUID][2]int)
	for itemRows.Next() {
		var (
			it      models.SessionTreeItem
			groupID uuid.UUID
		)
		if err := itemRows.Scan(&it.ID, &groupID, &it.ExerciseID, &it.ExerciseName, &it.Position,
			&it.TargetSets, &it.TargetReps, &it.TargetWeightKg, &it.RestSeconds); err != nil {
			return nil, fmt.Errorf("scanning session item: %w", err)
		}
		it.Sets = []models.SetEntry{}
		gi, ok := byGroup[groupID]
		if !ok {
			continue
		}
		byItem[it.ID] = [2]int{gi, len(detail.Groups[gi].Items)}
		detail.Groups[gi].Items = append(detail.Groups[gi].Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	setRows, err := db.Pool.Query(ctx,
		`SELECT st.id, st.session_item_id, st.set_number, st.reps, st.weight_kg, st.logged_at
		 FROM session_sets st
		 JOIN session_items i ON i.id = st.session_item_id
		 JOIN session_groups g ON g.id = i.session_group_id
		 WHERE g.session_id = $1
		 ORDER BY st.set_number ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var (
			se     models.SetEntry
			itemID uuid.UUID
		)
		if err := setRows.Scan(&se.ID, &itemID, &se.SetNumber, &se.Reps, &se.WeightKg, &se.LoggedAt); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		pos, ok := byItem[itemID]
		if !ok {
			continue
		}
		it := &detail.Groups[pos[0]].Items[pos[1]]
		it.Sets = append(it.Sets, se)
	}
	if err := setRows.Err(); err != nil {
		return nil, err
	}
	if detail.Groups == nil {
		detail.Groups = []models.SessionTreeGroup{}
	}
	return detail, nil
}
