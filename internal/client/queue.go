package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SetQueue stores sets logged while the server was unreachable, so a
// session in a basement gym still gets its history. Flush drains it once
// connectivity returns.
type SetQueue struct {
	db *sql.DB
}

// PendingSet is one queued set.
type PendingSet struct {
	ID            int64
	SessionItemID uuid.UUID
	Reps          int
	WeightKg      float64
	QueuedAt      time.Time
}

// OpenSetQueue opens (or creates) the SQLite queue database at dir/queue.db.
func OpenSetQueue(dir string) (*SetQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating queue dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening queue db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pending_sets (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		session_item_id TEXT NOT NULL,
		reps            INTEGER NOT NULL,
		weight_kg       REAL NOT NULL,
		queued_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating queue table: %w", err)
	}

	return &SetQueue{db: db}, nil
}

// Enqueue records a set for later delivery.
func (q *SetQueue) Enqueue(sessionItemID uuid.UUID, reps int, weightKg float64) error {
	_, err := q.db.Exec(
		`INSERT INTO pending_sets (session_item_id, reps, weight_kg) VALUES (?, ?, ?)`,
		sessionItemID.String(), reps, weightKg,
	)
	return err
}

// Pending returns all queued sets, oldest first.
func (q *SetQueue) Pending() ([]PendingSet, error) {
	rows, err := q.db.Query(
		`SELECT id, session_item_id, reps, weight_kg, queued_at FROM pending_sets ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PendingSet
	for rows.Next() {
		var (
			p     PendingSet
			idStr string
		)
		if err := rows.Scan(&p.ID, &idStr, &p.Reps, &p.WeightKg, &p.QueuedAt); err != nil {
			return nil, err
		}
		p.SessionItemID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("queued set %d: %w", p.ID, err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Flush delivers queued sets in order, deleting each on success. It stops at
// the first network failure (to preserve order) but skips entries the server
// permanently rejects, e.g. sets against a finished session. Returns the
// number delivered.
func (q *SetQueue) Flush(ctx context.Context, api *HTTPClient) (int, error) {
	pending, err := q.Pending()
	if err != nil {
		return 0, fmt.Errorf("reading queue: %w", err)
	}

	sent := 0
	for _, p := range pending {
		_, err := api.LogSet(ctx, p.SessionItemID, p.Reps, p.WeightKg)
		if err != nil {
			if isPermanent(err) {
				if _, derr := q.db.Exec(`DELETE FROM pending_sets WHERE id = ?`, p.ID); derr != nil {
					return sent, derr
				}
				continue
			}
			return sent, fmt.Errorf("delivering set %d: %w", p.ID, err)
		}
		if _, err := q.db.Exec(`DELETE FROM pending_sets WHERE id = ?`, p.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// isPermanent reports whether retrying could ever succeed.
func isPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}

// Close closes the queue database.
func (q *SetQueue) Close() error {
	return q.db.Close()
}
