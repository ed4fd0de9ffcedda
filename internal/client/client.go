// Package client is the programmatic client for the RepStack API: a thin
// REST wrapper, an optimistic tree cache that predicts mutations before the
// server confirms them, and an offline queue for logged sets.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/repstack/internal/models"
	"github.com/meltforce/repstack/internal/storage"
)

// Typed failures mapped from HTTP statuses.
var (
	// ErrNotFound maps 404: the referenced row no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrConflict maps 409: server state diverged from what the request
	// assumed (sibling vanished, finished session, invalid move). The
	// optimistic cache rolls back and resynchronizes on this.
	ErrConflict = errors.New("conflicting server state")
)

// HTTPClient talks to the RepStack REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// is sent on mutating requests.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("client: encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("client: %s: %s: %w", path, strings.TrimSpace(string(respBody)), ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("client: %s: %s: %w", path, strings.TrimSpace(string(respBody)), ErrConflict)
	case resp.StatusCode >= 300:
		return fmt.Errorf("client: %s returned %d: %s", path, resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("client: decode %s: %w", path, err)
		}
	}
	return nil
}

// ListExercises returns the exercise library.
func (c *HTTPClient) ListExercises(ctx context.Context) ([]models.ExerciseRow, error) {
	var out []models.ExerciseRow
	if err := c.do(ctx, http.MethodGet, "/api/v1/exercises", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateExercise adds an exercise to the library.
func (c *HTTPClient) CreateExercise(ctx context.Context, name, muscleGroup string) (*models.ExerciseRow, error) {
	var out models.ExerciseRow
	req := map[string]string{"name": name, "muscle_group": muscleGroup}
	if err := c.do(ctx, http.MethodPost, "/api/v1/exercises", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTemplates returns template summaries.
func (c *HTTPClient) ListTemplates(ctx context.Context) ([]models.TemplateRow, error) {
	var out []models.TemplateRow
	if err := c.do(ctx, http.MethodGet, "/api/v1/templates", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTemplate creates an empty template.
func (c *HTTPClient) CreateTemplate(ctx context.Context, name string) (*models.TemplateRow, error) {
	var out models.TemplateRow
	if err := c.do(ctx, http.MethodPost, "/api/v1/templates", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTemplateTree fetches the full ordered tree for one template.
func (c *HTTPClient) GetTemplateTree(ctx context.Context, id uuid.UUID) (*models.TemplateTree, error) {
	var out models.TemplateTree
	if err := c.do(ctx, http.MethodGet, "/api/v1/templates/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InsertGroup appends a group (or places it after afterGroupID).
func (c *HTTPClient) InsertGroup(ctx context.Context, templateID uuid.UUID, afterGroupID *uuid.UUID, kind models.GroupKind, restSeconds int) error {
	req := map[string]any{"kind": kind, "rest_seconds": restSeconds}
	if afterGroupID != nil {
		req["after_group_id"] = *afterGroupID
	}
	return c.do(ctx, http.MethodPost, "/api/v1/templates/"+templateID.String()+"/groups", req, nil)
}

// MoveGroup re-positions a group; nil beforeGroupID means "to the end".
func (c *HTTPClient) MoveGroup(ctx context.Context, groupID uuid.UUID, beforeGroupID *uuid.UUID) error {
	req := map[string]any{}
	if beforeGroupID != nil {
		req["before_group_id"] = *beforeGroupID
	}
	return c.do(ctx, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/move", req, nil)
}

// ItemTargets carries the per-item targets sent when inserting an item.
type ItemTargets struct {
	Sets                int        `json:"target_sets"`
	Reps                int        `json:"target_reps"`
	WeightKg            float64    `json:"target_weight_kg"`
	RestSecondsOverride *int       `json:"rest_seconds_override,omitempty"`
	ExerciseID          uuid.UUID  `json:"exercise_id"`
	AfterItemID         *uuid.UUID `json:"after_item_id,omitempty"`
}

// InsertItem appends an item to a group (or places it after t.AfterItemID).
func (c *HTTPClient) InsertItem(ctx context.Context, groupID uuid.UUID, t ItemTargets) error {
	return c.do(ctx, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/items", t, nil)
}

// MoveItem re-positions an item within targetGroupID; nil beforeItemID means
// "to the end of that group".
func (c *HTTPClient) MoveItem(ctx context.Context, itemID, targetGroupID uuid.UUID, beforeItemID *uuid.UUID) error {
	req := map[string]any{"target_group_id": targetGroupID}
	if beforeItemID != nil {
		req["before_item_id"] = *beforeItemID
	}
	return c.do(ctx, http.MethodPost, "/api/v1/items/"+itemID.String()+"/move", req, nil)
}

// StartSession snapshots a template into a new session.
func (c *HTTPClient) StartSession(ctx context.Context, templateID uuid.UUID) (uuid.UUID, error) {
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/templates/"+templateID.String()+"/start", map[string]any{}, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

// LogSet appends a set to a session item.
func (c *HTTPClient) LogSet(ctx context.Context, sessionItemID uuid.UUID, reps int, weightKg float64) (*models.SetRow, error) {
	var out models.SetRow
	req := map[string]any{"reps": reps, "weight_kg": weightKg}
	if err := c.do(ctx, http.MethodPost, "/api/v1/session-items/"+sessionItemID.String()+"/sets", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FinishSession marks a session read-only and recomputes totals.
func (c *HTTPClient) FinishSession(ctx context.Context, sessionID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/finish", map[string]any{}, nil)
}

// ListSessions returns recent session summaries.
func (c *HTTPClient) ListSessions(ctx context.Context, limit int) ([]models.SessionRow, error) {
	path := "/api/v1/sessions"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out []models.SessionRow
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDataStats fetches aggregate statistics for the stored data.
func (c *HTTPClient) GetDataStats(ctx context.Context) (*storage.DataStats, error) {
	var out storage.DataStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches one session's frozen tree and logged sets.
func (c *HTTPClient) GetSession(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	var out models.SessionDetail
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
