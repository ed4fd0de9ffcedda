package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meltforce/repstack/internal/storage"
)

func testServer() *Server {
	return New(nil, "test-key", slog.New(slog.DiscardHandler))
}

// TestWriteErrorMapping verifies that storage sentinel errors map to the
// right HTTP statuses: missing rows to 404, state conflicts to 409.
func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{storage.ErrSourceNotFound, http.StatusNotFound},
		{storage.ErrStructuralMismatch, http.StatusConflict},
		{storage.ErrInvalidMove, http.StatusConflict},
		{storage.ErrSessionFinished, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", storage.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", storage.ErrInvalidMove), http.StatusConflict},
		{fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	s := testServer()
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.writeError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("writeError(%v) = %d, want %d", tt.err, rec.Code, tt.want)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body["error"] == "" {
				t.Error("error body is empty")
			}
		})
	}
}

// TestInvalidUUIDIs400 verifies that malformed IDs in the path are rejected
// before any database access.
func TestInvalidUUIDIs400(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestWritesRequireAPIKey verifies every mutating route sits behind the API
// key middleware while reads stay open.
func TestWritesRequireAPIKey(t *testing.T) {
	s := testServer()

	writes := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/v1/templates"},
		{http.MethodPost, "/api/v1/exercises"},
		{http.MethodPost, "/api/v1/templates/00000000-0000-0000-0000-000000000001/groups"},
		{http.MethodPost, "/api/v1/groups/00000000-0000-0000-0000-000000000001/move"},
		{http.MethodPost, "/api/v1/items/00000000-0000-0000-0000-000000000001/move"},
		{http.MethodPost, "/api/v1/templates/00000000-0000-0000-0000-000000000001/start"},
		{http.MethodPost, "/api/v1/sessions/00000000-0000-0000-0000-000000000001/finish"},
		{http.MethodDelete, "/api/v1/groups/00000000-0000-0000-0000-000000000001"},
		{http.MethodDelete, "/api/v1/items/00000000-0000-0000-0000-000000000001"},
	}
	for _, w := range writes {
		req := httptest.NewRequest(w.method, w.path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without key = %d, want 401", w.method, w.path, rec.Code)
		}
	}
}

// TestBadRequestBodies verifies that missing required fields produce 400
// without touching the database (the server has a nil DB here).
func TestBadRequestBodies(t *testing.T) {
	s := testServer()

	tests := []struct {
		name, path, body string
	}{
		{"template without name", "/api/v1/templates", `{}`},
		{"exercise without name", "/api/v1/exercises", `{"muscle_group":"chest"}`},
		{"item without exercise", "/api/v1/groups/00000000-0000-0000-0000-000000000001/items", `{}`},
		{"move item without target", "/api/v1/items/00000000-0000-0000-0000-000000000001/move", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("X-API-Key", "test-key")
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}
