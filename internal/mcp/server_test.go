package mcp

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/repstack/internal/models"
	"github.com/meltforce/repstack/internal/storage"
)

// fakeSource returns canned data for handler tests.
type fakeSource struct {
	templates []models.TemplateRow
	tree      *models.TemplateTree
	err       error
}

func (f *fakeSource) ListExercises(ctx context.Context) ([]models.ExerciseRow, error) {
	return nil, f.err
}

func (f *fakeSource) ListTemplates(ctx context.Context) ([]models.TemplateRow, error) {
	return f.templates, f.err
}

func (f *fakeSource) GetTemplateTree(ctx context.Context, id uuid.UUID) (*models.TemplateTree, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tree, nil
}

func (f *fakeSource) ListSessions(ctx context.Context, limit int) ([]models.SessionRow, error) {
	return nil, f.err
}

func (f *fakeSource) GetSession(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	return nil, f.err
}

func (f *fakeSource) GetDataStats(ctx context.Context) (*storage.DataStats, error) {
	return &storage.DataStats{}, f.err
}

func testHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, log: slog.New(slog.DiscardHandler)}
}

func callWith(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// TestListTemplates verifies the tool returns data without error.
func TestListTemplates(t *testing.T) {
	h := testHandlers(&fakeSource{
		templates: []models.TemplateRow{{ID: uuid.New(), Name: "Push Day"}},
	})

	result, err := h.listTemplates(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
}

// TestGetTemplateTreeInvalidID verifies a malformed UUID produces a tool
// error, not a query.
func TestGetTemplateTreeInvalidID(t *testing.T) {
	h := testHandlers(&fakeSource{})

	result, err := h.getTemplateTree(context.Background(), callWith(map[string]any{
		"template_id": "not-a-uuid",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for malformed uuid")
	}
}

// TestGetTemplateTreeMissingID verifies the required parameter is enforced.
func TestGetTemplateTreeMissingID(t *testing.T) {
	h := testHandlers(&fakeSource{})

	result, err := h.getTemplateTree(context.Background(), callWith(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing template_id")
	}
}

// TestQueryFailureSurfacesAsToolError verifies a data-layer failure is
// reported to the model as a tool error rather than a protocol error.
func TestQueryFailureSurfacesAsToolError(t *testing.T) {
	h := testHandlers(&fakeSource{err: errors.New("connection refused")})

	result, err := h.listSessions(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for data-layer failure")
	}
}
