package mcp

import (
	"context"

	"github.com/google/uuid"
	"github.com/meltforce/repstack/internal/client"
	"github.com/meltforce/repstack/internal/models"
	"github.com/meltforce/repstack/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and *client.HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListExercises(ctx context.Context) ([]models.ExerciseRow, error)
	ListTemplates(ctx context.Context) ([]models.TemplateRow, error)
	GetTemplateTree(ctx context.Context, id uuid.UUID) (*models.TemplateTree, error)
	ListSessions(ctx context.Context, limit int) ([]models.SessionRow, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error)
	GetDataStats(ctx context.Context) (*storage.DataStats, error)
}

// Compile-time checks: both backends satisfy DataSource.
var (
	_ DataSource = (*storage.DB)(nil)
	_ DataSource = (*client.HTTPClient)(nil)
)
