package mcp

import (
	"context"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// requireUUID extracts and parses a required UUID tool parameter.
func requireUUID(req mcp.CallToolRequest, name string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(name + " parameter is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError("invalid " + name + ": " + err.Error())
	}
	return id, nil
}

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the exercise library: every exercise with its muscle group."),
)

var toolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription("List workout templates. Returns template id, name, and timestamps; use get_template_tree for the full structure."),
)

var toolGetTemplateTree = mcp.NewTool("get_template_tree",
	mcp.WithDescription("Get one template's full ordered structure: groups (straight sets, supersets, circuits) in display order, each with its exercises, target sets/reps/weight, and effective rest times."),
	mcp.WithString("template_id", mcp.Required(), mcp.Description("Template UUID (from list_templates)")),
)

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List past workout sessions, newest first. Returns session summaries with set counts and total volume."),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return. Defaults to 50.")),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Get one session's frozen workout structure and every logged set (reps, weight, timestamp)."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID (from list_sessions)")),
)

var toolGetTrainingTotals = mcp.NewTool("get_training_totals",
	mcp.WithDescription("Aggregate statistics: total exercises, templates, sessions, sets, lifetime volume in kg, and last session time."),
)

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercises, err := h.ds.ListExercises(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(exercises)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listTemplates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := h.ds.ListTemplates(ctx)
	if err != nil {
		h.log.Error("mcp list_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(templates)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTemplateTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireUUID(req, "template_id")
	if errResult != nil {
		return errResult, nil
	}

	tree, err := h.ds.GetTemplateTree(ctx, id)
	if err != nil {
		h.log.Error("mcp get_template_tree", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(tree)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)

	sessions, err := h.ds.ListSessions(ctx, limit)
	if err != nil {
		h.log.Error("mcp list_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireUUID(req, "session_id")
	if errResult != nil {
		return errResult, nil
	}

	detail, err := h.ds.GetSession(ctx, id)
	if err != nil {
		h.log.Error("mcp get_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(detail)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingTotals(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.GetDataStats(ctx)
	if err != nil {
		h.log.Error("mcp get_training_totals", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
