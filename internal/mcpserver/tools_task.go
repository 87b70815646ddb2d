package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
	"github.com/mcrescenzo/task-crusader-mcp/internal/hints"
	"github.com/mcrescenzo/task-crusader-mcp/internal/repo"
)

func (s Server) registerTaskTools(m *server.MCPServer) {
	m.AddTool(mcp.NewTool("task_create",
		mcp.WithDescription("Create a task in a campaign. Dependencies must already exist in the same campaign and must not create a cycle."),
		mcp.WithString("campaign_id", mcp.Required()),
		mcp.WithString("title", mcp.Required()),
		mcp.WithString("description"),
		mcp.WithString("priority", mcp.Enum("critical", "high", "medium", "low")),
		mcp.WithArray("depends_on", mcp.Description("Task ids this task waits on"), mcp.Items(map[string]any{"type": "string"})),
	), s.taskCreate)

	m.AddTool(mcp.NewTool("task_list",
		mcp.WithDescription("List tasks in a campaign, optionally filtered by status or priority."),
		mcp.WithString("campaign_id", mcp.Required()),
		mcp.WithString("status", mcp.Enum("pending", "in-progress", "blocked", "done", "cancelled")),
		mcp.WithString("priority", mcp.Enum("critical", "high", "medium", "low")),
		mcp.WithNumber("limit"),
	), s.taskList)

	m.AddTool(mcp.NewTool("task_show",
		mcp.WithDescription("Show a task with its acceptance criteria, testing steps, research and implementation notes."),
		mcp.WithString("task_id", mcp.Required()),
	), s.taskShow)

	m.AddTool(mcp.NewTool("task_update",
		mcp.WithDescription("Update task fields, move its status, or edit its dependency list. done is only reachable from in-progress."),
		mcp.WithString("task_id", mcp.Required()),
		mcp.WithString("title"),
		mcp.WithString("description"),
		mcp.WithString("priority", mcp.Enum("critical", "high", "medium", "low")),
		mcp.WithString("status", mcp.Enum("pending", "in-progress", "blocked", "done", "cancelled")),
		mcp.WithArray("add_depends_on", mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("remove_depends_on", mcp.Items(map[string]any{"type": "string"})),
	), s.taskUpdate)

	m.AddTool(mcp.NewTool("task_delete",
		mcp.WithDescription("Delete a task. Other tasks that depended on it have the edge removed."),
		mcp.WithString("task_id", mcp.Required()),
	), s.taskDelete)

	m.AddTool(mcp.NewTool("task_complete",
		mcp.WithDescription("Mark an in-progress task done. Fails while any acceptance criterion is unmet; fix the criteria and retry."),
		mcp.WithString("task_id", mcp.Required()),
	), s.taskComplete)
}

func (s Server) taskCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	campaignID, err := req.RequireString("campaign_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.Engine.CreateTask(ctx, engine.TaskCreateOptions{
		CampaignID:  campaignID,
		Title:       title,
		Description: req.GetString("description", ""),
		Priority:    req.GetString("priority", ""),
		DependsOn:   req.GetStringSlice("depends_on", nil),
		ActorID:     actorID,
	})
	if err != nil {
		return s.fail(err)
	}
	return s.ok(t, hints.TaskCreated(t))
}

func (s Server) taskList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	campaignID, err := req.RequireString("campaign_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.Engine.GetCampaign(ctx, campaignID); err != nil {
		return s.fail(err)
	}
	ts, err := s.Engine.ListTasks(ctx, repo.TaskFilters{
		CampaignID: campaignID,
		Status:     req.GetString("status", ""),
		Priority:   req.GetString("priority", ""),
		Limit:      req.GetInt("limit", 0),
	})
	if err != nil {
		return s.fail(err)
	}
	if ts == nil {
		ts = []domain.Task{}
	}
	return s.ok(ts, nil)
}

func (s Server) taskShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.Engine.TaskDetails(ctx, id)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(d, nil)
}

func (s Server) taskUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := engine.TaskUpdateOptions{
		ID:              id,
		AddDependsOn:    req.GetStringSlice("add_depends_on", nil),
		RemoveDependsOn: req.GetStringSlice("remove_depends_on", nil),
		ActorID:         actorID,
	}
	args := req.GetArguments()
	if v, ok := args["title"].(string); ok {
		opts.Title = &v
	}
	if v, ok := args["description"].(string); ok {
		opts.Description = &v
	}
	if v, ok := args["priority"].(string); ok {
		opts.Priority = &v
	}
	if v, ok := args["status"].(string); ok {
		opts.Status = &v
	}
	t, err := s.Engine.UpdateTask(ctx, opts)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(t, nil)
}

func (s Server) taskDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.Engine.DeleteTask(ctx, id, actorID); err != nil {
		return s.fail(err)
	}
	return s.ok(map[string]any{"deleted": id}, nil)
}

func (s Server) taskComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.Engine.CompleteTask(ctx, id, actorID)
	if err != nil {
		return s.fail(err)
	}
	p, perr := s.Engine.ProgressSummary(ctx, t.CampaignID)
	if perr != nil {
		return s.ok(t, nil)
	}
	return s.ok(map[string]any{"task": t, "progress": p}, hints.TaskCompleted(p))
}
