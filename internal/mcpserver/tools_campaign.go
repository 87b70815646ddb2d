package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
	"github.com/mcrescenzo/task-crusader-mcp/internal/hints"
)

func (s Server) registerCampaignTools(m *server.MCPServer) {
	m.AddTool(mcp.NewTool("campaign_create",
		mcp.WithDescription("Create a new campaign. A campaign is a unit of work holding a graph of tasks."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Unique campaign name")),
		mcp.WithString("description", mcp.Description("What this campaign is about")),
		mcp.WithString("priority", mcp.Description("critical, high, medium or low"), mcp.Enum("critical", "high", "medium", "low")),
	), s.campaignCreate)

	m.AddTool(mcp.NewTool("campaign_list",
		mcp.WithDescription("List campaigns, optionally filtered by status."),
		mcp.WithString("status", mcp.Description("Filter: active, completed or archived"), mcp.Enum("active", "completed", "archived")),
	), s.campaignList)

	m.AddTool(mcp.NewTool("campaign_show",
		mcp.WithDescription("Show one campaign with its progress summary."),
		mcp.WithString("campaign_id", mcp.Required()),
	), s.campaignShow)

	m.AddTool(mcp.NewTool("campaign_update",
		mcp.WithDescription("Update campaign fields or move its status. Completing requires every task to be done or cancelled."),
		mcp.WithString("campaign_id", mcp.Required()),
		mcp.WithString("name"),
		mcp.WithString("description"),
		mcp.WithString("priority", mcp.Enum("critical", "high", "medium", "low")),
		mcp.WithString("status", mcp.Enum("active", "completed", "archived")),
	), s.campaignUpdate)

	m.AddTool(mcp.NewTool("campaign_delete",
		mcp.WithDescription("Delete a campaign and everything under it: tasks, dependencies and attachments."),
		mcp.WithString("campaign_id", mcp.Required()),
	), s.campaignDelete)

	m.AddTool(mcp.NewTool("campaign_get_progress_summary",
		mcp.WithDescription("Per-status task counts and percent complete for a campaign."),
		mcp.WithString("campaign_id", mcp.Required()),
	), s.campaignProgress)

	m.AddTool(mcp.NewTool("campaign_get_next_actionable_task",
		mcp.WithDescription("The single best task to start now: pending, all dependencies done, highest priority."),
		mcp.WithString("campaign_id", mcp.Required()),
	), s.campaignNextTask)

	m.AddTool(mcp.NewTool("campaign_get_all_actionable_tasks",
		mcp.WithDescription("Every task that can be started right now, ordered by priority then age."),
		mcp.WithString("campaign_id", mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Cap on returned tasks; defaults to the configured maximum")),
	), s.campaignActionableTasks)

	m.AddTool(mcp.NewTool("campaign_create_with_tasks",
		mcp.WithDescription("Create a campaign and its whole task graph atomically. Tasks reference each other by temp_id; the graph must be acyclic."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("description"),
		mcp.WithString("priority", mcp.Enum("critical", "high", "medium", "low")),
		mcp.WithArray("tasks", mcp.Required(), mcp.Description("Task list; each item needs temp_id and title, plus optional description, priority, depends_on (temp ids) and acceptance_criteria"), mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"temp_id":             map[string]any{"type": "string"},
				"title":               map[string]any{"type": "string"},
				"description":         map[string]any{"type": "string"},
				"priority":            map[string]any{"type": "string", "enum": []string{"critical", "high", "medium", "low"}},
				"depends_on":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"acceptance_criteria": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"temp_id", "title"},
		})),
	), s.campaignCreateWithTasks)

	m.AddTool(mcp.NewTool("campaign_research_add",
		mcp.WithDescription("Attach a research note to a campaign."),
		mcp.WithString("campaign_id", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
	), s.campaignResearchAdd)
}

func (s Server) campaignCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.Engine.CreateCampaign(ctx, engine.CampaignCreateOptions{
		Name:        name,
		Description: req.GetString("description", ""),
		Priority:    req.GetString("priority", ""),
		ActorID:     actorID,
	})
	if err != nil {
		return s.fail(err)
	}
	return s.ok(c, hints.CampaignCreated(c))
}

func (s Server) campaignList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cs, err := s.Engine.ListCampaigns(ctx, req.GetString("status", ""))
	if err != nil {
		return s.fail(err)
	}
	if cs == nil {
		cs = []domain.Campaign{}
	}
	return s.ok(cs, nil)
}

func (s Server) campaignShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("campaign_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.Engine.GetCampaign(ctx, id)
	if err != nil {
		return s.fail(err)
	}
	p, err := s.Engine.ProgressSummary(ctx, id)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(map[string]any{"campaign": c, "progress": p}, nil)
}

func (s Server) campaignUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("campaign_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := engine.CampaignUpdateOptions{ID: id, ActorID: actorID}
	args := req.GetArguments()
	if v, ok := args["name"].(string); ok {
		opts.Name = &v
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
	c, err := s.Engine.UpdateCampaign(ctx, opts)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(c, nil)
}

func (s Server) campaignDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("campaign_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.Engine.DeleteCampaign(ctx, id, actorID); err != nil {
		return s.fail(err)
	}
	return s.ok(map[string]any{"deleted": id}, nil)
}

func (s Server) campaignProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("campaign_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.Engine.ProgressSummary(ctx, id)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(p, nil)
}

func (s Server) campaignNextTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("campaign_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.Engine.NextActionableTask(ctx, id)
	if err != nil {
		return s.fail(err)
	}
	if t == nil {
		p, err := s.Engine.ProgressSummary(ctx, id)
		if err != nil {
			return s.fail(err)
		}
		return s.ok(map[string]any{"task": nil}, hints.NoActionable(p))
	}
	return s.ok(map[string]any{"task": t}, nil)
}

func (s Server) campaignActionableTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("campaign_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, err := s.Engine.AllActionableTasks(ctx, id)
	if err != nil {
		return s.fail(err)
	}
	limit := req.GetInt("limit", 0)
	if limit <= 0 && s.Config != nil {
		limit = s.Config.Defaults.MaxActionable
	}
	if limit > 0 && len(ts) > limit {
		ts = ts[:limit]
	}
	if ts == nil {
		ts = []domain.Task{}
	}
	return s.ok(ts, nil)
}

func (s Server) campaignCreateWithTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		Tasks       []struct {
			TempID             string   `json:"temp_id"`
			Title              string   `json:"title"`
			Description        string   `json:"description"`
			Priority           string   `json:"priority"`
			DependsOn          []string `json:"depends_on"`
			AcceptanceCriteria []string `json:"acceptance_criteria"`
		} `json:"tasks"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := engine.CampaignWithTasksOptions{
		Name:        args.Name,
		Description: args.Description,
		Priority:    args.Priority,
		ActorID:     actorID,
	}
	for _, t := range args.Tasks {
		opts.Tasks = append(opts.Tasks, engine.BulkTask{
			TempID:             t.TempID,
			Title:              t.Title,
			Description:        t.Description,
			Priority:           t.Priority,
			DependsOn:          t.DependsOn,
			AcceptanceCriteria: t.AcceptanceCriteria,
		})
	}
	res, err := s.Engine.CreateCampaignWithTasks(ctx, opts)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(map[string]any{
		"campaign":       res.Campaign,
		"tasks":          res.Tasks,
		"ids_by_temp_id": res.IDsByTempID,
	}, hints.CampaignCreated(res.Campaign))
}

func (s Server) campaignResearchAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("campaign_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.Engine.AddAttachment(ctx, engine.AttachmentAddOptions{
		Kind:       domain.KindResearchNote,
		CampaignID: id,
		Content:    content,
		ActorID:    actorID,
	})
	if err != nil {
		return s.fail(err)
	}
	return s.ok(m, nil)
}
