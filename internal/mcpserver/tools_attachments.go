package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
)

func (s Server) registerAttachmentTools(m *server.MCPServer) {
	m.AddTool(mcp.NewTool("task_acceptance_criteria_add",
		mcp.WithDescription("Attach an acceptance criterion to a task. Criteria start unmet and gate task_complete."),
		mcp.WithString("task_id", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
	), s.addTaskAttachment(domain.KindAcceptanceCriterion))

	m.AddTool(mcp.NewTool("task_acceptance_criteria_mark_met",
		mcp.WithDescription("Mark an acceptance criterion as met."),
		mcp.WithString("criterion_id", mcp.Required()),
	), s.markCriterion(true))

	m.AddTool(mcp.NewTool("task_acceptance_criteria_mark_unmet",
		mcp.WithDescription("Mark an acceptance criterion as unmet again."),
		mcp.WithString("criterion_id", mcp.Required()),
	), s.markCriterion(false))

	m.AddTool(mcp.NewTool("task_testing_step_add",
		mcp.WithDescription("Attach a testing step to a task. Steps start with result unset."),
		mcp.WithString("task_id", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
	), s.addTaskAttachment(domain.KindTestingStep))

	m.AddTool(mcp.NewTool("task_testing_step_set_result",
		mcp.WithDescription("Record the outcome of a testing step."),
		mcp.WithString("step_id", mcp.Required()),
		mcp.WithString("result", mcp.Required(), mcp.Enum("passed", "failed", "skipped", "unset")),
	), s.stepSetResult)

	m.AddTool(mcp.NewTool("task_research_add",
		mcp.WithDescription("Attach a research note to a task."),
		mcp.WithString("task_id", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
	), s.addTaskAttachment(domain.KindResearchNote))

	m.AddTool(mcp.NewTool("task_implementation_notes_add",
		mcp.WithDescription("Attach an implementation note to a task."),
		mcp.WithString("task_id", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
	), s.addTaskAttachment(domain.KindImplementationNote))

	m.AddTool(mcp.NewTool("attachment_update",
		mcp.WithDescription("Replace the content of any attachment."),
		mcp.WithString("attachment_id", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
	), s.attachmentUpdate)

	m.AddTool(mcp.NewTool("attachment_delete",
		mcp.WithDescription("Delete an attachment."),
		mcp.WithString("attachment_id", mcp.Required()),
	), s.attachmentDelete)

	m.AddTool(mcp.NewTool("attachment_reorder",
		mcp.WithDescription("Rewrite the display order of one owner's attachments of one kind. ids must list every attachment exactly once."),
		mcp.WithString("task_id"),
		mcp.WithString("campaign_id"),
		mcp.WithString("kind", mcp.Required(), mcp.Enum("acceptance_criterion", "testing_step", "research_note", "implementation_note")),
		mcp.WithArray("ids", mcp.Required(), mcp.Items(map[string]any{"type": "string"})),
	), s.attachmentReorder)
}

func (s Server) addTaskAttachment(kind string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := req.RequireString("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		m, err := s.Engine.AddAttachment(ctx, engine.AttachmentAddOptions{
			Kind:    kind,
			TaskID:  taskID,
			Content: content,
			ActorID: actorID,
		})
		if err != nil {
			return s.fail(err)
		}
		return s.ok(m, nil)
	}
}

func (s Server) markCriterion(met bool) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("criterion_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var m domain.MemoryEntry
		if met {
			m, err = s.Engine.MarkCriterionMet(ctx, id, actorID)
		} else {
			m, err = s.Engine.MarkCriterionUnmet(ctx, id, actorID)
		}
		if err != nil {
			return s.fail(err)
		}
		return s.ok(m, nil)
	}
}

func (s Server) stepSetResult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("step_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := req.RequireString("result")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.Engine.SetTestingStepResult(ctx, id, result, actorID)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(m, nil)
}

func (s Server) attachmentUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("attachment_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.Engine.UpdateAttachment(ctx, id, content, actorID)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(m, nil)
}

func (s Server) attachmentDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("attachment_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.Engine.DeleteAttachment(ctx, id, actorID); err != nil {
		return s.fail(err)
	}
	return s.ok(map[string]any{"deleted": id}, nil)
}

func (s Server) attachmentReorder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	err = s.Engine.ReorderAttachments(ctx,
		req.GetString("task_id", ""),
		req.GetString("campaign_id", ""),
		kind,
		req.GetStringSlice("ids", nil),
		actorID,
	)
	if err != nil {
		return s.fail(err)
	}
	return s.ok(map[string]any{"reordered": true}, nil)
}
