package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/events"
	"github.com/mcrescenzo/task-crusader-mcp/internal/repo"
)

// BulkTask is one task in a CreateCampaignWithTasks request. TempID is a
// caller-chosen handle; DependsOn references other tasks in the same request
// by their temp ids.
type BulkTask struct {
	TempID             string
	Title              string
	Description        string
	Priority           string
	DependsOn          []string
	AcceptanceCriteria []string
}

// CampaignWithTasksOptions describe a campaign plus its full initial task
// graph, created atomically.
type CampaignWithTasksOptions struct {
	Name        string
	Description string
	Priority    string
	Tasks       []BulkTask
	ActorID     string
}

// BulkCreateResult reports what was created. Tasks come back in dependency
// order and IDsByTempID maps the caller's temp ids to assigned ids.
type BulkCreateResult struct {
	Campaign    domain.Campaign
	Tasks       []domain.Task
	IDsByTempID map[string]string
}

// CreateCampaignWithTasks creates a campaign and its whole task graph in one
// transaction. The request is validated up front: temp ids must be unique,
// dependencies must reference temp ids from the same request, and the graph
// must be acyclic. Nothing is written when validation fails.
func (e Engine) CreateCampaignWithTasks(ctx context.Context, opts CampaignWithTasksOptions) (BulkCreateResult, error) {
	if opts.Name == "" {
		return BulkCreateResult{}, validationErr("campaign name is required", nil)
	}
	if opts.Priority == "" {
		opts.Priority = e.defaultPriority()
	}
	if !domain.ValidPriority(opts.Priority) {
		return BulkCreateResult{}, validationErr("unknown priority "+opts.Priority, map[string]any{"priority": opts.Priority})
	}
	if len(opts.Tasks) == 0 {
		return BulkCreateResult{}, validationErr("at least one task is required", nil)
	}

	tempIDs := make([]string, 0, len(opts.Tasks))
	byTemp := make(map[string]BulkTask, len(opts.Tasks))
	for _, bt := range opts.Tasks {
		if bt.TempID == "" {
			return BulkCreateResult{}, validationErr("every task needs a temp_id", nil)
		}
		if _, dup := byTemp[bt.TempID]; dup {
			return BulkCreateResult{}, validationErr("duplicate temp_id "+bt.TempID, map[string]any{"temp_id": bt.TempID})
		}
		if bt.Title == "" {
			return BulkCreateResult{}, validationErr("task "+bt.TempID+" needs a title", map[string]any{"temp_id": bt.TempID})
		}
		if bt.Priority != "" && !domain.ValidPriority(bt.Priority) {
			return BulkCreateResult{}, validationErr("unknown priority "+bt.Priority, map[string]any{"temp_id": bt.TempID, "priority": bt.Priority})
		}
		byTemp[bt.TempID] = bt
		tempIDs = append(tempIDs, bt.TempID)
	}
	deps := make(map[string][]string, len(opts.Tasks))
	for _, bt := range opts.Tasks {
		for _, dep := range bt.DependsOn {
			if dep == bt.TempID {
				return BulkCreateResult{}, validationErr("task "+bt.TempID+" cannot depend on itself", map[string]any{"temp_id": bt.TempID})
			}
			if _, known := byTemp[dep]; !known {
				return BulkCreateResult{}, validationErr("task "+bt.TempID+" depends on unknown temp_id "+dep, map[string]any{"temp_id": bt.TempID, "dependency": dep})
			}
		}
		deps[bt.TempID] = bt.DependsOn
	}
	if cycle := detectCycle(deps); cycle != nil {
		return BulkCreateResult{}, cycleErr(cycle)
	}
	// detectCycle already proved the graph acyclic.
	order, _ := topoOrder(tempIDs, deps)

	if _, err := e.Repo.GetCampaignByName(ctx, opts.Name); err == nil {
		return BulkCreateResult{}, validationErr("campaign name already in use: "+opts.Name, map[string]any{"name": opts.Name})
	} else if !errors.Is(err, repo.ErrNotFound) {
		return BulkCreateResult{}, storageErr("check campaign name", err)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return BulkCreateResult{}, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	ts := e.timestamp()
	c := domain.Campaign{
		ID:          uuid.NewString(),
		Name:        opts.Name,
		Description: opts.Description,
		Priority:    opts.Priority,
		Status:      domain.CampaignActive,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := e.Repo.InsertCampaign(ctx, tx, c); err != nil {
		return BulkCreateResult{}, storageErr("insert campaign", err)
	}
	if err := e.appendEvent(ctx, tx, "campaign.created", c.ID, "campaign", c.ID, opts.ActorID, events.EventPayload{"name": c.Name, "tasks": len(opts.Tasks)}); err != nil {
		return BulkCreateResult{}, storageErr("append event", err)
	}

	ids := make(map[string]string, len(opts.Tasks))
	for _, tempID := range order {
		ids[tempID] = uuid.NewString()
	}
	res := BulkCreateResult{Campaign: c, IDsByTempID: ids}
	for _, tempID := range order {
		bt := byTemp[tempID]
		priority := bt.Priority
		if priority == "" {
			priority = e.defaultPriority()
		}
		t := domain.Task{
			ID:          ids[tempID],
			CampaignID:  c.ID,
			Title:       bt.Title,
			Description: bt.Description,
			Priority:    priority,
			Status:      domain.TaskPending,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
		for _, dep := range bt.DependsOn {
			t.DependsOn = append(t.DependsOn, ids[dep])
		}
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return BulkCreateResult{}, storageErr("insert task", err)
		}
		if len(t.DependsOn) > 0 {
			if err := e.Repo.AddDependencies(ctx, tx, t.ID, t.DependsOn); err != nil {
				return BulkCreateResult{}, storageErr("insert dependencies", err)
			}
		}
		for i, content := range bt.AcceptanceCriteria {
			met := false
			m := domain.MemoryEntry{
				ID:         uuid.NewString(),
				Kind:       domain.KindAcceptanceCriterion,
				TaskID:     &t.ID,
				Content:    content,
				Met:        &met,
				OrderIndex: i,
				CreatedAt:  ts,
				UpdatedAt:  ts,
			}
			if err := e.Repo.InsertMemoryEntry(ctx, tx, m); err != nil {
				return BulkCreateResult{}, storageErr("insert acceptance criterion", err)
			}
		}
		if err := e.appendEvent(ctx, tx, "task.created", c.ID, "task", t.ID, opts.ActorID, events.EventPayload{"title": t.Title, "temp_id": tempID}); err != nil {
			return BulkCreateResult{}, storageErr("append event", err)
		}
		res.Tasks = append(res.Tasks, t)
	}
	if err := tx.Commit(); err != nil {
		return BulkCreateResult{}, storageErr("commit", err)
	}
	return res, nil
}
