package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mcrescenzo/task-crusader-mcp/internal/config"
	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/events"
	"github.com/mcrescenzo/task-crusader-mcp/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, campaignID, entityKind, entityID, actorID string, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.Now
	}
	return w.Append(ctx, tx, evtType, campaignID, entityKind, entityID, actorID, payload)
}

func (e Engine) wrapRepoErr(kind, id string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return notFoundErr(kind, id)
	}
	return storageErr("load "+kind, err)
}

func (e Engine) defaultPriority() string {
	if e.Config != nil && e.Config.Defaults.Priority != "" {
		return e.Config.Defaults.Priority
	}
	return domain.PriorityMedium
}

// CampaignCreateOptions are parameters for creating a campaign.
type CampaignCreateOptions struct {
	ID          string
	Name        string
	Description string
	Priority    string
	ActorID     string
}

func (e Engine) CreateCampaign(ctx context.Context, opts CampaignCreateOptions) (domain.Campaign, error) {
	if opts.Name == "" {
		return domain.Campaign{}, validationErr("campaign name is required", nil)
	}
	if opts.Priority == "" {
		opts.Priority = e.defaultPriority()
	}
	if !domain.ValidPriority(opts.Priority) {
		return domain.Campaign{}, validationErr("unknown priority "+opts.Priority, map[string]any{"priority": opts.Priority})
	}
	if _, err := e.Repo.GetCampaignByName(ctx, opts.Name); err == nil {
		return domain.Campaign{}, validationErr("campaign name already in use: "+opts.Name, map[string]any{"name": opts.Name})
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Campaign{}, storageErr("check campaign name", err)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Campaign{}, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	ts := e.timestamp()
	c := domain.Campaign{
		ID:          opts.ID,
		Name:        opts.Name,
		Description: opts.Description,
		Priority:    opts.Priority,
		Status:      domain.CampaignActive,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := e.Repo.InsertCampaign(ctx, tx, c); err != nil {
		return domain.Campaign{}, storageErr("insert campaign", err)
	}
	if err := e.appendEvent(ctx, tx, "campaign.created", c.ID, "campaign", c.ID, opts.ActorID, events.EventPayload{"name": c.Name, "priority": c.Priority}); err != nil {
		return domain.Campaign{}, storageErr("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Campaign{}, storageErr("commit", err)
	}
	return c, nil
}

func (e Engine) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	c, err := e.Repo.GetCampaign(ctx, id)
	if err != nil {
		return domain.Campaign{}, e.wrapRepoErr("campaign", id, err)
	}
	return c, nil
}

func (e Engine) GetCampaignByName(ctx context.Context, name string) (domain.Campaign, error) {
	c, err := e.Repo.GetCampaignByName(ctx, name)
	if err != nil {
		return domain.Campaign{}, e.wrapRepoErr("campaign", name, err)
	}
	return c, nil
}

func (e Engine) ListCampaigns(ctx context.Context, status string) ([]domain.Campaign, error) {
	if status != "" {
		switch status {
		case domain.CampaignActive, domain.CampaignCompleted, domain.CampaignArchived:
		default:
			return nil, validationErr("unknown campaign status "+status, map[string]any{"status": status})
		}
	}
	cs, err := e.Repo.ListCampaigns(ctx, status)
	if err != nil {
		return nil, storageErr("list campaigns", err)
	}
	return cs, nil
}

// CampaignUpdateOptions carry a partial update; nil fields are left alone.
type CampaignUpdateOptions struct {
	ID          string
	Name        *string
	Description *string
	Priority    *string
	Status      *string
	ActorID     string
}

func (e Engine) UpdateCampaign(ctx context.Context, opts CampaignUpdateOptions) (domain.Campaign, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Campaign{}, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCampaignTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Campaign{}, e.wrapRepoErr("campaign", opts.ID, err)
	}
	payload := events.EventPayload{}
	if opts.Name != nil && *opts.Name != c.Name {
		if *opts.Name == "" {
			return domain.Campaign{}, validationErr("campaign name is required", nil)
		}
		if _, err := e.Repo.GetCampaignByName(ctx, *opts.Name); err == nil {
			return domain.Campaign{}, validationErr("campaign name already in use: "+*opts.Name, map[string]any{"name": *opts.Name})
		} else if !errors.Is(err, repo.ErrNotFound) {
			return domain.Campaign{}, storageErr("check campaign name", err)
		}
		payload["name"] = *opts.Name
		c.Name = *opts.Name
	}
	if opts.Description != nil {
		c.Description = *opts.Description
		payload["description"] = *opts.Description
	}
	if opts.Priority != nil {
		if !domain.ValidPriority(*opts.Priority) {
			return domain.Campaign{}, validationErr("unknown priority "+*opts.Priority, map[string]any{"priority": *opts.Priority})
		}
		c.Priority = *opts.Priority
		payload["priority"] = *opts.Priority
	}
	if opts.Status != nil && *opts.Status != c.Status {
		if err := ensureCampaignTransition(c.Status, *opts.Status); err != nil {
			return domain.Campaign{}, err
		}
		if *opts.Status == domain.CampaignCompleted {
			open, err := e.openTaskCountTx(ctx, tx, c.ID)
			if err != nil {
				return domain.Campaign{}, err
			}
			if open > 0 {
				return domain.Campaign{}, validationErr("cannot complete campaign with open tasks", map[string]any{"campaign_id": c.ID, "open_tasks": open})
			}
			ts := e.timestamp()
			c.CompletedAt = &ts
		}
		payload["from"] = c.Status
		payload["to"] = *opts.Status
		c.Status = *opts.Status
	}
	c.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateCampaign(ctx, tx, c); err != nil {
		return domain.Campaign{}, storageErr("update campaign", err)
	}
	if err := e.appendEvent(ctx, tx, "campaign.updated", c.ID, "campaign", c.ID, opts.ActorID, payload); err != nil {
		return domain.Campaign{}, storageErr("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Campaign{}, storageErr("commit", err)
	}
	return c, nil
}

func (e Engine) openTaskCountTx(ctx context.Context, tx *sql.Tx, campaignID string) (int, error) {
	tasks, err := e.Repo.ListCampaignTasksTx(ctx, tx, campaignID)
	if err != nil {
		return 0, storageErr("list campaign tasks", err)
	}
	open := 0
	for _, t := range tasks {
		if !domain.TerminalTaskStatus(t.Status) {
			open++
		}
	}
	return open, nil
}

// DeleteCampaign removes the campaign and everything under it. Tasks,
// dependency edges and attachments go with it through foreign keys.
func (e Engine) DeleteCampaign(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCampaignTx(ctx, tx, id)
	if err != nil {
		return e.wrapRepoErr("campaign", id, err)
	}
	if err := e.Repo.DeleteCampaign(ctx, tx, id); err != nil {
		return storageErr("delete campaign", err)
	}
	if err := e.appendEvent(ctx, tx, "campaign.deleted", id, "campaign", id, actorID, events.EventPayload{"name": c.Name}); err != nil {
		return storageErr("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          string
	CampaignID  string
	Title       string
	Description string
	Priority    string
	DependsOn   []string
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, validationErr("task title is required", nil)
	}
	if opts.Priority == "" {
		opts.Priority = e.defaultPriority()
	}
	if !domain.ValidPriority(opts.Priority) {
		return domain.Task{}, validationErr("unknown priority "+opts.Priority, map[string]any{"priority": opts.Priority})
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCampaignTx(ctx, tx, opts.CampaignID)
	if err != nil {
		return domain.Task{}, e.wrapRepoErr("campaign", opts.CampaignID, err)
	}
	if c.Status != domain.CampaignActive {
		return domain.Task{}, validationErr("campaign "+c.ID+" is not active", map[string]any{"campaign_id": c.ID, "status": c.Status})
	}
	if len(opts.DependsOn) > 0 {
		tasks, err := e.Repo.ListCampaignTasksTx(ctx, tx, opts.CampaignID)
		if err != nil {
			return domain.Task{}, storageErr("list campaign tasks", err)
		}
		if err := validateDependencyEdges(opts.ID, opts.CampaignID, opts.DependsOn, tasks); err != nil {
			return domain.Task{}, err
		}
	}

	ts := e.timestamp()
	t := domain.Task{
		ID:          opts.ID,
		CampaignID:  opts.CampaignID,
		Title:       opts.Title,
		Description: opts.Description,
		Priority:    opts.Priority,
		Status:      domain.TaskPending,
		DependsOn:   opts.DependsOn,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, storageErr("insert task", err)
	}
	if len(t.DependsOn) > 0 {
		if err := e.Repo.AddDependencies(ctx, tx, t.ID, t.DependsOn); err != nil {
			return domain.Task{}, storageErr("insert dependencies", err)
		}
	}
	if err := e.appendEvent(ctx, tx, "task.created", t.CampaignID, "task", t.ID, opts.ActorID, events.EventPayload{"title": t.Title, "priority": t.Priority, "depends_on": t.DependsOn}); err != nil {
		return domain.Task{}, storageErr("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, storageErr("commit", err)
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, e.wrapRepoErr("task", id, err)
	}
	return t, nil
}

func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	ts, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return nil, storageErr("list tasks", err)
	}
	return ts, nil
}

// TaskDetails loads a task with all of its attachments grouped by kind.
func (e Engine) TaskDetails(ctx context.Context, id string) (domain.TaskDetails, error) {
	t, err := e.GetTask(ctx, id)
	if err != nil {
		return domain.TaskDetails{}, err
	}
	d := domain.TaskDetails{Task: t}
	for _, g := range []struct {
		kind string
		dst  *[]domain.MemoryEntry
	}{
		{domain.KindAcceptanceCriterion, &d.AcceptanceCriteria},
		{domain.KindTestingStep, &d.TestingSteps},
		{domain.KindResearchNote, &d.ResearchNotes},
		{domain.KindImplementationNote, &d.ImplementationNotes},
	} {
		entries, err := e.Repo.ListTaskMemory(ctx, id, g.kind)
		if err != nil {
			return domain.TaskDetails{}, storageErr("list attachments", err)
		}
		*g.dst = entries
	}
	return d, nil
}

// TaskUpdateOptions carry a partial task update; nil fields are left alone.
// Dependency edits are validated against the whole campaign graph before any
// write lands.
type TaskUpdateOptions struct {
	ID              string
	Title           *string
	Description     *string
	Priority        *string
	Status          *string
	AddDependsOn    []string
	RemoveDependsOn []string
	ActorID         string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Task{}, e.wrapRepoErr("task", opts.ID, err)
	}
	payload := events.EventPayload{}
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Task{}, validationErr("task title is required", nil)
		}
		t.Title = *opts.Title
		payload["title"] = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
		payload["description"] = *opts.Description
	}
	if opts.Priority != nil {
		if !domain.ValidPriority(*opts.Priority) {
			return domain.Task{}, validationErr("unknown priority "+*opts.Priority, map[string]any{"priority": *opts.Priority})
		}
		t.Priority = *opts.Priority
		payload["priority"] = *opts.Priority
	}
	if len(opts.AddDependsOn) > 0 {
		tasks, err := e.Repo.ListCampaignTasksTx(ctx, tx, t.CampaignID)
		if err != nil {
			return domain.Task{}, storageErr("list campaign tasks", err)
		}
		if err := validateDependencyEdges(t.ID, t.CampaignID, opts.AddDependsOn, tasks); err != nil {
			return domain.Task{}, err
		}
		if err := e.Repo.AddDependencies(ctx, tx, t.ID, opts.AddDependsOn); err != nil {
			return domain.Task{}, storageErr("insert dependencies", err)
		}
		payload["add_depends_on"] = opts.AddDependsOn
	}
	if len(opts.RemoveDependsOn) > 0 {
		if err := e.Repo.RemoveDependencies(ctx, tx, t.ID, opts.RemoveDependsOn); err != nil {
			return domain.Task{}, storageErr("remove dependencies", err)
		}
		payload["remove_depends_on"] = opts.RemoveDependsOn
	}
	if opts.Status != nil && *opts.Status != t.Status {
		if err := ensureTaskTransition(t.Status, *opts.Status); err != nil {
			return domain.Task{}, err
		}
		if *opts.Status == domain.TaskDone {
			if err := e.ensureCriteriaMetTx(ctx, tx, t.ID); err != nil {
				return domain.Task{}, err
			}
			ts := e.timestamp()
			t.CompletedAt = &ts
		}
		payload["from"] = t.Status
		payload["to"] = *opts.Status
		t.Status = *opts.Status
	}
	t.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, storageErr("update task", err)
	}
	if err := e.appendEvent(ctx, tx, "task.updated", t.CampaignID, "task", t.ID, opts.ActorID, payload); err != nil {
		return domain.Task{}, storageErr("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, storageErr("commit", err)
	}
	deps, err := e.Repo.ListTaskDependencies(ctx, t.ID)
	if err != nil {
		return domain.Task{}, storageErr("list dependencies", err)
	}
	t.DependsOn = deps
	return t, nil
}

func (e Engine) ensureCriteriaMetTx(ctx context.Context, tx *sql.Tx, taskID string) error {
	criteria, err := e.Repo.ListTaskMemoryTx(ctx, tx, taskID, domain.KindAcceptanceCriterion)
	if err != nil {
		return storageErr("list acceptance criteria", err)
	}
	var ids, contents []string
	for _, c := range criteria {
		if c.Met == nil || !*c.Met {
			ids = append(ids, c.ID)
			contents = append(contents, c.Content)
		}
	}
	if len(ids) > 0 {
		return criteriaUnmetErr(taskID, ids, contents)
	}
	return nil
}

// CompleteTask marks an in-progress task done, provided every acceptance
// criterion attached to it has been marked met. On a criteria failure the
// task keeps its current status and can be retried after the criteria are
// updated.
func (e Engine) CompleteTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	status := domain.TaskDone
	return e.UpdateTask(ctx, TaskUpdateOptions{ID: id, Status: &status, ActorID: actorID})
}

// DeleteTask removes the task and strips it out of every other task's
// dependency list so nothing dangles.
func (e Engine) DeleteTask(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return e.wrapRepoErr("task", id, err)
	}
	if err := e.Repo.RemoveReverseDependencies(ctx, tx, id); err != nil {
		return storageErr("remove reverse dependencies", err)
	}
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		return storageErr("delete task", err)
	}
	if err := e.appendEvent(ctx, tx, "task.deleted", t.CampaignID, "task", id, actorID, events.EventPayload{"title": t.Title}); err != nil {
		return storageErr("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}
