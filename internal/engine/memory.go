package engine

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/events"
)

// AttachmentAddOptions are parameters for attaching a memory entry to a task
// or a campaign. Exactly one of TaskID and CampaignID must be set; research
// notes accept either owner, every other kind is task-only.
type AttachmentAddOptions struct {
	ID         string
	Kind       string
	TaskID     string
	CampaignID string
	Content    string
	ActorID    string
}

func validKind(kind string) bool {
	switch kind {
	case domain.KindAcceptanceCriterion, domain.KindTestingStep, domain.KindResearchNote, domain.KindImplementationNote:
		return true
	}
	return false
}

func (e Engine) AddAttachment(ctx context.Context, opts AttachmentAddOptions) (domain.MemoryEntry, error) {
	if !validKind(opts.Kind) {
		return domain.MemoryEntry{}, validationErr("unknown attachment kind "+opts.Kind, map[string]any{"kind": opts.Kind})
	}
	if opts.Content == "" {
		return domain.MemoryEntry{}, validationErr("attachment content is required", nil)
	}
	if (opts.TaskID == "") == (opts.CampaignID == "") {
		return domain.MemoryEntry{}, validationErr("attachment needs exactly one owner", map[string]any{"task_id": opts.TaskID, "campaign_id": opts.CampaignID})
	}
	if opts.CampaignID != "" && opts.Kind != domain.KindResearchNote {
		return domain.MemoryEntry{}, validationErr("only research notes attach to campaigns", map[string]any{"kind": opts.Kind})
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MemoryEntry{}, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	m := domain.MemoryEntry{
		ID:      opts.ID,
		Kind:    opts.Kind,
		Content: opts.Content,
	}
	eventCampaign := opts.CampaignID
	if opts.TaskID != "" {
		t, err := e.Repo.GetTaskTx(ctx, tx, opts.TaskID)
		if err != nil {
			return domain.MemoryEntry{}, e.wrapRepoErr("task", opts.TaskID, err)
		}
		m.TaskID = &opts.TaskID
		eventCampaign = t.CampaignID
	} else {
		if _, err := e.Repo.GetCampaignTx(ctx, tx, opts.CampaignID); err != nil {
			return domain.MemoryEntry{}, e.wrapRepoErr("campaign", opts.CampaignID, err)
		}
		m.CampaignID = &opts.CampaignID
	}
	switch opts.Kind {
	case domain.KindAcceptanceCriterion:
		met := false
		m.Met = &met
	case domain.KindTestingStep:
		result := domain.StepUnset
		m.Result = &result
	}
	idx, err := e.Repo.NextOrderIndex(ctx, tx, m.Kind, m.TaskID, m.CampaignID)
	if err != nil {
		return domain.MemoryEntry{}, storageErr("next order index", err)
	}
	m.OrderIndex = idx
	ts := e.timestamp()
	m.CreatedAt, m.UpdatedAt = ts, ts

	if err := e.Repo.InsertMemoryEntry(ctx, tx, m); err != nil {
		return domain.MemoryEntry{}, storageErr("insert attachment", err)
	}
	if err := e.appendEvent(ctx, tx, "attachment.added", eventCampaign, m.Kind, m.ID, opts.ActorID, events.EventPayload{"content": m.Content}); err != nil {
		return domain.MemoryEntry{}, storageErr("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.MemoryEntry{}, storageErr("commit", err)
	}
	return m, nil
}

func (e Engine) ListAttachments(ctx context.Context, taskID, campaignID, kind string) ([]domain.MemoryEntry, error) {
	if !validKind(kind) {
		return nil, validationErr("unknown attachment kind "+kind, map[string]any{"kind": kind})
	}
	if (taskID == "") == (campaignID == "") {
		return nil, validationErr("listing needs exactly one owner", nil)
	}
	var (
		entries []domain.MemoryEntry
		err     error
	)
	if taskID != "" {
		if _, err := e.GetTask(ctx, taskID); err != nil {
			return nil, err
		}
		entries, err = e.Repo.ListTaskMemory(ctx, taskID, kind)
	} else {
		if _, err := e.GetCampaign(ctx, campaignID); err != nil {
			return nil, err
		}
		entries, err = e.Repo.ListCampaignMemory(ctx, campaignID, kind)
	}
	if err != nil {
		return nil, storageErr("list attachments", err)
	}
	return entries, nil
}

// UpdateAttachment replaces an attachment's content.
func (e Engine) UpdateAttachment(ctx context.Context, id, content, actorID string) (domain.MemoryEntry, error) {
	if content == "" {
		return domain.MemoryEntry{}, validationErr("attachment content is required", nil)
	}
	return e.mutateAttachment(ctx, id, actorID, "attachment.updated", func(m *domain.MemoryEntry) error {
		m.Content = content
		return nil
	})
}

// MarkCriterionMet flips an acceptance criterion to met.
func (e Engine) MarkCriterionMet(ctx context.Context, id, actorID string) (domain.MemoryEntry, error) {
	return e.setCriterionMet(ctx, id, actorID, true)
}

// MarkCriterionUnmet flips an acceptance criterion back to unmet.
func (e Engine) MarkCriterionUnmet(ctx context.Context, id, actorID string) (domain.MemoryEntry, error) {
	return e.setCriterionMet(ctx, id, actorID, false)
}

func (e Engine) setCriterionMet(ctx context.Context, id, actorID string, met bool) (domain.MemoryEntry, error) {
	return e.mutateAttachment(ctx, id, actorID, "criterion.toggled", func(m *domain.MemoryEntry) error {
		if m.Kind != domain.KindAcceptanceCriterion {
			return validationErr("attachment "+id+" is not an acceptance criterion", map[string]any{"kind": m.Kind})
		}
		m.Met = &met
		return nil
	})
}

// SetTestingStepResult records the outcome of a testing step.
func (e Engine) SetTestingStepResult(ctx context.Context, id, result, actorID string) (domain.MemoryEntry, error) {
	switch result {
	case domain.StepUnset, domain.StepPassed, domain.StepFailed, domain.StepSkipped:
	default:
		return domain.MemoryEntry{}, validationErr("unknown testing step result "+result, map[string]any{"result": result})
	}
	return e.mutateAttachment(ctx, id, actorID, "step.recorded", func(m *domain.MemoryEntry) error {
		if m.Kind != domain.KindTestingStep {
			return validationErr("attachment "+id+" is not a testing step", map[string]any{"kind": m.Kind})
		}
		m.Result = &result
		return nil
	})
}

func (e Engine) mutateAttachment(ctx context.Context, id, actorID, evtType string, mutate func(*domain.MemoryEntry) error) (domain.MemoryEntry, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MemoryEntry{}, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMemoryEntryTx(ctx, tx, id)
	if err != nil {
		return domain.MemoryEntry{}, e.wrapRepoErr("attachment", id, err)
	}
	if err := mutate(&m); err != nil {
		return domain.MemoryEntry{}, err
	}
	m.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateMemoryEntry(ctx, tx, m); err != nil {
		return domain.MemoryEntry{}, storageErr("update attachment", err)
	}
	eventCampaign, err := e.attachmentCampaignTx(ctx, tx, m)
	if err != nil {
		return domain.MemoryEntry{}, err
	}
	if err := e.appendEvent(ctx, tx, evtType, eventCampaign, m.Kind, m.ID, actorID, events.EventPayload{}); err != nil {
		return domain.MemoryEntry{}, storageErr("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.MemoryEntry{}, storageErr("commit", err)
	}
	return m, nil
}

func (e Engine) attachmentCampaignTx(ctx context.Context, tx *sql.Tx, m domain.MemoryEntry) (string, error) {
	if m.CampaignID != nil {
		return *m.CampaignID, nil
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, *m.TaskID)
	if err != nil {
		return "", e.wrapRepoErr("task", *m.TaskID, err)
	}
	return t.CampaignID, nil
}

func (e Engine) DeleteAttachment(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMemoryEntryTx(ctx, tx, id)
	if err != nil {
		return e.wrapRepoErr("attachment", id, err)
	}
	eventCampaign, err := e.attachmentCampaignTx(ctx, tx, m)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteMemoryEntry(ctx, tx, id); err != nil {
		return storageErr("delete attachment", err)
	}
	if err := e.appendEvent(ctx, tx, "attachment.deleted", eventCampaign, m.Kind, id, actorID, events.EventPayload{}); err != nil {
		return storageErr("append event", err)
	}
	return tx.Commit()
}

// ReorderAttachments rewrites the display order for one owner and kind. The
// id list must be a permutation of the attachments currently there.
func (e Engine) ReorderAttachments(ctx context.Context, taskID, campaignID, kind string, ids []string, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	var current []domain.MemoryEntry
	eventCampaign := campaignID
	if taskID != "" {
		t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
		if err != nil {
			return e.wrapRepoErr("task", taskID, err)
		}
		eventCampaign = t.CampaignID
		current, err = e.Repo.ListTaskMemoryTx(ctx, tx, taskID, kind)
		if err != nil {
			return storageErr("list attachments", err)
		}
	} else {
		current, err = e.Repo.ListCampaignMemory(ctx, campaignID, kind)
		if err != nil {
			return storageErr("list attachments", err)
		}
	}
	if len(ids) != len(current) {
		return validationErr("reorder must list every attachment exactly once", map[string]any{"expected": len(current), "got": len(ids)})
	}
	existing := make(map[string]bool, len(current))
	for _, m := range current {
		existing[m.ID] = true
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if !existing[id] || seen[id] {
			return validationErr("reorder id "+id+" is not a distinct attachment of this owner", map[string]any{"id": id})
		}
		seen[id] = true
	}
	if err := e.Repo.SetMemoryOrder(ctx, tx, ids, e.timestamp()); err != nil {
		return storageErr("reorder attachments", err)
	}
	if err := e.appendEvent(ctx, tx, "attachment.reordered", eventCampaign, kind, "", actorID, events.EventPayload{"ids": ids}); err != nil {
		return storageErr("append event", err)
	}
	return tx.Commit()
}
