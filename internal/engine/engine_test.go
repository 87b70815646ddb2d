package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mcrescenzo/task-crusader-mcp/internal/config"
	"github.com/mcrescenzo/task-crusader-mcp/internal/db"
	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
	"github.com/mcrescenzo/task-crusader-mcp/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

// newTestEnv opens a fresh workspace database with an advancing clock so
// created_at values are distinct and ordering is observable.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	tick := 0
	eng.Now = func() time.Time {
		tick++
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Second)
	}
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func mustCampaign(t *testing.T, env testEnv, name string) domain.Campaign {
	t.Helper()
	c, err := env.Engine.CreateCampaign(env.Ctx, engine.CampaignCreateOptions{Name: name, ActorID: "tester"})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return c
}

func mustTask(t *testing.T, env testEnv, campaignID, title, priority string, deps ...string) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		CampaignID: campaignID,
		Title:      title,
		Priority:   priority,
		DependsOn:  deps,
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func setStatus(t *testing.T, env testEnv, taskID, status string) domain.Task {
	t.Helper()
	task, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: taskID, Status: &status, ActorID: "tester"})
	if err != nil {
		t.Fatalf("set status %s: %v", status, err)
	}
	return task
}

func wantCode(t *testing.T, err error, code engine.Code) *engine.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	ee, ok := engine.AsEngineError(err)
	if !ok {
		t.Fatalf("expected engine error, got %v", err)
	}
	if ee.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, ee.Code, ee.Message)
	}
	return ee
}

func TestCampaignCreateDefaultsAndUniqueName(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	if c.Priority != domain.PriorityMedium {
		t.Fatalf("expected default priority medium, got %s", c.Priority)
	}
	if c.Status != domain.CampaignActive {
		t.Fatalf("expected active, got %s", c.Status)
	}
	_, err := env.Engine.CreateCampaign(env.Ctx, engine.CampaignCreateOptions{Name: "alpha", ActorID: "tester"})
	wantCode(t, err, engine.CodeValidation)

	_, err = env.Engine.CreateCampaign(env.Ctx, engine.CampaignCreateOptions{Name: "beta", Priority: "urgent", ActorID: "tester"})
	wantCode(t, err, engine.CodeValidation)
}

func TestCampaignStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	task := mustTask(t, env, c.ID, "only", "")

	// cannot complete while a task is open
	completed := domain.CampaignCompleted
	_, err := env.Engine.UpdateCampaign(env.Ctx, engine.CampaignUpdateOptions{ID: c.ID, Status: &completed, ActorID: "tester"})
	wantCode(t, err, engine.CodeValidation)

	setStatus(t, env, task.ID, domain.TaskInProgress)
	setStatus(t, env, task.ID, domain.TaskDone)
	c2, err := env.Engine.UpdateCampaign(env.Ctx, engine.CampaignUpdateOptions{ID: c.ID, Status: &completed, ActorID: "tester"})
	if err != nil {
		t.Fatalf("complete campaign: %v", err)
	}
	if c2.Status != domain.CampaignCompleted || c2.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %+v", c2)
	}

	archived := domain.CampaignArchived
	c3, err := env.Engine.UpdateCampaign(env.Ctx, engine.CampaignUpdateOptions{ID: c.ID, Status: &archived, ActorID: "tester"})
	if err != nil || c3.Status != domain.CampaignArchived {
		t.Fatalf("archive: %v", err)
	}

	// archived is terminal
	active := domain.CampaignActive
	_, err = env.Engine.UpdateCampaign(env.Ctx, engine.CampaignUpdateOptions{ID: c.ID, Status: &active, ActorID: "tester"})
	wantCode(t, err, engine.CodeInvalidTransition)
}

func TestTaskStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	task := mustTask(t, env, c.ID, "work", "")

	// done is not reachable from pending
	done := domain.TaskDone
	_, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &done, ActorID: "tester"})
	wantCode(t, err, engine.CodeInvalidTransition)

	task = setStatus(t, env, task.ID, domain.TaskInProgress)
	task = setStatus(t, env, task.ID, domain.TaskBlocked)
	task = setStatus(t, env, task.ID, domain.TaskInProgress)
	task = setStatus(t, env, task.ID, domain.TaskDone)
	if task.CompletedAt == nil {
		t.Fatalf("expected completed_at on done task")
	}

	// done is terminal
	pending := domain.TaskPending
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &pending, ActorID: "tester"})
	wantCode(t, err, engine.CodeInvalidTransition)
}

func TestDependencyValidation(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	other := mustCampaign(t, env, "beta")
	a := mustTask(t, env, c.ID, "a", "")
	foreign := mustTask(t, env, other.ID, "foreign", "")

	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		CampaignID: c.ID, Title: "bad", DependsOn: []string{"missing"}, ActorID: "tester",
	})
	wantCode(t, err, engine.CodeNotFound)

	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		CampaignID: c.ID, Title: "bad", DependsOn: []string{foreign.ID}, ActorID: "tester",
	})
	wantCode(t, err, engine.CodeValidation)

	// self dependency via update
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: a.ID, AddDependsOn: []string{a.ID}, ActorID: "tester"})
	wantCode(t, err, engine.CodeValidation)
}

func TestCycleRejectionLeavesGraphUnchanged(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	a := mustTask(t, env, c.ID, "a", "")
	b := mustTask(t, env, c.ID, "b", "", a.ID)

	_, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: a.ID, AddDependsOn: []string{b.ID}, ActorID: "tester"})
	ee := wantCode(t, err, engine.CodeCycleDetected)
	if !strings.Contains(ee.Message, "->") {
		t.Fatalf("expected readable cycle path, got %q", ee.Message)
	}

	// the rejected edge must not have been written
	got, err := env.Engine.GetTask(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.DependsOn) != 0 {
		t.Fatalf("expected a to keep zero deps, got %v", got.DependsOn)
	}
}

func TestCompleteTaskGatedOnCriteriaWithRetry(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	task := mustTask(t, env, c.ID, "gated", "")
	crit, err := env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
		Kind: domain.KindAcceptanceCriterion, TaskID: task.ID, Content: "tests pass", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if crit.Met == nil || *crit.Met {
		t.Fatalf("criterion must start unmet")
	}
	setStatus(t, env, task.ID, domain.TaskInProgress)

	_, err = env.Engine.CompleteTask(env.Ctx, task.ID, "tester")
	ee := wantCode(t, err, engine.CodeAcceptanceCriteria)
	ids := ee.Details["unmet_criterion_ids"].([]string)
	if len(ids) != 1 || ids[0] != crit.ID {
		t.Fatalf("expected the unmet criterion id in details, got %v", ids)
	}
	if contents := ee.Details["unmet_criteria"].([]string); len(contents) != 1 || contents[0] != "tests pass" {
		t.Fatalf("expected the unmet criterion content in details, got %v", contents)
	}

	// task keeps its status and the completion can be retried
	got, _ := env.Engine.GetTask(env.Ctx, task.ID)
	if got.Status != domain.TaskInProgress {
		t.Fatalf("failed completion must not change status, got %s", got.Status)
	}
	if _, err := env.Engine.MarkCriterionMet(env.Ctx, crit.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	done, err := env.Engine.CompleteTask(env.Ctx, task.ID, "tester")
	if err != nil {
		t.Fatalf("retry complete: %v", err)
	}
	if done.Status != domain.TaskDone || done.CompletedAt == nil {
		t.Fatalf("expected done with timestamp, got %+v", done)
	}
}

func TestActionableResolution(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	a := mustTask(t, env, c.ID, "a", "")
	b := mustTask(t, env, c.ID, "b", "", a.ID)
	mustTask(t, env, c.ID, "c", "", b.ID)

	next, err := env.Engine.NextActionableTask(env.Ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.ID != a.ID {
		t.Fatalf("expected a first, got %+v", next)
	}

	setStatus(t, env, a.ID, domain.TaskInProgress)
	// in-progress tasks are not actionable
	all, err := env.Engine.AllActionableTasks(env.Ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected nothing actionable, got %d", len(all))
	}

	setStatus(t, env, a.ID, domain.TaskDone)
	next, _ = env.Engine.NextActionableTask(env.Ctx, c.ID)
	if next == nil || next.ID != b.ID {
		t.Fatalf("expected b after a done, got %+v", next)
	}

	// cancelled dependency never unblocks its dependents
	setStatus(t, env, b.ID, domain.TaskInProgress)
	setStatus(t, env, b.ID, domain.TaskCancelled)
	next, _ = env.Engine.NextActionableTask(env.Ctx, c.ID)
	if next != nil {
		t.Fatalf("expected no actionable task with cancelled dependency, got %+v", next)
	}
}

func TestActionableOrderingDeterministic(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	older := mustTask(t, env, c.ID, "older-medium", domain.PriorityMedium)
	mustTask(t, env, c.ID, "newer-medium", domain.PriorityMedium)
	crit := mustTask(t, env, c.ID, "critical", domain.PriorityCritical)

	for i := 0; i < 3; i++ {
		all, err := env.Engine.AllActionableTasks(env.Ctx, c.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 actionable, got %d", len(all))
		}
		if all[0].ID != crit.ID {
			t.Fatalf("expected critical first, got %s", all[0].Title)
		}
		if all[1].ID != older.ID {
			t.Fatalf("expected older medium before newer, got %s", all[1].Title)
		}
	}
}

func TestProgressSummary(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "empty")
	p, err := env.Engine.ProgressSummary(env.Ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Total != 0 || p.PercentComplete != 0 {
		t.Fatalf("empty campaign must report 0%%, got %+v", p)
	}

	c2 := mustCampaign(t, env, "thirds")
	done := mustTask(t, env, c2.ID, "one", "")
	mustTask(t, env, c2.ID, "two", "")
	mustTask(t, env, c2.ID, "three", "")
	setStatus(t, env, done.ID, domain.TaskInProgress)
	setStatus(t, env, done.ID, domain.TaskDone)

	p, err = env.Engine.ProgressSummary(env.Ctx, c2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Total != 3 || p.Done != 1 || p.Pending != 2 {
		t.Fatalf("unexpected counts: %+v", p)
	}
	if p.PercentComplete != 33 {
		t.Fatalf("expected 33%%, got %d", p.PercentComplete)
	}
}

func TestDeleteTaskRemovesReverseDependencies(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	a := mustTask(t, env, c.ID, "a", "")
	b := mustTask(t, env, c.ID, "b", "", a.ID)

	if err := env.Engine.DeleteTask(env.Ctx, a.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.GetTask(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.DependsOn) != 0 {
		t.Fatalf("expected b to lose dependency on deleted a, got %v", got.DependsOn)
	}
	// b becomes actionable once the edge is gone
	next, _ := env.Engine.NextActionableTask(env.Ctx, c.ID)
	if next == nil || next.ID != b.ID {
		t.Fatalf("expected b actionable, got %+v", next)
	}
}

func TestCampaignDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	task := mustTask(t, env, c.ID, "a", "")
	if _, err := env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
		Kind: domain.KindResearchNote, TaskID: task.ID, Content: "note", ActorID: "tester",
	}); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteCampaign(env.Ctx, c.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.GetTask(env.Ctx, task.ID)
	wantCode(t, err, engine.CodeNotFound)
}

func TestTaskCreateRequiresActiveCampaign(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	archived := domain.CampaignArchived
	if _, err := env.Engine.UpdateCampaign(env.Ctx, engine.CampaignUpdateOptions{ID: c.ID, Status: &archived, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{CampaignID: c.ID, Title: "late", ActorID: "tester"})
	wantCode(t, err, engine.CodeValidation)
}
