package engine_test

import (
	"testing"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
)

func TestCreateCampaignWithTasks(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.CreateCampaignWithTasks(env.Ctx, engine.CampaignWithTasksOptions{
		Name: "graph",
		Tasks: []engine.BulkTask{
			{TempID: "t3", Title: "ship", DependsOn: []string{"t2"}},
			{TempID: "t1", Title: "design", AcceptanceCriteria: []string{"doc reviewed"}},
			{TempID: "t2", Title: "build", DependsOn: []string{"t1"}},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tasks) != 3 || len(res.IDsByTempID) != 3 {
		t.Fatalf("expected 3 tasks, got %+v", res)
	}
	// tasks come back in dependency order
	if res.Tasks[0].Title != "design" || res.Tasks[1].Title != "build" || res.Tasks[2].Title != "ship" {
		t.Fatalf("unexpected order: %s %s %s", res.Tasks[0].Title, res.Tasks[1].Title, res.Tasks[2].Title)
	}
	// temp ids were rewritten to real ids
	build, err := env.Engine.GetTask(env.Ctx, res.IDsByTempID["t2"])
	if err != nil {
		t.Fatal(err)
	}
	if len(build.DependsOn) != 1 || build.DependsOn[0] != res.IDsByTempID["t1"] {
		t.Fatalf("expected build to depend on design, got %v", build.DependsOn)
	}
	// acceptance criteria landed on the right task
	crits, err := env.Engine.ListAttachments(env.Ctx, res.IDsByTempID["t1"], "", domain.KindAcceptanceCriterion)
	if err != nil {
		t.Fatal(err)
	}
	if len(crits) != 1 || crits[0].Content != "doc reviewed" {
		t.Fatalf("expected seeded criterion, got %+v", crits)
	}
	// only design is actionable at the start
	next, _ := env.Engine.NextActionableTask(env.Ctx, res.Campaign.ID)
	if next == nil || next.Title != "design" {
		t.Fatalf("expected design actionable, got %+v", next)
	}
}

func TestCreateCampaignWithTasksValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.CreateCampaignWithTasks(env.Ctx, engine.CampaignWithTasksOptions{
		Name: "dup",
		Tasks: []engine.BulkTask{
			{TempID: "a", Title: "one"},
			{TempID: "a", Title: "two"},
		},
		ActorID: "tester",
	})
	wantCode(t, err, engine.CodeValidation)

	_, err = env.Engine.CreateCampaignWithTasks(env.Ctx, engine.CampaignWithTasksOptions{
		Name: "dangling",
		Tasks: []engine.BulkTask{
			{TempID: "a", Title: "one", DependsOn: []string{"ghost"}},
		},
		ActorID: "tester",
	})
	wantCode(t, err, engine.CodeValidation)

	_, err = env.Engine.CreateCampaignWithTasks(env.Ctx, engine.CampaignWithTasksOptions{
		Name: "loop",
		Tasks: []engine.BulkTask{
			{TempID: "a", Title: "one", DependsOn: []string{"b"}},
			{TempID: "b", Title: "two", DependsOn: []string{"a"}},
		},
		ActorID: "tester",
	})
	wantCode(t, err, engine.CodeCycleDetected)

	// a failed request writes nothing
	cs, err := env.Engine.ListCampaigns(env.Ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 0 {
		t.Fatalf("expected no campaigns after failed bulk creates, got %d", len(cs))
	}
}
