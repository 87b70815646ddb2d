package engine_test

import (
	"testing"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
)

func TestAttachmentOwnerRules(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	task := mustTask(t, env, c.ID, "a", "")

	// criteria are task-only
	_, err := env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
		Kind: domain.KindAcceptanceCriterion, CampaignID: c.ID, Content: "x", ActorID: "tester",
	})
	wantCode(t, err, engine.CodeValidation)

	// exactly one owner
	_, err = env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
		Kind: domain.KindResearchNote, TaskID: task.ID, CampaignID: c.ID, Content: "x", ActorID: "tester",
	})
	wantCode(t, err, engine.CodeValidation)

	// research notes attach to campaigns
	m, err := env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
		Kind: domain.KindResearchNote, CampaignID: c.ID, Content: "market notes", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.CampaignID == nil || *m.CampaignID != c.ID {
		t.Fatalf("expected campaign owner, got %+v", m)
	}
}

func TestTestingStepResults(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	task := mustTask(t, env, c.ID, "a", "")
	step, err := env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
		Kind: domain.KindTestingStep, TaskID: task.ID, Content: "run smoke tests", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if step.Result == nil || *step.Result != domain.StepUnset {
		t.Fatalf("step must start unset, got %+v", step.Result)
	}
	got, err := env.Engine.SetTestingStepResult(env.Ctx, step.ID, domain.StepPassed, "tester")
	if err != nil {
		t.Fatal(err)
	}
	if *got.Result != domain.StepPassed {
		t.Fatalf("expected passed, got %s", *got.Result)
	}
	_, err = env.Engine.SetTestingStepResult(env.Ctx, step.ID, "exploded", "tester")
	wantCode(t, err, engine.CodeValidation)

	// result recording is step-only
	note, _ := env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
		Kind: domain.KindImplementationNote, TaskID: task.ID, Content: "n", ActorID: "tester",
	})
	_, err = env.Engine.SetTestingStepResult(env.Ctx, note.ID, domain.StepPassed, "tester")
	wantCode(t, err, engine.CodeValidation)
}

func TestAttachmentOrderAndReorder(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	task := mustTask(t, env, c.ID, "a", "")

	var ids []string
	for _, content := range []string{"first", "second", "third"} {
		m, err := env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
			Kind: domain.KindTestingStep, TaskID: task.ID, Content: content, ActorID: "tester",
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}
	steps, err := env.Engine.ListAttachments(env.Ctx, task.ID, "", domain.KindTestingStep)
	if err != nil {
		t.Fatal(err)
	}
	if steps[0].Content != "first" || steps[2].Content != "third" {
		t.Fatalf("expected insertion order, got %s %s %s", steps[0].Content, steps[1].Content, steps[2].Content)
	}

	// a partial id list is rejected
	err = env.Engine.ReorderAttachments(env.Ctx, task.ID, "", domain.KindTestingStep, ids[:2], "tester")
	wantCode(t, err, engine.CodeValidation)

	reversed := []string{ids[2], ids[1], ids[0]}
	if err := env.Engine.ReorderAttachments(env.Ctx, task.ID, "", domain.KindTestingStep, reversed, "tester"); err != nil {
		t.Fatal(err)
	}
	steps, _ = env.Engine.ListAttachments(env.Ctx, task.ID, "", domain.KindTestingStep)
	if steps[0].Content != "third" || steps[2].Content != "first" {
		t.Fatalf("expected reversed order, got %s %s %s", steps[0].Content, steps[1].Content, steps[2].Content)
	}
}

func TestAttachmentUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	task := mustTask(t, env, c.ID, "a", "")
	m, err := env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
		Kind: domain.KindResearchNote, TaskID: task.ID, Content: "draft", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.UpdateAttachment(env.Ctx, m.ID, "final", "tester")
	if err != nil || got.Content != "final" {
		t.Fatalf("update attachment: %v %+v", err, got)
	}
	if err := env.Engine.DeleteAttachment(env.Ctx, m.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	err = env.Engine.DeleteAttachment(env.Ctx, m.ID, "tester")
	wantCode(t, err, engine.CodeNotFound)
}

func TestTaskDetailsGroupsAttachments(t *testing.T) {
	env := newTestEnv(t)
	c := mustCampaign(t, env, "alpha")
	task := mustTask(t, env, c.ID, "a", "")
	for kind, content := range map[string]string{
		domain.KindAcceptanceCriterion: "crit",
		domain.KindTestingStep:         "step",
		domain.KindResearchNote:        "research",
		domain.KindImplementationNote:  "impl",
	} {
		if _, err := env.Engine.AddAttachment(env.Ctx, engine.AttachmentAddOptions{
			Kind: kind, TaskID: task.ID, Content: content, ActorID: "tester",
		}); err != nil {
			t.Fatal(err)
		}
	}
	d, err := env.Engine.TaskDetails(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.AcceptanceCriteria) != 1 || len(d.TestingSteps) != 1 || len(d.ResearchNotes) != 1 || len(d.ImplementationNotes) != 1 {
		t.Fatalf("expected one attachment per group, got %+v", d)
	}
}
