package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcrescenzo/task-crusader-mcp/internal/config"
	"github.com/mcrescenzo/task-crusader-mcp/internal/db"
	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
	"github.com/mcrescenzo/task-crusader-mcp/internal/migrate"
)

func newTestServerEnv(t *testing.T) Server {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Server{Engine: engine.New(conn, config.Default()), Config: config.Default()}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// decodeResult unmarshals the single text content of a tool result.
func decodeResult(t *testing.T, res *mcp.CallToolResult, into any) {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	if err := json.Unmarshal([]byte(tc.Text), into); err != nil {
		t.Fatalf("decode %q: %v", tc.Text, err)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Hints   []string        `json:"hints"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestCampaignCreateEnvelope(t *testing.T) {
	s := newTestServerEnv(t)
	ctx := context.Background()

	res, err := s.campaignCreate(ctx, callRequest(map[string]any{"name": "alpha"}))
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	decodeResult(t, res, &env)
	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}
	var c struct {
		ID       string `json:"id"`
		Priority string `json:"priority"`
	}
	if err := json.Unmarshal(env.Data, &c); err != nil {
		t.Fatal(err)
	}
	if c.ID == "" || c.Priority != "medium" {
		t.Fatalf("unexpected campaign payload: %+v", c)
	}
	if len(env.Hints) == 0 {
		t.Fatalf("expected next-step hints on create")
	}

	// duplicate names come back as a structured error, not a Go error
	res, err = s.campaignCreate(ctx, callRequest(map[string]any{"name": "alpha"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatalf("expected error result for duplicate name")
	}
	decodeResult(t, res, &env)
	if env.Success || env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error envelope, got %+v", env)
	}
}

func TestTaskCompleteGatedOnCriteria(t *testing.T) {
	s := newTestServerEnv(t)
	ctx := context.Background()

	c, err := s.Engine.CreateCampaign(ctx, engine.CampaignCreateOptions{Name: "alpha", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := s.Engine.CreateTask(ctx, engine.TaskCreateOptions{CampaignID: c.ID, Title: "t", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	crit, err := s.Engine.AddAttachment(ctx, engine.AttachmentAddOptions{
		Kind: domain.KindAcceptanceCriterion, TaskID: task.ID, Content: "tests pass", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	inProgress := "in-progress"
	if _, err := s.Engine.UpdateTask(ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &inProgress, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}

	res, err := s.taskComplete(ctx, callRequest(map[string]any{"task_id": task.ID}))
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	decodeResult(t, res, &env)
	if env.Success || env.Error == nil || env.Error.Code != "acceptance_criteria_unmet" {
		t.Fatalf("expected acceptance_criteria_unmet, got %+v", env)
	}
	if _, ok := env.Error.Details["unmet_criteria"]; !ok {
		t.Fatalf("expected unmet_criteria in details, got %+v", env.Error.Details)
	}

	if _, err := s.Engine.MarkCriterionMet(ctx, crit.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	res, err = s.taskComplete(ctx, callRequest(map[string]any{"task_id": task.ID}))
	if err != nil {
		t.Fatal(err)
	}
	decodeResult(t, res, &env)
	if !env.Success {
		t.Fatalf("expected completion after criteria met, got %+v", env)
	}
	if len(env.Hints) == 0 {
		t.Fatalf("expected completion hints")
	}
}

func TestNextTaskHintsWhenNothingActionable(t *testing.T) {
	s := newTestServerEnv(t)
	ctx := context.Background()

	c, err := s.Engine.CreateCampaign(ctx, engine.CampaignCreateOptions{Name: "alpha", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.campaignNextTask(ctx, callRequest(map[string]any{"campaign_id": c.ID}))
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	decodeResult(t, res, &env)
	if !env.Success {
		t.Fatalf("expected success for empty campaign, got %+v", env)
	}
	var body struct {
		Task *json.RawMessage `json:"task"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatal(err)
	}
	if body.Task != nil {
		t.Fatalf("expected nil task, got %s", *body.Task)
	}
	if len(env.Hints) == 0 {
		t.Fatalf("expected guidance hints when nothing is actionable")
	}
}

func TestBulkCreateTool(t *testing.T) {
	s := newTestServerEnv(t)
	ctx := context.Background()

	res, err := s.campaignCreateWithTasks(ctx, callRequest(map[string]any{
		"name": "graph",
		"tasks": []any{
			map[string]any{"temp_id": "a", "title": "design"},
			map[string]any{"temp_id": "b", "title": "build", "depends_on": []any{"a"}},
		},
	}))
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	decodeResult(t, res, &env)
	if !env.Success {
		t.Fatalf("bulk create failed: %+v", env)
	}
	var body struct {
		IDsByTempID map[string]string `json:"ids_by_temp_id"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatal(err)
	}
	if len(body.IDsByTempID) != 2 {
		t.Fatalf("expected two id mappings, got %+v", body.IDsByTempID)
	}

	// cycles are refused with the dedicated code
	res, err = s.campaignCreateWithTasks(ctx, callRequest(map[string]any{
		"name": "loop",
		"tasks": []any{
			map[string]any{"temp_id": "a", "title": "one", "depends_on": []any{"b"}},
			map[string]any{"temp_id": "b", "title": "two", "depends_on": []any{"a"}},
		},
	}))
	if err != nil {
		t.Fatal(err)
	}
	decodeResult(t, res, &env)
	if env.Success || env.Error == nil || env.Error.Code != "cycle_detected" {
		t.Fatalf("expected cycle_detected, got %+v", env)
	}
}
