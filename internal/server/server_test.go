package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/mcrescenzo/task-crusader-mcp/internal/config"
	"github.com/mcrescenzo/task-crusader-mcp/internal/db"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
	"github.com/mcrescenzo/task-crusader-mcp/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{Disabled: true}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
}

func TestCampaignAndTaskFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/campaigns", map[string]any{"name": "alpha"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create campaign: %d %s", resp.StatusCode, body)
	}
	var campaign struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &campaign); err != nil {
		t.Fatal(err)
	}

	resp, body = doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/campaigns/"+campaign.ID+"/tasks", map[string]any{"title": "first"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", resp.StatusCode, body)
	}
	var task struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &task); err != nil {
		t.Fatal(err)
	}
	if task.Status != "pending" {
		t.Fatalf("expected pending, got %s", task.Status)
	}

	resp, body = doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/campaigns/"+campaign.ID+"/tasks/next", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("next: %d %s", resp.StatusCode, body)
	}
	var next struct {
		Task *struct {
			ID string `json:"id"`
		} `json:"task"`
	}
	if err := json.Unmarshal(body, &next); err != nil {
		t.Fatal(err)
	}
	if next.Task == nil || next.Task.ID != task.ID {
		t.Fatalf("expected created task to be next, got %s", body)
	}

	resp, body = doJSON(t, ts.client, http.MethodPatch, ts.URL+"/v0/tasks/"+task.ID, map[string]any{"status": "in-progress"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	resp, body = doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/tasks/"+task.ID+"/complete", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: %d %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/campaigns/"+campaign.ID+"/progress", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("progress: %d %s", resp.StatusCode, body)
	}
	var progress struct {
		PercentComplete int `json:"percent_complete"`
	}
	if err := json.Unmarshal(body, &progress); err != nil {
		t.Fatal(err)
	}
	if progress.PercentComplete != 100 {
		t.Fatalf("expected 100%%, got %d", progress.PercentComplete)
	}
}

func TestErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/campaigns/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.StatusCode, body)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found, got %q (%s)", envelope.Error.Code, body)
	}

	// invalid transition carries its engine code and a conflict status
	_, body = doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/campaigns", map[string]any{"name": "alpha"})
	var campaign struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &campaign); err != nil {
		t.Fatal(err)
	}
	_, body = doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/campaigns/"+campaign.ID+"/tasks", map[string]any{"title": "t"})
	var task struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &task); err != nil {
		t.Fatal(err)
	}
	resp, body = doJSON(t, ts.client, http.MethodPatch, ts.URL+"/v0/tasks/"+task.ID, map[string]any{"status": "done"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %q", envelope.Error.Code)
	}
}

func TestAuthRequiredWhenEnabled(t *testing.T) {
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: "secret"}})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
	})
	url := "http://" + ln.Addr().String()

	client := &http.Client{}
	resp, body := doJSON(t, client, http.MethodGet, url+"/v0/campaigns", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", resp.StatusCode, body)
	}
	// health stays open
	resp, _ = doJSON(t, client, http.MethodGet, url+"/v0/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for health, got %d", resp.StatusCode)
	}
}
