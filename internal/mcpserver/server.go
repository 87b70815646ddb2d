// Package mcpserver exposes the campaign engine over the Model Context
// Protocol on stdio. This file is the composition root: it creates the
// server instance and registers every tool; tool behavior lives in the
// engine.
package mcpserver

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcrescenzo/task-crusader-mcp/internal/config"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
)

// Version is set at build time via ldflags.
var Version = "dev"

// actorID stamped on events for mutations arriving over MCP.
const actorID = "mcp"

type Server struct {
	Engine engine.Engine
	Config *config.Config
}

// New builds the MCP server with all campaign and task tools registered.
func New(e engine.Engine, cfg *config.Config) *server.MCPServer {
	s := server.NewMCPServer(
		"task-crusader",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)
	srv := Server{Engine: e, Config: cfg}
	srv.registerCampaignTools(s)
	srv.registerTaskTools(s)
	srv.registerAttachmentTools(s)
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout until the client hangs up.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const serverInstructions = `Task Crusader tracks campaigns (units of work) and their task graphs.
Create a campaign, add tasks with dependencies, then drive work with
campaign_get_next_actionable_task. Tasks with acceptance criteria cannot be
completed until every criterion is marked met.`

func (s Server) hintsEnabled() bool {
	return s.Config != nil && s.Config.Hints.Enabled
}

// ok wraps data in the success envelope, optionally with hints.
func (s Server) ok(data any, hs []string) (*mcp.CallToolResult, error) {
	payload := map[string]any{"success": true, "data": data}
	if s.hintsEnabled() && len(hs) > 0 {
		payload["hints"] = hs
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// fail wraps an engine failure in the error envelope. Tool handlers return
// the envelope, not a Go error, so the client always gets structured output.
func (s Server) fail(err error) (*mcp.CallToolResult, error) {
	errBody := map[string]any{"code": "internal_error", "message": err.Error()}
	if ee, ok := engine.AsEngineError(err); ok {
		errBody = map[string]any{"code": string(ee.Code), "message": ee.Message}
		if len(ee.Details) > 0 {
			errBody["details"] = ee.Details
		}
	}
	b, merr := json.MarshalIndent(map[string]any{"success": false, "error": errBody}, "", "  ")
	if merr != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultError(string(b)), nil
}
