// Package app wires the storage, migrations, config and engine together for
// the CLI, the HTTP server and the MCP server.
package app

import (
	"database/sql"
	"fmt"

	"github.com/mcrescenzo/task-crusader-mcp/internal/config"
	"github.com/mcrescenzo/task-crusader-mcp/internal/db"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
	"github.com/mcrescenzo/task-crusader-mcp/internal/migrate"
)

// Open opens the workspace database, applies pending migrations, loads
// crusade.yml (or defaults when absent) and returns a ready engine. The
// caller owns the returned *sql.DB and must close it.
func Open(workspace string) (engine.Engine, *sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("load config: %w", err)
	}
	return engine.New(conn, cfg), conn, nil
}
