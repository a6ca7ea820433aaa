package app

import (
	"database/sql"
	"fmt"

	"shiftflow/internal/config"
	"shiftflow/internal/db"
	"shiftflow/internal/engine"
	"shiftflow/internal/migrate"
)

// Context is the shared wiring for every CLI command: workspace database,
// migrated schema, loaded config and a ready engine.
type Context struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
}

// Open prepares the workspace, applies migrations and builds the engine.
func Open(workspace string) (*Context, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Context{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Engine:    engine.New(conn, cfg),
	}, nil
}

func (c *Context) Close() error {
	return c.DB.Close()
}
