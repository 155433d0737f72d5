// Package app wires the workspace together: database, migrations,
// config and logger, shared by the CLI and the server entrypoint.
package app

import (
	"os"

	"github.com/rs/zerolog"

	"taskdeck/internal/config"
	"taskdeck/internal/db"
	"taskdeck/internal/engine"
	"taskdeck/internal/migrate"
)

// Open prepares a ready-to-use engine for the workspace: the
// directory is created if missing, migrations are applied, and the
// optional taskdeck.yml is loaded (defaults otherwise). The returned
// closer releases the database handle.
func Open(workspace string) (engine.Engine, func() error, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return engine.Engine{}, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	return engine.New(conn, cfg), conn.Close, nil
}

// Logger builds the process logger from the logging section.
func Logger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg != nil {
		if parsed, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && cfg.Logging.Level != "" {
			level = parsed
		}
	}
	var log zerolog.Logger
	if cfg != nil && cfg.Logging.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
