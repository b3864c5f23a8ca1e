package dbmigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"github.com/fdg312/sugarcheck/migrations"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Logger is the goose logging interface.
type Logger interface {
	Printf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})
}

// Options tune a migration run.
type Options struct {
	// Dir is a migrations directory on disk. Empty uses the embedded set.
	Dir    string
	Logger Logger
}

// Run executes a goose command (up, down, status, version, redo, reset)
// against dbURL.
func Run(ctx context.Context, command, dbURL string, opts Options, args ...string) error {
	if dbURL == "" {
		return fmt.Errorf("database URL is empty")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	return RunDB(ctx, command, db, opts, args...)
}

// RunDB executes a goose command on an open connection.
func RunDB(ctx context.Context, command string, db *sql.DB, opts Options, args ...string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if opts.Logger != nil {
		goose.SetLogger(opts.Logger)
	}

	goose.SetBaseFS(source(opts.Dir))
	defer goose.SetBaseFS(nil)

	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s failed: %w", command, err)
	}
	return nil
}

func source(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}
