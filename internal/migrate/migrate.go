// Package migrate applies embedded SQL migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/medizone/migrations"
)

// Up runs all pending remote-store migrations against the Postgres DSN.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return apply(ctx, goose.DialectPostgres, db, migrations.Postgres, "postgres")
}

// UpLocal runs all pending device-local migrations on an open SQLite handle.
func UpLocal(ctx context.Context, db *sql.DB) error {
	return apply(ctx, goose.DialectSQLite3, db, migrations.SQLite, "sqlite")
}

func apply(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("goose up (%s): %w", dir, err)
	}
	return nil
}
