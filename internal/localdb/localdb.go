// Package localdb opens the device-local SQLite database that backs the pending queue and reminders.
package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/and161185/medizone/internal/migrate"
)

// FileName is the database file created inside the data directory.
const FileName = "medizone.db"

// Path returns the database path for a data directory.
func Path(dataDir string) string {
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, FileName)
}

// Open creates the data directory if needed, opens the database in WAL mode
// with a single writer connection and applies the local migrations.
func Open(ctx context.Context, dataDir string) (*sql.DB, error) {
	if err := os.MkdirAll(filepathOrDot(dataDir), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)", Path(dataDir))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate.UpLocal(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func filepathOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
