package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema/local.sql
var localSchema string

//go:embed schema/remote.sql
var remoteSchema string

// OpenLocal opens (and creates when missing) the SQLite file at path and
// applies the local schema.
func OpenLocal(path string) (*sql.DB, func(), error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create local store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, nil, fmt.Errorf("open local store: %w", err)
	}
	// SQLite serializes writers; one connection keeps transactions simple.
	db.SetMaxOpenConns(1)
	if err := InitLocal(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

// InitLocal runs the embedded local schema on db.
func InitLocal(db *sql.DB) error {
	for _, stmt := range splitStatements(localSchema) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate local store: %w", err)
		}
	}
	return nil
}

// MigrateRemote creates the remote tables when missing.
func MigrateRemote(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range splitStatements(remoteSchema) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate remote store: %w", err)
		}
	}
	return nil
}

func splitStatements(schema string) []string {
	var out []string
	for _, s := range strings.Split(schema, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
