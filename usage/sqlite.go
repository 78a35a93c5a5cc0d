package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tool_visits (
	tool   TEXT PRIMARY KEY,
	visits INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS known_tools (
	position INTEGER NOT NULL,
	tool     TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS usage_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteSink keeps usage data in a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply usage schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) RecordVisit(ctx context.Context, tool string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tool_visits (tool, visits) VALUES (?, 1)
		 ON CONFLICT(tool) DO UPDATE SET visits = visits + 1`, tool); err != nil {
		return fmt.Errorf("count visit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO usage_meta (key, value) VALUES ('last_visit', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("stamp visit: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteSink) SyncKnownTools(ctx context.Context, ids []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	known, err := queryKnown(ctx, tx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM known_tools`); err != nil {
		return nil, err
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO known_tools (position, tool) VALUES (?, ?)`, i, id); err != nil {
			return nil, fmt.Errorf("store known tool %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return newTools(known, ids), nil
}

func (s *SQLiteSink) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Visits: map[string]int64{}}

	rows, err := s.db.QueryContext(ctx, `SELECT tool, visits FROM tool_visits`)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var tool string
		var n int64
		if err := rows.Scan(&tool, &n); err != nil {
			rows.Close()
			return snap, err
		}
		snap.Visits[tool] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	if snap.KnownTools, err = queryKnown(ctx, s.db); err != nil {
		return snap, err
	}

	var last string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM usage_meta WHERE key = 'last_visit'`).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return snap, err
	default:
		snap.LastVisit, _ = time.Parse(time.RFC3339Nano, last)
	}
	return snap, nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryKnown(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT tool FROM known_tools ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
