// Package sqlite persists the audit trail in an append-only SQLite
// database. Update and delete are rejected at the schema level by
// triggers, so even code with a handle to the database cannot rewrite
// history.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/proofgate/proofgate/internal/domain/audit"
)

// defaultQueryLimit caps Query results when the caller passes no limit.
const defaultQueryLimit = 1000

const tableSchema = `
	CREATE TABLE IF NOT EXISTS audit_events (
		rowid_seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		event_type TEXT NOT NULL,
		actor TEXT NOT NULL,
		tool_name TEXT NOT NULL DEFAULT '',
		args_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		policy_hash TEXT NOT NULL DEFAULT '',
		git_sha TEXT NOT NULL DEFAULT '',
		decision_source TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT ''
	)`

const triggerPreventUpdate = `
	CREATE TRIGGER IF NOT EXISTS prevent_update
	BEFORE UPDATE ON audit_events
	FOR EACH ROW
	BEGIN
		SELECT RAISE(FAIL, 'Updates not allowed on audit_events');
	END`

const triggerPreventDelete = `
	CREATE TRIGGER IF NOT EXISTS prevent_delete
	BEFORE DELETE ON audit_events
	FOR EACH ROW
	BEGIN
		SELECT RAISE(FAIL, 'Deletes not allowed on audit_events');
	END`

const indexRunID = `
	CREATE INDEX IF NOT EXISTS idx_run_id ON audit_events(run_id, timestamp)`

// Store is an append-only audit.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the audit database at path and applies the
// schema, triggers, and pragmas.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute pragma: %w", err)
		}
	}

	for _, stmt := range []string{tableSchema, triggerPreventUpdate, triggerPreventDelete, indexRunID} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Append inserts events in arrival order within one transaction.
func (s *Store) Append(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_events
			(id, run_id, timestamp, event_type, actor, tool_name, args_hash,
			 status, duration_ms, policy_hash, git_sha, decision_source, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		details := ""
		if len(ev.Details) > 0 {
			raw, merr := json.Marshal(ev.Details)
			if merr != nil {
				return fmt.Errorf("encode details for event %s: %w", ev.ID, merr)
			}
			details = string(raw)
		}
		if _, err := stmt.ExecContext(ctx,
			ev.ID, ev.RunID, ev.Timestamp.UTC().Format(time.RFC3339Nano),
			ev.EventType, ev.Actor, ev.ToolName, ev.ArgsHash,
			ev.Status, ev.DurationMs, ev.PolicyHash, ev.GitSHA,
			ev.DecisionSource, details,
		); err != nil {
			return fmt.Errorf("append event %s: %w", ev.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Query returns the events for runID ordered by timestamp ascending,
// breaking ties by insertion order.
func (s *Store) Query(ctx context.Context, runID string, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, timestamp, event_type, actor, tool_name, args_hash,
		       status, duration_ms, policy_hash, git_sha, decision_source, details
		FROM audit_events
		WHERE run_id = ?
		ORDER BY timestamp ASC, rowid_seq ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var ev audit.Event
		var ts, details string
		if err := rows.Scan(
			&ev.ID, &ev.RunID, &ts, &ev.EventType, &ev.Actor, &ev.ToolName,
			&ev.ArgsHash, &ev.Status, &ev.DurationMs, &ev.PolicyHash,
			&ev.GitSHA, &ev.DecisionSource, &details,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		parsed, perr := time.Parse(time.RFC3339Nano, ts)
		if perr != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, perr)
		}
		ev.Timestamp = parsed
		if details != "" {
			if uerr := json.Unmarshal([]byte(details), &ev.Details); uerr != nil {
				return nil, fmt.Errorf("decode details for event %s: %w", ev.ID, uerr)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
