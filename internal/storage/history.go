/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "scriptdeck/internal/log"
	"scriptdeck/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	HistoryFileName = "history.sqlite"

	// historySchemaVersion tracks the local SQLite schema. Bump it and add a step to
	// runHistoryMigrations on breaking changes.
	historySchemaVersion = 2

	// revisionStamp is fixed width so ts columns sort chronologically as text.
	revisionStamp = "2006-01-02T15:04:05.000000000Z"
)

// Revision is one recorded script text of a project.
type Revision struct {
	ID        int64
	ProjectID string
	Text      string
	Source    string
	At        time.Time
}

// History records script revisions per project in <dataDir>/history.sqlite.
// It is derived data: deleting the file only loses the revision trail.
type History struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// HistoryPath returns the history database path for a data dir.
func HistoryPath(dataDir string) string { return filepath.Join(dataDir, HistoryFileName) }

// OpenHistory creates or opens the history database, enables WAL mode and brings the schema up to date.
func OpenHistory(dataDir string) (*History, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "history_open").With(slog.String("dir", dataDir))
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := HistoryPath(dataDir)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureHistorySchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runHistoryMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("history ready", slog.String("path", path))
	return &History{db: db, path: path, log: l}, nil
}

// Path returns the database file path.
func (h *History) Path() string { return h.path }

// Close closes the database.
func (h *History) Close() error { return h.db.Close() }

func ensureHistorySchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS revisions (
			id         INTEGER PRIMARY KEY,
			project_id TEXT NOT NULL,
			ts         TEXT NOT NULL,
			text       TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Fresh databases start at 1 and migrate forward like existing ones.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runHistoryMigrations applies incremental schema steps up to historySchemaVersion.
func runHistoryMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < historySchemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`ALTER TABLE revisions ADD COLUMN source TEXT NOT NULL DEFAULT '';`,
				`CREATE INDEX IF NOT EXISTS idx_revisions_project_ts ON revisions(project_id, ts);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// language=SQL
// dialect=SQLite
const insertRevisionSQL = `INSERT INTO revisions(project_id, ts, text, source) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestRevisionSQL = `SELECT id, project_id, ts, text, source FROM revisions WHERE project_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listRevisionsSQL = `SELECT id, project_id, ts, text, source FROM revisions WHERE project_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneRevisionsSQL = `DELETE FROM revisions WHERE project_id = ? AND id NOT IN (
	SELECT id FROM revisions WHERE project_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const deleteRevisionsSQL = `DELETE FROM revisions WHERE project_id = ?`

// Record stores text as the newest revision of project id. source tags where it came from
// ("generate", "edit", ...).
func (h *History) Record(ctx context.Context, projectID, text, source string, at time.Time) error {
	if projectID == "" {
		return errors.New("project id is required")
	}
	_, err := h.db.ExecContext(ctx, insertRevisionSQL, projectID, at.UTC().Format(revisionStamp), text, source)
	if err != nil {
		return fmt.Errorf("record revision: %w", err)
	}
	return nil
}

// Latest returns the newest revision of a project, or ErrNotFound when none exists.
func (h *History) Latest(ctx context.Context, projectID string) (Revision, error) {
	r, err := scanRevision(h.db.QueryRowContext(ctx, selectLatestRevisionSQL, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, fmt.Errorf("%w: no revisions for %s", ErrNotFound, projectID)
	}
	return r, err
}

// List returns up to limit revisions, newest first. limit <= 0 means 50.
func (h *History) List(ctx context.Context, projectID string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx, listRevisionsSQL, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune keeps at most keepLast revisions of a project and returns how many were deleted.
func (h *History) Prune(ctx context.Context, projectID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := h.db.ExecContext(ctx, pruneRevisionsSQL, projectID, projectID, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}
	return res.RowsAffected()
}

// Forget drops every revision of a project.
func (h *History) Forget(ctx context.Context, projectID string) error {
	if _, err := h.db.ExecContext(ctx, deleteRevisionsSQL, projectID); err != nil {
		return fmt.Errorf("forget revisions: %w", err)
	}
	return nil
}

func scanRevision(r rowScanner) (Revision, error) {
	var (
		rev   Revision
		tsStr string
	)
	if err := r.Scan(&rev.ID, &rev.ProjectID, &tsStr, &rev.Text, &rev.Source); err != nil {
		return Revision{}, err
	}
	rev.At, _ = time.Parse(revisionStamp, tsStr)
	return rev, nil
}
