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
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	applog "scriptdeck/internal/log"
	"scriptdeck/internal/script"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore keeps projects in Postgres. Scenes are stored as JSONB.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
	log *slog.Logger
}

// OpenPG connects to dsn, verifies the connection and applies pending migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "pg_open")
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.Info("postgres store ready")
	return &PGStore{db: db, now: time.Now, log: applog.WithComponent("storage")}, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() error { return s.db.Close() }

// language=SQL
// dialect=PostgreSQL
const listProjectsSQL = `SELECT id, title, content, script, scenes, last_modified FROM projects ORDER BY last_modified DESC`

// language=SQL
// dialect=PostgreSQL
const getProjectSQL = `SELECT id, title, content, script, scenes, last_modified FROM projects WHERE id = $1`

// language=SQL
// dialect=PostgreSQL
const upsertProjectSQL = `INSERT INTO projects (id, title, content, script, scenes, last_modified)
VALUES ($1, $2, $3, $4, $5::jsonb, $6)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	script = EXCLUDED.script,
	scenes = EXCLUDED.scenes,
	last_modified = EXCLUDED.last_modified`

// language=SQL
// dialect=PostgreSQL
const deleteProjectSQL = `DELETE FROM projects WHERE id = $1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (Project, error) {
	var (
		p      Project
		scenes []byte
	)
	if err := r.Scan(&p.ID, &p.Title, &p.Content, &p.Script, &scenes, &p.LastModified); err != nil {
		return Project{}, err
	}
	if len(scenes) > 0 {
		var sc []script.Scene
		if err := json.Unmarshal(scenes, &sc); err != nil {
			return Project{}, fmt.Errorf("decode scenes of %s: %w", p.ID, err)
		}
		p.Scenes = sc
	}
	p.LastModified = p.LastModified.UTC()
	return p, nil
}

func (s *PGStore) List(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, listProjectsSQL)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.log.Warn("rows close", slog.Any("err", err))
		}
	}()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id string) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, getProjectSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *PGStore) Save(ctx context.Context, p *Project) error {
	if p == nil {
		return errors.New("nil project")
	}
	scenes := p.Scenes
	if scenes == nil {
		scenes = []script.Scene{}
	}
	b, err := json.Marshal(scenes)
	if err != nil {
		return fmt.Errorf("encode scenes: %w", err)
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, upsertProjectSQL, id, p.Title, p.Content, p.Script, string(b), ts); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	p.ID, p.LastModified = id, ts
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, deleteProjectSQL, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// applyMigrations runs every embedded migrations/NNNN_name.sql not yet listed in schema_migrations,
// each in its own transaction, in file name order.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, name := range files {
		v, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if applied[v] {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, v, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
	}
	return nil
}

// migrationVersion extracts the numeric prefix of a migration file name ("0001_projects.sql" -> 1).
func migrationVersion(name string) (int64, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migration %q: missing version prefix", name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("migration %q: %w", name, err)
	}
	return v, nil
}
