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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "scriptdeck/internal/log"
	"scriptdeck/internal/script"
)

const (
	ManifestFileName = "projects.json"
	BackupsDirName   = "backups"

	manifestVersion = 1
	backupStamp     = "20060102-150405.000000000"
)

// ErrNotFound is returned for an unknown project id.
var ErrNotFound = errors.New("project not found")

// Project is one story with its generated script.
// Script always holds the formatted text of Scenes.
type Project struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Script       string         `json:"script"`
	Scenes       []script.Scene `json:"scenes"`
	LastModified time.Time      `json:"lastModified"`
}

// Clone returns a deep copy of p.
func (p Project) Clone() *Project {
	p.Scenes = slices.Clone(p.Scenes)
	return &p
}

// Canonicalize restores the Script/Scenes invariant for a project that came from
// outside the editor. A non-blank Script wins and is reparsed; otherwise Scenes are
// normalized, renumbered and formatted. Blank text with no scenes clears both.
func (p *Project) Canonicalize(s *script.Schema) {
	if s == nil {
		s = script.Default
	}
	switch {
	case strings.TrimSpace(p.Script) != "":
		p.Scenes = s.Parse(p.Script).Scenes
	case len(p.Scenes) > 0:
		scenes := make([]script.Scene, len(p.Scenes))
		for i, sc := range p.Scenes {
			scenes[i] = s.Normalize(sc)
		}
		p.Scenes = script.Renumber(scenes)
	default:
		p.Script, p.Scenes = "", nil
		return
	}
	p.Script = s.Format(p.Scenes)
}

// Store is the persistence contract shared by FileStore and PGStore.
type Store interface {
	// List returns all projects, most recently modified first.
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id string) (*Project, error)
	// Save assigns an id when p has none and stamps LastModified.
	Save(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*PGStore)(nil)
)

type manifest struct {
	Version  int       `json:"version"`
	Projects []Project `json:"projects"`
}

// FileStore keeps all projects in a single manifest file.
type FileStore struct {
	Dir        string
	MaxBackups int

	mu  sync.Mutex
	now func() time.Time
	log *slog.Logger
}

// NewFileStore prepares dir (and its backups folder) and returns a store rooted there.
// maxBackups <= 0 keeps every backup.
func NewFileStore(dir string, maxBackups int) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{
		Dir:        dir,
		MaxBackups: maxBackups,
		now:        time.Now,
		log:        applog.WithComponent("storage").With(slog.String("dir", dir)),
	}, nil
}

// ManifestPath returns the path of the projects manifest.
func (s *FileStore) ManifestPath() string { return filepath.Join(s.Dir, ManifestFileName) }

func (s *FileStore) List(ctx context.Context) ([]Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(m.Projects))
	for _, p := range m.Projects {
		out = append(out, *p.Clone())
	}
	sortByModified(out)
	return out, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(m.Projects, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.Projects[i].Clone(), nil
}

func (s *FileStore) Save(ctx context.Context, p *Project) error {
	if p == nil {
		return errors.New("nil project")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.LastModified = s.now().UTC()
	if i := indexOf(m.Projects, p.ID); i >= 0 {
		m.Projects[i] = *p.Clone()
	} else {
		m.Projects = append(m.Projects, *p.Clone())
	}
	if err := s.write(m); err != nil {
		return err
	}
	applog.WithOperation(s.log, "save").Debug("project saved", slog.String("id", p.ID), slog.Int("scenes", len(p.Scenes)))
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(m.Projects, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.Projects = slices.Delete(m.Projects, i, i+1)
	return s.write(m)
}

// load reads the manifest. A missing manifest is an empty store; an unreadable one falls back
// to the latest backup.
func (s *FileStore) load() (*manifest, error) {
	b, err := os.ReadFile(s.ManifestPath())
	if errors.Is(err, os.ErrNotExist) {
		return &manifest{Version: manifestVersion}, nil
	}
	if err != nil {
		m, berr := s.openFromLatestBackup()
		if berr != nil {
			return nil, fmt.Errorf("open manifest: %w; backup attempt: %v", err, berr)
		}
		return m, nil
	}
	var m manifest
	if uerr := json.Unmarshal(b, &m); uerr != nil {
		bm, berr := s.openFromLatestBackup()
		if berr != nil {
			return nil, fmt.Errorf("parse manifest: %w; backup attempt: %v", uerr, berr)
		}
		s.log.Warn("manifest corrupt, using latest backup", slog.Any("err", uerr))
		return bm, nil
	}
	return &m, nil
}

// write replaces the manifest with m: the current file is copied to a timestamped backup,
// then the new content goes to a temp file in the same directory which is renamed over the target.
func (s *FileStore) write(m *manifest) error {
	m.Version = manifestVersion
	if m.Projects == nil {
		m.Projects = []Project{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(s.Dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	path := s.ManifestPath()
	if _, statErr := os.Stat(path); statErr == nil {
		bname := fmt.Sprintf("%s.%s.bak", ManifestFileName, s.now().UTC().Format(backupStamp))
		if cerr := copyFile(path, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current manifest: %w", cerr)
		}
	}

	temp := filepath.Join(s.Dir, fmt.Sprintf(".%s.tmp-%d-%d", ManifestFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp manifest: %w", werr)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace manifest: %w", rerr)
	}
	if err := s.pruneBackups(); err != nil {
		s.log.Warn("prune backups failed", slog.Any("err", err))
	}
	return nil
}

// Backups returns the backup file paths, oldest first.
func (s *FileStore) Backups() ([]string, error) {
	bdir := filepath.Join(s.Dir, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // fixed-width stamp sorts chronologically
	return out, nil
}

func (s *FileStore) pruneBackups() error {
	if s.MaxBackups <= 0 {
		return nil
	}
	all, err := s.Backups()
	if err != nil {
		return err
	}
	var errs []error
	for len(all) > s.MaxBackups {
		if err := os.Remove(all[0]); err != nil {
			errs = append(errs, err)
		}
		all = all[1:]
	}
	return errors.Join(errs...)
}

func (s *FileStore) openFromLatestBackup() (*manifest, error) {
	all, err := s.Backups()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.New("no backups found")
	}
	latest := all[len(all)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse latest backup: %w", err)
	}
	return &m, nil
}

func indexOf(ps []Project, id string) int {
	return slices.IndexFunc(ps, func(p Project) bool { return p.ID == id })
}

func sortByModified(ps []Project) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].LastModified.After(ps[j].LastModified) })
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
