/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session ties one project to its parsed script.
// The script text is the source of truth: every change is applied to text and
// reparsed, and the project always stores the canonical formatting of its scenes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"scriptdeck/internal/deck"
	applog "scriptdeck/internal/log"
	"scriptdeck/internal/script"
	"scriptdeck/internal/storage"
	"scriptdeck/internal/undo"
)

var (
	ErrMissingTitle = errors.New("session: title is required")
	ErrMissingStory = errors.New("session: story content is required")
	ErrNoScenes     = deck.ErrNoScenes
	ErrNoGenerator  = errors.New("session: no script generator configured")
	ErrNoStore      = errors.New("session: no project store configured")
	ErrSceneIndex   = errors.New("session: scene index out of range")
)

// Generator produces raw script text for a story. *llm.Client implements it.
type Generator interface {
	GenerateScript(ctx context.Context, title, story string) (string, error)
}

// Options carries the collaborators of a Session. Any of them may be nil; the
// operations that need a missing one fail with a descriptive error.
type Options struct {
	Schema    *script.Schema
	Generator Generator
	Store     storage.Store
	History   *storage.History
	// HistoryKeep caps recorded revisions per project (0 keeps all).
	HistoryKeep int
	Undo        *undo.Manager
	Writer      deck.Writer
	Mapper      *deck.Mapper
	Now         func() time.Time
}

// Session edits one project. It is owned by a single goroutine.
type Session struct {
	opts    Options
	project *storage.Project
	doc     script.Document
	key     string
	dirty   bool
	log     *slog.Logger
}

// New starts an unsaved project.
func New(title, story string, opts Options) *Session {
	s := newSession(&storage.Project{Title: title, Content: story}, opts)
	s.log.Debug("session started")
	return s
}

// Open loads project id from the store and parses its script.
func Open(ctx context.Context, id string, opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	p, err := opts.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	s := newSession(p, opts)
	if strings.TrimSpace(p.Script) != "" {
		s.apply(p.Script)
	}
	s.log.Debug("session opened", slog.Int("scenes", len(s.doc.Scenes)))
	return s, nil
}

func newSession(p *storage.Project, opts Options) *Session {
	if opts.Schema == nil {
		opts.Schema = script.Default
	}
	if opts.Undo == nil {
		opts.Undo = undo.NewManager(undo.Config{MaxPerKey: 100})
	}
	if opts.Writer == nil {
		opts.Writer = deck.PDFWriter{}
	}
	if opts.Mapper == nil {
		opts.Mapper = deck.NewMapper(deck.LabelsFor(opts.Schema))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		opts:    opts,
		project: p,
		key:     uuid.NewString(),
		log:     applog.WithComponent("session").With(slog.String("title", p.Title)),
	}
}

// Project returns a copy of the current project state.
func (s *Session) Project() *storage.Project { return s.project.Clone() }

// Scenes returns a copy of the parsed scenes.
func (s *Session) Scenes() []script.Scene { return slices.Clone(s.doc.Scenes) }

// Text returns the canonical script text.
func (s *Session) Text() string { return s.project.Script }

// Dirty reports whether the session has changes that were not saved.
func (s *Session) Dirty() bool { return s.dirty }

// UndoDepth returns the number of available undo and redo steps.
func (s *Session) UndoDepth() (undo, redo int) { return s.opts.Undo.Depth(s.key) }

// SetTitle renames the project.
func (s *Session) SetTitle(title string) {
	s.project.Title = title
	s.dirty = true
}

// SetStory replaces the story content.
func (s *Session) SetStory(story string) {
	s.project.Content = story
	s.dirty = true
}

// Generate asks the generator for a new script, replaces the current one and
// saves the project when a store is configured.
func (s *Session) Generate(ctx context.Context) error {
	if strings.TrimSpace(s.project.Title) == "" {
		return ErrMissingTitle
	}
	if strings.TrimSpace(s.project.Content) == "" {
		return ErrMissingStory
	}
	if s.opts.Generator == nil {
		return ErrNoGenerator
	}
	if s.project.ID != "" {
		ctx = applog.ContextWithProject(ctx, s.project.ID)
	}
	raw, err := s.opts.Generator.GenerateScript(ctx, s.project.Title, s.project.Content)
	if err != nil {
		return err
	}
	s.change(raw)
	applog.WithOperation(s.log, "generate").InfoContext(ctx, "script generated", slog.Int("scenes", len(s.doc.Scenes)))
	if s.opts.Store == nil {
		return nil
	}
	return s.save(ctx, "generate")
}

// EditText replaces the whole script with text.
func (s *Session) EditText(text string) { s.change(text) }

// ReplaceScene swaps scene i (0-based) and reformats the script. A scene whose
// values would not read back from the script text is rejected with
// script.ErrAmbiguousValue and nothing changes.
func (s *Session) ReplaceScene(i int, sc script.Scene) error {
	if i < 0 || i >= len(s.doc.Scenes) {
		return fmt.Errorf("%w: %d of %d", ErrSceneIndex, i, len(s.doc.Scenes))
	}
	sc = s.opts.Schema.Normalize(sc)
	sc.Number = i + 1
	if err := s.opts.Schema.Check(sc); err != nil {
		return err
	}
	scenes := slices.Clone(s.doc.Scenes)
	scenes[i] = sc
	s.change(s.opts.Schema.Format(script.Renumber(scenes)))
	return nil
}

// Undo reverts the last change. It reports false when there is nothing to undo.
func (s *Session) Undo() bool {
	prev, ok := s.opts.Undo.Undo(s.snapshot())
	if ok {
		s.apply(prev.Text)
		s.dirty = true
	}
	return ok
}

// Redo reapplies the last undone change.
func (s *Session) Redo() bool {
	next, ok := s.opts.Undo.Redo(s.snapshot())
	if ok {
		s.apply(next.Text)
		s.dirty = true
	}
	return ok
}

// Save persists the project and records its script revision.
func (s *Session) Save(ctx context.Context) error {
	if s.opts.Store == nil {
		return ErrNoStore
	}
	return s.save(ctx, "save")
}

// Restore replaces the script with a recorded revision and saves the project.
// The restore itself can be undone within the session.
func (s *Session) Restore(ctx context.Context, rev storage.Revision) error {
	if s.opts.Store == nil {
		return ErrNoStore
	}
	if rev.ProjectID != "" && rev.ProjectID != s.project.ID {
		return fmt.Errorf("session: revision %d belongs to project %s", rev.ID, rev.ProjectID)
	}
	s.change(rev.Text)
	return s.save(ctx, "restore")
}

// Reload discards unsaved changes and the undo history and rereads the project from the store.
func (s *Session) Reload(ctx context.Context) error {
	if s.opts.Store == nil {
		return ErrNoStore
	}
	if s.project.ID == "" {
		return fmt.Errorf("session: project was never saved: %w", storage.ErrNotFound)
	}
	p, err := s.opts.Store.Get(ctx, s.project.ID)
	if err != nil {
		return fmt.Errorf("reload project: %w", err)
	}
	s.project = p
	s.apply(p.Script)
	s.opts.Undo.Clear(s.key)
	s.dirty = false
	return nil
}

// ExportDeck writes the scenes as a deck into dir and returns the file path.
func (s *Session) ExportDeck(dir string, now time.Time) (string, error) {
	if len(s.doc.Scenes) == 0 {
		return "", ErrNoScenes
	}
	return deck.ExportScenes(s.opts.Writer, s.opts.Mapper, dir, s.project.Title, s.doc.Scenes, now)
}

func (s *Session) save(ctx context.Context, source string) error {
	if err := s.opts.Store.Save(ctx, s.project); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	s.dirty = false
	l := applog.WithOperation(s.log, "save").With(slog.String("id", s.project.ID))
	if h := s.opts.History; h != nil && s.project.Script != "" {
		if err := h.Record(ctx, s.project.ID, s.project.Script, source, s.project.LastModified); err != nil {
			l.Warn("record revision failed", slog.Any("err", err))
		} else if s.opts.HistoryKeep > 0 {
			if _, err := h.Prune(ctx, s.project.ID, s.opts.HistoryKeep); err != nil {
				l.Warn("prune revisions failed", slog.Any("err", err))
			}
		}
	}
	l.Debug("project saved")
	return nil
}

func (s *Session) snapshot() undo.Snapshot {
	return undo.Snapshot{Key: s.key, Text: s.project.Script, TS: s.opts.Now()}
}

// change records the current state for undo and applies text.
func (s *Session) change(text string) {
	s.opts.Undo.Record(s.snapshot())
	s.apply(text)
	s.dirty = true
}

// apply reparses text and stores the canonical formatting of the result.
// Blank text clears the script instead of producing a placeholder scene.
func (s *Session) apply(text string) {
	if strings.TrimSpace(text) == "" {
		s.doc = script.Document{}
		s.project.Script, s.project.Scenes = "", nil
		return
	}
	doc := s.opts.Schema.Parse(text)
	s.doc = doc
	s.project.Scenes = slices.Clone(doc.Scenes)
	s.project.Script = s.opts.Schema.Format(doc.Scenes)
}
