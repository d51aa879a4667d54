/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded undo/redo stacks of script text per project.
package undo

import (
	"sync"
	"time"
)

// Snapshot is one script text state of a project. TS is when it was captured.
type Snapshot struct {
	Key  string
	Text string
	TS   time.Time
}

func (s Snapshot) size() int { return len(s.Text) }

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerKey limits the undo depth per key (0 means unlimited).
	MaxPerKey int
	// MinInterval coalesces edits recorded within the interval for the same key: the
	// earlier state is kept so one undo reverts the whole burst.
	MinInterval time.Duration
}

// Manager provides in-memory undo/redo stacks per key.
// It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// last is when each key was last recorded, for coalescing.
	last       map[string]time.Time
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{
		cfg:  cfg,
		undo: make(map[string][]Snapshot),
		redo: make(map[string][]Snapshot),
		last: make(map[string]time.Time),
	}
}

// Record stores before, the state a change is about to replace. Any pending redo for the key is dropped.
func (m *Manager) Record(before Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := before.Key
	m.dropRedoLocked(k)
	prev, seen := m.last[k]
	m.last[k] = before.TS
	if seen && len(m.undo[k]) > 0 && m.cfg.MinInterval > 0 && before.TS.Sub(prev) < m.cfg.MinInterval {
		return
	}
	m.undo[k] = append(m.undo[k], before)
	m.totalBytes += before.size()
	m.enforceCapsLocked(k)
}

// Undo returns the previous state of key and remembers current for Redo.
func (m *Manager) Undo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := current.Key
	stack := m.undo[k]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[k] = stack[:len(stack)-1]
	m.totalBytes -= s.size()
	m.redo[k] = append(m.redo[k], current)
	m.totalBytes += current.size()
	delete(m.last, k)
	return s, true
}

// Redo returns the state undone last and remembers current for Undo.
func (m *Manager) Redo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := current.Key
	r := m.redo[k]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[k] = r[:len(r)-1]
	m.totalBytes -= s.size()
	m.undo[k] = append(m.undo[k], current)
	m.totalBytes += current.size()
	delete(m.last, k)
	m.enforceCapsLocked(k)
	return s, true
}

// Depth returns how many undo and redo steps key has.
func (m *Manager) Depth(key string) (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[key]), len(m.redo[key])
}

// Clear drops both stacks of key.
func (m *Manager) Clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[key] {
		m.totalBytes -= s.size()
	}
	m.dropRedoLocked(key)
	delete(m.undo, key)
	delete(m.last, key)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

func (m *Manager) dropRedoLocked(k string) {
	for _, s := range m.redo[k] {
		m.totalBytes -= s.size()
	}
	delete(m.redo, k)
}

func (m *Manager) enforceCapsLocked(k string) {
	if m.cfg.MaxPerKey > 0 {
		stack := m.undo[k]
		if len(stack) > m.cfg.MaxPerKey {
			toDrop := len(stack) - m.cfg.MaxPerKey
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= stack[i].size()
			}
			m.undo[k] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune the oldest undo entry across all keys.
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestKey := ""
		found := false
		var oldestTS time.Time
		for key, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestKey, oldestTS, found = key, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestKey]
		m.totalBytes -= stack[0].size()
		m.undo[oldestKey] = stack[1:]
		if len(m.undo[oldestKey]) == 0 {
			delete(m.undo, oldestKey)
		}
	}
}
