/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package deck

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applog "scriptdeck/internal/log"
	"scriptdeck/internal/script"
)

var (
	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptdeck_deck_exports_total",
			Help: "Deck exports by output format and outcome.",
		},
		[]string{"format", "status"},
	)
	exportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scriptdeck_deck_export_duration_seconds",
			Help:    "Time spent laying out and writing a deck.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// FileName builds "<title>_<suffix>_<YYYY-MM-DD><ext>". Path separators and
// characters that are unsafe in file names become "_".
func FileName(title string, l Labels, now time.Time, ext string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	clean = strings.Trim(clean, ". ")
	if clean == "" {
		clean = l.Untitled
	}
	return fmt.Sprintf("%s_%s_%s%s", clean, l.FileSuffix, now.Format("2006-01-02"), ext)
}

// ExportScenes lays out scenes with m and writes the deck into outDir.
// It returns the path of the written file.
func ExportScenes(w Writer, m *Mapper, outDir, title string, scenes []script.Scene, now time.Time) (string, error) {
	if len(scenes) == 0 {
		return "", ErrNoScenes
	}
	return export(w, m, outDir, title, now, func(doc Document) error {
		return m.MapScenes(doc, title, scenes, now)
	})
}

// ExportStructure validates st and writes its deck into outDir.
// An invalid outline fails before any file is created.
func ExportStructure(w Writer, m *Mapper, outDir string, st *Structure, now time.Time) (string, error) {
	if err := st.Validate(); err != nil {
		return "", err
	}
	return export(w, m, outDir, st.Title, now, func(doc Document) error {
		return m.MapStructure(doc, st, now)
	})
}

// export builds the whole deck in memory, writes it to a temp file next to the
// target and renames it into place. On any failure the temp file is removed.
func export(w Writer, m *Mapper, outDir, title string, now time.Time, fill func(Document) error) (path string, err error) {
	start := time.Now()
	format := strings.TrimPrefix(w.Ext(), ".")
	log := applog.WithOperation(applog.WithComponent("deck"), "export")
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		exportsTotal.WithLabelValues(format, status).Inc()
		exportDuration.Observe(time.Since(start).Seconds())
	}()

	doc, err := w.NewDocument(Meta{Title: orDefault(title, m.Labels.Untitled), Subject: m.Labels.Subtitle, Author: "scriptdeck", Created: now})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := fill(doc); err != nil {
		return "", err
	}

	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: ensure out dir: %v", ErrSerialization, err)
	}
	path = filepath.Join(outDir, FileName(title, m.Labels, now, w.Ext()))

	tmp, err := os.CreateTemp(outDir, ".deck-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	tmpName := tmp.Name()
	fail := func(stage string, cause error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		log.Error("deck export failed", slog.String("stage", stage), slog.String("path", path), slog.Any("err", cause))
		return "", fmt.Errorf("%w: %s: %w", ErrSerialization, stage, cause)
	}
	n, err := doc.WriteTo(tmp)
	if err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: close: %w", ErrSerialization, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: rename: %w", ErrSerialization, err)
	}
	log.Info("deck exported", slog.String("path", path), slog.Int64("bytes", n))
	return path, nil
}

// IsStructureError reports whether err came from outline validation.
func IsStructureError(err error) bool {
	var se *StructureError
	return errors.As(err, &se)
}
