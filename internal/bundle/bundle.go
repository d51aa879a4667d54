/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package bundle moves projects between stores as a single zip archive.
package bundle

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	applog "scriptdeck/internal/log"
	"scriptdeck/internal/script"
	"scriptdeck/internal/storage"
	"scriptdeck/internal/version"
)

const (
	ManifestName = "bundle.manifest.txt"
	projectsDir  = "projects/"
	maxEntrySize = 32 << 20
)

// Export writes every project of st to w as projects/<id>.json plus a human-readable manifest.
// It returns the number of projects written.
func Export(ctx context.Context, st storage.Store, w io.Writer) (int, error) {
	l := applog.WithOperation(applog.WithComponent("bundle"), "export")
	ps, err := st.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list projects: %w", err)
	}
	zw := zip.NewWriter(w)

	var b strings.Builder
	fmt.Fprintf(&b, "scriptdeck project bundle\nCreated: %s\nVersion: %s\nProjects: %d\n\n", time.Now().Format(time.RFC3339), version.String(), len(ps))
	for _, p := range ps {
		fmt.Fprintf(&b, "%s  %s\n", p.ID, p.Title)
	}
	mw, err := zw.Create(ManifestName)
	if err != nil {
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(mw, b.String()); err != nil {
		return 0, fmt.Errorf("write manifest: %w", err)
	}

	for i, p := range ps {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return i, fmt.Errorf("marshal %s: %w", p.ID, err)
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: projectsDir + p.ID + ".json", Method: zip.Deflate, Modified: p.LastModified})
		if err != nil {
			return i, fmt.Errorf("add %s: %w", p.ID, err)
		}
		if _, err := fw.Write(data); err != nil {
			return i, fmt.Errorf("write %s: %w", p.ID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return len(ps), fmt.Errorf("finish zip: %w", err)
	}
	l.Info("bundle exported", slog.Int("projects", len(ps)))
	return len(ps), nil
}

// Install reads a bundle and saves its projects into st. Projects whose id already
// exists in st are skipped, never overwritten. Each project's script is reparsed with
// schema (nil means script.Default) so its text and scenes agree. It returns how many
// were installed.
func Install(ctx context.Context, st storage.Store, r io.ReaderAt, size int64, schema *script.Schema) (int, error) {
	l := applog.WithOperation(applog.WithComponent("bundle"), "install")
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open bundle: %w", err)
	}
	installed := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return installed, err
		}
		name := f.Name
		if name == ManifestName || f.FileInfo().IsDir() {
			continue
		}
		if !strings.HasPrefix(name, projectsDir) || path.Ext(name) != ".json" || strings.Contains(name, "..") {
			l.Warn("skip foreign entry", slog.String("name", name))
			continue
		}
		p, err := readProject(f)
		if err != nil {
			return installed, err
		}
		if p.ID != "" {
			if _, err := st.Get(ctx, p.ID); err == nil {
				l.Warn("skip existing project", slog.String("id", p.ID))
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				return installed, err
			}
		}
		p.Canonicalize(schema)
		if err := st.Save(ctx, p); err != nil {
			return installed, fmt.Errorf("save %s: %w", name, err)
		}
		installed++
	}
	l.Info("bundle installed", slog.Int("projects", installed))
	return installed, nil
}

func readProject(f *zip.File) (*storage.Project, error) {
	if f.UncompressedSize64 > maxEntrySize {
		return nil, fmt.Errorf("%s: entry too large", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	var p storage.Project
	if err := json.NewDecoder(io.LimitReader(rc, maxEntrySize)).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return &p, nil
}
