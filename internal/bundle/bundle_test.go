/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"scriptdeck/internal/script"
	"scriptdeck/internal/storage"
)

func newStore(t *testing.T) *storage.FileStore {
	t.Helper()
	s, err := storage.NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestExportAndInstall(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	for _, title := range []string{"雨夜", "晴天"} {
		scenes := []script.Scene{script.Normalize(script.Scene{Number: 1, Description: title})}
		p := &storage.Project{Title: title, Script: script.Format(scenes), Scenes: scenes}
		if err := src.Save(ctx, p); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	var buf bytes.Buffer
	n, err := Export(ctx, src, &buf)
	if err != nil || n != 2 {
		t.Fatalf("Export: n=%d err=%v", n, err)
	}

	dst := newStore(t)
	r := bytes.NewReader(buf.Bytes())
	got, err := Install(ctx, dst, r, int64(buf.Len()), nil)
	if err != nil || got != 2 {
		t.Fatalf("Install: n=%d err=%v", got, err)
	}
	list, _ := dst.List(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(list))
	}
	srcList, _ := src.List(ctx)
	for _, p := range srcList {
		q, err := dst.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("project %s missing after install: %v", p.ID, err)
		}
		if q.Title != p.Title || len(q.Scenes) != 1 || q.Scenes[0].Description != p.Title || q.Script != p.Script {
			t.Fatalf("project content differs: %+v", q)
		}
	}

	// A second install skips everything.
	again, err := Install(ctx, dst, r, int64(buf.Len()), nil)
	if err != nil || again != 0 {
		t.Fatalf("second Install: n=%d err=%v", again, err)
	}
}

func TestInstallSkipsForeignEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"../evil.json", "projects/../../x.json", "other/readme.txt"} {
		w, _ := zw.Create(name)
		_, _ = w.Write([]byte(`{"id":"x","title":"x"}`))
	}
	_ = zw.Close()

	dst := newStore(t)
	n, err := Install(context.Background(), dst, bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
	if err != nil || n != 0 {
		t.Fatalf("Install: n=%d err=%v", n, err)
	}
}

func TestInstallRejectsBrokenProject(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("projects/a.json")
	_, _ = w.Write([]byte(`{not json`))
	_ = zw.Close()
	if _, err := Install(context.Background(), newStore(t), bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestInstallRejectsNonZip(t *testing.T) {
	data := []byte("not a zip")
	if _, err := Install(context.Background(), newStore(t), bytes.NewReader(data), int64(len(data)), nil); err == nil {
		t.Fatalf("expected error for non-zip input")
	}
}

func TestInstallReconcilesEditedScript(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := map[string]string{
		// script edited by hand, scenes stale
		"projects/a.json": `{"id":"a","title":"改过","script":"场景1\n场景描述：新的街道\n对白：无","scenes":[{"sceneNumber":1,"description":"旧的"}]}`,
		// scenes only
		"projects/b.json": `{"id":"b","title":"只有场景","scenes":[{"sceneNumber":7,"description":"码头"}]}`,
	}
	for name, body := range entries {
		w, _ := zw.Create(name)
		_, _ = w.Write([]byte(body))
	}
	_ = zw.Close()

	ctx := context.Background()
	dst := newStore(t)
	if n, err := Install(ctx, dst, bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil); err != nil || n != 2 {
		t.Fatalf("Install: n=%d err=%v", n, err)
	}
	for _, id := range []string{"a", "b"} {
		p, err := dst.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if p.Script != script.Format(p.Scenes) {
			t.Fatalf("project %s script does not match scenes:\n%s\n%+v", id, p.Script, p.Scenes)
		}
	}
	a, _ := dst.Get(ctx, "a")
	if a.Scenes[0].Description != "新的街道" || a.Scenes[0].Dialogue != "无对白" {
		t.Fatalf("script did not win: %+v", a.Scenes)
	}
	b, _ := dst.Get(ctx, "b")
	if b.Scenes[0].Number != 1 || b.Scenes[0].Action != "未指定" {
		t.Fatalf("scenes not normalized: %+v", b.Scenes)
	}
}
