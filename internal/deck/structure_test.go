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
	"strings"
	"testing"
)

const validOutline = `{
  "title": "雨夜",
  "slides": [
    {"type": "cover", "content": {"title": "雨夜", "subtitle": "短片脚本"}},
    {"type": "overview", "content": {}},
    {"type": "scene", "content": {
      "title": "街角",
      "description": "雨夜的街道",
      "shots": ["远景", "特写"],
      "dialogues": [{"character": "小明", "line": "你好"}, "（雷声）"],
      "visualEffects": ["雨滴慢动作"]
    }}
  ]
}`

func TestParseStructureAcceptsValidOutline(t *testing.T) {
	st, err := ParseStructure([]byte(validOutline))
	if err != nil {
		t.Fatalf("ParseStructure() error: %v", err)
	}
	doc := &recorder{}
	if err := NewMapper(ChineseLabels).MapStructure(doc, st, day); err != nil {
		t.Fatalf("MapStructure() error: %v", err)
	}
	if len(doc.slides) != 4 {
		t.Fatalf("expected cover, overview, detail and dialogue slides, got %d", len(doc.slides))
	}
	if got := doc.slides[0].text(); !strings.HasPrefix(got, "雨夜\n短片脚本\n") {
		t.Fatalf("cover = %q", got)
	}
	if got := doc.slides[1].blocks[1].runs[0].Text; got != "街角\n雨夜的街道" {
		t.Fatalf("overview item = %q", got)
	}
	detail := doc.slides[2].text()
	for _, want := range []string{"镜头\n远景\n特写\n", "视觉效果\n雨滴慢动作\n"} {
		if !strings.Contains(detail, want) {
			t.Fatalf("detail slide missing %q:\n%s", want, detail)
		}
	}
	dlg := doc.slides[3].blocks[1].runs
	if dlg[0].Text != "小明：你好" || dlg[0].Style.Bullet != BulletDot || dlg[1].Style.Bullet != BulletNone {
		t.Fatalf("dialogue runs = %+v", dlg)
	}
}

func TestStructureMissingOverviewIsRejectedBeforeAnyCall(t *testing.T) {
	st := &Structure{
		Title: "雨夜",
		Slides: []StructureSlide{
			{Type: TypeCover, Content: map[string]any{}},
			{Type: TypeScene, Content: map[string]any{
				"title": "a", "description": "b", "shots": []any{"c"}, "dialogues": []any{"d"},
			}},
		},
	}
	doc := &recorder{}
	err := NewMapper(ChineseLabels).MapStructure(doc, st, day)
	if !errors.Is(err, ErrStructureInvalid) {
		t.Fatalf("expected ErrStructureInvalid, got %v", err)
	}
	if doc.calls != 0 {
		t.Fatalf("deck received %d calls for an invalid outline", doc.calls)
	}
	if !strings.Contains(err.Error(), "no overview slide") {
		t.Fatalf("error does not name the problem: %v", err)
	}
}

func TestParseStructureReportsEveryProblem(t *testing.T) {
	cases := map[string]struct {
		json string
		want []string
	}{
		"empty title and missing parts": {
			`{"title": " ", "slides": [{"type": "scene", "content": {"title": "", "description": "d", "shots": [], "dialogues": ["x"]}}]}`,
			[]string{"title is empty", "scene title is empty", "scene shots is empty", "no cover slide", "no overview slide"},
		},
		"shots not a list": {
			`{"title": "t", "slides": [{"type": "cover"}, {"type": "overview"}, {"type": "scene", "content": {"title": "a", "description": "b", "shots": "wide", "dialogues": ["x"]}}]}`,
			[]string{"shots"},
		},
		"unknown type": {
			`{"title": "t", "slides": [{"type": "outro"}]}`,
			[]string{"type"},
		},
		"not json": {
			`{"title": `,
			[]string{"not valid JSON"},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStructure([]byte(tc.json))
			var se *StructureError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StructureError, got %v", err)
			}
			msg := err.Error()
			for _, w := range tc.want {
				if !strings.Contains(msg, w) {
					t.Fatalf("error %q does not mention %q", msg, w)
				}
			}
			if !IsStructureError(err) {
				t.Fatalf("IsStructureError() = false")
			}
		})
	}
}

func TestExportStructureInvalidCreatesNoFile(t *testing.T) {
	dir := t.TempDir()
	w := &recWriter{}
	_, err := ExportStructure(w, NewMapper(ChineseLabels), dir, &Structure{Title: "t"}, day)
	if !errors.Is(err, ErrStructureInvalid) {
		t.Fatalf("expected ErrStructureInvalid, got %v", err)
	}
	if w.doc != nil {
		t.Fatalf("document created for invalid outline")
	}
	assertOnlyFiles(t, dir)
}
