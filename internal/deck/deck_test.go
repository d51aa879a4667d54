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
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	applog "scriptdeck/internal/log"
	"scriptdeck/internal/script"
)

// recorder is a Document that keeps every call for inspection.
type recorder struct {
	calls  int
	themed bool
	slides []*recSlide
}

type recSlide struct{ blocks []recBlock }

type recBlock struct {
	runs []Run
	opts TextOptions
}

func (r *recorder) SetTheme(Theme) { r.calls++; r.themed = true }

func (r *recorder) AddSlide() Slide {
	r.calls++
	s := &recSlide{}
	r.slides = append(r.slides, s)
	return s
}

func (r *recorder) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, "deck")
	return int64(n), err
}

func (s *recSlide) AddText(runs []Run, opts TextOptions) {
	s.blocks = append(s.blocks, recBlock{runs: append([]Run(nil), runs...), opts: opts})
}

func (s *recSlide) text() string {
	var b strings.Builder
	for _, bl := range s.blocks {
		for _, r := range bl.runs {
			b.WriteString(r.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

type recWriter struct {
	doc     *recorder
	failOut bool
}

func (w *recWriter) Ext() string { return ".rec" }

func (w *recWriter) NewDocument(Meta) (Document, error) {
	w.doc = &recorder{}
	if w.failOut {
		return failingDoc{w.doc}, nil
	}
	return w.doc, nil
}

type failingDoc struct{ *recorder }

func (failingDoc) WriteTo(io.Writer) (int64, error) { return 0, errors.New("disk full") }

var day = time.Date(2025, 3, 9, 15, 4, 5, 0, time.UTC)

func sampleScenes() []script.Scene {
	long := strings.Repeat("雨", 60)
	return []script.Scene{
		script.Normalize(script.Scene{Number: 1, Description: long, Dialogue: "小明：你好\n（沉默）\n小红：再见", Action: "握手"}),
		script.Normalize(script.Scene{Number: 2, Description: "清晨", Duration: "5秒"}),
	}
}

func TestMapScenesSlideSequence(t *testing.T) {
	doc := &recorder{}
	m := NewMapper(ChineseLabels)
	if err := m.MapScenes(doc, "雨夜", sampleScenes(), day); err != nil {
		t.Fatalf("MapScenes() error: %v", err)
	}
	if !doc.themed {
		t.Fatalf("theme not applied")
	}
	if len(doc.slides) != 6 {
		t.Fatalf("expected cover, overview and 2 slides per scene, got %d", len(doc.slides))
	}

	cover := doc.slides[0].text()
	if cover != "雨夜\n视频脚本\n2025/3/9\n" {
		t.Fatalf("cover = %q", cover)
	}

	overview := doc.slides[1]
	if overview.blocks[0].runs[0].Text != "场景概述" {
		t.Fatalf("overview title = %q", overview.blocks[0].runs[0].Text)
	}
	items := overview.blocks[1].runs
	if len(items) != 2 || items[0].Style.Bullet != BulletNumber {
		t.Fatalf("overview items = %+v", items)
	}
	wantPrefix := "场景 1: " + strings.Repeat("雨", 50) + "...\n对白: "
	if !strings.HasPrefix(items[0].Text, wantPrefix) {
		t.Fatalf("overview item = %q", items[0].Text)
	}

	detail := doc.slides[4].text()
	for _, want := range []string{"场景 2\n", "场景描述\n清晨\n", "动作指示\n未指定\n", "镜头建议\n"} {
		if !strings.Contains(detail, want) {
			t.Fatalf("detail slide missing %q:\n%s", want, detail)
		}
	}
}

func TestDialogueSlide(t *testing.T) {
	doc := &recorder{}
	if err := NewMapper(ChineseLabels).MapScenes(doc, "t", sampleScenes(), day); err != nil {
		t.Fatal(err)
	}
	dlg := doc.slides[3]
	if dlg.blocks[0].runs[0].Text != "场景 1 - 对白" {
		t.Fatalf("dialogue title = %q", dlg.blocks[0].runs[0].Text)
	}
	lines := dlg.blocks[1].runs
	if len(lines) != 3 {
		t.Fatalf("expected 3 dialogue runs, got %+v", lines)
	}
	if lines[0].Style.Bullet != BulletDot || lines[1].Style.Bullet != BulletNone || lines[2].Style.Bullet != BulletDot {
		t.Fatalf("bullets only belong to name：line runs: %+v", lines)
	}
	footer := dlg.blocks[2]
	if !footer.opts.Style.Italic || footer.runs[0].Text != "时长：未指定" || footer.runs[1].Text != "背景音乐：未指定" {
		t.Fatalf("footer = %+v", footer)
	}

	second := doc.slides[5].text()
	if !strings.Contains(second, "无对白\n") || !strings.Contains(second, "时长：5秒") {
		t.Fatalf("second dialogue slide = %q", second)
	}
}

func TestMapScenesRejectsEmpty(t *testing.T) {
	doc := &recorder{}
	if err := NewMapper(ChineseLabels).MapScenes(doc, "t", nil, day); !errors.Is(err, ErrNoScenes) {
		t.Fatalf("expected ErrNoScenes, got %v", err)
	}
	if doc.calls != 0 {
		t.Fatalf("deck touched for empty scene list")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("短", 50); got != "短" {
		t.Fatalf("Truncate short = %q", got)
	}
	exact := strings.Repeat("字", 50)
	if got := Truncate(exact, 50); got != exact {
		t.Fatalf("exact length truncated")
	}
	if got := Truncate(exact+"多", 50); got != exact+"..." {
		t.Fatalf("Truncate long = %q", got)
	}
}

func TestNormalizeColor(t *testing.T) {
	cases := map[string]string{
		"409eff":   "409EFF",
		"#363636":  "363636",
		"accent":   "409EFF",
		"Title":    "363636",
		"white":    "FFFFFF",
		"magenta":  "000000",
		"#12345":   "000000",
		"zzzzzz":   "000000",
		"":         "000000",
		" #abcdef": "ABCDEF",
	}
	for in, want := range cases {
		if got := NormalizeColor(in); got != want {
			t.Fatalf("NormalizeColor(%q) = %q, want %q", in, got, want)
		}
	}
	if r, g, b := RGB("accent"); r != 0x40 || g != 0x9E || b != 0xFF {
		t.Fatalf("RGB(accent) = %d,%d,%d", r, g, b)
	}
}

func TestStyleMerge(t *testing.T) {
	got := Style{Italic: true}.Merge(Style{FontSize: 16, Color: "body", Align: AlignCenter})
	if got.FontSize != 16 || got.Color != "body" || !got.Italic || got.Align != AlignCenter {
		t.Fatalf("Merge() = %+v", got)
	}
}

func TestFileName(t *testing.T) {
	cases := []struct{ title, want string }{
		{"雨夜", "雨夜_视频脚本_2025-03-09.pdf"},
		{"", "untitled_视频脚本_2025-03-09.pdf"},
		{"  ", "untitled_视频脚本_2025-03-09.pdf"},
		{"a/b:c?", "a_b_c__视频脚本_2025-03-09.pdf"},
		{"../..", "__视频脚本_2025-03-09.pdf"},
	}
	for _, tc := range cases {
		if got := FileName(tc.title, ChineseLabels, day, ".pdf"); got != tc.want {
			t.Fatalf("FileName(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestPDFWriterProducesPDF(t *testing.T) {
	w := PDFWriter{}
	doc, err := w.NewDocument(Meta{Title: "Harbor", Created: day})
	if err != nil {
		t.Fatalf("NewDocument() error: %v", err)
	}
	m := NewMapper(EnglishLabels)
	scenes := []script.Scene{script.English.Normalize(script.Scene{Number: 1, Description: "A quiet harbor at dawn", Dialogue: "Ann: hi\nBen: hello"})}
	if err := m.MapScenes(doc, "Harbor", scenes, day); err != nil {
		t.Fatalf("MapScenes() error: %v", err)
	}
	var buf bytes.Buffer
	n, err := doc.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo() error: %v", err)
	}
	if n != int64(buf.Len()) || !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF (%d bytes)", n)
	}
}

func TestPDFWriterWarnsAboutMissingCJKGlyphs(t *testing.T) {
	var logs bytes.Buffer
	applog.Init(applog.Options{Level: "warn", Writer: &logs})
	t.Cleanup(func() { applog.Init(applog.Options{}) })

	scenes := []script.Scene{script.Normalize(script.Scene{Number: 1, Description: "雨夜的街道", Dialogue: "甲：你好"})}
	render := func(w PDFWriter) {
		doc, err := w.NewDocument(Meta{Title: "雨夜", Created: day})
		if err != nil {
			t.Fatalf("NewDocument() error: %v", err)
		}
		if err := NewMapper(ChineseLabels).MapScenes(doc, "雨夜", scenes, day); err != nil {
			t.Fatalf("MapScenes() error: %v", err)
		}
		if _, err := doc.WriteTo(io.Discard); err != nil {
			t.Fatalf("WriteTo() error: %v", err)
		}
	}

	render(PDFWriter{})
	if n := strings.Count(logs.String(), "deck.font_file"); n != 1 {
		t.Fatalf("want exactly one font warning, got %d:\n%s", n, logs.String())
	}

	logs.Reset()
	doc, err := PDFWriter{}.NewDocument(Meta{Title: "Harbor"})
	if err != nil {
		t.Fatalf("NewDocument() error: %v", err)
	}
	doc.AddSlide().AddText([]Run{{Text: "A quiet harbor"}}, TextOptions{})
	if logs.Len() != 0 {
		t.Fatalf("latin text should not warn:\n%s", logs.String())
	}
}

func TestPDFWriterMissingFont(t *testing.T) {
	w := PDFWriter{FontFile: filepath.Join(t.TempDir(), "missing.ttf")}
	if _, err := w.NewDocument(Meta{}); err == nil {
		t.Fatalf("expected error for missing font file")
	}
}

func TestExportScenesWritesFileAtomically(t *testing.T) {
	dir := t.TempDir()
	w := &recWriter{}
	path, err := ExportScenes(w, NewMapper(ChineseLabels), dir, "雨夜", sampleScenes(), day)
	if err != nil {
		t.Fatalf("ExportScenes() error: %v", err)
	}
	if filepath.Base(path) != "雨夜_视频脚本_2025-03-09.rec" {
		t.Fatalf("path = %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "deck" {
		t.Fatalf("content = %q, err %v", b, err)
	}
	assertOnlyFiles(t, dir, filepath.Base(path))
}

func TestExportFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := ExportScenes(&recWriter{failOut: true}, NewMapper(ChineseLabels), dir, "t", sampleScenes(), day)
	if !errors.Is(err, ErrSerialization) {
		t.Fatalf("expected ErrSerialization, got %v", err)
	}
	assertOnlyFiles(t, dir)
}

func TestExportRejectsEmptySceneList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := &recWriter{}
	if _, err := ExportScenes(w, NewMapper(ChineseLabels), dir, "t", nil, day); !errors.Is(err, ErrNoScenes) {
		t.Fatalf("expected ErrNoScenes, got %v", err)
	}
	if w.doc != nil {
		t.Fatalf("document created for empty export")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("output dir created for empty export")
	}
}

func assertOnlyFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if strings.Join(got, ",") != strings.Join(names, ",") {
		t.Fatalf("dir contains %v, want %v", got, names)
	}
}
