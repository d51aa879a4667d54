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
	"fmt"
	"strings"
	"time"

	"scriptdeck/internal/script"
)

// Labels holds every fixed string the mapper writes onto slides.
type Labels struct {
	Subtitle      string // cover subtitle, also used in file names
	Overview      string
	Scene         string // printf pattern with the scene number
	DialogueTitle string // printf pattern with the scene number
	Description   string
	Action        string
	Camera        string
	Shots         string
	Effects       string
	Dialogue      string
	Duration      string
	Music         string
	Empty         string // shown for an empty section
	NoDialogue    string
	Unspecified   string
	Delimiter     string // marks "name：line" dialogue lines
	DateLayout    string
	FileSuffix    string
	Untitled      string
}

var ChineseLabels = Labels{
	Subtitle:      "视频脚本",
	Overview:      "场景概述",
	Scene:         "场景 %d",
	DialogueTitle: "场景 %d - 对白",
	Description:   "场景描述",
	Action:        "动作指示",
	Camera:        "镜头建议",
	Shots:         "镜头",
	Effects:       "视觉效果",
	Dialogue:      "对白",
	Duration:      "时长",
	Music:         "背景音乐",
	Empty:         "暂无内容",
	NoDialogue:    "暂无对白",
	Unspecified:   "未指定",
	Delimiter:     "：",
	DateLayout:    "2006/1/2",
	FileSuffix:    "视频脚本",
	Untitled:      "untitled",
}

var EnglishLabels = Labels{
	Subtitle:      "Video Script",
	Overview:      "Scene Overview",
	Scene:         "Scene %d",
	DialogueTitle: "Scene %d - Dialogue",
	Description:   "Description",
	Action:        "Action",
	Camera:        "Camera",
	Shots:         "Shots",
	Effects:       "Visual Effects",
	Dialogue:      "Dialogue",
	Duration:      "Duration",
	Music:         "Music",
	Empty:         "n/a",
	NoDialogue:    "no dialogue",
	Unspecified:   "unspecified",
	Delimiter:     ":",
	DateLayout:    "2006-01-02",
	FileSuffix:    "video_script",
	Untitled:      "untitled",
}

// LabelsFor picks the slide labels matching a script schema.
func LabelsFor(s *script.Schema) Labels {
	if s == script.English {
		return EnglishLabels
	}
	return ChineseLabels
}

// PreviewRunes is the overview truncation budget.
const PreviewRunes = 50

// Slide geometry for a 10in x 5.625in page.
var (
	headerBox = Box{X: 0.5, Y: 0.5, W: 9, H: 0.8}
	bodyBox   = Box{X: 0.5, Y: 1.5, W: 9, H: 3.5}
	footerBox = Box{X: 0.5, Y: 4.5, W: 9, H: 0.8}
)

// Mapper lays out slides. The zero value is not usable; use NewMapper.
type Mapper struct {
	Theme  Theme
	Labels Labels
}

func NewMapper(labels Labels) *Mapper { return &Mapper{Theme: DefaultTheme, Labels: labels} }

// MapScenes emits a cover, an overview, and a detail plus dialogue slide per scene.
func (m *Mapper) MapScenes(doc Document, title string, scenes []script.Scene, date time.Time) error {
	if len(scenes) == 0 {
		return ErrNoScenes
	}
	doc.SetTheme(m.Theme)
	m.cover(doc, title, m.Labels.Subtitle, date)

	items := make([]Run, 0, len(scenes))
	for i, sc := range scenes {
		text := fmt.Sprintf(m.Labels.Scene+": %s\n%s: %s", i+1, Truncate(sc.Description, PreviewRunes), m.Labels.Dialogue, Truncate(sc.Dialogue, PreviewRunes))
		items = append(items, Run{Text: text, Style: Style{Bullet: BulletNumber}})
	}
	m.overview(doc, m.Labels.Overview, items)

	for i, sc := range scenes {
		n := i + 1
		m.sections(doc, fmt.Sprintf(m.Labels.Scene, n), []section{
			{m.Labels.Description, []string{sc.Description}},
			{m.Labels.Action, []string{sc.Action}},
			{m.Labels.Camera, []string{sc.CameraShot}},
		})
		m.dialogue(doc, fmt.Sprintf(m.Labels.DialogueTitle, n), splitLines(sc.Dialogue), []string{
			m.Labels.Duration + m.Labels.Delimiter + orDefault(sc.Duration, m.Labels.Unspecified),
			m.Labels.Music + m.Labels.Delimiter + orDefault(sc.BGM, m.Labels.Unspecified),
		})
	}
	return nil
}

func (m *Mapper) cover(doc Document, title, subtitle string, date time.Time) {
	s := doc.AddSlide()
	s.AddText([]Run{{Text: orDefault(title, m.Labels.Untitled)}}, TextOptions{
		Box:   Box{X: 0.5, Y: 2, W: 9, H: 1},
		Style: Style{FontSize: 44, Color: m.Theme.Accent.Color, Bold: true, Align: AlignCenter},
	})
	s.AddText([]Run{{Text: subtitle}}, TextOptions{
		Box:   Box{X: 0.5, Y: 3.2, W: 9, H: 0.5},
		Style: Style{FontSize: 24, Color: m.Theme.Subtitle.Color, Align: AlignCenter},
	})
	s.AddText([]Run{{Text: date.Format(m.Labels.DateLayout)}}, TextOptions{
		Box:   Box{X: 0.5, Y: 4, W: 9, H: 0.5},
		Style: Style{FontSize: 16, Color: m.Theme.Subtitle.Color, Align: AlignCenter},
	})
}

func (m *Mapper) overview(doc Document, title string, items []Run) {
	s := doc.AddSlide()
	s.AddText([]Run{{Text: title}}, TextOptions{Box: headerBox, Style: m.Theme.Title})
	body := m.Theme.Body
	body.LineSpacing = 32
	s.AddText(items, TextOptions{Box: bodyBox, Style: body})
}

type section struct {
	heading string
	lines   []string
}

// sections writes a heading + body pair per section, stacked 1.3in apart.
func (m *Mapper) sections(doc Document, title string, secs []section) {
	s := doc.AddSlide()
	s.AddText([]Run{{Text: title}}, TextOptions{Box: headerBox, Style: m.Theme.Title})
	y := 1.5
	for _, sec := range secs {
		s.AddText([]Run{{Text: sec.heading}}, TextOptions{
			Box:   Box{X: 0.5, Y: y, W: 9, H: 0.4},
			Style: Style{FontSize: m.Theme.Subtitle.FontSize, Color: m.Theme.Accent.Color, Bold: true},
		})
		var runs []Run
		for _, l := range sec.lines {
			if strings.TrimSpace(l) != "" {
				runs = append(runs, Run{Text: l})
			}
		}
		if len(runs) == 0 {
			runs = []Run{{Text: m.Labels.Empty}}
		}
		if len(runs) > 1 {
			for i := range runs {
				runs[i].Style.Bullet = BulletDot
			}
		}
		body := m.Theme.Body
		body.LineSpacing = 16
		s.AddText(runs, TextOptions{Box: Box{X: 0.5, Y: y + 0.4, W: 9, H: 0.8}, Style: body})
		y += 1.3
	}
}

// dialogue writes one run per line, bulleting "name：line" lines, with an italic footer.
func (m *Mapper) dialogue(doc Document, title string, lines, footer []string) {
	s := doc.AddSlide()
	s.AddText([]Run{{Text: title}}, TextOptions{Box: headerBox, Style: m.Theme.Title})
	if len(lines) == 0 {
		lines = []string{m.Labels.NoDialogue}
	}
	runs := make([]Run, 0, len(lines))
	for _, l := range lines {
		r := Run{Text: l}
		if strings.Contains(l, m.Labels.Delimiter) {
			r.Style.Bullet = BulletDot
			r.Style.Indent = 10.0 / 72
		}
		runs = append(runs, r)
	}
	body := m.Theme.Body
	body.LineSpacing = 32
	s.AddText(runs, TextOptions{Box: Box{X: 0.5, Y: 1.5, W: 9, H: 3}, Style: body})
	if len(footer) > 0 {
		fr := make([]Run, len(footer))
		for i, f := range footer {
			fr[i] = Run{Text: f}
		}
		s.AddText(fr, TextOptions{Box: footerBox, Style: Style{FontSize: 14, Color: m.Theme.Subtitle.Color, Italic: true}})
	}
}

// Truncate cuts s to n runes and appends "..." when something was cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
