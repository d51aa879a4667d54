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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Slide types accepted in a Structure.
const (
	TypeCover    = "cover"
	TypeOverview = "overview"
	TypeScene    = "scene"
)

// Structure is a slide outline produced outside the scene parser, usually by a model.
type Structure struct {
	Title  string           `json:"title"`
	Slides []StructureSlide `json:"slides"`
}

type StructureSlide struct {
	Type    string         `json:"type"`
	Content map[string]any `json:"content"`
}

// StructureError lists every problem found in a Structure.
type StructureError struct {
	Problems []string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("%v: %s", ErrStructureInvalid, strings.Join(e.Problems, "; "))
}

func (e *StructureError) Unwrap() error { return ErrStructureInvalid }

// structureSchema checks types only. Cardinality and emptiness are checked in Validate.
const structureSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "slides"],
  "properties": {
    "title": {"type": "string"},
    "slides": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string", "enum": ["cover", "overview", "scene"]},
          "content": {
            "type": "object",
            "properties": {
              "title": {"type": "string"},
              "subtitle": {"type": "string"},
              "description": {"type": "string"},
              "shots": {"type": "array"},
              "dialogues": {"type": "array"},
              "visualEffects": {"type": "array"},
              "items": {"type": "array"}
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(structureSchema))
})

// ParseStructure decodes and validates a JSON slide outline.
func ParseStructure(data []byte) (*Structure, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile structure schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &StructureError{Problems: []string{"not valid JSON: " + err.Error()}}
	}
	if !res.Valid() {
		probs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			probs = append(probs, e.String())
		}
		return nil, &StructureError{Problems: probs}
	}
	var st Structure
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &StructureError{Problems: []string{err.Error()}}
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Validate reports every rule the outline breaks, or nil.
func (st *Structure) Validate() error {
	var probs []string
	if strings.TrimSpace(st.Title) == "" {
		probs = append(probs, "title is empty")
	}
	count := map[string]int{}
	for i, sl := range st.Slides {
		count[sl.Type]++
		switch sl.Type {
		case TypeCover, TypeOverview:
		case TypeScene:
			for _, k := range []string{"title", "description"} {
				if s, _ := sl.Content[k].(string); strings.TrimSpace(s) == "" {
					probs = append(probs, fmt.Sprintf("slides[%d]: scene %s is empty", i, k))
				}
			}
			for _, k := range []string{"shots", "dialogues"} {
				if a, ok := sl.Content[k].([]any); !ok || len(a) == 0 {
					probs = append(probs, fmt.Sprintf("slides[%d]: scene %s is empty", i, k))
				}
			}
		default:
			probs = append(probs, fmt.Sprintf("slides[%d]: unknown type %q", i, sl.Type))
		}
		for _, k := range []string{"shots", "dialogues", "visualEffects"} {
			if v, present := sl.Content[k]; present {
				if _, ok := v.([]any); !ok {
					probs = append(probs, fmt.Sprintf("slides[%d]: %s must be a list", i, k))
				}
			}
		}
	}
	for _, t := range []string{TypeCover, TypeOverview, TypeScene} {
		if count[t] == 0 {
			probs = append(probs, fmt.Sprintf("no %s slide", t))
		}
	}
	if len(probs) > 0 {
		return &StructureError{Problems: probs}
	}
	return nil
}

// MapStructure validates st and, only if it is valid, writes its slides to doc.
func (m *Mapper) MapStructure(doc Document, st *Structure, date time.Time) error {
	if err := st.Validate(); err != nil {
		return err
	}
	doc.SetTheme(m.Theme)
	var scenes []StructureSlide
	for _, sl := range st.Slides {
		if sl.Type == TypeScene {
			scenes = append(scenes, sl)
		}
	}
	for _, sl := range st.Slides {
		switch sl.Type {
		case TypeCover:
			m.cover(doc, orDefault(str(sl.Content, "title"), st.Title), orDefault(str(sl.Content, "subtitle"), m.Labels.Subtitle), date)
		case TypeOverview:
			var items []Run
			for _, it := range m.list(sl.Content, "items") {
				items = append(items, Run{Text: it, Style: Style{Bullet: BulletNumber}})
			}
			if len(items) == 0 {
				for _, sc := range scenes {
					text := str(sc.Content, "title") + "\n" + Truncate(str(sc.Content, "description"), PreviewRunes)
					items = append(items, Run{Text: text, Style: Style{Bullet: BulletNumber}})
				}
			}
			m.overview(doc, orDefault(str(sl.Content, "title"), m.Labels.Overview), items)
		case TypeScene:
			title := str(sl.Content, "title")
			secs := []section{
				{m.Labels.Description, []string{str(sl.Content, "description")}},
				{m.Labels.Shots, m.list(sl.Content, "shots")},
			}
			if fx := m.list(sl.Content, "visualEffects"); len(fx) > 0 {
				secs = append(secs, section{m.Labels.Effects, fx})
			}
			m.sections(doc, title, secs)
			m.dialogue(doc, title+" - "+m.Labels.Dialogue, m.list(sl.Content, "dialogues"), nil)
		}
	}
	return nil
}

func str(c map[string]any, k string) string {
	s, _ := c[k].(string)
	return strings.TrimSpace(s)
}

// list flattens a JSON array into display lines. Objects with a speaker and a
// line render as "speaker：line"; other objects as sorted key/value pairs.
func (m *Mapper) list(c map[string]any, k string) []string {
	arr, _ := c[k].([]any)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s := m.itemText(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (m *Mapper) itemText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		speaker := firstString(t, "character", "speaker", "role", "name")
		line := firstString(t, "line", "text", "content", "dialogue")
		if speaker != "" && line != "" {
			return speaker + m.Labels.Delimiter + line
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, t[k]))
		}
		return strings.Join(parts, ", ")
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
