/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"strings"
)

// Schema is the single table describing the script text format: how scenes are
// delimited, how field headers are written, and which placeholder values stand in
// for missing data. Parser and formatter read only from the schema, so any text
// produced by Format parses back to the same scenes.
type Schema struct {
	// Marker matches a scene boundary ("场景 3"). The match itself is discarded.
	Marker *regexp.Regexp
	// MarkerLabel is written by the formatter in front of the scene number.
	MarkerLabel string
	// Delimiter separates a field label from its value. Only the first occurrence counts.
	Delimiter string
	// Separator lines are noise between scenes and are ignored by the parser.
	Separator string
	// None is the word a model writes for "no dialogue"; it collapses to NoDialogue.
	None string
	// NoDialogue replaces an absent or empty dialogue.
	NoDialogue string
	// Unspecified replaces every other absent or empty field.
	Unspecified string
	// Labels holds the canonical label for each field, used by both directions.
	Labels map[Field]string
	// Aliases are additional labels the parser accepts. The formatter never writes them.
	Aliases map[string]Field

	byLabel map[string]Field
}

// NewSchema builds the label lookup for s and returns it ready for use.
func NewSchema(s Schema) *Schema {
	s.byLabel = make(map[string]Field, len(s.Labels)+len(s.Aliases))
	for alias, f := range s.Aliases {
		s.byLabel[strings.TrimSpace(alias)] = f
	}
	for f, label := range s.Labels {
		s.byLabel[strings.TrimSpace(label)] = f
	}
	return &s
}

// Lookup resolves a header label to its field.
func (s *Schema) Lookup(label string) (Field, bool) {
	f, ok := s.byLabel[strings.TrimSpace(label)]
	return f, ok
}

// Label returns the canonical label for f.
func (s *Schema) Label(f Field) string { return s.Labels[f] }

// Default is the Chinese schema the generation prompt asks the model to follow.
var Default = NewSchema(Schema{
	Marker:      regexp.MustCompile(`场景\s*\d+`),
	MarkerLabel: "场景",
	Delimiter:   "：",
	Separator:   "---",
	None:        "无",
	NoDialogue:  "无对白",
	Unspecified: "未指定",
	Labels: map[Field]string{
		FieldDescription: "场景描述",
		FieldDialogue:    "对白",
		FieldAction:      "动作指示",
		FieldCameraShot:  "镜头建议",
		FieldDuration:    "时长",
		FieldBGM:         "背景音乐",
	},
	Aliases: map[string]Field{
		"人物对白": FieldDialogue,
		"时长预估": FieldDuration,
	},
})

// English is the same table for scripts written with English headings.
var English = NewSchema(Schema{
	Marker:      regexp.MustCompile(`(?i)scene\s*\d+`),
	MarkerLabel: "Scene",
	Delimiter:   ":",
	Separator:   "---",
	None:        "none",
	NoDialogue:  "no dialogue",
	Unspecified: "unspecified",
	Labels: map[Field]string{
		FieldDescription: "Description",
		FieldDialogue:    "Dialogue",
		FieldAction:      "Action",
		FieldCameraShot:  "Camera",
		FieldDuration:    "Duration",
		FieldBGM:         "Music",
	},
})
