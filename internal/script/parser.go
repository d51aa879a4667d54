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
	"log/slog"
	"strings"

	applog "scriptdeck/internal/log"
)

type parseState int

const (
	noActiveField parseState = iota
	inField
)

// fieldParser is the line-oriented state machine for one scene segment.
// Model output is not strict key/value text: bodies span lines and the only
// reliable boundary is a header line carrying the delimiter.
type fieldParser struct {
	schema *Schema
	state  parseState
	field  Field
	buf    []string
	scene  Scene
	log    *slog.Logger
}

func (p *fieldParser) feed(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" || line == p.schema.Separator {
		return
	}
	if label, value, ok := strings.Cut(line, p.schema.Delimiter); ok {
		p.flush()
		f, known := p.schema.Lookup(label)
		if !known {
			p.log.Debug("skip unknown field", slog.String("label", strings.TrimSpace(label)), slog.Int("scene", p.scene.Number))
			p.state = noActiveField
			return
		}
		p.state = inField
		p.field = f
		if v := strings.TrimSpace(value); v != "" {
			p.buf = append(p.buf, v)
		}
		return
	}
	if p.state == inField {
		p.buf = append(p.buf, line)
	}
	// Lines before the first recognized header are unattributed and dropped.
}

// flush assigns the accumulated lines to the active field, if any.
func (p *fieldParser) flush() {
	if p.state == inField && len(p.buf) > 0 {
		p.scene.Set(p.field, strings.TrimSpace(strings.Join(p.buf, "\n")))
	}
	p.buf = p.buf[:0]
}

// ParseSegment recovers the fields of one scene segment. Fields that do not
// appear are left empty; pass the result through Normalize to apply defaults.
// It never fails: any input yields a Scene.
func (s *Schema) ParseSegment(segment string, number int) Scene {
	p := &fieldParser{
		schema: s,
		scene:  Scene{Number: number},
		log:    applog.WithOperation(applog.WithComponent("script"), "parse"),
	}
	for _, line := range strings.Split(segment, "\n") {
		p.feed(line)
	}
	p.flush()
	return p.scene
}

// Parse runs the full pipeline (segment, parse fields, normalize) over text.
// The returned document always holds at least one scene, numbered densely from 1.
func (s *Schema) Parse(text string) Document {
	doc := Document{Raw: text}
	n := 0
	for seg := range s.Segments(text) {
		n++
		doc.Scenes = append(doc.Scenes, s.Normalize(s.ParseSegment(seg, n)))
	}
	return doc
}

// Parse parses text with the Default schema.
func Parse(text string) Document { return Default.Parse(text) }
