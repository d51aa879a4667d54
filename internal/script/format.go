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
	"strconv"
	"strings"

	applog "scriptdeck/internal/log"
)

// Format serializes scenes into the heading/body text the parser reads.
// Non-dialogue fields holding the Unspecified placeholder are omitted; dialogue
// is always written. Each scene ends with a separator line and a blank line.
// Values that Check rejects are written anyway and logged as a warning, since the
// text will not parse back to the same scenes.
func (s *Schema) Format(scenes []Scene) string {
	var b strings.Builder
	for i, sc := range scenes {
		n := sc.Number
		if n <= 0 {
			n = i + 1
		}
		if err := s.Check(sc); err != nil {
			applog.WithOperation(applog.WithComponent("script"), "format").Warn("scene text is ambiguous", slog.Int("scene", n), slog.Any("err", err))
		}
		b.WriteString(s.MarkerLabel)
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(n))
		b.WriteString("\n")
		for _, f := range Fields {
			v := sc.Get(f)
			if f == FieldDialogue {
				if v == "" {
					v = s.NoDialogue
				}
			} else if v == "" || v == s.Unspecified {
				continue
			}
			b.WriteString(s.Label(f))
			b.WriteString(s.Delimiter)
			b.WriteString(v)
			b.WriteString("\n")
		}
		b.WriteString(s.Separator)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Format serializes scenes with the Default schema.
func Format(scenes []Scene) string { return Default.Format(scenes) }
