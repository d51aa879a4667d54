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
	"iter"
	"strings"
)

// Segments splits text into one substring per scene, in source order.
//
// Every match of the schema marker starts a new scene and is itself discarded.
// Text before the first marker is not a scene and is dropped, as is any
// whitespace-only segment. Input without a marker, or whose segments are all
// blank, yields the whole input once so that parsing always produces a scene.
//
// The sequence is lazy and can be ranged over any number of times.
func (s *Schema) Segments(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		loc := s.Marker.FindStringIndex(text)
		if loc == nil {
			yield(text)
			return
		}
		emitted := false
		rest := text
		for loc != nil {
			rest = rest[loc[1]:]
			seg := rest
			next := s.Marker.FindStringIndex(rest)
			if next != nil {
				seg = rest[:next[0]]
			}
			if strings.TrimSpace(seg) != "" {
				emitted = true
				if !yield(seg) {
					return
				}
			}
			if next != nil {
				rest = rest[next[0]:]
				loc = []int{0, next[1] - next[0]}
			} else {
				loc = nil
			}
		}
		if !emitted {
			yield(text)
		}
	}
}

// Segments splits text with the Default schema.
func Segments(text string) iter.Seq[string] { return Default.Segments(text) }
