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

import "strings"

// Normalize returns sc with every empty field replaced by its placeholder.
//
// Dialogue is special: empty or the "none" word (in any case) becomes NoDialogue, so an absent
// dialogue stays distinguishable from a field that was never filled. All other
// fields fall back to Unspecified. Number is left untouched.
func (s *Schema) Normalize(sc Scene) Scene {
	for _, f := range Fields {
		sc.Set(f, strings.TrimSpace(sc.Get(f)))
	}
	if sc.Dialogue == "" || strings.EqualFold(sc.Dialogue, s.None) {
		sc.Dialogue = s.NoDialogue
	}
	for _, f := range Fields {
		if f == FieldDialogue {
			continue
		}
		if sc.Get(f) == "" {
			sc.Set(f, s.Unspecified)
		}
	}
	return sc
}

// Normalize applies the Default schema placeholders.
func Normalize(sc Scene) Scene { return Default.Normalize(sc) }
