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
	"errors"
	"fmt"
	"strings"
)

// ErrAmbiguousValue marks a field value that Format writes but Parse cannot read back unchanged.
var ErrAmbiguousValue = errors.New("script: field value does not survive formatting")

// Check reports the fields of sc that Format followed by Parse would alter: values
// containing a scene marker, and continuation lines that carry the delimiter or
// consist of the separator. The first line of a value may hold the delimiter.
func (s *Schema) Check(sc Scene) error {
	var bad []string
	for _, f := range Fields {
		if s.ambiguous(sc.Get(f)) {
			bad = append(bad, f.String())
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return fmt.Errorf("%w: scene %d: %s", ErrAmbiguousValue, sc.Number, strings.Join(bad, ", "))
}

func (s *Schema) ambiguous(v string) bool {
	if v == "" {
		return false
	}
	if s.Marker.MatchString(v) {
		return true
	}
	lines := strings.Split(v, "\n")
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == s.Separator || strings.Contains(line, s.Delimiter) {
			return true
		}
	}
	return false
}
