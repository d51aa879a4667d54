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

// Scene is one unit of a video script.
// Number is assigned from segment order and never read from the source text.
// Fields are plain strings; Duration in particular is free-form ("5秒", "about 10s").
type Scene struct {
	Number      int    `json:"sceneNumber"`
	Description string `json:"description"`
	Dialogue    string `json:"dialogue"`
	Action      string `json:"action"`
	CameraShot  string `json:"cameraShot"`
	Duration    string `json:"duration"`
	BGM         string `json:"bgm"`
}

// Field identifies one of the text fields of a Scene.
type Field int

const (
	FieldDescription Field = iota
	FieldDialogue
	FieldAction
	FieldCameraShot
	FieldDuration
	FieldBGM
)

// Fields lists every field in canonical order. The formatter emits fields in this order.
var Fields = []Field{FieldDescription, FieldDialogue, FieldAction, FieldCameraShot, FieldDuration, FieldBGM}

// String returns the canonical key of the field, matching the JSON tag on Scene.
func (f Field) String() string {
	switch f {
	case FieldDescription:
		return "description"
	case FieldDialogue:
		return "dialogue"
	case FieldAction:
		return "action"
	case FieldCameraShot:
		return "cameraShot"
	case FieldDuration:
		return "duration"
	case FieldBGM:
		return "bgm"
	default:
		return "unknown"
	}
}

// Get returns the value of field f.
func (s Scene) Get(f Field) string {
	if p := s.ref(f); p != nil {
		return *p
	}
	return ""
}

// Set assigns v to field f. Unknown fields are ignored.
func (s *Scene) Set(f Field, v string) {
	if p := s.ref(f); p != nil {
		*p = v
	}
}

func (s *Scene) ref(f Field) *string {
	switch f {
	case FieldDescription:
		return &s.Description
	case FieldDialogue:
		return &s.Dialogue
	case FieldAction:
		return &s.Action
	case FieldCameraShot:
		return &s.CameraShot
	case FieldDuration:
		return &s.Duration
	case FieldBGM:
		return &s.BGM
	}
	return nil
}

// Document is the result of one parse: the ordered scenes plus the raw text they came from.
// A Document is rebuilt on every parse; callers never patch Scenes in place.
type Document struct {
	Scenes []Scene
	Raw    string
}

// Renumber returns a copy of scenes with dense 1-based numbers.
func Renumber(scenes []Scene) []Scene {
	out := make([]Scene, len(scenes))
	for i, sc := range scenes {
		sc.Number = i + 1
		out[i] = sc
	}
	return out
}
