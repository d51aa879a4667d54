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
	"slices"
	"testing"
)

func TestSegmentsDropsLeadingTextAndBlankSegments(t *testing.T) {
	input := "好的，以下是脚本：\n场景1\nA\n场景 2\n   \n场景3\nC\n\n"

	got := slices.Collect(Segments(input))
	want := []string{"\nA\n", "\nC\n\n"}
	if !slices.Equal(got, want) {
		t.Fatalf("segments = %q, want %q", got, want)
	}
}

func TestSegmentsWithoutMarkerYieldsWholeInput(t *testing.T) {
	got := slices.Collect(Segments("no scene here"))
	if len(got) != 1 || got[0] != "no scene here" {
		t.Fatalf("segments = %q", got)
	}
	if got := slices.Collect(Segments("")); len(got) != 1 || got[0] != "" {
		t.Fatalf("empty input should yield one empty segment, got %q", got)
	}
}

func TestSegmentsAllBlankYieldsWholeInput(t *testing.T) {
	input := "场景1\n  \n场景2"
	got := slices.Collect(Segments(input))
	if len(got) != 1 || got[0] != input {
		t.Fatalf("segments = %q", got)
	}
}

func TestSegmentsIsRestartable(t *testing.T) {
	seq := Segments("场景1 a 场景2 b 场景3 c")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if len(first) != 3 || !slices.Equal(first, second) {
		t.Fatalf("sequence not restartable: %q vs %q", first, second)
	}
}

func TestSegmentsStopsEarly(t *testing.T) {
	n := 0
	for range Segments("场景1 a 场景2 b 场景3 c") {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("expected to stop after 2 segments, got %d", n)
	}
}

func TestSegmentsMultiDigitMarker(t *testing.T) {
	got := slices.Collect(Segments("场景12x场景 345y"))
	if !slices.Equal(got, []string{"x", "y"}) {
		t.Fatalf("segments = %q", got)
	}
}
