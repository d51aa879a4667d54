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
	"strings"
	"testing"
)

func TestMarkerInsideValueSplitsScene(t *testing.T) {
	sc := Normalize(Scene{Number: 1, Description: "回到场景2里的街道", Dialogue: "甲：你好\n乙：再见"})

	err := Default.Check(sc)
	if !errors.Is(err, ErrAmbiguousValue) {
		t.Fatalf("Check() = %v, want ErrAmbiguousValue", err)
	}
	for _, f := range []string{"description", "dialogue"} {
		if !strings.Contains(err.Error(), f) {
			t.Fatalf("Check() error %q does not name %s", err, f)
		}
	}

	// The text format cannot express these values; parsing the output loses data.
	got := Parse(Format([]Scene{sc})).Scenes
	if len(got) != 2 || got[0].Description != "回到" || got[0].Dialogue == sc.Dialogue {
		t.Fatalf("unexpected reparse: %+v", got)
	}
}

func TestCheckAcceptsParsableValues(t *testing.T) {
	ok := []Scene{
		Normalize(Scene{Number: 1, Description: "城市\n黄昏", Dialogue: "甲：走吧"}),
		Normalize(Scene{Number: 2, Duration: "约 3 分钟：含转场"}),
		Normalize(Scene{Number: 3}),
	}
	for _, sc := range ok {
		if err := Default.Check(sc); err != nil {
			t.Fatalf("Check(%+v) = %v", sc, err)
		}
	}
	if err := Default.Check(Scene{Action: "开门\n---\n关门"}); err == nil {
		t.Fatalf("separator continuation line not reported")
	}
	if err := English.Check(Scene{Description: "back to scene 4"}); err == nil {
		t.Fatalf("english marker not reported")
	}
}

func TestParsedScenesAlwaysPassCheck(t *testing.T) {
	in := "场景1\n场景描述：雨夜\n甲：你好\n对白：乙：嗯\n续行\n---\n场景 2\n动作指示：跑\n"
	for _, sc := range Parse(in).Scenes {
		if err := Default.Check(sc); err != nil {
			t.Fatalf("parsed scene %d fails Check: %v", sc.Number, err)
		}
	}
}
