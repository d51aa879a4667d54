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
	"reflect"
	"strings"
	"testing"
)

func TestFormatCanonicalLayout(t *testing.T) {
	scenes := []Scene{{
		Number:      1,
		Description: "雨夜",
		Dialogue:    "无对白",
		Action:      "未指定",
		CameraShot:  "远景",
		Duration:    "未指定",
		BGM:         "未指定",
	}}

	got := Format(scenes)
	want := "场景 1\n场景描述：雨夜\n对白：无对白\n镜头建议：远景\n---\n\n"
	if got != want {
		t.Fatalf("Format() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatAlwaysWritesDialogue(t *testing.T) {
	got := Format([]Scene{Normalize(Scene{Number: 1})})
	if !strings.Contains(got, "对白：无对白\n") {
		t.Fatalf("dialogue line missing:\n%s", got)
	}
	if strings.Contains(got, "场景描述") {
		t.Fatalf("unspecified description should be skipped:\n%s", got)
	}
}

func TestFormatNumbersUnnumberedScenes(t *testing.T) {
	got := Format([]Scene{{Description: "a"}, {Description: "b"}})
	if !strings.HasPrefix(got, "场景 1\n") || !strings.Contains(got, "场景 2\n") {
		t.Fatalf("unexpected numbering:\n%s", got)
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"场景1\n场景描述：雨夜的街道\n很安静\n对白：\n动作指示：他撑开伞\n---\n",
		"前言\n场景 1\n场景描述：海边\n对白：小美：看！\n动作指示：奔跑\n镜头建议：跟拍\n时长：8秒\n背景音乐：轻快\n---\n\n场景 2\n对白：无\n",
		"",
		"没有任何结构的文本",
		"场景1\n未知：内容\n场景描述：多行\n第二行\n第三行\n时长：约 3 分钟：含转场",
	}
	for _, in := range inputs {
		first := Parse(in).Scenes
		text := Format(first)
		second := Parse(text).Scenes
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("round trip mismatch for %q\nfirst:  %+v\nsecond: %+v\ntext:\n%s", in, first, second, text)
		}
		if again := Format(second); again != text {
			t.Fatalf("formatting is not stable:\n%q\n%q", text, again)
		}
	}
}

func TestRoundTripNormalizedScenes(t *testing.T) {
	scenes := []Scene{
		Normalize(Scene{Number: 1, Description: "城市\n黄昏", Dialogue: "甲：走吧", Duration: "10s"}),
		Normalize(Scene{Number: 2, Action: "关门", BGM: "无"}),
		Normalize(Scene{Number: 3}),
	}
	got := Parse(Format(scenes)).Scenes
	if !reflect.DeepEqual(got, scenes) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, scenes)
	}
}

func TestRoundTripEnglish(t *testing.T) {
	scenes := []Scene{
		English.Normalize(Scene{Number: 1, Description: "Dock", Dialogue: "Ann: hi", CameraShot: "close-up"}),
		English.Normalize(Scene{Number: 2}),
	}
	got := English.Parse(English.Format(scenes)).Scenes
	if !reflect.DeepEqual(got, scenes) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, scenes)
	}
}
