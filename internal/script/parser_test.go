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

import "testing"

func TestParseRainyStreetExample(t *testing.T) {
	input := "场景1\n场景描述：雨夜的街道\n很安静\n对白：\n动作指示：他撑开伞\n---\n"

	doc := Parse(input)
	if len(doc.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(doc.Scenes))
	}
	want := Scene{
		Number:      1,
		Description: "雨夜的街道\n很安静",
		Dialogue:    "无对白",
		Action:      "他撑开伞",
		CameraShot:  "未指定",
		Duration:    "未指定",
		BGM:         "未指定",
	}
	if got := doc.Scenes[0]; got != want {
		t.Fatalf("unexpected scene:\n got %+v\nwant %+v", got, want)
	}
	if doc.Raw != input {
		t.Fatalf("raw text not kept on document")
	}
}

func TestParseNumbersScenesBySegmentOrder(t *testing.T) {
	input := "场景 7\n场景描述：开头\n---\n场景 3\n场景描述：结尾\n"

	doc := Parse(input)
	if len(doc.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(doc.Scenes))
	}
	for i, sc := range doc.Scenes {
		if sc.Number != i+1 {
			t.Fatalf("scene %d has number %d", i, sc.Number)
		}
	}
	if doc.Scenes[0].Description != "开头" || doc.Scenes[1].Description != "结尾" {
		t.Fatalf("scenes out of order: %+v", doc.Scenes)
	}
}

func TestParseIsTotal(t *testing.T) {
	inputs := map[string]string{
		"empty":            "",
		"whitespace":       "  \n\t\n",
		"no markers":       "just a story without any structure",
		"only separators":  "---\n---\n\n---",
		"only markers":     "场景1\n场景2\n",
		"garbage colons":   "：：：\n：x",
		"invalid utf8":     "场景1\n场景描述：\xff\xfe",
		"crlf line breaks": "场景1\r\n场景描述：夜晚\r\n对白：无\r\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			doc := Parse(in)
			if len(doc.Scenes) == 0 {
				t.Fatalf("expected at least one scene")
			}
			for i, sc := range doc.Scenes {
				if sc.Number != i+1 {
					t.Fatalf("scene %d numbered %d", i, sc.Number)
				}
				for _, f := range Fields {
					if sc.Get(f) == "" {
						t.Fatalf("field %s left empty in %+v", f, sc)
					}
				}
			}
		})
	}
}

func TestParseNoMarkersIsSceneOne(t *testing.T) {
	doc := Parse("场景描述：清晨的海边\n背景音乐：钢琴")
	if len(doc.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(doc.Scenes))
	}
	sc := doc.Scenes[0]
	if sc.Number != 1 || sc.Description != "清晨的海边" || sc.BGM != "钢琴" {
		t.Fatalf("unexpected scene: %+v", sc)
	}
}

func TestDialogueSentinelIsDistinct(t *testing.T) {
	cases := map[string]string{
		"absent":   "场景1\n场景描述：街角",
		"empty":    "场景1\n对白：",
		"none":     "场景1\n对白：无",
		"blank ws": "场景1\n对白：   ",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			sc := Parse(in).Scenes[0]
			if sc.Dialogue != Default.NoDialogue {
				t.Fatalf("dialogue = %q, want %q", sc.Dialogue, Default.NoDialogue)
			}
			if sc.Dialogue == Default.Unspecified {
				t.Fatalf("dialogue conflated with the generic placeholder")
			}
		})
	}
}

func TestUnknownFieldDoesNotCorruptFollowingFields(t *testing.T) {
	input := `场景1
场景描述：办公室
灯光昏暗
特效：慢动作
依然是慢动作
对白：小王：早上好
镜头建议：特写`

	sc := Parse(input).Scenes[0]
	if sc.Description != "办公室\n灯光昏暗" {
		t.Fatalf("description = %q", sc.Description)
	}
	if sc.Dialogue != "小王：早上好" {
		t.Fatalf("dialogue = %q", sc.Dialogue)
	}
	if sc.CameraShot != "特写" {
		t.Fatalf("camera = %q", sc.CameraShot)
	}
	for _, f := range Fields {
		if v := sc.Get(f); v == "慢动作" || v == "依然是慢动作" {
			t.Fatalf("unknown field content leaked into %s", f)
		}
	}
}

func TestMultiLineFieldCapture(t *testing.T) {
	input := "场景1\n动作指示：\n  第一行  \n第二行\n\n第三行\n时长：5秒"

	sc := Parse(input).Scenes[0]
	if sc.Action != "第一行\n第二行\n第三行" {
		t.Fatalf("action = %q", sc.Action)
	}
	if sc.Duration != "5秒" {
		t.Fatalf("duration = %q", sc.Duration)
	}
}

func TestValueKeepsLaterDelimiters(t *testing.T) {
	sc := Parse("场景1\n对白：小明：你好：世界").Scenes[0]
	if sc.Dialogue != "小明：你好：世界" {
		t.Fatalf("dialogue = %q", sc.Dialogue)
	}
}

func TestTextBeforeFirstHeaderIsDropped(t *testing.T) {
	sc := Parse("场景1\n这是模型的旁白\n场景描述：森林").Scenes[0]
	if sc.Description != "森林" {
		t.Fatalf("description = %q", sc.Description)
	}
	for _, f := range Fields {
		if sc.Get(f) == "这是模型的旁白" {
			t.Fatalf("commentary attributed to %s", f)
		}
	}
}

func TestAliasLabelsResolve(t *testing.T) {
	sc := Parse("场景1\n人物对白：阿强：走吧\n时长预估：10秒").Scenes[0]
	if sc.Dialogue != "阿强：走吧" || sc.Duration != "10秒" {
		t.Fatalf("aliases not resolved: %+v", sc)
	}
}

func TestParseSegmentLeavesMissingFieldsEmpty(t *testing.T) {
	sc := Default.ParseSegment("\n场景描述：山顶\n", 4)
	if sc.Number != 4 || sc.Description != "山顶" {
		t.Fatalf("unexpected scene: %+v", sc)
	}
	if sc.Dialogue != "" || sc.Action != "" {
		t.Fatalf("expected raw parse without defaults, got %+v", sc)
	}
}

func TestEnglishSchema(t *testing.T) {
	input := "Intro text\nScene 1\nDescription: A quiet harbor\nDialogue: none\nCamera: wide: slow pan\n---\nscene 2\nMusic: strings\n"

	doc := English.Parse(input)
	if len(doc.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(doc.Scenes))
	}
	first := doc.Scenes[0]
	if first.Description != "A quiet harbor" || first.Dialogue != "no dialogue" || first.CameraShot != "wide: slow pan" {
		t.Fatalf("unexpected first scene: %+v", first)
	}
	if doc.Scenes[1].BGM != "strings" || doc.Scenes[1].Action != "unspecified" {
		t.Fatalf("unexpected second scene: %+v", doc.Scenes[1])
	}
}
