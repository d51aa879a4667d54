/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package llm

import (
	"strings"

	"scriptdeck/internal/script"
)

// Prompt is the pair of messages sent for one generation. The output-format
// section of the system message is derived from Schema, so the model is asked
// for exactly the headings the parser understands.
type Prompt struct {
	Schema   *script.Schema
	Intro    string
	Elements []Element
	Outro    string
	// User holds {title} and {story} placeholders.
	User string
	// Placeholders are the bracketed hints written after each label in the format section.
	Placeholders map[script.Field]string
	NumberHint   string
}

// Element is one bullet of the "each scene must contain" list.
type Element struct{ Name, Hint string }

// DefaultPrompt asks for Chinese scripts in the Default schema.
var DefaultPrompt = Prompt{
	Schema: script.Default,
	Intro:  "你是一个专业的视频脚本编剧。请将输入的故事转换为标准的视频脚本格式，要求如下：",
	Elements: []Element{
		{"场景描述", "详细描述场景的环境、时间、氛围"},
		{"人物对白", "包含人物名称和对应的台词"},
		{"动作指示", "描述人物的动作和表情"},
		{"镜头建议", "具体的镜头角度、运动方式"},
		{"时长预估", "每个场景预计的时长"},
		{"背景音乐", "场景配乐的风格建议"},
	},
	Outro:      "请确保每个场景的描述都符合视觉呈现的需求，便于后续制作。",
	User:       "请将以下故事转换为视频脚本：\n标题：{title}\n内容：{story}",
	NumberHint: "[场景编号]",
	Placeholders: map[script.Field]string{
		script.FieldDescription: "[具体描述]",
		script.FieldDialogue:    "[人物对白]",
		script.FieldAction:      "[具体动作]",
		script.FieldCameraShot:  "[镜头说明]",
		script.FieldDuration:    "[预计时长]",
		script.FieldBGM:         "[音乐建议]",
	},
}

// EnglishPrompt asks for English scripts in the English schema.
var EnglishPrompt = Prompt{
	Schema: script.English,
	Intro:  "You are a professional video scriptwriter. Convert the story you are given into a standard video script as follows:",
	Elements: []Element{
		{"Description", "setting, time of day and mood of the scene"},
		{"Dialogue", "character names with their lines"},
		{"Action", "what the characters do and how they look"},
		{"Camera", "shot angle and camera movement"},
		{"Duration", "estimated length of the scene"},
		{"Music", "style of the background music"},
	},
	Outro:      "Keep every scene visual and concrete so it can go straight into production.",
	User:       "Convert the following story into a video script:\nTitle: {title}\nStory: {story}",
	NumberHint: "[scene number]",
	Placeholders: map[script.Field]string{
		script.FieldDescription: "[description]",
		script.FieldDialogue:    "[dialogue]",
		script.FieldAction:      "[action]",
		script.FieldCameraShot:  "[camera]",
		script.FieldDuration:    "[duration]",
		script.FieldBGM:         "[music]",
	},
}

// PromptFor returns the prompt matching a schema; unknown schemas get DefaultPrompt.
func PromptFor(s *script.Schema) Prompt {
	if s == script.English {
		return EnglishPrompt
	}
	return DefaultPrompt
}

// System renders the system message.
func (p Prompt) System() string {
	var b strings.Builder
	b.WriteString(p.Intro)
	b.WriteString("\n\n")
	if p.Schema == script.English {
		b.WriteString("1. Break the story down into scenes\n2. Every scene must contain:\n")
	} else {
		b.WriteString("1. 分析故事内容，将其分解为多个场景\n2. 每个场景必须包含以下要素：\n")
	}
	for _, el := range p.Elements {
		b.WriteString("   - ")
		b.WriteString(el.Name)
		b.WriteString(p.Schema.Delimiter)
		b.WriteString(el.Hint)
		b.WriteString("\n")
	}
	if p.Schema == script.English {
		b.WriteString("\n3. Output format:\n")
	} else {
		b.WriteString("\n3. 输出格式要求：\n")
	}
	b.WriteString("   ")
	b.WriteString(p.Schema.MarkerLabel)
	b.WriteString(" ")
	b.WriteString(p.NumberHint)
	b.WriteString("\n")
	for _, f := range script.Fields {
		b.WriteString("   ")
		b.WriteString(p.Schema.Label(f))
		b.WriteString(p.Schema.Delimiter)
		b.WriteString(p.Placeholders[f])
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(p.Outro)
	return b.String()
}

// UserMessage fills the user template.
func (p Prompt) UserMessage(title, story string) string {
	return strings.NewReplacer("{title}", title, "{story}", story).Replace(p.User)
}
