/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package deck

import (
	"strconv"
	"strings"
)

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

type BulletKind int

const (
	BulletNone BulletKind = iota
	BulletDot
	BulletNumber
)

// Style is the text styling accepted by Slide.AddText.
// Zero values mean "inherit from TextOptions.Style"; FontSize is in points,
// LineSpacing is the line pitch in points, Indent is in inches.
type Style struct {
	FontSize    float64
	Color       string // any form NormalizeColor accepts
	Bold        bool
	Italic      bool
	Bullet      BulletKind
	Indent      float64
	LineSpacing float64
	Align       Align
}

// Merge returns s with zero fields filled from base. Boolean flags are OR-ed.
func (s Style) Merge(base Style) Style {
	if s.FontSize == 0 {
		s.FontSize = base.FontSize
	}
	if s.Color == "" {
		s.Color = base.Color
	}
	s.Bold = s.Bold || base.Bold
	s.Italic = s.Italic || base.Italic
	if s.Bullet == BulletNone {
		s.Bullet = base.Bullet
	}
	if s.Indent == 0 {
		s.Indent = base.Indent
	}
	if s.LineSpacing == 0 {
		s.LineSpacing = base.LineSpacing
	}
	if s.Align == AlignLeft {
		s.Align = base.Align
	}
	return s
}

// Run is one paragraph of text. Every run starts on a new line.
type Run struct {
	Text  string
	Style Style
}

// Box is a placement rectangle in inches from the top-left slide corner.
type Box struct{ X, Y, W, H float64 }

// TextOptions positions a text block and supplies the default style for its runs.
type TextOptions struct {
	Box   Box
	Style Style
}

// Theme is the set of base styles the mapper builds slides from.
type Theme struct {
	Title    Style
	Subtitle Style
	Body     Style
	Accent   Style
}

// DefaultTheme is the grey/blue look used for every exported deck.
var DefaultTheme = Theme{
	Title:    Style{FontSize: 32, Color: "title", Bold: true},
	Subtitle: Style{FontSize: 20, Color: "subtitle"},
	Body:     Style{FontSize: 16, Color: "body"},
	Accent:   Style{Color: "accent"},
}

var colorPresets = map[string]string{
	"title":    "363636",
	"subtitle": "666666",
	"body":     "404040",
	"accent":   "409EFF",
	"primary":  "409EFF",
	"black":    "000000",
	"white":    "FFFFFF",
}

// NormalizeColor returns c as six upper-case hex digits. It accepts "RRGGBB",
// "#RRGGBB" or a preset name; anything else becomes black.
func NormalizeColor(c string) string {
	c = strings.TrimSpace(c)
	if hex, ok := colorPresets[strings.ToLower(c)]; ok {
		return hex
	}
	c = strings.TrimPrefix(c, "#")
	if len(c) != 6 {
		return "000000"
	}
	if _, err := strconv.ParseUint(c, 16, 32); err != nil {
		return "000000"
	}
	return strings.ToUpper(c)
}

// RGB splits a color into its components after normalization.
func RGB(c string) (r, g, b int) {
	v, _ := strconv.ParseUint(NormalizeColor(c), 16, 32)
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}
