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
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"

	applog "scriptdeck/internal/log"
)

// Page size in inches (16:9).
const (
	PageWidth  = 10.0
	PageHeight = 5.625
)

const fontFamily = "deck"

// PDFWriter renders decks as one PDF page per slide.
//
// Text is set in a UTF-8 TrueType font. The built-in Go fonts cover Latin,
// Greek and Cyrillic only; scripts written in Chinese need FontFile pointing at
// a TTF with CJK glyphs (for example Noto Sans SC).
type PDFWriter struct {
	FontFile string
}

func (w PDFWriter) Ext() string { return ".pdf" }

func (w PDFWriter) NewDocument(meta Meta) (Document, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "in",
		Size:    gofpdf.SizeType{Wd: PageWidth, Ht: PageHeight},
		// Size already describes the landscape page
		OrientationStr: "",
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetTitle(meta.Title, true)
	pdf.SetSubject(meta.Subject, true)
	pdf.SetAuthor(meta.Author, true)
	pdf.SetCreator("scriptdeck", true)
	if !meta.Created.IsZero() {
		pdf.SetCreationDate(meta.Created)
	}

	faces, err := w.faces()
	if err != nil {
		return nil, err
	}
	for style, ttf := range faces {
		pdf.AddUTF8FontFromBytes(fontFamily, style, ttf)
	}
	if pdf.Err() {
		return nil, fmt.Errorf("load deck fonts: %w", pdf.Error())
	}
	return &pdfDocument{pdf: pdf, theme: DefaultTheme, builtinFont: w.FontFile == ""}, nil
}

// faces returns the TTF bytes per gofpdf style string.
func (w PDFWriter) faces() (map[string][]byte, error) {
	if w.FontFile == "" {
		return map[string][]byte{
			"":   goregular.TTF,
			"B":  gobold.TTF,
			"I":  goitalic.TTF,
			"BI": gobolditalic.TTF,
		}, nil
	}
	b, err := os.ReadFile(w.FontFile)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", w.FontFile, err)
	}
	return map[string][]byte{"": b, "B": b, "I": b, "BI": b}, nil
}

type pdfDocument struct {
	pdf   *gofpdf.Fpdf
	theme Theme
	// builtinFont is set when the Go fonts are in use; they have no CJK glyphs.
	builtinFont bool
	warnedCJK   bool
}

// checkGlyphs warns once per document when Han text meets the built-in fonts.
func (d *pdfDocument) checkGlyphs(text string) {
	if !d.builtinFont || d.warnedCJK || !hasHan(text) {
		return
	}
	d.warnedCJK = true
	applog.WithOperation(applog.WithComponent("deck"), "pdf").Warn(
		"Chinese text rendered with the built-in fonts, glyphs will be missing; set deck.font_file to a CJK TrueType font",
		slog.String("sample", Truncate(text, 20)))
}

func hasHan(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return unicode.Is(unicode.Han, r) }) >= 0
}

func (d *pdfDocument) SetTheme(t Theme) { d.theme = t }

func (d *pdfDocument) AddSlide() Slide {
	d.pdf.AddPage()
	return &pdfSlide{doc: d}
}

func (d *pdfDocument) WriteTo(w io.Writer) (int64, error) {
	if d.pdf.Err() {
		return 0, d.pdf.Error()
	}
	cw := &countingWriter{w: w}
	err := d.pdf.Output(cw)
	return cw.n, err
}

type pdfSlide struct{ doc *pdfDocument }

func (s *pdfSlide) AddText(runs []Run, opts TextOptions) {
	pdf := s.doc.pdf
	base := opts.Style.Merge(s.doc.theme.Body)
	box := opts.Box
	if box.W <= 0 {
		box.W = PageWidth - box.X - 0.5
	}
	pdf.SetXY(box.X, box.Y)
	num := 0
	for _, r := range runs {
		s.doc.checkGlyphs(r.Text)
		if pdf.GetY() > PageHeight-0.1 {
			break
		}
		st := r.Style.Merge(base)
		size := st.FontSize
		if size <= 0 {
			size = 16
		}
		pdf.SetFont(fontFamily, fontStyle(st), size)
		pdf.SetTextColor(RGB(st.Color))
		lh := size * 1.2 / 72
		if st.LineSpacing > 0 {
			lh = st.LineSpacing / 72
		}
		text := r.Text
		switch st.Bullet {
		case BulletDot:
			text = "• " + text
		case BulletNumber:
			num++
			text = strconv.Itoa(num) + ". " + text
		}
		indent := st.Indent
		if st.Bullet != BulletNone && indent == 0 {
			indent = 0.15
		}
		pdf.SetX(box.X + indent)
		pdf.MultiCell(box.W-indent, lh, text, "", alignStr(st.Align), false)
	}
}

func fontStyle(s Style) string {
	switch {
	case s.Bold && s.Italic:
		return "BI"
	case s.Bold:
		return "B"
	case s.Italic:
		return "I"
	default:
		return ""
	}
}

func alignStr(a Align) string {
	switch a {
	case AlignCenter:
		return "C"
	case AlignRight:
		return "R"
	default:
		return "L"
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
