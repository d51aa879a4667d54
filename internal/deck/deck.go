/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package deck turns scenes into slide decks. The mapper talks to a small
// capability interface (Writer, Document, Slide) so the serialization format is
// pluggable; PDFWriter is the implementation shipped with the CLI.
package deck

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrStructureInvalid is wrapped by *StructureError.
	ErrStructureInvalid = errors.New("deck: slide structure invalid")
	// ErrSerialization is returned when the deck could not be written. No file is left behind.
	ErrSerialization = errors.New("deck: serialization failed")
	// ErrNoScenes rejects an export without content.
	ErrNoScenes = errors.New("deck: no scenes to export")
)

// Meta describes a new document.
type Meta struct {
	Title   string
	Author  string
	Subject string
	Created time.Time
}

// Writer creates documents of one output format.
type Writer interface {
	NewDocument(meta Meta) (Document, error)
	// Ext is the file extension including the dot.
	Ext() string
}

// Document is an in-memory deck.
type Document interface {
	SetTheme(t Theme)
	AddSlide() Slide
	WriteTo(w io.Writer) (int64, error)
}

// Slide receives text blocks.
type Slide interface {
	AddText(runs []Run, opts TextOptions)
}
