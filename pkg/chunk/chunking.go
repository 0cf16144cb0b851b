// Package chunk turns source files into ordered, provenance-tagged text
// chunks suitable for embedding.
package chunk

import (
	"unicode"
)

// Document is one chunk of a source file. Immutable once created; a single
// source file maps to many chunks.
type Document struct {
	Text   string
	Source string

	// StartIndex is the character offset of Text within the source.
	StartIndex int
}

// Splitter cuts text into overlapping windows of at most Size characters,
// with consecutive windows from the same source sharing Overlap characters.
// Size and Overlap count runes, not bytes, so multi-byte text is never cut
// mid-character.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter returns a splitter with the given window size and overlap.
// Overlap must be smaller than size.
func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{Size: size, Overlap: overlap}
}

// Split chunks text into documents tagged with the given source and their
// starting offsets. Window boundaries prefer whitespace so words are not
// split, unless a single word exceeds the window size.
func (s *Splitter) Split(text, source string) []Document {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= s.Size {
		return []Document{{Text: text, Source: source, StartIndex: 0}}
	}

	var docs []Document
	start := 0
	for start < len(runes) {
		end := start + s.Size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastBoundary(runes[start:end]); cut > 0 {
			end = start + cut
		}

		docs = append(docs, Document{
			Text:       string(runes[start:end]),
			Source:     source,
			StartIndex: start,
		})

		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return docs
}

// lastBoundary returns the index just past the last whitespace rune in
// window, or 0 when the window holds a single unbreakable word.
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i + 1
		}
	}
	return 0
}
