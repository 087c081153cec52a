// Package document models a questionnaire file as an ordered, 1-indexed
// buffer of lines and owns the position marker literal that ties the tagged
// original to its simplified working copy.
package document

import (
	"strings"
)

// Document is an ordered sequence of lines with a fixed character encoding.
// Line numbers are 1-based everywhere in the public API.
type Document struct {
	Lines        []string
	Encoding     string
	FinalNewline bool
}

// Parse splits text into lines on "\n". A trailing newline is recorded on the
// document rather than producing an empty last line. Carriage returns stay
// attached to their line.
func Parse(text string) *Document {
	doc := &Document{Encoding: "utf-8"}
	if text == "" {
		return doc
	}
	if strings.HasSuffix(text, "\n") {
		doc.FinalNewline = true
		text = text[:len(text)-1]
	}
	doc.Lines = strings.Split(text, "\n")
	return doc
}

// FromLines builds a document over a copy of lines.
func FromLines(lines []string) *Document {
	out := make([]string, len(lines))
	copy(out, lines)
	return &Document{Lines: out, Encoding: "utf-8"}
}

// Len returns the number of lines.
func (d *Document) Len() int {
	return len(d.Lines)
}

// Line returns line n (1-based) and whether it exists.
func (d *Document) Line(n int) (string, bool) {
	if n < 1 || n > len(d.Lines) {
		return "", false
	}
	return d.Lines[n-1], true
}

// SetLine replaces line n (1-based). Out-of-range writes are ignored and
// reported as false; the line count never changes.
func (d *Document) SetLine(n int, s string) bool {
	if n < 1 || n > len(d.Lines) {
		return false
	}
	d.Lines[n-1] = s
	return true
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	c.Lines = make([]string, len(d.Lines))
	copy(c.Lines, d.Lines)
	return &c
}

// String joins the lines back into text.
func (d *Document) String() string {
	s := strings.Join(d.Lines, "\n")
	if d.FinalNewline {
		s += "\n"
	}
	return s
}
