// Package tagger marks fillable lines of a questionnaire with position
// markers. The line count of the document never changes.
package tagger

import (
	"regexp"
	"strings"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/document"
)

// Placeholder is the blank answer slot Word exports for an empty paragraph.
const Placeholder = "<o:p>&nbsp;</o:p>"

var (
	paraOpenRe  = regexp.MustCompile(`(?i)<p\b`)
	paraCloseRe = regexp.MustCompile(`(?i)</p>`)
)

// Options selects the slot-detection predicate.
type Options struct {
	// Selectors enables the extended variant: any paragraph whose span holds
	// one of these glyphs (checkbox characters, typically) is marked on its
	// closing line.
	Selectors []string
}

// Stats counts what a Tag pass did.
type Stats struct {
	Placeholders int
	Selectors    int
	Skipped      int // lines that already carried a marker
	Unclosed     int // paragraph spans flushed unmarked at EOF
}

// Marked returns the number of markers added.
func (s Stats) Marked() int {
	return s.Placeholders + s.Selectors
}

// Tag returns a copy of doc with a marker appended to every fillable line.
func Tag(doc *document.Document, opts Options) (*document.Document, Stats) {
	out := doc.Clone()
	var st Stats

	mark := func(idx int) bool {
		if document.HasMarker(out.Lines[idx]) {
			st.Skipped++
			return false
		}
		out.Lines[idx] = strings.TrimRight(out.Lines[idx], " \t\r") + " " + document.FormatMarker(idx+1)
		return true
	}

	for i, line := range out.Lines {
		if strings.Contains(line, Placeholder) && mark(i) {
			st.Placeholders++
		}
	}

	if len(opts.Selectors) == 0 {
		return out, st
	}

	spanOpen := false
	spanHit := false
	for i, line := range out.Lines {
		if !spanOpen {
			loc := paraOpenRe.FindStringIndex(line)
			if loc == nil {
				continue
			}
			spanOpen = true
			spanHit = false
			// Only text after the open tag belongs to the span.
			line = line[loc[0]:]
		}
		if containsAny(line, opts.Selectors) {
			spanHit = true
		}
		if !paraCloseRe.MatchString(line) {
			continue
		}
		spanOpen = false
		if spanHit && mark(i) {
			st.Selectors++
		}
	}
	if spanOpen {
		st.Unclosed++
	}

	return out, st
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
