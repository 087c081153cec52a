// Package reducer strips decorative Word markup from a tagged questionnaire
// and keeps only the paragraph/table skeleton, the question text and the
// position markers.
package reducer

import (
	"regexp"
	"strings"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/document"
)

// escapedMarker stands in for the marker opener while comments are stripped.
var escapedMarker = "<\x00" + strings.TrimPrefix(document.MarkerPrefix, "<!")

// Options tunes a Reduce pass.
type Options struct {
	// KeepBlank keeps fully blank lines instead of dropping them.
	KeepBlank bool
}

var (
	wordDataRe = regexp.MustCompile(`(?s)<w:data[^>]*>.*?</w:data>`)

	// removeRe deletes open and close tags of inline decoration along with
	// every attribute, plus <!...> constructs (comments, conditional
	// comments, doctype).
	removeRe = regexp.MustCompile(`(?i)</?(?:span|a|b|i)\b[^>]*>|<![^>]*>`)

	// simplifyRe collapses structural open tags to their bare form.
	simplifyRe = regexp.MustCompile(`(?i)<(table|p|div|html|h[1-5]|td|tr)\b[^>]*>`)

	headRe = regexp.MustCompile(`(?is)(<head\b[^>]*>)(.*?)(</head>)`)
)

// Reduce returns the simplified working copy of a tagged document. Line
// numbers of the result do not correspond to the input; markers do.
//
// Blanking <head> keeps its newline count only as long as no attribute value
// inside it spans lines. Nothing downstream relies on absolute positions, so
// this is tolerated rather than enforced.
func Reduce(doc *document.Document, opts Options) *document.Document {
	text := strings.Join(doc.Lines, "\n")

	text = wordDataRe.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, document.MarkerPrefix, escapedMarker)
	text = removeRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, escapedMarker, document.MarkerPrefix)

	text = simplifyRe.ReplaceAllStringFunc(text, func(tag string) string {
		m := simplifyRe.FindStringSubmatch(tag)
		return "<" + strings.ToLower(m[1]) + ">"
	})

	text = headRe.ReplaceAllStringFunc(text, func(block string) string {
		m := headRe.FindStringSubmatch(block)
		return m[1] + strings.Repeat("\n", strings.Count(m[2], "\n")) + m[3]
	})

	lines := strings.Split(text, "\n")
	if !opts.KeepBlank {
		kept := lines[:0]
		for _, l := range lines {
			if strings.TrimSpace(l) != "" {
				kept = append(kept, l)
			}
		}
		lines = kept
	}

	out := document.FromLines(lines)
	out.Encoding = "utf-8"
	return out
}
