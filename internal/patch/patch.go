// Package patch writes answers into documents without changing their line
// count.
package patch

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/document"
)

// SearchMode selects where the search for a scalar's marker line starts.
type SearchMode int

const (
	// Inclusive starts at the anchor line itself.
	Inclusive SearchMode = iota
	// Exclusive starts at the line after the anchor.
	Exclusive
)

// ParseSearchMode maps "inclusive" / "exclusive" to a SearchMode. Anything
// else is Inclusive.
func ParseSearchMode(s string) SearchMode {
	if strings.EqualFold(strings.TrimSpace(s), "exclusive") {
		return Exclusive
	}
	return Inclusive
}

func (m SearchMode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "inclusive"
}

var scalarSlotRe = regexp.MustCompile(`<p>.*?</o:p>`)

// Scalar writes answer into the first marker line at or after the anchor
// (per mode): the first <p>...</o:p> run on that line becomes
// <p>answer</o:p>. Only the first marker line is considered. It reports
// whether a line was rewritten.
func Scalar(doc *document.Document, anchor int, answer string, mode SearchMode) bool {
	start := anchor
	if mode == Exclusive {
		start++
	}
	if start < 1 {
		start = 1
	}

	for n := start; n <= doc.Len(); n++ {
		line, _ := doc.Line(n)
		if !document.HasMarker(line) {
			continue
		}
		loc := scalarSlotRe.FindStringIndex(line)
		if loc == nil {
			zap.L().Debug("patch: marker line has no slot", zap.Int("anchor", anchor), zap.Int("line", n))
			return false
		}
		doc.SetLine(n, line[:loc[0]]+"<p>"+answer+"</o:p>"+line[loc[1]:])
		return true
	}
	return false
}

// Table overwrites lines starting at anchor with the lines of answer. A
// literal backslash-n in answer separates lines; otherwise real newlines
// do. Each written line takes the anchor line's indentation. At most
// min(answer lines, span, lines to EOF) lines are written; span <= 0 means
// no span limit. It returns the number of lines written.
func Table(doc *document.Document, anchor, span int, answer string) int {
	if anchor < 1 || anchor > doc.Len() {
		return 0
	}

	text := answer
	if strings.Contains(text, `\n`) {
		text = strings.ReplaceAll(text, `\n`, "\n")
	}
	lines := strings.Split(text, "\n")

	first, _ := doc.Line(anchor)
	indent := leadingSpace(first)

	n := min(len(lines), doc.Len()-anchor+1)
	if span > 0 {
		n = min(n, span)
	}
	keepEdges(doc, anchor, span, lines[:n])
	for i := 0; i < n; i++ {
		old, _ := doc.Line(anchor + i)
		eol := ""
		if strings.HasSuffix(old, "\r") {
			eol = "\r"
		}
		doc.SetLine(anchor+i, indent+strings.TrimSpace(lines[i])+eol)
	}
	if len(lines) > n {
		zap.L().Warn("patch: table answer longer than its slot, truncated",
			zap.Int("anchor", anchor),
			zap.Int("answer_lines", len(lines)),
			zap.Int("written", n),
		)
	}
	return n
}

var (
	tableOpenRe  = regexp.MustCompile(`(?i)<table\b`)
	tableCloseRe = regexp.MustCompile(`(?i)</table>`)
)

// keepEdges puts back text that shares the slot's first line before <table,
// or its last line after </table>, when the answer lines left it out.
func keepEdges(doc *document.Document, anchor, span int, lines []string) {
	if len(lines) == 0 {
		return
	}
	first, _ := doc.Line(anchor)
	if loc := tableOpenRe.FindStringIndex(first); loc != nil {
		prefix := strings.TrimSpace(first[:loc[0]])
		if prefix != "" && !strings.Contains(lines[0], prefix) {
			lines[0] = prefix + strings.TrimSpace(lines[0])
		}
	}

	if span <= 0 || len(lines) != span {
		return
	}
	last, _ := doc.Line(anchor + span - 1)
	locs := tableCloseRe.FindAllStringIndex(last, -1)
	if locs == nil {
		return
	}
	suffix := strings.TrimSpace(last[locs[len(locs)-1][1]:])
	if suffix != "" && !strings.Contains(lines[len(lines)-1], suffix) {
		lines[len(lines)-1] = strings.TrimSpace(lines[len(lines)-1]) + suffix
	}
}

func leadingSpace(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) })
	if i < 0 {
		return ""
	}
	return s[:i]
}
