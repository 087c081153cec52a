// Package slots finds the fillable units of a simplified questionnaire:
// scalar questions anchored by their line, and whole table blocks.
package slots

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/document"
)

// Scalar is a single question awaiting one textual answer. Anchor is the
// question's line in the working copy.
type Scalar struct {
	Anchor   int
	Question string
}

// Table is a complete <table>...</table> block. Start anchors the slot; End
// only fences its lines off from scalar detection. HTML holds the whole
// lines Start..End, including any text sharing a line with the tags.
type Table struct {
	Start int
	End   int
	HTML  string
}

// Span returns the number of lines the table occupies.
func (t Table) Span() int {
	return t.End - t.Start + 1
}

// Slots holds both kinds in document order.
type Slots struct {
	Scalars []Scalar
	Tables  []Table
}

// Empty reports whether nothing fillable was found.
func (s Slots) Empty() bool {
	return len(s.Scalars) == 0 && len(s.Tables) == 0
}

var tableRe = regexp.MustCompile(`(?is)<table.*?</table>`)

const (
	paraOpen = "<p>"
	outOpen  = "<o:p>"
	blank    = "&nbsp;"
)

// Extract scans the working copy for tables, then for scalar questions on
// every line outside them.
func Extract(doc *document.Document) Slots {
	var s Slots
	content := strings.Join(doc.Lines, "\n")

	for _, loc := range tableRe.FindAllStringIndex(content, -1) {
		start := strings.Count(content[:loc[0]], "\n") + 1
		end := strings.Count(content[:loc[1]], "\n") + 1
		// Tables sharing a line form one slot.
		if n := len(s.Tables); n > 0 && start <= s.Tables[n-1].End {
			s.Tables[n-1].End = end
			continue
		}
		s.Tables = append(s.Tables, Table{Start: start, End: end})
	}
	for i := range s.Tables {
		t := &s.Tables[i]
		t.HTML = strings.Join(doc.Lines[t.Start-1:t.End], "\n")
	}

	ti := 0
	for i, line := range doc.Lines {
		n := i + 1
		for ti < len(s.Tables) && s.Tables[ti].End < n {
			ti++
		}
		if ti < len(s.Tables) && s.Tables[ti].Start <= n {
			continue
		}
		if document.HasMarker(line) {
			continue
		}
		q, ok := Question(line)
		if !ok {
			continue
		}
		s.Scalars = append(s.Scalars, Scalar{Anchor: n, Question: q})
		zap.L().Debug("slots: detected question", zap.Int("anchor", n), zap.String("question", q))
	}

	return s
}

// Question returns the question text of a simplified paragraph line: the
// text between the first <p> not followed by a &nbsp; placeholder and the
// next <o:p>.
func Question(line string) (string, bool) {
	rest := line
	for {
		i := strings.Index(rest, paraOpen)
		if i < 0 {
			return "", false
		}
		rest = rest[i+len(paraOpen):]
		if strings.HasPrefix(strings.TrimLeft(rest, " \t\r\n\f\v"), blank) {
			continue
		}
		j := strings.Index(rest, outOpen)
		if j < 0 {
			return "", false
		}
		q := strings.TrimSpace(rest[:j])
		return q, q != ""
	}
}
