package patch

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/document"
)

// MergeStats counts what Merge did.
type MergeStats struct {
	// Answers is the number of marker lines carrying an answer.
	Answers    int
	Filled     int
	Unchanged  int
	OutOfRange int
	NoSlot     int
}

var (
	answerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`<p>(.*?)<o:p>`),
		regexp.MustCompile(`<o:p>(.*?)</o:p>`),
		regexp.MustCompile(`<p>([^<]*)</o:p>`),
	}
	anyTagRe   = regexp.MustCompile(`<[^>]*>`)
	templateRe = regexp.MustCompile(`(?s)(<o:p>)(.*?)(</o:p>)`)
)

// Answers extracts the answer carried by every marker line of doc, keyed by
// marker value.
func Answers(doc *document.Document) map[int]string {
	out := make(map[int]string)
	for _, line := range doc.Lines {
		n, ok := document.ParseMarker(line)
		if !ok {
			continue
		}
		if a, ok := lineAnswer(line); ok {
			out[n] = a
		}
	}
	return out
}

func lineAnswer(line string) (string, bool) {
	body := document.StripMarkers(line)
	for _, re := range answerPatterns {
		m := re.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		if a := strings.TrimSpace(m[1]); usable(a) {
			return a, true
		}
	}
	// Table rows often come back as bare text with the marker kept.
	a := strings.TrimSpace(strings.ReplaceAll(anyTagRe.ReplaceAllString(body, ""), "&nbsp;", " "))
	return a, usable(a)
}

func usable(a string) bool {
	return a != "" && a != "&nbsp;"
}

// Merge copies answers from the working copy's marker lines into template
// line N, where N is the marker value: the content of the first
// <o:p>...</o:p> on that line is replaced. When baseline (the working copy
// before any answer was patched) is non-nil, lines whose answer did not
// change are skipped, so question text picked up by the extraction patterns
// is never echoed into the template.
func Merge(template, working, baseline *document.Document) MergeStats {
	var stats MergeStats

	answers := Answers(working)
	var before map[int]string
	if baseline != nil {
		before = Answers(baseline)
	}

	seen := make(map[int]bool)
	for _, n := range working.Markers() {
		a, ok := answers[n]
		if !ok || seen[n] {
			continue
		}
		seen[n] = true
		stats.Answers++
		if prev, had := before[n]; had && prev == a {
			stats.Unchanged++
			continue
		}

		line, ok := template.Line(n)
		if !ok {
			zap.L().Warn("patch: marker outside template", zap.Int("marker", n), zap.Int("lines", template.Len()))
			stats.OutOfRange++
			continue
		}
		loc := templateRe.FindStringSubmatchIndex(line)
		if loc == nil {
			zap.L().Warn("patch: template line has no output tag", zap.Int("marker", n))
			stats.NoSlot++
			continue
		}
		template.SetLine(n, line[:loc[4]]+a+line[loc[5]:])
		stats.Filled++
	}

	return stats
}
