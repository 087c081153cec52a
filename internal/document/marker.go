package document

import (
	"regexp"
	"strconv"
	"strings"
)

// MarkerPrefix is the literal that opens every position marker. It is matched
// as an exact substring, never translated.
const MarkerPrefix = "<!-- 绝对编码："

const markerSuffix = " -->"

var markerRe = regexp.MustCompile(`<!-- 绝对编码：(\d+) -->`)

// FormatMarker renders the marker for line n.
func FormatMarker(n int) string {
	return MarkerPrefix + strconv.Itoa(n) + markerSuffix
}

// HasMarker reports whether line carries a position marker.
func HasMarker(line string) bool {
	return strings.Contains(line, MarkerPrefix)
}

// ParseMarker returns the value of the first well-formed marker on line.
func ParseMarker(line string) (int, bool) {
	m := markerRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Markers returns every marker value in document order.
func (d *Document) Markers() []int {
	var out []int
	for _, line := range d.Lines {
		if n, ok := ParseMarker(line); ok {
			out = append(out, n)
		}
	}
	return out
}

// StripMarkers removes every marker from line.
func StripMarkers(line string) string {
	return markerRe.ReplaceAllString(line, "")
}
