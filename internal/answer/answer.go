// Package answer turns raw Answering Service replies into per-anchor
// answers.
//
// The reply shape is decided once by Parse. Scalar batches use the pipe
// protocol: segments separated by "|||", one per question in batch order,
// with "=" meaning "no answer". The protocol exists for models that cannot
// return structured output; when the service can, it should answer with
// {"answers":[{"anchor":N,"answer":"..."}]} instead, which Parse also
// accepts.
package answer

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	// Delimiter separates scalar answers in a pipe-protocol reply.
	Delimiter = "|||"
	// Sentinel is a segment meaning "leave this anchor unanswered".
	Sentinel = "="
)

// Kind is the kind of batch a reply belongs to.
type Kind int

const (
	KindScalar Kind = iota
	KindTable
)

func (k Kind) String() string {
	if k == KindTable {
		return "table"
	}
	return "scalar"
}

// Result is a parsed reply. It is one of ScalarBatchAnswer, TableAnswer or
// AnchoredAnswer.
type Result interface {
	isResult()
}

// ScalarBatchAnswer holds the non-empty segments of a pipe-protocol reply in
// reply order.
type ScalarBatchAnswer struct {
	Segments []string
}

// TableAnswer holds a reconstructed table block.
type TableAnswer struct {
	HTML string
}

// AnchoredAnswer holds answers that name their anchors explicitly.
type AnchoredAnswer struct {
	Answers []Anchored
}

// Anchored is one entry of a structured reply.
type Anchored struct {
	Anchor int    `json:"anchor"`
	Answer string `json:"answer"`
}

func (ScalarBatchAnswer) isResult() {}
func (TableAnswer) isResult()       {}
func (AnchoredAnswer) isResult()    {}

var (
	fenceRe     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n?```$")
	separatorRe = regexp.MustCompile(`^:?-{2,}:?$`)
)

// Parse classifies raw for a batch of the given kind.
func Parse(raw string, kind Kind) Result {
	text := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if kind == KindTable || strings.HasPrefix(strings.ToLower(text), "<table") {
		return TableAnswer{HTML: text}
	}

	if strings.HasPrefix(text, "{") {
		var doc struct {
			Answers []Anchored `json:"answers"`
		}
		if err := json.Unmarshal([]byte(text), &doc); err == nil && len(doc.Answers) > 0 {
			return AnchoredAnswer{Answers: doc.Answers}
		}
	}

	if segs, ok := markdownSegments(text); ok {
		return ScalarBatchAnswer{Segments: segs}
	}

	var segs []string
	for _, s := range strings.Split(text, Delimiter) {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	return ScalarBatchAnswer{Segments: segs}
}

// markdownSegments reads the last column of a markdown table reply. A reply
// is only treated as a table when it has a separator row; rows above it are
// headers. An empty answer cell keeps its position as Sentinel.
func markdownSegments(text string) ([]string, bool) {
	var segs []string
	hasSep := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) < 2 || !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			return nil, false
		}
		cells := strings.Split(line[1:len(line)-1], "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if isSeparator(cells) {
			hasSep = true
			continue
		}
		if !hasSep {
			continue
		}
		last := cells[len(cells)-1]
		if last == "" {
			last = Sentinel
		}
		segs = append(segs, last)
	}
	if !hasSep || len(segs) == 0 {
		return nil, false
	}
	return segs, true
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if !separatorRe.MatchString(c) {
			return false
		}
	}
	return true
}

// Demux maps a parsed reply onto the batch's anchors, in batch order.
// Anchors without an answer are absent from the map. Every answer of a
// scalar batch is flattened to one line, table-shaped replies included.
func Demux(kind Kind, anchors []int, r Result) map[int]string {
	out := make(map[int]string, len(anchors))

	switch res := r.(type) {
	case TableAnswer:
		if len(anchors) == 0 || res.HTML == "" {
			return out
		}
		if len(anchors) > 1 {
			zap.L().Warn("answer: table reply for multi-anchor batch, using first anchor",
				zap.Int("anchors", len(anchors)),
			)
		}
		if kind == KindScalar {
			out[anchors[0]] = FlattenScalar(res.HTML)
		} else {
			out[anchors[0]] = res.HTML
		}

	case ScalarBatchAnswer:
		for i, seg := range res.Segments {
			if i >= len(anchors) {
				zap.L().Warn("answer: more segments than anchors, dropping excess",
					zap.Int("segments", len(res.Segments)),
					zap.Int("anchors", len(anchors)),
				)
				break
			}
			if seg == Sentinel {
				continue
			}
			out[anchors[i]] = FlattenScalar(seg)
		}

	case AnchoredAnswer:
		want := make(map[int]bool, len(anchors))
		for _, a := range anchors {
			want[a] = true
		}
		for _, a := range res.Answers {
			ans := strings.TrimSpace(a.Answer)
			if !want[a.Anchor] {
				zap.L().Warn("answer: reply names anchor outside batch", zap.Int("anchor", a.Anchor))
				continue
			}
			if ans == "" || ans == Sentinel {
				continue
			}
			out[a.Anchor] = FlattenScalar(ans)
		}
	}

	return out
}

var lineBreakRe = regexp.MustCompile(`\s*(?:\r\n|\r|\n)\s*`)

// FlattenScalar replaces every line break, with the whitespace around it,
// by a single space.
func FlattenScalar(s string) string {
	return lineBreakRe.ReplaceAllString(s, " ")
}
