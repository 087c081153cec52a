package dispatch

import (
	"strings"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/answer"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/slots"
)

// Item is one anchor and the text sent for it.
type Item struct {
	Anchor int
	Text   string
}

// Batch is one request's worth of slots. Item order is the order the reply's
// segments are expected in.
type Batch struct {
	ID    int
	Kind  answer.Kind
	Items []Item
	// Span is the number of working-copy lines a table chunk covers.
	Span int
}

// Anchors returns the batch's anchors in order.
func (b Batch) Anchors() []int {
	out := make([]int, len(b.Items))
	for i, it := range b.Items {
		out[i] = it.Anchor
	}
	return out
}

// ScalarBatches splits scalars into consecutive batches of at most size
// items, keeping document order.
func ScalarBatches(scalars []slots.Scalar, size int) []Batch {
	if size <= 0 {
		size = 10
	}
	var out []Batch
	for start := 0; start < len(scalars); start += size {
		end := min(start+size, len(scalars))
		b := Batch{Kind: answer.KindScalar, Items: make([]Item, 0, end-start)}
		for _, s := range scalars[start:end] {
			b.Items = append(b.Items, Item{Anchor: s.Anchor, Text: s.Question})
		}
		out = append(out, b)
	}
	return out
}

// EstimateTokens approximates the token count of s as its byte length over
// bytesPerToken.
func EstimateTokens(s string, bytesPerToken int) int {
	return tokensFor(len(s), bytesPerToken)
}

func tokensFor(n, bytesPerToken int) int {
	if bytesPerToken <= 0 {
		bytesPerToken = 4
	}
	return n / bytesPerToken
}

// TableChunks splits a table into line-aligned chunks whose estimated token
// count stays within budget. Rows (through a closing </tr>) are never split;
// a single row larger than budget becomes its own chunk. A budget <= 0 keeps
// the table whole. Each chunk is anchored at its first line.
func TableChunks(t slots.Table, budget, bytesPerToken int) []Batch {
	lines := strings.Split(t.HTML, "\n")
	if budget <= 0 || EstimateTokens(t.HTML, bytesPerToken) <= budget {
		return []Batch{tableChunk(t.Start, lines)}
	}

	var (
		out      []Batch
		chunk    []string
		chunkAt  = t.Start
		chunkLen int
	)
	flush := func(next int) {
		if len(chunk) > 0 {
			out = append(out, tableChunk(chunkAt, chunk))
		}
		chunk = nil
		chunkLen = 0
		chunkAt = next
	}

	for _, row := range rows(lines) {
		rowLen := 0
		for _, l := range row.lines {
			rowLen += len(l) + 1
		}
		if len(chunk) > 0 && tokensFor(chunkLen+rowLen, bytesPerToken) > budget {
			flush(t.Start + row.offset)
		}
		chunk = append(chunk, row.lines...)
		chunkLen += rowLen
	}
	flush(0)

	return out
}

func tableChunk(anchor int, lines []string) Batch {
	return Batch{
		Kind:  answer.KindTable,
		Items: []Item{{Anchor: anchor, Text: strings.Join(lines, "\n")}},
		Span:  len(lines),
	}
}

type row struct {
	offset int
	lines  []string
}

// rows groups table lines so each group ends with a line closing a <tr>.
// Lines outside any row form single-line groups.
func rows(lines []string) []row {
	var (
		out  []row
		cur  row
		open bool
	)
	for i, l := range lines {
		lower := strings.ToLower(l)
		if len(cur.lines) == 0 {
			cur.offset = i
		}
		cur.lines = append(cur.lines, l)
		if strings.Contains(lower, "<tr") {
			open = true
		}
		if strings.Contains(lower, "</tr>") || !open {
			out = append(out, cur)
			cur = row{}
			open = false
		}
	}
	if len(cur.lines) > 0 {
		out = append(out, cur)
	}
	return out
}
