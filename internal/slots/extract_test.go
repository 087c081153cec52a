package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/document"
)

func TestQuestion(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
		ok   bool
	}{
		{"plain", "<p>1. 公司名称<o:p></o:p></p>", "1. 公司名称", true},
		{"padded", "<p>   请说明  <o:p></o:p></p>", "请说明", true},
		{"placeholder", "<p><o:p>&nbsp;</o:p></p>", "", false},
		{"nbsp_first", "<p>&nbsp;x<o:p></o:p></p>", "", false},
		{"nbsp_then_question", "<p>&nbsp;</p><p>问题<o:p></o:p></p>", "问题", true},
		{"no_output_tag", "<p>heading</p>", "", false},
		{"no_paragraph", "<h1>一、基本信息</h1>", "", false},
		{"empty_capture", "<p> <o:p></o:p></p>", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Question(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract(t *testing.T) {
	doc := document.FromLines([]string{
		"<html>",                                          // 1
		"<p>1. 公司名称<o:p></o:p></p>",                       // 2
		"<p><o:p>&nbsp;</o:p></p> " + document.FormatMarker(12), // 3
		"<table>",                                         // 4
		" <tr>",                                           // 5
		"  <td><p>职务<o:p></o:p></p></td>",                 // 6
		"  <td><p><o:p>&nbsp;</o:p></p></td> " + document.FormatMarker(18), // 7
		" </tr>",                                          // 8
		"</TABLE>",                                        // 9
		"<p>2. 成立日期<o:p></o:p></p>",                       // 10
		"<p>已答<o:p></o:p></p> " + document.FormatMarker(30), // 11
		"<table><tr><td><p>x<o:p></o:p></p></td></tr></table>", // 12
	})

	s := Extract(doc)

	require.Len(t, s.Tables, 2)
	assert.Equal(t, 4, s.Tables[0].Start)
	assert.Equal(t, 9, s.Tables[0].End)
	assert.Equal(t, 6, s.Tables[0].Span())
	assert.Equal(t, "<table>\n <tr>\n  <td><p>职务<o:p></o:p></p></td>\n  <td><p><o:p>&nbsp;</o:p></p></td> "+document.FormatMarker(18)+"\n </tr>\n</TABLE>", s.Tables[0].HTML)
	assert.Equal(t, 12, s.Tables[1].Start)
	assert.Equal(t, 12, s.Tables[1].End)

	assert.Equal(t, []Scalar{
		{Anchor: 2, Question: "1. 公司名称"},
		{Anchor: 10, Question: "2. 成立日期"},
	}, s.Scalars, "table lines and marker lines are never scalar slots")
	assert.False(t, s.Empty())
}

func TestExtract_FirstCloseEndsTable(t *testing.T) {
	doc := document.FromLines([]string{
		"<table>",
		"<tr><td><table><tr><td>inner</td></tr></table></td></tr>",
		"</table>",
		"<p>after<o:p></o:p></p>",
	})
	s := Extract(doc)
	require.Len(t, s.Tables, 1)
	assert.Equal(t, 1, s.Tables[0].Start)
	assert.Equal(t, 2, s.Tables[0].End)
	require.Len(t, s.Scalars, 1)
	assert.Equal(t, 4, s.Scalars[0].Anchor)
}

func TestExtract_WholeLines(t *testing.T) {
	doc := document.FromLines([]string{
		"<p>前文说明</p><table>",
		"<tr><td>x</td></tr>",
		"</table><p>后记</p>",
		"<table><tr><td>a</td></tr></table><table>",
		"<tr><td>b</td></tr></table>",
	})
	s := Extract(doc)

	require.Len(t, s.Tables, 2)
	assert.Equal(t, "<p>前文说明</p><table>\n<tr><td>x</td></tr>\n</table><p>后记</p>", s.Tables[0].HTML)
	assert.Equal(t, 4, s.Tables[1].Start)
	assert.Equal(t, 5, s.Tables[1].End, "tables sharing a line are one slot")
	assert.Equal(t, "<table><tr><td>a</td></tr></table><table>\n<tr><td>b</td></tr></table>", s.Tables[1].HTML)
}

func TestExtract_Empty(t *testing.T) {
	s := Extract(document.FromLines([]string{"<html>", "</html>"}))
	assert.True(t, s.Empty())
}
