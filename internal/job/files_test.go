package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("<p>x</p>\n"), 0o644))
}

func TestResolveFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.htm")
	b := filepath.Join(dir, "b.htm")
	c := filepath.Join(dir, "sub", "c.htm")
	touch(t, a)
	touch(t, b)
	touch(t, c)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dir.htm"), 0o755))

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"plain_file", []string{a}, []string{a}},
		{"glob", []string{filepath.Join(dir, "*.htm")}, []string{a, b}},
		{"recursive_glob", []string{filepath.Join(dir, "**", "c.htm")}, []string{c}},
		{"dedupe", []string{a, filepath.Join(dir, "*.htm")}, []string{a, b}},
		{"missing", []string{filepath.Join(dir, "nope.htm")}, nil},
		{"no_match", []string{filepath.Join(dir, "*.docx")}, nil},
		{"bad_pattern", []string{filepath.Join(dir, "[")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFiles(tt.patterns))
		})
	}
}

func TestOutputPaths(t *testing.T) {
	got := OutputPaths(filepath.Join("data", "ddq.htm"))
	assert.Equal(t, Outputs{
		Tagged:     filepath.Join("data", "ddq_with_comments.htm"),
		Simplified: filepath.Join("data", "ddq_simplified.txt"),
		Working:    filepath.Join("data", "ddq_simplified_copy.txt"),
		Final:      filepath.Join("data", "ddq_final_filled.html"),
	}, got)

	tagged := OutputPaths("ddq_with_comments.htm")
	assert.Equal(t, "ddq_simplified.txt", tagged.Simplified)
	assert.Equal(t, "ddq_simplified_copy.txt", tagged.Working)
	assert.Equal(t, "ddq_final_filled.html", tagged.Final)
}

func TestParseSteps(t *testing.T) {
	for _, s := range []string{"1", "2", "both"} {
		got, err := ParseSteps(s)
		require.NoError(t, err)
		assert.Equal(t, Steps(s), got)
	}
	_, err := ParseSteps("3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid steps")

	assert.True(t, StepBoth.NeedsAnswering())
	assert.False(t, StepTag.NeedsAnswering())
	assert.False(t, StepReduce.NeedsAnswering())
}
