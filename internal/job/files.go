package job

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	"go.uber.org/zap"
)

// ResolveFiles expands each pattern to the files it names: an existing file
// is taken as is, anything else is globbed ("**" crosses directories).
// Patterns matching nothing are logged and skipped. Duplicates are dropped,
// first occurrence wins.
func ResolveFiles(patterns []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		key := filepath.Clean(p)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, p)
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.Mode().IsRegular() {
			add(pattern)
			continue
		}
		matches, err := doublestar.Glob(pattern)
		if err != nil {
			zap.L().Warn("job: bad file pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		sort.Strings(matches)
		n := 0
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
				add(m)
				n++
			}
		}
		if n == 0 {
			zap.L().Warn("job: no files match pattern", zap.String("pattern", pattern))
		}
	}
	return out
}

// Outputs are the files written for one input.
type Outputs struct {
	// Tagged is the input with position markers added.
	Tagged string
	// Simplified is the reduced working copy before answering.
	Simplified string
	// Working is the answered working copy.
	Working string
	// Final is the tagged original with answers merged in.
	Final string
}

const taggedSuffix = "_with_comments"

// OutputPaths derives the output names for input. All but the tagged name
// drop a "_with_comments" suffix so an already tagged input maps back to its
// source's names.
func OutputPaths(input string) Outputs {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)

	dir, name := filepath.Split(base)
	source := filepath.Join(dir, strings.Replace(name, taggedSuffix, "", 1))
	simple := source + "_simplified"

	return Outputs{
		Tagged:     base + taggedSuffix + ext,
		Simplified: simple + ".txt",
		Working:    simple + "_copy.txt",
		Final:      source + "_final_filled.html",
	}
}
