package job

import (
	"go.uber.org/zap"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/document"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/patch"
)

// MergeFiles fills the tagged template at templatePath with the answers in
// the working copy at workingPath and writes the result to outPath in the
// template's encoding. baselinePath, when set, names the unanswered working
// copy; marker lines it already carried unchanged are not merged.
func MergeFiles(templatePath, workingPath, baselinePath, outPath string) (patch.MergeStats, error) {
	template, err := document.ReadFile(templatePath)
	if err != nil {
		return patch.MergeStats{}, err
	}
	working, err := document.ReadFile(workingPath)
	if err != nil {
		return patch.MergeStats{}, err
	}
	var baseline *document.Document
	if baselinePath != "" {
		if baseline, err = document.ReadFile(baselinePath); err != nil {
			return patch.MergeStats{}, err
		}
	}

	stats := patch.Merge(template, working, baseline)
	if err := document.WriteFile(outPath, template); err != nil {
		return stats, err
	}

	zap.L().Info("job: merged",
		zap.String("template", templatePath),
		zap.String("working", workingPath),
		zap.Int("answers", stats.Answers),
		zap.Int("filled", stats.Filled),
		zap.Int("out_of_range", stats.OutOfRange),
		zap.String("output", outPath),
	)
	return stats, nil
}
