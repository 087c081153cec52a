package job

import (
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// WriteReport writes one CSV row per result to path.
func WriteReport(path string, results []Result) error {
	data, err := csvutil.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "job: marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "job: write report %s", path)
	}
	return nil
}
