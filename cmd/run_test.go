package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/config"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/document"
	"github.com/zihaomo080808/FileprocessingFastGPT/internal/job"
)

func testConfig() *config.Config {
	return &config.Config{
		Answering: config.AnsweringConfig{Provider: "fastgpt", MaxAttempts: 1, TimeoutSecs: 5},
		Batch: config.BatchConfig{
			QuestionNumber:   10,
			MaxConcurrent:    2,
			TableTokenBudget: 6000,
			BytesPerToken:    4,
		},
		Process: config.ProcessConfig{MarkerSearch: "inclusive", BothSteps: true},
	}
}

// withRunFlags resets the run command's flag state after the test.
func withRunFlags(t *testing.T, steps, report string) {
	t.Helper()
	oldCfg := cfg
	runSteps, runReport = steps, report
	runCmd.SetContext(context.Background())
	t.Cleanup(func() {
		cfg = oldCfg
		runSteps, runReport = string(job.StepBoth), ""
		_ = runCmd.Flags().Set("steps", string(job.StepBoth))
		runCmd.Flags().Lookup("steps").Changed = false
	})
}

func writeQuestionnaire(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := strings.Join([]string{
		"<p class=MsoNormal>1. 公司名称<o:p></o:p></p>",
		"<p class=MsoNormal><o:p>&nbsp;</o:p></p>",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCmd_Flags_Exist(t *testing.T) {
	steps := runCmd.Flags().Lookup("steps")
	require.NotNil(t, steps)
	assert.Equal(t, "both", steps.DefValue)
	require.NotNil(t, runCmd.Flags().Lookup("report"))
}

func TestRunCmd_RunE_TagOnlyWithReport(t *testing.T) {
	dir := t.TempDir()
	input := writeQuestionnaire(t, dir, "ddq.htm")
	report := filepath.Join(dir, "report.csv")

	withRunFlags(t, "1", report)
	cfg = testConfig()

	require.NoError(t, runCmd.RunE(runCmd, []string{filepath.Join(dir, "*.htm")}))

	tagged, err := document.ReadFile(job.OutputPaths(input).Tagged)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, tagged.Markers())

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ddq.htm,1,1,")
}

func TestRunCmd_RunE_NoInputFiles(t *testing.T) {
	withRunFlags(t, "1", "")
	cfg = testConfig()

	err := runCmd.RunE(runCmd, []string{filepath.Join(t.TempDir(), "*.htm")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input files")
}

func TestRunCmd_RunE_InvalidSteps(t *testing.T) {
	withRunFlags(t, "3", "")
	cfg = testConfig()

	err := runCmd.RunE(runCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid steps")
}

func TestRunCmd_RunE_FailsOnValidation(t *testing.T) {
	dir := t.TempDir()
	writeQuestionnaire(t, dir, "ddq.htm")

	withRunFlags(t, "both", "")
	cfg = testConfig()

	err := runCmd.RunE(runCmd, []string{dir + "/ddq.htm"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answering.url is required")
	assert.Contains(t, err.Error(), "answering.api_key is required")
}

func TestRunInputs_ConfigMode(t *testing.T) {
	dir := t.TempDir()
	listFile := filepath.Join(dir, "files.yaml")
	require.NoError(t, os.WriteFile(listFile, []byte("- b.htm\n- c.htm\n"), 0o644))

	tests := []struct {
		name      string
		bothSteps bool
		want      job.Steps
	}{
		{"both_steps", true, job.StepBoth},
		{"tag_only", false, job.StepTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRunFlags(t, "both", "")
			cfg = testConfig()
			cfg.Process.ConfigMode = true
			cfg.Process.BothSteps = tt.bothSteps
			cfg.Process.Files = []string{"a.htm"}
			cfg.Process.FilesFile = listFile

			steps, files, err := runInputs(runCmd, []string{"ignored.htm"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, steps)
			assert.Equal(t, []string{"a.htm", "b.htm", "c.htm"}, files)
		})
	}
}

func TestRunInputs_ConfigModeExplicitSteps(t *testing.T) {
	withRunFlags(t, "both", "")
	require.NoError(t, runCmd.Flags().Set("steps", "2"))
	cfg = testConfig()
	cfg.Process.ConfigMode = true
	cfg.Process.BothSteps = true

	steps, _, err := runInputs(runCmd, nil)
	require.NoError(t, err)
	assert.Equal(t, job.StepReduce, steps)
}

func TestRunInputs_ArgsMode(t *testing.T) {
	withRunFlags(t, "2", "")
	cfg = testConfig()

	steps, files, err := runInputs(runCmd, []string{"x.htm"})
	require.NoError(t, err)
	assert.Equal(t, job.StepReduce, steps)
	assert.Equal(t, []string{"x.htm"}, files)
}
