package executor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RevCBH/ragweb/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveOutputsNonzeroExitSkipsMatching(t *testing.T) {
	dir := t.TempDir()
	def := model.JobDefinition{ID: "job-1", OutputSpec: model.OutputSpec{
		model.PrivacyModeratelySensitive: {"table": "*.csv"},
	}}

	results, err := resolveOutputs(dir, def, 1)
	require.NoError(t, err)
	require.Equal(t, 1, results.ExitCode)
	require.Nil(t, results.Outputs)
}

func TestResolveOutputsMatchesDeclaredGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "outputs", "table.csv"), "a,b\n1,2\n")

	def := model.JobDefinition{ID: "job-1", OutputSpec: model.OutputSpec{
		model.PrivacyModeratelySensitive: {"table": "*.csv"},
	}}

	results, err := resolveOutputs(dir, def, 0)
	require.NoError(t, err)
	require.Equal(t, "table.csv", results.Outputs["table"])
	require.Empty(t, results.UnmatchedPatterns)
}

func TestResolveOutputsRecordsUnmatchedPattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "outputs"), 0o755))

	def := model.JobDefinition{ID: "job-1", OutputSpec: model.OutputSpec{
		model.PrivacyModeratelySensitive: {"table": "missing-*.csv"},
	}}

	results, err := resolveOutputs(dir, def, 0)
	require.NoError(t, err)
	require.Contains(t, results.UnmatchedPatterns, "missing-*.csv")
}

func TestResolveOutputsExcludesOversizedLevel4File(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "outputs", "patients.csv"), strings.Repeat("x", 100))

	def := model.JobDefinition{
		ID:                "job-1",
		Level4MaxFilesize: 10,
		OutputSpec: model.OutputSpec{
			model.PrivacyHighlySensitive: {"patients": "*.csv"},
		},
	}

	results, err := resolveOutputs(dir, def, 0)
	require.NoError(t, err)
	require.Empty(t, results.Outputs)
	require.Contains(t, results.Level4ExcludedFiles, "patients.csv")
}

func TestResolveOutputsExcludesLevel4FileWithTooManyRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "outputs", "patients.csv"), "h\n1\n2\n3\n")

	def := model.JobDefinition{
		ID:               "job-1",
		Level4MaxCSVRows: 2,
		OutputSpec: model.OutputSpec{
			model.PrivacyHighlySensitive: {"patients": "*.csv"},
		},
	}

	results, err := resolveOutputs(dir, def, 0)
	require.NoError(t, err)
	require.Contains(t, results.Level4ExcludedFiles, "patients.csv")
}

func TestExceedsLevel4LimitsAllowsFileWithinBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.csv")
	writeFile(t, path, "h\n1\n")

	exceeds, err := exceedsLevel4Limits(path, 1<<20, 100)
	require.NoError(t, err)
	require.False(t, exceeds)
}
