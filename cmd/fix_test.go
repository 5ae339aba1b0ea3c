package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "mender.dev/pkg/mender/internal/model"
)

const brokenClockTest = "beforeEach(() => {\n  jest.setSystemTime(new Date(2023, 0, 1);\n});\n"

const cleanTest = "it('adds', () => {\n  expect(add(1, 2)).toBe(3);\n});\n"

func writeTestFile(t *testing.T, dir, name, text string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))

	return path
}

func TestFixCmd_DryRunWritesReportAndMetrics(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "clock.test.ts", brokenClockTest)
	reportPath := filepath.Join(t.TempDir(), "report.yaml")
	metricsPath := filepath.Join(t.TempDir(), "mender.prom")

	out := &bytes.Buffer{}
	cmd, _ := newTestRoot(t, out, newFixCmd(), "--dry-run", "--report", reportPath, "--metrics-file", metricsPath, dir)

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Repairing 1 file(s) with 1 worker(s)")
	assert.Contains(t, out.String(), "dry run")
	assert.Contains(t, out.String(), "Summary:")

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, brokenClockTest, string(onDisk))

	report, err := reportStore.LoadReport(m.Path(reportPath))
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.TotalFiles)
	assert.Equal(t, 0, report.FilesFailed)
	require.Len(t, report.Results, 1)
	assert.Equal(t, m.Path(path), report.Results[0].Path)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "mender_files_total")
}

func TestFixCmd_LeavesValidFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "math.test.ts", cleanTest)

	out := &bytes.Buffer{}
	cmd, _ := newTestRoot(t, out, newFixCmd(), dir)

	require.NoError(t, cmd.Execute())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cleanTest, string(onDisk))
	assert.Contains(t, out.String(), "CONVERGED")
	assert.Contains(t, out.String(), "fixed=1")
}

func TestFixCmd_MergesSeveralPaths(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeTestFile(t, first, "a.test.ts", cleanTest)
	writeTestFile(t, second, "nested/b.spec.ts", cleanTest)
	reportPath := filepath.Join(t.TempDir(), "report.yaml")

	cmd, _ := newTestRoot(t, &bytes.Buffer{}, newFixCmd(), "--dry-run", "--report", reportPath, first, second)

	require.NoError(t, cmd.Execute())

	report, err := reportStore.LoadReport(m.Path(reportPath))
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalFiles)
	assert.Equal(t, 2, report.FilesFixed)
	assert.InDelta(t, 1.0, report.SuccessRate, 1e-9)
}

func TestFixCmd_PatternFlagSelectsFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.test.ts", cleanTest)
	writeTestFile(t, dir, "b.spec.ts", cleanTest)
	reportPath := filepath.Join(t.TempDir(), "report.yaml")

	cmd, _ := newTestRoot(t, &bytes.Buffer{}, newFixCmd(), "--dry-run", "-P", "*.spec.ts", "--report", reportPath, dir)

	require.NoError(t, cmd.Execute())

	report, err := reportStore.LoadReport(m.Path(reportPath))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, m.Path(filepath.Join(dir, "b.spec.ts")), report.Results[0].Path)
}

func TestFixCmd_MissingRootFails(t *testing.T) {
	cmd, _ := newTestRoot(t, &bytes.Buffer{}, newFixCmd(), filepath.Join(t.TempDir(), "missing"))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to repair")
}

func TestFixCmd_UnknownParserMode(t *testing.T) {
	setConfig(t, parserModeKey, "wasm")

	cmd, _ := newTestRoot(t, &bytes.Buffer{}, newFixCmd(), t.TempDir())

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parser.mode")
}

func TestFixCmd_FixturesDryRun(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "report.yaml")

	cmd, _ := newTestRoot(t, &bytes.Buffer{}, newFixCmd(), "--dry-run", "--parallel", "2", "--report", reportPath, filepath.Join("..", "examples"))

	require.NoError(t, cmd.Execute())

	report, err := reportStore.LoadReport(m.Path(reportPath))
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalFiles)
	assert.Equal(t, 0, report.FilesFailed)
	assert.Positive(t, report.TotalEdits)
}
