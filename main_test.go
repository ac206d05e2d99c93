package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const emptyCoverage = `{"files": {}, "totals": {"num_statements": 0, "covered_lines": 0, "percent_covered": 0}}`

// createSampleRepo writes a project where batch -> handle -> Store.save
// -> validate, with no coverage.
func createSampleRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "service.py", `from store import Store


def handle(req):
    store = Store()
    return store.save(req)


def batch(reqs):
    for r in reqs:
        handle(r)
`)
	writeTestFile(t, dir, "store.py", `class Store:
    def __init__(self):
        self.items = []

    def save(self, item):
        return validate(item)


def validate(item):
    return item is not None
`)
	writeTestFile(t, dir, "coverage.json", emptyCoverage)
	return dir
}

func runOK(t *testing.T, args ...string) (string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	require.NoError(t, err, "stderr: %s", stderr.String())
	return stdout.String(), stderr.String()
}

type jsonReport struct {
	Version        string `json:"version"`
	TotalFunctions int    `json:"total_functions"`
	Functions      []struct {
		Function string  `json:"function"`
		Impact   int     `json:"impact"`
		Priority float64 `json:"priority"`
	} `json:"functions"`
}

func decodeReport(t *testing.T, data string) jsonReport {
	t.Helper()
	var r jsonReport
	require.NoError(t, json.Unmarshal([]byte(data), &r))
	return r
}

func TestRunTable(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out, _ := runOK(t, "--no-complexity", dir)

	assert.Contains(t, out, "Top Functions by Priority")
	assert.Contains(t, out, "validate")
	assert.Contains(t, out, "Store.save")
	assert.Contains(t, out, "handle")
	assert.NotContains(t, out, "batch", "uncalled functions are dropped")
	assert.NotContains(t, out, "__init__")
	assert.Contains(t, out, "Showing top 3 of 3 functions")
}

func TestRunJSON(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out, _ := runOK(t, "--no-complexity", "-f", "json", dir)
	r := decodeReport(t, out)

	assert.Equal(t, "1.0", r.Version)
	require.Equal(t, 3, r.TotalFunctions)
	assert.Equal(t, "store.py::validate", r.Functions[0].Function)
	assert.Equal(t, 3, r.Functions[0].Impact)
	assert.Equal(t, "store.py::Store.save", r.Functions[1].Function)
	assert.Equal(t, 2, r.Functions[1].Impact)
	assert.Equal(t, "service.py::handle", r.Functions[2].Function)
	assert.Equal(t, 1, r.Functions[2].Impact)
}

func TestRunWithComplexity(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out, _ := runOK(t, "-f", "json", dir)
	r := decodeReport(t, out)

	require.Equal(t, 3, r.TotalFunctions)
	for _, f := range r.Functions {
		assert.Greater(t, f.Priority, 0.0, f.Function)
	}
}

func TestRunOtherFormats(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	yamlOut, _ := runOK(t, "--no-complexity", "--format", "yaml", dir)
	assert.Contains(t, yamlOut, "total_functions: 3")
	assert.Contains(t, yamlOut, "function: store.py::validate")

	toonOut, _ := runOK(t, "--no-complexity", "--format", "toon", dir)
	assert.True(t, strings.HasPrefix(toonOut, "version: 1.0\n"))
	assert.Contains(t, toonOut, "functions[3]{")
}

func TestRunTop(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out, _ := runOK(t, "--no-complexity", "-n", "1", dir)
	assert.Contains(t, out, "Showing top 1 of 3 functions")
	assert.NotContains(t, out, "handle")
}

func TestRunOutputFile(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out, errOut := runOK(t, "--no-complexity", "-f", "json", "-o", "report.json", dir)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "wrote report to")

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	assert.Equal(t, 3, decodeReport(t, string(data)).TotalFunctions)
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	writeTestFile(t, dir, ".coverimpact.toml", "[report]\nformat = \"json\"\n\n[complexity]\nenabled = false\n")

	out, _ := runOK(t, dir)
	assert.Equal(t, "store.py::validate", decodeReport(t, out).Functions[0].Function)

	// Flags win over the file.
	out, _ = runOK(t, "-f", "table", dir)
	assert.Contains(t, out, "Showing top 3 of 3 functions")
}

func TestRunExclude(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out, _ := runOK(t, "--no-complexity", "-f", "json", "--exclude", "store", dir)
	r := decodeReport(t, out)

	require.Equal(t, 1, r.TotalFunctions)
	assert.Equal(t, "service.py::handle", r.Functions[0].Function)
}

func TestRunExcludeGlob(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out, _ := runOK(t, "--no-complexity", "-f", "json", "--exclude-glob", "serv*.py", dir)
	r := decodeReport(t, out)

	require.Equal(t, 1, r.TotalFunctions)
	assert.Equal(t, "store.py::validate", r.Functions[0].Function)
}

func TestRunSourceDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "app/core/calc.py", "def add(a, b):\n    return a + b\n\n\ndef total(xs):\n    return add(xs[0], xs[1])\n")
	writeTestFile(t, dir, "coverage.json", `{"files": {"app/core/calc.py": {
		"summary": {"num_statements": 4, "covered_lines": 2},
		"executed_lines": [1, 2],
		"missing_lines": [5, 6]
	}}}`)

	out, _ := runOK(t, "--no-complexity", "-f", "json", "--source-dir", "app", dir)
	r := decodeReport(t, out)

	require.Equal(t, 1, r.TotalFunctions)
	assert.Equal(t, filepath.Join("core", "calc.py")+"::add", r.Functions[0].Function)
}

func TestRunCache(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	first, _ := runOK(t, "--no-complexity", "--cache", ".coverimpact-cache", dir)
	cachePath := filepath.Join(dir, ".coverimpact-cache")
	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, first, string(data))

	// A cache newer than every input is served as-is.
	require.NoError(t, os.WriteFile(cachePath, []byte("cached\n"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(cachePath, future, future))

	second, _ := runOK(t, "--no-complexity", "--cache", ".coverimpact-cache", dir)
	assert.Equal(t, "cached\n", second)

	// Touching an input invalidates it.
	later := future.Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "store.py"), later, later))
	third, _ := runOK(t, "--no-complexity", "--cache", ".coverimpact-cache", dir)
	assert.Equal(t, first, third)
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	out, _ := runOK(t, "--version")
	assert.Equal(t, "coverimpact dev\n", out)

	out, _ = runOK(t, "-V")
	assert.Equal(t, "coverimpact dev\n", out)
}

func TestRunMissingCoverage(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "coverage.json")))

	var stdout, stderr bytes.Buffer
	err := run([]string{dir}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coverage file not found")
	assert.Contains(t, err.Error(), "--cov-report=json")
}

func TestRunNoFunctions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "script.py", "print('hi')\n")
	writeTestFile(t, dir, "coverage.json", emptyCoverage)

	var stdout, stderr bytes.Buffer
	err := run([]string{dir}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no functions found")
	assert.Contains(t, err.Error(), "--source-dir")
}

func TestRunNotADirectory(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(dir, "store.py")}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestRunBadFormat(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-f", "xml", dir}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown report format")
}

func TestRunTooManyArgs(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	assert.Error(t, run([]string{"a", "b"}, &stdout, &stderr))
}

func TestCacheIsFresh(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "in.py", "x = 1\n")
	input := filepath.Join(dir, "in.py")
	cache := filepath.Join(dir, "cache")

	assert.False(t, cacheIsFresh(cache, []string{input}), "missing cache")

	writeTestFile(t, dir, "cache", "out")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(input, past, past))
	assert.True(t, cacheIsFresh(cache, []string{input}))

	assert.False(t, cacheIsFresh(cache, []string{filepath.Join(dir, "gone.py")}), "missing input")

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(input, future, future))
	assert.False(t, cacheIsFresh(cache, []string{input}))
}
