package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/coverimpact/internal/complexity"
	"github.com/phobologic/coverimpact/internal/config"
)

func TestInitCreatesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, errOut := runOK(t, "init", dir)
	assert.Contains(t, errOut, "wrote default config")

	data, err := os.ReadFile(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTOML(), data)
}

func TestInitRefusesOverwrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, config.FileName, "[report]\ntop = 5\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"init", dir}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	data, err := os.ReadFile(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "[report]\ntop = 5\n", string(data))

	runOK(t, "init", "--force", dir)
	data, err = os.ReadFile(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTOML(), data)
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	out, _ := runOK(t, "init", "--dry-run", "--model", dir)
	assert.Contains(t, out, "[scan]")
	assert.Contains(t, out, "baseline model")

	_, err := os.Stat(filepath.Join(dir, config.FileName))
	assert.True(t, os.IsNotExist(err), "dry run must not write")
	assert.NoDirExists(t, filepath.Join(dir, complexity.DefaultModelDir))
}

func TestInitModel(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, errOut := runOK(t, "init", "--model", dir)
	assert.Contains(t, errOut, "wrote baseline model 1.0")

	models := filepath.Join(dir, complexity.DefaultModelDir)
	m, err := complexity.LoadModel(filepath.Join(models, complexity.ModelPrefix+"1.0.json"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", m.Version)

	// A second run bumps the version.
	_, errOut = runOK(t, "init", "--force", "--model", dir)
	assert.Contains(t, errOut, "wrote baseline model 1.1")
	assert.FileExists(t, filepath.Join(models, complexity.ModelPrefix+"1.1.json"))
}

func TestInitConfigLoads(t *testing.T) {
	t.Setenv(config.EnvModelPath, "")
	dir := t.TempDir()

	runOK(t, "init", dir)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	def, err := config.Default()
	require.NoError(t, err)
	assert.Equal(t, def, cfg)
}

func TestRunUsesInitModel(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	runOK(t, "init", "--model", dir)
	out, _ := runOK(t, "-f", "json", "-v", dir)
	r := decodeReport(t, out)
	assert.Equal(t, 3, r.TotalFunctions)
}
