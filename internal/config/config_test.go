package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.Equal(t, 1, cfg.TestingAgentRatio)
	assert.Equal(t, "autocoder-worker", cfg.WorkerBinary)
}

func TestLoadUsesProjectDirWhenNoConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectDir)
	assert.Equal(t, 3, cfg.MaxConcurrency)
}

func TestLoadReadsProjectConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "max_concurrency: 5\ntesting_agent_ratio: 2\nmodel: opus\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".autocoder.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxConcurrency)
	assert.Equal(t, 2, cfg.TestingAgentRatio)
	assert.Equal(t, "opus", cfg.Model)
}

func TestLoadReadsEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUTOCODER_MODEL", "haiku")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "haiku", cfg.Model)
}

func TestApplyFlagsOverridesLoadedValues(t *testing.T) {
	cfg := Default()
	cfg.ProjectDir = "/from/file"
	cfg.MaxConcurrency = 3

	cfg.ApplyFlags("/from/flag", "opus", "", 5, -1, true, true)

	assert.Equal(t, "/from/flag", cfg.ProjectDir)
	assert.Equal(t, 5, cfg.MaxConcurrency)
	assert.True(t, cfg.Yolo)
}

func TestValidateRejectsEmptyProjectDir(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())
}

func TestValidateClampsOutOfRangeValues(t *testing.T) {
	cfg := Default()
	cfg.ProjectDir = "/some/project"
	cfg.MaxConcurrency = 99
	cfg.TestingAgentRatio = 99

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.MaxConcurrency)
	assert.Equal(t, 3, cfg.TestingAgentRatio)
}

func TestWorkerSpecReflectsConfig(t *testing.T) {
	cfg := Default()
	cfg.ProjectDir = "/some/project"
	cfg.Model = "sonnet"
	cfg.Yolo = true

	spec := cfg.WorkerSpec()
	assert.Equal(t, "/some/project", spec.ProjectDir)
	assert.Equal(t, "sonnet", spec.Model)
	assert.True(t, spec.Yolo)
}

func TestLoadSeedHintsMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()

	hints, found, err := LoadSeedHints(dir)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, hints)
}

func TestLoadSeedHintsParsesYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".autocoder"), 0o755))
	yaml := "description: seed the auth module first\npriorities:\n  - auth\n  - billing\nexclude:\n  - legacy\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".autocoder", "seed-hints.yaml"), []byte(yaml), 0o644))

	hints, found, err := LoadSeedHints(dir)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "seed the auth module first", hints.Description)
	assert.Equal(t, []string{"auth", "billing"}, hints.Priorities)
	assert.Equal(t, []string{"legacy"}, hints.Exclude)
}
