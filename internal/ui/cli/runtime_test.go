package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"handbook/internal/core/app"
	"handbook/internal/core/config"
	"handbook/internal/ui/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"-check", "-workers", "3", "-out", "build", "src", "docs"})
	require.NoError(t, err)
	assert.True(t, opts.check)
	assert.Equal(t, 3, opts.workers)
	assert.Equal(t, "build", opts.outDir)
	assert.Equal(t, []string{"src", "docs"}, opts.args)

	_, err = parseOptions([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestApplyModeOptions_RejectsCombinedOutputModes(t *testing.T) {
	opts := &cliOptions{stdout: true, inPlace: true}
	err := applyModeOptions(opts, defaultConfig(t), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestApplyModeOptions_RunsIsExclusive(t *testing.T) {
	opts := &cliOptions{runs: 5, check: true}
	err := applyModeOptions(opts, defaultConfig(t), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--runs")
}

func TestApplyModeOptions_OverridesConfig(t *testing.T) {
	cwd := t.TempDir()
	cfg := defaultConfig(t)
	opts := &cliOptions{outDir: "build", workers: 4, tsv: "sites.tsv", args: []string{"src"}}

	require.NoError(t, applyModeOptions(opts, cfg, cwd))
	assert.Equal(t, config.OutputDir, cfg.Output.Mode)
	assert.Equal(t, filepath.Join(cwd, "build"), cfg.Output.Dir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, filepath.Join(cwd, "sites.tsv"), cfg.Output.TSV)
	assert.Equal(t, []string{filepath.Join(cwd, "src")}, cfg.Roots)
	assert.False(t, opts.once)
}

func TestApplyModeOptions_CheckAndStdoutRunOnce(t *testing.T) {
	for _, opts := range []*cliOptions{{check: true}, {stdout: true}} {
		cfg := defaultConfig(t)
		require.NoError(t, applyModeOptions(opts, cfg, t.TempDir()))
		assert.True(t, opts.once)
	}
}

func TestApplyModeOptions_RevalidatesConfig(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Workers = 0
	err := applyModeOptions(&cliOptions{}, cfg, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be >= 1")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, path, err := loadConfig("", dir)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, config.OutputDir, cfg.Output.Mode)

	cfgPath := filepath.Join(dir, config.DefaultFileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte("version = 1\n[output]\nmode = \"none\"\n"), 0o644))
	nested := filepath.Join(dir, "src", "dir")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, path, err = loadConfig("", nested)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, path)
	assert.Equal(t, config.OutputNone, cfg.Output.Mode)

	_, _, err = loadConfig(filepath.Join(dir, "missing.toml"), dir)
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	clean := app.RunSummary{Totals: report.Totals{Files: 2, Unchanged: 2}}
	changed := app.RunSummary{Totals: report.Totals{Files: 2, Rewritten: 1}}
	failed := app.RunSummary{Totals: report.Totals{Files: 2, Failed: 1}}

	assert.Equal(t, 0, exitCode(cliOptions{}, changed))
	assert.Equal(t, 0, exitCode(cliOptions{check: true}, clean))
	assert.Equal(t, 1, exitCode(cliOptions{check: true}, changed))
	assert.Equal(t, 1, exitCode(cliOptions{}, failed))
}

func TestPrintRuns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte("{}"), 0o644))
	cfg := defaultConfig(t)
	cfg.Paths.ProjectRoot = root
	cfg.Output.Mode = config.OutputNone

	a, err := app.New(cfg, root, app.Options{})
	require.NoError(t, err)
	defer a.Close()

	var buf bytes.Buffer
	assert.Equal(t, 0, printRuns(a, 5, &buf))
	assert.Contains(t, buf.String(), "Mode")
}
