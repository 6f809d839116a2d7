package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"handbook/internal/core/app"
	"handbook/internal/core/config"
	"handbook/internal/ui/cli"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `import { source as sample } from '@handbook/source';
import * as handbook from '@handbook/source';

export const eager = sample(require('./samples/Sample'));
export const lazy = handbook.source(() => import('./samples/Sample'));
export const ignored = sample(load('./samples/Sample'));
`

func createProject(t *testing.T, tmpDir string) {
	t.Helper()
	files := map[string]string{
		"package.json":               "{}\n",
		"src/dir/page.tsx":           page,
		"src/dir/samples/Sample.tsx": "export default () => null;\n",
		"node_modules/lib/index.tsx": page,
	}
	for rel, content := range files {
		path := filepath.Join(tmpDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func writeConfig(t *testing.T, tmpDir, mode string) string {
	t.Helper()
	cfgPath := filepath.Join(tmpDir, config.DefaultFileName)
	body := fmt.Sprintf("version = 1\n\n[paths]\nproject_root = %q\n\n[output]\nmode = %q\ntsv = \"sites.tsv\"\n", tmpDir, mode)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath
}

func TestCLIOnceDirMode(t *testing.T) {
	tmpDir := t.TempDir()
	createProject(t, tmpDir)
	cfgPath := writeConfig(t, tmpDir, config.OutputDir)

	require.Equal(t, 0, cli.Run([]string{"-config", cfgPath, "-once"}))

	out, err := os.ReadFile(filepath.Join(tmpDir, ".handbook", "out", "src", "dir", "page.tsx"))
	require.NoError(t, err)
	got := string(out)
	assert.Contains(t, got, "sample({ module: require('./samples/Sample'), source: require('!!raw-loader!./samples/Sample').default, filename: 'dir/samples/Sample.tsx' })")
	assert.Contains(t, got, "handbook.source({ module: () => import('./samples/Sample'),")
	assert.Contains(t, got, "sample(load('./samples/Sample'))")
	assert.NoFileExists(t, filepath.Join(tmpDir, ".handbook", "out", "node_modules", "lib", "index.tsx"))

	tsv, err := os.ReadFile(filepath.Join(tmpDir, "sites.tsv"))
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(tsv), "\n"), "header plus three call sites")
}

func TestCLICheckMode(t *testing.T) {
	tmpDir := t.TempDir()
	createProject(t, tmpDir)
	cfgPath := writeConfig(t, tmpDir, config.OutputInPlace)

	assert.Equal(t, 1, cli.Run([]string{"-config", cfgPath, "-check"}))
	original, err := os.ReadFile(filepath.Join(tmpDir, "src", "dir", "page.tsx"))
	require.NoError(t, err)
	assert.Equal(t, page, string(original))

	require.Equal(t, 0, cli.Run([]string{"-config", cfgPath, "-once"}))
	assert.Equal(t, 0, cli.Run([]string{"-config", cfgPath, "-check"}), "rewritten sources have nothing left to expand")
}

func TestWatchPipeline(t *testing.T) {
	tmpDir := t.TempDir()
	createProject(t, tmpDir)

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Paths.ProjectRoot = tmpDir
	cfg.Watch.Debounce = 50 * time.Millisecond

	a, err := app.New(cfg, tmpDir, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.StartWatcher())

	added := filepath.Join(tmpDir, "src", "dir", "added.tsx")
	require.NoError(t, os.WriteFile(added, []byte(page), 0o644))

	mirrored := filepath.Join(a.Paths.OutputDir, "src", "dir", "added.tsx")
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(mirrored)
		return err == nil && strings.Contains(string(data), "!!raw-loader!./samples/Sample")
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.Remove(added))
	assert.Eventually(t, func() bool {
		_, err := os.Stat(mirrored)
		return os.IsNotExist(err)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchPipelineFollowsRenamedSample(t *testing.T) {
	tmpDir := t.TempDir()
	createProject(t, tmpDir)

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Paths.ProjectRoot = tmpDir
	cfg.Watch.Debounce = 50 * time.Millisecond

	a, err := app.New(cfg, tmpDir, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.StartWatcher())

	samples := filepath.Join(tmpDir, "src", "dir", "samples")
	require.NoError(t, os.Rename(filepath.Join(samples, "Sample.tsx"), filepath.Join(samples, "Sample.js")))

	mirrored := filepath.Join(a.Paths.OutputDir, "src", "dir", "page.tsx")
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(mirrored)
		return err == nil && strings.Contains(string(data), "filename: 'dir/samples/Sample.js'")
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchPipelineAdoptsCreatedContentDir(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte("{}\n"), 0o644))

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Paths.ProjectRoot = tmpDir
	cfg.Watch.Debounce = 50 * time.Millisecond

	a, err := app.New(cfg, tmpDir, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.StartWatcher())

	createProject(t, tmpDir)

	mirrored := filepath.Join(a.Paths.OutputDir, "src", "dir", "page.tsx")
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(mirrored)
		return err == nil && strings.Contains(string(data), "filename: 'dir/samples/Sample.tsx'")
	}, 5*time.Second, 50*time.Millisecond)

	data, err := os.ReadFile(mirrored)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "filename: 'src/")
}
