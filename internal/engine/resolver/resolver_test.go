package resolver

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("export default 1;\n"), 0o644))
}

func TestResolve_SrcProject(t *testing.T) {
	cwd := t.TempDir()
	touch(t, filepath.Join(cwd, "src", "c", "d", "e.tsx"))
	from := filepath.Join(cwd, "src", "a", "b", "c.tsx")
	touch(t, from)

	r := New(cwd, Options{})
	assert.Equal(t, filepath.Join(cwd, "src"), r.ContentRoot())

	rel := r.Resolve("../../c/d/e", from)
	assert.Equal(t, "../../c/d/e", rel.Specifier)
	assert.Equal(t, "!!raw-loader!../../c/d/e", rel.RawContentRequest)
	assert.Equal(t, "c/d/e.tsx", rel.Filename)

	bare := r.Resolve("c/d/e", from)
	assert.Equal(t, "!!raw-loader!c/d/e", bare.RawContentRequest)
	assert.Equal(t, "c/d/e.tsx", bare.Filename)
}

func TestResolve_RootProject(t *testing.T) {
	cwd := t.TempDir()
	touch(t, filepath.Join(cwd, "c", "d", "e.tsx"))
	from := filepath.Join(cwd, "a", "b", "c.tsx")
	touch(t, from)

	r := New(cwd, Options{})
	assert.Equal(t, cwd, r.ContentRoot())

	assert.Equal(t, "c/d/e.tsx", r.Resolve("../../c/d/e", from).Filename)
	assert.Equal(t, "c/d/e.tsx", r.Resolve("c/d/e", from).Filename)
}

func TestResolve_ExtensionOverrideSkipsLookup(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(cwd, "src"), 0o755))
	// A .js sibling exists but the override wins without looking at it.
	touch(t, filepath.Join(cwd, "src", "dir", "samples", "Sample.js"))

	r := New(cwd, Options{ExtensionOverride: "tsx"})
	got := r.Resolve("./samples/Sample", filepath.Join(cwd, "src", "dir", "test.tsx"))
	assert.Equal(t, "dir/samples/Sample.tsx", got.Filename)
}

func TestResolve_ExtensionOrder(t *testing.T) {
	cwd := t.TempDir()
	touch(t, filepath.Join(cwd, "src", "x.js"))
	touch(t, filepath.Join(cwd, "src", "x.ts"))
	from := filepath.Join(cwd, "src", "app.tsx")

	r := New(cwd, Options{})
	assert.Equal(t, "x.ts", r.Resolve("./x", from).Filename)

	custom := New(cwd, Options{Extensions: []string{"js", ".ts"}})
	assert.Equal(t, "x.js", custom.Resolve("./x", from).Filename)
}

func TestResolve_KnownExtensionIsKept(t *testing.T) {
	cwd := t.TempDir()
	touch(t, filepath.Join(cwd, "src", "Button.stories.tsx"))
	from := filepath.Join(cwd, "src", "app.tsx")

	r := New(cwd, Options{ExtensionOverride: ".ts"})
	assert.Equal(t, "Button.jsx", r.Resolve("./Button.jsx", from).Filename)

	probing := New(cwd, Options{})
	assert.Equal(t, "Button.stories.tsx", probing.Resolve("./Button.stories", from).Filename)
}

func TestResolve_DefaultExtensionWhenNothingMatches(t *testing.T) {
	cwd := t.TempDir()
	from := filepath.Join(cwd, "app.tsx")

	assert.Equal(t, "missing/module.tsx", New(cwd, Options{}).Resolve("missing/module", from).Filename)
	assert.Equal(t, "missing.jsx", New(cwd, Options{DefaultExtension: "jsx"}).Resolve("./missing", from).Filename)
}

func TestResolve_DirectoryIndex(t *testing.T) {
	cwd := t.TempDir()
	touch(t, filepath.Join(cwd, "src", "widgets", "index.ts"))
	from := filepath.Join(cwd, "src", "app.tsx")

	r := New(cwd, Options{})
	assert.Equal(t, "widgets/index.ts", r.Resolve("./widgets", from).Filename)
	assert.Equal(t, "widgets/index.ts", r.Resolve("widgets", from).Filename)
}

func TestResolve_FileOutsideContentRoot(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(cwd, "src"), 0o755))

	r := New(cwd, Options{ExtensionOverride: ".tsx"})
	assert.Equal(t, "a.tsx", r.Resolve("../src/a", filepath.Join(cwd, "stories", "x.tsx")).Filename)
	assert.Equal(t, "tools/y.tsx", r.Resolve("./y", filepath.Join(cwd, "tools", "x.tsx")).Filename)
}

type errFS struct{}

func (errFS) Stat(string) (fs.FileInfo, error) { return nil, fs.ErrPermission }

func TestResolve_FilesystemErrorsAreMisses(t *testing.T) {
	cwd := t.TempDir()
	r := New(cwd, Options{FS: errFS{}})
	assert.Equal(t, r.WorkingDir(), r.ContentRoot())
	assert.Equal(t, "a/b.tsx", r.Resolve("./a/b", filepath.Join(cwd, "x.tsx")).Filename)
}

func TestStripTraversal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Plain", input: "c/d/e", expected: "c/d/e"},
		{name: "Dot", input: "./c/d", expected: "c/d"},
		{name: "Parents", input: "../../c/d", expected: "c/d"},
		{name: "Mixed", input: "./../c", expected: "c"},
		{name: "OnlyParent", input: "..", expected: ""},
		{name: "InnerParentKept", input: "c/../d", expected: "c/../d"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, StripTraversal(tc.input))
		})
	}
}

func TestIsRelative(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRelative("./x"))
	assert.True(t, IsRelative("../x"))
	assert.True(t, IsRelative("."))
	assert.False(t, IsRelative("x"))
	assert.False(t, IsRelative("@scope/pkg"))
	assert.False(t, IsRelative(".hidden/x"))
}

func TestResolve_ReportsCandidatePaths(t *testing.T) {
	cwd := t.TempDir()
	touch(t, filepath.Join(cwd, "src", "x.js"))
	from := filepath.Join(cwd, "src", "app.tsx")
	base := filepath.Join(cwd, "src", "x")

	r := New(cwd, Options{})
	got := r.Resolve("./x", from)
	assert.Equal(t, "x.js", got.Filename)
	assert.Equal(t, []string{base + ".tsx", base + ".ts", base + ".jsx", base + ".js"}, got.Candidates)

	assert.Empty(t, r.Resolve("./x.js", from).Candidates)
	assert.Empty(t, New(cwd, Options{ExtensionOverride: ".tsx"}).Resolve("./x", from).Candidates)

	missing := r.Resolve("./nothing", from)
	assert.Len(t, missing.Candidates, 2*len(DefaultExtensions))
	assert.Equal(t, filepath.Join(cwd, "src", "nothing", "index.cjs"), missing.Candidates[len(missing.Candidates)-1])
}

func TestResolver_RebuildAfterContentDirAppears(t *testing.T) {
	cwd := t.TempDir()
	r := New(cwd, Options{})
	assert.Equal(t, cwd, r.ContentRoot())
	assert.False(t, r.ContentRootChanged())

	touch(t, filepath.Join(cwd, "src", "dir", "page.tsx"))
	assert.True(t, r.ContentRootChanged())
	assert.Equal(t, cwd, r.ContentRoot())

	rebuilt := r.Rebuild()
	assert.Equal(t, filepath.Join(cwd, "src"), rebuilt.ContentRoot())
	assert.False(t, rebuilt.ContentRootChanged())
	assert.Equal(t, "dir/page.tsx", rebuilt.Resolve("./page", filepath.Join(cwd, "src", "dir", "index.tsx")).Filename)

	require.NoError(t, os.RemoveAll(filepath.Join(cwd, "src")))
	assert.True(t, rebuilt.ContentRootChanged())
	assert.Equal(t, cwd, rebuilt.Rebuild().ContentRoot())
}
