// Package resolver maps a module specifier used in a macro call to the
// raw-content request and the root-relative filename embedded in the
// rewritten descriptor.
package resolver

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	DefaultContentDir   = "src"
	DefaultExtension    = ".tsx"
	DefaultRawDirective = "!!raw-loader!"
)

// DefaultExtensions is the lookup order used when a specifier has no
// recognized extension.
var DefaultExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".cjs"}

// FileSystem is the read-only view used for content root detection and
// extension probing.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

type Options struct {
	// ContentDir is the directory under the project root preferred as the
	// content root when it exists.
	ContentDir string
	// Extensions is the ordered lookup list. It also defines which extensions
	// count as already present on a specifier.
	Extensions       []string
	DefaultExtension string
	// ExtensionOverride, when set, is appended to every extensionless
	// specifier without touching the filesystem.
	ExtensionOverride string
	RawDirective      string
	FS                FileSystem
}

// Resolution is the descriptor data derived for one specifier.
type Resolution struct {
	Specifier string
	// RawContentRequest is RawDirective + Specifier.
	RawContentRequest string
	// Filename is the extension-qualified path relative to the content root,
	// slash separated, with no leading ./ or ../ segments.
	Filename string
	// Candidates lists, in order, the absolute paths whose existence decided the
	// extension. Creating or deleting any of them can change Filename.
	Candidates []string
}

type Resolver struct {
	cwd         string
	contentRoot string
	opts        Options
	known       map[string]bool
}

// New builds a resolver for the project rooted at cwd. The content root is
// decided here; see ContentRootChanged and Rebuild for long-lived callers.
func New(cwd string, opts Options) *Resolver {
	if opts.FS == nil {
		opts.FS = osFS{}
	}
	if strings.TrimSpace(opts.ContentDir) == "" {
		opts.ContentDir = DefaultContentDir
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	opts.Extensions = normalizeExtensions(opts.Extensions)
	opts.DefaultExtension = normalizeExtension(opts.DefaultExtension)
	if opts.DefaultExtension == "" {
		opts.DefaultExtension = DefaultExtension
	}
	opts.ExtensionOverride = normalizeExtension(opts.ExtensionOverride)
	if opts.RawDirective == "" {
		opts.RawDirective = DefaultRawDirective
	}

	if abs, err := filepath.Abs(cwd); err == nil {
		cwd = abs
	}
	cwd = filepath.Clean(cwd)

	r := &Resolver{
		cwd:         cwd,
		contentRoot: cwd,
		opts:        opts,
		known:       make(map[string]bool, len(opts.Extensions)),
	}
	for _, ext := range opts.Extensions {
		r.known[ext] = true
	}
	r.contentRoot = r.decideContentRoot()
	return r
}

func (r *Resolver) decideContentRoot() string {
	candidate := filepath.Join(r.cwd, r.opts.ContentDir)
	if info, err := r.opts.FS.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	return r.cwd
}

func (r *Resolver) ContentRoot() string { return r.contentRoot }

// ContentRootChanged reports whether the content dir has appeared or
// disappeared since r was built.
func (r *Resolver) ContentRootChanged() bool {
	return r.decideContentRoot() != r.contentRoot
}

// Rebuild returns a resolver with the same options and a freshly decided
// content root.
func (r *Resolver) Rebuild() *Resolver {
	return New(r.cwd, r.opts)
}

func (r *Resolver) WorkingDir() string { return r.cwd }

// Resolve derives the descriptor fields for specifier as written in fromFile.
// It never fails: unresolvable specifiers fall back to the default extension.
func (r *Resolver) Resolve(specifier, fromFile string) Resolution {
	res := Resolution{
		Specifier:         specifier,
		RawContentRequest: r.opts.RawDirective + specifier,
	}

	if !filepath.IsAbs(fromFile) {
		if abs, err := filepath.Abs(fromFile); err == nil {
			fromFile = abs
		}
	}

	native := filepath.FromSlash(specifier)
	var target string
	var bases []string
	if IsRelative(specifier) {
		target = filepath.Join(filepath.Dir(fromFile), native)
		bases = []string{target}
	} else {
		target = filepath.Join(r.cwd, native)
		bases = []string{filepath.Join(r.contentRoot, native), target}
	}

	rel, err := filepath.Rel(r.contentRoot, target)
	if err != nil {
		rel = native
	}
	suffix, candidates := r.suffixFor(specifier, bases)
	res.Filename = joinFilename(StripTraversal(filepath.ToSlash(rel)), suffix)
	res.Candidates = candidates
	return res
}

// suffixFor returns what must be appended to the specifier path to name a
// concrete file: "", an extension, or "/index" plus an extension.
// The checked paths are returned alongside, up to and including the hit.
func (r *Resolver) suffixFor(specifier string, bases []string) (string, []string) {
	if r.known[strings.ToLower(path.Ext(specifier))] {
		return "", nil
	}
	if r.opts.ExtensionOverride != "" {
		return r.opts.ExtensionOverride, nil
	}
	var candidates []string
	for _, base := range bases {
		for _, ext := range r.opts.Extensions {
			candidate := base + ext
			candidates = append(candidates, candidate)
			if r.isFile(candidate) {
				return ext, candidates
			}
		}
	}
	for _, base := range bases {
		for _, ext := range r.opts.Extensions {
			candidate := filepath.Join(base, "index"+ext)
			candidates = append(candidates, candidate)
			if r.isFile(candidate) {
				return "/index" + ext, candidates
			}
		}
	}
	return r.opts.DefaultExtension, candidates
}

// isFile treats every stat failure as a miss.
func (r *Resolver) isFile(name string) bool {
	info, err := r.opts.FS.Stat(name)
	return err == nil && !info.IsDir()
}

// IsRelative reports whether specifier starts with a ./ or ../ segment.
func IsRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// StripTraversal drops leading ./ and ../ segments from a slash path.
func StripTraversal(p string) string {
	for {
		switch {
		case p == "." || p == "..":
			return ""
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "../"):
			p = p[3:]
		default:
			return p
		}
	}
}

func joinFilename(base, suffix string) string {
	if base == "" {
		return strings.TrimPrefix(suffix, "/")
	}
	return base + suffix
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		ext := strings.ToLower(normalizeExtension(v))
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	return out
}
