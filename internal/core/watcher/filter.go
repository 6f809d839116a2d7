package watcher

import (
	"path/filepath"
	"strings"

	"handbook/internal/shared/util"

	"github.com/gobwas/glob"
)

// Filter decides which directories and files the scanner and the watcher
// consider. Patterns without a slash match the base name; patterns with one
// match the path relative to the filter's base directory.
type Filter struct {
	base         string
	excludeDirs  []pattern
	excludeFiles []pattern
	extensions   map[string]bool
	ignored      []string
}

type pattern struct {
	g        glob.Glob
	relative bool
}

func NewFilter(base string, excludeDirs, excludeFiles, extensions []string) (*Filter, error) {
	dirs, err := compilePatterns(excludeDirs)
	if err != nil {
		return nil, err
	}
	files, err := compilePatterns(excludeFiles)
	if err != nil {
		return nil, err
	}

	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		exts[normalized] = true
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	return &Filter{
		base:         abs,
		excludeDirs:  dirs,
		excludeFiles: files,
		extensions:   exts,
	}, nil
}

func compilePatterns(raw []string) ([]pattern, error) {
	out := make([]pattern, 0, len(raw))
	for _, p := range raw {
		p = util.NormalizePatternPath(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, pattern{g: g, relative: strings.Contains(p, "/")})
	}
	return out, nil
}

// Ignore excludes whole subtrees, such as the output and cache directories.
func (f *Filter) Ignore(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			f.ignored = append(f.ignored, abs)
		}
	}
}

func (f *Filter) SkipDir(path string) bool {
	if f.isIgnored(path) {
		return true
	}
	return f.matches(f.excludeDirs, path)
}

func (f *Filter) SkipFile(path string) bool {
	if f.isIgnored(path) {
		return true
	}
	if len(f.extensions) > 0 && !f.extensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	return f.matches(f.excludeFiles, path)
}

func (f *Filter) isIgnored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, prefix := range f.ignored {
		if util.HasPathPrefix(filepath.ToSlash(abs), filepath.ToSlash(prefix)) {
			return true
		}
	}
	return false
}

func (f *Filter) matches(patterns []pattern, path string) bool {
	if len(patterns) == 0 {
		return false
	}
	base := filepath.Base(path)
	rel := ""
	if abs, err := filepath.Abs(path); err == nil {
		if r, err := filepath.Rel(f.base, abs); err == nil {
			rel = filepath.ToSlash(r)
		}
	}
	for _, p := range patterns {
		if p.relative {
			if rel != "" && p.g.Match(rel) {
				return true
			}
			continue
		}
		if p.g.Match(base) {
			return true
		}
	}
	return false
}
