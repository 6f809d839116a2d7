package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot string
	CacheDir    string
	DBPath      string
	OutputDir   string
	TSVPath     string
	Roots       []string
}

var projectMarkers = []string{
	DefaultFileName,
	"package.json",
	".git",
}

func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if projectRoot != "" {
		projectRoot = ResolveRelative(cwd, projectRoot)
	} else {
		root, err := DetectProjectRoot([]string{cwd})
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = root
	}

	cacheDir := ResolveRelative(projectRoot, cfg.Paths.CacheDir)
	dbPath := strings.TrimSpace(cfg.Cache.Path)
	if filepath.IsAbs(dbPath) {
		dbPath = filepath.Clean(dbPath)
	} else {
		dbPath = filepath.Join(cacheDir, dbPath)
	}

	roots := make([]string, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		roots = append(roots, ResolveRelative(projectRoot, root))
	}

	resolved := ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		CacheDir:    filepath.Clean(cacheDir),
		DBPath:      filepath.Clean(dbPath),
		OutputDir:   ResolveRelative(projectRoot, cfg.Output.Dir),
		Roots:       roots,
	}
	if tsv := strings.TrimSpace(cfg.Output.TSV); tsv != "" {
		resolved.TSVPath = ResolveRelative(projectRoot, tsv)
	}
	return resolved, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate until a directory holding
// handbook.toml, package.json or .git is found. Falls back to the process cwd.
func DetectProjectRoot(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range projectMarkers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}

// FindConfigFile returns the nearest handbook.toml at or above dir, or "".
func FindConfigFile(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(abs, DefaultFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return ""
		}
		abs = parent
	}
}
