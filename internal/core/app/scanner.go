package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"handbook/internal/core/errors"
)

// ScanDirectories walks roots and returns every supported, non-excluded
// module path, sorted and de-duplicated. A root that is a file is returned
// as is when supported.
func (a *App) ScanDirectories(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		files = append(files, abs)
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "scan root"), errors.CtxPath, root)
		}
		if !info.IsDir() {
			if a.Parser.IsSupportedPath(root) {
				add(root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && a.filter.SkipDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || a.filter.SkipFile(path) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "scan directory"), errors.CtxPath, root)
		}
	}

	sort.Strings(files)
	return files, nil
}
