package app

import (
	"sort"
	"sync"

	"handbook/internal/data/cache"
	"handbook/internal/engine/macro"
)

// dependents indexes, for every path a module's specifiers were checked
// against, the modules whose filenames depend on it. Watch mode uses it to
// re-run importers when a sibling module is created, renamed or deleted.
type dependents struct {
	mu     sync.Mutex
	byPath map[string]map[string]bool
	of     map[string][]string
}

func newDependents() *dependents {
	return &dependents{
		byPath: make(map[string]map[string]bool),
		of:     make(map[string][]string),
	}
}

// set replaces the paths module depends on.
func (d *dependents) set(module string, paths []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forgetLocked(module)
	if len(paths) == 0 {
		return
	}
	d.of[module] = paths
	for _, path := range paths {
		set := d.byPath[path]
		if set == nil {
			set = make(map[string]bool)
			d.byPath[path] = set
		}
		set[module] = true
	}
}

func (d *dependents) forget(module string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forgetLocked(module)
}

func (d *dependents) forgetLocked(module string) {
	for _, path := range d.of[module] {
		set := d.byPath[path]
		delete(set, module)
		if len(set) == 0 {
			delete(d.byPath, path)
		}
	}
	delete(d.of, module)
}

// lookup returns the modules depending on path, sorted.
func (d *dependents) lookup(path string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.byPath[path]
	if len(set) == 0 {
		return nil
	}
	modules := make([]string, 0, len(set))
	for module := range set {
		modules = append(modules, module)
	}
	sort.Strings(modules)
	return modules
}

// resolvedSites keeps the rewritten sites worth re-checking on a cache hit.
func resolvedSites(sites []macro.Site) []cache.ResolvedSite {
	var out []cache.ResolvedSite
	for _, site := range sites {
		if !site.Rewritten {
			continue
		}
		out = append(out, cache.ResolvedSite{
			Specifier:  site.Specifier,
			Filename:   site.Filename,
			Candidates: append([]string(nil), site.Candidates...),
		})
	}
	return out
}

func candidatePaths(sites []cache.ResolvedSite) []string {
	var paths []string
	for _, site := range sites {
		paths = append(paths, site.Candidates...)
	}
	return paths
}
