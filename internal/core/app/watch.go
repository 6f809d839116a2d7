package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"

	"handbook/internal/core/watcher"
)

// StartWatcher watches the configured roots and re-transforms changed
// modules in debounced batches.
func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.filter, a.HandleChanges)
	if err != nil {
		return err
	}
	a.activeWatcher = w
	return w.Watch(a.Paths.Roots)
}

// HandleChanges re-processes one debounced batch of changed paths. Deleted
// paths drop their outputs and cache rows. Modules whose specifiers were
// resolved against a changed path are re-processed too, and every module is
// when the content dir appeared or disappeared.
func (a *App) HandleChanges(paths []string) {
	slog.Info("detected changes", "count", len(paths))

	candidates := make([]string, 0, len(paths))
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		candidates = append(candidates, path)
		candidates = append(candidates, a.deps.lookup(path)...)
	}
	if a.refreshContentRoot() {
		all, err := a.ScanDirectories(a.Paths.Roots)
		if err != nil {
			slog.Error("failed to rescan after content root change", "error", err)
		}
		candidates = append(candidates, all...)
	}

	files := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, path := range candidates {
		if seen[path] || !a.Parser.IsSupportedPath(path) || a.filter.SkipFile(path) {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return
	}

	summary, err := a.runBatch(context.Background(), ModeWatch, files)
	if err != nil {
		slog.Error("failed to process changes", "error", err)
		return
	}

	slog.Info("processed changes",
		"files", summary.Totals.Files,
		"rewritten", summary.Totals.Rewritten,
		"failed", summary.Totals.Failed,
		"duration", summary.Totals.Duration)
	a.emitSummary(summary)
}

// refreshContentRoot swaps in a rebuilt resolver when the content dir has
// appeared or disappeared, reporting whether it did.
func (a *App) refreshContentRoot() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.resolver.ContentRootChanged() {
		return false
	}
	a.resolver = a.resolver.Rebuild()
	slog.Info("content root changed", "root", a.resolver.ContentRoot())
	return true
}

// SetSummaryHandler registers a callback for every watch batch.
func (a *App) SetSummaryHandler(handler func(RunSummary)) {
	a.summaryMu.Lock()
	defer a.summaryMu.Unlock()
	a.onSummary = handler
}

func (a *App) emitSummary(summary RunSummary) {
	a.summaryMu.RLock()
	handler := a.onSummary
	a.summaryMu.RUnlock()
	if handler != nil {
		handler(summary)
	}
}
