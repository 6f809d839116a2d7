package app

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"handbook/internal/core/config"
	"handbook/internal/core/errors"
	"handbook/internal/data/cache"
	"handbook/internal/engine/macro"
	"handbook/internal/shared/observability"
	"handbook/internal/shared/util"
	"handbook/internal/ui/report"

	"go.opentelemetry.io/otel/attribute"
)

// Run modes recorded in the runs table.
const (
	ModeOnce  = "once"
	ModeCheck = "check"
	ModeWatch = "watch"
)

// RunSummary is everything one batch produced, ordered by path.
type RunSummary struct {
	Run      cache.Run
	Totals   report.Totals
	Results  []*macro.Result
	Files    []FileResult
	Failures []FileResult
}

// WouldChange reports whether any file was, or in check mode would be,
// rewritten.
func (s RunSummary) WouldChange() bool {
	return s.Totals.Rewritten > 0
}

// Run scans the configured roots and transforms every module found.
func (a *App) Run(ctx context.Context) (RunSummary, error) {
	return a.RunPaths(ctx, a.Paths.Roots)
}

// RunPaths transforms the modules under paths, which may mix files and
// directories.
func (a *App) RunPaths(ctx context.Context, paths []string) (RunSummary, error) {
	mode := ModeOnce
	if a.check {
		mode = ModeCheck
	}

	ctx, span := observability.Tracer.Start(ctx, "app.Run")
	defer span.End()

	files, err := a.ScanDirectories(paths)
	if err != nil {
		span.RecordError(err)
		return RunSummary{}, err
	}
	span.SetAttributes(attribute.Int("files", len(files)))
	return a.runBatch(ctx, mode, files)
}

func (a *App) runBatch(ctx context.Context, mode string, files []string) (RunSummary, error) {
	start := time.Now()
	run := cache.NewRun(mode)

	results := a.processAll(ctx, files)
	if err := ctx.Err(); err != nil {
		return RunSummary{}, errors.Wrap(err, errors.CodeInternal, "run cancelled")
	}

	summary := RunSummary{Files: results}
	summary.Totals = report.Totals{
		RunID: run.ID.String(),
		Mode:  mode,
		Check: a.check,
	}
	for _, res := range results {
		switch res.Outcome {
		case OutcomeRemoved:
			continue
		case OutcomeRewritten:
			summary.Totals.Rewritten++
		case OutcomeUnchanged:
			summary.Totals.Unchanged++
		case OutcomeCached:
			summary.Totals.Cached++
		case OutcomeFailed:
			summary.Totals.Failed++
			summary.Failures = append(summary.Failures, res)
			slog.Warn("failed to transform module", "path", res.Path, "code", errors.CodeOf(res.Err), "error", res.Err)
		}
		summary.Totals.Files++
		if res.Result != nil {
			summary.Results = append(summary.Results, res.Result)
		}
	}
	summary.Totals.Duration = time.Since(start)

	run.FinishedAt = time.Now().UTC()
	run.Files = summary.Totals.Files
	run.Rewritten = summary.Totals.Rewritten
	run.Failed = summary.Totals.Failed
	summary.Run = run

	if a.store != nil {
		if err := a.store.SaveRun(run); err != nil {
			slog.Warn("failed to record run", "run", run.ID, "error", err)
		}
	}
	if a.Paths.TSVPath != "" && !a.check {
		tsv := report.RenderSitesTSV(summary.Results, a.Paths.ProjectRoot)
		if err := util.WriteFileWithDirs(a.Paths.TSVPath, tsv, 0o644); err != nil {
			slog.Warn("failed to write site report", "path", a.Paths.TSVPath, "error", err)
		}
	}

	observability.RunDuration.Observe(summary.Totals.Duration.Seconds())
	return summary, nil
}

// processAll fans files out over the configured worker count. Results keep
// the order of files.
func (a *App) processAll(ctx context.Context, files []string) []FileResult {
	results := make([]FileResult, len(files))
	if len(files) == 0 {
		return results
	}

	workers := a.Config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}
	// Stdout output must follow path order.
	if a.Config.Output.Mode == config.OutputStdout && !a.check {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = a.ProcessFile(ctx, files[idx])
			}
		}()
	}

feed:
	for i := range files {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for i := range results {
		if results[i].Path == "" {
			results[i] = FileResult{Path: files[i], Outcome: OutcomeFailed, Err: ctx.Err()}
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results
}
