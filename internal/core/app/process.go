package app

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"handbook/internal/core/config"
	"handbook/internal/core/errors"
	"handbook/internal/data/cache"
	"handbook/internal/engine/macro"
	"handbook/internal/engine/resolver"
	"handbook/internal/shared/observability"
	"handbook/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeRewritten
	OutcomeCached
	OutcomeRemoved
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRewritten:
		return observability.ResultRewritten
	case OutcomeCached:
		return observability.ResultCached
	case OutcomeRemoved:
		return "removed"
	case OutcomeFailed:
		return observability.ResultFailed
	}
	return observability.ResultUnchanged
}

// FileResult is the outcome of processing one module.
type FileResult struct {
	Path    string
	Outcome Outcome
	// Result is nil for cached, removed and failed files.
	Result *macro.Result
	// Output is the transformed source; set only when the file was transformed.
	Output []byte
	Err    error
}

// ProcessFile transforms one module and writes its output according to the
// output mode. Failures are reported in the result, never panicked or logged
// here.
func (a *App) ProcessFile(ctx context.Context, path string) FileResult {
	ctx, span := observability.Tracer.Start(ctx, "app.ProcessFile", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	res := a.processFile(ctx, path)
	span.SetAttributes(attribute.String("outcome", res.Outcome.String()))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	if res.Outcome != OutcomeRemoved {
		observability.FilesProcessedTotal.WithLabelValues(res.Outcome.String()).Inc()
	}
	return res
}

func (a *App) processFile(ctx context.Context, path string) FileResult {
	out := FileResult{Path: path}
	if err := ctx.Err(); err != nil {
		out.Outcome, out.Err = OutcomeFailed, err
		return out
	}

	content, err := os.ReadFile(path)
	if stdErrors.Is(err, fs.ErrNotExist) {
		out.Outcome = OutcomeRemoved
		out.Err = a.removeOutputs(path)
		return out
	}
	if err != nil {
		out.Outcome = OutcomeFailed
		out.Err = errors.AddContext(errors.Wrap(err, errors.CodeIO, "read module"), errors.CtxPath, path)
		return out
	}

	transformer, res, optionsHash := a.engine()
	contentHash := util.ContentHash(content)
	if entry, ok := a.cacheFresh(path, contentHash, optionsHash, res); ok {
		a.deps.set(path, candidatePaths(entry.Resolved))
		out.Outcome = OutcomeCached
		return out
	}

	m, err := a.Parser.Parse(path, content)
	if err != nil {
		out.Outcome, out.Err = OutcomeFailed, err
		return out
	}
	defer m.Close()

	start := time.Now()
	result, err := transformer.Transform(m, res)
	observability.TransformDuration.WithLabelValues(m.Language).Observe(time.Since(start).Seconds())
	if err != nil {
		out.Outcome, out.Err = OutcomeFailed, errors.AddContext(err, errors.CtxPath, path)
		return out
	}
	for _, site := range result.Sites {
		observability.MacroCallsTotal.WithLabelValues(site.Load.String()).Inc()
	}
	resolved := resolvedSites(result.Sites)
	a.deps.set(path, candidatePaths(resolved))

	out.Result = result
	out.Output = append([]byte(nil), m.Source...)
	out.Outcome = OutcomeUnchanged
	if result.Changed() {
		out.Outcome = OutcomeRewritten
	}

	if a.check {
		return out
	}
	if err := a.writeOutput(path, out); err != nil {
		out.Outcome, out.Err = OutcomeFailed, err
		return out
	}
	a.remember(path, contentHash, optionsHash, resolved, out)
	return out
}

func (a *App) writeOutput(path string, res FileResult) error {
	switch a.Config.Output.Mode {
	case config.OutputDir:
		target, err := a.outputPath(path)
		if err != nil {
			return err
		}
		if err := util.WriteFileAtomic(target, res.Output, 0o644); err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeIO, "write output"), errors.CtxPath, target)
		}
	case config.OutputInPlace:
		if res.Outcome != OutcomeRewritten {
			return nil
		}
		perm := fs.FileMode(0o644)
		if info, err := os.Stat(path); err == nil {
			perm = info.Mode().Perm()
		}
		if err := util.WriteFileAtomic(path, res.Output, perm); err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeIO, "rewrite in place"), errors.CtxPath, path)
		}
	case config.OutputStdout:
		a.outMu.Lock()
		defer a.outMu.Unlock()
		if _, err := a.stdout.Write(res.Output); err != nil {
			return errors.Wrap(err, errors.CodeIO, "write stdout")
		}
	}
	return nil
}

// outputPath mirrors a module's project-relative path under the output dir.
func (a *App) outputPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.AddContext(errors.Wrap(err, errors.CodeIO, "absolute path"), errors.CtxPath, path)
	}
	rel, err := filepath.Rel(a.Paths.ProjectRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.AddContext(
			errors.New(errors.CodeValidationError, fmt.Sprintf("module is outside project root %s", a.Paths.ProjectRoot)),
			errors.CtxPath, path)
	}
	return filepath.Join(a.Paths.OutputDir, rel), nil
}

// cacheFresh reports whether path can be skipped. Stdout mode always
// re-emits, and dir mode also needs the previous output to still exist.
// Every stored site must still resolve to the filename baked into the
// output, since sibling modules may have been added, renamed or removed.
func (a *App) cacheFresh(path, contentHash, optionsHash string, res *resolver.Resolver) (cache.FileEntry, bool) {
	if a.store == nil || a.check || a.Config.Output.Mode == config.OutputStdout {
		observability.CacheLookupsTotal.WithLabelValues("bypass").Inc()
		return cache.FileEntry{}, false
	}
	miss := func() (cache.FileEntry, bool) {
		observability.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return cache.FileEntry{}, false
	}
	entry, ok, err := a.store.Lookup(path)
	if err != nil || !ok || !entry.Fresh(contentHash, optionsHash) {
		return miss()
	}
	for _, site := range entry.Resolved {
		if res.Resolve(site.Specifier, path).Filename != site.Filename {
			return miss()
		}
	}
	if a.Config.Output.Mode == config.OutputDir {
		target, err := a.outputPath(path)
		if err != nil {
			return miss()
		}
		data, err := os.ReadFile(target)
		if err != nil || util.ContentHash(data) != entry.OutputHash {
			return miss()
		}
	}
	observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return entry, true
}

func (a *App) remember(path, contentHash, optionsHash string, resolved []cache.ResolvedSite, res FileResult) {
	if a.store == nil || a.Config.Output.Mode == config.OutputStdout {
		return
	}
	outputHash := util.ContentHash(res.Output)
	if a.Config.Output.Mode == config.OutputInPlace {
		// The file on disk now holds the output.
		contentHash = outputHash
	}
	entry := cache.FileEntry{
		Path:        path,
		ContentHash: contentHash,
		OptionsHash: optionsHash,
		OutputHash:  outputHash,
		Resolved:    resolved,
	}
	if res.Result != nil {
		entry.Rewritten = res.Result.Rewritten
	}
	// A failed cache write only costs a re-transform next time.
	_ = a.store.Put(entry)
}

// removeOutputs drops the mirrored output and cache row of a deleted module.
func (a *App) removeOutputs(path string) error {
	a.deps.forget(path)
	if a.store != nil {
		if err := a.store.Delete(path); err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeIO, "delete cache entry"), errors.CtxPath, path)
		}
	}
	if a.check || a.Config.Output.Mode != config.OutputDir {
		return nil
	}
	target, err := a.outputPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !stdErrors.Is(err, fs.ErrNotExist) {
		return errors.AddContext(errors.Wrap(err, errors.CodeIO, "remove output"), errors.CtxPath, target)
	}
	return nil
}
