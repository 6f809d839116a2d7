package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"handbook/internal/core/config"
	"handbook/internal/core/errors"
	"handbook/internal/core/watcher"
	"handbook/internal/data/cache"
	"handbook/internal/engine/macro"
	"handbook/internal/engine/parser"
	"handbook/internal/engine/resolver"
	"handbook/internal/shared/util"
)

// Options are per-invocation switches that do not belong in the config file.
type Options struct {
	// Check transforms without writing anything; the run reports which files
	// would change.
	Check bool
	// Stdout receives transformed sources in stdout output mode.
	Stdout io.Writer
}

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths
	Parser *parser.Parser

	check  bool
	stdout io.Writer
	outMu  sync.Mutex

	filter *watcher.Filter
	store  *cache.Store

	// Guarded by mu; swapped on config reload.
	mu          sync.RWMutex
	transformer *macro.Transformer
	resolver    *resolver.Resolver
	optionsHash string

	activeWatcher *watcher.Watcher
	deps          *dependents

	summaryMu sync.RWMutex
	onSummary func(RunSummary)
}

func New(cfg *config.Config, cwd string, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "resolve paths")
	}

	registry, err := buildParserRegistry(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "language registry")
	}
	loader, err := parser.NewGrammarLoaderWithRegistry(registry)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "load grammars")
	}
	p := parser.NewParser(loader)

	filter, err := watcher.NewFilter(paths.ProjectRoot, cfg.Exclude.Dirs, cfg.Exclude.Files, p.SupportedExtensions())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "exclude patterns")
	}
	filter.Ignore(paths.CacheDir)
	if cfg.Output.Mode == config.OutputDir {
		filter.Ignore(paths.OutputDir)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	a := &App{
		Config: cfg,
		Paths:  paths,
		Parser: p,
		check:  opts.Check,
		stdout: stdout,
		filter: filter,
		deps:   newDependents(),
	}
	a.applyEngineConfig(cfg)

	if cfg.Cache.IsEnabled() && !opts.Check {
		store, err := openStore(paths.DBPath, cfg.Cache.BusyTimeout)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "open transform cache"), errors.CtxPath, paths.DBPath)
		}
		a.store = store
	}
	return a, nil
}

// openStore opens the transform cache, starting over once when the file on
// disk is not a usable database. The cache only holds derived data.
func openStore(path string, busyTimeout time.Duration) (*cache.Store, error) {
	store, err := cache.Open(path, busyTimeout)
	if err == nil || !cache.IsCorruptError(err) {
		return store, err
	}
	slog.Warn("discarding corrupt transform cache", "path", path, "error", err)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if rmErr := os.Remove(path + suffix); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, rmErr
		}
	}
	return cache.Open(path, busyTimeout)
}

func buildParserRegistry(cfg *config.Config) (map[string]parser.LanguageSpec, error) {
	overrides := make(map[string]parser.LanguageOverride, len(cfg.Languages))
	for lang, languageCfg := range cfg.Languages {
		overrides[lang] = parser.LanguageOverride{
			Enabled:    languageCfg.Enabled,
			Extensions: append([]string(nil), languageCfg.Extensions...),
		}
	}
	return parser.BuildLanguageRegistry(overrides)
}

// applyEngineConfig rebuilds the transformer and resolver from cfg.
func (a *App) applyEngineConfig(cfg *config.Config) {
	transformer := macro.NewTransformer(macro.Options{
		Package: cfg.Macro.Package,
		Export:  cfg.Macro.Export,
	})
	res := resolver.New(a.Paths.ProjectRoot, resolver.Options{
		ContentDir:        cfg.Resolve.ContentDir,
		Extensions:        cfg.Resolve.Extensions,
		DefaultExtension:  cfg.Resolve.DefaultExtension,
		ExtensionOverride: cfg.Resolve.ExtensionOverride,
		RawDirective:      cfg.Macro.RawDirective,
	})

	a.mu.Lock()
	a.transformer = transformer
	a.resolver = res
	a.optionsHash = optionsFingerprint(cfg)
	a.mu.Unlock()
}

// Reload swaps in macro and resolve settings from a freshly loaded config.
// The watch debounce is applied too; paths, languages and output settings
// keep their startup values.
func (a *App) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.applyEngineConfig(cfg)
	if a.activeWatcher != nil && cfg.Watch.Debounce > 0 {
		a.activeWatcher.SetDebounce(cfg.Watch.Debounce)
	}
	slog.Info("config reloaded")
}

func (a *App) engine() (*macro.Transformer, *resolver.Resolver, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.transformer, a.resolver, a.optionsHash
}

// optionsFingerprint changes whenever a setting that affects output changes,
// invalidating cached transforms.
func optionsFingerprint(cfg *config.Config) string {
	parts := []string{
		cfg.Macro.Package,
		cfg.Macro.Export,
		cfg.Macro.RawDirective,
		cfg.Resolve.ContentDir,
		strings.Join(cfg.Resolve.Extensions, ","),
		cfg.Resolve.DefaultExtension,
		cfg.Resolve.ExtensionOverride,
		cfg.Output.Mode,
	}
	return util.ContentHash([]byte(fmt.Sprintf("%q", parts)))
}

func (a *App) Close() error {
	if a.activeWatcher != nil {
		_ = a.activeWatcher.Close()
		a.activeWatcher = nil
	}
	if a.store != nil {
		err := a.store.Close()
		a.store = nil
		return err
	}
	return nil
}

// Store exposes the transform cache; nil when disabled.
func (a *App) Store() *cache.Store {
	return a.store
}
