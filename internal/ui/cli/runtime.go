package cli

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"handbook/internal/core/app"
	"handbook/internal/core/config"
	"handbook/internal/shared/observability"
	"handbook/internal/ui/report"
)

// Run executes the handbook command line and returns the process exit code.
func Run(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Printf("handbook v%s\n", versionString)
		return 0
	}

	// Transformed sources own stdout in stdout mode.
	cleanupLogs := configureLogging(opts.stdout, opts.verbose)
	defer cleanupLogs()

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return 1
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	if err := applyModeOptions(&opts, cfg, cwd); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Observability.EnableTracing,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.OTLPInsecure,
		ServiceName: "handbook",
		SampleRatio: cfg.Observability.SampleRatio,
	})
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	a, err := app.New(cfg, cwd, app.Options{Check: opts.check, Stdout: os.Stdout})
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer a.Close()

	if opts.runs > 0 {
		return printRuns(a, opts.runs, os.Stdout)
	}

	if cfg.Observability.Enabled && !opts.once {
		server := observability.NewServer(observability.ServerConfig{
			Address:        cfg.Observability.Address,
			RequestsPerSec: cfg.Observability.RequestsPerSec,
			Burst:          cfg.Observability.Burst,
			Health:         app.NewHealthService(a),
		})
		go func() {
			if err := server.Run(ctx); err != nil {
				slog.Error("observability server failed", "error", err)
			}
		}()
	}

	summaryOut := summaryWriter(cfg)
	summary, err := a.Run(ctx)
	if err != nil {
		slog.Error("transform failed", "error", err)
		return 1
	}
	fmt.Fprint(summaryOut, report.RenderSummary(summary.Totals, summary.Results, a.Paths.ProjectRoot))

	if opts.once {
		return exitCode(opts, summary)
	}

	a.SetSummaryHandler(func(s app.RunSummary) {
		fmt.Fprint(summaryOut, report.RenderSummary(s.Totals, s.Results, a.Paths.ProjectRoot))
	})
	if err := a.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}

	if cfgPath != "" {
		cfgWatcher := config.NewWatcher(cfgPath, a.Reload)
		if err := cfgWatcher.Start(ctx); err != nil {
			slog.Warn("failed to watch config", "path", cfgPath, "error", err)
		} else {
			defer cfgWatcher.Stop()
		}
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return 0
}

// exitCode is 1 when any file failed, or in check mode when any would change.
func exitCode(opts cliOptions, summary app.RunSummary) int {
	if summary.Totals.Failed > 0 {
		return 1
	}
	if opts.check && summary.WouldChange() {
		return 1
	}
	return 0
}

func printRuns(a *app.App, limit int, w io.Writer) int {
	store := a.Store()
	if store == nil {
		fmt.Fprintln(os.Stderr, "--runs requires the transform cache (cache.enabled=true)")
		return 1
	}
	runs, err := store.RecentRuns(limit)
	if err != nil {
		slog.Error("failed to read runs", "error", err)
		return 1
	}
	_, _ = w.Write(report.RenderRunsTSV(runs))
	return 0
}

func summaryWriter(cfg *config.Config) io.Writer {
	if cfg.Output.Mode == config.OutputStdout {
		return os.Stderr
	}
	return os.Stdout
}

// loadConfig loads path, or else the nearest handbook.toml above cwd, or
// else built-in defaults. The returned path is empty for defaults.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if strings.TrimSpace(path) != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		return cfg, abs, nil
	}

	if found := config.FindConfigFile(cwd); found != "" {
		cfg, err := config.Load(found)
		if err != nil {
			return nil, "", err
		}
		return cfg, found, nil
	}

	cfg, err := config.Default()
	if err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

// applyModeOptions folds flags into cfg and re-validates the result.
func applyModeOptions(opts *cliOptions, cfg *config.Config, cwd string) error {
	modes := 0
	if opts.stdout {
		modes++
		cfg.Output.Mode = config.OutputStdout
	}
	if opts.inPlace {
		modes++
		cfg.Output.Mode = config.OutputInPlace
	}
	if strings.TrimSpace(opts.outDir) != "" {
		modes++
		cfg.Output.Mode = config.OutputDir
		cfg.Output.Dir = config.ResolveRelative(cwd, opts.outDir)
	}
	if modes > 1 {
		return fmt.Errorf("--stdout, --inplace, and --out cannot be combined")
	}

	if opts.runs < 0 {
		return fmt.Errorf("--runs must be positive")
	}
	if opts.runs > 0 && (opts.check || modes > 0 || len(opts.args) > 0) {
		return fmt.Errorf("--runs cannot be combined with other modes")
	}

	// Check and stdout runs are one-shot by nature.
	if opts.check || opts.stdout {
		opts.once = true
	}

	if opts.workers < 0 {
		return fmt.Errorf("--workers must not be negative")
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if strings.TrimSpace(opts.tsv) != "" {
		cfg.Output.TSV = config.ResolveRelative(cwd, opts.tsv)
	}

	if len(opts.args) > 0 {
		roots := make([]string, 0, len(opts.args))
		for _, arg := range opts.args {
			roots = append(roots, config.ResolveRelative(cwd, arg))
		}
		cfg.Roots = roots
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		return stdErrors.Join(errs...)
	}
	return nil
}

func configureLogging(toFile, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	var closeFn func() = func() {}
	if toFile {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
			output = os.Stderr
		} else if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
			fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			output = os.Stderr
		} else {
			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if err == nil {
				output = f
				closeFn = func() { _ = f.Close() }
			} else {
				fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				output = os.Stderr
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "handbook", "handbook.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "handbook", "handbook.log")
	}

	return "handbook.log"
}
