package config

import (
	stdErrors "errors"
	"os"
	"runtime"
	"strings"
	"time"

	"handbook/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Load reads path, fills defaults, applies HANDBOOK_* overrides and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "read config"), errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}
	return finish(&cfg)
}

// Default returns the configuration used when no config file exists.
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)
	normalize(cfg)

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errors.Wrap(stdErrors.Join(errs...), errors.CodeValidationError, "invalid config")
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.CacheDir) == "" {
		cfg.Paths.CacheDir = ".handbook/cache"
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}

	if strings.TrimSpace(cfg.Macro.Package) == "" {
		cfg.Macro.Package = "@handbook/source"
	}
	if strings.TrimSpace(cfg.Macro.Export) == "" {
		cfg.Macro.Export = "source"
	}
	if strings.TrimSpace(cfg.Macro.RawDirective) == "" {
		cfg.Macro.RawDirective = "!!raw-loader!"
	}

	if strings.TrimSpace(cfg.Resolve.ContentDir) == "" {
		cfg.Resolve.ContentDir = "src"
	}
	if len(cfg.Resolve.Extensions) == 0 {
		cfg.Resolve.Extensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".cjs"}
	}
	if strings.TrimSpace(cfg.Resolve.DefaultExtension) == "" {
		cfg.Resolve.DefaultExtension = ".tsx"
	}

	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{"node_modules", ".git", "dist", "build", ".handbook"}
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Output.Mode) == "" {
		cfg.Output.Mode = OutputDir
	}
	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = ".handbook/out"
	}

	if strings.TrimSpace(cfg.Cache.Path) == "" {
		cfg.Cache.Path = "transform.db"
	}
	if cfg.Cache.BusyTimeout <= 0 {
		cfg.Cache.BusyTimeout = 5 * time.Second
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
	if cfg.Observability.RequestsPerSec <= 0 {
		cfg.Observability.RequestsPerSec = 5
	}
	if cfg.Observability.Burst <= 0 {
		cfg.Observability.Burst = 10
	}
	if strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.SampleRatio <= 0 {
		cfg.Observability.SampleRatio = 1
	}
}

func normalize(cfg *Config) {
	cfg.Output.Mode = strings.ToLower(strings.TrimSpace(cfg.Output.Mode))
	cfg.Resolve.DefaultExtension = normalizeExtension(cfg.Resolve.DefaultExtension)
	cfg.Resolve.ExtensionOverride = normalizeExtension(cfg.Resolve.ExtensionOverride)
	for i, ext := range cfg.Resolve.Extensions {
		cfg.Resolve.Extensions[i] = normalizeExtension(ext)
	}
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
