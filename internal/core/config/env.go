package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// TestExtensionEnv injects the resolver's extension override. It predates the
// HANDBOOK_<SECTION>_<KEY> scheme and wins over it.
const TestExtensionEnv = "HANDBOOK_TEST_EXT"

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: HANDBOOK_[SECTION]_[KEY] (e.g., HANDBOOK_OUTPUT_MODE).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "HANDBOOK_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.CacheDir, "HANDBOOK_PATHS_CACHE_DIR")

	// Macro
	setEnvString(&cfg.Macro.Package, "HANDBOOK_MACRO_PACKAGE")
	setEnvString(&cfg.Macro.Export, "HANDBOOK_MACRO_EXPORT")
	setEnvString(&cfg.Macro.RawDirective, "HANDBOOK_MACRO_RAW_DIRECTIVE")

	// Resolve
	setEnvString(&cfg.Resolve.ContentDir, "HANDBOOK_RESOLVE_CONTENT_DIR")
	setEnvString(&cfg.Resolve.DefaultExtension, "HANDBOOK_RESOLVE_DEFAULT_EXTENSION")
	setEnvString(&cfg.Resolve.ExtensionOverride, "HANDBOOK_RESOLVE_EXTENSION_OVERRIDE")
	setEnvString(&cfg.Resolve.ExtensionOverride, TestExtensionEnv)

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "HANDBOOK_WATCH_DEBOUNCE")

	// Output
	setEnvString(&cfg.Output.Mode, "HANDBOOK_OUTPUT_MODE")
	setEnvString(&cfg.Output.Dir, "HANDBOOK_OUTPUT_DIR")
	setEnvString(&cfg.Output.TSV, "HANDBOOK_OUTPUT_TSV")

	// Cache
	setEnvBoolPtr(&cfg.Cache.Enabled, "HANDBOOK_CACHE_ENABLED")
	setEnvString(&cfg.Cache.Path, "HANDBOOK_CACHE_PATH")
	setEnvDuration(&cfg.Cache.BusyTimeout, "HANDBOOK_CACHE_BUSY_TIMEOUT")

	setEnvInt(&cfg.Workers, "HANDBOOK_WORKERS")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "HANDBOOK_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "HANDBOOK_OBSERVABILITY_ADDRESS")
	setEnvFloat64(&cfg.Observability.RequestsPerSec, "HANDBOOK_OBSERVABILITY_REQUESTS_PER_SEC")
	setEnvBool(&cfg.Observability.EnableTracing, "HANDBOOK_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "HANDBOOK_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.OTLPInsecure, "HANDBOOK_OBSERVABILITY_OTLP_INSECURE")
	setEnvFloat64(&cfg.Observability.SampleRatio, "HANDBOOK_OBSERVABILITY_SAMPLE_RATIO")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
