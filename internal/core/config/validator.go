package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"handbook/internal/core/config/helpers"

	"github.com/gobwas/glob"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateMacro(cfg *Config) error {
	if strings.TrimSpace(cfg.Macro.Package) == "" {
		return fmt.Errorf("macro.package must not be empty")
	}
	if !identifierPattern.MatchString(cfg.Macro.Export) {
		return fmt.Errorf("macro.export %q is not a valid identifier", cfg.Macro.Export)
	}
	if strings.ContainsAny(cfg.Macro.RawDirective, `'"`+"`") {
		return fmt.Errorf("macro.raw_directive must not contain quotes")
	}
	return nil
}

func validateResolve(cfg *Config) error {
	if filepath.IsAbs(cfg.Resolve.ContentDir) {
		return fmt.Errorf("resolve.content_dir must be relative to the project root")
	}
	check := func(field, ext string) error {
		if ext == "" || ext == "." || strings.ContainsAny(ext, `/\ `) {
			return fmt.Errorf("%s %q is not a file extension", field, ext)
		}
		return nil
	}
	for i, ext := range cfg.Resolve.Extensions {
		if err := check(fmt.Sprintf("resolve.extensions[%d]", i), ext); err != nil {
			return err
		}
	}
	if err := check("resolve.default_extension", cfg.Resolve.DefaultExtension); err != nil {
		return err
	}
	if cfg.Resolve.ExtensionOverride != "" {
		if err := check("resolve.extension_override", cfg.Resolve.ExtensionOverride); err != nil {
			return err
		}
	}
	return nil
}

func validateOutput(cfg *Config) error {
	switch cfg.Output.Mode {
	case OutputDir:
		if strings.TrimSpace(cfg.Output.Dir) == "" {
			return fmt.Errorf("output.dir is required when output.mode is %q", OutputDir)
		}
	case OutputInPlace, OutputStdout, OutputNone:
	default:
		return fmt.Errorf("output.mode must be one of: dir, inplace, stdout, none (got %q)", cfg.Output.Mode)
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for _, pattern := range append(append([]string(nil), cfg.Exclude.Dirs...), cfg.Exclude.Files...) {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("exclude patterns must not be empty")
		}
		if !helpers.HasWildcard(pattern) {
			continue
		}
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateLanguages(cfg *Config) error {
	for language, settings := range cfg.Languages {
		if strings.TrimSpace(language) == "" {
			return fmt.Errorf("languages key must not be empty")
		}
		for _, ext := range settings.Extensions {
			if strings.TrimSpace(ext) == "" {
				return fmt.Errorf("languages.%s.extensions must not include empty values", language)
			}
		}
	}
	return nil
}

func validateWorkers(cfg *Config) error {
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", cfg.Workers)
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.SampleRatio > 1 {
		return fmt.Errorf("observability.sample_ratio must be within (0, 1], got %v", cfg.Observability.SampleRatio)
	}
	return nil
}

func Validate(cfg *Config) []error {
	var errs []error

	for _, validate := range []func(*Config) error{
		validateVersion,
		validateMacro,
		validateResolve,
		validateOutput,
		validateExclude,
		validateLanguages,
		validateWorkers,
		validateObservability,
	} {
		if err := validate(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	// Cross-field validation
	errs = append(errs, validateConfigDependencies(cfg)...)

	// Path verification
	errs = append(errs, validatePaths(cfg)...)

	return errs
}

func validateConfigDependencies(cfg *Config) []error {
	var errs []error

	if cfg.Output.Mode == OutputDir && !filepath.IsAbs(cfg.Output.Dir) {
		out := filepath.Clean(cfg.Output.Dir)
		for i, root := range cfg.Roots {
			root = filepath.Clean(root)
			// An output dir nested inside a root is fine; the scanner skips it.
			if root != "." && helpers.IsPathOverlap(out, root) && !strings.HasPrefix(out, root+string(os.PathSeparator)) {
				errs = append(errs, fmt.Errorf("output.dir %q overlaps roots[%d] %q", cfg.Output.Dir, i, cfg.Roots[i]))
			}
		}
	}

	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		errs = append(errs, fmt.Errorf("observability.otlp_endpoint is required when tracing is enabled"))
	}

	return errs
}

func validatePaths(cfg *Config) []error {
	var errs []error

	if root := strings.TrimSpace(cfg.Paths.ProjectRoot); root != "" {
		stat, err := os.Stat(root)
		if os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("paths.project_root %q does not exist", root))
		} else if err == nil && !stat.IsDir() {
			errs = append(errs, fmt.Errorf("paths.project_root %q is not a directory", root))
		}
	}

	return errs
}
