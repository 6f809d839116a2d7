package parser

import (
	"fmt"
	"sort"
	"strings"
)

// LanguageSpec describes one tree-sitter grammar and the files routed to it.
type LanguageSpec struct {
	Name       string
	Extensions []string
	Enabled    bool
}

// LanguageOverride is the config-facing patch applied to a LanguageSpec.
type LanguageOverride struct {
	Enabled    *bool
	Extensions []string
}

func DefaultLanguageRegistry() map[string]LanguageSpec {
	return map[string]LanguageSpec{
		"javascript": {
			Name:       "javascript",
			Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
			Enabled:    true,
		},
		"typescript": {
			Name:       "typescript",
			Extensions: []string{".ts", ".mts", ".cts"},
			Enabled:    true,
		},
		"tsx": {
			Name:       "tsx",
			Extensions: []string{".tsx"},
			Enabled:    true,
		},
	}
}

// BuildLanguageRegistry applies overrides on top of the default registry.
// Extensions claimed by more than one enabled language are rejected.
func BuildLanguageRegistry(overrides map[string]LanguageOverride) (map[string]LanguageSpec, error) {
	registry := DefaultLanguageRegistry()
	for name, override := range overrides {
		name = strings.ToLower(strings.TrimSpace(name))
		spec, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown language %q", name)
		}
		if override.Enabled != nil {
			spec.Enabled = *override.Enabled
		}
		if len(override.Extensions) > 0 {
			spec.Extensions = normalizeExtensions(override.Extensions)
		}
		registry[name] = spec
	}

	owners := make(map[string]string)
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := registry[name]
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			if owner, taken := owners[ext]; taken {
				return nil, fmt.Errorf("extension %s claimed by both %s and %s", ext, owner, name)
			}
			owners[ext] = name
		}
	}
	return registry, nil
}

func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, ext := range values {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	return out
}

func cloneLanguageRegistry(in map[string]LanguageSpec) map[string]LanguageSpec {
	out := make(map[string]LanguageSpec, len(in))
	for name, spec := range in {
		spec.Extensions = append([]string(nil), spec.Extensions...)
		out[name] = spec
	}
	return out
}
