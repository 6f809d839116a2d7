package parser

import "testing"

func TestBuildLanguageRegistry_Defaults(t *testing.T) {
	registry, err := BuildLanguageRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"javascript", "typescript", "tsx"} {
		if !registry[name].Enabled {
			t.Fatalf("expected %s to be enabled by default", name)
		}
	}
}

func TestBuildLanguageRegistry_RejectsDuplicateExtensions(t *testing.T) {
	_, err := BuildLanguageRegistry(map[string]LanguageOverride{
		"javascript": {Extensions: []string{".js", ".tsx"}},
	})
	if err == nil {
		t.Fatal("expected duplicate extension validation error")
	}
}

func TestBuildLanguageRegistry_DisabledLanguageReleasesExtensions(t *testing.T) {
	disabled := false
	registry, err := BuildLanguageRegistry(map[string]LanguageOverride{
		"tsx":        {Enabled: &disabled},
		"typescript": {Extensions: []string{"ts", ".TSX"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := registry["typescript"].Extensions
	if len(got) != 2 || got[0] != ".ts" || got[1] != ".tsx" {
		t.Fatalf("expected normalized extensions [.ts .tsx], got %v", got)
	}
}

func TestBuildLanguageRegistry_RejectsUnknownLanguage(t *testing.T) {
	_, err := BuildLanguageRegistry(map[string]LanguageOverride{
		"kotlin": {Extensions: []string{".kt"}},
	})
	if err == nil {
		t.Fatal("expected unknown language override error")
	}
}

func TestGrammarLoader_SkipsDisabledLanguages(t *testing.T) {
	disabled := false
	registry, err := BuildLanguageRegistry(map[string]LanguageOverride{
		"typescript": {Enabled: &disabled},
	})
	if err != nil {
		t.Fatal(err)
	}
	loader, err := NewGrammarLoaderWithRegistry(registry)
	if err != nil {
		t.Fatal(err)
	}
	if loader.Language("typescript") != nil {
		t.Fatal("disabled grammar should not be loaded")
	}
	if loader.Language("tsx") == nil {
		t.Fatal("tsx grammar should be loaded")
	}

	p := NewParser(loader)
	if p.IsSupportedPath("a.ts") {
		t.Fatal(".ts must be unsupported once typescript is disabled")
	}
}
