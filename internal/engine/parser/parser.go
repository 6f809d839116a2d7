package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"handbook/internal/core/errors"
	"handbook/internal/shared/observability"
	"handbook/internal/shared/util"
)

// Parser routes files to a grammar by extension and hands back parsed modules.
type Parser struct {
	loader     *GrammarLoader
	extensions map[string]string
	pools      map[string]*ParserPool
}

func NewParser(loader *GrammarLoader) *Parser {
	p := &Parser{
		loader:     loader,
		extensions: make(map[string]string),
		pools:      make(map[string]*ParserPool),
	}
	for lang, spec := range loader.LanguageRegistry() {
		if !spec.Enabled {
			continue
		}
		grammar := loader.Language(lang)
		if grammar == nil {
			continue
		}
		p.pools[lang] = NewParserPool(grammar)
		for _, ext := range spec.Extensions {
			p.extensions[strings.ToLower(ext)] = lang
		}
	}
	return p
}

// Parse builds a Module for path. The module owns its tree; callers must Close it.
func (p *Parser) Parse(path string, content []byte) (*Module, error) {
	lang := p.detectLanguage(path)
	if lang == "" {
		return nil, errors.AddContext(errors.New(errors.CodeNotSupported, "unsupported language"), errors.CtxPath, path)
	}
	pool := p.pools[lang]
	if pool == nil {
		return nil, errors.New(errors.CodeInternal, fmt.Sprintf("grammar not loaded: %s", lang))
	}

	start := time.Now()
	tree := pool.Parse(content, nil)
	observability.ParsingDuration.WithLabelValues(lang).Observe(time.Since(start).Seconds())
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeParseFailed, "parse failed"), errors.CtxPath, path)
	}

	source := make([]byte, len(content))
	copy(source, content)
	return &Module{
		Path:     path,
		Language: lang,
		Source:   source,
		tree:     tree,
		pool:     pool,
	}, nil
}

func (p *Parser) detectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return p.extensions[ext]
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.GetLanguage(path) != ""
}

func (p *Parser) GetLanguage(path string) string {
	return p.detectLanguage(path)
}

func (p *Parser) SupportedExtensions() []string {
	return util.SortedStringKeys(p.extensions)
}
