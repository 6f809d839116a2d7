package parser

import (
	"sync"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

func javascriptLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_javascript.Language())
}

func TestParserPool_GetPut(t *testing.T) {
	pool := NewParserPool(javascriptLanguage())

	sp := pool.Get()
	if sp == nil {
		t.Fatal("expected non-nil parser from pool")
	}
	if got := pool.Stats(); got != 1 {
		t.Fatalf("expected 1 leased parser, got %d", got)
	}

	pool.Put(sp)
	if got := pool.Stats(); got != 0 {
		t.Fatalf("expected 0 leased parsers after Put, got %d", got)
	}
}

func TestParserPool_PutNil(t *testing.T) {
	pool := NewParserPool(javascriptLanguage())
	pool.Put(nil)
}

func TestParserPool_ParsesValidJavaScript(t *testing.T) {
	pool := NewParserPool(javascriptLanguage())

	tree := pool.Parse([]byte("import { source } from '@handbook/source';\nsource(require('./a'));\n"), nil)
	if tree == nil {
		t.Fatal("expected non-nil parse tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		t.Fatalf("expected error-free root node")
	}
	if pool.Stats() != 0 {
		t.Fatalf("Parse must return its parser to the pool")
	}
}

func TestParserPool_ConcurrentAccess(t *testing.T) {
	pool := NewParserPool(javascriptLanguage())

	const goroutines = 20
	const iters = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)

	src := []byte("const run = () => import('./page');\n")

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				tree := pool.Parse(src, nil)
				if tree == nil {
					t.Errorf("expected non-nil parse tree")
					continue
				}
				tree.Close()
			}
		}()
	}

	wg.Wait()
}

func TestParserPool_LanguageSetAfterReset(t *testing.T) {
	pool := NewParserPool(javascriptLanguage())

	sp := pool.Get()
	sp.Reset()
	pool.Put(sp)

	sp2 := pool.Get()
	defer pool.Put(sp2)

	tree := sp2.Parse([]byte("ok();\n"), nil)
	if tree == nil {
		t.Fatal("parser should still parse correctly after Reset")
	}
	defer tree.Close()
}
