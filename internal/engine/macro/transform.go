// Package macro expands calls to the handbook `source` macro into resolved
// source descriptors.
//
// A module is processed in one pass: import bindings are collected, every
// call expression is matched against them, the single argument of each match
// is classified, the referenced specifier is resolved and the argument is
// replaced. Calls whose argument is not `require('x')` or `() => import('x')`
// are left byte-for-byte unchanged.
package macro

import (
	"strings"

	"handbook/internal/core/errors"
	"handbook/internal/engine/parser"
	"handbook/internal/engine/resolver"
)

const (
	DefaultPackage = "@handbook/source"
	DefaultExport  = "source"
)

type Options struct {
	Package string
	Export  string
}

// Site reports one matched macro call.
type Site struct {
	Callee    string
	Kind      CalleeKind
	Load      LoadKind
	Specifier string
	Filename  string
	// Candidates are the paths whose existence decided Filename.
	Candidates []string
	Location   parser.Location
	Rewritten  bool
}

type Result struct {
	Path      string
	Language  string
	Bindings  Bindings
	Sites     []Site
	Rewritten int
}

// Changed reports whether any call was rewritten.
func (r *Result) Changed() bool { return r != nil && r.Rewritten > 0 }

// Transformer holds only configuration, so one value can serve any number
// of goroutines.
type Transformer struct {
	pkg    string
	export string
}

func NewTransformer(opts Options) *Transformer {
	t := &Transformer{
		pkg:    strings.TrimSpace(opts.Package),
		export: strings.TrimSpace(opts.Export),
	}
	if t.pkg == "" {
		t.pkg = DefaultPackage
	}
	if t.export == "" {
		t.export = DefaultExport
	}
	return t
}

// Transform rewrites m in place. r resolves specifiers relative to the
// project m belongs to.
func (t *Transformer) Transform(m *parser.Module, r *resolver.Resolver) (*Result, error) {
	if m == nil || r == nil {
		return nil, errors.New(errors.CodeValidationError, "module and resolver are required")
	}

	result := &Result{Path: m.Path, Language: m.Language}
	result.Bindings = TrackBindings(m, t.pkg, t.export)
	calls := MatchCalls(m, result.Bindings, t.export)
	if len(calls) == 0 {
		return result, nil
	}

	edits := make([]parser.Edit, 0, len(calls))
	for _, call := range calls {
		site := Site{
			Callee:   call.Callee,
			Kind:     call.Kind,
			Location: m.Location(call.Call),
		}
		ref := Classify(m, call.Args)
		site.Load = ref.Load
		if ref.Load == LoadUnrecognized {
			result.Sites = append(result.Sites, site)
			continue
		}

		res := r.Resolve(ref.Specifier.Value, m.Path)
		site.Specifier = res.Specifier
		site.Filename = res.Filename
		site.Candidates = res.Candidates
		site.Rewritten = true
		edits = append(edits, RewriteArgument(m, call.Args[0], ref, res))
		result.Sites = append(result.Sites, site)
	}

	if err := m.Apply(edits); err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, "rewrite")
	}
	result.Rewritten = len(edits)
	return result, nil
}
