package macro

import (
	"handbook/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type BindingKind int

const (
	BindingNamed BindingKind = iota
	BindingNamespace
	BindingDefault
)

func (k BindingKind) String() string {
	switch k {
	case BindingNamed:
		return "named"
	case BindingNamespace:
		return "namespace"
	case BindingDefault:
		return "default"
	}
	return "unknown"
}

// Binding is a local identifier that refers to the macro or its package.
type Binding struct {
	LocalName string
	Kind      BindingKind
}

// Bindings is the per-module record set. It is built once and only read
// afterwards.
type Bindings []Binding

// Direct reports whether a bare call through name reaches the macro.
func (b Bindings) Direct(name string) bool {
	for _, binding := range b {
		if binding.LocalName == name && (binding.Kind == BindingNamed || binding.Kind == BindingDefault) {
			return true
		}
	}
	return false
}

// Member reports whether `name.<export>` reaches the macro.
func (b Bindings) Member(name string) bool {
	for _, binding := range b {
		if binding.LocalName == name && (binding.Kind == BindingNamespace || binding.Kind == BindingDefault) {
			return true
		}
	}
	return false
}

// TrackBindings scans the module's top-level import statements for imports
// of pkg and records how exportName is reachable. Type-only imports are
// ignored because they bind nothing at runtime.
func TrackBindings(m *parser.Module, pkg, exportName string) Bindings {
	root := m.Root()
	if root == nil {
		return nil
	}

	var out Bindings
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt == nil || stmt.Kind() != "import_statement" {
			continue
		}
		if hasToken(stmt, "type") || hasToken(stmt, "typeof") {
			continue
		}
		source, ok := m.ReadString(stmt.ChildByFieldName("source"))
		if !ok || source.Value != pkg {
			continue
		}
		clause := findChild(stmt, "import_clause")
		if clause == nil {
			continue
		}
		out = append(out, clauseBindings(m, clause, exportName)...)
	}
	return out
}

func clauseBindings(m *parser.Module, clause *sitter.Node, exportName string) Bindings {
	var out Bindings
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			out = append(out, Binding{LocalName: m.Text(child), Kind: BindingDefault})
		case "namespace_import":
			if id := findChild(child, "identifier"); id != nil {
				out = append(out, Binding{LocalName: m.Text(id), Kind: BindingNamespace})
			}
		case "named_imports":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec.Kind() != "import_specifier" || hasToken(spec, "type") || hasToken(spec, "typeof") {
					continue
				}
				if b, ok := specifierBinding(m, spec, exportName); ok {
					out = append(out, b)
				}
			}
		}
	}
	return out
}

func specifierBinding(m *parser.Module, spec *sitter.Node, exportName string) (Binding, bool) {
	nameNode := spec.ChildByFieldName("name")
	if nameNode == nil {
		return Binding{}, false
	}
	imported := m.Text(nameNode)
	if lit, ok := m.ReadString(nameNode); ok {
		imported = lit.Value
	}
	local := imported
	if alias := spec.ChildByFieldName("alias"); alias != nil {
		local = m.Text(alias)
	}

	switch imported {
	case exportName:
		if local == imported && nameNode.Kind() == "string" {
			// `{ "source" }` without an alias binds no identifier.
			return Binding{}, false
		}
		return Binding{LocalName: local, Kind: BindingNamed}, true
	case "default":
		if local == "default" {
			return Binding{}, false
		}
		return Binding{LocalName: local, Kind: BindingDefault}, true
	}
	return Binding{}, false
}

func findChild(node *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

// hasToken reports whether node has a direct anonymous child token of kind.
func hasToken(node *sitter.Node, kind string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && !child.IsNamed() && child.Kind() == kind {
			return true
		}
	}
	return false
}
