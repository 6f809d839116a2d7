package macro

import (
	"handbook/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type CalleeKind int

const (
	CalleeDirect CalleeKind = iota
	CalleeMember
)

func (k CalleeKind) String() string {
	if k == CalleeMember {
		return "member"
	}
	return "direct"
}

// CallSite is a call expression whose callee reaches the macro.
type CallSite struct {
	Callee string
	Kind   CalleeKind
	Call   *sitter.Node
	// Args are the call's named, non-comment arguments.
	Args []*sitter.Node
}

// MatchCalls visits every call_expression in document order and returns
// those whose callee resolves through bindings. Subtrees of every call are
// still visited so nested macro calls are found.
func MatchCalls(m *parser.Module, bindings Bindings, exportName string) []CallSite {
	if len(bindings) == 0 {
		return nil
	}

	var sites []CallSite
	walker := parser.NewWalker(map[string]parser.NodeHandler{
		"call_expression": func(call *sitter.Node) bool {
			if site, ok := matchCall(m, call, bindings, exportName); ok {
				sites = append(sites, site)
			}
			return false
		},
	})
	walker.Walk(m.Root())
	return sites
}

func matchCall(m *parser.Module, call *sitter.Node, bindings Bindings, exportName string) (CallSite, bool) {
	if hasOptionalChain(call) {
		return CallSite{}, false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Kind() != "arguments" {
		// Tagged templates share the call_expression kind.
		return CallSite{}, false
	}
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return CallSite{}, false
	}

	site := CallSite{Call: call, Args: parser.NamedArgs(args)}
	switch fn.Kind() {
	case "identifier":
		name := m.Text(fn)
		if !bindings.Direct(name) {
			return CallSite{}, false
		}
		site.Callee = name
		site.Kind = CalleeDirect
	case "member_expression":
		if hasOptionalChain(fn) {
			return CallSite{}, false
		}
		object := fn.ChildByFieldName("object")
		property := fn.ChildByFieldName("property")
		if object == nil || property == nil || object.Kind() != "identifier" || property.Kind() != "property_identifier" {
			return CallSite{}, false
		}
		if m.Text(property) != exportName || !bindings.Member(m.Text(object)) {
			return CallSite{}, false
		}
		site.Callee = m.Text(fn)
		site.Kind = CalleeMember
	default:
		return CallSite{}, false
	}
	return site, true
}

func hasOptionalChain(node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == "optional_chain" {
			return true
		}
	}
	return false
}
