package macro

import (
	"handbook/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type LoadKind int

const (
	LoadUnrecognized LoadKind = iota
	LoadEager
	LoadLazy
)

func (k LoadKind) String() string {
	switch k {
	case LoadEager:
		return "eager"
	case LoadLazy:
		return "lazy"
	}
	return "unrecognized"
}

// ModuleReference is the module named by a macro argument.
type ModuleReference struct {
	Specifier parser.StringLiteral
	Load      LoadKind
}

// Classify inspects the arguments of a matched call. Anything but a single
// `require('x')` or `() => import('x')` is LoadUnrecognized.
func Classify(m *parser.Module, args []*sitter.Node) ModuleReference {
	if len(args) != 1 {
		return ModuleReference{}
	}
	arg := args[0]

	switch arg.Kind() {
	case "call_expression":
		if lit, ok := loadCall(m, arg, "identifier", "require"); ok {
			return ModuleReference{Specifier: lit, Load: LoadEager}
		}
	case "arrow_function":
		if arg.ChildByFieldName("parameter") != nil {
			return ModuleReference{}
		}
		if params := arg.ChildByFieldName("parameters"); params != nil && len(parser.NamedArgs(params)) > 0 {
			return ModuleReference{}
		}
		body := parser.Unparenthesize(arg.ChildByFieldName("body"))
		if body == nil || body.Kind() != "call_expression" {
			return ModuleReference{}
		}
		if lit, ok := loadCall(m, body, "import", "import"); ok {
			return ModuleReference{Specifier: lit, Load: LoadLazy}
		}
	}
	return ModuleReference{}
}

// loadCall matches `<callee>('<literal>')` where the callee node has the
// given kind and text.
func loadCall(m *parser.Module, call *sitter.Node, calleeKind, calleeText string) (parser.StringLiteral, bool) {
	if hasOptionalChain(call) {
		return parser.StringLiteral{}, false
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Kind() != calleeKind || m.Text(fn) != calleeText {
		return parser.StringLiteral{}, false
	}
	argsNode := call.ChildByFieldName("arguments")
	if argsNode == nil || argsNode.Kind() != "arguments" {
		return parser.StringLiteral{}, false
	}
	args := parser.NamedArgs(argsNode)
	if len(args) != 1 {
		return parser.StringLiteral{}, false
	}
	return m.ReadString(args[0])
}
