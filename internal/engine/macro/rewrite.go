package macro

import (
	"strings"

	"handbook/internal/engine/parser"
	"handbook/internal/engine/resolver"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Descriptor renders the object literal that replaces a macro argument:
//
//	{ module: <arg>, source: require('<directive><spec>').default, filename: '<file>' }
//
// The quote character follows the original specifier literal.
func Descriptor(argText string, ref ModuleReference, res resolver.Resolution) string {
	q := ref.Specifier.Quote
	if q == 0 {
		q = '\''
	}
	var b strings.Builder
	b.WriteString("{ module: ")
	b.WriteString(argText)
	b.WriteString(", source: require(")
	b.WriteString(parser.QuoteString(res.RawContentRequest, q))
	b.WriteString(").default, filename: ")
	b.WriteString(parser.QuoteString(res.Filename, q))
	b.WriteString(" }")
	return b.String()
}

// RewriteArgument returns the splice that swaps arg for its descriptor.
func RewriteArgument(m *parser.Module, arg *sitter.Node, ref ModuleReference, res resolver.Resolution) parser.Edit {
	return parser.Edit{
		Start: arg.StartByte(),
		End:   arg.EndByte(),
		Text:  Descriptor(m.Text(arg), ref, res),
	}
}
