package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// StringLiteral is a decoded `string` node.
type StringLiteral struct {
	Value string // decoded value
	Raw   string // text between the quotes, escapes intact
	Quote byte
}

// ReadString decodes a plain quoted string node. Template strings and any
// other node kind report ok=false.
func (m *Module) ReadString(node *sitter.Node) (StringLiteral, bool) {
	if node == nil || node.Kind() != "string" {
		return StringLiteral{}, false
	}
	text := m.Text(node)
	if len(text) < 2 {
		return StringLiteral{}, false
	}
	quote := text[0]
	if (quote != '\'' && quote != '"') || text[len(text)-1] != quote {
		return StringLiteral{}, false
	}

	var b strings.Builder
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "string_fragment":
			b.WriteString(m.Text(child))
		case "escape_sequence":
			b.WriteString(decodeEscape(m.Text(child)))
		}
	}
	return StringLiteral{
		Value: b.String(),
		Raw:   text[1 : len(text)-1],
		Quote: quote,
	}, true
}

func decodeEscape(seq string) string {
	if strings.HasPrefix(seq, "\\\n") || strings.HasPrefix(seq, "\\\r") {
		return ""
	}
	if v, err := strconv.Unquote(`"` + seq + `"`); err == nil {
		return v
	}
	if len(seq) == 2 {
		// \' and other identity escapes.
		return seq[1:]
	}
	return seq
}

// QuoteString renders value as a JS string literal using quote. Control
// characters and the U+2028/U+2029 line terminators are escaped so the
// literal is valid in every JS target.
func QuoteString(value string, quote byte) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte(quote)
	for i := 0; i < len(value); {
		r, size := utf8.DecodeRuneInString(value[i:])
		if r == utf8.RuneError && size <= 1 {
			b.WriteByte(value[i])
			i++
			continue
		}
		i += size
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteByte(quote)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r == '\v':
			b.WriteString(`\v`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02X`, r)
		case r == '\u2028' || r == '\u2029':
			fmt.Fprintf(&b, `\u%04X`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}
