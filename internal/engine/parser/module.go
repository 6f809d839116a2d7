package parser

import (
	"fmt"
	"sort"

	"handbook/internal/core/errors"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Edit replaces Source[Start:End] with Text.
type Edit struct {
	Start uint
	End   uint
	Text  string
}

// Module is one parsed source file. Source and the tree always describe the
// same bytes; Apply keeps them in sync.
type Module struct {
	Path     string
	Language string
	Source   []byte

	tree *sitter.Tree
	pool *ParserPool
}

func (m *Module) Root() *sitter.Node {
	if m == nil || m.tree == nil {
		return nil
	}
	return m.tree.RootNode()
}

func (m *Module) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(m.Source[node.StartByte():node.EndByte()])
}

func (m *Module) Location(node *sitter.Node) Location {
	pos := node.StartPosition()
	return Location{
		File:   m.Path,
		Line:   int(pos.Row) + 1,
		Column: int(pos.Column) + 1,
	}
}

// Apply splices edits into Source, records them on the tree and reparses
// incrementally. Edits must not overlap. An empty slice leaves the module
// untouched.
func (m *Module) Apply(edits []Edit) error {
	if len(edits) == 0 {
		return nil
	}

	ordered := append([]Edit(nil), edits...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })
	limit := uint(len(m.Source))
	for _, e := range ordered {
		if e.Start > e.End || e.End > limit {
			return errors.AddContext(
				errors.New(errors.CodeValidationError, fmt.Sprintf("edit [%d,%d) out of range", e.Start, e.End)),
				errors.CtxPath, m.Path)
		}
		limit = e.Start
	}

	// Right to left, so each edit's offsets are still valid in the buffer.
	source := m.Source
	for _, e := range ordered {
		startPoint := pointAt(source, e.Start)
		oldEndPoint := pointAt(source, e.End)
		newEndPoint := advancePoint(startPoint, e.Text)

		next := make([]byte, 0, len(source)-int(e.End-e.Start)+len(e.Text))
		next = append(next, source[:e.Start]...)
		next = append(next, e.Text...)
		next = append(next, source[e.End:]...)
		source = next

		if m.tree != nil {
			m.tree.Edit(&sitter.InputEdit{
				StartByte:      e.Start,
				OldEndByte:     e.End,
				NewEndByte:     e.Start + uint(len(e.Text)),
				StartPosition:  startPoint,
				OldEndPosition: oldEndPoint,
				NewEndPosition: newEndPoint,
			})
		}
	}
	m.Source = source

	if m.pool == nil {
		return nil
	}
	tree := m.pool.Parse(m.Source, m.tree)
	if tree == nil {
		return errors.AddContext(errors.New(errors.CodeParseFailed, "reparse failed"), errors.CtxPath, m.Path)
	}
	if m.tree != nil {
		m.tree.Close()
	}
	m.tree = tree
	return nil
}

func (m *Module) Close() {
	if m == nil || m.tree == nil {
		return
	}
	m.tree.Close()
	m.tree = nil
}

func pointAt(source []byte, offset uint) sitter.Point {
	var row, col uint
	for i := uint(0); i < offset && i < uint(len(source)); i++ {
		if source[i] == '\n' {
			row++
			col = 0
			continue
		}
		col++
	}
	return sitter.Point{Row: row, Column: col}
}

func advancePoint(start sitter.Point, text string) sitter.Point {
	p := start
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			p.Row++
			p.Column = 0
			continue
		}
		p.Column++
	}
	return p
}
