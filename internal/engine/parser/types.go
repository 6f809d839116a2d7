package parser

type Location struct {
	File   string
	Line   int
	Column int
}
