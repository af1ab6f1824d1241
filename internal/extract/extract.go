// Package extract collects module specifiers from parsed source files.
package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/depfind/internal/lang"
	"github.com/phobologic/depfind/internal/parse"
	"github.com/phobologic/depfind/internal/walk"
)

// FromTree returns the module specifiers referenced in root, in traversal
// order with duplicates preserved. It recognizes static imports, re-exports
// with a source module, and require() and import() calls whose only argument
// is a string literal.
func FromTree(root *walk.Node) []string {
	var specs []string
	add := func(s string, ok bool) {
		if ok {
			specs = append(specs, s)
		}
	}

	walk.Walk(root, walk.Visitors{
		"import_statement": func(n *walk.Node) { add(sourceOf(n)) },
		"export_statement": func(n *walk.Node) { add(sourceOf(n)) },
		"call_expression":  func(n *walk.Node) { add(callTarget(n)) },
	})

	return specs
}

// sourceOf returns the module named by an import or export declaration.
// Bare "export { x }" has no source slot. TypeScript's
// `import x = require("y")` keeps its source inside an import_require_clause.
func sourceOf(n *walk.Node) (string, bool) {
	if src := n.Child("source"); src != nil {
		return literal(src)
	}
	for _, c := range n.Seq(parse.ChildrenField) {
		if c.Kind == "import_require_clause" {
			return requireClauseSource(c)
		}
	}
	return "", false
}

func requireClauseSource(clause *walk.Node) (string, bool) {
	if src := clause.Child("source"); src != nil {
		return literal(src)
	}
	for _, c := range clause.Seq(parse.ChildrenField) {
		if c.Kind == "string" {
			return literal(c)
		}
	}
	return "", false
}

// callTarget returns the module named by require("x") or import("x").
func callTarget(n *walk.Node) (string, bool) {
	fn := n.Child("function")
	if fn == nil {
		return "", false
	}
	switch fn.Kind {
	case "import":
	case "identifier":
		if name, _ := fn.Scalar("text"); name != "require" {
			return "", false
		}
	default:
		return "", false
	}

	args := n.Child("arguments")
	if args == nil {
		return "", false
	}
	list := args.Seq(parse.ChildrenField)
	if len(list) != 1 {
		return "", false
	}
	return literal(list[0])
}

func literal(n *walk.Node) (string, bool) {
	if n == nil || n.Kind != "string" {
		return "", false
	}
	return n.Scalar("value")
}

// Extractor parses source text for one language and extracts its specifiers.
// It owns a tree-sitter parser and must not be shared across goroutines.
type Extractor struct {
	lang   *lang.Language
	parser *sitter.Parser
}

// New creates an Extractor for l.
func New(l *lang.Language) *Extractor {
	return &Extractor{lang: l, parser: l.NewParser()}
}

// Language returns the dialect this Extractor parses.
func (e *Extractor) Language() *lang.Language {
	return e.lang
}

// Specifiers parses source and returns its module specifiers. Unparseable
// text yields nil and a *model.ParseError.
func (e *Extractor) Specifiers(ctx context.Context, source []byte) ([]string, error) {
	root, err := parse.Source(ctx, e.parser, source)
	if err != nil {
		return nil, err
	}
	return FromTree(root), nil
}
