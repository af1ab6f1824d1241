// Package parse turns source text into a walk.Node syntax tree using tree-sitter.
package parse

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/depfind/internal/model"
	"github.com/phobologic/depfind/internal/walk"
)

// ErrSyntax is wrapped by every ParseError caused by invalid source text.
var ErrSyntax = errors.New("invalid syntax")

// ChildrenField holds named children that have no grammar field name.
const ChildrenField = "children"

// Source parses source with parser and converts the result into a walk tree.
// The parser must be created for the correct language. A tree containing
// ERROR or MISSING nodes is rejected with a *model.ParseError; the caller
// fills in ParseError.Path.
func Source(ctx context.Context, parser *sitter.Parser, source []byte) (*walk.Node, error) {
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &model.ParseError{Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		perr := &model.ParseError{Err: ErrSyntax}
		if bad := firstError(root); bad != nil {
			pt := bad.StartPoint()
			perr.Line = int(pt.Row) + 1
			perr.Column = int(pt.Column) + 1
		}
		return nil, perr
	}

	return convert(root, source), nil
}

// convert copies a tree-sitter node and its named descendants. Comments are
// dropped. Grammar field names become slot names; other named children
// collect under ChildrenField. Leaves carry their source in "text" and string
// literals their unquoted contents in "value".
func convert(n *sitter.Node, source []byte) *walk.Node {
	out := &walk.Node{Kind: n.Type(), Loc: location(n)}

	named := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.IsNamed() || c.Type() == "comment" {
			continue
		}
		named++
		field := n.FieldNameForChild(i)
		if field == "" {
			field = ChildrenField
		}
		out.Set(field, convert(c, source))
	}

	switch {
	case isStringLiteral(n):
		out.Set("value", unquote(nodeText(n, source)))
	case named == 0:
		out.Set("text", nodeText(n, source))
	}

	return out
}

func isStringLiteral(n *sitter.Node) bool {
	return n.Type() == "string"
}

func location(n *sitter.Node) walk.Location {
	start, end := n.StartPoint(), n.EndPoint()
	return walk.Location{
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column) + 1,
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column) + 1,
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
	}
}

// firstError returns the first ERROR or MISSING node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			if bad := firstError(c); bad != nil {
				return bad
			}
		}
	}
	return nil
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// unquote strips the surrounding quote characters of a string literal and
// decodes its escape sequences.
func unquote(s string) string {
	if len(s) >= 2 {
		q := s[0]
		if (q == '"' || q == '\'') && s[len(s)-1] == q {
			return unescape(s[1 : len(s)-1])
		}
	}
	return s
}

// unescape decodes JavaScript string escapes. Malformed escapes are kept as
// written.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case 'x':
			r, n := hexRune(s[i+1:], 2)
			if n == 0 {
				b.WriteString(`\x`)
				continue
			}
			b.WriteRune(r)
			i += n
		case 'u':
			r, n := unicodeEscape(s[i+1:])
			if n == 0 {
				b.WriteString(`\u`)
				continue
			}
			// Surrogate pairs arrive as two \u escapes.
			if utf16.IsSurrogate(r) && strings.HasPrefix(s[i+1+n:], `\u`) {
				if lo, m := unicodeEscape(s[i+1+n+2:]); m > 0 {
					if pair := utf16.DecodeRune(r, lo); pair != utf8.RuneError {
						b.WriteRune(pair)
						i += n + 2 + m
						continue
					}
				}
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte(e)
		}
	}
	return b.String()
}

// unicodeEscape parses the body of a \u escape: XXXX or {X...}. It returns
// the rune and the number of bytes consumed, or 0 when malformed.
func unicodeEscape(s string) (rune, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 || end > 7 {
			return 0, 0
		}
		r, n := hexRune(s[1:end], end-1)
		if n == 0 || r > unicode.MaxRune {
			return 0, 0
		}
		return r, end + 1
	}
	return hexRune(s, 4)
}

// hexRune reads exactly n hex digits from the start of s.
func hexRune(s string, n int) (rune, int) {
	if len(s) < n {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:n], 16, 32)
	if err != nil {
		return 0, 0
	}
	return rune(v), n
}
