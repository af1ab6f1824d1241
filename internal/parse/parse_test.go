package parse

import (
	"context"
	"errors"
	"testing"

	"github.com/phobologic/depfind/internal/lang"
	"github.com/phobologic/depfind/internal/model"
	"github.com/phobologic/depfind/internal/walk"
)

func setup(t *testing.T, langName string) func(source string) (*walk.Node, error) {
	t.Helper()
	l := lang.Languages[langName]
	if l == nil {
		t.Fatalf("language %q not registered", langName)
	}
	return func(source string) (*walk.Node, error) {
		p := l.NewParser()
		return Source(context.Background(), p, []byte(source))
	}
}

func findKind(root *walk.Node, kind string) []*walk.Node {
	var out []*walk.Node
	walk.Walk(root, walk.Visitors{kind: func(n *walk.Node) { out = append(out, n) }})
	return out
}

func TestSourceImportStatement(t *testing.T) {
	t.Parallel()
	parse := setup(t, "javascript")

	root, err := parse(`import React from "react";`)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if root.Kind != "program" {
		t.Errorf("root kind = %q, want program", root.Kind)
	}

	imports := findKind(root, "import_statement")
	if len(imports) != 1 {
		t.Fatalf("expected 1 import_statement, got %d", len(imports))
	}
	src := imports[0].Child("source")
	if src == nil || src.Kind != "string" {
		t.Fatalf("source slot = %+v", src)
	}
	if v, _ := src.Scalar("value"); v != "react" {
		t.Errorf("source value = %q, want react", v)
	}
	if imports[0].Loc.StartLine != 1 || imports[0].Loc.StartColumn != 1 {
		t.Errorf("loc = %+v", imports[0].Loc)
	}
}

func TestSourceCallExpressionFields(t *testing.T) {
	t.Parallel()
	parse := setup(t, "javascript")

	root, err := parse(`const fs = require('fs-extra' /* note */);`)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}

	calls := findKind(root, "call_expression")
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	fn := calls[0].Child("function")
	if fn == nil || fn.Kind != "identifier" {
		t.Fatalf("function slot = %+v", fn)
	}
	if name, _ := fn.Scalar("text"); name != "require" {
		t.Errorf("function text = %q, want require", name)
	}

	args := calls[0].Child("arguments")
	if args == nil {
		t.Fatal("missing arguments slot")
	}
	list := args.Seq(ChildrenField)
	if len(list) != 1 {
		t.Fatalf("expected 1 argument (comment dropped), got %d", len(list))
	}
	if v, _ := list[0].Scalar("value"); v != "fs-extra" {
		t.Errorf("argument value = %q, want fs-extra", v)
	}
}

func TestSourceTypeScript(t *testing.T) {
	t.Parallel()
	parse := setup(t, "typescript")

	root, err := parse("import type { Foo } from '@acme/types';\nexport const x: number = 1;\n")
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if got := len(findKind(root, "import_statement")); got != 1 {
		t.Errorf("expected 1 import_statement, got %d", got)
	}
}

func TestSourceSyntaxError(t *testing.T) {
	t.Parallel()
	parse := setup(t, "javascript")

	_, err := parse("import from from from;\nconst = ;\n")
	if err == nil {
		t.Fatal("expected error for invalid source")
	}

	var perr *model.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error %T is not *model.ParseError", err)
	}
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("error does not wrap ErrSyntax: %v", err)
	}
	if perr.Line < 1 {
		t.Errorf("line = %d, want >= 1", perr.Line)
	}
}

func TestSourceEmpty(t *testing.T) {
	t.Parallel()
	parse := setup(t, "javascript")

	root, err := parse("")
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if len(root.Children()) != 0 {
		t.Errorf("expected no children for empty source, got %d", len(root.Children()))
	}
}

func TestUnquote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{`"react"`, "react"},
		{`'react'`, "react"},
		{`""`, ""},
		{`"mismatch'`, `"mismatch'`},
		{`x`, "x"},
		{`"\x40scope/pkg"`, "@scope/pkg"},
		{`'it\'s'`, "it's"},
		{`"say \"hi\""`, `say "hi"`},
		{`"back\\slash"`, `back\slash`},
		{`"\u0040babel/core"`, "@babel/core"},
		{`"\u{1F600}"`, "\U0001F600"},
		{`"\uD83D\uDE00"`, "\U0001F600"},
		{`"a\nb\tc"`, "a\nb\tc"},
		{`"line\
cont"`, "linecont"},
		{`"\xZZ"`, `\xZZ`},
		{`"\u12"`, `\u12`},
		{`"\q"`, "q"},
	}
	for _, tt := range tests {
		if got := unquote(tt.in); got != tt.want {
			t.Errorf("unquote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
