package aggregate

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/phobologic/depfind/internal/model"
)

// memReader serves file contents from a map; missing paths fail like a
// missing file on disk.
func memReader(files map[string]string) Reader {
	return ReaderFunc(func(path string) ([]byte, error) {
		src, ok := files[path]
		if !ok {
			return nil, fs.ErrNotExist
		}
		return []byte(src), nil
	})
}

func build(t *testing.T, project *model.Project, files map[string]string, workers int) Result {
	t.Helper()
	b := &Builder{Reader: memReader(files), Workers: workers}
	res, err := b.Build(context.Background(), project)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return res
}

func TestAccumulatorPrecedence(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	acc.Add(model.DependencyRecord{Package: "jest", Dev: true})
	acc.Add(model.DependencyRecord{Package: "react", Dev: true})
	acc.Add(model.DependencyRecord{Package: "react"})
	acc.Add(model.DependencyRecord{Package: "lodash"})
	acc.Add(model.DependencyRecord{Package: "lodash"})
	acc.Add(model.DependencyRecord{Package: ""})

	r := acc.Report(&model.Project{Name: "app", Root: "/app"})
	if !reflect.DeepEqual(r.Regular, []string{"lodash", "react"}) {
		t.Errorf("regular = %v", r.Regular)
	}
	if !reflect.DeepEqual(r.Dev, []string{"jest"}) {
		t.Errorf("dev = %v", r.Dev)
	}
	if acc.Len() != 3 {
		t.Errorf("Len = %d, want 3", acc.Len())
	}
}

func TestAccumulatorMergeOrderIndependent(t *testing.T) {
	t.Parallel()

	mk := func(recs ...model.DependencyRecord) *Accumulator {
		a := NewAccumulator()
		for _, r := range recs {
			a.Add(r)
		}
		return a
	}
	x := mk(model.DependencyRecord{Package: "a"}, model.DependencyRecord{Package: "b", Dev: true})
	y := mk(model.DependencyRecord{Package: "b"}, model.DependencyRecord{Package: "c", Dev: true})
	z := mk(model.DependencyRecord{Package: "d", Dev: true})

	left := NewAccumulator()
	left.Merge(x)
	left.Merge(y)
	left.Merge(z)
	left.Merge(nil)

	right := NewAccumulator()
	right.Merge(z)
	right.Merge(y)
	right.Merge(x)

	p := &model.Project{Name: "p"}
	if !reflect.DeepEqual(left.Report(p), right.Report(p)) {
		t.Errorf("merge order changed report:\n%+v\n%+v", left.Report(p), right.Report(p))
	}
	want := model.Report{Project: "p", Regular: []string{"a", "b"}, Dev: []string{"c", "d"}}
	if !reflect.DeepEqual(left.Report(p), want) {
		t.Errorf("report = %+v, want %+v", left.Report(p), want)
	}
}

func TestBuildCategorizes(t *testing.T) {
	t.Parallel()

	project := &model.Project{
		Name: "web",
		Root: "/web",
		Main: []string{"/web/src/index.js", "/web/src/util.ts"},
		Dev:  []string{"/web/src/index.test.js"},
	}
	files := map[string]string{
		"/web/src/index.js":      `import React from "react"; import "./styles.css"; const _ = require("lodash/fp");`,
		"/web/src/util.ts":       `export * from "@acme/utils/strings"; import x from "/abs/thing";`,
		"/web/src/index.test.js": `import { render } from "@testing-library/react"; import React from "react"; require("jest");`,
	}

	res := build(t, project, files, 2)
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
	want := model.Report{
		Project: "web",
		Root:    "/web",
		Regular: []string{"@acme/utils", "lodash", "react"},
		Dev:     []string{"@testing-library/react", "jest"},
	}
	if !reflect.DeepEqual(res.Report, want) {
		t.Errorf("report = %+v, want %+v", res.Report, want)
	}
}

func TestBuildIsolatedParseFailure(t *testing.T) {
	t.Parallel()

	project := &model.Project{
		Name: "app",
		Main: []string{"/app/one.js", "/app/two.js", "/app/three.js"},
	}
	files := map[string]string{
		"/app/one.js":   `import a from "alpha";`,
		"/app/two.js":   "import { from 'broken'\n%%% ((",
		"/app/three.js": `const c = require("gamma");`,
	}

	res := build(t, project, files, 3)
	if !reflect.DeepEqual(res.Report.Regular, []string{"alpha", "gamma"}) {
		t.Errorf("regular = %v", res.Report.Regular)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("expected exactly 1 failure, got %d: %v", len(res.Failures), res.Failures)
	}
	f := res.Failures[0]
	if f.Path != "/app/two.js" {
		t.Errorf("failure path = %q", f.Path)
	}
	var perr *model.ParseError
	if !errors.As(f.Err, &perr) {
		t.Fatalf("failure %T is not a ParseError", f.Err)
	}
	if perr.Path != "/app/two.js" {
		t.Errorf("ParseError.Path = %q", perr.Path)
	}
}

func TestBuildReadFailure(t *testing.T) {
	t.Parallel()

	project := &model.Project{
		Name: "app",
		Main: []string{"/app/missing.js", "/app/ok.js"},
	}
	files := map[string]string{"/app/ok.js": `import x from "ok-pkg";`}

	res := build(t, project, files, 1)
	if !reflect.DeepEqual(res.Report.Regular, []string{"ok-pkg"}) {
		t.Errorf("regular = %v", res.Report.Regular)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %v", res.Failures)
	}
	var rerr *model.ReadError
	if !errors.As(res.Failures[0].Err, &rerr) {
		t.Fatalf("failure %T is not a ReadError", res.Failures[0].Err)
	}
	if !errors.Is(res.Failures[0].Err, fs.ErrNotExist) {
		t.Errorf("ReadError should wrap fs.ErrNotExist: %v", res.Failures[0].Err)
	}
}

func TestBuildEmptyReport(t *testing.T) {
	t.Parallel()

	project := &model.Project{Name: "lib", Main: []string{"/lib/index.js"}}
	res := build(t, project, map[string]string{"/lib/index.js": "export const x = 1;"}, 0)

	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
	if res.Report.Regular == nil || res.Report.Dev == nil {
		t.Error("empty report sets must be non-nil")
	}
	if !res.Report.Empty() {
		t.Errorf("expected empty report, got %+v", res.Report)
	}
}

func TestBuildAllFilesFailStillReports(t *testing.T) {
	t.Parallel()

	project := &model.Project{Name: "bad", Main: []string{"/bad/a.js", "/bad/b.js"}}
	res := build(t, project, map[string]string{"/bad/a.js": "(((", "/bad/b.js": "}}}"}, 2)

	if len(res.Failures) != 2 {
		t.Errorf("expected 2 failures, got %d", len(res.Failures))
	}
	if res.Report.Project != "bad" || !res.Report.Empty() {
		t.Errorf("report = %+v", res.Report)
	}
}

func TestBuildIdempotent(t *testing.T) {
	t.Parallel()

	var main []string
	files := map[string]string{}
	pkgs := []string{"zeta", "alpha", "@scope/mid", "beta", "alpha/sub"}
	for i, pkg := range pkgs {
		p := filepath.Join("/repo", "f"+string(rune('a'+i))+".js")
		main = append(main, p)
		files[p] = `import x from "` + pkg + `"; require("shared");`
	}
	project := &model.Project{Name: "repo", Root: "/repo", Main: main}

	first := build(t, project, files, 4)
	for i := 0; i < 5; i++ {
		again := build(t, project, files, 3)
		if !reflect.DeepEqual(first.Report, again.Report) {
			t.Fatalf("reports differ:\n%+v\n%+v", first.Report, again.Report)
		}
	}
	want := []string{"@scope/mid", "alpha", "beta", "shared", "zeta"}
	if !reflect.DeepEqual(first.Report.Regular, want) {
		t.Errorf("regular = %v, want %v", first.Report.Regular, want)
	}
}

func TestBuildExclude(t *testing.T) {
	t.Parallel()

	project := &model.Project{Name: "srv", Main: []string{"/srv/main.js"}}
	b := &Builder{
		Reader:  memReader(map[string]string{"/srv/main.js": `require("fs"); require("node:path"); require("express");`}),
		Exclude: []string{"fs", "node:path"},
	}
	res, err := b.Build(context.Background(), project)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(res.Report.Regular, []string{"express"}) {
		t.Errorf("regular = %v", res.Report.Regular)
	}
}

func TestBuildUnsupportedExtension(t *testing.T) {
	t.Parallel()

	project := &model.Project{Name: "x", Main: []string{"/x/readme.md"}}
	res := build(t, project, map[string]string{"/x/readme.md": "# hi"}, 1)
	if len(res.Failures) != 1 || !errors.Is(res.Failures[0].Err, ErrUnsupported) {
		t.Errorf("failures = %v", res.Failures)
	}
}

func TestBuildCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	project := &model.Project{Name: "x", Main: []string{"/x/a.js"}}
	b := &Builder{Reader: memReader(map[string]string{"/x/a.js": `import "a";`})}
	if _, err := b.Build(ctx, project); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBuildAll(t *testing.T) {
	t.Parallel()

	projects := []model.Project{
		{Name: "one", Main: []string{"/one/a.js"}},
		{Name: "two", Dev: []string{"/two/a.spec.js"}},
	}
	b := &Builder{Reader: memReader(map[string]string{
		"/one/a.js":      `import "left-pad";`,
		"/two/a.spec.js": `import "mocha";`,
	})}
	results, err := b.BuildAll(context.Background(), projects)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !reflect.DeepEqual(results[0].Report.Regular, []string{"left-pad"}) {
		t.Errorf("one = %+v", results[0].Report)
	}
	if !reflect.DeepEqual(results[1].Report.Dev, []string{"mocha"}) {
		t.Errorf("two = %+v", results[1].Report)
	}
}

func TestFSReaderSizeLimit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	small := filepath.Join(dir, "small.js")
	big := filepath.Join(dir, "big.js")
	if err := os.WriteFile(small, []byte("import 'a';"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(big, make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}

	r := FSReader{MaxSize: 32}
	if _, err := r.ReadFile(small); err != nil {
		t.Errorf("small file: %v", err)
	}

	_, err := r.ReadFile(big)
	var rerr *model.ReadError
	if !errors.As(err, &rerr) || !errors.Is(err, ErrTooLarge) {
		t.Errorf("big file err = %v", err)
	}

	_, err = FSReader{}.ReadFile(filepath.Join(dir, "nope.js"))
	if !errors.As(err, &rerr) {
		t.Errorf("missing file err = %v", err)
	}
}
