// Package model defines core data structures for depfind.
package model

import "fmt"

// Project describes one sub-project: a directory holding a package.json
// together with the source files that belong to it.
type Project struct {
	Name string
	Root string   // Absolute path
	Main []string // Absolute paths, sorted
	Dev  []string // Absolute paths, sorted; disjoint from Main
}

// Files returns the number of files in both buckets.
func (p *Project) Files() int {
	return len(p.Main) + len(p.Dev)
}

// DependencyRecord is a single qualifying reference occurrence.
type DependencyRecord struct {
	Package string
	Dev     bool
}

// Report is the categorized dependency list for one project.
// Regular and Dev are sorted, unique and disjoint. They are never nil.
type Report struct {
	Project string   `json:"project"`
	Root    string   `json:"root"`
	Regular []string `json:"dependencies"`
	Dev     []string `json:"devDependencies"`
}

// Empty reports whether the project references no external packages.
func (r *Report) Empty() bool {
	return len(r.Regular) == 0 && len(r.Dev) == 0
}

// Failure records a file that contributed nothing because it could not be
// read or parsed.
type Failure struct {
	Path string
	Err  error
}

// ParseError reports source text that is not valid in the file's dialect.
// Line and Column are 1-based and point at the first offending node.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "<source>"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", loc, e.Line, e.Column)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: parse error: %v", loc, e.Err)
	}
	return loc + ": parse error"
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadError reports a file that is missing, unreadable or over the size limit.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: read error: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
