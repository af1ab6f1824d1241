// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/depfind/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts dependency reports into TOON format: one projects table
// with set sizes and one dependencies table with a row per package.
func Encode(reports []model.Report) string {
	var parts []string

	var projectRows [][]string
	for i := range reports {
		r := &reports[i]
		projectRows = append(projectRows, []string{
			r.Project,
			r.Root,
			strconv.Itoa(len(r.Regular)),
			strconv.Itoa(len(r.Dev)),
		})
	}
	parts = append(parts, formatTabular("projects", []string{"name", "root", "regular", "dev"}, projectRows))

	var depRows [][]string
	for i := range reports {
		r := &reports[i]
		for _, pkg := range r.Regular {
			depRows = append(depRows, []string{r.Project, pkg, "regular"})
		}
		for _, pkg := range r.Dev {
			depRows = append(depRows, []string{r.Project, pkg, "dev"})
		}
	}
	parts = append(parts, formatTabular("dependencies", []string{"project", "package", "kind"}, depRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
