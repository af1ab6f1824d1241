// Package render formats dependency reports for the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/phobologic/depfind/internal/model"
	"github.com/phobologic/depfind/internal/toon"
)

// Output formats.
const (
	FormatList    = "list"
	FormatInstall = "install"
	FormatJSON    = "json"
	FormatTOON    = "toon"
)

// Formats lists the accepted values for Options.Format.
var Formats = []string{FormatList, FormatInstall, FormatJSON, FormatTOON}

type installCmd struct {
	add    string
	addDev string
}

var packageManagers = map[string]installCmd{
	"npm":  {add: "npm install", addDev: "npm install --save-dev"},
	"yarn": {add: "yarn add", addDev: "yarn add --dev"},
	"pnpm": {add: "pnpm add", addDev: "pnpm add --save-dev"},
}

// PackageManagers lists the accepted values for Options.PackageManager.
var PackageManagers = []string{"npm", "yarn", "pnpm"}

// Options controls how reports are written.
type Options struct {
	Format         string // one of Formats; empty means FormatList
	PackageManager string // install format only; empty means npm
	Color          bool
	// Base is the directory project roots are shown relative to in list,
	// install and toon output. JSON always carries absolute roots.
	Base string
}

// Validate reports an error for an unknown format or package manager.
func (o Options) Validate() error {
	switch o.Format {
	case "", FormatList, FormatInstall, FormatJSON, FormatTOON:
	default:
		return fmt.Errorf("unknown format %q (want one of %s)", o.Format, strings.Join(Formats, ", "))
	}
	if o.PackageManager != "" {
		if _, ok := packageManagers[o.PackageManager]; !ok {
			return fmt.Errorf("unknown package manager %q (want one of %s)", o.PackageManager, strings.Join(PackageManagers, ", "))
		}
	}
	return nil
}

// ColorEnabled reports whether colour should be used for f: only when f is a
// terminal and the user did not opt out.
func ColorEnabled(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Write renders reports to w in the configured format.
func Write(w io.Writer, reports []model.Report, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	switch opts.Format {
	case FormatInstall:
		return writeInstall(w, reports, opts)
	case FormatJSON:
		return writeJSON(w, reports)
	case FormatTOON:
		rel := make([]model.Report, len(reports))
		for i, r := range reports {
			r.Root = relRoot(opts.Base, r.Root)
			rel[i] = r
		}
		_, err := fmt.Fprintln(w, toon.Encode(rel))
		return err
	default:
		return writeList(w, reports, opts)
	}
}

type palette struct {
	header *color.Color
	root   *color.Color
	label  *color.Color
	dim    *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		header: color.New(color.FgCyan, color.Bold),
		root:   color.New(color.Faint),
		label:  color.New(color.FgYellow),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.header, p.root, p.label, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func writeList(w io.Writer, reports []model.Report, opts Options) error {
	pal := newPalette(opts.Color)
	var b strings.Builder
	for i, r := range reports {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s\n", pal.header.Sprint(r.Project), pal.root.Sprintf("(%s)", relRoot(opts.Base, r.Root)))
		if r.Empty() {
			fmt.Fprintf(&b, "  %s\n", pal.dim.Sprint("No dependencies found."))
			continue
		}
		writeSection(&b, pal, "dependencies", r.Regular)
		writeSection(&b, pal, "devDependencies", r.Dev)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSection(b *strings.Builder, pal palette, label string, pkgs []string) {
	if len(pkgs) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s\n", pal.label.Sprint(label+":"))
	for _, pkg := range pkgs {
		fmt.Fprintf(b, "    %s\n", pkg)
	}
}

func writeInstall(w io.Writer, reports []model.Report, opts Options) error {
	pm := opts.PackageManager
	if pm == "" {
		pm = "npm"
	}
	cmd := packageManagers[pm]
	pal := newPalette(opts.Color)

	var b strings.Builder
	first := true
	for _, r := range reports {
		if r.Empty() {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		fmt.Fprintf(&b, "%s\n", pal.dim.Sprintf("# %s", r.Project))
		dir := shellQuote(relRoot(opts.Base, r.Root))
		if len(r.Regular) > 0 {
			fmt.Fprintf(&b, "cd %s && %s %s\n", dir, cmd.add, joinQuoted(r.Regular))
		}
		if len(r.Dev) > 0 {
			fmt.Fprintf(&b, "cd %s && %s %s\n", dir, cmd.addDev, joinQuoted(r.Dev))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, reports []model.Report) error {
	if reports == nil {
		reports = []model.Report{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// relRoot returns root relative to base, or root unchanged when that is not
// possible.
func relRoot(base, root string) string {
	if base == "" || root == "" {
		return root
	}
	rel, err := filepath.Rel(base, root)
	if err != nil {
		return root
	}
	return filepath.ToSlash(rel)
}

func joinQuoted(pkgs []string) string {
	quoted := make([]string, len(pkgs))
	for i, p := range pkgs {
		quoted[i] = shellQuote(p)
	}
	return strings.Join(quoted, " ")
}

// shellQuote single-quotes s when it holds characters a POSIX shell would
// interpret.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("@/._-+:=", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
