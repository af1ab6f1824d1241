// Package discover finds projects and their source files in a repository.
package discover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/depfind/internal/lang"
	"github.com/phobologic/depfind/internal/model"
)

// ErrNoProjects is returned when no package.json exists under the root.
var ErrNoProjects = errors.New("no package.json found")

// Options controls which files are discovered and how they are bucketed.
type Options struct {
	// Ignore holds gitignore-style patterns applied on top of .gitignore.
	Ignore []string
	// Dev holds project-relative globs selecting dev files. Nil means
	// DefaultDevPatterns.
	Dev []string
}

var skipDirs = map[string]struct{}{
	"node_modules":     {},
	"bower_components": {},
	"jspm_packages":    {},
	".git":             {},
	".hg":              {},
	".svn":             {},
	"dist":             {},
	"build":            {},
	"coverage":         {},
}

// Projects discovers every directory under root holding a package.json and
// assigns each source file to the deepest project containing it.
func Projects(root string, opts Options) ([]model.Project, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	devPatterns := opts.Dev
	if devPatterns == nil {
		devPatterns = DefaultDevPatterns
	}
	classifier, err := NewClassifier(devPatterns)
	if err != nil {
		return nil, err
	}

	roots, files, err := scan(root, opts.Ignore)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, ErrNoProjects
	}

	projects := make([]model.Project, len(roots))
	for i, rel := range roots {
		dir := filepath.Join(root, rel)
		projects[i] = model.Project{
			Name: projectName(root, rel),
			Root: dir,
		}
	}

	// Deepest roots first so nested projects claim their own files.
	order := make([]int, len(roots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return depth(roots[order[a]]) > depth(roots[order[b]])
	})

	for _, rel := range files {
		for _, i := range order {
			inner, ok := within(roots[i], rel)
			if !ok {
				continue
			}
			abs := filepath.Join(root, rel)
			if classifier.IsDev(inner) {
				projects[i].Dev = append(projects[i].Dev, abs)
			} else {
				projects[i].Main = append(projects[i].Main, abs)
			}
			break
		}
	}

	for i := range projects {
		sort.Strings(projects[i].Main)
		sort.Strings(projects[i].Dev)
	}
	return projects, nil
}

// scan walks root once, returning the relative directories holding a
// package.json and the relative paths of parseable source files.
func scan(root string, extra []string) (roots, files []string, err error) {
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}
	var userIgnore *ignore.GitIgnore
	if len(extra) > 0 {
		userIgnore = ignore.CompileIgnoreLines(extra...)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		slashRel := filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if userIgnore != nil && userIgnore.MatchesPath(slashRel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[slashRel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(slashRel) {
			return nil
		}
		if userIgnore != nil && userIgnore.MatchesPath(slashRel) {
			return nil
		}

		if name == "package.json" {
			roots = append(roots, filepath.Dir(rel))
			return nil
		}
		if lang.ForPath(name) == nil {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Strings(roots)
	sort.Strings(files)
	return roots, files, nil
}

// within reports whether rel lies inside the project at dir and returns its
// slash-separated path relative to that project.
func within(dir, rel string) (string, bool) {
	if dir == "." {
		return filepath.ToSlash(rel), true
	}
	prefix := dir + string(filepath.Separator)
	if !strings.HasPrefix(rel, prefix) {
		return "", false
	}
	return filepath.ToSlash(strings.TrimPrefix(rel, prefix)), true
}

func depth(rel string) int {
	if rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

// projectName returns the package.json name, falling back to the project's
// relative directory (or the root's base name for the top-level project).
func projectName(root, rel string) string {
	data, err := os.ReadFile(filepath.Join(root, rel, "package.json"))
	if err == nil {
		var pkg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &pkg) == nil && strings.TrimSpace(pkg.Name) != "" {
			return strings.TrimSpace(pkg.Name)
		}
	}
	if rel == "." {
		return filepath.Base(root)
	}
	return filepath.ToSlash(rel)
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
