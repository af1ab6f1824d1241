package discover

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultDevPatterns select test, story and tooling files, which usually
// reference devDependencies.
var DefaultDevPatterns = []string{
	"**/*.test.*",
	"**/*.spec.*",
	"**/*.stories.*",
	"**/test/**",
	"**/tests/**",
	"**/__tests__/**",
	"**/__mocks__/**",
	"e2e/**",
	"cypress/**",
	"*.config.*",
	".*rc.*",
}

// Classifier decides whether a project-relative path is a dev file.
type Classifier struct {
	patterns []string
}

// NewClassifier validates patterns and returns a Classifier using them.
func NewClassifier(patterns []string) (*Classifier, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid dev pattern %q", p)
		}
	}
	return &Classifier{patterns: patterns}, nil
}

// IsDev reports whether rel, relative to its project root, matches any dev
// pattern.
func (c *Classifier) IsDev(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range c.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
