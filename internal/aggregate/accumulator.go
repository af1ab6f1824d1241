package aggregate

import (
	"sort"

	"github.com/phobologic/depfind/internal/model"
)

// Accumulator collects the packages seen in main and dev code. Merging is
// set union, so partial accumulators may be combined in any order.
type Accumulator struct {
	main map[string]struct{}
	dev  map[string]struct{}
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		main: make(map[string]struct{}),
		dev:  make(map[string]struct{}),
	}
}

// Add records one reference occurrence.
func (a *Accumulator) Add(rec model.DependencyRecord) {
	if rec.Package == "" {
		return
	}
	if rec.Dev {
		a.dev[rec.Package] = struct{}{}
	} else {
		a.main[rec.Package] = struct{}{}
	}
}

// Merge adds everything recorded in o to a.
func (a *Accumulator) Merge(o *Accumulator) {
	if o == nil {
		return
	}
	for pkg := range o.main {
		a.main[pkg] = struct{}{}
	}
	for pkg := range o.dev {
		a.dev[pkg] = struct{}{}
	}
}

// Len returns the number of distinct packages recorded.
func (a *Accumulator) Len() int {
	n := len(a.main)
	for pkg := range a.dev {
		if _, ok := a.main[pkg]; !ok {
			n++
		}
	}
	return n
}

// Report builds the categorized report for project. A package used anywhere
// in main code is regular; only packages used exclusively in dev code are dev.
func (a *Accumulator) Report(project *model.Project) model.Report {
	regular := make([]string, 0, len(a.main))
	for pkg := range a.main {
		regular = append(regular, pkg)
	}
	sort.Strings(regular)

	dev := make([]string, 0, len(a.dev))
	for pkg := range a.dev {
		if _, ok := a.main[pkg]; ok {
			continue
		}
		dev = append(dev, pkg)
	}
	sort.Strings(dev)

	return model.Report{
		Project: project.Name,
		Root:    project.Root,
		Regular: regular,
		Dev:     dev,
	}
}
