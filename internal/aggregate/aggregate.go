// Package aggregate builds categorized dependency reports for projects.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/depfind/internal/extract"
	"github.com/phobologic/depfind/internal/lang"
	"github.com/phobologic/depfind/internal/logging"
	"github.com/phobologic/depfind/internal/model"
	"github.com/phobologic/depfind/internal/resolve"
)

// ErrTooLarge is wrapped by the ReadError for files over the size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// ErrUnsupported is wrapped by the ParseError for files in no known dialect.
var ErrUnsupported = errors.New("unsupported file type")

// Reader supplies raw file contents.
type Reader interface {
	ReadFile(path string) ([]byte, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(path string) ([]byte, error)

// ReadFile calls f(path).
func (f ReaderFunc) ReadFile(path string) ([]byte, error) { return f(path) }

// FSReader reads files from disk, rejecting files larger than MaxSize bytes.
// A MaxSize <= 0 disables the limit.
type FSReader struct {
	MaxSize int64
}

// ReadFile implements Reader.
func (r FSReader) ReadFile(path string) ([]byte, error) {
	if r.MaxSize > 0 {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, &model.ReadError{Path: path, Err: err}
		}
		if fi.Size() > r.MaxSize {
			return nil, &model.ReadError{
				Path: path,
				Err:  fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, fi.Size(), r.MaxSize),
			}
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ReadError{Path: path, Err: err}
	}
	return data, nil
}

// Builder scans the files of a project and aggregates their dependencies.
type Builder struct {
	Reader  Reader   // nil means FSReader with no size limit
	Workers int      // <= 0 means GOMAXPROCS
	Exclude []string // Package names dropped from every report
	Logger  *slog.Logger
}

// Result is the outcome of scanning one project. Report is always set, even
// when every file failed.
type Result struct {
	Report   model.Report
	Failures []model.Failure
}

type job struct {
	path string
	dev  bool
}

// Build extracts, resolves and categorizes every file of project. Read and
// parse failures are isolated per file and returned in Result.Failures in
// file order. The only error is a cancelled ctx.
func (b *Builder) Build(ctx context.Context, project *model.Project) (Result, error) {
	jobs := make([]job, 0, project.Files())
	for _, p := range project.Main {
		jobs = append(jobs, job{path: p})
	}
	for _, p := range project.Dev {
		jobs = append(jobs, job{path: p, dev: true})
	}

	logger := b.logger().With("project", project.Name)

	numWorkers := b.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	work := make(chan int, len(jobs))
	for i := range jobs {
		work <- i
	}
	close(work)

	failures := make([]error, len(jobs))
	partials := make([]*Accumulator, numWorkers)
	exclude := make(map[string]struct{}, len(b.Exclude))
	for _, name := range b.Exclude {
		exclude[name] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < numWorkers; w++ {
		acc := NewAccumulator()
		partials[w] = acc
		g.Go(func() error {
			// Each goroutine gets its own parsers
			extractors := make(map[string]*extract.Extractor)

			for idx := range work {
				if err := gctx.Err(); err != nil {
					return err
				}
				j := jobs[idx]
				specs, err := b.scanFile(gctx, extractors, j.path)
				if err != nil {
					failures[idx] = err
					logger.Warn("skipping file", "path", j.path, "err", err)
					continue
				}
				added := 0
				for _, s := range specs {
					pkg, ok := resolve.Package(s)
					if !ok {
						continue
					}
					if _, skip := exclude[pkg]; skip {
						continue
					}
					acc.Add(model.DependencyRecord{Package: pkg, Dev: j.dev})
					added++
				}
				logger.Debug("scanned file", "path", j.path, "dev", j.dev, "specifiers", len(specs), "packages", added)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	total := NewAccumulator()
	for _, acc := range partials {
		total.Merge(acc)
	}

	res := Result{Report: total.Report(project)}
	for idx, err := range failures {
		if err != nil {
			res.Failures = append(res.Failures, model.Failure{Path: jobs[idx].path, Err: err})
		}
	}
	logger.Info("project scanned",
		"files", len(jobs),
		"failed", len(res.Failures),
		"dependencies", len(res.Report.Regular),
		"devDependencies", len(res.Report.Dev),
	)
	return res, nil
}

// BuildAll builds a report for every project, in order.
func (b *Builder) BuildAll(ctx context.Context, projects []model.Project) ([]Result, error) {
	results := make([]Result, 0, len(projects))
	for i := range projects {
		res, err := b.Build(ctx, &projects[i])
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (b *Builder) scanFile(ctx context.Context, extractors map[string]*extract.Extractor, path string) ([]string, error) {
	l := lang.ForPath(path)
	if l == nil {
		return nil, &model.ParseError{Path: path, Err: fmt.Errorf("%w %q", ErrUnsupported, filepath.Ext(path))}
	}

	source, err := b.reader().ReadFile(path)
	if err != nil {
		var rerr *model.ReadError
		if errors.As(err, &rerr) {
			return nil, err
		}
		return nil, &model.ReadError{Path: path, Err: err}
	}

	ex, ok := extractors[l.Name]
	if !ok {
		ex = extract.New(l)
		extractors[l.Name] = ex
	}

	specs, err := ex.Specifiers(ctx, source)
	if err != nil {
		var perr *model.ParseError
		if errors.As(err, &perr) {
			perr.Path = path
			return nil, perr
		}
		return nil, &model.ParseError{Path: path, Err: err}
	}
	return specs, nil
}

func (b *Builder) reader() Reader {
	if b.Reader != nil {
		return b.Reader
	}
	return FSReader{}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return logging.Discard()
}
