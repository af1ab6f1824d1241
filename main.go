// depfind lists the npm packages each JavaScript/TypeScript project in a
// repository actually imports.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cobra"

	"github.com/phobologic/depfind/internal/aggregate"
	"github.com/phobologic/depfind/internal/config"
	"github.com/phobologic/depfind/internal/discover"
	"github.com/phobologic/depfind/internal/logging"
	"github.com/phobologic/depfind/internal/model"
	"github.com/phobologic/depfind/internal/render"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	format         string
	packageManager string
	workers        int
	maxFileSize    int64
	configPath     string
	ignore         []string
	noColor        bool
	verbose        int
	quiet          bool
	cachePath      string
	showVersion    bool
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options

	cmd := &cobra.Command{
		Use:   "depfind [path]",
		Short: "List the npm packages a JavaScript/TypeScript repository imports",
		Long: `depfind finds every project (directory with a package.json) under path,
parses its .js/.jsx/.mjs/.cjs/.ts/.tsx files and reports the external packages
they import, split into dependencies and devDependencies.

Test, story and tooling files count as dev files. A package used by any
non-dev file is always a regular dependency.

Examples:
  # List dependencies of the current repository
  depfind

  # Print yarn commands that install everything the code imports
  depfind -f install -p yarn ./web

  # Machine-readable output
  depfind --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				_, _ = fmt.Fprintf(stdout, "depfind %s\n", version)
				return nil
			}
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return scan(cmd.Context(), cmd, root, opts, stdout, stderr)
		},
	}
	cmd.AddCommand(newInitCmd(stdout, stderr))

	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", render.FormatList, "output format: list, install, json, toon")
	f.StringVarP(&opts.packageManager, "package-manager", "p", "npm", "package manager for install output: npm, yarn, pnpm")
	f.IntVarP(&opts.workers, "workers", "w", 0, "parallel parsers (0 = GOMAXPROCS)")
	f.Int64Var(&opts.maxFileSize, "max-file-size", config.DefaultMaxFileSize, "skip files larger than this many bytes")
	f.StringVar(&opts.configPath, "config", "", "config file (default <path>/"+config.FileName+")")
	f.StringArrayVar(&opts.ignore, "ignore", nil, "gitignore-style pattern to skip (repeatable)")
	f.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")
	f.CountVarP(&opts.verbose, "verbose", "v", "log progress to stderr (-vv for debug)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress warnings")
	f.StringVar(&opts.cachePath, "cache", "", "cache file path")
	f.BoolVarP(&opts.showVersion, "version", "V", false, "show version and exit")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return cmd.ExecuteContext(ctx)
}

func scan(ctx context.Context, cmd *cobra.Command, root string, opts options, stdout, stderr io.Writer) error {
	logger := logging.New(stderr, opts.verbose, opts.quiet)

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	var cfg *config.Config
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return err
	}

	// Flags override the config file
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("max-file-size") {
		cfg.MaxFileSize = opts.maxFileSize
	}
	cfg.Ignore = append(cfg.Ignore, opts.ignore...)
	if err := cfg.Validate(); err != nil {
		return err
	}

	renderOpts := render.Options{
		Format:         opts.format,
		PackageManager: opts.packageManager,
		Color:          !opts.noColor && opts.cachePath == "" && isTerminal(stdout),
		Base:           root,
	}
	if err := renderOpts.Validate(); err != nil {
		return err
	}

	// Discover projects
	projects, err := discover.Projects(root, discover.Options{
		Ignore: cfg.Ignore,
		Dev:    cfg.DevPatterns(discover.DefaultDevPatterns),
	})
	if err != nil {
		if errors.Is(err, discover.ErrNoProjects) {
			return fmt.Errorf("%s: %w", root, err)
		}
		return fmt.Errorf("discovering projects: %w", err)
	}
	logger.Info("discovered projects", "root", root, "projects", len(projects))

	// Check cache freshness
	configFile := opts.configPath
	if configFile == "" {
		configFile = filepath.Join(root, config.FileName)
	}
	var key string
	if opts.cachePath != "" {
		key, err = cacheKey(cfg, renderOpts)
		if err != nil {
			return err
		}
		if cacheIsFresh(opts.cachePath, configFile, projects) {
			if data, ok := readCache(opts.cachePath, key); ok {
				logger.Info("replaying cache", "path", opts.cachePath)
				_, _ = stdout.Write(data)
				return nil
			}
		}
	}

	b := &aggregate.Builder{
		Reader:  aggregate.FSReader{MaxSize: cfg.MaxFileSize},
		Workers: cfg.Workers,
		Exclude: cfg.Exclude,
		Logger:  logger,
	}
	results, err := b.BuildAll(ctx, projects)
	if err != nil {
		return err
	}

	reports := make([]model.Report, len(results))
	failed := 0
	for i, res := range results {
		reports[i] = res.Report
		failed += len(res.Failures)
	}
	if failed > 0 {
		logger.Warn("some files were skipped", "count", failed)
	}

	var out bytes.Buffer
	if err := render.Write(&out, reports, renderOpts); err != nil {
		return err
	}

	// Write cache
	if opts.cachePath != "" {
		data := append([]byte(cacheHeader+key+"\n"), out.Bytes()...)
		if err := os.WriteFile(opts.cachePath, data, 0o644); err != nil {
			logger.Warn("writing cache", "path", opts.cachePath, "err", err)
		}
	}

	_, err = stdout.Write(out.Bytes())
	return err
}

// cacheHeader starts the first line of a cache file; the rest of the line is
// the key of the settings that produced the output below it.
const cacheHeader = "# depfind cache "

// cacheKey hashes everything besides source files that shapes the output.
func cacheKey(cfg *config.Config, opts render.Options) (string, error) {
	data, err := json.Marshal(struct {
		Version string
		Config  *config.Config
		Render  render.Options
	}{version, cfg, opts})
	if err != nil {
		return "", fmt.Errorf("computing cache key: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// readCache returns the cached output when the file was written under key.
func readCache(cachePath, key string) ([]byte, bool) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}
	first, rest, ok := bytes.Cut(data, []byte("\n"))
	if !ok || string(first) != cacheHeader+key {
		return nil, false
	}
	return rest, true
}

// cacheIsFresh reports whether the cache is newer than every scanned file,
// every package.json and the config file when one exists.
func cacheIsFresh(cachePath, configFile string, projects []model.Project) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()

	if fi, err := os.Stat(configFile); err == nil && !fi.ModTime().Before(cacheMtime) {
		return false
	}

	for i := range projects {
		p := &projects[i]
		paths := append([]string{filepath.Join(p.Root, "package.json")}, p.Main...)
		paths = append(paths, p.Dev...)
		for _, path := range paths {
			fi, err := os.Stat(path)
			if err != nil {
				return false
			}
			if !fi.ModTime().Before(cacheMtime) {
				return false
			}
		}
	}
	return true
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return render.ColorEnabled(f, false)
}
