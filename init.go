package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/phobologic/depfind/internal/config"
	"github.com/phobologic/depfind/internal/discover"
)

const (
	sentinelStart = "# depfind:start"
	sentinelEnd   = "# depfind:end"
)

// newInitCmd returns the `depfind init` subcommand, which writes (or updates)
// a commented reference block of every setting in a .depfind.toml file.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a reference " + config.FileName + " with the default settings",
		Long: `Write a commented block listing every setting and its default value to
dir/` + config.FileName + `. The block is wrapped in sentinel comments so it can be
refreshed in place on later runs without touching surrounding settings.
Creates the file if it does not exist.

dir defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(filepath.Join(dir, config.FileName), dryRun, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	return cmd
}

func runInit(path string, dryRun bool, stdout, stderr io.Writer) error {
	section, err := generateSection()
	if err != nil {
		return err
	}

	existing, _ := os.ReadFile(path)
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote depfind settings to %s\n", path)
	return nil
}

// generateSection returns the sentinel-wrapped block of commented defaults.
func generateSection() (string, error) {
	defaults := config.Default()
	defaults.Ignore = []string{}
	defaults.Dev = discover.DefaultDevPatterns
	defaults.DevExtra = []string{}
	defaults.Exclude = []string{}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(defaults); err != nil {
		return "", fmt.Errorf("encoding defaults: %w", err)
	}

	var b strings.Builder
	b.WriteString(sentinelStart + "\n")
	b.WriteString("# Default depfind settings. Uncomment a line to override it.\n")
	b.WriteString("# `dev` replaces the default dev globs; `dev_extra` adds to them.\n")
	b.WriteString("# This block is rewritten by `depfind init`.\n")
	b.WriteString("#\n")
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		b.WriteString("# " + line + "\n")
	}
	b.WriteString(sentinelEnd)
	return b.String(), nil
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n"
	}

	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
