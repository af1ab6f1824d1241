// Package config loads the optional .depfind.toml file at a scan root.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// FileName is the config file looked up at the scan root.
const FileName = ".depfind.toml"

// DefaultMaxFileSize is the largest source file read, in bytes.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// Config holds scan settings. Zero values mean "use the default".
type Config struct {
	Ignore      []string `toml:"ignore"`
	Dev         []string `toml:"dev"`
	DevExtra    []string `toml:"dev_extra"`
	Exclude     []string `toml:"exclude"`
	Workers     int      `toml:"workers"`
	MaxFileSize int64    `toml:"max_file_size"`
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{MaxFileSize: DefaultMaxFileSize}
}

// Load reads FileName from root. A missing file yields Default.
func Load(root string) (*Config, error) {
	cfg, err := LoadFile(filepath.Join(root, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile decodes the config at path. Keys the Config does not know are
// rejected.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("loading %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks numeric bounds and glob syntax.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize)
	}
	for _, p := range append(append([]string{}, c.Dev...), c.DevExtra...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid dev pattern %q", p)
		}
	}
	for _, name := range c.Exclude {
		if strings.TrimSpace(name) == "" {
			return errors.New("exclude entries must not be empty")
		}
	}
	return nil
}

// DevPatterns returns the dev globs to classify with: Dev when set (or
// defaults otherwise), followed by DevExtra.
func (c *Config) DevPatterns(defaults []string) []string {
	base := defaults
	if len(c.Dev) > 0 {
		base = c.Dev
	}
	out := make([]string, 0, len(base)+len(c.DevExtra))
	out = append(out, base...)
	return append(out, c.DevExtra...)
}
