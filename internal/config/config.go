// Package config loads per-project settings from .vsense.properties.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"
)

// FileName is the settings file looked up at the project root.
const FileName = ".vsense.properties"

// Keys recognised in the settings file.
const (
	KeyDB         = "db"
	KeyMainModule = "main_module"
	KeyExclude    = "exclude"
	KeyParallel   = "parallel"
)

// Config holds project settings. Zero values mean "use the default".
type Config struct {
	DB         string
	MainModule string
	Exclude    []string
	Parallel   bool
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{DB: ".vsense/index.db", Parallel: true}
}

// Load reads root/.vsense.properties over the defaults. A missing file is
// not an error.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return FromProperties(p), nil
}

// FromProperties applies p over the defaults.
func FromProperties(p *properties.Properties) *Config {
	cfg := Default()
	cfg.DB = p.GetString(KeyDB, cfg.DB)
	cfg.MainModule = p.GetString(KeyMainModule, cfg.MainModule)
	cfg.Parallel = p.GetBool(KeyParallel, cfg.Parallel)
	if raw, ok := p.Get(KeyExclude); ok {
		cfg.Exclude = splitList(raw)
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DBPath resolves DB against root when it is relative.
func (c *Config) DBPath(root string) string {
	if filepath.IsAbs(c.DB) {
		return c.DB
	}
	return filepath.Join(root, c.DB)
}
