// Package config loads coverimpact settings from TOML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed default_config.toml
var defaultConfig []byte

// FileName is the project-level config file looked up in the project root.
const FileName = ".coverimpact.toml"

// EnvModelPath overrides complexity.model_path.
const EnvModelPath = "COVIMPACT_MODEL_PATH"

// Formats lists the supported report formats.
var Formats = []string{"table", "json", "yaml", "toon"}

// Config holds all settings.
type Config struct {
	Scan       ScanConfig       `toml:"scan"`
	Coverage   CoverageConfig   `toml:"coverage"`
	Complexity ComplexityConfig `toml:"complexity"`
	Report     ReportConfig     `toml:"report"`
}

// ScanConfig controls source discovery.
type ScanConfig struct {
	SourceDir        string   `toml:"source_dir"`
	Exclude          []string `toml:"exclude"`
	ExcludeGlobs     []string `toml:"exclude_globs"`
	RespectGitignore bool     `toml:"respect_gitignore"`
	MaxFileSize      int64    `toml:"max_file_size"`
	Workers          int      `toml:"workers"`
}

// CoverageConfig locates the coverage report.
type CoverageConfig struct {
	File          string `toml:"file"`
	PackagePrefix string `toml:"package_prefix"`
}

// ComplexityConfig controls test complexity estimation.
type ComplexityConfig struct {
	Enabled   bool   `toml:"enabled"`
	ModelPath string `toml:"model_path"`
	TopN      int    `toml:"top_n"`
}

// ReportConfig controls output.
type ReportConfig struct {
	Format string `toml:"format"`
	Top    int    `toml:"top"`
	Output string `toml:"output"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// DefaultTOML returns the embedded default config file.
func DefaultTOML() []byte {
	return append([]byte(nil), defaultConfig...)
}

// Load returns the defaults overlaid with root/.coverimpact.toml, if it
// exists, and then with the environment.
func Load(root string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(root, FileName)
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if v := os.Getenv(EnvModelPath); v != "" {
		cfg.Complexity.ModelPath = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if !validFormat(c.Report.Format) {
		return fmt.Errorf("unknown report format %q (want one of %v)", c.Report.Format, Formats)
	}
	if c.Report.Top < 0 {
		return fmt.Errorf("report.top must be >= 0, got %d", c.Report.Top)
	}
	if c.Complexity.TopN < 0 {
		return fmt.Errorf("complexity.top_n must be >= 0, got %d", c.Complexity.TopN)
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must be >= 0, got %d", c.Scan.Workers)
	}
	return nil
}

func validFormat(f string) bool {
	for _, ok := range Formats {
		if f == ok {
			return true
		}
	}
	return false
}
