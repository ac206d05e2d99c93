// coverimpact ranks Python functions by how much adding tests for them
// would pay off, combining call-graph impact with coverage data.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/coverimpact/internal/analyzer"
	"github.com/phobologic/coverimpact/internal/config"
	"github.com/phobologic/coverimpact/internal/coverage"
	"github.com/phobologic/coverimpact/internal/report"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

type rootFlags struct {
	coverage     string
	sourceDir    string
	model        string
	top          int
	format       string
	output       string
	cache        string
	noComplexity bool
	exclude      []string
	excludeGlobs []string
	verbose      bool
	showVersion  bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "coverimpact [project-root]",
		Short: "Rank untested Python functions by call-graph impact",
		Long: `coverimpact builds a call graph of a Python project, counts how many
call paths reach each function, weights that by the function's missing
coverage and predicted test complexity, and prints the functions most
worth testing first.

It reads a coverage.py JSON report (coverage json, or
pytest --cov --cov-report=json) from the project root.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				_, _ = fmt.Fprintf(stdout, "coverimpact %s\n", version)
				return nil
			}
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return analyze(cmd, root, &f, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVar(&f.coverage, "coverage", "", "coverage JSON file, relative to the project root (default from config: coverage.json)")
	fl.StringVar(&f.sourceDir, "source-dir", "", "directory containing the Python sources (default: auto-detect)")
	fl.StringVar(&f.model, "model", "", "complexity model file or directory of versioned models")
	fl.IntVarP(&f.top, "top", "n", 0, "number of functions shown in the table (default from config: 20)")
	fl.StringVarP(&f.format, "format", "f", "", "output format: "+report.FormatNames())
	fl.StringVarP(&f.output, "output", "o", "", "write the report to this file, relative to the project root, instead of stdout")
	fl.StringVar(&f.cache, "cache", "", "cache file, relative to the project root; reused while it is newer than every input")
	fl.BoolVar(&f.noComplexity, "no-complexity", false, "skip test complexity estimation")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "path substrings to exclude (replaces the configured list)")
	fl.StringSliceVar(&f.excludeGlobs, "exclude-glob", nil, "doublestar patterns to exclude, added to the configured list")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log progress to stderr")
	fl.BoolVarP(&f.showVersion, "version", "V", false, "show version and exit")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func analyze(cmd *cobra.Command, root string, f *rootFlags, stdout, stderr io.Writer) error {
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

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg, f); err != nil {
		return err
	}

	logger := newLogger(stderr, f.verbose)
	a := &analyzer.Analyzer{Logger: logger}

	opts := analyzer.Options{
		Root:             root,
		SourceDir:        cfg.Scan.SourceDir,
		CoverageFile:     cfg.Coverage.File,
		PackagePrefix:    cfg.Coverage.PackagePrefix,
		Exclude:          cfg.Scan.Exclude,
		ExcludeGlobs:     cfg.Scan.ExcludeGlobs,
		RespectGitignore: cfg.Scan.RespectGitignore,
		MaxFileSize:      cfg.Scan.MaxFileSize,
		Workers:          cfg.Scan.Workers,
		Complexity:       cfg.Complexity.Enabled,
		ModelPaths:       []string{f.model, cfg.Complexity.ModelPath},
		ComplexityTopN:   cfg.Complexity.TopN,
	}

	plan, err := a.Prepare(opts)
	if errors.Is(err, coverage.ErrNotFound) {
		return fmt.Errorf("%w\nrun your tests with coverage first, e.g. pytest --cov=<package> --cov-report=json", err)
	}
	if err != nil {
		return err
	}

	cachePath := f.cache
	if cachePath != "" && !filepath.IsAbs(cachePath) {
		cachePath = filepath.Join(root, cachePath)
	}
	if cachePath != "" && cacheIsFresh(cachePath, plan.Inputs()) {
		if data, err := os.ReadFile(cachePath); err == nil {
			logger.Debug("using cached report", "path", cachePath)
			return writeOutput(cfg.Report.Output, root, data, stdout, stderr)
		}
	}

	res, err := a.Run(cmd.Context(), plan)
	if errors.Is(err, analyzer.ErrNoFunctions) {
		return fmt.Errorf("%w; check --source-dir (scanned %d files)", err, len(plan.Files))
	}
	if err != nil {
		return err
	}

	covered := -1.0
	if res.Totals != nil {
		covered = res.Totals.PercentCovered
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, cfg.Report.Format, res.Prioritized, report.Options{
		Top:             cfg.Report.Top,
		CoveragePercent: covered,
	}); err != nil {
		return err
	}

	if cachePath != "" {
		if err := os.WriteFile(cachePath, buf.Bytes(), 0o644); err != nil {
			logger.Warn("writing cache", "path", cachePath, "err", err)
		}
	}

	return writeOutput(cfg.Report.Output, root, buf.Bytes(), stdout, stderr)
}

// applyFlags overrides config values with flags the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f *rootFlags) error {
	fl := cmd.Flags()
	if fl.Changed("coverage") {
		cfg.Coverage.File = f.coverage
	}
	if fl.Changed("source-dir") {
		cfg.Scan.SourceDir = f.sourceDir
	}
	if fl.Changed("top") {
		cfg.Report.Top = f.top
	}
	if fl.Changed("format") {
		cfg.Report.Format = f.format
	}
	if fl.Changed("output") {
		cfg.Report.Output = f.output
	}
	if f.noComplexity {
		cfg.Complexity.Enabled = false
	}
	if fl.Changed("exclude") {
		cfg.Scan.Exclude = f.exclude
	}
	cfg.Scan.ExcludeGlobs = append(cfg.Scan.ExcludeGlobs, f.excludeGlobs...)
	return cfg.Validate()
}

func writeOutput(output, root string, data []byte, stdout, stderr io.Writer) error {
	if output == "" {
		_, err := stdout.Write(data)
		return err
	}
	if !filepath.IsAbs(output) {
		output = filepath.Join(root, output)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote report to %s\n", output)
	return nil
}

// cacheIsFresh reports whether cachePath exists and is newer than every
// input.
func cacheIsFresh(cachePath string, inputs []string) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()

	for _, path := range inputs {
		fi, err := os.Stat(path)
		if err != nil {
			return false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return false
		}
	}
	return true
}
