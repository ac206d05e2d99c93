// Package analyzer runs the full pipeline: discover sources, build the
// call graph, join coverage, estimate complexity and rank functions.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/coverimpact/internal/complexity"
	"github.com/phobologic/coverimpact/internal/coverage"
	"github.com/phobologic/coverimpact/internal/discover"
	"github.com/phobologic/coverimpact/internal/graph"
	"github.com/phobologic/coverimpact/internal/impact"
	"github.com/phobologic/coverimpact/internal/lang"
	"github.com/phobologic/coverimpact/internal/model"
	"github.com/phobologic/coverimpact/internal/ranking"
)

// ErrNoFunctions is returned when the scan finds no functions at all,
// which usually means the source directory is wrong.
var ErrNoFunctions = errors.New("no functions found")

// Options configures one analysis run. Relative paths are resolved
// against Root.
type Options struct {
	Root string
	// SourceDir is scanned for Python files. Empty means FindSourceDir.
	SourceDir    string
	CoverageFile string
	// PackagePrefix is joined to scanned paths for coverage lookups.
	// Empty means derived from SourceDir.
	PackagePrefix string

	Exclude          []string
	ExcludeGlobs     []string
	RespectGitignore bool
	MaxFileSize      int64
	Workers          int

	Complexity bool
	// ModelPaths are model file or directory candidates in priority
	// order, tried before the project's default model directory.
	ModelPaths []string
	// ComplexityTopN limits estimation to the top N entries by impact
	// score. <= 0 means all.
	ComplexityTopN int
}

// Result is the outcome of Analyze.
type Result struct {
	SourceDir     string
	PackagePrefix string
	Graph         *graph.Graph
	Stats         graph.BuildStats
	// Impact holds every function, sorted by impact score.
	Impact []model.ImpactEntry
	// Complexity and Confidence are keyed by function key. Functions
	// that were not estimated are absent.
	Complexity map[string]float64
	Confidence map[string]float64
	// ModelPath is the model used for estimation, or "" for the
	// heuristic.
	ModelPath   string
	Prioritized []model.PriorityEntry
	Totals      *coverage.Totals
}

// Analyzer runs analyses. The zero value is usable.
type Analyzer struct {
	Logger *slog.Logger
}

func (a *Analyzer) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.Logger
}

// Plan is a resolved analysis: paths are absolute and the source files
// are discovered, but nothing has been parsed yet.
type Plan struct {
	Options       Options
	Root          string
	CoveragePath  string
	SourceDir     string
	PackagePrefix string
	Files         []discover.FileEntry
}

// Inputs returns every file the analysis reads, for freshness checks.
func (p *Plan) Inputs() []string {
	out := make([]string, 0, len(p.Files)+1)
	out = append(out, p.CoveragePath)
	for _, f := range p.Files {
		out = append(out, filepath.Join(p.SourceDir, f.Path))
	}
	return out
}

// Prepare resolves paths and discovers source files. A missing coverage
// file yields an error wrapping coverage.ErrNotFound.
func (a *Analyzer) Prepare(opts Options) (*Plan, error) {
	log := a.logger()

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	covPath := resolve(root, opts.CoverageFile)
	if _, err := os.Stat(covPath); err != nil {
		return nil, fmt.Errorf("%w: %s", coverage.ErrNotFound, covPath)
	}

	sourceDir := FindSourceDir(root)
	if opts.SourceDir != "" {
		sourceDir = resolve(root, opts.SourceDir)
	}
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("source dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source dir %s is not a directory", sourceDir)
	}

	prefix := opts.PackagePrefix
	if prefix == "" {
		prefix = PackagePrefix(root, sourceDir)
	}
	log.Debug("scanning", "source_dir", sourceDir, "package_prefix", prefix)

	files, err := discover.Files(sourceDir, discover.Options{
		Exclude:          opts.Exclude,
		ExcludeGlobs:     opts.ExcludeGlobs,
		RespectGitignore: opts.RespectGitignore,
		MaxFileSize:      opts.MaxFileSize,
		Logger:           log,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	return &Plan{
		Options:       opts,
		Root:          root,
		CoveragePath:  covPath,
		SourceDir:     sourceDir,
		PackagePrefix: prefix,
		Files:         files,
	}, nil
}

// Analyze prepares and runs the pipeline.
func (a *Analyzer) Analyze(ctx context.Context, opts Options) (*Result, error) {
	plan, err := a.Prepare(opts)
	if err != nil {
		return nil, err
	}
	return a.Run(ctx, plan)
}

// Run executes a prepared plan. A scan without functions yields
// ErrNoFunctions.
func (a *Analyzer) Run(ctx context.Context, plan *Plan) (*Result, error) {
	log := a.logger()

	cov, err := coverage.Load(plan.CoveragePath)
	if err != nil {
		return nil, err
	}

	b := &graph.Builder{Workers: plan.Options.Workers, Logger: log}
	g, stats, err := b.Build(ctx, plan.SourceDir, plan.Files)
	if err != nil {
		return nil, err
	}
	log.Debug("call graph built", "functions", g.Len(), "files_parsed", stats.FilesParsed, "files_skipped", stats.FilesSkipped)

	if g.Len() == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFunctions, plan.SourceDir)
	}

	res := &Result{
		SourceDir:     plan.SourceDir,
		PackagePrefix: plan.PackagePrefix,
		Graph:         g,
		Stats:         stats,
		Impact:        impact.Calculate(g, cov, plan.PackagePrefix),
		Totals:        cov.Totals,
	}

	if plan.Options.Complexity {
		res.ModelPath = complexity.ResolveModelPath(plan.Root, plan.Options.ModelPaths...)
		est := a.loadEstimator(res.ModelPath)
		if !est.Available() {
			res.ModelPath = ""
		}
		top := ranking.Top(asPriority(res.Impact), plan.Options.ComplexityTopN)
		res.Complexity, res.Confidence = a.estimate(ctx, est, plan.SourceDir, top)
	}

	res.Prioritized = ranking.Prioritize(res.Impact, res.Complexity, res.Confidence)
	return res, nil
}

func (a *Analyzer) loadEstimator(path string) *complexity.Estimator {
	if path == "" {
		return complexity.NewEstimator(nil)
	}
	m, err := complexity.LoadModel(path)
	if err != nil {
		a.logger().Warn("complexity model unusable, using heuristic", "path", path, "err", err)
		return complexity.NewEstimator(nil)
	}
	a.logger().Debug("loaded complexity model", "path", path, "version", m.Version)
	return complexity.NewEstimator(m)
}

// estimator scores one located function definition.
type estimator interface {
	Estimate(fn *sitter.Node, source []byte, filePath string, withConfidence bool) complexity.Estimate
}

// estimate predicts complexity for entries. Functions that cannot be
// located or whose estimation panics are skipped. A panic outside a
// single estimation drops all complexity data rather than failing the run.
func (a *Analyzer) estimate(ctx context.Context, est estimator, sourceDir string, entries []model.PriorityEntry) (scores, confidence map[string]float64) {
	log := a.logger()
	scores = make(map[string]float64)
	confidence = make(map[string]float64)

	defer func() {
		if r := recover(); r != nil {
			log.Warn("complexity estimation failed", "panic", r)
			scores, confidence = nil, nil
		}
	}()

	byFile := make(map[string][]model.ImpactEntry)
	var order []string
	for i := range entries {
		e := entries[i].ImpactEntry
		if _, ok := byFile[e.File]; !ok {
			order = append(order, e.File)
		}
		byFile[e.File] = append(byFile[e.File], e)
	}

	for _, file := range order {
		if ctx.Err() != nil {
			return scores, confidence
		}
		a.estimateFile(ctx, est, sourceDir, file, byFile[file], scores, confidence)
	}

	return scores, confidence
}

func (a *Analyzer) estimateFile(ctx context.Context, est estimator, sourceDir, file string, entries []model.ImpactEntry, scores, confidence map[string]float64) {
	log := a.logger()

	source, err := os.ReadFile(filepath.Join(sourceDir, file))
	if err != nil {
		log.Debug("complexity: skipping file", "path", file, "err", err)
		return
	}
	tree, err := lang.Python.Parse(ctx, source)
	if err != nil {
		log.Debug("complexity: skipping file", "path", file, "err", err)
		return
	}
	defer tree.Close()

	root := tree.RootNode()
	for _, e := range entries {
		fn := lang.FindFunctionAt(root, e.Line)
		if fn == nil {
			log.Debug("complexity: function not found", "function", e.Function, "line", e.Line)
			continue
		}
		r, ok := a.estimateOne(est, fn, source, file, e.Function)
		if !ok {
			continue
		}
		scores[e.Function] = r.Score
		if c, ok := r.Confidence(); ok {
			confidence[e.Function] = c
		}
	}
}

func (a *Analyzer) estimateOne(est estimator, fn *sitter.Node, source []byte, file, key string) (r complexity.Estimate, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			a.logger().Warn("complexity estimation failed", "function", key, "panic", p)
			ok = false
		}
	}()
	return est.Estimate(fn, source, file, true), true
}

func asPriority(entries []model.ImpactEntry) []model.PriorityEntry {
	out := make([]model.PriorityEntry, len(entries))
	for i := range entries {
		out[i].ImpactEntry = entries[i]
	}
	return out
}

// FindSourceDir guesses where a project's Python sources live. It tries
// root/<name of root>, root/src, root/lib and root, returning the first
// that contains .py files none of whose first ten paths mention "test".
// Falls back to root.
func FindSourceDir(root string) string {
	candidates := []string{
		filepath.Join(root, filepath.Base(root)),
		filepath.Join(root, "src"),
		filepath.Join(root, "lib"),
		root,
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || !info.IsDir() {
			continue
		}
		if discover.HasPythonFiles(c, true) {
			return c
		}
	}
	return root
}

// PackagePrefix returns sourceDir relative to root in slash form, or ""
// when sourceDir is root or lies outside it.
func PackagePrefix(root, sourceDir string) string {
	rel, err := filepath.Rel(root, sourceDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
