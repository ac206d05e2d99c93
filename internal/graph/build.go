package graph

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/coverimpact/internal/discover"
	"github.com/phobologic/coverimpact/internal/model"
	"github.com/phobologic/coverimpact/internal/parse"
)

// Builder parses source files into a Graph.
type Builder struct {
	// Workers bounds concurrent file parsing; <= 0 means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// BuildStats summarizes one Build call.
type BuildStats struct {
	FilesParsed  int
	FilesSkipped int
}

// Build parses every file under root, merges the per-file results into a
// graph in file order and resolves method calls. Files that cannot be
// read or parsed are skipped and contribute nothing. The only error
// returned is ctx's.
func (b *Builder) Build(ctx context.Context, root string, files []discover.FileEntry) (*Graph, BuildStats, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([][]parse.Definition, len(files))
	ok := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(filepath.Join(root, f.Path))
			if err != nil {
				logger.Debug("skipping unreadable file", "path", f.Path, "err", err)
				return nil
			}
			defs, err := parse.File(gctx, source, f.Path)
			if err != nil {
				logger.Debug("skipping unparseable file", "path", f.Path, "err", err)
				return nil
			}
			results[i] = defs
			ok[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, BuildStats{}, err
	}

	graph := New()
	var stats BuildStats
	for i := range files {
		if !ok[i] {
			stats.FilesSkipped++
			continue
		}
		stats.FilesParsed++
		Merge(graph, results[i])
	}

	graph.ResolveMethodCalls()

	logger.Debug("call graph built",
		"functions", graph.Len(),
		"files_parsed", stats.FilesParsed,
		"files_skipped", stats.FilesSkipped)

	return graph, stats, nil
}

// Merge adds one file's definitions and raw calls to g.
func Merge(g *Graph, defs []parse.Definition) {
	for _, d := range defs {
		g.AddFunction(d.Record)
	}
	for _, d := range defs {
		for _, callee := range d.Calls {
			g.AddCall(d.Record.Key, model.Unresolved(callee))
		}
	}
}
