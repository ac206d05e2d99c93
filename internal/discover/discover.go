// Package discover finds Python source files under a scan root.
package discover

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/coverimpact/internal/lang"
)

// DefaultExclude lists the path substrings excluded when Options.Exclude is nil.
var DefaultExclude = []string{"test", "__pycache__"}

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to scan root
	Language string
}

// Options controls which files Files returns.
type Options struct {
	// Exclude drops files whose root-relative path contains any of these
	// substrings. Nil means DefaultExclude; an empty slice excludes nothing.
	Exclude []string
	// ExcludeGlobs drops files whose slash-separated relative path matches
	// any doublestar pattern (e.g. "**/migrations/**").
	ExcludeGlobs []string
	// RespectGitignore drops files matched by root/.gitignore.
	RespectGitignore bool
	// MaxFileSize skips files larger than this many bytes when > 0.
	MaxFileSize int64
	Logger      *slog.Logger
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
	"site-packages": {},
}

// Files discovers Python source files under root, sorted by path.
func Files(root string, opts Options) ([]FileEntry, error) {
	exclude := opts.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if lang.ForExtension(filepath.Ext(name)) != lang.Python.Name {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}

		if containsAny(rel, exclude) {
			return nil
		}
		if matchesAnyGlob(filepath.ToSlash(rel), opts.ExcludeGlobs) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		if opts.MaxFileSize > 0 {
			if info, err := d.Info(); err == nil && info.Size() > opts.MaxFileSize {
				logger.Debug("skipping large file", "path", rel, "size", info.Size(), "limit", opts.MaxFileSize)
				return nil
			}
		}

		results = append(results, FileEntry{Path: rel, Language: lang.Python.Name})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// HasPythonFiles reports whether dir contains at least one .py file and,
// when rejectTests is set, none of the first ten found has "test" in its
// dir-relative path.
func HasPythonFiles(dir string, rejectTests bool) bool {
	var found []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && filepath.Ext(path) == ".py" {
			if rel, err := filepath.Rel(dir, path); err == nil {
				found = append(found, rel)
			}
			if len(found) >= 10 {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if len(found) == 0 {
		return false
	}
	if rejectTests {
		for _, p := range found {
			if strings.Contains(p, "test") {
				return false
			}
		}
	}
	return true
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func matchesAnyGlob(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
