package complexity

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// Model file naming: complexity_model_v{major}.{minor}.json.
const (
	ModelPrefix = "complexity_model_v"
	ModelSuffix = ".json"
)

// DefaultModelDir is where models are looked up relative to a project root.
var DefaultModelDir = filepath.Join(".coverage_impact", "models")

// Version is a major.minor file version.
type Version struct {
	Major, Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

func versionPattern(prefix, suffix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(\d+)\.(\d+)` + regexp.QuoteMeta(suffix) + `$`)
}

// LatestVersion returns the highest versioned file named
// prefix{major}.{minor}suffix in dir. ok is false when there is none or
// dir does not exist.
func LatestVersion(dir, prefix, suffix string) (v Version, path string, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Version{}, "", false
	}

	re := versionPattern(prefix, suffix)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		major, err1 := strconv.Atoi(m[1])
		minor, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		cur := Version{Major: major, Minor: minor}
		if !ok || v.Less(cur) {
			v, path, ok = cur, filepath.Join(dir, e.Name()), true
		}
	}
	return v, path, ok
}

// NextVersion returns the version and path a writer should use next: the
// latest minor plus one, or 1.0 when dir has no versioned files. dir is
// created if missing.
func NextVersion(dir, prefix, suffix string) (Version, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Version{}, "", fmt.Errorf("creating %s: %w", dir, err)
	}

	next := Version{Major: 1, Minor: 0}
	if latest, _, ok := LatestVersion(dir, prefix, suffix); ok {
		next = Version{Major: latest.Major, Minor: latest.Minor + 1}
	}
	return next, filepath.Join(dir, prefix+next.String()+suffix), nil
}

// ResolveModelPath picks the model file to load. Candidates are tried in
// order (typically CLI flag, environment, config file) and the first one
// that exists wins; a directory resolves to its latest versioned model.
// When none exist, the latest model under root/DefaultModelDir is used.
// Returns "" when no model is available.
func ResolveModelPath(root string, candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if !filepath.IsAbs(c) && root != "" {
			c = filepath.Join(root, c)
		}
		if p := modelAt(c); p != "" {
			return p
		}
	}
	if root == "" {
		return ""
	}
	return modelAt(filepath.Join(root, DefaultModelDir))
}

func modelAt(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if !info.IsDir() {
		return path
	}
	if _, p, ok := LatestVersion(path, ModelPrefix, ModelSuffix); ok {
		return p
	}
	return ""
}
