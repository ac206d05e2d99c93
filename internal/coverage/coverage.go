// Package coverage loads coverage.py JSON reports and joins them with
// function definitions.
package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ErrNotFound is returned by Load when the coverage file does not exist.
var ErrNotFound = errors.New("coverage file not found")

// MissingWindow is how many lines after a definition line are counted
// when estimating a function's untested lines.
const MissingWindow = 50

// Data is a coverage.py JSON report ("coverage json").
type Data struct {
	Files  map[string]File `json:"files"`
	Totals *Totals         `json:"totals,omitempty"`
}

// File is the per-file section of a report.
type File struct {
	Summary       Summary `json:"summary"`
	ExecutedLines []int   `json:"executed_lines"`
	MissingLines  []int   `json:"missing_lines"`
}

// Summary holds a file's statement counts.
type Summary struct {
	NumStatements int `json:"num_statements"`
	CoveredLines  int `json:"covered_lines"`
}

// Totals holds the report-wide summary.
type Totals struct {
	NumStatements  int     `json:"num_statements"`
	CoveredLines   int     `json:"covered_lines"`
	PercentCovered float64 `json:"percent_covered"`
}

// Percentage returns covered/total, or 0 when the file has no statements.
func (s Summary) Percentage() float64 {
	if s.NumStatements <= 0 {
		return 0.0
	}
	return float64(s.CoveredLines) / float64(s.NumStatements)
}

// Load reads a coverage JSON file. A missing file yields an error
// wrapping ErrNotFound.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading coverage: %w", err)
	}
	return Parse(raw)
}

// Parse decodes coverage JSON.
func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decoding coverage: %w", err)
	}
	if d.Files == nil {
		d.Files = make(map[string]File)
	}
	return &d, nil
}

// Result is the coverage of one function definition.
type Result struct {
	Covered      bool
	Percentage   float64
	MissingLines int
}

// Lookup joins a definition with its file's coverage. Keys tried, first
// match wins: the path as given, prefix + "/" + path when prefix is set,
// and the path with backslashes replaced by forward slashes. Unknown
// files yield the zero Result.
func (d *Data) Lookup(file string, line int, prefix string) Result {
	if d == nil {
		return Result{}
	}

	keys := []string{file}
	if prefix != "" {
		keys = append(keys, strings.TrimSuffix(prefix, "/")+"/"+file)
	}
	keys = append(keys, strings.ReplaceAll(file, `\`, "/"))

	for _, key := range keys {
		fd, ok := d.Files[key]
		if !ok {
			continue
		}

		res := Result{Percentage: fd.Summary.Percentage()}
		for _, l := range fd.ExecutedLines {
			if l == line {
				res.Covered = true
				break
			}
		}
		for _, l := range fd.MissingLines {
			if l >= line && l <= line+MissingWindow {
				res.MissingLines++
			}
		}
		return res
	}

	return Result{}
}
