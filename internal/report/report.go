// Package report renders ranked functions as a terminal table, JSON,
// YAML or TOON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/coverimpact/internal/model"
	"github.com/phobologic/coverimpact/internal/toon"
)

// Version is the machine-readable report schema version.
const Version = "1.0"

// Supported formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTOON  = "toon"
)

// Document is the machine-readable report.
type Document struct {
	Version        string                `json:"version" yaml:"version"`
	TotalFunctions int                   `json:"total_functions" yaml:"total_functions"`
	Functions      []model.PriorityEntry `json:"functions" yaml:"functions"`
}

// Options controls rendering.
type Options struct {
	// Top limits the table to the first N rows; <= 0 means all.
	// Machine-readable formats always carry every entry.
	Top int
	// CoveragePercent is the report-wide coverage shown in the table
	// title; negative hides it.
	CoveragePercent float64
}

// Write renders entries in format to w.
func Write(w io.Writer, format string, entries []model.PriorityEntry, opts Options) error {
	switch format {
	case FormatTable, "":
		return Table(w, entries, opts)
	case FormatJSON:
		return JSON(w, entries)
	case FormatYAML:
		return YAML(w, entries)
	case FormatTOON:
		return TOON(w, entries)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func newDocument(entries []model.PriorityEntry) Document {
	if entries == nil {
		entries = []model.PriorityEntry{}
	}
	return Document{Version: Version, TotalFunctions: len(entries), Functions: entries}
}

// JSON writes an indented JSON document.
func JSON(w io.Writer, entries []model.PriorityEntry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newDocument(entries)); err != nil {
		return fmt.Errorf("encoding json report: %w", err)
	}
	return nil
}

// YAML writes the same document as JSON in YAML.
func YAML(w io.Writer, entries []model.PriorityEntry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(entries)); err != nil {
		return fmt.Errorf("encoding yaml report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding yaml report: %w", err)
	}
	return nil
}

var toonColumns = []string{
	"function", "file", "line", "impact", "impact_score", "coverage_percentage",
	"covered", "missing_lines", "complexity_score", "confidence", "effort", "priority",
}

// TOON writes the document as a TOON tabular array.
func TOON(w io.Writer, entries []model.PriorityEntry) error {
	var d toon.Document
	d.Field("version", Version)
	d.Field("total_functions", len(entries))

	rows := make([][]any, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		rows = append(rows, []any{
			e.Function, e.File, e.Line, e.Impact, round(e.ImpactScore), round(e.CoveragePercentage),
			e.Covered, e.MissingLines, round(e.ComplexityScore), round(e.Confidence), round(e.Effort), round(e.Priority),
		})
	}
	d.Table("functions", toonColumns, rows)

	_, err := fmt.Fprintln(w, d.String())
	return err
}

func round(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 4, 64), 64)
	return f
}

// Table writes a human-readable ranking.
func Table(w io.Writer, entries []model.PriorityEntry, opts Options) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No functions found for analysis")
		return err
	}

	shown := entries
	if opts.Top > 0 && opts.Top < len(entries) {
		shown = entries[:opts.Top]
	}

	title := "Top Functions by Priority (Impact / Complexity)"
	if opts.CoveragePercent >= 0 {
		title += fmt.Sprintf(" - overall coverage %.1f%%", opts.CoveragePercent)
	}
	if _, err := fmt.Fprintf(w, "%s\n\n", title); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tScore\tImpact\tComplexity\tCoverage %\tFile\tFunction")
	for i := range shown {
		e := &shown[i]
		fmt.Fprintf(tw, "%d\t%.2f\t%.1f\t%s\t%s\t%s\t%s\n",
			i+1, e.Priority, float64(e.Impact), complexityCell(e), coverageCell(e.CoveragePercentage),
			truncateFile(e.File), truncateFunction(e.Function))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nShowing top %d of %d functions\n", len(shown), len(entries))
	return err
}

func complexityCell(e *model.PriorityEntry) string {
	if e.Confidence < 1.0 {
		return fmt.Sprintf("%.2f [±%.2f]", e.ComplexityScore, 1-e.Confidence)
	}
	return fmt.Sprintf("%.2f", e.ComplexityScore)
}

func coverageCell(pct float64) string {
	if pct == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", pct*100)
}

func truncateFile(path string) string {
	if len(path) > 35 {
		return "..." + path[len(path)-32:]
	}
	return path
}

func truncateFunction(key string) string {
	name := model.Qualifier(key)
	if len(name) > 25 {
		return name[:22] + "..."
	}
	return name
}

// FormatNames returns the supported formats for help text.
func FormatNames() string {
	return strings.Join([]string{FormatTable, FormatJSON, FormatYAML, FormatTOON}, ", ")
}
