// Package model defines core data structures for coverimpact.
package model

import "strings"

// FunctionRecord describes one function or method definition in the
// analyzed codebase.
type FunctionRecord struct {
	// Key is "{file}::{name}" for free functions and
	// "{file}::{Class}.{name}" for methods.
	Key       string
	Name      string
	File      string
	Line      int
	IsMethod  bool
	ClassName string
}

// Qualifier returns the part of the key after "::".
func (r FunctionRecord) Qualifier() string {
	return Qualifier(r.Key)
}

// Class returns the enclosing class name, or nil for free functions.
func (r FunctionRecord) Class() *string {
	if r.ClassName == "" {
		return nil
	}
	name := r.ClassName
	return &name
}

// FunctionKey builds the identity key for a definition.
func FunctionKey(file, className, name string) string {
	if className != "" {
		return file + "::" + className + "." + name
	}
	return file + "::" + name
}

// Qualifier returns the part of a function key after "::", or the key
// itself when it has no file part.
func Qualifier(key string) string {
	if i := strings.LastIndex(key, "::"); i >= 0 {
		return key[i+2:]
	}
	return key
}

// IsDunder reports whether name is a magic method name like __init__.
func IsDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// Callee is the target of a call edge. A resolved callee names a
// registered FunctionRecord key; an unresolved one carries the raw call
// expression text (e.g. "self.logger.error") and never takes part in
// impact propagation.
type Callee struct {
	Name     string
	Resolved bool
}

// Resolved returns a callee pointing at a registered function key.
func Resolved(key string) Callee {
	return Callee{Name: key, Resolved: true}
}

// Unresolved returns a callee holding raw call text.
func Unresolved(raw string) Callee {
	return Callee{Name: raw}
}

func (c Callee) String() string {
	if c.Resolved {
		return c.Name
	}
	return "?" + c.Name
}

// ImpactEntry is the impact score of one function joined with its
// coverage data.
type ImpactEntry struct {
	Function           string  `json:"function" yaml:"function"`
	File               string  `json:"file" yaml:"file"`
	Line               int     `json:"line" yaml:"line"`
	Impact             int     `json:"impact" yaml:"impact"`
	Covered            bool    `json:"covered" yaml:"covered"`
	CoveragePercentage float64 `json:"coverage_percentage" yaml:"coverage_percentage"`
	MissingLines       int     `json:"missing_lines" yaml:"missing_lines"`
	ImpactScore        float64 `json:"impact_score" yaml:"impact_score"`
	IsMethod           bool    `json:"is_method" yaml:"is_method"`
	ClassName          *string `json:"class_name" yaml:"class_name"`
}

// PriorityEntry is an ImpactEntry ranked against predicted test complexity.
type PriorityEntry struct {
	ImpactEntry `yaml:",inline"`

	ComplexityScore  float64 `json:"complexity_score" yaml:"complexity_score"`
	Confidence       float64 `json:"confidence" yaml:"confidence"`
	NormalizedImpact float64 `json:"impact_score_normalized" yaml:"impact_score_normalized"`
	Effort           float64 `json:"effort" yaml:"effort"`
	Priority         float64 `json:"priority" yaml:"priority"`
}
