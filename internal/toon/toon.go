// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Document accumulates top-level TOON entries in insertion order.
type Document struct {
	parts []string
}

// Field appends a "key: value" line.
func (d *Document) Field(key string, value any) {
	d.parts = append(d.parts, fmt.Sprintf("%s: %s", key, encodeCell(value)))
}

// Table appends a tabular array. Every row must have len(columns) cells.
func (d *Document) Table(name string, columns []string, rows [][]any) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = encodeCell(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(cells, ","))
	}
	d.parts = append(d.parts, b.String())
}

// String returns the encoded document without a trailing newline.
func (d *Document) String() string {
	return strings.Join(d.parts, "\n")
}

// encodeCell renders native scalars unquoted and strings via EncodeValue.
func encodeCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return EncodeValue(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return EncodeValue(fmt.Sprint(x))
	}
}

// EncodeValue renders a scalar, quoting it when it would otherwise be
// read back as a different type or break the row syntax.
func EncodeValue(value string) string {
	switch {
	case value == "":
		return `""`
	case value != strings.TrimSpace(value), strings.ContainsAny(value, "\n\r\t"):
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}
	if looksNumeric.MatchString(value) {
		return value
	}
	if needsQuoting.MatchString(value) || strings.HasPrefix(value, "-") {
		return quote(value)
	}
	return value
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func quote(value string) string {
	return `"` + escaper.Replace(value) + `"`
}
