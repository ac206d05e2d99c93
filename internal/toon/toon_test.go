package toon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative float", "-0.25", "-0.25"},
		{"float", "3.14", "3.14"},
		{"leading zero", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"function key", "pkg/mod.py::Store.save", `"pkg/mod.py::Store.save"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash path", `pkg\mod.py`, `"pkg\\mod.py"`},
		{"bracket", "a[b", `"a[b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/main.py", "src/main.py"},
		{"dotted name", "Store.save", "Store.save"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EncodeValue(tt.in))
		})
	}
}

func TestDocument(t *testing.T) {
	t.Parallel()

	var d Document
	d.Field("version", "1.0")
	d.Field("source", "src")
	d.Table("functions", []string{"function", "impact", "covered", "score", "label"}, [][]any{
		{"mod.py::deep", 2, false, 1.5, "true"},
		{"mod.py::helper", 1, true, 0.0, nil},
	})

	want := "version: 1.0\n" +
		"source: src\n" +
		"functions[2]{function,impact,covered,score,label}:\n" +
		`  "mod.py::deep",2,false,1.5,"true"` + "\n" +
		`  "mod.py::helper",1,true,0,null`
	assert.Equal(t, want, d.String())
}

func TestDocumentEmptyTable(t *testing.T) {
	t.Parallel()

	var d Document
	d.Table("functions", []string{"function", "impact"}, nil)
	assert.Equal(t, "functions[0]{function,impact}:", d.String())
}

func TestDocumentEmpty(t *testing.T) {
	t.Parallel()

	var d Document
	assert.Empty(t, d.String())
}
