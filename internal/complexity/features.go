// Package complexity predicts how hard a function is to test.
package complexity

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/coverimpact/internal/lang"
)

// Feature names, also used as weight keys in model files.
const (
	LinesOfCode          = "lines_of_code"
	NumStatements        = "num_statements"
	CyclomaticComplexity = "cyclomatic_complexity"
	NumParameters        = "num_parameters"
	HasVariadicArgs      = "has_variadic_args"
	NumBranches          = "num_branches"
	NumLoops             = "num_loops"
	NumExceptions        = "num_exceptions"
	NumReturns           = "num_returns"
	NumFunctionCalls     = "num_function_calls"
	IsAsync              = "is_async"
	IsMethod             = "is_method"
	UsesFilesystem       = "uses_filesystem"
	UsesNetwork          = "uses_network"
)

// FeatureNames lists every extracted feature in a stable order.
var FeatureNames = []string{
	LinesOfCode, NumStatements, CyclomaticComplexity, NumParameters,
	HasVariadicArgs, NumBranches, NumLoops, NumExceptions, NumReturns,
	NumFunctionCalls, IsAsync, IsMethod, UsesFilesystem, UsesNetwork,
}

// Features maps feature name to value. Boolean features are 0 or 1.
type Features map[string]float64

// decisionNodes add one path each to cyclomatic complexity.
var decisionNodes = map[string]bool{
	"if_statement":             true,
	"elif_clause":              true,
	"for_statement":            true,
	"while_statement":          true,
	"except_clause":            true,
	"with_statement":           true,
	"boolean_operator":         true,
	"conditional_expression":   true,
	"list_comprehension":       true,
	"dictionary_comprehension": true,
	"set_comprehension":        true,
	"generator_expression":     true,
}

var parameterNodes = map[string]bool{
	"identifier":              true,
	"default_parameter":       true,
	"typed_parameter":         true,
	"typed_default_parameter": true,
}

var variadicNodes = map[string]bool{
	"list_splat_pattern":       true,
	"dictionary_splat_pattern": true,
}

// Call-name prefixes marking I/O. Matched against the callee text.
var (
	filesystemCalls = []string{"open", "os.", "pathlib.", "Path", "shutil.", "glob.", "tempfile."}
	networkCalls    = []string{"requests.", "urllib.", "http.", "httpx.", "aiohttp.", "socket.", "urlopen"}
)

// Extract computes features for a function_definition node. I/O usage
// is only detected when filePath is known.
func Extract(fn *sitter.Node, source []byte, filePath string) Features {
	f := make(Features, len(FeatureNames))
	for _, name := range FeatureNames {
		f[name] = 0
	}

	f[LinesOfCode] = float64(fn.EndPoint().Row-fn.StartPoint().Row) + 1
	f[CyclomaticComplexity] = 1
	f[IsAsync] = boolFeature(lang.IsAsync(fn))
	f[IsMethod] = boolFeature(lang.EnclosingClass(fn) != nil)

	if params := fn.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			switch {
			case variadicNodes[p.Type()]:
				f[HasVariadicArgs] = 1
			case parameterNodes[p.Type()]:
				if p.Type() == "typed_parameter" && hasVariadicChild(p) {
					f[HasVariadicArgs] = 1
					continue
				}
				f[NumParameters]++
			}
		}
	}

	body := fn.ChildByFieldName("body")
	if body == nil {
		return f
	}

	walk(body, func(n *sitter.Node) {
		t := n.Type()
		if decisionNodes[t] {
			f[CyclomaticComplexity]++
		}
		if strings.HasSuffix(t, "_statement") {
			f[NumStatements]++
		}
		switch t {
		case "if_statement", "elif_clause", "conditional_expression":
			f[NumBranches]++
		case "for_statement", "while_statement":
			f[NumLoops]++
		case "except_clause":
			f[NumExceptions]++
		case "return_statement":
			f[NumReturns]++
		case lang.NodeCall:
			f[NumFunctionCalls]++
			if filePath == "" {
				return
			}
			name := callName(n, source)
			if hasAnyPrefix(name, filesystemCalls) {
				f[UsesFilesystem] = 1
			}
			if hasAnyPrefix(name, networkCalls) {
				f[UsesNetwork] = 1
			}
		}
	})

	return f
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

func hasVariadicChild(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if variadicNodes[n.NamedChild(i).Type()] {
			return true
		}
	}
	return false
}

func callName(call *sitter.Node, source []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	return lang.NodeText(fn, source)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
