// Package parse extracts function definitions and their raw call
// expressions from Python source using tree-sitter.
package parse

import (
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/coverimpact/internal/lang"
	"github.com/phobologic/coverimpact/internal/model"
)

// Definition is one function or method found in a file together with the
// raw callee texts found in its own body.
type Definition struct {
	Record model.FunctionRecord
	Calls  []string
}

// scope is the immutable visitor context threaded through the walk.
type scope struct {
	class string // enclosing class name, "" at module scope
	fn    int    // index into defs of the function calls belong to, -1 for none
}

type extractor struct {
	file   string
	source []byte
	defs   []Definition
	calls  []map[string]struct{}
}

// File parses source and returns its definitions in source order.
// Dunder methods are omitted, and calls inside them are not attributed to
// anything. When a qualified name is defined twice in the file the later
// definition replaces the earlier one. A parse failure returns the error
// and no definitions.
func File(ctx context.Context, source []byte, file string) ([]Definition, error) {
	tree, err := lang.Python.Parse(ctx, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	return Tree(tree.RootNode(), source, file), nil
}

// Tree extracts definitions from an already parsed module node.
func Tree(root *sitter.Node, source []byte, file string) []Definition {
	ex := &extractor{file: file, source: source}
	ex.walk(root, scope{fn: -1})

	// Last definition of a key wins.
	latest := make(map[string]int, len(ex.defs))
	for i := range ex.defs {
		latest[ex.defs[i].Record.Key] = i
	}

	out := make([]Definition, 0, len(latest))
	for i := range ex.defs {
		if latest[ex.defs[i].Record.Key] != i {
			continue
		}
		d := ex.defs[i]
		d.Calls = sortedKeys(ex.calls[i])
		out = append(out, d)
	}
	return out
}

func (ex *extractor) walk(node *sitter.Node, sc scope) {
	if node == nil {
		return
	}

	switch node.Type() {
	case lang.NodeClass:
		name := lang.DefinitionName(node, ex.source)
		inner := scope{class: name, fn: sc.fn}
		ex.walkChildren(node, inner)
		return

	case lang.NodeFunction:
		ex.walkChildren(node, ex.define(node, sc))
		return

	case lang.NodeCall:
		if sc.fn >= 0 {
			if callee := CalleeText(node, ex.source); callee != "" {
				ex.calls[sc.fn][callee] = struct{}{}
			}
		}
	}

	ex.walkChildren(node, sc)
}

func (ex *extractor) walkChildren(node *sitter.Node, sc scope) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		ex.walk(node.NamedChild(i), sc)
	}
}

// define registers a function_definition and returns the scope its body
// should be walked in.
func (ex *extractor) define(node *sitter.Node, sc scope) scope {
	name := lang.DefinitionName(node, ex.source)
	if name == "" || model.IsDunder(name) {
		return scope{class: sc.class, fn: -1}
	}

	ex.defs = append(ex.defs, Definition{
		Record: model.FunctionRecord{
			Key:       model.FunctionKey(ex.file, sc.class, name),
			Name:      name,
			File:      ex.file,
			Line:      lang.Line(node),
			IsMethod:  sc.class != "",
			ClassName: sc.class,
		},
	})
	ex.calls = append(ex.calls, make(map[string]struct{}))
	return scope{class: sc.class, fn: len(ex.defs) - 1}
}

// CalleeText returns the textual callee of a call node: "f" for f(),
// "a.b" for a.b(), "a.b.c" for a.b.c(). Calls whose attribute chain is not
// rooted at a bare name (e.g. f().g(), x[0].h()) return "".
func CalleeText(call *sitter.Node, source []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case lang.NodeIdentifier:
		return lang.NodeText(fn, source)
	case lang.NodeAttribute:
		return attributeChain(fn, source)
	}
	return ""
}

func attributeChain(attr *sitter.Node, source []byte) string {
	object := attr.ChildByFieldName("object")
	name := attr.ChildByFieldName("attribute")
	if object == nil || name == nil {
		return ""
	}

	var base string
	switch object.Type() {
	case lang.NodeIdentifier:
		base = lang.NodeText(object, source)
	case lang.NodeAttribute:
		base = attributeChain(object, source)
	}
	if base == "" {
		return ""
	}
	return base + "." + lang.NodeText(name, source)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
