package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Python is the registered Python language.
var Python = &Language{
	Name:       "python",
	Extensions: []string{".py"},
	lang:       python.GetLanguage(),
}

func init() {
	Languages[Python.Name] = Python
}

// Python node types used by the extractors.
const (
	NodeClass      = "class_definition"
	NodeFunction   = "function_definition"
	NodeDecorated  = "decorated_definition"
	NodeCall       = "call"
	NodeAttribute  = "attribute"
	NodeIdentifier = "identifier"
)

// DefinitionName returns the name of a class_definition or
// function_definition node, or "" when it has none.
func DefinitionName(node *sitter.Node, source []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return NodeText(name, source)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == NodeIdentifier {
			return NodeText(child, source)
		}
	}
	return ""
}

// IsAsync reports whether a function_definition is declared "async def".
func IsAsync(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "async" {
			return true
		}
		if child.Type() == "def" {
			return false
		}
	}
	return false
}

// FindFunctionAt returns the first function_definition (in document
// order) whose def line equals line, or nil.
func FindFunctionAt(root *sitter.Node, line int) *sitter.Node {
	if root == nil {
		return nil
	}
	if root.Type() == NodeFunction && Line(root) == line {
		return root
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if found := FindFunctionAt(root.NamedChild(i), line); found != nil {
			return found
		}
	}
	return nil
}

// EnclosingClass returns the class_definition directly containing a
// function_definition, looking through a decorator wrapper, or nil.
func EnclosingClass(funcNode *sitter.Node) *sitter.Node {
	parent := funcNode.Parent()
	if parent == nil {
		return nil
	}

	// Direct: func -> block -> class_definition
	if parent.Type() == "block" && parent.Parent() != nil && parent.Parent().Type() == NodeClass {
		return parent.Parent()
	}

	// Decorated: func -> decorated_definition -> block -> class_definition
	if parent.Type() == NodeDecorated {
		gp := parent.Parent()
		if gp != nil && gp.Type() == "block" && gp.Parent() != nil && gp.Parent().Type() == NodeClass {
			return gp.Parent()
		}
	}

	return nil
}
