package validator

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

const unnamedTest = "unnamed test"

// TestCase is one test block pulled out of a test file for display.
type TestCase struct {
	Name         string `json:"name"`
	TestFunction string `json:"testFunction"`
}

// ExtractTestCases lists every test(...) and it(...) call in source order,
// including calls nested in describe blocks. Source that does not parse
// yields whatever the parser could still recover.
func ExtractTestCases(ctx context.Context, testCode string) ([]TestCase, error) {
	src := []byte(testCode)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	cases := []TestCase{}
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call_expression" && isTestCall(n, src) {
			cases = append(cases, TestCase{
				Name:         testName(n, src),
				TestFunction: statementText(n, src),
			})
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())
	return cases, nil
}

func isTestCall(n *sitter.Node, src []byte) bool {
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return false
	}
	name := fn.Content(src)
	return name == "test" || name == "it"
}

func testName(n *sitter.Node, src []byte) string {
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return unnamedTest
	}
	first := args.NamedChild(0)
	switch first.Type() {
	case "string", "template_string":
		text := first.Content(src)
		if len(text) >= 2 {
			text = text[1 : len(text)-1]
		}
		if text != "" {
			return text
		}
	}
	return unnamedTest
}

// statementText includes the trailing semicolon when the call is a statement
// of its own.
func statementText(n *sitter.Node, src []byte) string {
	if parent := n.Parent(); parent != nil && parent.Type() == "expression_statement" {
		return strings.TrimSpace(parent.Content(src))
	}
	return n.Content(src)
}
