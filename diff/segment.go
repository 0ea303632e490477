package diff

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// Kind is the sort of region a block covers.
type Kind string

const (
	KindFunction Kind = "function"
	KindExport   Kind = "export"
)

// Status classifies a block against the other version of the source.
type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusModified  Status = "modified"
	StatusAdded     Status = "added"
	StatusRemoved   Status = "removed"
)

// Block is a named function or export region. Start and End are zero-based
// line numbers, both inclusive.
type Block struct {
	Name   string   `json:"name"`
	Kind   Kind     `json:"kind"`
	Status Status   `json:"status"`
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Lines  []string `json:"lines"`

	// head is the line the declaration itself starts on, below any doc
	// comment.
	head int
	// items are export names with the line each appears on.
	items map[string]int
}

type segmentation struct {
	lines  []string
	blocks []*Block
}

func (s *segmentation) functions() map[string]*Block {
	out := make(map[string]*Block)
	for _, b := range s.blocks {
		if b.Kind == KindFunction {
			if _, dup := out[b.Name]; !dup {
				out[b.Name] = b
			}
		}
	}
	return out
}

func (s *segmentation) exports() []*Block {
	var out []*Block
	for _, b := range s.blocks {
		if b.Kind == KindExport {
			out = append(out, b)
		}
	}
	return out
}

// segment parses src and cuts it into function and export blocks in source
// order.
func segment(ctx context.Context, src string) (*segmentation, error) {
	data := []byte(src)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, data)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	s := &segmentation{lines: strings.Split(src, "\n")}
	w := &walker{src: data, seg: s}
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		w.statement(root.NamedChild(i))
	}
	return s, nil
}

type walker struct {
	src []byte
	seg *segmentation
}

func (w *walker) text(n *sitter.Node) string {
	return n.Content(w.src)
}

func (w *walker) statement(n *sitter.Node) {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			w.function(w.text(name), n)
		}
	case "lexical_declaration", "variable_declaration":
		w.declaration(n, n)
	case "class_declaration":
		w.class(n)
	case "export_statement":
		w.export(n)
	case "expression_statement":
		if w.isModuleExports(n) {
			w.exportBlock(n)
		}
	}
}

// declaration handles const/let/var. A declarator bound to a function is a
// function block spanning the whole statement; one bound to an object
// literal contributes its shorthand methods.
func (w *walker) declaration(n, span *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		decl := n.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		name := decl.ChildByFieldName("name")
		value := decl.ChildByFieldName("value")
		if name == nil || value == nil {
			continue
		}
		switch value.Type() {
		case "arrow_function", "function", "function_expression", "generator_function":
			w.function(w.text(name), span)
		case "object":
			w.objectMethods(w.text(name), value)
		}
	}
}

func (w *walker) objectMethods(owner string, obj *sitter.Node) {
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		member := obj.NamedChild(i)
		if member.Type() != "method_definition" {
			continue
		}
		if name := member.ChildByFieldName("name"); name != nil {
			w.function(owner+"."+w.text(name), member)
		}
	}
}

func (w *walker) class(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if name == nil || body == nil {
		return
	}
	owner := w.text(name)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member.Type() != "method_definition" {
			continue
		}
		if method := member.ChildByFieldName("name"); method != nil {
			w.function(owner+"."+w.text(method), member)
		}
	}
}

// export handles ES export statements. Exported functions stay function
// blocks; everything else is an export block.
func (w *walker) export(n *sitter.Node) {
	decl := n.ChildByFieldName("declaration")
	if decl != nil {
		switch decl.Type() {
		case "function_declaration", "generator_function_declaration":
			if name := decl.ChildByFieldName("name"); name != nil {
				w.function(w.text(name), n)
				return
			}
		case "lexical_declaration", "variable_declaration":
			before := len(w.seg.blocks)
			w.declaration(decl, n)
			if len(w.seg.blocks) > before {
				return
			}
		case "class_declaration":
			w.class(decl)
			return
		}
	}
	w.exportBlock(n)
}

func (w *walker) isModuleExports(n *sitter.Node) bool {
	if n.NamedChildCount() == 0 {
		return false
	}
	expr := n.NamedChild(0)
	if expr.Type() != "assignment_expression" {
		return false
	}
	left := expr.ChildByFieldName("left")
	if left == nil || left.Type() != "member_expression" {
		return false
	}
	target := w.text(left)
	return target == "module.exports" ||
		strings.HasPrefix(target, "module.exports.") ||
		strings.HasPrefix(target, "exports.")
}

// function adds a block spanning n plus the doc comment directly above it.
func (w *walker) function(name string, n *sitter.Node) {
	start := int(n.StartPoint().Row)
	if doc := w.docComment(n); doc != nil {
		start = int(doc.StartPoint().Row)
	}
	w.add(&Block{
		Name:  name,
		Kind:  KindFunction,
		Start: start,
		End:   int(n.EndPoint().Row),
		head:  int(n.StartPoint().Row),
	})
}

func (w *walker) exportBlock(n *sitter.Node) {
	b := &Block{
		Name:  "exports",
		Kind:  KindExport,
		Start: int(n.StartPoint().Row),
		End:   int(n.EndPoint().Row),
		head:  int(n.StartPoint().Row),
		items: make(map[string]int),
	}
	w.collectItems(n, b.items)
	w.add(b)
}

// collectItems records the exported names: object keys, shorthand
// properties, export specifiers and exports.x targets.
func (w *walker) collectItems(n *sitter.Node, items map[string]int) {
	record := func(node *sitter.Node) {
		name := w.text(node)
		if _, seen := items[name]; !seen {
			items[name] = int(node.StartPoint().Row)
		}
	}

	switch n.Type() {
	case "shorthand_property_identifier":
		record(n)
		return
	case "pair", "method_definition":
		if key := n.ChildByFieldName("key"); key != nil {
			record(key)
		} else if name := n.ChildByFieldName("name"); name != nil {
			record(name)
		}
		return
	case "export_specifier":
		if alias := n.ChildByFieldName("alias"); alias != nil {
			record(alias)
		} else if name := n.ChildByFieldName("name"); name != nil {
			record(name)
		}
		return
	case "assignment_expression":
		left := n.ChildByFieldName("left")
		if left != nil && left.Type() == "member_expression" && w.text(left) != "module.exports" {
			if prop := left.ChildByFieldName("property"); prop != nil {
				record(prop)
			}
			return
		}
		if right := n.ChildByFieldName("right"); right != nil {
			w.collectItems(right, items)
		}
		return
	case "function", "function_expression", "arrow_function", "function_declaration", "class_declaration":
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.collectItems(n.NamedChild(i), items)
	}
}

func (w *walker) add(b *Block) {
	lines := w.seg.lines
	if b.End >= len(lines) {
		b.End = len(lines) - 1
	}
	b.Lines = append([]string{}, lines[b.Start:b.End+1]...)
	w.seg.blocks = append(w.seg.blocks, b)
}

// docComment returns the /** */ comment directly above n, if any.
func (w *walker) docComment(n *sitter.Node) *sitter.Node {
	prev := n.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" {
		return nil
	}
	if int(prev.EndPoint().Row)+1 != int(n.StartPoint().Row) {
		return nil
	}
	if !strings.HasPrefix(w.text(prev), "/**") {
		return nil
	}
	return prev
}
