package scan

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/jward/sqlcache/internal/source"
)

// scanGenerated indexes the top-level function, method and type declarations
// of a generated Go file. Methods are keyed "Receiver.Method" so that methods
// sharing a name on different receivers stay distinct.
func scanGenerated(ctx context.Context, f *source.File) ([]Entity, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, f.Content)
	if err != nil {
		return nil, fmt.Errorf("scan %s: tree-sitter parse: %w", f.Path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{File: f.Path, Line: firstErrorLine(root), Reason: "syntax error in generated code"}
	}

	src := f.Content
	var ents []Entity
	count := int(root.NamedChildCount())
	for i := 0; i < count; i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "function_declaration":
			name := n.ChildByFieldName("name")
			if name == nil {
				continue
			}
			ents = append(ents, nodeEntity(n, name.Content(src), KindGeneratedFunction, "function"))

		case "method_declaration":
			name := n.ChildByFieldName("name")
			if name == nil {
				continue
			}
			key := name.Content(src)
			if recv := receiverType(n.ChildByFieldName("receiver"), src); recv != "" {
				key = recv + "." + key
			}
			ents = append(ents, nodeEntity(n, key, KindGeneratedFunction, "method"))

		case "type_declaration":
			specs := typeSpecs(n)
			if len(specs) == 1 {
				name, detail := typeSpecInfo(specs[0], src)
				ents = append(ents, nodeEntity(n, name, KindGeneratedType, detail))
				continue
			}
			// Grouped "type ( ... )": each spec is its own entity.
			for _, spec := range specs {
				name, detail := typeSpecInfo(spec, src)
				ents = append(ents, nodeEntity(spec, name, KindGeneratedType, detail))
			}
		}
	}
	return ents, nil
}

func nodeEntity(n *sitter.Node, name string, kind Kind, detail string) Entity {
	return Entity{
		Name:      name,
		Kind:      kind,
		Detail:    detail,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   endLine(n),
	}
}

// endLine returns the 1-based last line a node occupies. A node whose end
// point sits at column 0 stopped at the previous line's newline.
func endLine(n *sitter.Node) int {
	end := n.EndPoint()
	if end.Column == 0 && end.Row > n.StartPoint().Row {
		return int(end.Row)
	}
	return int(end.Row) + 1
}

func typeSpecs(decl *sitter.Node) []*sitter.Node {
	var specs []*sitter.Node
	count := int(decl.NamedChildCount())
	for i := 0; i < count; i++ {
		c := decl.NamedChild(i)
		if c.Type() == "type_spec" || c.Type() == "type_alias" {
			specs = append(specs, c)
		}
	}
	return specs
}

func typeSpecInfo(spec *sitter.Node, src []byte) (string, string) {
	var name string
	if n := spec.ChildByFieldName("name"); n != nil {
		name = n.Content(src)
	}
	if spec.Type() == "type_alias" {
		return name, "alias"
	}
	t := spec.ChildByFieldName("type")
	if t == nil {
		return name, "type"
	}
	switch t.Type() {
	case "struct_type":
		return name, "struct"
	case "interface_type":
		return name, "interface"
	default:
		return name, "type"
	}
}

// receiverType returns the bare receiver type name: "(q *Queries)" -> "Queries",
// "(s Set[T])" -> "Set".
func receiverType(recv *sitter.Node, src []byte) string {
	if recv == nil {
		return ""
	}
	count := int(recv.NamedChildCount())
	for i := 0; i < count; i++ {
		p := recv.NamedChild(i)
		if p.Type() != "parameter_declaration" {
			continue
		}
		t := p.ChildByFieldName("type")
		if t == nil {
			return ""
		}
		name := strings.TrimLeft(t.Content(src), "*")
		if idx := strings.IndexByte(name, '['); idx >= 0 {
			name = name[:idx]
		}
		return strings.TrimSpace(name)
	}
	return ""
}

// firstErrorLine descends toward the first ERROR (or missing) node.
func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if c != nil && (c.HasError() || c.IsMissing()) {
			return firstErrorLine(c)
		}
	}
	return int(n.StartPoint().Row) + 1
}
