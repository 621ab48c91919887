package conway

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kr/pretty"
	"gopkg.in/yaml.v3"
)

// Tree converts a node into plain maps and slices, suitable for encoding.
// A nil node has no tree.
func Tree(node Node) map[string]any {
	if node == nil {
		return nil
	}
	tree := map[string]any{}
	switch n := node.(type) {
	case *Literal:
		tree["type"] = "Literal"
		tree["kind"] = n.Value.Kind().String()
		tree["value"] = treeValue(n.Value)
	case *Unary:
		tree["type"] = "Unary"
		tree["op"] = n.Op.String()
		tree["child"] = Tree(n.Child)
	case *Variable:
		tree["type"] = "Variable"
		tree["name"] = n.Name
	case *Assignment:
		tree["type"] = "Assignment"
		tree["name"] = n.Name
		tree["let"] = n.Let
		tree["value"] = Tree(n.Value)
	case *Identifier:
		tree["type"] = "Identifier"
		tree["name"] = n.Name
	case *Null:
		tree["type"] = "Null"
	case *Print:
		tree["type"] = "Print"
		tree["expr"] = Tree(n.Expr)
	case *Block:
		tree["type"] = "Block"
		forms := make([]any, 0, len(n.Forms))
		for _, form := range n.Forms {
			forms = append(forms, Tree(form))
		}
		tree["forms"] = forms
	default:
		tree["type"] = fmt.Sprintf("%T", node)
	}
	if loc := node.GetSourceLocation(); loc != nil {
		tree["line"] = loc.Line
		tree["column"] = loc.Column
	}
	return tree
}

func treeValue(val Value) any {
	switch v := val.(type) {
	case StrValue:
		return v.Val
	case IntValue:
		return v.Val
	case BoolValue:
		return v.Val
	default:
		return nil
	}
}

// DumpFormat selects how Dump renders an AST.
type DumpFormat string

const (
	DumpPretty DumpFormat = "pretty"
	DumpJSON   DumpFormat = "json"
	DumpYAML   DumpFormat = "yaml"
)

// Dump writes nodes to w in the given format. The pretty format prints the
// Go structures themselves; json and yaml print their Tree form.
func Dump(w io.Writer, nodes []Node, format DumpFormat) error {
	switch format {
	case DumpPretty, "":
		_, err := pretty.Fprintf(w, "%# v\n", nodes)
		return err
	case DumpJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(trees(nodes))
	case DumpYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(trees(nodes)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown dump format %q (want pretty, json or yaml)", format)
	}
}

func trees(nodes []Node) []any {
	out := make([]any, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, Tree(node))
	}
	return out
}
