package lsp

import (
	"fmt"
	"log/slog"

	"github.com/vito/conway/pkg/conway"
)

// Definition is a name bound by `var`, `let`, or a bare assignment to a name
// that was not yet bound.
type Definition struct {
	Name string
	Node conway.Node
	Loc  *conway.SourceLocation
	// Depth is the number of blocks enclosing the definition.
	Depth int
}

// Reference is a use of a name: an identifier read or a bare assignment to
// an existing binding. Def is nil when the name is unbound.
type Reference struct {
	Name string
	Loc  *conway.SourceLocation
	Def  *Definition
}

// ScopeAnalysis resolves every name in a program the same way evaluation
// does, without running it.
type ScopeAnalysis struct {
	Definitions []*Definition
	References  []*Reference
}

// AnalyzeScopes walks nodes in evaluation order, tracking one scope per
// block.
func AnalyzeScopes(nodes []conway.Node) *ScopeAnalysis {
	sa := &ScopeAnalysis{}
	scopes := []map[string]*Definition{{}}
	for _, node := range nodes {
		sa.analyzeNode(node, &scopes)
	}
	return sa
}

func (sa *ScopeAnalysis) analyzeNode(node conway.Node, scopes *[]map[string]*Definition) {
	slog.Debug("scope: analyzing node", "type", fmt.Sprintf("%T", node))

	switch n := node.(type) {
	case *conway.Variable:
		sa.define(n.Name, n, n.NameLoc, scopes)

	case *conway.Assignment:
		sa.analyzeNode(n.Value, scopes)
		if n.Let {
			sa.define(n.Name, n, n.NameLoc, scopes)
			return
		}
		if def := resolve(n.Name, *scopes); def != nil {
			sa.References = append(sa.References, &Reference{Name: n.Name, Loc: n.NameLoc, Def: def})
			return
		}
		sa.define(n.Name, n, n.NameLoc, scopes)

	case *conway.Identifier:
		sa.References = append(sa.References, &Reference{
			Name: n.Name,
			Loc:  n.Loc,
			Def:  resolve(n.Name, *scopes),
		})

	case *conway.Unary:
		sa.analyzeNode(n.Child, scopes)

	case *conway.Print:
		sa.analyzeNode(n.Expr, scopes)

	case *conway.Block:
		*scopes = append(*scopes, map[string]*Definition{})
		for _, form := range n.Forms {
			sa.analyzeNode(form, scopes)
		}
		*scopes = (*scopes)[:len(*scopes)-1]
	}
}

func (sa *ScopeAnalysis) define(name string, node conway.Node, loc *conway.SourceLocation, scopes *[]map[string]*Definition) {
	def := &Definition{
		Name:  name,
		Node:  node,
		Loc:   loc,
		Depth: len(*scopes) - 1,
	}
	(*scopes)[len(*scopes)-1][name] = def
	sa.Definitions = append(sa.Definitions, def)
}

func resolve(name string, scopes []map[string]*Definition) *Definition {
	for i := len(scopes) - 1; i >= 0; i-- {
		if def, ok := scopes[i][name]; ok {
			return def
		}
	}
	return nil
}

// At returns the definition of the name under pos, whether pos is on the
// definition itself or on a reference to it. The reference is returned too
// when pos is on one.
func (sa *ScopeAnalysis) At(pos Position) (*Definition, *Reference) {
	for _, def := range sa.Definitions {
		if nameRange(def.Loc, def.Name).Contains(pos) {
			return def, nil
		}
	}
	for _, ref := range sa.References {
		if nameRange(ref.Loc, ref.Name).Contains(pos) {
			return ref.Def, ref
		}
	}
	return nil, nil
}

// Occurrences returns the locations of def and every reference to it.
func (sa *ScopeAnalysis) Occurrences(def *Definition) []*conway.SourceLocation {
	locs := []*conway.SourceLocation{def.Loc}
	for _, ref := range sa.References {
		if ref.Def == def {
			locs = append(locs, ref.Loc)
		}
	}
	return locs
}

// nameRange converts a 1-based source location into a 0-based LSP range
// covering name.
func nameRange(loc *conway.SourceLocation, name string) Range {
	if loc == nil {
		return Range{}
	}
	start := Position{Line: loc.Line - 1, Character: loc.Column - 1}
	return Range{
		Start: start,
		End:   Position{Line: start.Line, Character: start.Character + len(name)},
	}
}
