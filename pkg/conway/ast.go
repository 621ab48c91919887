package conway

type Node interface {
	SourceLocatable

	// Walk recursively visits this node and all its children, calling fn for each node.
	// The callback returns true to continue walking into children, false to skip children.
	Walk(fn func(Node) bool)
}

// Expression is implemented by the nodes that compute or bind a value:
// unary operations, declarations, assignments and identifier references.
type Expression interface {
	Node
	isExpression()
}

// Literal is a boolean, integer or string constant.
type Literal struct {
	Value Value
	Loc   *SourceLocation
}

var _ Node = (*Literal)(nil)

func (l *Literal) GetSourceLocation() *SourceLocation { return l.Loc }

func (l *Literal) Walk(fn func(Node) bool) {
	fn(l)
}

// Unary applies an operator to its child.
type Unary struct {
	Op    Operator
	Child Node
	Loc   *SourceLocation
}

var _ Expression = (*Unary)(nil)

func (u *Unary) isExpression() {}

func (u *Unary) GetSourceLocation() *SourceLocation { return u.Loc }

func (u *Unary) Walk(fn func(Node) bool) {
	if !fn(u) {
		return
	}
	u.Child.Walk(fn)
}

// Variable declares a name bound to Nil in the current scope.
type Variable struct {
	Name    string
	NameLoc *SourceLocation
	Loc     *SourceLocation
}

var _ Expression = (*Variable)(nil)

func (v *Variable) isExpression() {}

func (v *Variable) GetSourceLocation() *SourceLocation { return v.Loc }

func (v *Variable) Walk(fn func(Node) bool) {
	fn(v)
}

// Assignment binds the result of Value to Name. Let is set for `let x = ...`,
// which always binds in the current scope; a bare `x = ...` updates the
// nearest existing binding.
type Assignment struct {
	Name    string
	NameLoc *SourceLocation
	Value   Node
	Let     bool
	Loc     *SourceLocation
}

var _ Expression = (*Assignment)(nil)

func (a *Assignment) isExpression() {}

func (a *Assignment) GetSourceLocation() *SourceLocation { return a.Loc }

func (a *Assignment) Walk(fn func(Node) bool) {
	if !fn(a) {
		return
	}
	a.Value.Walk(fn)
}

// Identifier reads a variable.
type Identifier struct {
	Name string
	Loc  *SourceLocation
}

var _ Expression = (*Identifier)(nil)

func (i *Identifier) isExpression() {}

func (i *Identifier) GetSourceLocation() *SourceLocation { return i.Loc }

func (i *Identifier) Walk(fn func(Node) bool) {
	fn(i)
}

// Null stands in for a sub-expression that the parser has not attached yet.
// It never survives a successful parse.
type Null struct {
	Loc *SourceLocation
}

var _ Expression = (*Null)(nil)

func (n *Null) isExpression() {}

func (n *Null) GetSourceLocation() *SourceLocation { return n.Loc }

func (n *Null) Walk(fn func(Node) bool) {
	fn(n)
}

// Print evaluates Expr. Writing the value out is left to the caller.
type Print struct {
	Expr Node
	Loc  *SourceLocation
}

var _ Node = (*Print)(nil)

func (p *Print) GetSourceLocation() *SourceLocation { return p.Loc }

func (p *Print) Walk(fn func(Node) bool) {
	if !fn(p) {
		return
	}
	p.Expr.Walk(fn)
}

// Block evaluates Forms in a fresh child scope.
type Block struct {
	Forms []Node
	Loc   *SourceLocation
	// End is the location of the closing brace.
	End *SourceLocation
}

var _ Node = (*Block)(nil)

func (b *Block) GetSourceLocation() *SourceLocation { return b.Loc }

func (b *Block) Walk(fn func(Node) bool) {
	if !fn(b) {
		return
	}
	for _, form := range b.Forms {
		form.Walk(fn)
	}
}

// DeclaredSymbols returns the names a node binds in the scope it is
// evaluated in. Block-local declarations are not included.
func DeclaredSymbols(node Node) []string {
	switch n := node.(type) {
	case *Variable:
		return []string{n.Name}
	case *Assignment:
		return []string{n.Name}
	case *Print:
		return DeclaredSymbols(n.Expr)
	default:
		return nil
	}
}

// ReferencedSymbols returns every identifier read anywhere under node.
func ReferencedSymbols(node Node) []string {
	var symbols []string
	node.Walk(func(n Node) bool {
		if id, ok := n.(*Identifier); ok {
			symbols = append(symbols, id.Name)
		}
		return true
	})
	return symbols
}
