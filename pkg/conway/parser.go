package conway

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Parse parses source into one node per top-level statement, in source
// order. The first mismatch aborts the parse with a *ParseError.
func Parse(filename string, source []byte) ([]Node, error) {
	nodes, _, err := parseWithComments(filename, source)
	return nodes, err
}

// ParseFile reads and parses a file.
func ParseFile(path string) ([]Node, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return Parse(path, source)
}

func parseWithComments(filename string, source []byte) ([]Node, []Comment, error) {
	tokens, comments, err := Lex(filename, source)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: tokens}
	nodes, err := p.program()
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("parsed source", "file", filename, "statements", len(nodes))
	return nodes, comments, nil
}

type parser struct {
	toks []Token
	i    int
}

func (p *parser) peek() Token { return p.peekAt(0) }

func (p *parser) peekAt(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() Token {
	tok := p.peek()
	if tok.Kind != EOF {
		p.i++
	}
	return tok
}

func (p *parser) match(kind TokenKind) bool {
	if p.peek().Kind == kind {
		p.next()
		return true
	}
	return false
}

// need consumes a token of the given kind or fails with an error naming rule.
func (p *parser) need(kind TokenKind, rule string) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.expected(rule, tok, kind.String())
	}
	return p.next(), nil
}

func (p *parser) expected(rule string, found Token, expected ...string) *ParseError {
	return &ParseError{
		Rule:     rule,
		Expected: expected,
		Found:    found.describe(),
		Loc:      found.Loc,
	}
}

// skipSeparators consumes optional ';' between statements.
func (p *parser) skipSeparators() {
	for p.match(SEMICOLON) {
	}
}

// Program := Statement* EOF
func (p *parser) program() ([]Node, error) {
	var nodes []Node
	p.skipSeparators()
	for p.peek().Kind != EOF {
		node, err := p.statement()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		p.skipSeparators()
	}
	return nodes, nil
}

// Statement := Print | Variable | ReAssign | Assignment | Expr
func (p *parser) statement() (Node, error) {
	switch p.peek().Kind {
	case PRINT:
		return p.print()
	case VAR:
		return p.variable()
	case LET:
		return p.assignment()
	case IDENT:
		if p.peekAt(1).Kind == ASSIGN {
			return p.reassign()
		}
	}
	return p.expr("Statement")
}

// Print := "print" Expr
func (p *parser) print() (Node, error) {
	kw := p.next()
	node := &Print{Expr: &Null{Loc: kw.Loc}, Loc: kw.Loc}
	expr, err := p.expr("Print")
	if err != nil {
		return nil, err
	}
	node.Expr = expr
	node.Loc = span(kw.Loc, expr.GetSourceLocation())
	return node, nil
}

// Variable := "var" Identifier
func (p *parser) variable() (Node, error) {
	kw := p.next()
	name, err := p.need(IDENT, "Variable")
	if err != nil {
		return nil, err
	}
	return &Variable{
		Name:    name.Text,
		NameLoc: name.Loc,
		Loc:     span(kw.Loc, name.Loc),
	}, nil
}

// Assignment := "let" Identifier "=" Expr
func (p *parser) assignment() (Node, error) {
	kw := p.next()
	name, err := p.need(IDENT, "Assignment")
	if err != nil {
		return nil, err
	}
	return p.assignmentValue("Assignment", kw.Loc, name, true)
}

// ReAssign := Identifier "=" Expr
func (p *parser) reassign() (Node, error) {
	name := p.next()
	return p.assignmentValue("ReAssign", name.Loc, name, false)
}

func (p *parser) assignmentValue(rule string, start *SourceLocation, name Token, let bool) (Node, error) {
	if _, err := p.need(ASSIGN, rule); err != nil {
		return nil, err
	}
	node := &Assignment{
		Name:    name.Text,
		NameLoc: name.Loc,
		Value:   &Null{Loc: start},
		Let:     let,
		Loc:     start,
	}
	value, err := p.expr(rule)
	if err != nil {
		return nil, err
	}
	node.Value = value
	node.Loc = span(start, value.GetSourceLocation())
	return node, nil
}

// Expr := Unary | Literal | Identifier | Block
func (p *parser) expr(rule string) (Node, error) {
	tok := p.peek()
	switch tok.Kind {
	case PLUS, MINUS, BANG:
		return p.unary()
	case INT, STRING, TRUE, FALSE:
		return p.literal(rule)
	case IDENT:
		p.next()
		return &Identifier{Name: tok.Text, Loc: tok.Loc}, nil
	case LBRACE:
		return p.block()
	default:
		return nil, p.expected(rule, tok, "expression")
	}
}

// Unary := ("+" | "-" | "!") Literal
func (p *parser) unary() (Node, error) {
	opTok := p.next()
	op, _ := operatorFor(opTok.Kind)
	child, err := p.literal("Unary")
	if err != nil {
		return nil, err
	}
	return &Unary{
		Op:    op,
		Child: child,
		Loc:   span(opTok.Loc, child.GetSourceLocation()),
	}, nil
}

// Literal := Integer | Str | Boolean
func (p *parser) literal(rule string) (Node, error) {
	tok := p.peek()
	var val Value
	switch tok.Kind {
	case INT:
		n, err := strconv.ParseInt(tok.Text, 10, 32)
		if err != nil {
			return nil, &ParseError{
				Rule:    "Literal",
				Message: fmt.Sprintf("integer literal %s does not fit in 32 bits", tok.Text),
				Loc:     tok.Loc,
			}
		}
		val = IntValue{Val: int32(n)}
	case STRING:
		val = StrValue{Val: tok.Text}
	case TRUE:
		val = BoolValue{Val: true}
	case FALSE:
		val = BoolValue{Val: false}
	default:
		return nil, p.expected(rule, tok, "literal")
	}
	p.next()
	return &Literal{Value: val, Loc: tok.Loc}, nil
}

// Block := "{" Statement* "}"
func (p *parser) block() (Node, error) {
	open := p.next()
	block := &Block{Loc: open.Loc}
	p.skipSeparators()
	for {
		switch p.peek().Kind {
		case RBRACE:
			block.End = p.next().Loc
			block.Loc = span(open.Loc, block.End)
			return block, nil
		case EOF:
			return nil, p.expected("Block", p.peek(), RBRACE.String())
		}
		form, err := p.statement()
		if err != nil {
			return nil, err
		}
		block.Forms = append(block.Forms, form)
		p.skipSeparators()
	}
}

// span returns a location starting at start and, when end is on the same
// line, extending through end.
func span(start, end *SourceLocation) *SourceLocation {
	if start == nil {
		return end
	}
	loc := *start
	if end != nil && end.Line == start.Line && end.Column >= start.Column {
		loc.Length = end.Column + end.Length - start.Column
	}
	return &loc
}
