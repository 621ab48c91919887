package conway

import (
	"bytes"
	"strings"
)

const indentString = "\t"

// Formatter formats Conway AST nodes into canonical source code
type Formatter struct {
	buf      bytes.Buffer
	indent   int
	comments []Comment
	next     int // index of the first comment not yet emitted
}

// Format formats a sequence of top-level statements.
func Format(nodes []Node) string {
	f := &Formatter{}
	f.formatForms(nodes, nil)
	return f.buf.String()
}

// FormatSource parses and formats Conway source, keeping its comments.
func FormatSource(filename string, source []byte) (string, error) {
	nodes, comments, err := parseWithComments(filename, source)
	if err != nil {
		return "", err
	}
	f := &Formatter{comments: comments}
	f.formatForms(nodes, nil)
	f.emitCommentsBefore(-1)
	return f.buf.String(), nil
}

func (f *Formatter) writeIndent() {
	f.buf.WriteString(strings.Repeat(indentString, f.indent))
}

// emitCommentsBefore writes every pending comment on a line before line, each
// on its own line. A negative line flushes all remaining comments.
func (f *Formatter) emitCommentsBefore(line int) {
	for f.next < len(f.comments) {
		c := f.comments[f.next]
		if line >= 0 && c.Line >= line {
			return
		}
		f.writeIndent()
		f.buf.WriteString(c.Text)
		f.buf.WriteByte('\n')
		f.next++
	}
}

// emitTrailingComment appends a comment that shares line with code.
func (f *Formatter) emitTrailingComment(line int) {
	if f.next < len(f.comments) {
		c := f.comments[f.next]
		if c.IsTrailing && c.Line == line {
			f.buf.WriteByte(' ')
			f.buf.WriteString(c.Text)
			f.next++
		}
	}
}

// formatForms writes one statement per line. end is the closing brace of the
// enclosing block, if any; comments before it belong inside the block.
//
// A trailing comment goes with the last code on its line, so a statement
// only takes it when nothing else follows it on that line.
func (f *Formatter) formatForms(forms []Node, end *SourceLocation) {
	for i, form := range forms {
		if loc := form.GetSourceLocation(); loc != nil {
			f.emitCommentsBefore(loc.Line)
		}
		f.writeIndent()
		f.formatNode(form)

		line := lastLine(form)
		var next *SourceLocation
		if i+1 < len(forms) {
			next = forms[i+1].GetSourceLocation()
		} else {
			next = end
		}
		if next == nil || next.Line > line {
			f.emitTrailingComment(line)
		}
		f.buf.WriteByte('\n')
	}
	if end != nil {
		f.emitCommentsBefore(end.Line)
	}
}

func (f *Formatter) formatNode(node Node) {
	switch n := node.(type) {
	case *Literal:
		f.buf.WriteString(formatLiteral(n.Value))
	case *Unary:
		f.buf.WriteString(n.Op.String())
		f.formatNode(n.Child)
	case *Identifier:
		f.buf.WriteString(n.Name)
	case *Variable:
		f.buf.WriteString("var ")
		f.buf.WriteString(n.Name)
	case *Assignment:
		if n.Let {
			f.buf.WriteString("let ")
		}
		f.buf.WriteString(n.Name)
		f.buf.WriteString(" = ")
		f.formatNode(n.Value)
	case *Print:
		f.buf.WriteString("print ")
		f.formatNode(n.Expr)
	case *Block:
		f.formatBlock(n)
	case *Null:
		// nothing to print for a placeholder
	}
}

func (f *Formatter) formatBlock(b *Block) {
	if len(b.Forms) == 0 && !f.hasCommentsBefore(b.End) {
		f.buf.WriteString("{}")
		return
	}
	f.buf.WriteString("{")
	if b.Loc != nil && openerEndsLine(b) {
		f.emitTrailingComment(b.Loc.Line)
	}
	f.buf.WriteByte('\n')
	f.indent++
	f.formatForms(b.Forms, b.End)
	f.indent--
	f.writeIndent()
	f.buf.WriteString("}")
}

func (f *Formatter) hasCommentsBefore(end *SourceLocation) bool {
	return end != nil && f.next < len(f.comments) && f.comments[f.next].Line < end.Line
}

// openerEndsLine reports whether nothing follows a block's opening brace on
// its line.
func openerEndsLine(b *Block) bool {
	line := b.Loc.Line
	if len(b.Forms) > 0 {
		if loc := b.Forms[0].GetSourceLocation(); loc != nil && loc.Line == line {
			return false
		}
	}
	return b.End == nil || b.End.Line > line
}

// lastLine returns the line a statement ends on: the closing brace for
// blocks, the starting line otherwise.
func lastLine(node Node) int {
	switch n := node.(type) {
	case *Block:
		if n.End != nil {
			return n.End.Line
		}
	case *Print:
		return lastLine(n.Expr)
	case *Assignment:
		return lastLine(n.Value)
	}
	if loc := node.GetSourceLocation(); loc != nil {
		return loc.Line
	}
	return 0
}

func formatLiteral(val Value) string {
	switch v := val.(type) {
	case StrValue:
		return quoteString(v.Val)
	default:
		return val.String()
	}
}

// quoteString quotes s using only the escapes the lexer understands.
func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// FormatValue renders a value the way it would be written in source: strings
// are quoted, everything else uses its textual form.
func FormatValue(val Value) string {
	return formatLiteral(val)
}
