package conway

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/iancoleman/strcase"
)

// SourceLocation represents a location in source code
type SourceLocation struct {
	Filename string
	Line     int
	Column   int
	Length   int // Length of the token or node the location points at
}

func (loc *SourceLocation) String() string {
	if loc == nil {
		return "<unknown>"
	}
	name := loc.Filename
	if name == "" {
		name = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", name, loc.Line, loc.Column)
}

type SourceLocatable interface {
	GetSourceLocation() *SourceLocation
}

// ParseError is returned when source text does not match the grammar. Rule
// names the production that was being parsed.
type ParseError struct {
	Rule     string
	Expected []string
	Found    string
	Message  string
	Loc      *SourceLocation
}

func (e *ParseError) Error() string {
	var msg strings.Builder
	msg.WriteString(e.Loc.String())
	msg.WriteString(": syntax error")
	if e.Rule != "" {
		msg.WriteString(" in ")
		msg.WriteString(ruleWords(e.Rule))
	}
	msg.WriteString(": ")
	switch {
	case e.Message != "":
		msg.WriteString(e.Message)
	case len(e.Expected) > 0:
		fmt.Fprintf(&msg, "expected %s, found %s", strings.Join(e.Expected, " or "), e.Found)
	default:
		fmt.Fprintf(&msg, "unexpected %s", e.Found)
	}
	return msg.String()
}

func (e *ParseError) GetSourceLocation() *SourceLocation { return e.Loc }

// ruleWords turns a grammar rule name like "ReAssign" into "re assign".
func ruleWords(rule string) string {
	return strcase.ToDelimited(rule, ' ')
}

// NameError is returned when a name is not bound in any scope.
type NameError struct {
	Name string
	// Op is what was being done with the name: "assign" or "read".
	Op string
}

func (e *NameError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("undefined variable %q", e.Name)
	}
	return fmt.Sprintf("cannot %s undefined variable %q", e.Op, e.Name)
}

// TypeError is returned when an operator is applied to a value of the wrong
// kind.
type TypeError struct {
	Op    Operator
	Value Value
}

func (e *TypeError) Error() string {
	kind := NothingKind
	if e.Value != nil {
		kind = e.Value.Kind()
	}
	var want Kind
	switch e.Op {
	case Minus:
		want = IntKind
	case Bang:
		want = BooleanKind
	}
	return fmt.Sprintf("operator %s expects %s, got %s (%s)", e.Op, want, kind, e.Value)
}

// SourceError represents an error with source location information
type SourceError struct {
	Inner    error
	Location *SourceLocation
	Source   string // The source code of the file
}

// NewSourceError creates a new SourceError
func NewSourceError(inner error, location *SourceLocation, source string) *SourceError {
	return &SourceError{
		Inner:    inner,
		Location: location,
		Source:   source,
	}
}

func (e *SourceError) Unwrap() error {
	return e.Inner
}

func (e *SourceError) Error() string {
	var parseErr *ParseError
	if e.Location == nil || errors.As(e.Inner, &parseErr) {
		return e.Inner.Error()
	}
	return fmt.Sprintf("%s: %s", e.Location, e.Inner)
}

// ExcerptStyles colors the parts of a rendered source excerpt. The zero
// value renders plain text.
type ExcerptStyles struct {
	Message  lipgloss.Style
	Location lipgloss.Style
	Gutter   lipgloss.Style
	Context  lipgloss.Style
	Marker   lipgloss.Style
}

// DefaultExcerptStyles is what Highlight uses.
var DefaultExcerptStyles = ExcerptStyles{
	Message:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	Location: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	Gutter:   lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("12")),
	Context:  lipgloss.NewStyle().Faint(true),
	Marker:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
}

// excerptContext is how many lines are shown on each side of the error.
const excerptContext = 2

// tabWidth is how far a tab advances in an excerpt.
const tabWidth = 4

// Excerpt renders the error message followed by the lines around its
// location, with the offending span underlined:
//
//	operator - expects Int, got Boolean (true)
//	  ┌─ script.cy:3:1
//	2 │ let a = 1
//	3 │ -true
//	  │ ^^^^^
//
// The source is read from the named file when the error does not carry it.
func (e *SourceError) Excerpt(styles ExcerptStyles) string {
	if e.Location == nil {
		return e.Inner.Error()
	}

	source := e.Source
	if source == "" && e.Location.Filename != "" {
		if contents, err := os.ReadFile(e.Location.Filename); err == nil {
			source = string(contents)
		}
	}

	lines := strings.Split(source, "\n")
	focus := e.Location.Line
	if focus < 1 || focus > len(lines) {
		return e.Error()
	}
	first := max(1, focus-excerptContext)
	last := min(len(lines), focus+excerptContext)
	width := len(strconv.Itoa(last))

	gutter := func(label, rule string) string {
		return styles.Gutter.Render(fmt.Sprintf("%*s %s", width, label, rule))
	}

	var out strings.Builder
	out.WriteString(styles.Message.Render(e.message()))
	out.WriteByte('\n')
	out.WriteString(gutter("", "┌─") + " " + styles.Location.Render(e.Location.String()) + "\n")
	for n := first; n <= last; n++ {
		line := expandTabs(strings.TrimRight(lines[n-1], "\r"))
		if n != focus {
			out.WriteString(gutter(strconv.Itoa(n), "│") + " " + styles.Context.Render(line) + "\n")
			continue
		}
		out.WriteString(gutter(strconv.Itoa(n), "│") + " " + line + "\n")
		indent := strings.Repeat(" ", markerOffset(lines[n-1], e.Location.Column))
		marker := strings.Repeat("^", max(1, e.Location.Length))
		out.WriteString(gutter("", "│") + " " + indent + styles.Marker.Render(marker) + "\n")
	}
	return out.String()
}

// message is the inner error without a location prefix, since the excerpt
// shows the location itself.
func (e *SourceError) message() string {
	msg := e.Inner.Error()
	var parseErr *ParseError
	if errors.As(e.Inner, &parseErr) {
		msg = strings.TrimPrefix(msg, parseErr.Loc.String()+": ")
	}
	return msg
}

func expandTabs(line string) string {
	return strings.ReplaceAll(line, "\t", strings.Repeat(" ", tabWidth))
}

// markerOffset is the display width of line before the 1-based rune column.
func markerOffset(line string, column int) int {
	runes := []rune(line)
	prefix := string(runes[:min(len(runes), max(0, column-1))])
	return ansi.StringWidth(expandTabs(prefix))
}

// EvalContext carries the source being evaluated so that errors can point
// back into it.
type EvalContext struct {
	Filename string
	Source   string
}

// NewEvalContext creates a new evaluation context
func NewEvalContext(filename, source string) *EvalContext {
	return &EvalContext{
		Filename: filename,
		Source:   source,
	}
}

// CreateSourceError wraps err with the location of node, unless it already
// carries a location.
func (ctx *EvalContext) CreateSourceError(err error, node SourceLocatable) error {
	var sourceErr *SourceError
	if errors.As(err, &sourceErr) {
		return sourceErr
	}

	if node == nil {
		return err
	}
	location := node.GetSourceLocation()
	if location == nil {
		return err
	}

	return NewSourceError(err, location, ctx.Source)
}

// Highlight renders err with a source excerpt when it carries a location.
func Highlight(err error) string {
	var sourceErr *SourceError
	if errors.As(err, &sourceErr) {
		return sourceErr.Excerpt(DefaultExcerptStyles)
	}
	return err.Error()
}
