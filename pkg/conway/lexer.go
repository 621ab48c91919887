package conway

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TokenKind represents the kind of token.
type TokenKind int

const (
	EOF TokenKind = iota

	// Literals & identifiers
	INT
	STRING
	TRUE
	FALSE
	IDENT

	// Keywords
	VAR
	LET
	PRINT

	// Punctuation
	PLUS
	MINUS
	BANG
	ASSIGN
	LBRACE
	RBRACE
	SEMICOLON
)

var tokenNames = map[TokenKind]string{
	EOF:       "end of input",
	INT:       "integer",
	STRING:    "string",
	TRUE:      "'true'",
	FALSE:     "'false'",
	IDENT:     "identifier",
	VAR:       "'var'",
	LET:       "'let'",
	PRINT:     "'print'",
	PLUS:      "'+'",
	MINUS:     "'-'",
	BANG:      "'!'",
	ASSIGN:    "'='",
	LBRACE:    "'{'",
	RBRACE:    "'}'",
	SEMICOLON: "';'",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

var keywords = map[string]TokenKind{
	"true":  TRUE,
	"false": FALSE,
	"var":   VAR,
	"let":   LET,
	"print": PRINT,
}

// IsKeyword reports whether name is reserved and cannot be used as an
// identifier.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}

// Token is a lexical token. For STRING tokens Text holds the unescaped
// contents; for everything else it is the raw source text.
type Token struct {
	Kind TokenKind
	Text string
	Loc  *SourceLocation
}

func (t Token) describe() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case STRING:
		return fmt.Sprintf("string %q", t.Text)
	case INT, IDENT:
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	default:
		return t.Kind.String()
	}
}

// Comment represents a comment with its location
type Comment struct {
	Line       int    // 1-indexed line number
	Text       string // comment text including the # prefix
	IsTrailing bool   // true if comment is after code on the same line
}

type lexer struct {
	filename string
	src      []byte
	pos      int
	line     int
	col      int

	// codeOnLine is set once a token has been emitted on the current line.
	codeOnLine bool

	tokens   []Token
	comments []Comment
}

// Lex splits source into tokens. Comments are returned separately and never
// reach the parser.
func Lex(filename string, source []byte) ([]Token, []Comment, error) {
	l := &lexer{
		filename: filename,
		src:      source,
		line:     1,
		col:      1,
	}
	if err := l.run(); err != nil {
		return nil, nil, err
	}
	return l.tokens, l.comments, nil
}

func (l *lexer) loc(length int) *SourceLocation {
	return &SourceLocation{
		Filename: l.filename,
		Line:     l.line,
		Column:   l.col,
		Length:   length,
	}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRune(l.src[l.pos:])
	return r
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRune(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
		l.codeOnLine = false
	} else {
		l.col++
	}
	return r
}

func (l *lexer) emit(kind TokenKind, text string, loc *SourceLocation) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, Loc: loc})
	l.codeOnLine = true
}

func (l *lexer) fail(loc *SourceLocation, format string, args ...any) error {
	return &ParseError{
		Rule:    "Token",
		Message: fmt.Sprintf(format, args...),
		Loc:     loc,
	}
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		r := l.peek()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.advance()
		case r == '#':
			l.comment()
		case r == '"':
			if err := l.str(); err != nil {
				return err
			}
		case isDigit(r):
			l.number()
		case isIdentStart(r):
			l.ident()
		default:
			loc := l.loc(1)
			kind, ok := punctuation[r]
			if !ok {
				return l.fail(loc, "unexpected character %q", r)
			}
			l.advance()
			l.emit(kind, string(r), loc)
		}
	}
	l.emit(EOF, "", l.loc(1))
	return nil
}

var punctuation = map[rune]TokenKind{
	'+': PLUS,
	'-': MINUS,
	'!': BANG,
	'=': ASSIGN,
	'{': LBRACE,
	'}': RBRACE,
	';': SEMICOLON,
}

func (l *lexer) comment() {
	line := l.line
	trailing := l.codeOnLine
	start := l.pos
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
	l.comments = append(l.comments, Comment{
		Line:       line,
		Text:       strings.TrimRight(string(l.src[start:l.pos]), " \t\r"),
		IsTrailing: trailing,
	})
}

func (l *lexer) str() error {
	loc := l.loc(0)
	start := l.pos
	l.advance() // opening quote

	var sb strings.Builder
	for {
		if l.pos >= len(l.src) || l.peek() == '\n' {
			loc.Length = utf8.RuneCount(l.src[start:l.pos])
			return l.fail(loc, "unterminated string literal")
		}
		r := l.advance()
		if r == '"' {
			break
		}
		if r != '\\' {
			sb.WriteRune(r)
			continue
		}
		escLoc := l.loc(2)
		escLoc.Column--
		if l.pos >= len(l.src) {
			loc.Length = utf8.RuneCount(l.src[start:l.pos])
			return l.fail(loc, "unterminated string literal")
		}
		switch esc := l.advance(); esc {
		case '"':
			sb.WriteByte('"')
		case '\\':
			sb.WriteByte('\\')
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		default:
			return l.fail(escLoc, "unknown escape sequence \\%c", esc)
		}
	}
	loc.Length = utf8.RuneCount(l.src[start:l.pos])
	l.emit(STRING, sb.String(), loc)
	return nil
}

func (l *lexer) number() {
	loc := l.loc(0)
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	loc.Length = utf8.RuneCount(l.src[start:l.pos])
	l.emit(INT, string(l.src[start:l.pos]), loc)
}

func (l *lexer) ident() {
	loc := l.loc(0)
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	loc.Length = utf8.RuneCount(l.src[start:l.pos])
	text := string(l.src[start:l.pos])
	if kind, ok := keywords[text]; ok {
		l.emit(kind, text, loc)
		return
	}
	l.emit(IDENT, text, loc)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}
