package lsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/creachadair/jrpc2"

	"github.com/vito/conway/pkg/conway"
)

const diagnosticSource = "conway"

// Handler serves Conway documents over JSON-RPC. It implements
// jrpc2.Assigner.
type Handler struct {
	mu       sync.Mutex
	files    map[DocumentURI]*File
	srv      *jrpc2.Server
	rootPath string
}

// File is an open document and everything derived from its text.
type File struct {
	LanguageID  string
	Text        string
	Version     int
	Nodes       []conway.Node // nil when the text does not parse
	Scopes      *ScopeAnalysis
	Diagnostics []Diagnostic
}

// NewHandler creates a handler with no open documents.
func NewHandler() *Handler {
	return &Handler{
		files: make(map[DocumentURI]*File),
	}
}

// SetServer gives the handler a way to push notifications to the client.
func (h *Handler) SetServer(srv *jrpc2.Server) {
	h.srv = srv
}

// Assign implements jrpc2.Assigner.
func (h *Handler) Assign(ctx context.Context, method string) jrpc2.Handler {
	slog.DebugContext(ctx, "handle", "method", method)

	switch method {
	case "initialize":
		return h.handleInitialize
	case "initialized":
		return noop
	case "shutdown":
		return h.handleShutdown
	case "exit":
		return h.handleExit
	case "textDocument/didOpen":
		return h.handleTextDocumentDidOpen
	case "textDocument/didChange":
		return h.handleTextDocumentDidChange
	case "textDocument/didSave":
		return noop
	case "textDocument/didClose":
		return h.handleTextDocumentDidClose
	case "textDocument/formatting":
		return h.handleTextDocumentFormatting
	case "textDocument/definition":
		return h.handleTextDocumentDefinition
	case "textDocument/hover":
		return h.handleTextDocumentHover
	case "textDocument/documentSymbol":
		return h.handleTextDocumentDocumentSymbol
	case "textDocument/rename":
		return h.handleTextDocumentRename
	}
	return nil
}

func noop(context.Context, *jrpc2.Request) (any, error) {
	return nil, nil
}

func isWindowsDrivePath(path string) bool {
	if len(path) < 4 {
		return false
	}
	return unicode.IsLetter(rune(path[0])) && path[1] == ':'
}

func isWindowsDriveURI(uri string) bool {
	if len(uri) < 4 {
		return false
	}
	return uri[0] == '/' && unicode.IsLetter(rune(uri[1])) && uri[2] == ':'
}

func fromURI(uri DocumentURI) (string, error) {
	u, err := url.ParseRequestURI(string(uri))
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("only file URIs are supported, got %v", u.Scheme)
	}
	if isWindowsDriveURI(u.Path) {
		u.Path = u.Path[1:]
	}
	return u.Path, nil
}

func toURI(path string) DocumentURI {
	if isWindowsDrivePath(path) {
		path = "/" + path
	}
	return DocumentURI((&url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}).String())
}

// file returns the current snapshot of a document. Snapshots are never
// mutated; updateFile replaces them wholesale.
func (h *Handler) file(uri DocumentURI) *File {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.files[uri]
}

func (h *Handler) openFile(uri DocumentURI, languageID string, version int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[uri] = &File{
		LanguageID: languageID,
		Version:    version,
		Scopes:     &ScopeAnalysis{},
	}
}

func (h *Handler) closeFile(uri DocumentURI) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, uri)
}

// updateFile re-analyzes a document, swaps in the new snapshot and
// publishes its diagnostics.
func (h *Handler) updateFile(ctx context.Context, uri DocumentURI, text string, version *int) error {
	prev := h.file(uri)
	if prev == nil {
		return fmt.Errorf("document not found: %v", uri)
	}

	f := &File{
		LanguageID:  prev.LanguageID,
		Text:        text,
		Version:     prev.Version,
		Scopes:      &ScopeAnalysis{},
		Diagnostics: []Diagnostic{},
	}
	if version != nil {
		f.Version = *version
	}

	filename := string(uri)
	if fp, err := fromURI(uri); err == nil {
		filename = fp
	}

	nodes, err := conway.Parse(filename, []byte(text))
	if err != nil {
		slog.WarnContext(ctx, "failed to parse document", "uri", uri, "error", err)
		f.Diagnostics = append(f.Diagnostics, errorToDiagnostic(err, SeverityError))
	} else {
		f.Nodes = nodes
		f.Scopes = AnalyzeScopes(nodes)
		f.Diagnostics = append(f.Diagnostics, check(ctx, filename, text, nodes, f.Scopes)...)
	}

	h.mu.Lock()
	cur, ok := h.files[uri]
	switch {
	case !ok:
		h.mu.Unlock()
		return fmt.Errorf("document closed during update: %v", uri)
	case cur.Version > f.Version:
		// a newer edit landed while this one was being analyzed
		h.mu.Unlock()
		return nil
	}
	h.files[uri] = f
	h.mu.Unlock()

	slog.InfoContext(ctx, "file updated", "uri", uri, "diagnostics", len(f.Diagnostics))
	h.publishDiagnostics(ctx, &PublishDiagnosticsParams{
		URI:         uri,
		Version:     f.Version,
		Diagnostics: f.Diagnostics,
	})
	return nil
}

// check reports unbound names and evaluates the document in a scratch
// environment to surface operator misuse.
func check(ctx context.Context, filename, text string, nodes []conway.Node, scopes *ScopeAnalysis) []Diagnostic {
	var diags []Diagnostic
	for _, ref := range scopes.References {
		if ref.Def != nil {
			continue
		}
		diags = append(diags, Diagnostic{
			Range:    nameRange(ref.Loc, ref.Name),
			Severity: SeverityWarning,
			Source:   diagnosticSource,
			Message:  fmt.Sprintf("undefined variable %q evaluates to Nothing", ref.Name),
		})
	}

	ev := conway.NewEvaluator(conway.NewEnvironment(), conway.WithSource(filename, text))
	if _, err := ev.EvalAll(ctx, nodes); err != nil {
		diags = append(diags, errorToDiagnostic(err, SeverityError))
	}
	return diags
}

func (h *Handler) publishDiagnostics(ctx context.Context, params *PublishDiagnosticsParams) {
	if h.srv == nil {
		return
	}
	if err := h.srv.Notify(ctx, "textDocument/publishDiagnostics", params); err != nil {
		slog.ErrorContext(ctx, "failed to publish diagnostics", "error", err)
	}
}

// errorToDiagnostic converts a Conway error to an LSP Diagnostic. Errors
// without a location are reported at the start of the document.
func errorToDiagnostic(err error, severity DiagnosticSeverity) Diagnostic {
	var loc *conway.SourceLocation
	var message string

	var parseErr *conway.ParseError
	var sourceErr *conway.SourceError
	switch {
	case errors.As(err, &parseErr):
		loc = parseErr.Loc
		message = parseErr.Error()
		if loc != nil {
			message = strings.TrimPrefix(message, loc.String()+": ")
		}
	case errors.As(err, &sourceErr):
		loc = sourceErr.Location
		message = sourceErr.Inner.Error()
	default:
		message = err.Error()
	}

	rng := Range{End: Position{Character: 1}}
	if loc != nil {
		// LSP uses 0-based lines and columns, Conway uses 1-based
		start := Position{Line: loc.Line - 1, Character: loc.Column - 1}
		rng = Range{
			Start: start,
			End:   Position{Line: start.Line, Character: start.Character + max(1, loc.Length)},
		}
	}

	return Diagnostic{
		Range:    rng,
		Severity: severity,
		Source:   diagnosticSource,
		Message:  message,
	}
}
