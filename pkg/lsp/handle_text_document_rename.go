package lsp

import (
	"context"
	"fmt"

	"github.com/creachadair/jrpc2"

	"github.com/vito/conway/pkg/conway"
)

func (h *Handler) handleTextDocumentRename(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params RenameParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	edit, err := h.rename(params.TextDocument.URI, params.Position, params.NewName)
	if err != nil {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "%v", err)
	}
	return edit, nil
}

// rename rewrites the binding under pos and every reference resolved to it,
// leaving shadowed or shadowing bindings of the same name alone.
func (h *Handler) rename(uri DocumentURI, pos Position, newName string) (*WorkspaceEdit, error) {
	if !validIdentifier(newName) {
		return nil, fmt.Errorf("%q is not a valid variable name", newName)
	}

	f := h.file(uri)
	if f == nil || f.Scopes == nil {
		return nil, fmt.Errorf("document not found: %v", uri)
	}

	def, _ := f.Scopes.At(pos)
	if def == nil {
		return nil, fmt.Errorf("no variable at %d:%d", pos.Line+1, pos.Character+1)
	}

	var edits []TextEdit
	for _, loc := range f.Scopes.Occurrences(def) {
		edits = append(edits, TextEdit{
			Range:   nameRange(loc, def.Name),
			NewText: newName,
		})
	}
	return &WorkspaceEdit{
		Changes: map[DocumentURI][]TextEdit{uri: edits},
	}, nil
}

func validIdentifier(name string) bool {
	if name == "" || conway.IsKeyword(name) {
		return false
	}
	for i, r := range name {
		if !isIdentifierChar(r) || (i == 0 && r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func isIdentifierChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}
