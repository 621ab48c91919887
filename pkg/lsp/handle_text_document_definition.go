package lsp

import (
	"context"

	"github.com/creachadair/jrpc2"
)

func (h *Handler) handleTextDocumentDefinition(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params DocumentDefinitionParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	loc := h.definition(params.TextDocument.URI, params.Position)
	if loc == nil {
		return nil, nil
	}
	return loc, nil
}

// definition finds where the name under pos was bound, following the same
// scoping rules as evaluation.
func (h *Handler) definition(uri DocumentURI, pos Position) *Location {
	f := h.file(uri)
	if f == nil || f.Scopes == nil {
		return nil
	}

	def, _ := f.Scopes.At(pos)
	if def == nil {
		return nil
	}
	return &Location{
		URI:   uri,
		Range: nameRange(def.Loc, def.Name),
	}
}
