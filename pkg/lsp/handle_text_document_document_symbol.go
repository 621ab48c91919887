package lsp

import (
	"context"

	"github.com/creachadair/jrpc2"
)

func (h *Handler) handleTextDocumentDocumentSymbol(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params DocumentSymbolParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	return h.documentSymbols(params.TextDocument.URI), nil
}

// documentSymbols lists every variable definition in source order. Names
// bound inside blocks are marked with a "block" container.
func (h *Handler) documentSymbols(uri DocumentURI) []SymbolInformation {
	symbols := []SymbolInformation{}
	f := h.file(uri)
	if f == nil || f.Scopes == nil {
		return symbols
	}

	for _, def := range f.Scopes.Definitions {
		sym := SymbolInformation{
			Name: def.Name,
			Kind: VariableSymbol,
			Location: Location{
				URI:   uri,
				Range: nameRange(def.Loc, def.Name),
			},
		}
		if def.Depth > 0 {
			sym.ContainerName = "block"
		}
		symbols = append(symbols, sym)
	}
	return symbols
}
