package lsp

import (
	"context"
	"strings"

	"github.com/creachadair/jrpc2"

	"github.com/vito/conway/pkg/conway"
)

func (h *Handler) handleTextDocumentFormatting(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params DocumentFormattingParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	f := h.file(params.TextDocument.URI)
	if f == nil {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "document not found: %v", params.TextDocument.URI)
	}

	return formatEdits(f.Text), nil
}

// formatEdits returns a single edit replacing the whole document with its
// formatted text, or no edits if it is already formatted or does not parse.
func formatEdits(text string) []TextEdit {
	formatted, err := conway.FormatSource("", []byte(text))
	if err != nil {
		// the parse error is already shown as a diagnostic
		return []TextEdit{}
	}
	if formatted == text {
		return []TextEdit{}
	}

	lines := strings.Split(text, "\n")
	return []TextEdit{
		{
			Range: Range{
				Start: Position{Line: 0, Character: 0},
				End:   Position{Line: len(lines) - 1, Character: len(lines[len(lines)-1])},
			},
			NewText: formatted,
		},
	}
}
