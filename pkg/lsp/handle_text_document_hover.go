package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/creachadair/jrpc2"

	"github.com/vito/conway/pkg/conway"
)

func (h *Handler) handleTextDocumentHover(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params HoverParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	hover := h.hover(params.TextDocument.URI, params.Position)
	if hover == nil {
		return nil, nil
	}
	slog.InfoContext(ctx, "hover result", "uri", params.TextDocument.URI, "position", params.Position)
	return hover, nil
}

// hover shows the statement that bound the name under pos.
func (h *Handler) hover(uri DocumentURI, pos Position) *Hover {
	f := h.file(uri)
	if f == nil || f.Scopes == nil {
		return nil
	}

	def, ref := f.Scopes.At(pos)
	switch {
	case def != nil:
		rng := nameRange(def.Loc, def.Name)
		if ref != nil {
			rng = nameRange(ref.Loc, ref.Name)
		}
		scope := "top level"
		if def.Depth > 0 {
			scope = fmt.Sprintf("block, depth %d", def.Depth)
		}
		decl := strings.TrimSpace(conway.Format([]conway.Node{def.Node}))
		return &Hover{
			Contents: MarkupContent{
				Kind:  "markdown",
				Value: fmt.Sprintf("```conway\n%s\n```\nDefined at %s (%s)", decl, def.Loc, scope),
			},
			Range: &rng,
		}
	case ref != nil:
		rng := nameRange(ref.Loc, ref.Name)
		return &Hover{
			Contents: MarkupContent{
				Kind:  "markdown",
				Value: fmt.Sprintf("`%s` is not defined and evaluates to `Nothing`", ref.Name),
			},
			Range: &rng,
		}
	}
	return nil
}
