package lsp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vito/conway/pkg/conway"
)

const testURI = DocumentURI("file:///test.cy")

func openTestFile(t *testing.T, text string) *Handler {
	t.Helper()
	h := NewHandler()
	h.openFile(testURI, "conway", 1)
	require.NoError(t, h.updateFile(context.Background(), testURI, text, nil))
	return h
}

func TestErrorToDiagnostic(t *testing.T) {
	t.Run("parse error with location", func(t *testing.T) {
		err := &conway.ParseError{
			Rule:     "Assignment",
			Expected: []string{"identifier"},
			Found:    "'='",
			Loc: &conway.SourceLocation{
				Filename: "test.cy",
				Line:     5,
				Column:   10,
				Length:   8,
			},
		}

		diag := errorToDiagnostic(err, SeverityError)
		require.Equal(t, "syntax error in assignment: expected identifier, found '='", diag.Message)
		require.Equal(t, 4, diag.Range.Start.Line)
		require.Equal(t, 9, diag.Range.Start.Character)
		require.Equal(t, 17, diag.Range.End.Character)
		require.Equal(t, SeverityError, diag.Severity)
		require.Equal(t, "conway", diag.Source)
	})

	t.Run("source error", func(t *testing.T) {
		err := conway.NewSourceError(
			&conway.TypeError{Op: conway.Minus, Value: conway.BoolValue{Val: true}},
			&conway.SourceLocation{Filename: "test.cy", Line: 2, Column: 3},
			"",
		)

		diag := errorToDiagnostic(err, SeverityWarning)
		require.Equal(t, "operator - expects Int, got Boolean (true)", diag.Message)
		require.Equal(t, Position{Line: 1, Character: 2}, diag.Range.Start)
		require.Equal(t, Position{Line: 1, Character: 3}, diag.Range.End, "zero length still covers one character")
		require.Equal(t, SeverityWarning, diag.Severity)
	})

	t.Run("error without location", func(t *testing.T) {
		diag := errorToDiagnostic(errors.New("some error"), SeverityError)
		require.Equal(t, "some error", diag.Message)
		require.Equal(t, Range{End: Position{Character: 1}}, diag.Range)
	})
}

func TestUpdateFileDiagnostics(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		h := openTestFile(t, "let a = 1\n{\n  a\n}\n")
		f := h.file(testURI)
		require.Empty(t, f.Diagnostics)
		require.Len(t, f.Nodes, 2)
		require.Len(t, f.Scopes.Definitions, 1)
	})

	t.Run("syntax error", func(t *testing.T) {
		h := openTestFile(t, "let = 1\n")
		f := h.file(testURI)
		require.Nil(t, f.Nodes)
		require.Empty(t, f.Scopes.Definitions)
		require.Len(t, f.Diagnostics, 1)

		diag := f.Diagnostics[0]
		require.Equal(t, SeverityError, diag.Severity)
		require.Equal(t, "syntax error in assignment: expected identifier, found '='", diag.Message)
		require.Equal(t, Position{Line: 0, Character: 4}, diag.Range.Start)
	})

	t.Run("undefined variable", func(t *testing.T) {
		h := openTestFile(t, "let a = 1\nghost\n")
		f := h.file(testURI)
		require.Len(t, f.Diagnostics, 1)

		diag := f.Diagnostics[0]
		require.Equal(t, SeverityWarning, diag.Severity)
		require.Equal(t, `undefined variable "ghost" evaluates to Nothing`, diag.Message)
		require.Equal(t, Range{
			Start: Position{Line: 1, Character: 0},
			End:   Position{Line: 1, Character: 5},
		}, diag.Range)
	})

	t.Run("operator error", func(t *testing.T) {
		h := openTestFile(t, "let a = 1\n{\n  -true\n}\n")
		f := h.file(testURI)
		require.Len(t, f.Diagnostics, 1)

		diag := f.Diagnostics[0]
		require.Equal(t, SeverityError, diag.Severity)
		require.Equal(t, "operator - expects Int, got Boolean (true)", diag.Message)
		require.Equal(t, Position{Line: 2, Character: 2}, diag.Range.Start)
	})

	t.Run("change replaces diagnostics", func(t *testing.T) {
		h := openTestFile(t, "-true\n")
		require.Len(t, h.file(testURI).Diagnostics, 1)

		version := 2
		require.NoError(t, h.updateFile(context.Background(), testURI, "-1\n", &version))
		f := h.file(testURI)
		require.Empty(t, f.Diagnostics)
		require.Equal(t, 2, f.Version)
		require.Equal(t, "-1\n", f.Text)
	})

	t.Run("unopened document", func(t *testing.T) {
		h := NewHandler()
		err := h.updateFile(context.Background(), testURI, "1", nil)
		require.ErrorContains(t, err, "document not found")
	})
}

func TestCloseFile(t *testing.T) {
	h := openTestFile(t, "1\n")
	h.closeFile(testURI)
	require.Nil(t, h.file(testURI))
	require.Nil(t, h.definition(testURI, Position{}))
	require.Empty(t, h.documentSymbols(testURI))
}

func TestDefinition(t *testing.T) {
	h := openTestFile(t, shadowing)

	loc := h.definition(testURI, Position{Line: 5, Character: 0})
	require.NotNil(t, loc)
	require.Equal(t, testURI, loc.URI)
	require.Equal(t, Range{
		Start: Position{Line: 0, Character: 4},
		End:   Position{Line: 0, Character: 5},
	}, loc.Range)

	loc = h.definition(testURI, Position{Line: 3, Character: 2})
	require.NotNil(t, loc)
	require.Equal(t, Position{Line: 2, Character: 6}, loc.Range.Start)

	require.Nil(t, h.definition(testURI, Position{Line: 1, Character: 0}))
}

func TestHover(t *testing.T) {
	h := openTestFile(t, shadowing+"ghost\n")

	t.Run("block definition", func(t *testing.T) {
		hover := h.hover(testURI, Position{Line: 3, Character: 2})
		require.NotNil(t, hover)
		require.Equal(t, "markdown", hover.Contents.Kind)
		require.Contains(t, hover.Contents.Value, "```conway\nlet a = 2\n```")
		require.Contains(t, hover.Contents.Value, "block, depth 1")
		require.Equal(t, Position{Line: 3, Character: 2}, hover.Range.Start)
	})

	t.Run("top level definition", func(t *testing.T) {
		hover := h.hover(testURI, Position{Line: 0, Character: 4})
		require.NotNil(t, hover)
		require.Contains(t, hover.Contents.Value, "let a = 1")
		require.Contains(t, hover.Contents.Value, "top level")
	})

	t.Run("unbound", func(t *testing.T) {
		hover := h.hover(testURI, Position{Line: 7, Character: 2})
		require.NotNil(t, hover)
		require.Equal(t, "`ghost` is not defined and evaluates to `Nothing`", hover.Contents.Value)
	})

	t.Run("nothing there", func(t *testing.T) {
		require.Nil(t, h.hover(testURI, Position{Line: 1, Character: 0}))
	})
}

func TestDocumentSymbols(t *testing.T) {
	h := openTestFile(t, shadowing)

	symbols := h.documentSymbols(testURI)
	require.Len(t, symbols, 3)

	require.Equal(t, "a", symbols[0].Name)
	require.Equal(t, VariableSymbol, symbols[0].Kind)
	require.Empty(t, symbols[0].ContainerName)

	require.Equal(t, "a", symbols[1].Name)
	require.Equal(t, "block", symbols[1].ContainerName)
	require.Equal(t, Position{Line: 2, Character: 6}, symbols[1].Location.Range.Start)

	require.Equal(t, "b", symbols[2].Name)
}

func TestRename(t *testing.T) {
	h := openTestFile(t, shadowing)

	t.Run("outer binding", func(t *testing.T) {
		edit, err := h.rename(testURI, Position{Line: 5, Character: 0}, "z")
		require.NoError(t, err)

		edits := edit.Changes[testURI]
		require.Len(t, edits, 3)
		var starts []Position
		for _, e := range edits {
			require.Equal(t, "z", e.NewText)
			starts = append(starts, e.Range.Start)
		}
		require.Equal(t, []Position{
			{Line: 0, Character: 4},
			{Line: 5, Character: 0},
			{Line: 6, Character: 4},
		}, starts)
	})

	t.Run("shadowing binding", func(t *testing.T) {
		edit, err := h.rename(testURI, Position{Line: 2, Character: 6}, "inner")
		require.NoError(t, err)
		require.Len(t, edit.Changes[testURI], 2)
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "let", "print", "9lives", "a-b"} {
			_, err := h.rename(testURI, Position{Line: 0, Character: 4}, name)
			require.Error(t, err, name)
		}
	})

	t.Run("no variable", func(t *testing.T) {
		_, err := h.rename(testURI, Position{Line: 1, Character: 0}, "z")
		require.ErrorContains(t, err, "no variable at 2:1")
	})
}

func TestFormatEdits(t *testing.T) {
	t.Run("reformats whole document", func(t *testing.T) {
		text := "let   a=1\n{ a }"
		want, err := conway.FormatSource("", []byte(text))
		require.NoError(t, err)

		edits := formatEdits(text)
		require.Len(t, edits, 1)
		require.Equal(t, want, edits[0].NewText)
		require.Equal(t, Range{
			Start: Position{Line: 0, Character: 0},
			End:   Position{Line: 1, Character: 5},
		}, edits[0].Range)
	})

	t.Run("already formatted", func(t *testing.T) {
		text, err := conway.FormatSource("", []byte("let a = 1\n"))
		require.NoError(t, err)
		require.Empty(t, formatEdits(text))
	})

	t.Run("syntax error", func(t *testing.T) {
		require.Empty(t, formatEdits("let = 1"))
	})
}

func TestURIs(t *testing.T) {
	uri := toURI("/tmp/some dir/main.cy")
	require.Equal(t, DocumentURI("file:///tmp/some%20dir/main.cy"), uri)

	path, err := fromURI(uri)
	require.NoError(t, err)
	require.Equal(t, "/tmp/some dir/main.cy", path)

	_, err = fromURI("https://example.com/main.cy")
	require.ErrorContains(t, err, "only file URIs are supported")
}

func TestInitializeResult(t *testing.T) {
	res := NewHandler().initializeResult()
	require.Equal(t, TDSKFull, res.Capabilities.TextDocumentSync)
	require.True(t, res.Capabilities.DefinitionProvider)
	require.True(t, res.Capabilities.RenameProvider)
	require.Equal(t, "conway", res.ServerInfo.Name)
}

func TestUpdateReplacesSnapshot(t *testing.T) {
	h := openTestFile(t, "let a = 1\na\n")
	before := h.file(testURI)

	version := 2
	require.NoError(t, h.updateFile(context.Background(), testURI, "let b = 2\n", &version))

	require.Equal(t, "let a = 1\na\n", before.Text)
	require.Equal(t, 1, before.Version)
	require.Len(t, before.Scopes.Definitions, 1)
	require.Equal(t, "a", before.Scopes.Definitions[0].Name)

	after := h.file(testURI)
	require.Equal(t, "let b = 2\n", after.Text)
	require.Equal(t, "b", after.Scopes.Definitions[0].Name)
}

func TestUpdateIgnoresStaleVersion(t *testing.T) {
	h := NewHandler()
	h.openFile(testURI, "conway", 5)

	version := 3
	require.NoError(t, h.updateFile(context.Background(), testURI, "let old = 1\n", &version))
	require.Equal(t, 5, h.file(testURI).Version)
	require.Empty(t, h.file(testURI).Text)
}

// Run with -race: readers hold snapshots while updates keep landing.
func TestConcurrentUpdatesAndReads(t *testing.T) {
	h := openTestFile(t, "let a = 1\na\n")
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			text := fmt.Sprintf("let a = %d\n{\n  a\n}\n", i)
			if i%2 == 1 {
				text = "let a = (\n"
			}
			if err := h.updateFile(ctx, testURI, text, nil); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			h.hover(testURI, Position{Line: 0, Character: 4})
			h.definition(testURI, Position{Line: 2, Character: 2})
			h.documentSymbols(testURI)
			formatEdits(h.file(testURI).Text)
		}
	}()
	wg.Wait()

	require.Equal(t, "let a = (\n", h.file(testURI).Text)
	require.NotEmpty(t, h.file(testURI).Diagnostics)
}
