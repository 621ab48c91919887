package lsp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vito/conway/pkg/conway"
)

const shadowing = `let a = 1
{
  let a = 2
  a
}
a
b = a
`

func analyze(t *testing.T, src string) *ScopeAnalysis {
	t.Helper()
	nodes, err := conway.Parse("test.cy", []byte(src))
	require.NoError(t, err)
	return AnalyzeScopes(nodes)
}

func TestAnalyzeScopesShadowing(t *testing.T) {
	sa := analyze(t, shadowing)

	require.Len(t, sa.Definitions, 3)
	outer, inner, b := sa.Definitions[0], sa.Definitions[1], sa.Definitions[2]
	require.Equal(t, "a", outer.Name)
	require.Equal(t, 0, outer.Depth)
	require.Equal(t, "a", inner.Name)
	require.Equal(t, 1, inner.Depth)
	require.Equal(t, "b", b.Name)
	require.IsType(t, &conway.Assignment{}, b.Node)

	require.Len(t, sa.References, 3)
	require.Same(t, inner, sa.References[0].Def, "a inside the block")
	require.Same(t, outer, sa.References[1].Def, "a after the block")
	require.Same(t, outer, sa.References[2].Def, "a assigned to b")
}

func TestAnalyzeScopesReassignment(t *testing.T) {
	sa := analyze(t, "let x = 1\n{\n  x = 2\n}\nx\n")

	require.Len(t, sa.Definitions, 1)
	require.Len(t, sa.References, 2)
	for _, ref := range sa.References {
		require.Same(t, sa.Definitions[0], ref.Def)
	}
}

func TestAnalyzeScopesBlockLocalAssignment(t *testing.T) {
	sa := analyze(t, "{\n  y = 1\n  y\n}\ny\n")

	require.Len(t, sa.Definitions, 1)
	require.Equal(t, 1, sa.Definitions[0].Depth)

	require.Len(t, sa.References, 2)
	require.Same(t, sa.Definitions[0], sa.References[0].Def)
	require.Nil(t, sa.References[1].Def, "y is gone once the block ends")
}

func TestAnalyzeScopesLetValueSeesOuterBinding(t *testing.T) {
	sa := analyze(t, "let n = 1\n{\n  let n = n\n}\n")

	require.Len(t, sa.Definitions, 2)
	require.Len(t, sa.References, 1)
	require.Same(t, sa.Definitions[0], sa.References[0].Def)
}

func TestAnalyzeScopesUnbound(t *testing.T) {
	sa := analyze(t, "print ghost\n-1\n")

	require.Empty(t, sa.Definitions)
	require.Len(t, sa.References, 1)
	require.Equal(t, "ghost", sa.References[0].Name)
	require.Nil(t, sa.References[0].Def)
}

func TestScopeAnalysisAt(t *testing.T) {
	sa := analyze(t, shadowing)

	for _, example := range []struct {
		Name  string
		Pos   Position
		Def   int
		IsRef bool
	}{
		{"outer definition", Position{Line: 0, Character: 4}, 0, false},
		{"inner definition", Position{Line: 2, Character: 6}, 1, false},
		{"inner reference", Position{Line: 3, Character: 2}, 1, true},
		{"outer reference", Position{Line: 5, Character: 0}, 0, true},
		{"bare assignment", Position{Line: 6, Character: 0}, 2, false},
		{"assigned value", Position{Line: 6, Character: 4}, 0, true},
	} {
		t.Run(example.Name, func(t *testing.T) {
			def, ref := sa.At(example.Pos)
			require.Same(t, sa.Definitions[example.Def], def)
			if example.IsRef {
				require.NotNil(t, ref)
			} else {
				require.Nil(t, ref)
			}
		})
	}

	t.Run("keyword", func(t *testing.T) {
		def, ref := sa.At(Position{Line: 0, Character: 1})
		require.Nil(t, def)
		require.Nil(t, ref)
	})

	t.Run("just past the name", func(t *testing.T) {
		def, _ := sa.At(Position{Line: 0, Character: 5})
		require.Nil(t, def)
	})
}

func TestScopeAnalysisOccurrences(t *testing.T) {
	sa := analyze(t, shadowing)

	var lines []int
	for _, loc := range sa.Occurrences(sa.Definitions[0]) {
		lines = append(lines, loc.Line)
	}
	require.Equal(t, []int{1, 6, 7}, lines)

	inner := sa.Occurrences(sa.Definitions[1])
	require.Len(t, inner, 2)
	require.Equal(t, 3, inner[0].Line)
	require.Equal(t, 4, inner[1].Line)
}

func TestNameRange(t *testing.T) {
	rng := nameRange(&conway.SourceLocation{Line: 3, Column: 5, Length: 2}, "abc")
	require.Equal(t, Range{
		Start: Position{Line: 2, Character: 4},
		End:   Position{Line: 2, Character: 7},
	}, rng)

	require.Equal(t, Range{}, nameRange(nil, "abc"))
}

func TestRangeContains(t *testing.T) {
	rng := Range{
		Start: Position{Line: 1, Character: 4},
		End:   Position{Line: 2, Character: 2},
	}
	require.True(t, rng.Contains(Position{Line: 1, Character: 4}))
	require.True(t, rng.Contains(Position{Line: 1, Character: 80}))
	require.True(t, rng.Contains(Position{Line: 2, Character: 1}))
	require.False(t, rng.Contains(Position{Line: 2, Character: 2}))
	require.False(t, rng.Contains(Position{Line: 1, Character: 3}))
	require.False(t, rng.Contains(Position{Line: 0, Character: 5}))
	require.False(t, rng.Contains(Position{Line: 3, Character: 0}))
}
