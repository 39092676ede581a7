package nodelink

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/blockorder/pkg/cfg"
	"github.com/matzehuels/blockorder/pkg/layout"
)

func loopProgram(t *testing.T) *cfg.Program {
	t.Helper()
	var nodes []cfg.NodeDoc
	for i := 0; i < 5; i++ {
		nodes = append(nodes, cfg.NodeDoc{Ordinal: uint64(i + 1), BBIndex: i, Size: 10})
	}
	p, err := cfg.Build(cfg.Document{
		Functions: []cfg.FunctionDoc{{Names: []string{"loop"}, Nodes: nodes}},
		Edges: []cfg.EdgeDoc{
			{Src: 1, Sink: 2, Weight: 10},
			{Src: 2, Sink: 4, Weight: 100},
			{Src: 4, Sink: 2, Weight: 100},
			{Src: 4, Sink: 5, Weight: 10},
			{Src: 2, Sink: 3},
			{Src: 3, Sink: 4},
		},
	})
	require.NoError(t, err)
	return p
}

func TestToDOTPlain(t *testing.T) {
	g := loopProgram(t).Graphs[0]
	dot := ToDOT(g, nil, Options{})

	assert.True(t, strings.HasPrefix(dot, "digraph \"loop\" {"))
	for _, id := range []string{"bb0", "bb1", "bb2", "bb3", "bb4"} {
		assert.Contains(t, dot, "  "+id+" [")
	}
	assert.Contains(t, dot, "bb1 -> bb3 [label=\"100\", penwidth=5.0]")
	assert.Contains(t, dot, "bb1 -> bb2 [style=dotted")
	assert.NotContains(t, dot, "subgraph")
	assert.NotContains(t, dot, "#0")
}

func TestToDOTWithLayout(t *testing.T) {
	p := loopProgram(t)
	l := layout.NewCodeLayout(layout.DefaultParams(), p.Graphs).OrderAll()
	fn := l.Functions[0]

	dot := ToDOT(fn.CFG, fn, Options{ShowOrder: true, Detailed: true})
	assert.Contains(t, dot, "subgraph \"cluster_0\"")
	assert.Contains(t, dot, "bb3 #2")
	assert.Contains(t, dot, "ordinal: 4")
	assert.Contains(t, dot, "bb1 -> bb3 [style=dashed")
	assert.Contains(t, dot, "bb3 -> bb4 [style=dashed")

	hidden := ToDOT(fn.CFG, fn, Options{HideCold: true})
	assert.NotContains(t, hidden, "bb2 [")
	assert.NotContains(t, hidden, "-> bb2")
}

func TestHeatColor(t *testing.T) {
	assert.Equal(t, heat[0], heatColor(0, 100))
	assert.Equal(t, heat[len(heat)-1], heatColor(100, 100))
	assert.Equal(t, heat[0], heatColor(5, 0))
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 0.00 100.50 200.00" xmlns="x"><g/></svg>`)
	out := string(normalizeViewBox(in))
	assert.Contains(t, out, `viewBox="0 0 100.50 200.00"`)
	assert.Contains(t, out, `width="100"`)

	plain := []byte("<svg><g/></svg>")
	assert.Equal(t, plain, normalizeViewBox(plain))
}

func TestRenderSVG(t *testing.T) {
	if testing.Short() {
		t.Skip("graphviz rendering is slow")
	}
	g := loopProgram(t).Graphs[0]
	svg, err := RenderSVG(context.Background(), ToDOT(g, nil, Options{}))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
	assert.Contains(t, string(svg), "bb0")

	_, err = RenderSVG(context.Background(), "digraph {")
	assert.Error(t, err)
}
