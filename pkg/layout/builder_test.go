package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/blockorder/pkg/cfg"
)

func TestBuilderInit(t *testing.T) {
	g := threeBranches(t)
	b := NewNodeChainBuilder(NewScorer(DefaultParams()), g)

	b.InitNodeChains()
	require.Len(t, b.Chains(), 5, "cold block 6 gets no chain")
	assert.Nil(t, b.Chain(6))

	b.InitChainEdges()
	tests := []struct {
		id      uint64
		out, in int
	}{
		{1, 1, 0},
		{2, 1, 1},
		{3, 1, 0},
		{4, 0, 1},
		{5, 0, 1},
	}
	for _, tt := range tests {
		c := b.Chain(tt.id)
		require.NotNil(t, c, "chain %d", tt.id)
		assert.Len(t, c.OutChains(), tt.out, "out edges of chain %d", tt.id)
		assert.Len(t, c.InChains(), tt.in, "in edges of chain %d", tt.id)
		assert.Zero(t, c.Score(), "singleton chain %d", tt.id)
	}
	assert.Equal(t, uint64(110), b.Chain(1).OutEdges(2).Weight)
	assert.Equal(t, uint64(110), b.Chain(2).InEdges(1).Weight)

	b.InitChainAssemblies()
	assert.Equal(t, 5, b.PendingAssemblies())
	assert.Nil(t, b.BestAssembly(2, 1), "entry block must stay first")
	a := b.BestAssembly(1, 2)
	require.NotNil(t, a)
	assert.Equal(t, SU, a.Order)
	assert.Equal(t, int64(110*10*1024*640), a.ScoreGain)
}

func TestBuilderMerge(t *testing.T) {
	b := NewNodeChainBuilder(NewScorer(DefaultParams()), threeBranches(t))
	b.InitNodeChains()
	b.InitChainEdges()
	b.InitChainAssemblies()
	b.KeepMergingBestChains()

	assert.Zero(t, b.PendingAssemblies())
	require.Len(t, b.Chains(), 2)
	assert.Equal(t, []uint64{1, 2, 5}, ordinals(b.Chain(1)))
	assert.Equal(t, []uint64{3, 4}, ordinals(b.Chain(3)))
	assert.Equal(t, 3, b.Merges())

	c := b.Chain(1)
	assert.Equal(t, uint64(30), c.Size())
	assert.Equal(t, uint64(110+110+100), c.Freq())
	assert.InDelta(t, 320.0/30, c.Density(), 1e-9)
	assert.Equal(t, int64(210*10*1024*640), c.Score())
	assert.Equal(t, []uint64{1}, c.OutChains(), "only internal edges remain")
	assert.Same(t, c, b.ChainOf(b.graph.NodeByOrdinal(5)))

	b.CoalesceChains()
	require.Len(t, b.Chains(), 1)
	assert.Equal(t, []uint64{1, 2, 5, 3, 4}, ordinals(b.Chain(1)))
	assert.Equal(t, []int{0, 1, 4, 2, 3}, b.Chain(1).BBIndexes())
}

func TestBuildChains(t *testing.T) {
	tests := []struct {
		name string
		prog func(*testing.T) *cfg.Program
		want []int
	}{
		{"conditional", conditional, []int{0, 2, 3, 1}},
		{"loop", loop, []int{0, 1, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.prog(t).Graphs[0]
			c := NewNodeChainBuilder(NewScorer(DefaultParams()), g).BuildChains()
			require.NotNil(t, c)
			assert.Equal(t, tt.want, c.BBIndexes())
		})
	}
}

func TestBuildChainsCold(t *testing.T) {
	p := buildProgram(t, []cfg.FunctionDoc{fn("cold", 1, 3)}, edge(1, 2, 0))
	assert.Nil(t, NewNodeChainBuilder(NewScorer(DefaultParams()), p.Graphs[0]).BuildChains())
}

func TestBuildChainsEntryFirst(t *testing.T) {
	// The hottest edge runs into the entry block, so a naive merge would put
	// block 2 in front of it.
	p := buildProgram(t, []cfg.FunctionDoc{fn("back", 1, 3)},
		edge(2, 1, 500),
		edge(1, 3, 10),
	)
	c := NewNodeChainBuilder(NewScorer(DefaultParams()), p.Graphs[0]).BuildChains()
	require.NotNil(t, c)
	assert.Equal(t, 0, c.BBIndexes()[0])
	assert.ElementsMatch(t, []int{0, 1, 2}, c.BBIndexes())
}

func TestBuildChainsWithoutSplitting(t *testing.T) {
	params := DefaultParams()
	params.ChainSplit = false
	for _, prog := range []func(*testing.T) *cfg.Program{conditional, loop} {
		g := prog(t).Graphs[0]
		b := NewNodeChainBuilder(NewScorer(params), g)
		b.InitNodeChains()
		b.InitChainEdges()
		b.InitChainAssemblies()
		for _, c := range b.Chains() {
			for _, k := range c.OutChains() {
				if a := b.BestAssembly(c.ID(), k); a != nil {
					assert.Zero(t, a.SplitPos)
					assert.Equal(t, SU, a.Order)
				}
			}
		}
		b.KeepMergingBestChains()
		b.CoalesceChains()
		assert.Len(t, b.Chains(), 1)
	}
}

func TestBestAssemblySingletonSplit(t *testing.T) {
	p := buildProgram(t, []cfg.FunctionDoc{fn("f", 1, 4)},
		edge(2, 3, 10),
		edge(4, 2, 0),
		edge(1, 4, 7),
	)
	b := NewNodeChainBuilder(NewScorer(DefaultParams()), p.Graphs[0])
	b.InitNodeChains()
	b.InitChainEdges()

	split, unsplit := b.Chain(2), b.Chain(3)
	a, ok := bestAssembly(b.scorer, split, unsplit, nil)
	require.True(t, ok)
	assert.Equal(t, SU, a.Order)
	assert.Zero(t, a.SplitPos)
}

func TestChainDensityZeroSize(t *testing.T) {
	c := newNodeChain(&cfg.Node{Ordinal: 3, Freq: 7})
	assert.Equal(t, 7.0, c.Density())
}

func TestMergedNodes(t *testing.T) {
	nodes := func(ords ...uint64) []*cfg.Node {
		out := make([]*cfg.Node, len(ords))
		for i, o := range ords {
			out[i] = &cfg.Node{Ordinal: o}
		}
		return out
	}
	s := &NodeChain{id: 1, nodes: nodes(1, 2, 3)}
	u := &NodeChain{id: 9, nodes: nodes(9)}

	tests := []struct {
		pos   int
		order MergeOrder
		want  []uint64
	}{
		{0, SU, []uint64{1, 2, 3, 9}},
		{1, S2S1U, []uint64{2, 3, 1, 9}},
		{1, S1US2, []uint64{1, 9, 2, 3}},
		{2, US2S1, []uint64{9, 3, 1, 2}},
		{2, S2US1, []uint64{3, 9, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			a := &NodeChainAssembly{SplitPos: tt.pos, Order: tt.order}
			merged := &NodeChain{nodes: a.mergedNodes(s, u)}
			assert.Equal(t, tt.want, ordinals(merged))
		})
	}
}
