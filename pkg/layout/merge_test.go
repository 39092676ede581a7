package layout

import (
	"container/heap"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/blockorder/pkg/cfg"
)

// randomGraph builds a function of 2 to 26 blocks with random sizes and
// random weighted branches, self-loops and zero-weight edges included.
func randomGraph(t *testing.T, rng *rand.Rand, i int) *cfg.Graph {
	t.Helper()
	n := 2 + rng.IntN(25)
	nodes := make([]cfg.NodeDoc, n)
	for j := range nodes {
		nodes[j] = cfg.NodeDoc{Ordinal: uint64(j + 1), BBIndex: j, Size: uint64(1 + rng.IntN(64))}
	}
	var edges []cfg.EdgeDoc
	for range rng.IntN(3 * n) {
		src, sink := 1+rng.IntN(n), 1+rng.IntN(n)
		var w uint32
		if rng.IntN(4) > 0 {
			w = uint32(rng.IntN(1000))
		}
		edges = append(edges, edge(uint64(src), uint64(sink), w))
	}
	name := fmt.Sprintf("random_%d", i)
	p := buildProgram(t, []cfg.FunctionDoc{{Names: []string{name}, Nodes: nodes}}, edges...)
	return p.Graph(name)
}

func totalScore(b *NodeChainBuilder) int64 {
	var total int64
	for _, c := range b.chains {
		total += c.Score()
	}
	return total
}

// checkChains verifies that the live chains partition the hot blocks, that
// cached scores and sizes are current and that the entry block leads its
// chain.
func checkChains(t *testing.T, b *NodeChainBuilder) {
	t.Helper()
	owner := make(map[*cfg.Node]*NodeChain)
	for id, c := range b.chains {
		require.Equal(t, id, c.ID())
		var size, freq uint64
		for _, n := range c.nodes {
			require.Nil(t, owner[n], "block %d is in two chains", n.Ordinal)
			owner[n] = c
			require.Same(t, c, b.chainOf[n], "chainOf disagrees for block %d", n.Ordinal)
			size += n.Size
			freq += n.Freq
		}
		require.Equal(t, size, c.Size(), "size of %s", c)
		require.Equal(t, freq, c.Freq(), "freq of %s", c)
		require.Equal(t, b.chainScore(c), c.Score(), "score of %s", c)
	}
	for _, n := range b.graph.Nodes {
		if n.IsHot() {
			require.NotNil(t, owner[n], "hot block %d is in no chain", n.Ordinal)
		} else {
			require.Nil(t, owner[n], "cold block %d is in a chain", n.Ordinal)
		}
	}
	if c := b.chainOf[b.graph.EntryNode()]; c != nil {
		require.Same(t, b.graph.EntryNode(), c.nodes[0], "entry block must lead %s", c)
	}
}

func TestMergeInvariants(t *testing.T) {
	graphs := []*cfg.Graph{
		threeBranches(t),
		conditional(t).Graphs[0],
		loop(t).Graphs[0],
	}
	graphs = append(graphs, multiFunction(t).Graphs...)
	rng := rand.New(rand.NewPCG(7, 42))
	for i := range 300 {
		graphs = append(graphs, randomGraph(t, rng, i))
	}

	small := DefaultParams()
	small.ChainSplitThreshold = 3
	unsplit := DefaultParams()
	unsplit.ChainSplit = false
	params := []struct {
		name string
		p    Params
	}{
		{"default", DefaultParams()},
		{"split threshold 3", small},
		{"no split", unsplit},
	}

	for _, pp := range params {
		t.Run(pp.name, func(t *testing.T) {
			scorer := NewScorer(pp.p)
			for _, g := range graphs {
				b := NewNodeChainBuilder(scorer, g)
				b.InitNodeChains()
				b.InitChainEdges()
				b.InitChainAssemblies()
				checkChains(t, b)

				total := totalScore(b)
				merges := 0
				for b.queue.Len() > 0 {
					a := heap.Pop(&b.queue).(*NodeChainAssembly)
					if !b.isCurrent(a) {
						continue
					}
					require.Positive(t, a.ScoreGain, "%s: applied merge must gain", g.PrimaryName())
					live := len(b.chains)
					b.mergeChains(a)
					merges++

					require.Len(t, b.chains, live-1, "%s: each merge removes one chain", g.PrimaryName())
					require.NotNil(t, b.chains[a.Split], "%s: split chain survives", g.PrimaryName())
					require.Nil(t, b.chains[a.Unsplit], "%s: unsplit chain is gone", g.PrimaryName())
					checkChains(t, b)

					next := totalScore(b)
					require.Equal(t, total+a.ScoreGain, next, "%s: score rises by the gain", g.PrimaryName())
					total = next
				}

				assert.Zero(t, b.queue.Len(), g.PrimaryName())
				assert.Zero(t, b.PendingAssemblies(), g.PrimaryName())
				assert.Equal(t, merges, b.Merges(), g.PrimaryName())

				b.CoalesceChains()
				checkChains(t, b)
				if g.IsHot() {
					assert.Len(t, b.chains, 1, g.PrimaryName())
				} else {
					assert.Empty(t, b.chains, g.PrimaryName())
				}
			}
		})
	}
}
