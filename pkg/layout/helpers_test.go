package layout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matzehuels/blockorder/pkg/cfg"
)

const blockSize = 10

// fn describes a function whose blocks have consecutive ordinals starting at
// first, all blockSize bytes.
func fn(name string, first uint64, n int) cfg.FunctionDoc {
	nodes := make([]cfg.NodeDoc, n)
	for i := range nodes {
		nodes[i] = cfg.NodeDoc{Ordinal: first + uint64(i), BBIndex: i, Size: blockSize}
	}
	return cfg.FunctionDoc{Names: []string{name}, Nodes: nodes}
}

func edge(src, sink uint64, weight uint32) cfg.EdgeDoc {
	return cfg.EdgeDoc{Src: src, Sink: sink, Weight: weight}
}

func call(src, sink uint64, weight uint32) cfg.EdgeDoc {
	return cfg.EdgeDoc{Src: src, Sink: sink, Weight: weight, Kind: "call"}
}

func ret(src, sink uint64, weight uint32) cfg.EdgeDoc {
	return cfg.EdgeDoc{Src: src, Sink: sink, Weight: weight, Kind: "return"}
}

func buildProgram(t *testing.T, funcs []cfg.FunctionDoc, edges ...cfg.EdgeDoc) *cfg.Program {
	t.Helper()
	p, err := cfg.Build(cfg.Document{Functions: funcs, Edges: edges})
	require.NoError(t, err)
	return p
}

func ordinals(c *NodeChain) []uint64 {
	out := make([]uint64, len(c.Nodes()))
	for i, n := range c.Nodes() {
		out[i] = n.Ordinal
	}
	return out
}

// threeBranches has three hot paths 1→2→5 and 3→4, plus a cold block 6.
func threeBranches(t *testing.T) *cfg.Graph {
	p := buildProgram(t,
		[]cfg.FunctionDoc{fn("three_branches", 1, 6)},
		edge(1, 2, 110),
		edge(2, 5, 100),
		edge(3, 4, 10),
		edge(1, 6, 0),
		edge(6, 5, 0),
	)
	return p.Graph("three_branches")
}

// conditional is an if/else diamond where the else side is hot.
func conditional(t *testing.T) *cfg.Program {
	return buildProgram(t,
		[]cfg.FunctionDoc{fn("cond", 1, 4)},
		edge(1, 2, 10),
		edge(1, 3, 100),
		edge(2, 4, 10),
		edge(3, 4, 100),
	)
}

// loop has a hot loop between blocks 2 and 4 and a cold block 3.
func loop(t *testing.T) *cfg.Program {
	return buildProgram(t,
		[]cfg.FunctionDoc{fn("loop", 1, 5)},
		edge(1, 2, 10),
		edge(2, 4, 100),
		edge(4, 2, 100),
		edge(4, 5, 10),
		edge(2, 3, 0),
		edge(3, 4, 0),
	)
}

// multiFunction has three hot functions calling each other and a cold one.
func multiFunction(t *testing.T) *cfg.Program {
	return buildProgram(t,
		[]cfg.FunctionDoc{
			fn("baz", 10, 2),
			fn("qux", 9, 1),
			fn("bar", 4, 5),
			fn("foo", 1, 3),
		},
		edge(1, 3, 100),
		edge(1, 2, 20),
		edge(4, 5, 50),
		edge(5, 7, 50),
		edge(5, 6, 0),
		edge(6, 8, 0),
		edge(7, 8, 0),
		edge(10, 11, 0),
		call(5, 1, 30),
		ret(3, 5, 30),
		call(7, 9, 5),
		ret(9, 7, 5),
	)
}
