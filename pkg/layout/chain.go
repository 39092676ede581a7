package layout

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/blockorder/pkg/cfg"
)

// EdgeBucket groups the CFG edges between an ordered pair of chains.
type EdgeBucket struct {
	Edges []*cfg.Edge
	// Weight is the sum of the edge weights.
	Weight uint64
}

func (b *EdgeBucket) add(edges ...*cfg.Edge) {
	for _, e := range edges {
		b.Edges = append(b.Edges, e)
		b.Weight += uint64(e.Weight)
	}
}

// NodeChain is an ordered sequence of hot blocks that will be laid out
// contiguously.
//
// A chain is identified by the ordinal of its delegate, the block it was
// created from. The delegate stays the same across merges even when it is no
// longer the first block.
type NodeChain struct {
	id       uint64
	delegate *cfg.Node
	nodes    []*cfg.Node
	size     uint64
	freq     uint64
	score    int64

	// outEdges[k] holds edges from this chain to chain k, inEdges[k] edges
	// from chain k to this chain. Edges inside the chain are stored under
	// the chain's own id in both maps.
	outEdges map[uint64]*EdgeBucket
	inEdges  map[uint64]*EdgeBucket

	// version changes whenever the chain is modified. Queued assemblies
	// remember it to detect that they are stale.
	version uint64
}

func newNodeChain(n *cfg.Node) *NodeChain {
	return &NodeChain{
		id:       n.Ordinal,
		delegate: n,
		nodes:    []*cfg.Node{n},
		size:     n.Size,
		freq:     n.Freq,
		outEdges: make(map[uint64]*EdgeBucket),
		inEdges:  make(map[uint64]*EdgeBucket),
	}
}

// ID returns the chain's identifier.
func (c *NodeChain) ID() uint64 { return c.id }

// Delegate returns the block the chain was created from.
func (c *NodeChain) Delegate() *cfg.Node { return c.delegate }

// Nodes returns the chain's blocks in layout order.
func (c *NodeChain) Nodes() []*cfg.Node { return c.nodes }

// Size returns the total size of the chain's blocks in bytes.
func (c *NodeChain) Size() uint64 { return c.size }

// Freq returns the total execution frequency of the chain's blocks.
func (c *NodeChain) Freq() uint64 { return c.freq }

// Score returns the score of the edges inside the chain.
func (c *NodeChain) Score() int64 { return c.score }

// Density returns the chain's frequency per byte.
func (c *NodeChain) Density() float64 {
	if c.size == 0 {
		return float64(c.freq)
	}
	return float64(c.freq) / float64(c.size)
}

// BBIndexes returns the original block indexes in layout order.
func (c *NodeChain) BBIndexes() []int {
	out := make([]int, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = n.BBIndex
	}
	return out
}

// OutEdges returns the edges from c to the chain with id to.
func (c *NodeChain) OutEdges(to uint64) *EdgeBucket { return c.outEdges[to] }

// InEdges returns the edges from the chain with id from to c.
func (c *NodeChain) InEdges(from uint64) *EdgeBucket { return c.inEdges[from] }

// OutChains returns the ids of chains c has edges to, including its own id
// for internal edges, in ascending order.
func (c *NodeChain) OutChains() []uint64 { return sortedKeys(c.outEdges) }

// InChains returns the ids of chains with edges to c, in ascending order.
func (c *NodeChain) InChains() []uint64 { return sortedKeys(c.inEdges) }

// neighbours returns the ids of the other chains c shares an edge with.
func (c *NodeChain) neighbours() []uint64 {
	var ids []uint64
	for k := range c.outEdges {
		if k != c.id {
			ids = append(ids, k)
		}
	}
	for k := range c.inEdges {
		if _, ok := c.outEdges[k]; !ok && k != c.id {
			ids = append(ids, k)
		}
	}
	slices.Sort(ids)
	return ids
}

func (c *NodeChain) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "chain(%d)[", c.id)
	for i, n := range c.nodes {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", n.Ordinal)
	}
	fmt.Fprintf(&b, "] size=%d score=%d", c.size, c.score)
	return b.String()
}

func bucket(m map[uint64]*EdgeBucket, k uint64) *EdgeBucket {
	b, ok := m[k]
	if !ok {
		b = &EdgeBucket{}
		m[k] = b
	}
	return b
}

func sortedKeys(m map[uint64]*EdgeBucket) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// offsets returns the start offset of every block when nodes are laid out in
// order.
func offsets(nodes ...[]*cfg.Node) map[*cfg.Node]int64 {
	n := 0
	for _, ns := range nodes {
		n += len(ns)
	}
	off := make(map[*cfg.Node]int64, n)
	var pos int64
	for _, ns := range nodes {
		for _, node := range ns {
			off[node] = pos
			pos += int64(node.Size)
		}
	}
	return off
}

// scoreBuckets scores every edge in buckets at the given block offsets.
// Edges with an endpoint missing from off are ignored.
func scoreBuckets(s *Scorer, off map[*cfg.Node]int64, buckets ...*EdgeBucket) int64 {
	var total int64
	for _, b := range buckets {
		if b == nil {
			continue
		}
		total += scoreEdges(s, off, b.Edges)
	}
	return total
}

func scoreEdges(s *Scorer, off map[*cfg.Node]int64, edges []*cfg.Edge) int64 {
	var total int64
	for _, e := range edges {
		if e.Weight == 0 {
			continue
		}
		src, ok := off[e.Src]
		if !ok {
			continue
		}
		sink, ok := off[e.Sink]
		if !ok {
			continue
		}
		total += s.EdgeScore(e, sink-src-int64(e.Src.Size))
	}
	return total
}
