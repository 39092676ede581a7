package layout

import (
	"cmp"
	"container/heap"
	"slices"

	"github.com/matzehuels/blockorder/pkg/cfg"
)

type chainPair struct {
	split, unsplit uint64
}

// NodeChainBuilder orders the hot blocks of one function. A builder is used
// once and is not safe for concurrent use; run separate builders for
// separate functions.
type NodeChainBuilder struct {
	scorer *Scorer
	graph  *cfg.Graph

	chains  map[uint64]*NodeChain
	chainOf map[*cfg.Node]*NodeChain

	queue   assemblyQueue
	current map[chainPair]*NodeChainAssembly

	merges int
}

// NewNodeChainBuilder creates a builder for graph.
func NewNodeChainBuilder(scorer *Scorer, graph *cfg.Graph) *NodeChainBuilder {
	return &NodeChainBuilder{
		scorer:  scorer,
		graph:   graph,
		chains:  make(map[uint64]*NodeChain),
		chainOf: make(map[*cfg.Node]*NodeChain),
		current: make(map[chainPair]*NodeChainAssembly),
	}
}

// BuildChains runs all phases and returns the function's single final chain,
// or nil if the function has no hot blocks.
func (b *NodeChainBuilder) BuildChains() *NodeChain {
	b.InitNodeChains()
	b.InitChainEdges()
	b.InitChainAssemblies()
	b.KeepMergingBestChains()
	b.CoalesceChains()
	for _, c := range b.chains {
		return c
	}
	return nil
}

// InitNodeChains creates a singleton chain for every hot block.
func (b *NodeChainBuilder) InitNodeChains() {
	for _, n := range b.graph.Nodes {
		if !n.IsHot() {
			continue
		}
		c := newNodeChain(n)
		b.chains[c.id] = c
		b.chainOf[n] = c
	}
}

// InitChainEdges records every weighted edge between hot blocks on the chains
// containing its endpoints.
func (b *NodeChainBuilder) InitChainEdges() {
	for _, e := range b.graph.IntraEdges {
		if e.Weight == 0 {
			continue
		}
		src, sink := b.chainOf[e.Src], b.chainOf[e.Sink]
		if src == nil || sink == nil {
			continue
		}
		bucket(src.outEdges, sink.id).add(e)
		bucket(sink.inEdges, src.id).add(e)
	}
	for _, c := range b.chains {
		c.score = b.chainScore(c)
	}
}

// InitChainAssemblies queues the best merge for every ordered pair of
// connected chains.
func (b *NodeChainBuilder) InitChainAssemblies() {
	for _, id := range b.chainIDs() {
		c := b.chains[id]
		for _, k := range c.neighbours() {
			if k < id {
				continue
			}
			other := b.chains[k]
			b.updateAssembly(c, other)
			b.updateAssembly(other, c)
		}
	}
}

// KeepMergingBestChains applies the best queued merge until none is left.
func (b *NodeChainBuilder) KeepMergingBestChains() {
	for b.queue.Len() > 0 {
		a := heap.Pop(&b.queue).(*NodeChainAssembly)
		if !b.isCurrent(a) {
			continue
		}
		b.mergeChains(a)
	}
}

// CoalesceChains concatenates the remaining chains into one. The chain
// holding the entry block goes first, the rest follow in the ordinal order
// of their first blocks.
func (b *NodeChainBuilder) CoalesceChains() {
	if len(b.chains) <= 1 {
		return
	}
	list := make([]*NodeChain, 0, len(b.chains))
	for _, c := range b.chains {
		list = append(list, c)
	}
	slices.SortFunc(list, func(x, y *NodeChain) int {
		return cmp.Compare(x.nodes[0].Ordinal, y.nodes[0].Ordinal)
	})

	target := list[0]
	if c := b.chainOf[b.graph.EntryNode()]; c != nil {
		target = c
	}
	for _, c := range list {
		if c == target {
			continue
		}
		target.nodes = append(target.nodes, c.nodes...)
		b.absorb(target, c)
	}
	target.score = b.chainScore(target)
	target.version++

	b.queue = nil
	clear(b.current)
}

// Chains returns the live chains keyed by id. The map must not be modified.
func (b *NodeChainBuilder) Chains() map[uint64]*NodeChain { return b.chains }

// Chain returns the live chain with the given id, or nil.
func (b *NodeChainBuilder) Chain(id uint64) *NodeChain { return b.chains[id] }

// ChainOf returns the chain containing n, or nil if n is cold.
func (b *NodeChainBuilder) ChainOf(n *cfg.Node) *NodeChain { return b.chainOf[n] }

// PendingAssemblies returns the number of queued merges that are still valid.
func (b *NodeChainBuilder) PendingAssemblies() int { return len(b.current) }

// Merges returns the number of merges applied so far.
func (b *NodeChainBuilder) Merges() int { return b.merges }

// BestAssembly returns the queued merge of split and unsplit, or nil.
func (b *NodeChainBuilder) BestAssembly(split, unsplit uint64) *NodeChainAssembly {
	return b.current[chainPair{split, unsplit}]
}

func (b *NodeChainBuilder) chainIDs() []uint64 {
	ids := make([]uint64, 0, len(b.chains))
	for id := range b.chains {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (b *NodeChainBuilder) chainScore(c *NodeChain) int64 {
	return scoreBuckets(b.scorer, offsets(c.nodes), c.outEdges[c.id])
}

// entryFor returns the entry block if it is in split or unsplit.
func (b *NodeChainBuilder) entryFor(split, unsplit *NodeChain) *cfg.Node {
	entry := b.graph.EntryNode()
	if c := b.chainOf[entry]; c != nil && (c == split || c == unsplit) {
		return entry
	}
	return nil
}

func (b *NodeChainBuilder) updateAssembly(split, unsplit *NodeChain) {
	key := chainPair{split.id, unsplit.id}
	a, ok := bestAssembly(b.scorer, split, unsplit, b.entryFor(split, unsplit))
	if !ok {
		delete(b.current, key)
		return
	}
	b.current[key] = a
	heap.Push(&b.queue, a)
}

func (b *NodeChainBuilder) isCurrent(a *NodeChainAssembly) bool {
	if b.current[chainPair{a.Split, a.Unsplit}] != a {
		return false
	}
	split, unsplit := b.chains[a.Split], b.chains[a.Unsplit]
	return split != nil && unsplit != nil &&
		split.version == a.splitVersion && unsplit.version == a.unsplitVersion
}

// mergeChains applies a. The split chain survives and takes over the
// unsplit chain's blocks and edges.
func (b *NodeChainBuilder) mergeChains(a *NodeChainAssembly) {
	split, unsplit := b.chains[a.Split], b.chains[a.Unsplit]

	for _, k := range unsplit.neighbours() {
		delete(b.current, chainPair{unsplit.id, k})
		delete(b.current, chainPair{k, unsplit.id})
	}

	split.nodes = a.mergedNodes(split, unsplit)
	b.absorb(split, unsplit)
	split.score = b.chainScore(split)
	split.version++
	b.merges++

	for _, k := range split.neighbours() {
		other := b.chains[k]
		b.updateAssembly(split, other)
		b.updateAssembly(other, split)
	}
}

// absorb moves u's blocks and edges into s and removes u. The caller has
// already placed u's blocks in s.nodes.
func (b *NodeChainBuilder) absorb(s, u *NodeChain) {
	for _, n := range u.nodes {
		b.chainOf[n] = s
	}
	s.size += u.size
	s.freq += u.freq

	for k, edges := range u.outEdges {
		if k == u.id || k == s.id {
			bucket(s.outEdges, s.id).add(edges.Edges...)
			bucket(s.inEdges, s.id).add(edges.Edges...)
			continue
		}
		bucket(s.outEdges, k).add(edges.Edges...)
		other := b.chains[k]
		bucket(other.inEdges, s.id).add(edges.Edges...)
		delete(other.inEdges, u.id)
	}
	for k, edges := range u.inEdges {
		if k == u.id || k == s.id {
			continue
		}
		other := b.chains[k]
		bucket(other.outEdges, s.id).add(edges.Edges...)
		delete(other.outEdges, u.id)
		bucket(s.inEdges, k).add(edges.Edges...)
	}
	if edges, ok := s.outEdges[u.id]; ok {
		bucket(s.outEdges, s.id).add(edges.Edges...)
		bucket(s.inEdges, s.id).add(edges.Edges...)
		delete(s.outEdges, u.id)
	}
	delete(s.inEdges, u.id)

	delete(b.chains, u.id)
	u.version++
}

