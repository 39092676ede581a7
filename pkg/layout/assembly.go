package layout

import (
	"github.com/matzehuels/blockorder/pkg/cfg"
)

// MergeOrder is the arrangement of the split chain's halves S1 and S2 and the
// unsplit chain U in a merged chain.
type MergeOrder uint8

const (
	// SU places the whole split chain before U. It is the only order used
	// when the split position is zero.
	SU MergeOrder = iota
	S2S1U
	S1US2
	US2S1
	S2US1
)

// splitOrders lists the orders tried for a non-zero split position. When two
// orders tie, the earlier one wins.
var splitOrders = [...]MergeOrder{S2S1U, S1US2, US2S1, S2US1}

func (o MergeOrder) String() string {
	switch o {
	case SU:
		return "SU"
	case S2S1U:
		return "S2S1U"
	case S1US2:
		return "S1US2"
	case US2S1:
		return "US2S1"
	case S2US1:
		return "S2US1"
	}
	return "MergeOrder(?)"
}

// NodeChainAssembly is a candidate merge of two chains. Assemblies are
// immutable; they become stale once either chain changes.
type NodeChainAssembly struct {
	Split     uint64 // id of the chain that may be split
	Unsplit   uint64
	SplitPos  int
	Order     MergeOrder
	ScoreGain int64

	splitVersion   uint64
	unsplitVersion uint64
}

// segments returns the parts of the merged chain in layout order.
func (a *NodeChainAssembly) segments(split, unsplit *NodeChain) [3][]*cfg.Node {
	s1 := split.nodes[:a.SplitPos]
	s2 := split.nodes[a.SplitPos:]
	u := unsplit.nodes
	switch a.Order {
	case S2S1U:
		return [3][]*cfg.Node{s2, s1, u}
	case S1US2:
		return [3][]*cfg.Node{s1, u, s2}
	case US2S1:
		return [3][]*cfg.Node{u, s2, s1}
	case S2US1:
		return [3][]*cfg.Node{s2, u, s1}
	default:
		return [3][]*cfg.Node{split.nodes, u, nil}
	}
}

// mergedNodes returns the merged chain's blocks.
func (a *NodeChainAssembly) mergedNodes(split, unsplit *NodeChain) []*cfg.Node {
	out := make([]*cfg.Node, 0, len(split.nodes)+len(unsplit.nodes))
	for _, seg := range a.segments(split, unsplit) {
		out = append(out, seg...)
	}
	return out
}

func firstNode(segs [3][]*cfg.Node) *cfg.Node {
	for _, seg := range segs {
		if len(seg) > 0 {
			return seg[0]
		}
	}
	return nil
}

// bestAssembly returns the highest-gain way to merge unsplit into split, or
// false if no arrangement has a positive gain. entry is the function's entry
// block when it belongs to one of the two chains, and nil otherwise.
func bestAssembly(s *Scorer, split, unsplit *NodeChain, entry *cfg.Node) (*NodeChainAssembly, bool) {
	var best *NodeChainAssembly

	try := func(pos int, order MergeOrder) {
		a := &NodeChainAssembly{
			Split:          split.id,
			Unsplit:        unsplit.id,
			SplitPos:       pos,
			Order:          order,
			splitVersion:   split.version,
			unsplitVersion: unsplit.version,
		}
		segs := a.segments(split, unsplit)
		if entry != nil && firstNode(segs) != entry {
			return
		}
		a.ScoreGain = assemblyGain(s, split, unsplit, segs)
		if best == nil || a.ScoreGain > best.ScoreGain {
			best = a
		}
	}

	try(0, SU)
	p := s.params
	if p.ChainSplit && len(split.nodes) <= p.ChainSplitThreshold {
		for pos := 1; pos < len(split.nodes); pos++ {
			for _, order := range splitOrders {
				try(pos, order)
			}
		}
	}

	if best == nil || best.ScoreGain <= 0 {
		return nil, false
	}
	return best, true
}

// assemblyGain scores the edges within and between the two chains at their
// merged offsets, minus what the chains already score on their own.
func assemblyGain(s *Scorer, split, unsplit *NodeChain, segs [3][]*cfg.Node) int64 {
	off := offsets(segs[0], segs[1], segs[2])
	merged := scoreBuckets(s, off,
		split.outEdges[split.id],
		unsplit.outEdges[unsplit.id],
		split.outEdges[unsplit.id],
		unsplit.outEdges[split.id],
	)
	return merged - split.score - unsplit.score
}
