package cfg

import (
	"fmt"
	"sort"
	"strings"
)

// EdgeKind classifies a CFG edge.
type EdgeKind uint8

const (
	// BranchOrFallthrough is intra-function control flow.
	BranchOrFallthrough EdgeKind = iota
	// Call transfers control from a call site to a callee entry.
	Call
	// Return transfers control from a callee back to its caller.
	Return
)

var edgeKindNames = [...]string{
	BranchOrFallthrough: "branch",
	Call:                "call",
	Return:              "return",
}

// String returns the profile document spelling of the kind.
func (k EdgeKind) String() string {
	if int(k) < len(edgeKindNames) {
		return edgeKindNames[k]
	}
	return fmt.Sprintf("EdgeKind(%d)", k)
}

// ParseEdgeKind parses the document spelling of an edge kind. The empty
// string and "fallthrough" are accepted as BranchOrFallthrough.
func ParseEdgeKind(s string) (EdgeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "branch", "fallthrough":
		return BranchOrFallthrough, nil
	case "call":
		return Call, nil
	case "return", "ret":
		return Return, nil
	}
	return 0, fmt.Errorf("unknown edge kind %q", s)
}

// Node is a basic block.
type Node struct {
	Ordinal uint64 // unique across the program
	BBIndex int    // position in the function's original block order
	Size    uint64 // bytes
	Freq    uint64 // execution frequency; zero means cold

	graph     *Graph
	outs      []*Edge
	ins       []*Edge
	interOuts []*Edge
	interIns  []*Edge
}

// Graph returns the function that owns n.
func (n *Node) Graph() *Graph { return n.graph }

// IsHot reports whether the block was executed according to the profile.
func (n *Node) IsHot() bool { return n.Freq > 0 }

// IsEntry reports whether n is its function's entry block.
func (n *Node) IsEntry() bool { return n.BBIndex == 0 }

// OutEdges returns the intra-function edges leaving n.
func (n *Node) OutEdges() []*Edge { return n.outs }

// InEdges returns the intra-function edges entering n.
func (n *Node) InEdges() []*Edge { return n.ins }

// InterOutEdges returns the inter-function edges leaving n.
func (n *Node) InterOutEdges() []*Edge { return n.interOuts }

// InterInEdges returns the inter-function edges entering n.
func (n *Node) InterInEdges() []*Edge { return n.interIns }

func (n *Node) String() string {
	if n.graph != nil {
		return fmt.Sprintf("%s#%d(%d)", n.graph.PrimaryName(), n.BBIndex, n.Ordinal)
	}
	return fmt.Sprintf("#%d(%d)", n.BBIndex, n.Ordinal)
}

// Edge is a weighted control transfer between two blocks.
type Edge struct {
	Src    *Node
	Sink   *Node
	Weight uint32
	Kind   EdgeKind
}

func (e *Edge) IsCall() bool                { return e.Kind == Call }
func (e *Edge) IsReturn() bool              { return e.Kind == Return }
func (e *Edge) IsBranchOrFallthrough() bool { return e.Kind == BranchOrFallthrough }

// IsInter reports whether the edge crosses functions.
func (e *Edge) IsInter() bool { return e.Src.graph != e.Sink.graph }

func (e *Edge) String() string {
	return fmt.Sprintf("%v -> %v [%s %d]", e.Src, e.Sink, e.Kind, e.Weight)
}

// Graph is the control-flow graph of one function.
type Graph struct {
	// Names lists the function's symbol names; the first is the primary name.
	Names []string
	// Nodes is sorted by BBIndex, so Nodes[0] is the entry block.
	Nodes []*Node
	// IntraEdges holds edges with both endpoints in this graph.
	IntraEdges []*Edge
	// InterEdges holds edges leaving this graph for another function.
	InterEdges []*Edge

	byOrdinal map[uint64]*Node
}

// PrimaryName returns the function's first symbol name.
func (g *Graph) PrimaryName() string {
	if len(g.Names) == 0 {
		return ""
	}
	return g.Names[0]
}

// EntryNode returns the function's entry block, or nil for an empty graph.
func (g *Graph) EntryNode() *Node {
	if len(g.Nodes) == 0 {
		return nil
	}
	return g.Nodes[0]
}

// Key identifies the function by its entry block's ordinal.
func (g *Graph) Key() uint64 {
	if e := g.EntryNode(); e != nil {
		return e.Ordinal
	}
	return 0
}

// IsHot reports whether any block of the function is hot.
func (g *Graph) IsHot() bool {
	for _, n := range g.Nodes {
		if n.IsHot() {
			return true
		}
	}
	return false
}

// HotNodes returns the hot blocks in BBIndex order.
func (g *Graph) HotNodes() []*Node {
	var hot []*Node
	for _, n := range g.Nodes {
		if n.IsHot() {
			hot = append(hot, n)
		}
	}
	return hot
}

// NodeByOrdinal returns the block with the given ordinal, or nil.
func (g *Graph) NodeByOrdinal(ordinal uint64) *Node {
	return g.byOrdinal[ordinal]
}

// Size returns the total size of the function's blocks.
func (g *Graph) Size() uint64 {
	var size uint64
	for _, n := range g.Nodes {
		size += n.Size
	}
	return size
}

// Program is the set of function graphs of one binary.
type Program struct {
	// Graphs is sorted by Key.
	Graphs []*Graph

	nodes  map[uint64]*Node
	byName map[string]*Graph
}

// Stats summarizes a program.
type Stats struct {
	Functions    int
	HotFunctions int
	Nodes        int
	HotNodes     int
	IntraEdges   int
	InterEdges   int
}

// Graph returns the function with the given symbol name, or nil.
func (p *Program) Graph(name string) *Graph {
	return p.byName[name]
}

// Node returns the block with the given ordinal, or nil.
func (p *Program) Node(ordinal uint64) *Node {
	return p.nodes[ordinal]
}

// HotGraphs returns the graphs that have at least one hot block, in Key order.
func (p *Program) HotGraphs() []*Graph {
	var hot []*Graph
	for _, g := range p.Graphs {
		if g.IsHot() {
			hot = append(hot, g)
		}
	}
	return hot
}

// Stats counts functions, blocks and edges.
func (p *Program) Stats() Stats {
	var s Stats
	s.Functions = len(p.Graphs)
	for _, g := range p.Graphs {
		hot := len(g.HotNodes())
		if hot > 0 {
			s.HotFunctions++
		}
		s.Nodes += len(g.Nodes)
		s.HotNodes += hot
		s.IntraEdges += len(g.IntraEdges)
		s.InterEdges += len(g.InterEdges)
	}
	return s
}

func sortGraphs(graphs []*Graph) {
	sort.SliceStable(graphs, func(i, j int) bool {
		return graphs[i].Key() < graphs[j].Key()
	})
}
