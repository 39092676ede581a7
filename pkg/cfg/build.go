package cfg

import (
	"sort"

	"github.com/matzehuels/blockorder/pkg/errors"
)

// Document is the serialized form of a weighted program profile.
type Document struct {
	Functions []FunctionDoc `json:"functions" yaml:"functions"`
	Edges     []EdgeDoc     `json:"edges" yaml:"edges"`
}

// FunctionDoc describes one function and its blocks.
type FunctionDoc struct {
	Names []string  `json:"names" yaml:"names"`
	Nodes []NodeDoc `json:"nodes" yaml:"nodes"`
}

// NodeDoc describes one basic block.
type NodeDoc struct {
	Ordinal uint64 `json:"ordinal" yaml:"ordinal"`
	BBIndex int    `json:"bb_index" yaml:"bb_index"`
	Size    uint64 `json:"size" yaml:"size"`
	Freq    uint64 `json:"freq,omitempty" yaml:"freq,omitempty"`
}

// EdgeDoc describes one weighted edge by the ordinals of its endpoints.
type EdgeDoc struct {
	Src    uint64 `json:"src" yaml:"src"`
	Sink   uint64 `json:"sink" yaml:"sink"`
	Weight uint32 `json:"weight" yaml:"weight"`
	Kind   string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// Build validates doc and constructs a Program from it.
//
// Build rejects duplicate ordinals or names, functions without an entry block
// (BBIndex 0), duplicate block indices, edges with unknown endpoints and
// branch edges that cross functions. All failures carry
// [errors.ErrCodeInvalidProfile].
func Build(doc Document) (*Program, error) {
	p := &Program{
		nodes:  make(map[uint64]*Node),
		byName: make(map[string]*Graph),
	}

	for _, fd := range doc.Functions {
		g, err := p.addFunction(fd)
		if err != nil {
			return nil, err
		}
		p.Graphs = append(p.Graphs, g)
	}

	for _, ed := range doc.Edges {
		if err := p.addEdge(ed); err != nil {
			return nil, err
		}
	}

	for _, g := range p.Graphs {
		for _, n := range g.Nodes {
			n.Freq = max(n.Freq, sumWeights(n.ins, n.interIns), sumWeights(n.outs, n.interOuts))
		}
	}

	sortGraphs(p.Graphs)
	return p, nil
}

func (p *Program) addFunction(fd FunctionDoc) (*Graph, error) {
	if len(fd.Names) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidProfile, "function has no names")
	}
	for _, name := range fd.Names {
		if err := errors.ValidateFunctionName(name); err != nil {
			return nil, err
		}
		if _, dup := p.byName[name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidProfile, "duplicate function name %q", name)
		}
	}
	if len(fd.Nodes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidProfile, "function %q has no blocks", fd.Names[0])
	}

	g := &Graph{
		Names:     append([]string(nil), fd.Names...),
		byOrdinal: make(map[uint64]*Node, len(fd.Nodes)),
	}
	indexes := make(map[int]bool, len(fd.Nodes))
	for _, nd := range fd.Nodes {
		if _, dup := p.nodes[nd.Ordinal]; dup {
			return nil, errors.New(errors.ErrCodeInvalidProfile, "duplicate ordinal %d", nd.Ordinal)
		}
		if nd.BBIndex < 0 || indexes[nd.BBIndex] {
			return nil, errors.New(errors.ErrCodeInvalidProfile, "function %q: invalid or duplicate bb_index %d", fd.Names[0], nd.BBIndex)
		}
		indexes[nd.BBIndex] = true

		n := &Node{
			Ordinal: nd.Ordinal,
			BBIndex: nd.BBIndex,
			Size:    nd.Size,
			Freq:    nd.Freq,
			graph:   g,
		}
		p.nodes[n.Ordinal] = n
		g.byOrdinal[n.Ordinal] = n
		g.Nodes = append(g.Nodes, n)
	}
	if !indexes[0] {
		return nil, errors.New(errors.ErrCodeInvalidProfile, "function %q has no entry block (bb_index 0)", fd.Names[0])
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].BBIndex < g.Nodes[j].BBIndex })

	for _, name := range fd.Names {
		p.byName[name] = g
	}
	return g, nil
}

func (p *Program) addEdge(ed EdgeDoc) error {
	src, sink := p.nodes[ed.Src], p.nodes[ed.Sink]
	if src == nil || sink == nil {
		return errors.New(errors.ErrCodeInvalidProfile, "edge %d->%d references an unknown block", ed.Src, ed.Sink)
	}
	kind, err := ParseEdgeKind(ed.Kind)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidProfile, err, "edge %d->%d", ed.Src, ed.Sink)
	}

	e := &Edge{Src: src, Sink: sink, Weight: ed.Weight, Kind: kind}
	if !e.IsInter() {
		src.outs = append(src.outs, e)
		sink.ins = append(sink.ins, e)
		src.graph.IntraEdges = append(src.graph.IntraEdges, e)
		return nil
	}

	if kind == BranchOrFallthrough {
		return errors.New(errors.ErrCodeInvalidProfile, "branch edge %d->%d crosses functions %q and %q",
			ed.Src, ed.Sink, src.graph.PrimaryName(), sink.graph.PrimaryName())
	}
	src.interOuts = append(src.interOuts, e)
	sink.interIns = append(sink.interIns, e)
	src.graph.InterEdges = append(src.graph.InterEdges, e)
	return nil
}

func sumWeights(lists ...[]*Edge) uint64 {
	var sum uint64
	for _, edges := range lists {
		for _, e := range edges {
			sum += uint64(e.Weight)
		}
	}
	return sum
}

// Document converts p back into its serialized form. Functions appear in
// Key order, nodes in BBIndex order and edges grouped by source function.
// Node frequencies are written as computed.
func (p *Program) Document() Document {
	var doc Document
	for _, g := range p.Graphs {
		fd := FunctionDoc{Names: append([]string(nil), g.Names...)}
		for _, n := range g.Nodes {
			fd.Nodes = append(fd.Nodes, NodeDoc{
				Ordinal: n.Ordinal,
				BBIndex: n.BBIndex,
				Size:    n.Size,
				Freq:    n.Freq,
			})
		}
		doc.Functions = append(doc.Functions, fd)
	}
	for _, g := range p.Graphs {
		for _, edges := range [][]*Edge{g.IntraEdges, g.InterEdges} {
			for _, e := range edges {
				doc.Edges = append(doc.Edges, EdgeDoc{
					Src:    e.Src.Ordinal,
					Sink:   e.Sink.Ordinal,
					Weight: e.Weight,
					Kind:   e.Kind.String(),
				})
			}
		}
	}
	return doc
}
