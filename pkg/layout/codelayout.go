package layout

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/blockorder/pkg/cfg"
)

// CodeLayout orders the blocks of a set of functions.
type CodeLayout struct {
	params  Params
	scorer  *Scorer
	graphs  []*cfg.Graph
	workers int
	logger  *log.Logger
}

// Option configures a CodeLayout.
type Option func(*CodeLayout)

// WithWorkers limits how many functions are ordered concurrently. Values
// below 1 select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(cl *CodeLayout) { cl.workers = n }
}

// WithLogger sets the logger for per-function debug output.
func WithLogger(l *log.Logger) Option {
	return func(cl *CodeLayout) { cl.logger = l }
}

// NewCodeLayout prepares ordering of graphs. Graphs without hot blocks are
// kept in their original order. NewCodeLayout panics like [NewScorer] if
// params could overflow.
func NewCodeLayout(params Params, graphs []*cfg.Graph, opts ...Option) *CodeLayout {
	cl := &CodeLayout{
		params: params,
		scorer: NewScorer(params),
		graphs: slices.Clone(graphs),
	}
	for _, opt := range opts {
		opt(cl)
	}
	if cl.workers < 1 {
		cl.workers = runtime.GOMAXPROCS(0)
	}
	if cl.logger == nil {
		cl.logger = log.New(io.Discard)
	}
	slices.SortFunc(cl.graphs, func(a, b *cfg.Graph) int { return cmp.Compare(a.Key(), b.Key()) })
	return cl
}

// Scorer returns the scorer used for ordering.
func (cl *CodeLayout) Scorer() *Scorer { return cl.scorer }

// OrderAll orders every function and returns the layout.
func (cl *CodeLayout) OrderAll() *Layout {
	l, _ := cl.OrderAllContext(context.Background())
	return l
}

// OrderAllContext is OrderAll with cancellation. Functions still waiting for
// a worker when ctx is done are skipped and ctx.Err() is returned.
func (cl *CodeLayout) OrderAllContext(ctx context.Context) (*Layout, error) {
	chains := make([]*NodeChain, len(cl.graphs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cl.workers)
	for i, graph := range cl.graphs {
		if !graph.IsHot() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			b := NewNodeChainBuilder(cl.scorer, graph)
			c := b.BuildChains()
			chains[i] = c
			cl.logger.Debug("ordered function",
				"name", graph.PrimaryName(),
				"hot_blocks", len(c.nodes),
				"freq", c.Freq(),
				"density", fmt.Sprintf("%.2f", c.Density()),
				"merges", b.Merges(),
				"duration", time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cl.assemble(chains), nil
}

// assemble assigns layout indexes and computes scores. It runs after all
// builders finish so the result does not depend on scheduling.
func (cl *CodeLayout) assemble(chains []*NodeChain) *Layout {
	l := &Layout{Params: cl.params}
	next := 0
	for i, graph := range cl.graphs {
		c := chains[i]
		if c == nil {
			continue
		}
		l.Functions = append(l.Functions, &FunctionClusterInfo{
			Name:                   graph.PrimaryName(),
			Key:                    graph.Key(),
			CFG:                    graph,
			Clusters:               []Cluster{{BBIndexes: c.BBIndexes(), LayoutIndex: next}},
			ColdClusterLayoutIndex: next,
		})
		next++
	}
	for i, graph := range cl.graphs {
		if chains[i] != nil {
			continue
		}
		l.Cold = append(l.Cold, ColdPlaceholder{
			Name:                   graph.PrimaryName(),
			Key:                    graph.Key(),
			CFG:                    graph,
			ColdClusterLayoutIndex: next,
		})
		next++
	}

	orig := cl.originalAddresses()
	opt := cl.optimizedAddresses(l)
	for _, f := range l.Functions {
		f.OriginalScore = Score{
			Intra:    scoreEdges(cl.scorer, offsets(f.CFG.Nodes), f.CFG.IntraEdges),
			InterOut: scoreEdges(cl.scorer, orig, f.CFG.InterEdges),
		}
		f.OptimizedScore = Score{
			Intra:    scoreEdges(cl.scorer, offsets(optimizedOrder(f)), f.CFG.IntraEdges),
			InterOut: scoreEdges(cl.scorer, opt, f.CFG.InterEdges),
		}
	}
	return l
}

// originalAddresses places every function in key order with its blocks in
// original order.
func (cl *CodeLayout) originalAddresses() map[*cfg.Node]int64 {
	nodes := make([][]*cfg.Node, len(cl.graphs))
	for i, g := range cl.graphs {
		nodes[i] = g.Nodes
	}
	return offsets(nodes...)
}

// optimizedAddresses places all hot clusters in layout order followed by all
// cold regions in cold layout order.
func (cl *CodeLayout) optimizedAddresses(l *Layout) map[*cfg.Node]int64 {
	type region struct {
		index int
		nodes []*cfg.Node
	}
	var hot, cold []region
	for _, f := range l.Functions {
		byIdx := nodesByBBIndex(f.CFG)
		for _, c := range f.Clusters {
			nodes := make([]*cfg.Node, len(c.BBIndexes))
			for i, idx := range c.BBIndexes {
				nodes[i] = byIdx[idx]
			}
			hot = append(hot, region{c.LayoutIndex, nodes})
		}
		cold = append(cold, region{f.ColdClusterLayoutIndex, coldNodes(f)})
	}
	for _, p := range l.Cold {
		cold = append(cold, region{p.ColdClusterLayoutIndex, p.CFG.Nodes})
	}

	byIndex := func(a, b region) int { return cmp.Compare(a.index, b.index) }
	slices.SortStableFunc(hot, byIndex)
	slices.SortStableFunc(cold, byIndex)

	all := make([][]*cfg.Node, 0, len(hot)+len(cold))
	for _, r := range hot {
		all = append(all, r.nodes)
	}
	for _, r := range cold {
		all = append(all, r.nodes)
	}
	return offsets(all...)
}

func nodesByBBIndex(g *cfg.Graph) map[int]*cfg.Node {
	m := make(map[int]*cfg.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		m[n.BBIndex] = n
	}
	return m
}

// optimizedOrder is the function's clusters followed by its cold blocks.
func optimizedOrder(f *FunctionClusterInfo) []*cfg.Node {
	byIdx := nodesByBBIndex(f.CFG)
	order := make([]*cfg.Node, 0, len(f.CFG.Nodes))
	for _, idx := range f.HotBBIndexes() {
		order = append(order, byIdx[idx])
	}
	return append(order, coldNodes(f)...)
}

func coldNodes(f *FunctionClusterInfo) []*cfg.Node {
	byIdx := nodesByBBIndex(f.CFG)
	idxs := f.ColdBBIndexes()
	nodes := make([]*cfg.Node, len(idxs))
	for i, idx := range idxs {
		nodes[i] = byIdx[idx]
	}
	return nodes
}
