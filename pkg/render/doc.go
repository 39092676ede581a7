// Package render turns block layouts into output artifacts.
//
// # Cluster Files
//
// The [clusters] subpackage writes the textual outputs a linker consumes: the
// basic block cluster file and the symbol order file.
//
//	clusters.WriteClusters(w, result)
//	clusters.WriteSymbolOrder(w, result)
//
// # Control-Flow Diagrams
//
// The [nodelink] subpackage renders a function's control-flow graph with
// Graphviz, highlighting hot blocks and the chosen layout order.
//
//	dot := nodelink.ToDOT(fn.CFG, fn, nodelink.Options{ShowOrder: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
package render
