// Package nodelink renders function control-flow graphs as node-link
// diagrams.
//
// Each basic block becomes a box labeled with its index and, when profiled,
// its frequency. Hot blocks are filled with a color scaled by frequency and
// grouped into a cluster per layout cluster. Edge pen width follows edge
// weight.
//
// # Usage
//
//	dot := nodelink.ToDOT(fn.CFG, fn, nodelink.Options{ShowOrder: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Passing a nil layout draws the plain CFG.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering, so no Graphviz installation is needed.
package nodelink
