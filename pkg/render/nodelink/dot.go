package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/blockorder/pkg/cfg"
	"github.com/matzehuels/blockorder/pkg/layout"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds block size and ordinal to labels.
	Detailed bool
	// ShowOrder draws dashed edges between consecutive blocks of each
	// layout cluster.
	ShowOrder bool
	// HideCold omits blocks that were never executed.
	HideCold bool
}

// heat colors from coolest to hottest.
var heat = []string{"#fff5eb", "#fdd0a2", "#fdae6b", "#fd8d3c", "#e6550d", "#a63603"}

// ToDOT converts g to Graphviz DOT. fn may be nil.
func ToDOT(g *cfg.Graph, fn *layout.FunctionClusterInfo, opts Options) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", g.PrimaryName())
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"monospace\", fontsize=14];\n")
	buf.WriteString("  edge [color=\"#555555\"];\n")
	buf.WriteString("\n")

	maxFreq := uint64(0)
	for _, n := range g.Nodes {
		maxFreq = max(maxFreq, n.Freq)
	}
	visible := func(n *cfg.Node) bool { return !opts.HideCold || n.IsHot() }

	clustered := make(map[int]bool)
	if fn != nil {
		byIdx := make(map[int]*cfg.Node, len(g.Nodes))
		for _, n := range g.Nodes {
			byIdx[n.BBIndex] = n
		}
		for _, c := range fn.Clusters {
			fmt.Fprintf(&buf, "  subgraph \"cluster_%d\" {\n", c.LayoutIndex)
			fmt.Fprintf(&buf, "    label=%q;\n    style=\"rounded,dashed\";\n    color=\"#e6550d\";\n",
				fmt.Sprintf("cluster %d", c.LayoutIndex))
			for pos, idx := range c.BBIndexes {
				n := byIdx[idx]
				if n == nil {
					continue
				}
				clustered[idx] = true
				fmt.Fprintf(&buf, "    %s [%s];\n", nodeID(n), strings.Join(fmtAttrs(n, maxFreq, pos, opts), ", "))
			}
			buf.WriteString("  }\n")
		}
	}
	for _, n := range g.Nodes {
		if clustered[n.BBIndex] || !visible(n) {
			continue
		}
		fmt.Fprintf(&buf, "  %s [%s];\n", nodeID(n), strings.Join(fmtAttrs(n, maxFreq, -1, opts), ", "))
	}

	buf.WriteString("\n")
	maxWeight := uint32(0)
	for _, e := range g.IntraEdges {
		maxWeight = max(maxWeight, e.Weight)
	}
	for _, e := range g.IntraEdges {
		if !visible(e.Src) || !visible(e.Sink) {
			continue
		}
		fmt.Fprintf(&buf, "  %s -> %s [%s];\n", nodeID(e.Src), nodeID(e.Sink), strings.Join(edgeAttrs(e, maxWeight), ", "))
	}

	if opts.ShowOrder && fn != nil {
		buf.WriteString("\n")
		for _, c := range fn.Clusters {
			for i := 1; i < len(c.BBIndexes); i++ {
				fmt.Fprintf(&buf, "  bb%d -> bb%d [style=dashed, color=\"#3182bd\", constraint=false, arrowhead=empty];\n",
					c.BBIndexes[i-1], c.BBIndexes[i])
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeID(n *cfg.Node) string {
	return "bb" + strconv.Itoa(n.BBIndex)
}

func fmtLabel(n *cfg.Node, pos int, detailed bool) string {
	lines := []string{nodeID(n)}
	if pos >= 0 {
		lines[0] += fmt.Sprintf(" #%d", pos)
	}
	if n.IsHot() {
		lines = append(lines, fmt.Sprintf("freq: %d", n.Freq))
	}
	if detailed {
		lines = append(lines, fmt.Sprintf("size: %d", n.Size), fmt.Sprintf("ordinal: %d", n.Ordinal))
	}
	return strings.Join(lines, "\n")
}

func fmtAttrs(n *cfg.Node, maxFreq uint64, pos int, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, pos, opts.Detailed))}
	if !n.IsHot() {
		return append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=\"#eeeeee\"", "fontcolor=\"#777777\"")
	}
	color := heatColor(n.Freq, maxFreq)
	attrs = append(attrs, fmt.Sprintf("fillcolor=%q", color))
	if color == heat[len(heat)-1] || color == heat[len(heat)-2] {
		attrs = append(attrs, "fontcolor=white")
	}
	if n.IsEntry() {
		attrs = append(attrs, "penwidth=2")
	}
	return attrs
}

// heatColor buckets freq on a log scale relative to maxFreq.
func heatColor(freq, maxFreq uint64) string {
	if freq == 0 || maxFreq == 0 {
		return heat[0]
	}
	ratio := math.Log1p(float64(freq)) / math.Log1p(float64(maxFreq))
	i := int(ratio * float64(len(heat)-1))
	return heat[min(max(i, 0), len(heat)-1)]
}

func edgeAttrs(e *cfg.Edge, maxWeight uint32) []string {
	if e.Weight == 0 {
		return []string{"style=dotted", "color=\"#aaaaaa\""}
	}
	width := 1.0
	if maxWeight > 0 {
		width += 4 * float64(e.Weight) / float64(maxWeight)
	}
	return []string{fmt.Sprintf("label=\"%d\"", e.Weight), fmt.Sprintf("penwidth=%.1f", width)}
}

// RenderSVG renders DOT source to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the drawing scales from the
// origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
