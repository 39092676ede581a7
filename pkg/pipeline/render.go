package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/blockorder/pkg/cfg"
	"github.com/matzehuels/blockorder/pkg/errors"
	"github.com/matzehuels/blockorder/pkg/layout"
	"github.com/matzehuels/blockorder/pkg/render/clusters"
	"github.com/matzehuels/blockorder/pkg/render/nodelink"
)

// Report is the JSON artifact: the layout plus its totals.
type Report struct {
	Layout *layout.Layout `json:"layout"`
	Totals layout.Totals  `json:"totals"`
}

// Render generates artifacts for every requested format. l must have its
// CFGs attached.
func Render(ctx context.Context, p *cfg.Program, l *layout.Layout, opts Options) (map[string][]byte, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	var dot string
	for _, format := range opts.Formats {
		if _, ok := artifacts[format]; ok {
			continue
		}
		var (
			buf bytes.Buffer
			err error
		)
		switch format {
		case FormatClusters:
			_, err = clusters.WriteClusters(&buf, l)
		case FormatSymbolOrder:
			_, err = clusters.WriteSymbolOrder(&buf, l)
		case FormatJSON:
			enc := json.NewEncoder(&buf)
			enc.SetIndent("", "  ")
			err = enc.Encode(Report{Layout: l, Totals: l.Totals()})
		case FormatDOT, FormatSVG:
			if dot == "" {
				if dot, err = functionDOT(p, l, opts.Function); err != nil {
					return nil, err
				}
			}
			if format == FormatDOT {
				buf.WriteString(dot)
			} else {
				var svg []byte
				svg, err = nodelink.RenderSVG(ctx, dot)
				buf.Write(svg)
			}
		default:
			return nil, errors.New(errors.ErrCodeUnsupported, "unsupported format: %s", format)
		}
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = buf.Bytes()
	}
	return artifacts, nil
}

// functionDOT draws one function's CFG with its clusters.
func functionDOT(p *cfg.Program, l *layout.Layout, name string) (string, error) {
	g, err := SelectFunction(p, l, name)
	if err != nil {
		return "", err
	}
	return nodelink.ToDOT(g, l.Function(g.Key()), nodelink.Options{ShowOrder: true}), nil
}

// SelectFunction resolves name to a function of p. Any of a function's
// names may be used. An empty name selects the hot function with the
// highest optimized score, or the first function if none is hot.
func SelectFunction(p *cfg.Program, l *layout.Layout, name string) (*cfg.Graph, error) {
	if name != "" {
		if g := p.Graph(name); g != nil {
			return g, nil
		}
		return nil, errors.New(errors.ErrCodeNotFound, "function %q not found", name)
	}
	var best *layout.FunctionClusterInfo
	for _, f := range l.Functions {
		if best == nil || f.OptimizedScore.Intra > best.OptimizedScore.Intra {
			best = f
		}
	}
	if best != nil && best.CFG != nil {
		return best.CFG, nil
	}
	if len(p.Graphs) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "profile has no functions")
	}
	return p.Graphs[0], nil
}
