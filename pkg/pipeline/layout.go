package pipeline

import (
	"context"

	"github.com/matzehuels/blockorder/pkg/cfg"
	"github.com/matzehuels/blockorder/pkg/layout"
)

// ComputeLayout orders the blocks of every function in p.
func ComputeLayout(ctx context.Context, p *cfg.Program, opts Options) (*layout.Layout, error) {
	if err := opts.ValidateForLayout(); err != nil {
		return nil, err
	}
	cl := layout.NewCodeLayout(opts.Params, p.Graphs,
		layout.WithWorkers(opts.Workers),
		layout.WithLogger(opts.Logger))
	return cl.OrderAllContext(ctx)
}
