package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/blockorder/pkg/layout"
	"github.com/matzehuels/blockorder/pkg/pipeline"
)

// layoutFlags are the flags shared by commands that compute layouts. Values
// left unset on the command line come from the config.
type layoutFlags struct {
	params   layout.Params
	noSplit  bool
	workers  int
	noCache  bool
	refresh  bool
	function string
	flags    *pflag.FlagSet
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	d := layout.DefaultParams()
	fs := cmd.Flags()
	fs.Uint64Var(&f.params.FallthroughWeight, "fallthrough-weight", d.FallthroughWeight, "score weight of fallthroughs")
	fs.Uint64Var(&f.params.ForwardJumpWeight, "forward-jump-weight", d.ForwardJumpWeight, "score weight of forward jumps")
	fs.Uint64Var(&f.params.BackwardJumpWeight, "backward-jump-weight", d.BackwardJumpWeight, "score weight of backward jumps")
	fs.Uint64Var(&f.params.ForwardJumpDistance, "forward-jump-distance", d.ForwardJumpDistance, "longest forward jump that scores (bytes)")
	fs.Uint64Var(&f.params.BackwardJumpDistance, "backward-jump-distance", d.BackwardJumpDistance, "longest backward jump that scores (bytes)")
	fs.IntVar(&f.params.ChainSplitThreshold, "chain-split-threshold", d.ChainSplitThreshold, "longest chain that may be split")
	fs.BoolVar(&f.noSplit, "no-chain-split", false, "never split chains when merging")
	fs.IntVarP(&f.workers, "workers", "j", 0, "functions ordered in parallel (default: config or GOMAXPROCS)")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable caching")
	fs.BoolVar(&f.refresh, "refresh", false, "ignore cached results")
	fs.StringVar(&f.function, "function", "", "function drawn by dot and svg output (default: hottest)")
	f.flags = fs
}

// options merges the config with the flags that were set.
func (f *layoutFlags) options(c *CLI, profile string, formats []string) pipeline.Options {
	p := c.Config.Layout
	set := func(name string, dst *uint64, v uint64) {
		if f.flags.Changed(name) {
			*dst = v
		}
	}
	set("fallthrough-weight", &p.FallthroughWeight, f.params.FallthroughWeight)
	set("forward-jump-weight", &p.ForwardJumpWeight, f.params.ForwardJumpWeight)
	set("backward-jump-weight", &p.BackwardJumpWeight, f.params.BackwardJumpWeight)
	set("forward-jump-distance", &p.ForwardJumpDistance, f.params.ForwardJumpDistance)
	set("backward-jump-distance", &p.BackwardJumpDistance, f.params.BackwardJumpDistance)
	if f.flags.Changed("chain-split-threshold") {
		p.ChainSplitThreshold = f.params.ChainSplitThreshold
	}
	if f.noSplit {
		p.ChainSplit = false
	}

	workers := c.Config.Workers
	if f.flags.Changed("workers") {
		workers = f.workers
	}
	return pipeline.Options{
		ProfilePath: profile,
		Params:      p,
		Workers:     workers,
		Formats:     formats,
		Function:    f.function,
		Refresh:     f.refresh,
		Logger:      c.Logger,
	}
}
