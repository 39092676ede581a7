package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/blockorder/pkg/pipeline"
)

// visualizeCommand creates the visualize command for drawing one function.
func (c *CLI) visualizeCommand() *cobra.Command {
	var (
		format string
		output string
		flags  layoutFlags
	)

	cmd := &cobra.Command{
		Use:   "visualize [profile.yaml]",
		Short: "Draw the control flow graph of one function",
		Long: `Draw the control flow graph of one function.

Blocks are labelled with their position in the computed layout, hot blocks
are filled and edge widths follow their weights. Without --function the
function with the highest optimized score is drawn.

DOT output can be post-processed with Graphviz; SVG is rendered in-process.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != pipeline.FormatDOT && format != pipeline.FormatSVG {
				return fmt.Errorf("visualize supports dot and svg, got %q", format)
			}
			opts := flags.options(c, args[0], []string{format})
			return c.runVisualize(cmd.Context(), opts, output, flags.noCache)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", pipeline.FormatSVG, "output format: svg, dot")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <profile>.<function>.<format>)")
	flags.register(cmd)

	return cmd
}

// runVisualize computes the layout and writes the drawing of one function.
func (c *CLI) runVisualize(ctx context.Context, opts pipeline.Options, output string, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Rendering "+opts.Formats[0]+"...")
	spinner.Start()

	res, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	g, err := pipeline.SelectFunction(res.Program, res.Layout, opts.Function)
	if err != nil {
		return err
	}
	format := opts.Formats[0]
	path := output
	if path == "" {
		path = outputBase(opts.ProfilePath, "") + "." + g.PrimaryName() + outputExt[format]
	}
	if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	printSuccess("Rendered %s", StyleHighlight.Render(g.PrimaryName()))
	printFile(path)
	printRunStats(res)
	return nil
}
