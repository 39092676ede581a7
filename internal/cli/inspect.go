package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/blockorder/pkg/pipeline"
)

// inspectCommand creates the inspect command for browsing a layout.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		plain bool
		flags layoutFlags
	)

	cmd := &cobra.Command{
		Use:   "inspect [profile.yaml]",
		Short: "Browse the computed layout function by function",
		Long: `Browse the computed layout function by function.

Opens an interactive table of all functions with their layout index, block
counts and score gain. Press enter to show the block order of the selected
function. Use --plain for a static table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(c, args[0], []string{pipeline.FormatClusters})
			return c.runInspect(cmd.Context(), opts, plain, flags.noCache)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print a static table instead of the interactive view")
	flags.register(cmd)

	return cmd
}

func (c *CLI) runInspect(ctx context.Context, opts pipeline.Options, plain, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	res, err := runner.Execute(ctx, opts)
	if err != nil {
		return err
	}

	if plain {
		fmt.Println(layoutTable(res.Layout, 0))
		return nil
	}

	_, err = tea.NewProgram(NewFunctionListModel(res.Layout), tea.WithContext(ctx)).Run()
	return err
}
