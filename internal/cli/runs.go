package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/blockorder/pkg/cache"
	"github.com/matzehuels/blockorder/pkg/store"
)

// runsCommand creates the run store management command.
func (c *CLI) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored layout runs",
		Long: `Manage stored layout runs.

Runs are saved by 'layout --save' and by the HTTP API. The store backend is
chosen in the [store] section of the config.`,
	}

	cmd.AddCommand(c.runsListCommand())
	cmd.AddCommand(c.runsShowCommand())
	cmd.AddCommand(c.runsRemoveCommand())
	cmd.AddCommand(c.runsCleanupCommand())

	return cmd
}

// withStore opens the configured store for the duration of fn.
func (c *CLI) withStore(ctx context.Context, fn func(store.Store) error) error {
	s, err := c.Config.Store.Open(ctx)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer s.Close()
	return fn(s)
}

func (c *CLI) runsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(s store.Store) error {
				runs, err := s.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					printInfo("No stored runs")
					return nil
				}
				fmt.Println(runsTable(runs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 for all)")
	return cmd
}

func (c *CLI) runsShowCommand() *cobra.Command {
	var artifact string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored run",
		Long: `Show a stored run.

With --artifact the stored output of that format is written to stdout, so
'runs show <id> --artifact clusters > prog.txt' recovers the cluster file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(s store.Store) error {
				run, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if artifact != "" {
					data, ok := run.Artifacts[artifact]
					if !ok {
						return fmt.Errorf("run %s has no %s artifact", run.ID, artifact)
					}
					_, err := os.Stdout.Write(data)
					return err
				}
				printRun(run)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&artifact, "artifact", "", "write the artifact of this format to stdout")
	return cmd
}

func (c *CLI) runsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Remove stored runs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(s store.Store) error {
				for _, id := range args {
					if err := store.ValidateID(id); err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					if err := s.Delete(cmd.Context(), id); err != nil {
						return err
					}
					printSuccess("Removed %s", id)
				}
				return nil
			})
		},
	}
}

func (c *CLI) runsCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(s store.Store) error {
				n, err := s.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				printSuccess("Removed %d expired runs", n)
				return nil
			})
		},
	}
}

// printRun prints the summary of one run.
func printRun(run *store.Run) {
	fmt.Println(StyleTitle.Render("Run " + run.ID))
	printKeyValue("Created", run.CreatedAt.Local().Format(time.DateTime))
	printKeyValue("Expires", run.ExpiresAt.Local().Format(time.DateTime))
	printKeyValue("Profile", run.ProfileHash)
	printKeyValue("Functions", fmt.Sprintf("%d (%d hot)", run.Functions, run.Totals.HotFunctions))
	printKeyValue("Hot blocks", strconv.Itoa(run.Totals.HotBlocks))
	printKeyValue("Score", fmt.Sprintf("%d → %d (x%.3f)",
		run.Totals.OriginalScore.Total(), run.Totals.OptimizedScore.Total(), run.Totals.Improvement()))
	for _, format := range slices.Sorted(maps.Keys(run.Artifacts)) {
		printDetail("artifact: %s", format)
	}
	if run.Layout != nil {
		printNewline()
		fmt.Println(layoutTable(run.Layout, 10))
	}
}

func runsTable(runs []*store.Run) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID,
			formatRelativeTime(r.CreatedAt),
			cache.ShortHash(r.ProfileHash),
			strconv.Itoa(r.Functions),
			strconv.Itoa(r.Totals.HotBlocks),
			fmt.Sprintf("x%.3f", r.Totals.Improvement()),
		}
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Created", "Profile", "Functions", "Hot blocks", "Gain").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorCyan)
			}
			return lipgloss.NewStyle().Foreground(colorGray)
		}).
		Render()
}

func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
