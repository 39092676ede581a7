package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/blockorder/pkg/pipeline"
	"github.com/matzehuels/blockorder/pkg/store"
)

// outputExt maps formats to the suffix appended to the output base.
var outputExt = map[string]string{
	pipeline.FormatClusters:    ".clusters.txt",
	pipeline.FormatSymbolOrder: ".symorder.txt",
	pipeline.FormatJSON:        ".layout.json",
	pipeline.FormatDOT:         ".dot",
	pipeline.FormatSVG:         ".svg",
}

// layoutCommand creates the layout command.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output     string
		formatsStr string
		save       bool
		flags      layoutFlags
	)

	cmd := &cobra.Command{
		Use:   "layout [profile.yaml]",
		Short: "Compute a basic block layout from a profile",
		Long: `Compute a basic block layout from a profile.

The layout command reads a weighted control flow profile (YAML or JSON),
orders the hot blocks of every function and writes one file per output
format next to the profile:

  clusters   <base>.clusters.txt   linker basic block sections file
  symorder   <base>.symorder.txt   symbol ordering file
  json       <base>.layout.json    full layout with scores
  dot, svg   <base>.dot/.svg       control flow graph of one function

Results are cached, so rerunning with the same profile and parameters is
instant. Use --save to keep the run in the run store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := pipeline.ParseFormats(formatsStr)
			if err := pipeline.ValidateFormats(formats); err != nil {
				return err
			}
			opts := flags.options(c, args[0], formats)
			return c.runLayout(cmd.Context(), opts, output, flags.noCache, save)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output base path (default: profile path without extension)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "clusters,symorder", "output formats: clusters, symorder, json, dot, svg (comma-separated)")
	cmd.Flags().BoolVar(&save, "save", false, "keep the run in the run store")
	flags.register(cmd)

	return cmd
}

// runLayout executes the pipeline and writes one file per format.
func (c *CLI) runLayout(ctx context.Context, opts pipeline.Options, output string, noCache, save bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Computing layout...")
	spinner.Start()
	prog := newProgress(c.Logger)

	res, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return err
	}
	spinner.Stop()
	prog.done("Ordered blocks")

	base := outputBase(opts.ProfilePath, output)
	paths, err := writeArtifacts(base, res.Artifacts)
	if err != nil {
		return err
	}

	printSuccess("Layout complete")
	for _, p := range paths {
		printFile(p)
	}
	printRunStats(res)
	printNewline()
	fmt.Println(layoutTable(res.Layout, 10))

	if save {
		id, err := c.saveRun(ctx, res)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		printNewline()
		printSuccess("Saved run %s", StyleHighlight.Render(id))
	}

	printNewline()
	printNextStep("Inspect", appName+" inspect "+opts.ProfilePath)
	return nil
}

// saveRun stores res in the configured run store and returns the run id.
func (c *CLI) saveRun(ctx context.Context, res *pipeline.Result) (string, error) {
	s, err := c.Config.Store.Open(ctx)
	if err != nil {
		return "", err
	}
	defer s.Close()

	run := store.NewRun(res.ProfileHash, res.Layout, c.Config.Store.TTL.Duration)
	run.Artifacts = res.Artifacts
	if err := s.Put(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

// outputBase returns output, or the profile path without its extension.
func outputBase(profile, output string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(profile, filepath.Ext(profile))
}

// writeArtifacts writes each artifact to base plus its format suffix and
// returns the paths in format order.
func writeArtifacts(base string, artifacts map[string][]byte) ([]string, error) {
	formats := make([]string, 0, len(artifacts))
	for f := range artifacts {
		formats = append(formats, f)
	}
	slices.Sort(formats)

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := base + outputExt[f]
		if err := os.WriteFile(path, artifacts[f], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
