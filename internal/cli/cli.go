// Package cli implements the blockorder command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/blockorder/internal/config"
	"github.com/matzehuels/blockorder/pkg/buildinfo"
	"github.com/matzehuels/blockorder/pkg/cache"
	"github.com/matzehuels/blockorder/pkg/observability"
	"github.com/matzehuels/blockorder/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "blockorder"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// Config is loaded before any subcommand runs.
	Config *config.Config

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	c.Logger.SetReportCaller(level <= log.DebugLevel)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "blockorder reorders basic blocks using profile data",
		Long: `blockorder computes a profile-guided basic block layout.

It reads a weighted control flow profile, chains hot blocks so that frequent
branches become fallthroughs, and writes a linker cluster file and symbol
ordering file.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: global and project files)")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.visualizeCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	c.Config = cfg
	for _, src := range cfg.Sources {
		c.Logger.Debug("loaded config", "path", src)
	}
	observability.SetPipelineHooks(observability.NewLogHooks(c.Logger))
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, nil, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	return c.Config.Cache.Open(ctx)
}

// cacheDir returns the file cache directory using XDG standard (~/.cache/blockorder/).
func (c *CLI) cacheDir() (string, error) {
	return c.Config.Cache.CacheDir()
}
