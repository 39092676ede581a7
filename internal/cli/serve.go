package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/blockorder/internal/server"
	"github.com/matzehuels/blockorder/pkg/cache"
	"github.com/matzehuels/blockorder/pkg/store"
)

// cleanupInterval is how often the server removes expired runs.
const cleanupInterval = time.Hour

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the layout API over HTTP",
		Long: `Serve the layout API over HTTP.

POST a profile to /v1/layouts to compute a layout. Runs are kept in the
configured run store and can be fetched by id until they expire. Cache and
store backends come from the config, so several instances can share Redis
and MongoDB.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.Server.Addr
			}
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: config server.addr)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	// API entries live in their own key space when the cache is shared.
	runner.Keyer = cache.NewScopedKeyer(runner.Keyer, "api:")

	s, err := c.Config.Store.Open(ctx)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer s.Close()

	go c.cleanupLoop(ctx, s)

	srv := server.New(server.Options{
		Runner:       runner,
		Store:        s,
		Logger:       c.Logger,
		Params:       c.Config.Layout,
		Workers:      c.Config.Workers,
		TTL:          c.Config.Store.TTL.Duration,
		MaxBodyBytes: c.Config.Server.MaxBodyBytes,
		Timeout:      c.Config.Server.Timeout.Duration,
	})
	fmt.Println(StyleTitle.Render("blockorder API") + " " + StyleLink.Render("http://"+addr))
	return srv.ListenAndServe(ctx, addr)
}

// cleanupLoop removes expired runs until ctx is done.
func (c *CLI) cleanupLoop(ctx context.Context, s store.Store) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Cleanup(ctx)
			if err != nil {
				c.Logger.Warn("run cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				c.Logger.Info("removed expired runs", "count", n)
			}
		}
	}
}
