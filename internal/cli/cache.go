package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/blockorder/internal/config"
	"github.com/matzehuels/blockorder/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local layout cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheStatsCommand())

	return cmd
}

// fileCache opens the file cache directory without creating it. It returns
// nil when the directory does not exist yet.
func (c *CLI) fileCache() (*cache.FileCache, string, error) {
	if c.Config.Cache.Backend != config.CacheFile {
		return nil, "", fmt.Errorf("cache backend is %q; cache commands manage the file cache", c.Config.Cache.Backend)
	}
	dir, err := c.cacheDir()
	if err != nil {
		return nil, "", fmt.Errorf("get cache dir: %w", err)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, dir, nil
	}
	fc, err := cache.NewFileCache(dir)
	return fc, dir, err
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var expired bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached layouts and outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, dir, err := c.fileCache()
			if err != nil {
				return err
			}
			if fc == nil {
				printInfo("Cache is empty")
				return nil
			}
			count, err := fc.Clear(expired)
			if err != nil {
				return err
			}
			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&expired, "expired", false, "only remove expired entries")
	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

// cacheStatsCommand creates the "cache stats" subcommand.
func (c *CLI) cacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the size of the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, dir, err := c.fileCache()
			if err != nil {
				return err
			}
			var st cache.Stats
			if fc != nil {
				if st, err = fc.Stats(); err != nil {
					return err
				}
			}
			printKeyValue("Directory", dir)
			printKeyValue("Entries", strconv.Itoa(st.Entries))
			printKeyValue("Expired", strconv.Itoa(st.Expired))
			printKeyValue("Size", humanize.Bytes(uint64(st.Bytes)))
			return nil
		},
	}
}
