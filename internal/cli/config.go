package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/matzehuels/blockorder/internal/config"
)

// configCommand creates the config management command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration files",
		Long: `Show or create configuration files.

Settings are merged from the global file, ./` + config.ProjectFile + ` and
BLOCKORDER_* environment variables. Flags override all of them.`,
	}

	cmd.AddCommand(c.configInitCommand())
	cmd.AddCommand(c.configShowCommand())
	cmd.AddCommand(c.configPathCommand())

	return cmd
}

// configInitCommand creates the "config init" subcommand.
func (c *CLI) configInitCommand() *cobra.Command {
	var project, force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GlobalPath()
			if project {
				path = config.ProjectFile
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := *c.Config
			if err := runConfigForm(&cfg); err != nil {
				return fmt.Errorf("interactive prompt failed: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			printSuccess("Wrote config")
			printFile(path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&project, "project", false, "write ./"+config.ProjectFile+" instead of the global file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// runConfigForm asks for the settings that differ between machines and
// updates cfg in place.
func runConfigForm(cfg *config.Config) error {
	workers := strconv.Itoa(cfg.Workers)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Cache backend").
				Description("Where computed layouts are cached").
				Options(
					huh.NewOption("Local files", config.CacheFile),
					huh.NewOption("Redis", config.CacheRedis),
					huh.NewOption("Disabled", config.CacheNone),
				).
				Value(&cfg.Cache.Backend),
			huh.NewSelect[string]().
				Title("Run store").
				Description("Where saved runs are kept").
				Options(
					huh.NewOption("Local files", config.StoreFile),
					huh.NewOption("MongoDB", config.StoreMongo),
				).
				Value(&cfg.Store.Backend),
			huh.NewInput().
				Title("Parallel workers").
				Description("0 uses all CPUs").
				Value(&workers).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 0 {
						return fmt.Errorf("enter a non-negative number")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Workers, _ = strconv.Atoi(workers)

	if cfg.Cache.Backend == config.CacheRedis {
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Redis address").
					Placeholder("localhost:6379").
					Value(&cfg.Cache.Redis.Addr),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}
	}
	if cfg.Store.Backend == config.StoreMongo {
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("MongoDB URI").
					Placeholder("mongodb://localhost:27017").
					Value(&cfg.Store.Mongo.URI),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Split chains when merging?").
				Description("Disabling is faster but may give worse layouts").
				Value(&cfg.Layout.ChainSplit),
		),
	).Run()
}

// configShowCommand creates the "config show" subcommand.
func (c *CLI) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, src := range c.Config.Sources {
				fmt.Println(StyleDim.Render("# from " + src))
			}
			data, err := c.Config.Encode()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

// configPathCommand creates the "config path" subcommand.
func (c *CLI) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			printKeyValue("Global", config.GlobalPath())
			printKeyValue("Project", config.ProjectFile)
			return nil
		},
	}
}
