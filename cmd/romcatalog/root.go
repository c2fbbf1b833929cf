package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryanm101/romcatalog/internal/app"
	"github.com/ryanm101/romcatalog/internal/config"
)

// commandContext lazily loads configuration and the application graph
// shared by subcommands.
type commandContext struct {
	configFlag *string
	logLevel   *string
	cfg        *config.Config
	app        *app.App
}

func newCommandContext(configFlag, logLevel *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevel: logLevel}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if c.configFlag != nil && *c.configFlag != "" {
		cfg, err = config.LoadFile(*c.configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != nil && *c.logLevel != "" {
		cfg.Logging.Level = *c.logLevel
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close(ctx)
	c.app = nil
	return err
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevel string

	ctx := newCommandContext(&configFlag, &logLevel)

	rootCmd := &cobra.Command{
		Use:           "romcatalog",
		Short:         "Identify ROMs and pull metadata and artwork from game catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close(context.WithoutCancel(cmd.Context()))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newNormalizeCommand())
	rootCmd.AddCommand(newClassifyCommand(ctx))
	rootCmd.AddCommand(newPlatformsCommand(ctx))
	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newRefreshCommand(ctx))
	rootCmd.AddCommand(newImagesCommand(ctx))

	return rootCmd
}
