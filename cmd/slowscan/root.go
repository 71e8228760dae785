package main

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/MrWong99/slowscan/internal/config"
)

// commandContext carries state shared by every subcommand: the persistent
// flags and the configuration they select.
type commandContext struct {
	configPath string
	logLevel   string
	logJSON    bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// level is shared with the installed logger so a config reload can
	// change verbosity.
	level slog.LevelVar
}

// ensureConfig loads the configuration once. Without --config the built-in
// defaults are used. The log flags override the file.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg := config.Default()
		if path := strings.TrimSpace(c.configPath); path != "" {
			loaded, err := config.Load(path)
			if err != nil {
				c.configErr = err
				return
			}
			cfg = *loaded
		}
		if c.logLevel != "" {
			cfg.Log.Level = config.LogLevel(c.logLevel)
		}
		if c.logJSON {
			cfg.Log.JSON = true
		}
		if err := config.Validate(&cfg); err != nil {
			c.configErr = err
			return
		}
		c.config = &cfg
	})
	return c.config, c.configErr
}

// setupLogging installs the default slog logger writing to w.
func (c *commandContext) setupLogging(cfg *config.Config, w io.Writer) {
	c.level.Set(cfg.Log.Level.SlogLevel())
	slog.SetDefault(newLogger(w, &c.level, cfg.Log.JSON))
}

func newLogger(w io.Writer, level slog.Leveler, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "slowscan",
		Short:         "Encode images as slow-scan television audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ctx.setupLogging(cfg, cmd.ErrOrStderr())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (.yaml, .yml or .toml)")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&ctx.logJSON, "log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(newEncodeCommand(ctx))
	rootCmd.AddCommand(newModesCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRepeatCommand(ctx))

	return rootCmd
}

// configValue returns the loaded configuration, or nil before
// PersistentPreRunE has loaded it successfully.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}
