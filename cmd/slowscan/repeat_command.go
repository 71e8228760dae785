package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/slowscan/internal/config"
	"github.com/MrWong99/slowscan/internal/repeater"
)

func newRepeatCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir   string
		interval time.Duration
		rate     int
		backfill bool
	)

	cmd := &cobra.Command{
		Use:   "repeat [DIR]",
		Short: "Re-transmit images that appear in a directory",
		Long: `Watch DIR (default repeater.watch_dir from config) and encode every new
image as <name>.wav with VOX tones. The mode comes from an abbreviation in
the file name as used by slowrx and QSSTV (M1, S1, R36, PD120, ...) or else
the first mode the image fits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			rc := cfg.Repeater
			if len(args) == 1 {
				rc.WatchDir = args[0]
			}
			f := cmd.Flags()
			if f.Changed("out-dir") {
				rc.OutputDir = outDir
			}
			if f.Changed("interval") {
				rc.Interval.Duration = interval
			}
			if f.Changed("rate") {
				rc.SampleRate = rate
			}

			check := *cfg
			check.Repeater = rc
			if err := config.Validate(&check); err != nil {
				return err
			}

			r, err := repeater.New(rc, cfg.Encode, repeater.WithBackfill(backfill))
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = r.Run(runCtx)
			slog.Info("repeater stopped")
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&outDir, "out-dir", "", "Directory for WAV files (default: the watched directory)")
	flags.DurationVar(&interval, "interval", 0, "Polling interval (default from config)")
	flags.IntVarP(&rate, "rate", "r", 0, "Sample rate in Hz (default from config)")
	flags.BoolVar(&backfill, "backfill", false, "Also encode images already in the directory")
	return cmd
}
