package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MrWong99/slowscan/internal/config"
	"github.com/MrWong99/slowscan/internal/transmit"
	"github.com/MrWong99/slowscan/pkg/sstv"
)

// modeAuto selects the mode from the file name or image size.
const modeAuto = "auto"

type encodeOptions struct {
	mode        string
	rate        int
	bits        int
	channels    int
	vox         bool
	fskid       string
	seed        uint64
	out         string
	outDir      string
	parallel    int
	rawSegments bool
	rawFloats   bool
	jsonOutput  bool
	noProgress  bool
}

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var opts encodeOptions

	cmd := &cobra.Command{
		Use:   "encode [flags] IMAGE...",
		Short: "Encode images as SSTV WAV files",
		Long: `Encode one or more images. Each IMAGE is written next to itself as a .wav
file unless --out or --out-dir says otherwise. With --mode auto the mode is
taken from an abbreviation in the file name (M1, S2, PD120, ...) or else the
first mode the image fits. Images larger than the mode are cropped to the
top-left corner.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := opts.encodeConfig(cmd, ctx.configValue().Encode)
			if err != nil {
				return err
			}
			p := transmit.ParamsFrom(enc)
			if cmd.Flags().Changed("seed") {
				p.Seed = &opts.seed
			}
			mode := enc.Mode
			if mode == modeAuto {
				mode = ""
			}

			if opts.rawSegments || opts.rawFloats {
				if len(args) != 1 {
					return errors.New("raw output takes exactly one image")
				}
				return runRaw(cmd, opts, transmit.Job{Input: args[0], Mode: mode, Params: p})
			}
			if opts.out != "" && len(args) != 1 {
				return errors.New("--out takes exactly one image; use --out-dir for several")
			}
			if opts.out == "-" {
				return runStdoutWAV(cmd, transmit.Job{Input: args[0], Mode: mode, Params: p})
			}

			jobs := make([]transmit.Job, len(args))
			for i, in := range args {
				jobs[i] = transmit.Job{Input: in, Output: opts.out, OutputDir: opts.outDir, Mode: mode, Params: p}
			}
			return runEncode(cmd, opts, jobs)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.mode, "mode", "m", "", `Mode name, or "auto" (default from config)`)
	flags.IntVarP(&opts.rate, "rate", "r", 0, "Sample rate in Hz (default from config)")
	flags.IntVarP(&opts.bits, "bits", "b", 0, "Bits per sample, 8 or 16 (default from config)")
	flags.IntVar(&opts.channels, "chan", 0, "Number of output channels (default from config)")
	flags.BoolVar(&opts.vox, "vox", false, "Prepend VOX tones")
	flags.StringVar(&opts.fskid, "fskid", "", "Station id sent as FSK after the image")
	flags.Uint64Var(&opts.seed, "seed", 0, "Fix the dither seed for reproducible output")
	flags.StringVarP(&opts.out, "out", "o", "", `Output file; "-" writes to stdout`)
	flags.StringVar(&opts.outDir, "out-dir", "", "Directory for output files")
	flags.IntVarP(&opts.parallel, "parallel", "j", 0, "Images encoded at once (0 = all)")
	flags.BoolVar(&opts.rawSegments, "raw-segments", false, "Write (frequency, msec) float32 pairs instead of WAV")
	flags.BoolVar(&opts.rawFloats, "raw-floats", false, "Write float32 samples instead of WAV")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	cmd.MarkFlagsMutuallyExclusive("raw-segments", "raw-floats")
	cmd.MarkFlagsMutuallyExclusive("out", "out-dir")

	return cmd
}

// encodeConfig applies the flags that were set on top of defaults.
func (o encodeOptions) encodeConfig(cmd *cobra.Command, defaults config.EncodeConfig) (config.EncodeConfig, error) {
	enc := defaults
	f := cmd.Flags()
	if f.Changed("mode") {
		enc.Mode = o.mode
	}
	if f.Changed("rate") {
		enc.SampleRate = o.rate
	}
	if f.Changed("bits") {
		enc.Bits = o.bits
	}
	if f.Changed("chan") {
		enc.Channels = o.channels
	}
	if f.Changed("vox") {
		enc.VOX = o.vox
	}
	if f.Changed("fskid") {
		enc.FSKID = o.fskid
	}
	return enc, config.ValidateFormat(enc)
}

func runEncode(cmd *cobra.Command, opts encodeOptions, jobs []transmit.Job) error {
	svc := transmit.New(nil)

	var progress func(job int) transmit.Progress
	if !opts.noProgress && !opts.jsonOutput && isTerminal(cmd.ErrOrStderr()) {
		bar := newProgressBar(cmd.ErrOrStderr(), len(jobs))
		defer bar.finish()
		progress = bar.job
	}

	results, err := svc.EncodeFiles(cmd.Context(), sstv.DefaultRegistry(), jobs, opts.parallel, progress)

	if opts.jsonOutput {
		if jerr := writeJSON(cmd, results); jerr != nil {
			return errors.Join(err, jerr)
		}
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Output == "" {
			continue
		}
		fmt.Fprintf(out, "%s -> %s (%s, %s, %s)\n", r.Input, r.Output, r.Mode, r.Format, r.AirTime.Round(time.Millisecond))
	}
	return err
}

// runRaw writes the segment list or float waveform of one image.
func runRaw(cmd *cobra.Command, opts encodeOptions, job transmit.Job) error {
	enc, err := transmit.New(nil).Prepare(sstv.DefaultRegistry(), job)
	if err != nil {
		return err
	}
	w, closeOut, err := openOutput(cmd, opts.out)
	if err != nil {
		return err
	}

	if opts.rawSegments {
		_, err = transmit.WriteRawSegments(w, enc)
	} else {
		_, err = transmit.WriteRawFloats(w, enc)
	}
	return errors.Join(err, closeOut())
}

// runStdoutWAV streams one image as WAV to stdout.
func runStdoutWAV(cmd *cobra.Command, job transmit.Job) error {
	svc := transmit.New(nil)
	enc, err := svc.Prepare(sstv.DefaultRegistry(), job)
	if err != nil {
		return err
	}
	w, closeOut, err := openOutput(cmd, "-")
	if err != nil {
		return err
	}
	_, err = svc.WriteWAV(cmd.Context(), w, enc, nil)
	return errors.Join(err, closeOut())
}

// openOutput opens path for writing, or stdout for "" and "-". Binary data
// is never written to a terminal.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("create output: %w", err)
		}
		return f, f.Close, nil
	}
	w := cmd.OutOrStdout()
	if isTerminal(w) {
		return nil, nil, errors.New("refusing to write binary data to a terminal; use --out FILE")
	}
	return w, func() error { return nil }, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// batchProgress drives one bar for a whole batch. Each job contributes up
// to perJob steps in proportion to its own progress.
type batchProgress struct {
	bar  *progressbar.ProgressBar
	jobs []atomic.Int64
}

const perJob = 1000

func newProgressBar(w io.Writer, jobs int) *batchProgress {
	desc := "encoding"
	if jobs > 1 {
		desc = fmt.Sprintf("encoding %d images", jobs)
	}
	return &batchProgress{
		bar: progressbar.NewOptions64(int64(jobs)*perJob,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		),
		jobs: make([]atomic.Int64, jobs),
	}
}

func (b *batchProgress) job(i int) transmit.Progress {
	return func(done, total int64) {
		if total <= 0 {
			return
		}
		b.jobs[i].Store(done * perJob / total)
		var sum int64
		for j := range b.jobs {
			sum += b.jobs[j].Load()
		}
		_ = b.bar.Set64(sum)
	}
}

func (b *batchProgress) finish() {
	_ = b.bar.Finish()
}
