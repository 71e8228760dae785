// Package repeater re-transmits images that appear in a directory.
//
// The directory is polled rather than watched. A new file is encoded once its
// size and modification time have held still for one polling interval, so
// images still being copied in are not picked up half-written. The mode is
// taken from an abbreviation in the file name (M1, S2, PD120, ...) or, failing
// that, the first mode the image fits. Every transmission starts with VOX
// tones and is written as <name>.wav to the output directory. Output
// failures keep the image queued; repeated ones pause the repeater through a
// circuit breaker.
package repeater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/slowscan/internal/config"
	"github.com/MrWong99/slowscan/internal/observe"
	"github.com/MrWong99/slowscan/internal/resilience"
	"github.com/MrWong99/slowscan/internal/transmit"
	"github.com/MrWong99/slowscan/pkg/sstv"
)

// imageExts are the file extensions the repeater picks up.
var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// fileState is what a poll remembers about a pending file.
type fileState struct {
	size  int64
	mtime time.Time
}

func (s fileState) same(o fileState) bool {
	return s.size == o.size && s.mtime.Equal(o.mtime)
}

// Repeater polls a directory and encodes new images. Create it with [New]
// and start it with [Repeater.Run]. A Repeater is not safe for concurrent
// use; Run owns it.
type Repeater struct {
	dir      string
	outDir   string
	interval time.Duration
	backfill bool
	params   transmit.Params

	reg      *sstv.Registry
	svc      *transmit.Service
	metrics  *observe.Metrics
	breaker  *resilience.Breaker
	onResult func(transmit.Result, error)

	seen    map[string]bool
	pending map[string]fileState
}

// Option is a functional option for [New].
type Option func(*Repeater)

// WithRegistry selects modes from reg instead of [sstv.DefaultRegistry].
func WithRegistry(reg *sstv.Registry) Option {
	return func(r *Repeater) { r.reg = reg }
}

// WithService runs sessions through svc.
func WithService(svc *transmit.Service) Option {
	return func(r *Repeater) { r.svc = svc }
}

// WithMetrics records repeater counts into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Repeater) { r.metrics = m }
}

// WithOutputBreaker guards output writes with b instead of a default
// breaker.
func WithOutputBreaker(b *resilience.Breaker) Option {
	return func(r *Repeater) { r.breaker = b }
}

// WithBackfill also encodes images already present when Run starts. By
// default they are ignored.
func WithBackfill(v bool) Option {
	return func(r *Repeater) { r.backfill = v }
}

// WithResultHook calls fn after every attempted image, successful or not.
func WithResultHook(fn func(transmit.Result, error)) Option {
	return func(r *Repeater) { r.onResult = fn }
}

// New creates a Repeater for cfg. enc supplies the audio format; its mode is
// ignored because every image picks its own. cfg.SampleRate, when set,
// overrides enc.SampleRate.
func New(cfg config.RepeaterConfig, enc config.EncodeConfig, opts ...Option) (*Repeater, error) {
	if cfg.WatchDir == "" {
		return nil, errors.New("repeater: watch directory is required")
	}
	info, err := os.Stat(cfg.WatchDir)
	if err != nil {
		return nil, fmt.Errorf("repeater: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repeater: %s is not a directory", cfg.WatchDir)
	}

	p := transmit.ParamsFrom(enc)
	p.VOX = true
	if cfg.SampleRate != 0 {
		p.SampleRate = cfg.SampleRate
	}
	r := &Repeater{
		dir:      cfg.WatchDir,
		outDir:   cfg.OutputDir,
		interval: cfg.Interval.Duration,
		params:   p,
		reg:      sstv.DefaultRegistry(),
		seen:     make(map[string]bool),
		pending:  make(map[string]fileState),
	}
	if r.outDir == "" {
		r.outDir = r.dir
	}
	if r.interval <= 0 {
		r.interval = 2 * time.Second
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	if r.svc == nil {
		r.svc = transmit.New(r.metrics)
	}
	if r.breaker == nil {
		r.breaker = resilience.NewBreaker(resilience.BreakerConfig{
			Name:     "repeater output",
			Cooldown: max(15*r.interval, 30*time.Second),
		})
	}
	return r, nil
}

// Run polls until ctx is cancelled. Images present at start are skipped
// unless [WithBackfill] is set.
func (r *Repeater) Run(ctx context.Context) error {
	if !r.backfill {
		names, err := r.list()
		if err != nil {
			return err
		}
		for _, name := range names {
			r.seen[name] = true
		}
	}
	slog.Info("repeater watching", "dir", r.dir, "output_dir", r.outDir, "interval", r.interval, "skipped", len(r.seen))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.poll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll runs one pass over the directory and returns how many images it
// attempted.
func (r *Repeater) poll(ctx context.Context) int {
	names, err := r.list()
	if err != nil {
		slog.Warn("repeater: cannot list directory", "dir", r.dir, "err", err)
		return 0
	}

	// Forget files that went away so a new file of the same name repeats.
	for name := range r.seen {
		if !slices.Contains(names, name) {
			delete(r.seen, name)
		}
	}

	attempted := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return attempted
		}
		if r.seen[name] {
			continue
		}
		path := filepath.Join(r.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			delete(r.pending, name)
			continue
		}
		st := fileState{size: info.Size(), mtime: info.ModTime()}
		if prev, ok := r.pending[name]; !ok || !prev.same(st) {
			r.pending[name] = st
			continue
		}

		ran, done := r.repeat(ctx, path)
		if ran {
			attempted++
		}
		if done {
			delete(r.pending, name)
			r.seen[name] = true
		}
	}
	return attempted
}

// repeat encodes one settled image. ran reports whether an encode was
// attempted; done is false when the image should be tried again on a later
// poll because the output side failed or the run was cancelled.
func (r *Repeater) repeat(ctx context.Context, path string) (ran, done bool) {
	var (
		res transmit.Result
		err error
	)
	gate := r.breaker.Do(func() error {
		ran = true
		slog.Info("repeater: found image", "path", path)
		res, err = r.svc.EncodeFile(ctx, r.reg, transmit.Job{
			Input:     path,
			OutputDir: r.outDir,
			Params:    r.params,
		}, nil)
		if errors.Is(err, transmit.ErrOutput) {
			return err
		}
		return nil
	})
	if errors.Is(gate, resilience.ErrOpen) {
		slog.Debug("repeater: output paused", "path", path)
		return false, false
	}

	status := observe.StatusOK
	done = true
	switch {
	case errors.Is(err, context.Canceled):
		status = observe.StatusCanceled
		done = false
	case errors.Is(err, transmit.ErrOutput):
		status = observe.StatusError
		done = false
		slog.Warn("repeater: cannot write output, will retry", "path", path, "err", err)
	case err != nil:
		status = observe.StatusError
		slog.Warn("repeater: cannot repeat image", "path", path, "err", err)
	default:
		slog.Info("repeater: image repeated", "path", path, "mode", res.Mode, "output", res.Output, "air_time", res.AirTime)
	}
	r.metrics.RecordRepeaterImage(ctx, status)
	if r.onResult != nil {
		r.onResult(res, err)
	}
	return ran, done
}

// list returns the image file names in the watch directory in name order.
func (r *Repeater) list() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("repeater: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if slices.Contains(imageExts, strings.ToLower(filepath.Ext(name))) {
			names = append(names, name)
		}
	}
	return names, nil
}
