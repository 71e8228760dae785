package repeater

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/slowscan/internal/config"
	"github.com/MrWong99/slowscan/internal/imageio"
	"github.com/MrWong99/slowscan/internal/observe"
	"github.com/MrWong99/slowscan/internal/resilience"
	"github.com/MrWong99/slowscan/internal/transmit"
)

type outcome struct {
	res transmit.Result
	err error
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// newRepeater returns a repeater over a fresh directory pair, a channel of
// outcomes and the metric reader.
func newRepeater(t *testing.T, opts ...Option) (*Repeater, string, string, chan outcome, *sdkmetric.ManualReader) {
	t.Helper()
	in, out := t.TempDir(), t.TempDir()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	results := make(chan outcome, 16)
	cfg := config.RepeaterConfig{
		WatchDir:   in,
		OutputDir:  out,
		Interval:   config.Duration{Duration: 10 * time.Millisecond},
		SampleRate: 8000,
	}
	opts = append([]Option{
		WithMetrics(m),
		WithResultHook(func(res transmit.Result, err error) { results <- outcome{res, err} }),
	}, opts...)
	r, err := New(cfg, config.Default().Encode, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, in, out, results, reader
}

func repeaterCount(t *testing.T, reader *sdkmetric.ManualReader, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "slowscan.repeater.images" {
				continue
			}
			var n int64
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				if v, ok := dp.Attributes.Value("status"); ok && v.AsString() == status {
					n += dp.Value
				}
			}
			return n
		}
	}
	return 0
}

func TestNew_Errors(t *testing.T) {
	enc := config.Default().Encode
	file := filepath.Join(t.TempDir(), "f.png")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	for name, cfg := range map[string]config.RepeaterConfig{
		"empty":     {},
		"missing":   {WatchDir: filepath.Join(t.TempDir(), "nope")},
		"not a dir": {WatchDir: file},
	} {
		if _, err := New(cfg, enc); err == nil {
			t.Errorf("%s: New succeeded", name)
		}
	}
}

func TestNew_Params(t *testing.T) {
	dir := t.TempDir()
	enc := config.Default().Encode
	enc.VOX = false

	r, err := New(config.RepeaterConfig{WatchDir: dir, SampleRate: 22050}, enc)
	if err != nil {
		t.Fatal(err)
	}
	if !r.params.VOX {
		t.Error("VOX not forced on")
	}
	if r.params.SampleRate != 22050 {
		t.Errorf("sample rate = %d, want repeater override 22050", r.params.SampleRate)
	}
	if r.outDir != dir {
		t.Errorf("output dir = %q, want watch dir", r.outDir)
	}
	if r.interval != 2*time.Second {
		t.Errorf("interval = %v, want default 2s", r.interval)
	}
}

func TestPoll_WaitsForFileToSettle(t *testing.T) {
	r, in, out, results, reader := newRepeater(t)
	ctx := context.Background()
	writePNG(t, filepath.Join(in, "pic_R8BW.png"), 160, 120)

	if n := r.poll(ctx); n != 0 {
		t.Fatalf("first poll attempted %d images, want 0", n)
	}
	if n := r.poll(ctx); n != 1 {
		t.Fatalf("second poll attempted %d images, want 1", n)
	}
	if n := r.poll(ctx); n != 0 {
		t.Fatalf("third poll attempted %d images, want 0", n)
	}

	o := <-results
	if o.err != nil {
		t.Fatalf("repeat: %v", o.err)
	}
	if o.res.Mode != "Robot8BW" {
		t.Errorf("mode = %q, want Robot8BW from the file name", o.res.Mode)
	}
	wav := filepath.Join(out, "pic_R8BW.wav")
	if o.res.Output != wav {
		t.Errorf("output = %q, want %q", o.res.Output, wav)
	}
	data, err := os.ReadFile(wav)
	if err != nil {
		t.Fatal(err)
	}
	if rate := binary.LittleEndian.Uint32(data[24:]); rate != 8000 {
		t.Errorf("sample rate = %d, want 8000", rate)
	}
	if n := repeaterCount(t, reader, observe.StatusOK); n != 1 {
		t.Errorf("ok count = %d, want 1", n)
	}
}

func TestPoll_ChangingFileIsDeferred(t *testing.T) {
	r, in, _, _, _ := newRepeater(t)
	ctx := context.Background()
	path := filepath.Join(in, "grow.png")

	writePNG(t, path, 160, 120)
	r.poll(ctx)
	writePNG(t, path, 320, 256)
	if n := r.poll(ctx); n != 0 {
		t.Fatalf("poll after rewrite attempted %d images, want 0", n)
	}
	if n := r.poll(ctx); n != 1 {
		t.Fatalf("settled poll attempted %d images, want 1", n)
	}
}

func TestPoll_IgnoresOtherFiles(t *testing.T) {
	r, in, _, _, _ := newRepeater(t)
	ctx := context.Background()
	for _, name := range []string{"notes.txt", ".hidden.png", "audio.wav"} {
		if err := os.WriteFile(filepath.Join(in, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(in, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}
	r.poll(ctx)
	if n := r.poll(ctx); n != 0 {
		t.Errorf("attempted %d non-image files", n)
	}
}

func TestPoll_NoModeFits(t *testing.T) {
	r, in, _, results, reader := newRepeater(t)
	ctx := context.Background()
	writePNG(t, filepath.Join(in, "tiny.png"), 16, 16)

	r.poll(ctx)
	r.poll(ctx)
	o := <-results
	if !errors.Is(o.err, imageio.ErrNoMode) {
		t.Errorf("err = %v, want ErrNoMode", o.err)
	}
	if n := repeaterCount(t, reader, observe.StatusError); n != 1 {
		t.Errorf("error count = %d, want 1", n)
	}
	if n := r.poll(ctx); n != 0 {
		t.Errorf("failed image retried %d times", n)
	}
}

func TestPoll_RepeatsRecreatedFile(t *testing.T) {
	r, in, _, _, _ := newRepeater(t)
	ctx := context.Background()
	path := filepath.Join(in, "again.png")

	writePNG(t, path, 160, 120)
	r.poll(ctx)
	r.poll(ctx)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	r.poll(ctx)

	writePNG(t, path, 160, 120)
	r.poll(ctx)
	if n := r.poll(ctx); n != 1 {
		t.Errorf("recreated file attempted %d times, want 1", n)
	}
}

func TestRun_SkipsExistingFiles(t *testing.T) {
	r, in, _, results, _ := newRepeater(t)
	writePNG(t, filepath.Join(in, "old.png"), 160, 120)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Give Run time to take its baseline before the new file appears.
	time.Sleep(50 * time.Millisecond)
	writePNG(t, filepath.Join(in, "new.png"), 160, 120)

	select {
	case o := <-results:
		if o.err != nil {
			t.Fatalf("repeat: %v", o.err)
		}
		if filepath.Base(o.res.Input) != "new.png" {
			t.Errorf("repeated %q, want new.png", o.res.Input)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("new file was not repeated")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	select {
	case o := <-results:
		t.Errorf("unexpected extra repeat of %q", o.res.Input)
	default:
	}
}

func TestRun_Backfill(t *testing.T) {
	r, in, _, results, _ := newRepeater(t, WithBackfill(true))
	writePNG(t, filepath.Join(in, "old.png"), 160, 120)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	select {
	case o := <-results:
		if filepath.Base(o.res.Input) != "old.png" {
			t.Errorf("repeated %q, want old.png", o.res.Input)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("existing file was not backfilled")
	}
}

func TestPoll_OutputFailureRetriesAndPauses(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "test", MaxFailures: 2, Cooldown: time.Hour})
	r, in, _, results, reader := newRepeater(t, WithOutputBreaker(breaker))
	ctx := context.Background()
	r.outDir = filepath.Join(t.TempDir(), "not-yet")
	writePNG(t, filepath.Join(in, "pic.png"), 160, 120)

	r.poll(ctx)
	for i := range 2 {
		if n := r.poll(ctx); n != 1 {
			t.Fatalf("poll %d attempted %d, want 1", i, n)
		}
		if o := <-results; !errors.Is(o.err, transmit.ErrOutput) {
			t.Fatalf("poll %d: err = %v, want ErrOutput", i, o.err)
		}
	}
	if breaker.State() != resilience.StateOpen {
		t.Fatalf("breaker = %v, want open", breaker.State())
	}
	if n := r.poll(ctx); n != 0 {
		t.Fatalf("paused poll attempted %d", n)
	}

	if err := os.Mkdir(r.outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	breaker.Reset()
	if n := r.poll(ctx); n != 1 {
		t.Fatalf("poll after recovery attempted %d, want 1", n)
	}
	if o := <-results; o.err != nil {
		t.Fatalf("recovered repeat: %v", o.err)
	}
	if n := repeaterCount(t, reader, observe.StatusError); n != 2 {
		t.Errorf("error count = %d, want 2", n)
	}
}
