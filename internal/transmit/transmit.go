// Package transmit turns images into SSTV audio. It is the application layer
// between the CLI, HTTP server and repeater on one side and the pkg/sstv
// engine on the other: it builds encoder sessions from configuration, writes
// them as WAV, and records logs, spans and metrics for every session.
package transmit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/slowscan/internal/config"
	"github.com/MrWong99/slowscan/internal/observe"
	"github.com/MrWong99/slowscan/pkg/audio/wav"
	"github.com/MrWong99/slowscan/pkg/sstv"
)

// Params are the per-session output options.
type Params struct {
	SampleRate int
	Bits       int
	Channels   int
	VOX        bool
	FSKID      string

	// Seed fixes the dither sequence when non-nil.
	Seed *uint64
}

// ParamsFrom copies the session options out of an encode configuration.
func ParamsFrom(enc config.EncodeConfig) Params {
	return Params{
		SampleRate: enc.SampleRate,
		Bits:       enc.Bits,
		Channels:   enc.Channels,
		VOX:        enc.VOX,
		FSKID:      enc.FSKID,
	}
}

func (p Params) options() []sstv.Option {
	opts := []sstv.Option{
		sstv.WithSampleRate(p.SampleRate),
		sstv.WithBits(p.Bits),
		sstv.WithChannels(p.Channels),
		sstv.WithVOX(p.VOX),
		sstv.WithFSKID(p.FSKID),
	}
	if p.Seed != nil {
		opts = append(opts, sstv.WithSeed(*p.Seed))
	}
	return opts
}

// Progress is called as PCM is produced with the bytes written so far and
// the total expected. It is called from the encoding goroutine.
type Progress func(done, total int64)

// Result summarises one finished session.
type Result struct {
	SessionID string        `json:"session_id"`
	Mode      string        `json:"mode"`
	Input     string        `json:"input,omitempty"`
	Output    string        `json:"output,omitempty"`
	Format    string        `json:"format"`
	AirTime   time.Duration `json:"air_time"`
	Frames    int64         `json:"frames"`
	Bytes     int64         `json:"bytes"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Service runs encode sessions. It is safe for concurrent use.
type Service struct {
	metrics *observe.Metrics
}

// New returns a Service recording into m. A nil m uses
// [observe.DefaultMetrics].
func New(m *observe.Metrics) *Service {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Service{metrics: m}
}

// NewEncoder validates p against mode and src and returns the session's
// encoder.
func (s *Service) NewEncoder(mode sstv.Mode, src sstv.PixelSource, p Params) (*sstv.Encoder, error) {
	enc, err := sstv.NewEncoder(mode, src, p.options()...)
	if err != nil {
		return nil, fmt.Errorf("transmit: %w", err)
	}
	return enc, nil
}

// WriteWAV renders enc as a complete WAV file into w. The PCM length is
// computed up front, so w need not be seekable. Cancelling ctx aborts the
// session between chunks.
func (s *Service) WriteWAV(ctx context.Context, w io.Writer, enc *sstv.Encoder, progress Progress) (Result, error) {
	return s.run(ctx, enc, func(ctx context.Context, res *Result) (int64, error) {
		total := enc.DataSize()
		pcm := enc.Reader()
		defer pcm.Close()

		n, err := wav.Encode(w, enc.Format(), &ctxReader{ctx: ctx, r: pcm, total: total, progress: progress}, total)
		res.Bytes = n
		return min(max(n-wav.HeaderSize, 0), total), err
	})
}

// writeSeekableWAV streams enc into ws with a header patched on completion.
func (s *Service) writeSeekableWAV(ctx context.Context, ws io.WriteSeeker, enc *sstv.Encoder, progress Progress) (Result, error) {
	return s.run(ctx, enc, func(ctx context.Context, res *Result) (int64, error) {
		ww, err := wav.NewWriter(ws, enc.Format())
		if err != nil {
			return 0, err
		}
		pcm := enc.Reader()
		defer pcm.Close()

		// The exact size is unknown to a seekable sink until the stream
		// ends; the progress total is an estimate from the air time.
		estimate := int64(enc.Duration().Seconds() * float64(enc.Format().ByteRate()))
		_, copyErr := io.Copy(ww, &ctxReader{ctx: ctx, r: pcm, total: estimate, progress: progress})
		closeErr := ww.Close()
		res.Bytes = wav.FileSize(ww.DataSize())
		return ww.DataSize(), errors.Join(copyErr, closeErr)
	})
}

// run wraps one session body with id assignment, span, metrics and logs. A
// session id already carried by ctx is kept.
func (s *Service) run(ctx context.Context, enc *sstv.Encoder, body func(context.Context, *Result) (int64, error)) (Result, error) {
	id := observe.SessionID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	mode := enc.Mode().Name
	res := Result{
		SessionID: id,
		Mode:      mode,
		Format:    enc.Format().String(),
		AirTime:   enc.Duration(),
	}

	ctx = observe.WithSessionID(ctx, res.SessionID)
	ctx, span := observe.StartSpan(ctx, "transmit.Encode",
		trace.WithAttributes(
			attribute.String("sstv.mode", mode),
			attribute.String("session.id", res.SessionID),
			attribute.String("audio.format", res.Format),
		),
	)
	defer span.End()

	log := observe.Logger(ctx)
	log.Debug("encode started", "mode", mode, "format", res.Format, "air_time", res.AirTime)
	s.metrics.SessionStarted(ctx, mode)

	start := time.Now()
	data, err := body(ctx, &res)
	res.Elapsed = time.Since(start)
	if fs := int64(enc.Format().FrameSize()); fs > 0 {
		res.Frames = data / fs
	}

	status := observe.StatusOK
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = observe.StatusCanceled
	case err != nil:
		status = observe.StatusError
	}
	samples := res.Frames * int64(enc.Format().Channels)
	s.metrics.RecordSession(ctx, mode, status, res.Elapsed, res.AirTime, samples)
	span.SetAttributes(attribute.Int64("audio.frames", res.Frames))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.LogAttrs(ctx, slog.LevelWarn, "encode failed",
			slog.String("mode", mode),
			slog.String("status", status),
			slog.Any("err", err),
		)
		return res, fmt.Errorf("transmit: session %s: %w", res.SessionID, err)
	}
	log.LogAttrs(ctx, slog.LevelInfo, "encode finished",
		slog.String("mode", mode),
		slog.Int64("samples", samples),
		slog.Duration("air_time", res.AirTime),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// ctxReader aborts reads once ctx is done and reports progress.
type ctxReader struct {
	ctx      context.Context
	r        io.Reader
	done     int64
	total    int64
	progress Progress
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	c.done += int64(n)
	if c.progress != nil && n > 0 {
		c.progress(c.done, max(c.total, c.done))
	}
	return n, err
}
