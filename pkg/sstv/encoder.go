package sstv

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"time"

	"github.com/MrWong99/slowscan/pkg/audio"
)

var (
	// ErrImageTooSmall is returned when the pixel source does not cover the
	// mode's dimensions.
	ErrImageTooSmall = errors.New("sstv: image smaller than mode")

	// ErrUnsupportedBits is returned for sample widths other than 8 or 16.
	ErrUnsupportedBits = errors.New("sstv: unsupported bits per sample")

	// ErrInvalidFormat is returned for a non-positive sample rate or channel
	// count.
	ErrInvalidFormat = errors.New("sstv: invalid audio format")

	// ErrInvalidFSKID is returned when the station identifier contains a
	// character outside 0x20..0x5F.
	ErrInvalidFSKID = errors.New("sstv: invalid FSK ID character")
)

// Default audio parameters.
const (
	DefaultSampleRate = 48000
	DefaultBits       = 16
)

// Option configures an [Encoder].
type Option func(*Encoder)

// WithSampleRate sets the output sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(e *Encoder) { e.format.SampleRate = rate }
}

// WithBits sets the PCM sample width (8 or 16).
func WithBits(bits int) Option {
	return func(e *Encoder) { e.format.BitDepth = bits }
}

// WithChannels sets the number of interleaved output channels. Every channel
// carries the same signal.
func WithChannels(n int) Option {
	return func(e *Encoder) { e.format.Channels = n }
}

// WithVOX prepends the VOX calibration tones.
func WithVOX(enabled bool) Option {
	return func(e *Encoder) { e.vox = enabled }
}

// WithFSKID appends text as a frequency-shift-keyed station identifier.
// Characters must lie in 0x20..0x5F (space through underscore, upper case).
func WithFSKID(text string) Option {
	return func(e *Encoder) { e.fskid = text }
}

// WithSeed fixes the dither seed so that output is reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Encoder) { e.seed = seed }
}

// Encoder is one encoding session: a mode, a pixel source and output
// parameters. It is immutable after construction. Every call to one of its
// sequence methods starts an independent pass with fresh synthesis and
// dither state, so an Encoder may be consumed more than once and from
// several goroutines at a time.
type Encoder struct {
	mode   Mode
	src    PixelSource
	view   pixelView
	format audio.Format
	vox    bool
	fskid  string
	seed   uint64
}

// NewEncoder validates the session parameters and returns an encoder. Mode,
// image size and format problems are reported here, before any segment is
// produced.
func NewEncoder(mode Mode, src PixelSource, opts ...Option) (*Encoder, error) {
	e := &Encoder{
		mode: mode,
		src:  src,
		format: audio.Format{
			SampleRate: DefaultSampleRate,
			Channels:   1,
			BitDepth:   DefaultBits,
		},
		seed: rand.Uint64(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: no pixel source", ErrImageTooSmall)
	}
	if w, h := src.Size(); w < mode.Width || h < mode.Height {
		return nil, fmt.Errorf("%w: %s needs at least %dx%d, got %dx%d",
			ErrImageTooSmall, mode.Name, mode.Width, mode.Height, w, h)
	}
	if b := e.format.BitDepth; b != 8 && b != 16 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBits, b)
	}
	if e.format.SampleRate <= 0 || e.format.Channels <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, e.format)
	}
	if err := ValidateFSKID(e.fskid); err != nil {
		return nil, err
	}

	e.view = newPixelView(mode.Layout, src)
	return e, nil
}

// ValidateFSKID reports whether every character of text can be sent as a
// 6-bit FSK ID symbol.
func ValidateFSKID(text string) error {
	for i := 0; i < len(text); i++ {
		if c := text[i]; c < 0x20 || c > 0x5f {
			return fmt.Errorf("%w: %q at offset %d", ErrInvalidFSKID, c, i)
		}
	}
	return nil
}

// Mode returns the session's mode.
func (e *Encoder) Mode() Mode { return e.mode }

// Format returns the PCM output format.
func (e *Encoder) Format() audio.Format { return e.format }

// Segments yields the complete tone sequence: VOX tones if enabled, the VIS
// header, every scan of the image and the FSK ID if set. Scans are generated
// only as they are pulled.
func (e *Encoder) Segments() iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		for s := range VISHeader(e.mode.VIS, e.vox) {
			if !yield(s) {
				return
			}
		}
		encode := lineEncoders[e.mode.Layout]
		sc := newScanContext(&e.mode, e.view)
		for scan := range e.mode.Scans() {
			if !encode(sc, scan, yield) {
				return
			}
		}
		for s := range FSKID(e.fskid) {
			if !yield(s) {
				return
			}
		}
	}
}

// Values yields the synthesised waveform in [-1, 1].
func (e *Encoder) Values() iter.Seq[float64] {
	return NewSynthesizer(e.format.SampleRate).Values(e.Segments())
}

// Samples yields quantised PCM samples, interleaved across channels.
func (e *Encoder) Samples() iter.Seq[int] {
	q := newQuantizer(e.format.BitDepth, rand.New(rand.NewPCG(e.seed, e.seed^0x9e3779b97f4a7c15)))
	return q.Samples(e.Values(), e.format.Channels)
}

// Duration returns the transmission length.
func (e *Encoder) Duration() time.Duration {
	ms := HeaderDuration + e.mode.ImageDuration() + float64(fskidBits(e.fskid))*MsecFSKIDBit
	if e.vox {
		ms += float64(len(voxFreqs)) * MsecVOXTone
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// Frames returns the exact number of sample frames (one sample per channel)
// the encoder produces. It walks the segment sequence without synthesising.
func (e *Encoder) Frames() int64 {
	c := sampleCounter{spms: float64(e.format.SampleRate) / 1000}
	var total int64
	for s := range e.Segments() {
		total += int64(c.next(s.Msec))
	}
	return total
}

// DataSize returns the number of PCM bytes [Encoder.Reader] produces.
func (e *Encoder) DataSize() int64 {
	return e.Frames() * int64(e.format.FrameSize())
}
