// Package audio defines the PCM format description and sample packing shared
// by the SSTV encoder and the container writers.
//
// Samples are signed integers. 16-bit samples are packed little-endian;
// 8-bit samples are packed as two's-complement bytes. Container formats with
// other conventions (RIFF stores 8-bit data unsigned) convert on write.
package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedBitDepth is returned for bit depths other than 8 and 16.
var ErrUnsupportedBitDepth = errors.New("audio: unsupported bit depth")

// Format describes the sample rate, channel count and sample width of a PCM
// stream.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Validate checks that f describes a stream this package can pack.
func (f Format) Validate() error {
	var errs []error
	if f.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio: sample rate %d must be positive", f.SampleRate))
	}
	if f.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio: channel count %d must be positive", f.Channels))
	}
	if f.BitDepth != 8 && f.BitDepth != 16 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, f.BitDepth))
	}
	return errors.Join(errs...)
}

// BytesPerSample returns the packed size of one sample.
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameSize returns the packed size of one sample for every channel.
func (f Format) FrameSize() int {
	return f.Channels * f.BytesPerSample()
}

// ByteRate returns the number of bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.FrameSize()
}

// String returns a human-readable description, e.g. "48000Hz mono 16-bit".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s %d-bit", f.SampleRate, ch, f.BitDepth)
}
