package audio_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/MrWong99/slowscan/pkg/audio"
)

func TestFormat_Sizes(t *testing.T) {
	tests := []struct {
		format    audio.Format
		frame     int
		byteRate  int
		formatted string
	}{
		{audio.Format{SampleRate: 48000, Channels: 1, BitDepth: 16}, 2, 96000, "48000Hz mono 16-bit"},
		{audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}, 4, 176400, "44100Hz stereo 16-bit"},
		{audio.Format{SampleRate: 8000, Channels: 4, BitDepth: 8}, 4, 32000, "8000Hz 4ch 8-bit"},
	}
	for _, tc := range tests {
		t.Run(tc.formatted, func(t *testing.T) {
			if err := tc.format.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if got := tc.format.FrameSize(); got != tc.frame {
				t.Errorf("FrameSize = %d, want %d", got, tc.frame)
			}
			if got := tc.format.ByteRate(); got != tc.byteRate {
				t.Errorf("ByteRate = %d, want %d", got, tc.byteRate)
			}
			if got := tc.format.String(); got != tc.formatted {
				t.Errorf("String = %q, want %q", got, tc.formatted)
			}
		})
	}
}

func TestFormat_ValidateJoinsErrors(t *testing.T) {
	err := audio.Format{SampleRate: 0, Channels: 0, BitDepth: 24}.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, audio.ErrUnsupportedBitDepth) {
		t.Errorf("err = %v, want ErrUnsupportedBitDepth in chain", err)
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 3 {
		t.Errorf("err = %v, want three joined errors", err)
	}
}

func TestAppendSample(t *testing.T) {
	var buf []byte
	for _, s := range []int{0, 1, -1, 32767, -32768} {
		buf = audio.AppendSample(buf, s, 16)
	}
	want := []int16{0, 1, -1, 32767, -32768}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(buf[2*i:])); got != w {
			t.Errorf("16-bit sample %d = %d, want %d", i, got, w)
		}
	}

	buf = buf[:0]
	for _, s := range []int{0, 127, -128, -1} {
		buf = audio.AppendSample(buf, s, 8)
	}
	if got, want := buf, []byte{0x00, 0x7f, 0x80, 0xff}; string(got) != string(want) {
		t.Errorf("8-bit bytes = %x, want %x", got, want)
	}
}

func TestSignedToUnsigned8(t *testing.T) {
	pcm := []byte{0x00, 0x7f, 0x80, 0xff}
	audio.SignedToUnsigned8(pcm)
	// 0 -> 128, 127 -> 255, -128 -> 0, -1 -> 127.
	if want := []byte{0x80, 0xff, 0x00, 0x7f}; string(pcm) != string(want) {
		t.Errorf("got %x, want %x", pcm, want)
	}
}
