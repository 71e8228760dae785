package transmit

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/MrWong99/slowscan/pkg/sstv"
)

// rawChunk is the buffer size at which raw writers flush.
const rawChunk = 32 << 10

// WriteRawSegments writes every segment of enc as a pair of little-endian
// float32 values (frequency in Hz, duration in ms), for feeding external
// synthesizers. It returns the number of segments written.
func WriteRawSegments(w io.Writer, enc *sstv.Encoder) (int64, error) {
	var n int64
	buf := make([]byte, 0, rawChunk)
	for seg := range enc.Segments() {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(seg.Freq)))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(seg.Msec)))
		n++
		if len(buf) >= rawChunk-8 {
			if _, err := w.Write(buf); err != nil {
				return n, fmt.Errorf("transmit: write segments: %w", err)
			}
			buf = buf[:0]
		}
	}
	if _, err := w.Write(buf); err != nil {
		return n, fmt.Errorf("transmit: write segments: %w", err)
	}
	return n, nil
}

// WriteRawFloats writes the unquantised waveform of enc as little-endian
// float32 samples in [-1, 1], one per frame. It returns the number of
// samples written.
func WriteRawFloats(w io.Writer, enc *sstv.Encoder) (int64, error) {
	var n int64
	buf := make([]byte, 0, rawChunk)
	for v := range enc.Values() {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
		n++
		if len(buf) >= rawChunk-4 {
			if _, err := w.Write(buf); err != nil {
				return n, fmt.Errorf("transmit: write floats: %w", err)
			}
			buf = buf[:0]
		}
	}
	if _, err := w.Write(buf); err != nil {
		return n, fmt.Errorf("transmit: write floats: %w", err)
	}
	return n, nil
}
