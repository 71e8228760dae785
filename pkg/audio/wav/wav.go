// Package wav writes PCM audio as RIFF/WAVE files.
//
// Input PCM is in the signed layout produced by package audio. 8-bit data is
// converted to the unsigned form RIFF requires on the way out; 16-bit data is
// written unchanged.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/MrWong99/slowscan/pkg/audio"
)

// HeaderSize is the size of the canonical PCM header in bytes.
const HeaderSize = 44

// maxDataSize is the largest data chunk, pad byte included, that a 32-bit
// RIFF size field can describe.
const maxDataSize = 1<<32 - 2 - (HeaderSize - 8)

// FileSize returns the size of a WAV file holding dataSize bytes of PCM.
// RIFF chunks are word aligned, so odd-length data is followed by one pad
// byte that the data chunk size does not count.
func FileSize(dataSize int64) int64 {
	return HeaderSize + dataSize + dataSize&1
}

// ErrDataTooLarge is returned when the PCM payload exceeds the 4 GiB RIFF
// limit.
var ErrDataTooLarge = errors.New("wav: data exceeds RIFF size limit")

// header is the canonical 44-byte RIFF/WAVE header for integer PCM.
type header struct {
	ChunkID   [4]byte // "RIFF"
	ChunkSize uint32  // file size - 8
	Format    [4]byte // "WAVE"

	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16

	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

func newHeader(f audio.Format, dataSize int64) header {
	return header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(FileSize(dataSize) - 8),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.ByteRate()),
		BlockAlign:    uint16(f.FrameSize()),
		BitsPerSample: uint16(f.BitDepth),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}
}

func writeHeader(w io.Writer, f audio.Format, dataSize int64) error {
	h := newHeader(f, dataSize)
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	return nil
}

// Encode writes a complete WAV file to w: a header announcing dataSize bytes
// of PCM followed by exactly dataSize bytes copied from pcm, plus a pad byte
// when dataSize is odd. It fails if pcm ends early. The returned count is
// [FileSize] of dataSize on success. Use it when the payload size is known up front, e.g. when
// streaming to a non-seekable writer.
func Encode(w io.Writer, f audio.Format, pcm io.Reader, dataSize int64) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, fmt.Errorf("wav: %w", err)
	}
	if dataSize < 0 || dataSize > maxDataSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, dataSize)
	}
	if err := writeHeader(w, f, dataSize); err != nil {
		return 0, err
	}
	src := io.LimitReader(pcm, dataSize)
	if f.BitDepth == 8 {
		src = unsignedReader{src}
	}
	n, err := io.Copy(w, src)
	if err != nil {
		return HeaderSize + n, fmt.Errorf("wav: write data: %w", err)
	}
	if n != dataSize {
		return HeaderSize + n, fmt.Errorf("wav: write data: %w after %d of %d bytes", io.ErrUnexpectedEOF, n, dataSize)
	}
	if dataSize%2 == 1 {
		if _, err := w.Write(padByte[:]); err != nil {
			return HeaderSize + n, fmt.Errorf("wav: write pad byte: %w", err)
		}
		n++
	}
	return HeaderSize + n, nil
}

var padByte = [1]byte{0}

// unsignedReader converts signed 8-bit PCM to unsigned as it is read.
type unsignedReader struct{ r io.Reader }

func (u unsignedReader) Read(p []byte) (int, error) {
	n, err := u.r.Read(p)
	audio.SignedToUnsigned8(p[:n])
	return n, err
}
