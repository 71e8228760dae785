package wav

import (
	"fmt"
	"io"

	"github.com/MrWong99/slowscan/pkg/audio"
)

// Writer streams PCM of unknown length to a seekable destination. A
// placeholder header is written on creation and patched with the real sizes
// on Close.
type Writer struct {
	ws       io.WriteSeeker
	format   audio.Format
	dataSize int64
	scratch  []byte
	closed   bool
}

// NewWriter writes a placeholder header to ws and returns a Writer.
func NewWriter(ws io.WriteSeeker, f audio.Format) (*Writer, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if err := writeHeader(ws, f, 0); err != nil {
		return nil, err
	}
	return &Writer{ws: ws, format: f}, nil
}

// Write appends signed PCM bytes. p is not modified.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("wav: write after close")
	}
	if w.dataSize+int64(len(p)) > maxDataSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, w.dataSize+int64(len(p)))
	}
	out := p
	if w.format.BitDepth == 8 {
		w.scratch = append(w.scratch[:0], p...)
		audio.SignedToUnsigned8(w.scratch)
		out = w.scratch
	}
	n, err := w.ws.Write(out)
	w.dataSize += int64(n)
	if err != nil {
		return n, fmt.Errorf("wav: write data: %w", err)
	}
	return n, nil
}

// DataSize returns the number of PCM bytes written so far.
func (w *Writer) DataSize() int64 {
	return w.dataSize
}

// Close pads odd-length data to an even size and rewrites the header with
// the final sizes. It does not close the underlying destination. Calling
// Close twice is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.dataSize%2 == 1 {
		if _, err := w.ws.Write(padByte[:]); err != nil {
			return fmt.Errorf("wav: write pad byte: %w", err)
		}
	}
	if _, err := w.ws.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek to header: %w", err)
	}
	if err := writeHeader(w.ws, w.format, w.dataSize); err != nil {
		return err
	}
	if _, err := w.ws.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("wav: seek to end: %w", err)
	}
	return nil
}
