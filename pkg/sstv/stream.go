package sstv

import (
	"io"
	"iter"

	"github.com/MrWong99/slowscan/pkg/audio"
)

// readerChunk is the number of samples packed per refill.
const readerChunk = 4096

// Reader serves an encoder's PCM samples as little-endian bytes,
// implementing io.ReadCloser. Samples are synthesised only as Read asks for
// them. Close releases the underlying sequence early; reading to EOF
// releases it too.
type Reader struct {
	next   func() (int, bool)
	stop   func()
	bits   int
	buf    []byte
	offset int
	eof    bool
}

// Reader starts a new synthesis pass and returns a reader over its bytes.
func (e *Encoder) Reader() *Reader {
	return NewReader(e.Samples(), e.format.BitDepth)
}

// NewReader packs samples from seq as bits-wide PCM.
func NewReader(seq iter.Seq[int], bits int) *Reader {
	next, stop := iter.Pull(seq)
	return &Reader{next: next, stop: stop, bits: bits}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.offset >= len(r.buf) {
		if r.eof {
			return 0, io.EOF
		}
		r.fill()
		if len(r.buf) == 0 {
			return 0, io.EOF
		}
	}
	n := copy(p, r.buf[r.offset:])
	r.offset += n
	return n, nil
}

// fill packs up to readerChunk samples into buf.
func (r *Reader) fill() {
	r.buf = r.buf[:0]
	r.offset = 0
	for range readerChunk {
		s, ok := r.next()
		if !ok {
			r.eof = true
			r.stop()
			return
		}
		r.buf = audio.AppendSample(r.buf, s, r.bits)
	}
}

// Close stops sample production. It is safe to call more than once.
func (r *Reader) Close() error {
	r.eof = true
	r.buf = r.buf[:0]
	r.offset = 0
	r.stop()
	return nil
}
