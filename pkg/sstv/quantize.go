package sstv

import (
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
)

// Quantizer maps amplitudes in [-1, 1] to signed integer samples of a fixed
// bit depth. A uniform dither of one quantisation step, centred on zero, is
// added before rounding; results saturate at the representable range.
// A Quantizer owns its random source and is not safe for concurrent use.
type Quantizer struct {
	amp     float64
	lowest  int
	highest int
	rng     *rand.Rand
}

// NewQuantizer returns a quantizer for bits-wide samples drawing dither from
// rng. A nil rng disables dither. bits must be 8 or 16, otherwise the error
// wraps [ErrUnsupportedBits].
func NewQuantizer(bits int, rng *rand.Rand) (*Quantizer, error) {
	if bits != 8 && bits != 16 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBits, bits)
	}
	return newQuantizer(bits, rng), nil
}

// newQuantizer skips validation for callers that checked bits already.
func newQuantizer(bits int, rng *rand.Rand) *Quantizer {
	amp := 1 << (bits - 1)
	return &Quantizer{
		amp:     float64(amp),
		lowest:  -amp,
		highest: amp - 1,
		rng:     rng,
	}
}

// Range returns the smallest and largest sample the quantizer emits.
func (q *Quantizer) Range() (lowest, highest int) {
	return q.lowest, q.highest
}

// Quantize converts one amplitude.
func (q *Quantizer) Quantize(v float64) int {
	x := v * q.amp
	if q.rng != nil {
		x += q.rng.Float64() - 0.5
	}
	x = math.Round(x)
	switch {
	case x <= float64(q.lowest):
		return q.lowest
	case x >= float64(q.highest):
		return q.highest
	}
	return int(x)
}

// Samples quantizes values and repeats each sample channels times, giving an
// interleaved multi-channel stream of the same mono signal.
func (q *Quantizer) Samples(values iter.Seq[float64], channels int) iter.Seq[int] {
	if channels < 1 {
		channels = 1
	}
	return func(yield func(int) bool) {
		for v := range values {
			s := q.Quantize(v)
			for range channels {
				if !yield(s) {
					return
				}
			}
		}
	}
}
