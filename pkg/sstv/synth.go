package sstv

import (
	"iter"
	"math"
)

// sampleCounter converts segment durations to whole sample counts while
// carrying the fractional remainder into the next segment, so rounding never
// drifts over a transmission.
type sampleCounter struct {
	spms float64 // samples per millisecond
	owed float64
}

func (c *sampleCounter) next(msec float64) int {
	c.owed += c.spms * msec
	n := math.Floor(c.owed)
	c.owed -= n
	return int(n)
}

// Synthesizer turns segments into a phase-continuous sine wave.
type Synthesizer struct {
	sampleRate int
}

// NewSynthesizer returns a synthesizer for the given sample rate in Hz.
func NewSynthesizer(sampleRate int) *Synthesizer {
	return &Synthesizer{sampleRate: sampleRate}
}

// Values yields one amplitude in [-1, 1] per output sample. Each segment
// starts at the phase the previous one ended on, so frequency changes never
// introduce discontinuities. Phase and carry state live only for the
// duration of one iteration.
func (s *Synthesizer) Values(segments iter.Seq[Segment]) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		counter := sampleCounter{spms: float64(s.sampleRate) / 1000}
		factor := 2 * math.Pi / float64(s.sampleRate)
		phase := 0.0
		for seg := range segments {
			n := counter.next(seg.Msec)
			step := seg.Freq * factor
			for i := range n {
				if !yield(math.Sin(float64(i)*step + phase)) {
					return
				}
			}
			phase = math.Mod(phase+float64(n)*step, 2*math.Pi)
		}
	}
}
