package sstv_test

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"
	"testing"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/MrWong99/slowscan/pkg/sstv"
)

func synth(rate int, segs ...sstv.Segment) []float64 {
	return slices.Collect(sstv.NewSynthesizer(rate).Values(slices.Values(segs)))
}

func TestSynthesizer_SampleCountCarriesFraction(t *testing.T) {
	tests := []struct {
		name string
		rate int
		segs []sstv.Segment
	}{
		{"pixel runs at 48k", 48000, slices.Repeat([]sstv.Segment{{Freq: 1500, Msec: 0.4576}}, 320)},
		{"pixel runs at 11025", 11025, slices.Repeat([]sstv.Segment{{Freq: 2300, Msec: 0.275}}, 1000)},
		{"sub-sample segments", 8000, slices.Repeat([]sstv.Segment{{Freq: 1900, Msec: 0.01}}, 5000)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var msec float64
			for _, s := range tc.segs {
				msec += s.Msec
			}
			want := msec * float64(tc.rate) / 1000
			got := float64(len(synth(tc.rate, tc.segs...)))
			if math.Abs(got-want) > 1 {
				t.Errorf("got %v samples, want %.3f within one sample", got, want)
			}
		})
	}
}

func TestSynthesizer_RandomDurations(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	segs := make([]sstv.Segment, 2000)
	var msec float64
	for i := range segs {
		segs[i] = sstv.Segment{Freq: 1500 + 800*rng.Float64(), Msec: 3 * rng.Float64()}
		msec += segs[i].Msec
	}
	got := float64(len(synth(44100, segs...)))
	if want := msec * 44.1; math.Abs(got-want) > 1 {
		t.Errorf("got %v samples, want %.3f within one sample", got, want)
	}
}

func TestSynthesizer_SplitSegmentMatchesWhole(t *testing.T) {
	// The leading segment leaves a fractional sample owed at every rate, so
	// the split segment starts mid-carry.
	lead := sstv.Segment{Freq: 1200, Msec: 4.862}
	rng := rand.New(rand.NewPCG(7, 11))
	for _, rate := range []int{8000, 11025, 44100, 48000} {
		for range 100 {
			msec := 0.1 + 30*rng.Float64()
			cut := msec * rng.Float64()
			whole := synth(rate, lead, sstv.Segment{Freq: 1900, Msec: msec})
			split := synth(rate, lead, sstv.Segment{Freq: 1900, Msec: cut}, sstv.Segment{Freq: 1900, Msec: msec - cut})
			if len(whole) != len(split) {
				t.Fatalf("rate %d, %v ms cut at %v: len(split) = %d, want %d", rate, msec, cut, len(split), len(whole))
			}
			for i := range whole {
				if math.Abs(whole[i]-split[i]) > 1e-9 {
					t.Fatalf("rate %d, %v ms cut at %v: sample %d split %v, whole %v", rate, msec, cut, i, split[i], whole[i])
				}
			}
		}
	}
}

func TestSynthesizer_PhaseContinuity(t *testing.T) {
	const rate = 48000
	var segs []sstv.Segment
	for i := range 200 {
		segs = append(segs, sstv.Segment{Freq: 1500 + float64(i%9)*100, Msec: 0.3 + float64(i%5)*0.17})
	}
	vals := synth(rate, segs...)
	// A sine at frequency f never moves more than 2*pi*f/rate between
	// consecutive samples, including across segment boundaries.
	maxStep := 2 * math.Pi * 2300 / rate
	for i := 1; i < len(vals); i++ {
		if d := math.Abs(vals[i] - vals[i-1]); d > maxStep+1e-9 {
			t.Fatalf("jump of %v at sample %d exceeds %v", d, i, maxStep)
		}
	}
}

func TestSynthesizer_Amplitude(t *testing.T) {
	vals := synth(8000, sstv.Segment{Freq: 1200, Msec: 50}, sstv.Segment{Freq: 2300, Msec: 50})
	if vals[0] != 0 {
		t.Errorf("first sample = %v, want 0", vals[0])
	}
	for i, v := range vals {
		if v < -1 || v > 1 {
			t.Fatalf("sample %d = %v out of range", i, v)
		}
	}
}

func TestSynthesizer_ToneFrequency(t *testing.T) {
	const (
		rate = 48000
		n    = 8192
	)
	vals := synth(rate, sstv.Segment{Freq: 1900, Msec: 300})[:n]
	coeffs := fourier.NewFFT(n).Coefficients(nil, vals)

	peak := 0
	for k := 1; k < len(coeffs); k++ {
		if cmplx.Abs(coeffs[k]) > cmplx.Abs(coeffs[peak]) {
			peak = k
		}
	}
	binWidth := float64(rate) / n
	if got := float64(peak) * binWidth; math.Abs(got-1900) > binWidth {
		t.Errorf("spectral peak at %.1f Hz, want 1900 Hz", got)
	}
}

func TestSynthesizer_StopsEarly(t *testing.T) {
	n := 0
	for range sstv.NewSynthesizer(48000).Values(slices.Values([]sstv.Segment{{Freq: 1500, Msec: 1000}})) {
		n++
		if n == 10 {
			break
		}
	}
	if n != 10 {
		t.Errorf("pulled %d values, want 10", n)
	}
}
