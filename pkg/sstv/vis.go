package sstv

import "iter"

// voxFreqs is the calibration burst that keys receiver VOX circuits and
// automatic mode detectors.
var voxFreqs = [...]float64{1900, 1500, 1900, 1500, 2300, 1500, 2300, 1500}

// VOXTones yields the eight 100 ms VOX tones.
func VOXTones() iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		for _, f := range voxFreqs {
			if !yield(Segment{Freq: f, Msec: MsecVOXTone}) {
				return
			}
		}
	}
}

// VISHeader yields the calibration header identifying a mode: leader,
// break, leader, start bit, seven data bits LSB first, even parity bit and
// stop bit. When vox is set the VOX tones come first. Only the low seven
// bits of code are sent.
func VISHeader(code uint8, vox bool) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		if vox {
			for s := range VOXTones() {
				if !yield(s) {
					return
				}
			}
		}
		lead := [...]Segment{
			{FreqVISStart, MsecVISStart},
			{FreqSync, MsecVISSync},
			{FreqVISStart, MsecVISStart},
			{FreqSync, MsecVISBit}, // start bit
		}
		for _, s := range lead {
			if !yield(s) {
				return
			}
		}

		ones := 0
		vis := code
		for range 7 {
			bit := vis & 1
			vis >>= 1
			ones += int(bit)
			if !yield(Segment{visBitFreq(bit == 1), MsecVISBit}) {
				return
			}
		}
		if !yield(Segment{visBitFreq(ones%2 == 1), MsecVISBit}) {
			return
		}
		yield(Segment{FreqSync, MsecVISBit}) // stop bit
	}
}

func visBitFreq(one bool) float64 {
	if one {
		return FreqVISBit1
	}
	return FreqVISBit0
}

// HeaderDuration is the length in ms of the VIS header without VOX tones.
const HeaderDuration = 2*MsecVISStart + MsecVISSync + 10*MsecVISBit
