package sstv

import "iter"

// fskidFrame builds the on-air byte sequence for text: a space and '*'
// lead-in, each character offset by 0x20, and a trailing SOH.
func fskidFrame(text string) []byte {
	if text == "" {
		return nil
	}
	out := make([]byte, 0, len(text)+3)
	out = append(out, 0x20, 0x2a)
	for i := 0; i < len(text); i++ {
		out = append(out, text[i]-0x20)
	}
	return append(out, 0x01)
}

// fskidBits is the number of 22 ms bits FSKID(text) yields.
func fskidBits(text string) int {
	return 6 * len(fskidFrame(text))
}

// FSKID yields the station identifier burst for text, six bits per byte,
// least significant first. An empty text yields nothing.
func FSKID(text string) iter.Seq[Segment] {
	frame := fskidFrame(text)
	return func(yield func(Segment) bool) {
		for _, b := range frame {
			for range 6 {
				f := FreqFSKIDBit0
				if b&1 == 1 {
					f = FreqFSKIDBit1
				}
				b >>= 1
				if !yield(Segment{f, MsecFSKIDBit}) {
					return
				}
			}
		}
	}
}
