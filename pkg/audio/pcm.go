package audio

// AppendSample packs s as a bits-wide signed sample and appends it to dst.
// s must already lie in the range of the bit depth.
func AppendSample(dst []byte, s int, bits int) []byte {
	if bits == 8 {
		return append(dst, byte(int8(s)))
	}
	v := uint16(int16(s))
	return append(dst, byte(v), byte(v>>8))
}

// SignedToUnsigned8 converts two's-complement 8-bit PCM to the offset-binary
// form RIFF uses, in place.
func SignedToUnsigned8(pcm []byte) {
	for i, b := range pcm {
		pcm[i] = b ^ 0x80
	}
}
