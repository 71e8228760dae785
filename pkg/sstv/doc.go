// Package sstv implements a Slow-Scan Television transmitter: it turns a
// still image into the tone sequence of an SSTV mode and synthesises that
// sequence into PCM audio.
//
// The pipeline is pull-based and lazy at every stage:
//
//   - [Encoder.Segments] yields [Segment] values (a frequency held for a
//     duration): optional VOX tones, the VIS header, one scan per image line
//     (or line pair), and an optional FSK station identifier.
//   - [Synthesizer.Values] turns segments into phase-continuous sine
//     amplitudes in [-1, 1].
//   - [Quantizer] maps amplitudes to dithered, clipped integer samples.
//   - [Encoder.Reader] packs the samples into little-endian PCM bytes, ready
//     for a container writer such as package wav.
//
// Nothing is materialised beyond the element currently being produced, so a
// consumer that stops pulling simply halts production. Every [Encoder] owns
// its synthesis and dither state; independent encoders may run concurrently.
//
// Modes are described by [Mode] values and looked up by name through a
// [Registry]. [DefaultRegistry] holds the canonical mode list.
package sstv
