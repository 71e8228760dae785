package sstv

// Protocol frequencies in Hz shared by every mode.
const (
	FreqVISBit1   = 1100.0
	FreqSync      = 1200.0
	FreqVISBit0   = 1300.0
	FreqBlack     = 1500.0
	FreqVISStart  = 1900.0
	FreqWhite     = 2300.0
	FreqRange     = FreqWhite - FreqBlack
	FreqFSKIDBit1 = 1900.0
	FreqFSKIDBit0 = 2100.0
)

// Protocol durations in milliseconds.
const (
	MsecVISStart = 300.0
	MsecVISSync  = 10.0
	MsecVISBit   = 30.0
	MsecVOXTone  = 100.0
	MsecFSKIDBit = 22.0
)

// Segment is a constant-frequency tone: Freq Hz held for Msec milliseconds.
// It is the unit every stage of the encoder speaks.
type Segment struct {
	Freq float64
	Msec float64
}

// ByteToFreq maps a channel value in [0, 255] linearly onto the
// black..white frequency range. Fractional values (averaged channels) are
// accepted as-is.
func ByteToFreq(v float64) float64 {
	return FreqBlack + FreqRange*v/255
}
