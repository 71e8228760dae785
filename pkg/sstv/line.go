package sstv

// Indices into a YUV triple returned by pixelView.channels.
const (
	planeY  = 0
	planeCb = 1
	planeCr = 2
)

// scanContext is what a line encoder needs for one scan: the mode, the pixel
// view chosen for its layout, and row scratch buffers reused across scans.
type scanContext struct {
	mode *Mode
	px   pixelView
	row0 [][3]uint8
	row1 [][3]uint8
}

func newScanContext(m *Mode, px pixelView) *scanContext {
	sc := &scanContext{mode: m, px: px}
	if px.channels != nil {
		sc.row0 = make([][3]uint8, m.Width)
		if m.LinesPerScan() == 2 {
			sc.row1 = make([][3]uint8, m.Width)
		}
	}
	return sc
}

// loadRow fills dst with the channel triples of image row y.
func (sc *scanContext) loadRow(dst [][3]uint8, y int) {
	for x := range dst {
		dst[x] = sc.px.channels(x, y)
	}
}

// lineEncoder yields the segments of scan number scan. It returns false as
// soon as yield does, so the caller can stop pulling mid-line.
type lineEncoder func(sc *scanContext, scan int, yield func(Segment) bool) bool

// lineEncoders is the strategy table keyed by layout.
var lineEncoders = [...]lineEncoder{
	LayoutGrayscale:       encodeGrayscale,
	LayoutColorSequential: encodeMartin,
	LayoutScottie:         encodeScottie,
	LayoutYUVAlternating:  encodeRobot36,
	LayoutYUVPaired:       encodePD,
	LayoutFixedPorch:      encodePasokon,
	LayoutSinglePorch:     encodeWraase,
}

func encodeGrayscale(sc *scanContext, line int, yield func(Segment) bool) bool {
	m := sc.mode
	if !yield(Segment{FreqSync, m.Sync}) {
		return false
	}
	msec := m.Scan / float64(m.Width)
	for x := range m.Width {
		if !yield(Segment{ByteToFreq(sc.px.luma(x, line)), msec}) {
			return false
		}
	}
	return true
}

// scanChannel yields one colour channel of the loaded row at msec per pixel.
func scanChannel(row [][3]uint8, ch int, msec float64, yield func(Segment) bool) bool {
	for _, p := range row {
		if !yield(Segment{ByteToFreq(float64(p[ch])), msec}) {
			return false
		}
	}
	return true
}

func encodeMartin(sc *scanContext, line int, yield func(Segment) bool) bool {
	m := sc.mode
	sc.loadRow(sc.row0, line)
	if !yield(Segment{FreqSync, m.Sync}) {
		return false
	}
	msec := m.Scan / float64(m.Width)
	for i, ch := range m.Order {
		if i == 0 && !yield(Segment{FreqBlack, m.Gap}) {
			return false
		}
		if !scanChannel(sc.row0, int(ch), msec, yield) {
			return false
		}
		if !yield(Segment{FreqBlack, m.Gap}) {
			return false
		}
	}
	return true
}

// encodeScottie moves the line sync in front of the red channel. Line 0
// additionally starts with a lone sync so receivers can lock before green.
func encodeScottie(sc *scanContext, line int, yield func(Segment) bool) bool {
	m := sc.mode
	sc.loadRow(sc.row0, line)
	if line == 0 && !yield(Segment{FreqSync, m.Sync}) {
		return false
	}
	msec := m.Scan / float64(m.Width)
	for _, ch := range m.Order {
		if ch == Red && !yield(Segment{FreqSync, m.Sync}) {
			return false
		}
		if !yield(Segment{FreqBlack, m.Gap}) {
			return false
		}
		if !scanChannel(sc.row0, int(ch), msec, yield) {
			return false
		}
	}
	return true
}

func encodePasokon(sc *scanContext, line int, yield func(Segment) bool) bool {
	m := sc.mode
	sc.loadRow(sc.row0, line)
	if !yield(Segment{FreqSync, m.Sync}) {
		return false
	}
	msec := m.Scan / float64(m.Width)
	for _, ch := range m.Order {
		if !yield(Segment{FreqBlack, m.Gap}) {
			return false
		}
		if !scanChannel(sc.row0, int(ch), msec, yield) {
			return false
		}
	}
	return yield(Segment{FreqBlack, m.Gap})
}

func encodeWraase(sc *scanContext, line int, yield func(Segment) bool) bool {
	m := sc.mode
	sc.loadRow(sc.row0, line)
	if !yield(Segment{FreqSync, m.Sync}) || !yield(Segment{FreqBlack, m.Porch}) {
		return false
	}
	msec := m.Scan / float64(m.Width)
	for _, ch := range m.Order {
		if !scanChannel(sc.row0, int(ch), msec, yield) {
			return false
		}
	}
	return true
}

// encodeRobot36 sends full-width luma, then one chroma plane at half
// horizontal resolution: R-Y on even lines behind a black marker, B-Y on odd
// lines behind a white marker.
func encodeRobot36(sc *scanContext, line int, yield func(Segment) bool) bool {
	m := sc.mode
	sc.loadRow(sc.row0, line)
	if !yield(Segment{FreqSync, m.Sync}) || !yield(Segment{FreqBlack, m.SyncPorch}) {
		return false
	}
	if !scanChannel(sc.row0, planeY, m.Scan/float64(m.Width), yield) {
		return false
	}

	plane, marker := planeCr, FreqBlack
	if line%2 == 1 {
		plane, marker = planeCb, FreqWhite
	}
	if !yield(Segment{marker, m.Separator}) || !yield(Segment{FreqVISStart, m.Porch}) {
		return false
	}
	half := m.Width / 2
	msec := m.ChromaScan / float64(half)
	for k := range half {
		v := (float64(sc.row0[2*k][plane]) + float64(sc.row0[2*k+1][plane])) / 2
		if !yield(Segment{ByteToFreq(v), msec}) {
			return false
		}
	}
	return true
}

// encodePD sends rows 2*scan and 2*scan+1 together, sharing their chroma.
func encodePD(sc *scanContext, scan int, yield func(Segment) bool) bool {
	m := sc.mode
	sc.loadRow(sc.row0, 2*scan)
	sc.loadRow(sc.row1, 2*scan+1)
	if !yield(Segment{FreqSync, m.Sync}) || !yield(Segment{FreqBlack, m.Porch}) {
		return false
	}
	if !scanChannel(sc.row0, planeY, m.Pixel, yield) {
		return false
	}
	for _, plane := range [...]int{planeCr, planeCb} {
		for x := range m.Width {
			v := (float64(sc.row0[x][plane]) + float64(sc.row1[x][plane])) / 2
			if !yield(Segment{ByteToFreq(v), m.Pixel}) {
				return false
			}
		}
	}
	return scanChannel(sc.row1, planeY, m.Pixel, yield)
}
