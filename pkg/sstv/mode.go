package sstv

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrInvalidMode is returned (wrapped) when a [Mode] carries parameters no
// line encoder can honour.
var ErrInvalidMode = errors.New("sstv: invalid mode")

// Layout selects the line-encoding strategy of a mode family.
type Layout int

const (
	// LayoutGrayscale sends one luma scan after a line sync (Robot B/W).
	LayoutGrayscale Layout = iota

	// LayoutColorSequential sends three colour scans after a line sync, with
	// a black gap before the first channel and after every channel (Martin).
	LayoutColorSequential

	// LayoutScottie sends three colour scans each preceded by a black gap;
	// the line sync sits in front of the red gap instead of starting the
	// line, and a single extra sync precedes the first line.
	LayoutScottie

	// LayoutYUVAlternating sends a full-resolution luma scan followed by a
	// half-resolution chroma scan whose plane alternates with line parity
	// (Robot 36).
	LayoutYUVAlternating

	// LayoutYUVPaired sends two image rows per scan: Y of row 0, averaged
	// R-Y, averaged B-Y, Y of row 1 (PD family).
	LayoutYUVPaired

	// LayoutFixedPorch sends three colour scans each preceded by a black
	// porch plus one trailing porch, all derived from a time unit (Pasokon).
	LayoutFixedPorch

	// LayoutSinglePorch sends three colour scans with one porch before the
	// first channel only (Wraase SC-2).
	LayoutSinglePorch
)

// String returns the human-readable name of the layout.
func (l Layout) String() string {
	switch l {
	case LayoutGrayscale:
		return "grayscale"
	case LayoutColorSequential:
		return "color-sequential"
	case LayoutScottie:
		return "scottie"
	case LayoutYUVAlternating:
		return "yuv-alternating"
	case LayoutYUVPaired:
		return "yuv-paired"
	case LayoutFixedPorch:
		return "fixed-porch"
	case LayoutSinglePorch:
		return "single-porch"
	default:
		return "unknown"
	}
}

// IsValid reports whether l is a recognised layout.
func (l Layout) IsValid() bool {
	return l >= LayoutGrayscale && l <= LayoutSinglePorch
}

// isColor reports whether l transmits three RGB channels in Mode.Order.
func (l Layout) isColor() bool {
	switch l {
	case LayoutColorSequential, LayoutScottie, LayoutFixedPorch, LayoutSinglePorch:
		return true
	}
	return false
}

// Channel indexes a component of an RGB pixel.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return "unknown"
	}
}

// Mode fully describes the geometry and timing of one SSTV mode. All
// durations are in milliseconds. Fields a layout does not use are zero.
type Mode struct {
	// Name is the registry key, e.g. "MartinM1".
	Name string

	// VIS is the 7-bit mode identifier sent in the header.
	VIS uint8

	// Width and Height are the transmitted image dimensions in pixels.
	Width  int
	Height int

	// Layout selects the line encoder.
	Layout Layout

	// Sync is the horizontal sync pulse length.
	Sync float64

	// Scan is the duration of one full-width channel scan. For
	// LayoutYUVAlternating it is the luma scan.
	Scan float64

	// Gap is the black gap bracketing colour channels (Martin, Scottie,
	// Pasokon).
	Gap float64

	// Porch is the black porch after sync (PD, Wraase) or the 1900 Hz porch
	// ahead of the chroma scan (Robot 36).
	Porch float64

	// SyncPorch is the black porch following the sync pulse (Robot 36).
	SyncPorch float64

	// Separator is the chroma marker tone length (Robot 36).
	Separator float64

	// ChromaScan is the duration of the half-resolution chroma scan
	// (Robot 36).
	ChromaScan float64

	// Pixel is the fixed per-pixel time of the PD family.
	Pixel float64

	// Order is the channel transmission order of colour layouts.
	Order [3]Channel
}

// Validate checks that m can be encoded. All failures wrap [ErrInvalidMode].
func (m Mode) Validate() error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if m.VIS > 0x7f {
		errs = append(errs, fmt.Errorf("vis code 0x%02x does not fit in 7 bits", m.VIS))
	}
	if m.Width <= 0 || m.Height <= 0 {
		errs = append(errs, fmt.Errorf("dimensions %dx%d must be positive", m.Width, m.Height))
	}
	if !m.Layout.IsValid() {
		errs = append(errs, fmt.Errorf("layout %d is unknown", int(m.Layout)))
	}
	timing := m.Timing()
	for _, name := range slices.Sorted(maps.Keys(timing)) {
		if v := timing[name]; v < 0 {
			errs = append(errs, fmt.Errorf("%s %.3f ms is negative", name, v))
		}
	}
	if m.Sync < 0 {
		errs = append(errs, fmt.Errorf("sync %.3f ms is negative", m.Sync))
	}

	switch m.Layout {
	case LayoutYUVPaired:
		if m.Pixel <= 0 {
			errs = append(errs, errors.New("pixel time must be positive"))
		}
		if m.Height%2 != 0 {
			errs = append(errs, fmt.Errorf("height %d must be even for paired lines", m.Height))
		}
	case LayoutYUVAlternating:
		if m.Scan <= 0 || m.ChromaScan <= 0 {
			errs = append(errs, errors.New("luma and chroma scan times must be positive"))
		}
		if m.Width%2 != 0 {
			errs = append(errs, fmt.Errorf("width %d must be even for half-resolution chroma", m.Width))
		}
	default:
		if m.Scan <= 0 {
			errs = append(errs, errors.New("scan time must be positive"))
		}
	}

	if m.Layout.isColor() {
		var seen [3]bool
		for _, c := range m.Order {
			if c < Red || c > Blue || seen[c] {
				errs = append(errs, fmt.Errorf("channel order %v must be a permutation of red, green, blue", m.Order))
				break
			}
			seen[c] = true
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", ErrInvalidMode, m.Name, errors.Join(errs...))
}

// NewMode validates m and returns it. It is the constructor for modes that
// do not come from the canonical table.
func NewMode(m Mode) (Mode, error) {
	if err := m.Validate(); err != nil {
		return Mode{}, err
	}
	return m, nil
}

// Timing returns the layout-specific timing constants that are set, keyed
// by name. Sync and Scan are reported through their own fields.
func (m Mode) Timing() map[string]float64 {
	t := make(map[string]float64, 6)
	for name, v := range map[string]float64{
		"gap":         m.Gap,
		"porch":       m.Porch,
		"sync_porch":  m.SyncPorch,
		"separator":   m.Separator,
		"chroma_scan": m.ChromaScan,
		"pixel":       m.Pixel,
	} {
		if v != 0 {
			t[name] = v
		}
	}
	return t
}

// LinesPerScan is the number of image rows consumed by one transmitted scan.
func (m Mode) LinesPerScan() int {
	if m.Layout == LayoutYUVPaired {
		return 2
	}
	return 1
}

// Scans is the number of scans needed to transmit the whole image.
func (m Mode) Scans() int {
	return m.Height / m.LinesPerScan()
}

// ScanDuration returns the duration of one transmitted scan in ms.
func (m Mode) ScanDuration() float64 {
	switch m.Layout {
	case LayoutGrayscale:
		return m.Sync + m.Scan
	case LayoutColorSequential, LayoutFixedPorch:
		return m.Sync + m.Gap + 3*(m.Scan+m.Gap)
	case LayoutScottie:
		return m.Sync + 3*(m.Gap+m.Scan)
	case LayoutYUVAlternating:
		return m.Sync + m.SyncPorch + m.Scan + m.Separator + m.Porch + m.ChromaScan
	case LayoutYUVPaired:
		return m.Sync + m.Porch + 4*float64(m.Width)*m.Pixel
	case LayoutSinglePorch:
		return m.Sync + m.Porch + 3*m.Scan
	}
	return 0
}

// ImageDuration returns the duration of the image body in ms: every scan plus
// any one-off lead-in the layout sends. It excludes the VIS header.
func (m Mode) ImageDuration() float64 {
	d := float64(m.Scans()) * m.ScanDuration()
	if m.Layout == LayoutScottie {
		d += m.Sync
	}
	return d
}
