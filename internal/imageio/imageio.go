// Package imageio loads source images and picks an SSTV mode for them.
//
// Decoders for PNG, JPEG and GIF come from the standard library; BMP, TIFF
// and WebP are registered from golang.org/x/image.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/MrWong99/slowscan/pkg/sstv"
)

// DefaultMaxPixels is the decode cap used by [Decode] and [Open]: 4096x4096,
// about 34 times the largest built-in mode (PD290, 800x616).
const DefaultMaxPixels = 4096 * 4096

// ErrImageTooLarge is returned when an image header declares more pixels than
// the decode cap allows. Nothing beyond the header has been read.
var ErrImageTooLarge = errors.New("imageio: image too large")

// ErrNoMode is returned by [SelectMode] when neither the file name nor the
// image size identifies a usable mode.
var ErrNoMode = errors.New("imageio: no suitable mode")

// Image is a decoded picture together with the decoder that produced it.
type Image struct {
	image.Image

	// Format is the decoder name, e.g. "png" or "jpeg".
	Format string
}

// Width returns the image width in pixels.
func (i Image) Width() int { return i.Bounds().Dx() }

// Height returns the image height in pixels.
func (i Image) Height() int { return i.Bounds().Dy() }

// Source wraps the image for the encoder.
func (i Image) Source() *sstv.ImageSource { return sstv.FromImage(i.Image) }

// Decode reads one image from r, refusing images over [DefaultMaxPixels].
func Decode(r io.Reader) (Image, error) {
	return DecodeLimit(r, DefaultMaxPixels)
}

// DecodeLimit reads one image from r. The header is checked first, so an
// image declaring more than maxPixels pixels fails with [ErrImageTooLarge]
// before any pixel buffer is allocated. maxPixels <= 0 means
// [DefaultMaxPixels].
func DecodeLimit(r io.Reader, maxPixels int64) (Image, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return Image{}, fmt.Errorf("imageio: decode: %w", err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > maxPixels {
		return Image{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return Image{}, fmt.Errorf("imageio: decode: %w", err)
	}
	return Image{Image: img, Format: format}, nil
}

// Open decodes the image file at path.
func Open(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("imageio: open %q: %w", path, err)
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return Image{}, fmt.Errorf("imageio: %q: %w", path, err)
	}
	return img, nil
}

// Abbreviation maps a short mode tag, as used by slowrx and QSSTV in saved
// file names, to a registered mode name.
type Abbreviation struct {
	Tag  string
	Mode string
}

// Abbreviations is the tag table in size-fallback order.
var Abbreviations = []Abbreviation{
	{"M1", "MartinM1"},
	{"M2", "MartinM2"},
	{"S1", "ScottieS1"},
	{"S2", "ScottieS2"},
	{"SDX", "ScottieDX"},
	{"R36", "Robot36"},
	{"R8BW", "Robot8BW"},
	{"R24BW", "Robot24BW"},
	{"PD90", "PD90"},
	{"PD120", "PD120"},
	{"PD160", "PD160"},
	{"PD180", "PD180"},
	{"PD240", "PD240"},
	{"PD290", "PD290"},
	{"P3", "PasokonP3"},
	{"P5", "PasokonP5"},
	{"P7", "PasokonP7"},
	{"SC2180", "WraaseSC2180"},
}

// ModeForFilename returns the mode whose tag appears in the base name of
// path, ignoring the extension. Tags are matched case-sensitively; when
// several match, the longest wins.
func ModeForFilename(reg *sstv.Registry, path string) (sstv.Mode, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	best := -1
	for i, a := range Abbreviations {
		if !strings.Contains(base, a.Tag) {
			continue
		}
		if best < 0 || len(a.Tag) > len(Abbreviations[best].Tag) {
			best = i
		}
	}
	if best < 0 {
		return sstv.Mode{}, false
	}
	m, err := reg.Lookup(Abbreviations[best].Mode)
	if err != nil {
		return sstv.Mode{}, false
	}
	return m, true
}

// ModeForSize returns the first mode in [Abbreviations] order that an image
// of the given size can fill.
func ModeForSize(reg *sstv.Registry, width, height int) (sstv.Mode, bool) {
	for _, a := range Abbreviations {
		m, err := reg.Lookup(a.Mode)
		if err != nil {
			continue
		}
		if width >= m.Width && height >= m.Height {
			return m, true
		}
	}
	return sstv.Mode{}, false
}

// SelectMode picks a mode for an image file: the file name tag if present,
// otherwise the first mode the image is large enough for. A tagged mode
// the image is too small for is still returned; the encoder reports the
// size mismatch.
func SelectMode(reg *sstv.Registry, path string, img Image) (sstv.Mode, error) {
	if m, ok := ModeForFilename(reg, path); ok {
		return m, nil
	}
	if m, ok := ModeForSize(reg, img.Width(), img.Height()); ok {
		return m, nil
	}
	return sstv.Mode{}, fmt.Errorf("%w for %q (%dx%d)", ErrNoMode, filepath.Base(path), img.Width(), img.Height())
}
