package sstv

import (
	"image"
	"image/color"
)

// PixelSource is read-only random access to the pixels of an image. The
// encoder only requests coordinates inside [0, width) x [0, height) of the
// selected mode and may read rows in any order.
type PixelSource interface {
	// Size returns the source dimensions in pixels.
	Size() (width, height int)

	// RGB returns the 8-bit colour components at (x, y).
	RGB(x, y int) (r, g, b uint8)
}

// GraySource is implemented by single-channel sources. Grayscale layouts use
// it instead of averaging the RGB components.
type GraySource interface {
	PixelSource
	Gray(x, y int) uint8
}

// YCbCrSource is implemented by sources that hold luma/chroma natively.
// YUV layouts use it instead of converting from RGB.
type YCbCrSource interface {
	PixelSource
	YCbCr(x, y int) (yy, cb, cr uint8)
}

// ImageSource adapts an [image.Image] to [PixelSource]. Coordinates are
// relative to the image's bounds, so (0, 0) is always the top-left pixel.
type ImageSource struct {
	img   image.Image
	min   image.Point
	gray  *image.Gray
	ycbcr *image.YCbCr
}

// FromImage wraps img. *image.Gray and *image.YCbCr images keep their
// native channels: grayscale modes read Gray luminance directly and YUV modes
// read the stored luma/chroma instead of converting from RGB.
func FromImage(img image.Image) *ImageSource {
	s := &ImageSource{img: img, min: img.Bounds().Min}
	switch v := img.(type) {
	case *image.Gray:
		s.gray = v
	case *image.YCbCr:
		s.ycbcr = v
	}
	return s
}

// Size returns the image dimensions.
func (s *ImageSource) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// RGB returns the non-alpha-premultiplied 8-bit colour at (x, y).
func (s *ImageSource) RGB(x, y int) (uint8, uint8, uint8) {
	c := color.NRGBAModel.Convert(s.img.At(s.min.X+x, s.min.Y+y)).(color.NRGBA)
	return c.R, c.G, c.B
}

// YCbCr returns the JFIF luma/chroma triple at (x, y).
func (s *ImageSource) YCbCr(x, y int) (uint8, uint8, uint8) {
	if s.ycbcr != nil {
		c := s.ycbcr.YCbCrAt(s.min.X+x, s.min.Y+y)
		return c.Y, c.Cb, c.Cr
	}
	r, g, b := s.RGB(x, y)
	return color.RGBToYCbCr(r, g, b)
}

// pixelView is the single colour-space view a line encoder reads from. It
// is chosen once per encoder so the per-pixel path carries no type checks.
type pixelView struct {
	// luma returns the grayscale sample value in [0, 255].
	luma func(x, y int) float64

	// channels returns three components: R, G, B for colour layouts or
	// Y, Cb, Cr for YUV layouts.
	channels func(x, y int) [3]uint8
}

// newPixelView derives the view layout l needs from src.
func newPixelView(l Layout, src PixelSource) pixelView {
	switch l {
	case LayoutGrayscale:
		if gs, ok := src.(GraySource); ok {
			return pixelView{luma: func(x, y int) float64 { return float64(gs.Gray(x, y)) }}
		}
		if is, ok := src.(*ImageSource); ok && is.gray != nil {
			g, off := is.gray, is.min
			return pixelView{luma: func(x, y int) float64 { return float64(g.GrayAt(off.X+x, off.Y+y).Y) }}
		}
		return pixelView{luma: func(x, y int) float64 {
			r, g, b := src.RGB(x, y)
			return float64(int(r)+int(g)+int(b)) / 3
		}}
	case LayoutYUVAlternating, LayoutYUVPaired:
		if ys, ok := src.(YCbCrSource); ok {
			return pixelView{channels: func(x, y int) [3]uint8 {
				yy, cb, cr := ys.YCbCr(x, y)
				return [3]uint8{yy, cb, cr}
			}}
		}
		return pixelView{channels: func(x, y int) [3]uint8 {
			yy, cb, cr := color.RGBToYCbCr(src.RGB(x, y))
			return [3]uint8{yy, cb, cr}
		}}
	default:
		return pixelView{channels: func(x, y int) [3]uint8 {
			r, g, b := src.RGB(x, y)
			return [3]uint8{r, g, b}
		}}
	}
}
