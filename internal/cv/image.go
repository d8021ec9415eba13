package cv

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
)

// RGB is a single 8-bit sample triple. Alpha is dropped on load.
type RGB struct {
	R, G, B uint8
}

// Image is a decoded raster held as row-major RGB samples.
// It is never mutated after construction.
type Image struct {
	width  int
	height int
	pix    []RGB
}

// NewImage copies pix into a width x height buffer. len(pix) must equal width*height.
func NewImage(width, height int, pix []RGB) (*Image, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("negative image size %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("pixel count %d does not match %dx%d", len(pix), width, height)
	}
	return &Image{width: width, height: height, pix: append([]RGB(nil), pix...)}, nil
}

// FromImage converts any decoded image to an RGB buffer anchored at (0,0).
// Samples are taken from the non-premultiplied form so that opaque and
// translucent pictures keep their stored color values.
func FromImage(img image.Image) *Image {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	pix := make([]RGB, w*h)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			pix[y*w+x] = RGB{R: row[i], G: row[i+1], B: row[i+2]}
		}
	}
	return &Image{width: w, height: h, pix: pix}
}

// Decode reads a PNG, JPEG, GIF, TIFF or BMP stream.
func Decode(r io.Reader) (*Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// Load opens and decodes the raster at path. The file handle is released
// before Load returns, including when decoding fails.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ImageLoadError{Path: path, Err: err}
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, &ImageLoadError{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	return img, nil
}

// Encode writes img as PNG.
func Encode(w io.Writer, img *Image) error {
	return imaging.Encode(w, img.ToNRGBA(), imaging.PNG)
}

// Save writes img to path; the format follows the file extension.
func Save(img *Image, path string) error {
	return imaging.Save(img.ToNRGBA(), path)
}

// Width returns the width in pixels.
func (m *Image) Width() int { return m.width }

// Height returns the height in pixels.
func (m *Image) Height() int { return m.height }

// Empty reports whether the image has no pixels.
func (m *Image) Empty() bool { return m.width == 0 || m.height == 0 }

// PixelAt returns the sample at (x, y).
func (m *Image) PixelAt(x, y int) (RGB, error) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return RGB{}, fmt.Errorf("(%d,%d) in %dx%d image: %w", x, y, m.width, m.height, ErrOutOfBounds)
	}
	return m.pix[y*m.width+x], nil
}

// at skips the bounds check; callers in the matcher stay inside the buffer.
func (m *Image) at(x, y int) RGB {
	return m.pix[y*m.width+x]
}

// ColorsXMajor lists every pixel column by column (outer x, inner y).
func (m *Image) ColorsXMajor() []RGB {
	out := make([]RGB, 0, len(m.pix))
	for x := 0; x < m.width; x++ {
		for y := 0; y < m.height; y++ {
			out = append(out, m.at(x, y))
		}
	}
	return out
}

// Crop returns the part of the image covered by r.
func (m *Image) Crop(r Region) (*Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rect := r.Rect()
	if !rect.In(image.Rect(0, 0, m.width, m.height)) {
		return nil, fmt.Errorf("region %v outside %dx%d image: %w", r, m.width, m.height, ErrOutOfBounds)
	}
	return FromImage(imaging.Crop(m.ToNRGBA(), rect)), nil
}

// ToNRGBA converts the buffer back to an opaque standard library image.
func (m *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.width, m.height))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			p := m.at(x, y)
			i := out.PixOffset(x, y)
			out.Pix[i] = p.R
			out.Pix[i+1] = p.G
			out.Pix[i+2] = p.B
			out.Pix[i+3] = 0xff
		}
	}
	return out
}
