// Package convert turns decoded pictures into standard library images.
package convert

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/user/av1session/pkg/picture"
)

var (
	// ErrReleased is returned when converting a handle that was already released.
	ErrReleased = errors.New("convert: picture released")

	// ErrUnsupportedLayout is returned for pictures with an unknown pixel layout.
	ErrUnsupportedLayout = errors.New("convert: unsupported pixel layout")
)

// sampler reads one plane of a picture as 8-bit samples.
type sampler struct {
	data   []byte
	stride int
	shift  int // right shift applied to high bit depth samples
	wide   bool
}

func newSampler(pic *picture.Picture, plane int) sampler {
	s := sampler{
		data:   pic.Plane(plane),
		stride: pic.Stride(plane),
	}
	if bd := pic.BitDepth(); bd > 8 {
		s.wide = true
		s.shift = bd - 8
	}
	return s
}

func (s sampler) at(x, y int) uint8 {
	if s.wide {
		off := y*s.stride + x*2
		v := binary.LittleEndian.Uint16(s.data[off:]) >> s.shift
		if v > 255 {
			v = 255
		}
		return uint8(v)
	}
	return s.data[y*s.stride+x]
}

func check(pic *picture.Picture) error {
	if pic.Released() {
		return ErrReleased
	}
	if pic.PixelLayout() == picture.LayoutUnknown {
		return fmt.Errorf("%w: %s", ErrUnsupportedLayout, pic.PixelLayout())
	}
	return nil
}

// ToYCbCr copies a picture into an *image.YCbCr, or an *image.Gray for
// monochrome pictures. Samples wider than 8 bits are scaled down.
func ToYCbCr(pic *picture.Picture) (image.Image, error) {
	if err := check(pic); err != nil {
		return nil, err
	}

	width, height := pic.Width(), pic.Height()
	rect := image.Rect(0, 0, width, height)
	luma := newSampler(pic, 0)

	if pic.PixelLayout() == picture.LayoutI400 {
		gray := image.NewGray(rect)
		for y := 0; y < height; y++ {
			row := gray.Pix[y*gray.Stride:]
			for x := 0; x < width; x++ {
				row[x] = luma.at(x, y)
			}
		}
		return gray, nil
	}

	img := image.NewYCbCr(rect, subsampleRatio(pic.PixelLayout()))
	for y := 0; y < height; y++ {
		row := img.Y[y*img.YStride:]
		for x := 0; x < width; x++ {
			row[x] = luma.at(x, y)
		}
	}

	sx, sy := pic.PixelLayout().ChromaShift()
	cw := (width + (1 << sx) - 1) >> sx
	ch := (height + (1 << sy) - 1) >> sy
	cb := newSampler(pic, 1)
	cr := newSampler(pic, 2)
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			i := y*img.CStride + x
			img.Cb[i] = cb.at(x, y)
			img.Cr[i] = cr.at(x, y)
		}
	}
	return img, nil
}

func subsampleRatio(layout picture.PixelLayout) image.YCbCrSubsampleRatio {
	switch layout {
	case picture.LayoutI420:
		return image.YCbCrSubsampleRatio420
	case picture.LayoutI422:
		return image.YCbCrSubsampleRatio422
	default:
		return image.YCbCrSubsampleRatio444
	}
}

// ToRGBA converts a picture to RGBA using limited range BT.601 coefficients.
func ToRGBA(pic *picture.Picture) (*image.RGBA, error) {
	if err := check(pic); err != nil {
		return nil, err
	}

	width, height := pic.Width(), pic.Height()
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))

	luma := newSampler(pic, 0)
	mono := pic.PixelLayout() == picture.LayoutI400
	var cb, cr sampler
	if !mono {
		cb = newSampler(pic, 1)
		cr = newSampler(pic, 2)
	}
	sx, sy := pic.PixelLayout().ChromaShift()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			yVal := int(luma.at(x, y))
			uVal, vVal := 128, 128
			if !mono {
				uVal = int(cb.at(x>>sx, y>>sy))
				vVal = int(cr.at(x>>sx, y>>sy))
			}

			c := yVal - 16
			d := uVal - 128
			e := vVal - 128

			r := clamp((298*c + 409*e + 128) >> 8)
			g := clamp((298*c - 100*d - 208*e + 128) >> 8)
			b := clamp((298*c + 516*d + 128) >> 8)

			idx := y*rgba.Stride + x*4
			rgba.Pix[idx] = uint8(r)
			rgba.Pix[idx+1] = uint8(g)
			rgba.Pix[idx+2] = uint8(b)
			rgba.Pix[idx+3] = 255
		}
	}

	return rgba, nil
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
