package av1encoder

import (
	"image"
	"image/color"
	"image/draw"
)

// EncodeSolid encodes n frames of solid colors cycling through a fixed
// palette. Decoder tests use it as a source of real temporal units.
func EncodeSolid(opts Options, n int) ([]Packet, error) {
	enc, err := New(opts)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	for i := 0; i < n; i++ {
		if err := enc.Encode(SolidImage(opts.Width, opts.Height, Palette[i%len(Palette)])); err != nil {
			return nil, err
		}
	}
	return enc.Finish()
}

// Palette is the color cycle used by EncodeSolid.
var Palette = []color.RGBA{
	{R: 255, G: 0, B: 0, A: 255},   // Red
	{R: 0, G: 255, B: 0, A: 255},   // Green
	{R: 0, G: 0, B: 255, A: 255},   // Blue
	{R: 255, G: 255, B: 0, A: 255}, // Yellow
	{R: 255, G: 0, B: 255, A: 255}, // Magenta
}

// SolidImage returns an RGBA image filled with c.
func SolidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}
