package ggrenderer

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/user/av1session/pkg/ports"
)

func TestRenderer_CreateCanvas(t *testing.T) {
	r := New()

	canvas := r.CreateCanvas(100, 100, color.White)
	if canvas == nil {
		t.Fatal("expected canvas to be created")
	}

	img := canvas.ToImage()
	bounds := img.Bounds()

	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("expected 100x100, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderer_EncodeJPEG(t *testing.T) {
	r := New()

	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	data, err := r.EncodeImage(img, ports.FormatJPEG, 0)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg.Decode failed: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 50 {
		t.Errorf("expected 50x50, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderer_EncodePNG(t *testing.T) {
	r := New()

	img := image.NewGray(image.Rect(0, 0, 30, 20))
	img.Pix[0] = 200

	data, err := r.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	if decoded.Bounds().Dx() != 30 || decoded.Bounds().Dy() != 20 {
		t.Errorf("expected 30x20, got %v", decoded.Bounds())
	}
	// PNG is lossless
	if g := color.GrayModel.Convert(decoded.At(0, 0)).(color.Gray); g.Y != 200 {
		t.Errorf("expected 200, got %d", g.Y)
	}
}

func TestRenderer_EncodeUnsupported(t *testing.T) {
	r := New()
	if _, err := r.EncodeImage(image.NewRGBA(image.Rect(0, 0, 1, 1)), ports.ImageFormat(42), 0); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestRenderer_ResizeImage(t *testing.T) {
	r := New()

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	resized := r.ResizeImage(img, 50, 25)
	bounds := resized.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 25 {
		t.Errorf("expected 50x25, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	if same := r.ResizeImage(img, 100, 100); same != image.Image(img) {
		t.Error("expected the same image when no resize is needed")
	}
}

func TestCanvas_DrawRect(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(100, 100, color.White)

	canvas.DrawRect(10, 10, 30, 30, color.RGBA{R: 255, A: 255})

	img := canvas.ToImage()

	// Check that pixel inside rectangle is red
	_, g, _, _ := img.At(20, 20).RGBA()
	if g != 0 {
		t.Error("expected red pixel inside rectangle")
	}
}

func TestCanvas_DrawRectStroke(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(100, 100, color.White)

	canvas.DrawRectStroke(10, 10, 30, 30, color.Black, 2)

	img := canvas.ToImage()

	// Border is dark, interior stays white
	r1, _, _, _ := img.At(10, 20).RGBA()
	if r1 == 65535 {
		t.Error("expected dark pixel on border")
	}
	r2, _, _, _ := img.At(25, 25).RGBA()
	if r2 != 65535 {
		t.Error("expected white pixel inside outline")
	}
}

func TestCanvas_DrawImage(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(100, 100, color.White)

	small := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			small.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	canvas.DrawImage(small, 10, 10)

	img := canvas.ToImage()

	_, g, _, _ := img.At(15, 15).RGBA()
	if g != 0 {
		t.Error("expected red pixel from drawn image")
	}
	_, g, _, _ = img.At(5, 5).RGBA()
	if g == 0 {
		t.Error("expected background outside drawn image")
	}
}

func TestCanvas_DrawText(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(200, 50, color.White)

	style := ports.TextStyle{
		FontSize: 14,
		FontPath: "/nonexistent/font.ttf",
		Color:    color.Black,
		Align:    ports.AlignLeft,
	}

	// Should not panic with a missing font
	canvas.DrawText("#0012 1.000s", 10, 25, style)

	img := canvas.ToImage()
	dark := false
	for x := 10; x < 100 && !dark; x++ {
		if r, _, _, _ := img.At(x, 25).RGBA(); r < 0x8000 {
			dark = true
		}
	}
	if !dark {
		t.Error("expected text pixels")
	}
}
