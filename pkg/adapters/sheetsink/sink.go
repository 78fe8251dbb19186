// Package sheetsink renders a contact sheet of sampled pictures into one image.
package sheetsink

import (
	"fmt"
	"image"
	"image/color"

	"github.com/user/av1session/pkg/convert"
	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

// Options controls sampling and layout.
type Options struct {
	Every      int    // Keep every Nth picture (default 1)
	Columns    int    // Thumbnails per row (default 4)
	ThumbWidth int    // Thumbnail width in pixels (default 160)
	Timescale  uint32 // Ticks per second of picture timestamps; 0 hides times
	FontPath   string
	Background color.Color // Defaults to dark gray
}

const (
	gap         = 8
	labelHeight = 18
)

var (
	background = color.RGBA{R: 32, G: 32, B: 32, A: 255}
	labelColor = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	frameColor = color.RGBA{R: 90, G: 90, B: 90, A: 255}
)

type thumb struct {
	img   image.Image
	label string
}

// Sink collects thumbnails and writes the sheet on Close.
type Sink struct {
	path     string
	fs       ports.FileSystem
	renderer ports.Renderer
	opts     Options
	thumbs   []thumb
	closed   bool
}

// New creates a sheet sink that writes a PNG to path.
func New(path string, fs ports.FileSystem, renderer ports.Renderer, opts Options) *Sink {
	if opts.Every <= 0 {
		opts.Every = 1
	}
	if opts.Columns <= 0 {
		opts.Columns = 4
	}
	if opts.ThumbWidth <= 0 {
		opts.ThumbWidth = 160
	}
	if opts.Background == nil {
		opts.Background = background
	}
	return &Sink{path: path, fs: fs, renderer: renderer, opts: opts}
}

// WritePicture keeps a thumbnail of every Nth picture.
func (s *Sink) WritePicture(index int, pic *picture.Picture) error {
	if index%s.opts.Every != 0 {
		return nil
	}

	rgba, err := convert.ToRGBA(pic)
	if err != nil {
		return fmt.Errorf("convert picture %d: %w", index, err)
	}
	b := rgba.Bounds()
	h := b.Dy() * s.opts.ThumbWidth / b.Dx()
	if h < 1 {
		h = 1
	}

	s.thumbs = append(s.thumbs, thumb{
		img:   s.renderer.ResizeImage(rgba, s.opts.ThumbWidth, h),
		label: s.label(index, pic),
	})
	return nil
}

func (s *Sink) label(index int, pic *picture.Picture) string {
	ts, ok := pic.Timestamp()
	if !ok || s.opts.Timescale == 0 {
		return fmt.Sprintf("#%d", index)
	}
	return fmt.Sprintf("#%d  %.3fs", index, float64(ts)/float64(s.opts.Timescale))
}

// Thumbnails returns the number of pictures kept so far.
func (s *Sink) Thumbnails() int {
	return len(s.thumbs)
}

// Render composes the sheet. Cells are as tall as the tallest thumbnail.
func (s *Sink) Render() image.Image {
	cols := s.opts.Columns
	if len(s.thumbs) < cols {
		cols = len(s.thumbs)
	}
	if cols == 0 {
		cols = 1
	}
	rows := (len(s.thumbs) + cols - 1) / cols

	cellH := 0
	for _, t := range s.thumbs {
		if h := t.img.Bounds().Dy(); h > cellH {
			cellH = h
		}
	}
	cellW := s.opts.ThumbWidth
	cellH += labelHeight

	width := gap + cols*(cellW+gap)
	height := gap + rows*(cellH+gap)
	canvas := s.renderer.CreateCanvas(width, height, s.opts.Background)

	style := ports.TextStyle{
		FontSize: 12,
		FontPath: s.opts.FontPath,
		Color:    labelColor,
		Align:    ports.AlignLeft,
	}
	for i, t := range s.thumbs {
		x := gap + (i%cols)*(cellW+gap)
		y := gap + (i/cols)*(cellH+gap)
		canvas.DrawImage(t.img, x, y)
		canvas.DrawRectStroke(x, y, t.img.Bounds().Dx(), t.img.Bounds().Dy(), frameColor, 1)
		canvas.DrawText(t.label, x+2, y+t.img.Bounds().Dy()+labelHeight/2, style)
	}
	return canvas.ToImage()
}

// Close renders and writes the sheet. Nothing is written when no picture
// was kept.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if len(s.thumbs) == 0 {
		return nil
	}

	data, err := s.renderer.EncodeImage(s.Render(), ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode sheet: %w", err)
	}
	return s.fs.WriteFile(s.path, data)
}

var _ ports.PictureSink = (*Sink)(nil)
