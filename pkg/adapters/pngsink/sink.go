// Package pngsink writes each decoded picture as a PNG file.
package pngsink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/av1session/pkg/convert"
	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

// Options controls output naming and scaling.
type Options struct {
	// Width scales pictures to this width keeping the aspect ratio; 0 keeps the size.
	Width int
}

// Sink saves pictures to files under a directory.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
	opts     Options
	written  int
}

// New creates a PNG sink writing into baseDir.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer, opts Options) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
		opts:     opts,
	}
}

// Path returns the file name used for the index-th picture.
func (s *Sink) Path(index int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("frame-%04d.png", index))
}

// WritePicture converts, optionally scales, and saves one picture.
func (s *Sink) WritePicture(index int, pic *picture.Picture) error {
	if s.written == 0 {
		if err := s.fs.MkdirAll(s.baseDir); err != nil {
			return err
		}
	}

	rgba, err := convert.ToRGBA(pic)
	if err != nil {
		return fmt.Errorf("convert picture %d: %w", index, err)
	}

	var img image.Image = rgba
	if b := rgba.Bounds(); s.opts.Width > 0 && s.opts.Width != b.Dx() {
		h := b.Dy() * s.opts.Width / b.Dx()
		if h < 1 {
			h = 1
		}
		img = s.renderer.ResizeImage(rgba, s.opts.Width, h)
	}

	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode picture %d: %w", index, err)
	}
	return s.save(index, data)
}

func (s *Sink) save(index int, data []byte) error {
	if err := s.fs.WriteFile(s.Path(index), data); err != nil {
		return err
	}
	s.written++
	return nil
}

// Written returns the number of files written.
func (s *Sink) Written() int {
	return s.written
}

// Close does nothing; every picture is written as it arrives.
func (s *Sink) Close() error {
	return nil
}

// Ensure Sink implements ports.PictureSink
var _ ports.PictureSink = (*Sink)(nil)
