// Package y4msink writes decoded pictures as a YUV4MPEG2 stream.
package y4msink

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

var (
	// ErrFormatChanged is returned when a picture differs in geometry or
	// format from the first one; Y4M streams cannot change mid-stream.
	ErrFormatChanged = errors.New("y4msink: picture format changed mid-stream")

	// ErrUnsupported is returned for pictures without a known layout.
	ErrUnsupported = errors.New("y4msink: unsupported picture format")
)

// Options configures the stream header.
type Options struct {
	FrameRateNum int
	FrameRateDen int
}

// format identifies what the header was written for.
type format struct {
	width, height int
	layout        picture.PixelLayout
	bitDepth      int
}

// Sink implements ports.PictureSink.
type Sink struct {
	w      io.WriteCloser
	bw     *bufio.Writer
	opts   Options
	header *format
	frames int
}

// New creates a sink writing to w. Close closes w.
func New(w io.WriteCloser, opts Options) *Sink {
	if opts.FrameRateNum <= 0 || opts.FrameRateDen <= 0 {
		opts.FrameRateNum, opts.FrameRateDen = 30, 1
	}
	return &Sink{w: w, bw: bufio.NewWriter(w), opts: opts}
}

// Colorspace returns the Y4M C parameter for a layout and bit depth.
func Colorspace(layout picture.PixelLayout, bitDepth int) (string, error) {
	var base string
	switch layout {
	case picture.LayoutI400:
		base = "mono"
	case picture.LayoutI420:
		base = "420"
	case picture.LayoutI422:
		base = "422"
	case picture.LayoutI444:
		base = "444"
	default:
		return "", fmt.Errorf("%w: layout %s", ErrUnsupported, layout)
	}

	switch bitDepth {
	case 8:
		if layout == picture.LayoutI420 {
			return "420jpeg", nil
		}
		return base, nil
	case 10, 12:
		if layout == picture.LayoutI400 {
			return fmt.Sprintf("mono%d", bitDepth), nil
		}
		return fmt.Sprintf("%sp%d", base, bitDepth), nil
	default:
		return "", fmt.Errorf("%w: %d bits", ErrUnsupported, bitDepth)
	}
}

// WritePicture appends one FRAME. The stream header is written before the
// first picture.
func (s *Sink) WritePicture(index int, pic *picture.Picture) error {
	if pic.Released() {
		return fmt.Errorf("%w: picture %d was released", ErrUnsupported, index)
	}
	f := format{
		width:    pic.Width(),
		height:   pic.Height(),
		layout:   pic.PixelLayout(),
		bitDepth: pic.BitDepth(),
	}

	if s.header == nil {
		cs, err := Colorspace(f.layout, f.bitDepth)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(s.bw, "YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C%s\n",
			f.width, f.height, s.opts.FrameRateNum, s.opts.FrameRateDen, cs); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		s.header = &f
	} else if *s.header != f {
		return fmt.Errorf("%w: picture %d is %dx%d %s %d-bit", ErrFormatChanged, index, f.width, f.height, f.layout, f.bitDepth)
	}

	if _, err := s.bw.WriteString("FRAME\n"); err != nil {
		return fmt.Errorf("write frame %d: %w", index, err)
	}

	bps := 1
	if f.bitDepth > 8 {
		bps = 2
	}
	xs, ys := f.layout.ChromaShift()
	for p := 0; p < f.layout.Planes(); p++ {
		pw, ph := f.width, f.height
		if p > 0 {
			pw = (f.width + (1 << xs) - 1) >> xs
			ph = (f.height + (1 << ys) - 1) >> ys
		}
		data := pic.Plane(p)
		stride := pic.Stride(p)
		for y := 0; y < ph; y++ {
			row := data[y*stride : y*stride+pw*bps]
			if _, err := s.bw.Write(row); err != nil {
				return fmt.Errorf("write frame %d: %w", index, err)
			}
		}
	}
	s.frames++
	return nil
}

// Frames returns the number of frames written.
func (s *Sink) Frames() int {
	return s.frames
}

// Close flushes buffered output and closes the writer.
func (s *Sink) Close() error {
	if s.w == nil {
		return nil
	}
	err := s.bw.Flush()
	if cerr := s.w.Close(); err == nil {
		err = cerr
	}
	s.w = nil
	return err
}

var _ ports.PictureSink = (*Sink)(nil)
