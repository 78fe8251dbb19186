// Package ivfsource reads AV1 temporal units from IVF files.
package ivfsource

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/user/av1session/pkg/ports"
)

// Magic is the IVF file signature.
const Magic = "DKIF"

const (
	fileHeaderSize  = 32
	frameHeaderSize = 12
	// Frames above this size are treated as corruption
	maxFrameSize = 256 << 20
)

var (
	// ErrBadHeader is returned when the file does not start with a valid IVF header.
	ErrBadHeader = errors.New("ivfsource: invalid IVF header")

	// ErrNotAV1 is returned when the IVF fourcc is not AV01.
	ErrNotAV1 = errors.New("ivfsource: stream is not AV1")

	// ErrTruncated is returned when a frame ends before its declared size.
	ErrTruncated = errors.New("ivfsource: truncated frame")
)

// Source implements ports.UnitSource over an IVF stream. Timestamps are in
// ticks of the header time base; Info().Timescale is ticks per second.
type Source struct {
	r       *bufio.Reader
	closer  io.Closer
	info    ports.StreamInfo
	prev    *ports.Unit
	lastDur int64
	done    bool
}

// Open reads the IVF header from rc. The returned Source closes rc.
func Open(rc io.ReadCloser) (*Source, error) {
	s, err := New(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	s.closer = rc
	return s, nil
}

// New reads the IVF header from r without taking ownership of it.
func New(r io.Reader) (*Source, error) {
	br := bufio.NewReader(r)
	hdr := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if string(hdr[0:4]) != Magic {
		return nil, fmt.Errorf("%w: bad signature %q", ErrBadHeader, hdr[0:4])
	}
	headerLen := int(binary.LittleEndian.Uint16(hdr[6:]))
	if headerLen < fileHeaderSize {
		return nil, fmt.Errorf("%w: header length %d", ErrBadHeader, headerLen)
	}
	if fourcc := string(hdr[8:12]); fourcc != "AV01" {
		return nil, fmt.Errorf("%w: fourcc %q", ErrNotAV1, fourcc)
	}
	if _, err := br.Discard(headerLen - fileHeaderSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	rate := binary.LittleEndian.Uint32(hdr[16:])
	scale := binary.LittleEndian.Uint32(hdr[20:])
	timescale := rate
	if scale > 1 && rate%scale == 0 {
		timescale = rate / scale
	}

	s := &Source{r: br, lastDur: 1}
	s.info = ports.StreamInfo{
		Container: "ivf",
		Codec:     "av1",
		Width:     int(binary.LittleEndian.Uint16(hdr[12:])),
		Height:    int(binary.LittleEndian.Uint16(hdr[14:])),
		Timescale: timescale,
		Units:     int(binary.LittleEndian.Uint32(hdr[24:])),
	}
	return s, nil
}

// Info returns the stream description. Units is the frame count declared in
// the header, which writers do not always fill in.
func (s *Source) Info() ports.StreamInfo {
	return s.info
}

// Next returns the next frame. The duration of a frame is the distance to
// the next frame's timestamp, so frames are read one ahead. The last frame
// repeats the previous duration.
func (s *Source) Next() (ports.Unit, error) {
	if s.prev == nil && !s.done {
		u, err := s.readFrame()
		if err != nil {
			return ports.Unit{}, err
		}
		s.prev = &u
	}
	if s.prev == nil {
		return ports.Unit{}, io.EOF
	}

	cur := *s.prev
	next, err := s.readFrame()
	switch {
	case err == io.EOF:
		s.prev = nil
		s.done = true
		cur.Duration = s.lastDur
	case err != nil:
		return ports.Unit{}, err
	default:
		cur.Duration = next.Timestamp - cur.Timestamp
		if cur.Duration <= 0 {
			cur.Duration = 1
		}
		s.lastDur = cur.Duration
		s.prev = &next
	}
	return cur, nil
}

func (s *Source) readFrame() (ports.Unit, error) {
	if s.done {
		return ports.Unit{}, io.EOF
	}
	var fh [frameHeaderSize]byte
	if _, err := io.ReadFull(s.r, fh[:]); err != nil {
		if err == io.EOF {
			s.done = true
			return ports.Unit{}, io.EOF
		}
		return ports.Unit{}, fmt.Errorf("%w: frame header: %v", ErrTruncated, err)
	}

	size := binary.LittleEndian.Uint32(fh[0:])
	if size > maxFrameSize {
		return ports.Unit{}, fmt.Errorf("%w: frame size %d", ErrTruncated, size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(s.r, data); err != nil {
		return ports.Unit{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return ports.Unit{
		Data:      data,
		Timestamp: int64(binary.LittleEndian.Uint64(fh[4:])),
	}, nil
}

// Close closes the underlying stream when the Source owns it.
func (s *Source) Close() error {
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}

var _ ports.UnitSource = (*Source)(nil)
