package mocks

import (
	"sync"

	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

// WrittenPicture is the metadata of a picture passed to PictureSink.
type WrittenPicture struct {
	Index     int
	Width     int
	Height    int
	Layout    picture.PixelLayout
	Timestamp int64
	HasTime   bool
}

// PictureSink is a mock implementation of ports.PictureSink.
type PictureSink struct {
	mu sync.Mutex

	WritePictureFunc func(index int, pic *picture.Picture) error

	Written []WrittenPicture
	Closed  bool
}

// NewPictureSink creates a new mock PictureSink.
func NewPictureSink() *PictureSink {
	return &PictureSink{}
}

func (m *PictureSink) WritePicture(index int, pic *picture.Picture) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := pic.Timestamp()
	m.Written = append(m.Written, WrittenPicture{
		Index:     index,
		Width:     pic.Width(),
		Height:    pic.Height(),
		Layout:    pic.PixelLayout(),
		Timestamp: ts,
		HasTime:   ok,
	})
	if m.WritePictureFunc != nil {
		return m.WritePictureFunc(index, pic)
	}
	return nil
}

func (m *PictureSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var _ ports.PictureSink = (*PictureSink)(nil)
