// Package nullsink provides a picture sink that discards everything.
package nullsink

import (
	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

// Sink is a no-op implementation of ports.PictureSink.
// It counts pictures and discards them.
type Sink struct {
	count int
}

// New creates a new NullSink.
func New() *Sink {
	return &Sink{}
}

// WritePicture counts the picture.
func (s *Sink) WritePicture(index int, pic *picture.Picture) error {
	s.count++
	return nil
}

// Count returns the number of pictures written.
func (s *Sink) Count() int {
	return s.count
}

// Close does nothing.
func (s *Sink) Close() error {
	return nil
}

// Ensure Sink implements ports.PictureSink
var _ ports.PictureSink = (*Sink)(nil)
