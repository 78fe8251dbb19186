package ports

import (
	"github.com/user/av1session/pkg/picture"
)

// PictureSink consumes decoded pictures.
// WritePicture must not retain pic after it returns; the caller releases it.
type PictureSink interface {
	// WritePicture writes the index-th decoded picture.
	WritePicture(index int, pic *picture.Picture) error

	// Close flushes pending output.
	Close() error
}
