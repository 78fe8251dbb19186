// Package ports defines interfaces for external dependencies.
package ports

import (
	"github.com/user/av1session/pkg/picture"
)

// EngineSettings configures a decoding engine instance.
// Fields an engine does not support are ignored by that engine.
type EngineSettings struct {
	Threads               int    // Worker threads (0 = engine default)
	MaxFrameDelay         int    // Maximum frames buffered before output (0 = engine default)
	ApplyGrain            bool   // Apply film grain synthesis to output pictures
	OperatingPoint        int    // Operating point to decode (0-31)
	AllLayers             bool   // Output all spatial layers instead of the highest only
	FrameSizeLimit        uint32 // Maximum frame area in pixels (0 = unlimited)
	StrictStdCompliance   bool   // Reject bitstreams that violate the AV1 standard
	OutputInvisibleFrames bool   // Also output frames that are not meant to be shown
}

// SendStatus is the result of handing a data buffer to an engine.
type SendStatus int

const (
	// SendAccepted means the engine took ownership of the buffer.
	SendAccepted SendStatus = iota
	// SendRejected means the engine did not consume the buffer.
	SendRejected
)

// PictureStatus is the result of asking an engine for the next picture.
type PictureStatus int

const (
	// PictureProduced means the frame record was filled in.
	PictureProduced PictureStatus = iota
	// PictureNeedMoreData means no picture is ready until more input arrives.
	PictureNeedMoreData
	// PictureFault means the engine hit a decoding error.
	PictureFault
)

// String returns the status name.
func (s PictureStatus) String() string {
	switch s {
	case PictureProduced:
		return "produced"
	case PictureNeedMoreData:
		return "need-more-data"
	case PictureFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Engine opens decoding engine instances.
type Engine interface {
	// Name returns a short identifier such as "dav1d".
	Name() string

	// DefaultSettings returns the engine's default configuration.
	DefaultSettings() EngineSettings

	// Open creates an engine instance.
	Open(settings EngineSettings) (EngineHandle, error)
}

// EngineHandle is one open engine instance. It is not safe for concurrent use,
// except ReleasePicture, which may be called from any goroutine.
type EngineHandle interface {
	// CreateData allocates an engine-owned buffer of exactly size bytes.
	CreateData(size int) (DataBuffer, error)

	// SendData hands buf to the engine. On SendAccepted the engine owns buf;
	// on SendRejected the engine has already disposed of it.
	SendData(buf DataBuffer) SendStatus

	// GetPicture fills frame with the next decoded picture, if one is ready.
	GetPicture(frame *picture.Frame) PictureStatus

	// ReleasePicture returns a frame record produced by GetPicture.
	ReleasePicture(frame *picture.Frame)

	// Flush discards all buffered input and reference state.
	Flush()

	// Close releases the engine instance.
	Close()
}

// DataBuffer is a writable input buffer owned by an engine.
type DataBuffer interface {
	// Bytes returns the writable contents.
	Bytes() []byte

	// SetProps attaches timing metadata that the engine forwards to the
	// pictures decoded from this buffer.
	SetProps(timestamp, duration int64)
}
