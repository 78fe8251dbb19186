// Package picture provides reference-counted handles over decoded frame
// records whose pixel memory is owned by a decoding engine.
//
// A Picture never copies pixel data. Plane slices returned by a handle are
// views into engine memory and stay valid only while at least one handle
// referencing the same record is unreleased. Engines usually also require the
// session that produced a picture to stay open for that long.
package picture

import (
	"math"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// NoTimestamp marks a frame record without a presentation timestamp.
const NoTimestamp int64 = math.MinInt64

// MaxPlanes is the number of plane slots in a frame record.
const MaxPlanes = 3

// Frame is the frame record an engine fills in when it produces a picture.
type Frame struct {
	Planes [MaxPlanes][]byte // Views over engine-owned memory
	Stride [MaxPlanes]int    // Bytes per row, per plane

	Width  int
	Height int

	BitDepth     int       // Bits per component from the frame parameters
	HighBitDepth int       // Sequence header hbd field (0, 1, 2)
	Layout       RawLayout // Engine layout enumerator

	Timestamp int64 // NoTimestamp when absent
	Duration  int64

	// Ref is the engine's own handle for this record, used on release.
	Ref any
}

// record is the shared state behind every handle of one frame.
type record struct {
	frame   Frame
	refs    atomic.Int32
	release func(*Frame)
}

func (r *record) unref() {
	if r.refs.Add(-1) == 0 && r.release != nil {
		r.release(&r.frame)
	}
}

// handle is the per-Picture state. It is kept apart from Picture so the
// cleanup hook can reach it without keeping the Picture alive.
type handle struct {
	rec      *record
	released atomic.Bool
}

func (h *handle) drop() {
	if h.released.CompareAndSwap(false, true) {
		h.rec.unref()
	}
}

// Picture is a handle to a decoded frame record.
type Picture struct {
	h *handle
}

// New wraps frame in a first handle. release is called exactly once, after
// the last handle for frame has been released.
func New(frame Frame, release func(*Frame)) *Picture {
	rec := &record{frame: frame, release: release}
	rec.refs.Store(1)
	return newHandle(rec)
}

func newHandle(rec *record) *Picture {
	h := &handle{rec: rec}
	p := &Picture{h: h}
	runtime.AddCleanup(p, func(h *handle) { h.drop() }, h)
	return p
}

// Clone returns another handle to the same frame record. Cloning a released
// handle, or a record whose last reference is already gone, returns a handle
// that is already released: it holds no reference and exposes no plane data.
func (p *Picture) Clone() *Picture {
	rec := p.h.rec
	if p.Released() {
		return releasedHandle(rec)
	}
	for {
		n := rec.refs.Load()
		if n <= 0 {
			return releasedHandle(rec)
		}
		if rec.refs.CompareAndSwap(n, n+1) {
			return newHandle(rec)
		}
	}
}

func releasedHandle(rec *record) *Picture {
	h := &handle{rec: rec}
	h.released.Store(true)
	return &Picture{h: h}
}

// Release drops this handle's reference. Calling it more than once on the
// same handle has no further effect.
func (p *Picture) Release() {
	p.h.drop()
}

// Released reports whether Release has been called on this handle.
func (p *Picture) Released() bool {
	return p.h.released.Load()
}

func (p *Picture) frame() *Frame {
	return &p.h.rec.frame
}

// Plane returns the pixel data of plane n, or nil if n is out of range or the
// handle was released.
func (p *Picture) Plane(n int) []byte {
	if n < 0 || n >= MaxPlanes || p.Released() {
		return nil
	}
	return p.frame().Planes[n]
}

// PlanePointer returns the base address of plane n, or nil.
func (p *Picture) PlanePointer(n int) unsafe.Pointer {
	plane := p.Plane(n)
	if len(plane) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(plane))
}

// Stride returns the byte stride of plane n, or 0 if n is out of range or the
// handle was released.
func (p *Picture) Stride(n int) int {
	if n < 0 || n >= MaxPlanes || p.Released() {
		return 0
	}
	return p.frame().Stride[n]
}

// Width returns the frame width in pixels.
func (p *Picture) Width() int {
	return p.frame().Width
}

// Height returns the frame height in pixels.
func (p *Picture) Height() int {
	return p.frame().Height
}

// BitDepth returns the raw bits per component from the frame parameters.
func (p *Picture) BitDepth() int {
	return p.frame().BitDepth
}

// BitsPerComponent classifies the sequence header's high bit depth flag.
// It can disagree with BitDepth, which is a per-frame value.
func (p *Picture) BitsPerComponent() BitsPerComponent {
	switch p.frame().HighBitDepth {
	case 0:
		return BPC8
	case 1:
		return BPC10
	case 2:
		return BPC12
	default:
		return BPCUnknown
	}
}

// PixelLayout classifies the engine's layout enumerator.
func (p *Picture) PixelLayout() PixelLayout {
	return LayoutFromRaw(p.frame().Layout)
}

// Timestamp returns the presentation timestamp, if the engine reported one.
func (p *Picture) Timestamp() (int64, bool) {
	ts := p.frame().Timestamp
	if ts == NoTimestamp {
		return 0, false
	}
	return ts, true
}

// Duration returns the display duration in engine time-base units.
func (p *Picture) Duration() int64 {
	return p.frame().Duration
}
