// Package dav1d provides an AV1 decode engine using libdav1d.
package dav1d

/*
#cgo pkg-config: dav1d
#include <dav1d/dav1d.h>
#include <errno.h>
#include <stdlib.h>
#include <string.h>

static int err_again() {
    return DAV1D_ERR(EAGAIN);
}

static Dav1dContext* open_decoder(const Dav1dSettings *s, int *res) {
    Dav1dContext *c = NULL;
    *res = dav1d_open(&c, s);
    return c;
}

static void close_decoder(Dav1dContext *c) {
    dav1d_close(&c);
}

static Dav1dData* new_data() {
    return (Dav1dData*)calloc(1, sizeof(Dav1dData));
}

static Dav1dPicture* new_picture() {
    return (Dav1dPicture*)calloc(1, sizeof(Dav1dPicture));
}

static void free_picture(Dav1dPicture *p) {
    dav1d_picture_unref(p);
    free(p);
}

static int picture_hbd(const Dav1dPicture *p) {
    return p->seq_hdr ? p->seq_hdr->hbd : -1;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

// ErrOpen is returned when dav1d_open fails.
var ErrOpen = errors.New("dav1d: failed to open decoder")

// Engine opens dav1d decoders.
type Engine struct{}

// New creates a dav1d engine.
func New() *Engine {
	return &Engine{}
}

// Name returns "dav1d".
func (e *Engine) Name() string {
	return "dav1d"
}

// Version returns the dav1d library version string.
func (e *Engine) Version() string {
	return C.GoString(C.dav1d_version())
}

// DefaultSettings returns dav1d_default_settings.
func (e *Engine) DefaultSettings() ports.EngineSettings {
	var s C.Dav1dSettings
	C.dav1d_default_settings(&s)
	return ports.EngineSettings{
		Threads:               int(s.n_threads),
		MaxFrameDelay:         int(s.max_frame_delay),
		ApplyGrain:            s.apply_grain != 0,
		OperatingPoint:        int(s.operating_point),
		AllLayers:             s.all_layers != 0,
		FrameSizeLimit:        uint32(s.frame_size_limit),
		StrictStdCompliance:   s.strict_std_compliance != 0,
		OutputInvisibleFrames: s.output_invisible_frames != 0,
	}
}

// Open creates a decoder with the given settings.
func (e *Engine) Open(settings ports.EngineSettings) (ports.EngineHandle, error) {
	var s C.Dav1dSettings
	C.dav1d_default_settings(&s)
	s.n_threads = C.int(settings.Threads)
	s.max_frame_delay = C.int(settings.MaxFrameDelay)
	s.apply_grain = cbool(settings.ApplyGrain)
	s.operating_point = C.int(settings.OperatingPoint)
	s.all_layers = cbool(settings.AllLayers)
	s.frame_size_limit = C.uint(settings.FrameSizeLimit)
	s.strict_std_compliance = cbool(settings.StrictStdCompliance)
	s.output_invisible_frames = cbool(settings.OutputInvisibleFrames)

	var res C.int
	ctx := C.open_decoder(&s, &res)
	if res != 0 || ctx == nil {
		return nil, fmt.Errorf("%w: %d", ErrOpen, int(res))
	}
	return &Handle{ctx: ctx}, nil
}

func cbool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

// Handle is one dav1d decoder context.
type Handle struct {
	ctx *C.Dav1dContext
}

// dataBuffer wraps a C-allocated Dav1dData record. Bytes is a view over the
// dav1d-owned payload.
type dataBuffer struct {
	data *C.Dav1dData
	buf  []byte
}

func (b *dataBuffer) Bytes() []byte {
	return b.buf
}

func (b *dataBuffer) SetProps(timestamp, duration int64) {
	b.data.m.timestamp = C.int64_t(timestamp)
	b.data.m.duration = C.int64_t(duration)
}

// CreateData allocates a dav1d data buffer of size bytes.
func (h *Handle) CreateData(size int) (ports.DataBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dav1d: invalid buffer size %d", size)
	}
	d := C.new_data()
	if d == nil {
		return nil, fmt.Errorf("dav1d: cannot allocate data record")
	}
	p := C.dav1d_data_create(d, C.size_t(size))
	if p == nil {
		C.free(unsafe.Pointer(d))
		return nil, fmt.Errorf("dav1d: cannot allocate %d bytes", size)
	}
	d.m.timestamp = C.int64_t(picture.NoTimestamp)
	return &dataBuffer{data: d, buf: unsafe.Slice((*byte)(unsafe.Pointer(p)), size)}, nil
}

// SendData hands buf to dav1d. Whatever dav1d did not consume is unreferenced,
// so buf must not be reused after the call.
func (h *Handle) SendData(buf ports.DataBuffer) ports.SendStatus {
	b, ok := buf.(*dataBuffer)
	if !ok || b.data == nil {
		return ports.SendRejected
	}
	defer func() {
		C.dav1d_data_unref(b.data)
		C.free(unsafe.Pointer(b.data))
		b.data = nil
		b.buf = nil
	}()

	if h.ctx == nil {
		return ports.SendRejected
	}
	if res := C.dav1d_send_data(h.ctx, b.data); res != 0 {
		return ports.SendRejected
	}
	return ports.SendAccepted
}

// GetPicture fills frame with the next decoded picture.
func (h *Handle) GetPicture(frame *picture.Frame) ports.PictureStatus {
	if h.ctx == nil {
		return ports.PictureNeedMoreData
	}

	p := C.new_picture()
	if p == nil {
		return ports.PictureFault
	}
	res := C.dav1d_get_picture(h.ctx, p)
	if res == C.err_again() {
		C.free(unsafe.Pointer(p))
		return ports.PictureNeedMoreData
	}
	if res != 0 {
		C.free(unsafe.Pointer(p))
		return ports.PictureFault
	}

	fillFrame(p, frame)
	return ports.PictureProduced
}

func fillFrame(p *C.Dav1dPicture, frame *picture.Frame) {
	width := int(p.p.w)
	height := int(p.p.h)
	layout := picture.RawLayout(p.p.layout)

	*frame = picture.Frame{
		Width:        width,
		Height:       height,
		BitDepth:     int(p.p.bpc),
		HighBitDepth: int(C.picture_hbd(p)),
		Layout:       layout,
		Timestamp:    int64(p.m.timestamp),
		Duration:     int64(p.m.duration),
		Ref:          p,
	}

	luma := int(p.stride[0])
	chroma := int(p.stride[1])
	frame.Planes[0] = unsafe.Slice((*byte)(p.data[0]), luma*height)
	frame.Stride[0] = luma

	if layout == picture.RawLayoutI400 {
		return
	}
	_, ys := picture.LayoutFromRaw(layout).ChromaShift()
	ch := (height + (1 << ys) - 1) >> ys
	for i := 1; i < picture.MaxPlanes; i++ {
		frame.Planes[i] = unsafe.Slice((*byte)(p.data[i]), chroma*ch)
		frame.Stride[i] = chroma
	}
}

// ReleasePicture unreferences the dav1d picture. dav1d reference counts its
// picture pool, so this is safe from any goroutine and after Close.
func (h *Handle) ReleasePicture(frame *picture.Frame) {
	p, ok := frame.Ref.(*C.Dav1dPicture)
	if !ok || p == nil {
		return
	}
	C.free_picture(p)
	frame.Ref = nil
	frame.Planes = [picture.MaxPlanes][]byte{}
}

// Flush drops all buffered data and pictures.
func (h *Handle) Flush() {
	if h.ctx != nil {
		C.dav1d_flush(h.ctx)
	}
}

// Close closes the decoder. It is safe to call more than once.
func (h *Handle) Close() {
	if h.ctx != nil {
		C.close_decoder(h.ctx)
		h.ctx = nil
	}
}

var (
	_ ports.Engine       = (*Engine)(nil)
	_ ports.EngineHandle = (*Handle)(nil)
)
