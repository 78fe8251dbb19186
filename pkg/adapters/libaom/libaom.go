// Package libaom provides an AV1 decode engine using libaom.
package libaom

/*
#cgo !windows pkg-config: aom
#cgo windows CFLAGS: -IC:/vcpkg/installed/x64-windows-static/include
#cgo windows LDFLAGS: -LC:/vcpkg/installed/x64-windows-static/lib -laom -static -lpthread
#include <aom/aom_decoder.h>
#include <aom/aomdx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_decoder_interface() {
    return aom_codec_av1_dx();
}

// Wrapper for aom_codec_dec_init
static aom_codec_err_t init_decoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface, unsigned int threads) {
    aom_codec_dec_cfg_t cfg;
    memset(&cfg, 0, sizeof(cfg));
    cfg.threads = threads;
    cfg.allow_lowbitdepth = 1;
    return aom_codec_dec_init(ctx, iface, &cfg, 0);
}

// Wrappers for aom_codec_control (it's a variadic macro)
static aom_codec_err_t set_operating_point(aom_codec_ctx_t *ctx, int op) {
    return aom_codec_control(ctx, AV1D_SET_OPERATING_POINT, op);
}

static aom_codec_err_t set_output_all_layers(aom_codec_ctx_t *ctx, int all) {
    return aom_codec_control(ctx, AV1D_SET_OUTPUT_ALL_LAYERS, all);
}

// Get image plane data
static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

static unsigned int get_width(aom_image_t *img) {
    return img->d_w;
}

static unsigned int get_height(aom_image_t *img) {
    return img->d_h;
}

static unsigned int get_bit_depth(aom_image_t *img) {
    return img->bit_depth;
}

static int is_high_bitdepth(aom_image_t *img) {
    return (img->fmt & AOM_IMG_FMT_HIGHBITDEPTH) != 0;
}

static int is_monochrome(aom_image_t *img) {
    return img->monochrome;
}

static unsigned int get_x_chroma_shift(aom_image_t *img) {
    return img->x_chroma_shift;
}

static unsigned int get_y_chroma_shift(aom_image_t *img) {
    return img->y_chroma_shift;
}
*/
import "C"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

// ErrInit is returned when the libaom context cannot be created.
var ErrInit = errors.New("libaom: failed to initialize decoder")

// rawLayoutUnknown is reported for chroma shifts no AV1 layout uses.
const rawLayoutUnknown picture.RawLayout = -1

// Engine opens libaom decoders.
type Engine struct{}

// New creates a libaom engine.
func New() *Engine {
	return &Engine{}
}

// Name returns "libaom".
func (e *Engine) Name() string {
	return "libaom"
}

// Version returns the libaom library version string.
func (e *Engine) Version() string {
	return C.GoString(C.aom_codec_version_str())
}

// DefaultSettings returns the settings libaom decodes with when nothing is configured.
func (e *Engine) DefaultSettings() ports.EngineSettings {
	return ports.EngineSettings{
		Threads:    0,
		ApplyGrain: true,
	}
}

// Open creates a decoder context. Settings libaom has no equivalent for
// (frame delay, size limit, strict compliance, invisible frames) are ignored.
func (e *Engine) Open(settings ports.EngineSettings) (ports.EngineHandle, error) {
	codec := (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	if codec == nil {
		return nil, fmt.Errorf("%w: failed to allocate decoder context", ErrInit)
	}
	C.memset(unsafe.Pointer(codec), 0, C.sizeof_aom_codec_ctx_t)

	threads := settings.Threads
	if threads < 0 {
		threads = 0
	}
	iface := C.get_av1_decoder_interface()
	if res := C.init_decoder(codec, iface, C.uint(threads)); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(codec))
		return nil, fmt.Errorf("%w: %d", ErrInit, res)
	}

	h := &Handle{codec: codec}
	if res := C.set_operating_point(codec, C.int(settings.OperatingPoint)); res != C.AOM_CODEC_OK {
		h.Close()
		return nil, fmt.Errorf("%w: operating point %d: %d", ErrInit, settings.OperatingPoint, res)
	}
	all := 0
	if settings.AllLayers {
		all = 1
	}
	if res := C.set_output_all_layers(codec, C.int(all)); res != C.AOM_CODEC_OK {
		h.Close()
		return nil, fmt.Errorf("%w: output all layers: %d", ErrInit, res)
	}
	return h, nil
}

// Handle is one libaom decoder context. libaom images are only valid until
// the next decode call, so produced frames are copied into pooled buffers.
type Handle struct {
	codec *C.aom_codec_ctx_t
	iter  C.aom_codec_iter_t

	iterating bool
	fault     bool

	// Props of the data the current iteration came from
	timestamp int64
	duration  int64
}

// pooledFrame is the Ref of frames produced by this engine.
type pooledFrame struct {
	bufs [picture.MaxPlanes]*[]byte
}

var planePool sync.Pool

func getPlane(n int) *[]byte {
	if v, ok := planePool.Get().(*[]byte); ok && cap(*v) >= n {
		*v = (*v)[:n]
		return v
	}
	b := make([]byte, n)
	return &b
}

// dataBuffer is a Go-owned input buffer; libaom copies what it needs while decoding.
type dataBuffer struct {
	data      []byte
	timestamp int64
	duration  int64
}

func (b *dataBuffer) Bytes() []byte {
	return b.data
}

func (b *dataBuffer) SetProps(timestamp, duration int64) {
	b.timestamp = timestamp
	b.duration = duration
}

// CreateData allocates an input buffer of size bytes.
func (h *Handle) CreateData(size int) (ports.DataBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("libaom: invalid buffer size %d", size)
	}
	return &dataBuffer{data: make([]byte, size), timestamp: picture.NoTimestamp}, nil
}

// SendData decodes buf. Data is rejected while frames of the previous call
// are still waiting to be drained; a decode error is reported as a fault by
// the next GetPicture.
func (h *Handle) SendData(buf ports.DataBuffer) ports.SendStatus {
	b, ok := buf.(*dataBuffer)
	if !ok || h.codec == nil || len(b.data) == 0 || h.iterating || h.fault {
		return ports.SendRejected
	}

	res := C.aom_codec_decode(
		h.codec,
		(*C.uint8_t)(unsafe.Pointer(&b.data[0])),
		C.size_t(len(b.data)),
		nil,
	)
	if res != C.AOM_CODEC_OK {
		h.fault = true
		return ports.SendAccepted
	}

	h.iter = nil
	h.iterating = true
	h.timestamp = b.timestamp
	h.duration = b.duration
	return ports.SendAccepted
}

// GetPicture copies the next decoded image into frame.
func (h *Handle) GetPicture(frame *picture.Frame) ports.PictureStatus {
	if h.fault {
		h.fault = false
		return ports.PictureFault
	}
	if !h.iterating || h.codec == nil {
		return ports.PictureNeedMoreData
	}

	img := C.aom_codec_get_frame(h.codec, &h.iter)
	if img == nil {
		h.iterating = false
		return ports.PictureNeedMoreData
	}

	h.copyImage(img, frame)
	return ports.PictureProduced
}

func (h *Handle) copyImage(img *C.aom_image_t, frame *picture.Frame) {
	width := int(C.get_width(img))
	height := int(C.get_height(img))
	bitDepth := int(C.get_bit_depth(img))
	wideIn := C.is_high_bitdepth(img) != 0
	wideOut := bitDepth > 8

	layout, planes := classify(img)
	xs, ys := int(C.get_x_chroma_shift(img)), int(C.get_y_chroma_shift(img))

	*frame = picture.Frame{
		Width:        width,
		Height:       height,
		BitDepth:     bitDepth,
		HighBitDepth: highBitDepth(bitDepth),
		Layout:       layout,
		Timestamp:    h.timestamp,
		Duration:     h.duration,
	}

	ref := &pooledFrame{}
	for p := 0; p < planes; p++ {
		pw, ph := width, height
		if p > 0 {
			pw = (width + (1 << xs) - 1) >> xs
			ph = (height + (1 << ys) - 1) >> ys
		}
		bpsOut := 1
		if wideOut {
			bpsOut = 2
		}
		stride := pw * bpsOut
		buf := getPlane(stride * ph)
		ref.bufs[p] = buf

		srcStride := int(C.get_stride(img, C.int(p)))
		src := unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(img, C.int(p)))), srcStride*ph)
		copyPlane(*buf, stride, src, srcStride, pw, ph, wideIn, wideOut)

		frame.Planes[p] = *buf
		frame.Stride[p] = stride
	}
	frame.Ref = ref
}

// copyPlane copies pw x ph samples. 16-bit containers holding 8-bit content
// are narrowed so 8-bit pictures always carry one byte per sample.
func copyPlane(dst []byte, dstStride int, src []byte, srcStride, pw, ph int, wideIn, wideOut bool) {
	for y := 0; y < ph; y++ {
		d := dst[y*dstStride:]
		s := src[y*srcStride:]
		switch {
		case wideIn == wideOut:
			n := pw
			if wideOut {
				n *= 2
			}
			copy(d[:n], s[:n])
		case wideIn:
			for x := 0; x < pw; x++ {
				d[x] = uint8(binary.LittleEndian.Uint16(s[x*2:]))
			}
		default:
			for x := 0; x < pw; x++ {
				binary.LittleEndian.PutUint16(d[x*2:], uint16(s[x]))
			}
		}
	}
}

func classify(img *C.aom_image_t) (picture.RawLayout, int) {
	if C.is_monochrome(img) != 0 {
		return picture.RawLayoutI400, 1
	}
	return layoutFromShift(int(C.get_x_chroma_shift(img)), int(C.get_y_chroma_shift(img)))
}

func layoutFromShift(xs, ys int) (picture.RawLayout, int) {
	switch {
	case xs == 1 && ys == 1:
		return picture.RawLayoutI420, 3
	case xs == 1 && ys == 0:
		return picture.RawLayoutI422, 3
	case xs == 0 && ys == 0:
		return picture.RawLayoutI444, 3
	default:
		return rawLayoutUnknown, 3
	}
}

func highBitDepth(bitDepth int) int {
	switch bitDepth {
	case 8:
		return 0
	case 10:
		return 1
	case 12:
		return 2
	default:
		return -1
	}
}

// ReleasePicture returns the frame's buffers to the pool. It is safe to call
// from any goroutine, also after Close.
func (h *Handle) ReleasePicture(frame *picture.Frame) {
	ref, ok := frame.Ref.(*pooledFrame)
	if !ok {
		return
	}
	for i, b := range ref.bufs {
		if b != nil {
			planePool.Put(b)
			ref.bufs[i] = nil
		}
	}
	frame.Ref = nil
}

// Flush drops pending output and signals end of stream to libaom.
func (h *Handle) Flush() {
	if h.codec == nil {
		return
	}
	h.fault = false
	C.aom_codec_decode(h.codec, nil, 0, nil)
	h.iter = nil
	for C.aom_codec_get_frame(h.codec, &h.iter) != nil {
	}
	h.iterating = false
}

// Close releases decoder resources.
func (h *Handle) Close() {
	if h.codec != nil {
		C.aom_codec_destroy(h.codec)
		C.free(unsafe.Pointer(h.codec))
		h.codec = nil
	}
	h.iterating = false
}

var (
	_ ports.Engine       = (*Engine)(nil)
	_ ports.EngineHandle = (*Handle)(nil)
)
