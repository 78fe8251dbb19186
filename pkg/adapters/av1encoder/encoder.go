// Package av1encoder produces AV1 bitstreams with libaom. It backs the synth
// command and gives the decoder adapters real temporal units to work on.
package av1encoder

/*
#cgo !windows pkg-config: aom
#cgo windows CFLAGS: -IC:/vcpkg/installed/x64-windows-static/include
#cgo windows LDFLAGS: -LC:/vcpkg/installed/x64-windows-static/lib -laom -static -lpthread
#include <aom/aom_encoder.h>
#include <aom/aomcx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_interface() {
    return aom_codec_av1_cx();
}

// Wrapper for aom_codec_enc_init
static aom_codec_err_t init_encoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface,
                                     aom_codec_enc_cfg_t *cfg, aom_codec_flags_t flags) {
    return aom_codec_enc_init_ver(ctx, iface, cfg, flags, AOM_ENCODER_ABI_VERSION);
}

// Helper functions to access packet data
static int is_frame_packet(const aom_codec_cx_pkt_t *pkt) {
    return pkt->kind == AOM_CODEC_CX_FRAME_PKT;
}

static void* get_frame_buf(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.buf;
}

static size_t get_frame_sz(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.sz;
}

static int is_keyframe(const aom_codec_cx_pkt_t *pkt) {
    return (pkt->data.frame.flags & AOM_FRAME_IS_KEY) != 0;
}

static aom_codec_pts_t get_frame_pts(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.pts;
}

static unsigned long get_frame_duration(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.duration;
}

static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_plane_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

// Wrapper for aom_codec_control (it's a variadic macro)
static aom_codec_err_t set_cpu_used(aom_codec_ctx_t *ctx, int value) {
    return aom_codec_control(ctx, AOME_SET_CPUUSED, value);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"unsafe"
)

var (
	// ErrNotStarted is returned when encoding on a finished or failed encoder.
	ErrNotStarted = errors.New("av1encoder: encoder not initialized")

	// ErrInvalidOptions is returned for unusable dimensions or frame rates.
	ErrInvalidOptions = errors.New("av1encoder: invalid options")
)

// Options configures an Encoder.
type Options struct {
	Width   int
	Height  int
	FPS     int // Time base is 1/FPS, so every frame lasts one tick
	Quality int // Minimum quantizer 1-63, 0 keeps the libaom default
	Threads int
}

// Packet is one encoded temporal unit.
type Packet struct {
	Data     []byte
	PTS      int64 // In 1/FPS ticks
	Duration int64
	Keyframe bool
}

// Encoder encodes RGBA images into AV1 packets.
type Encoder struct {
	codec    *C.aom_codec_ctx_t
	cfg      *C.aom_codec_enc_cfg_t
	rawFrame *C.aom_image_t

	opts    Options
	packets []Packet
	count   int
}

// New creates and initializes an encoder.
func New(opts Options) (*Encoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("%w: %dx%d at %d fps", ErrInvalidOptions, opts.Width, opts.Height, opts.FPS)
	}
	if opts.Threads <= 0 {
		opts.Threads = 4
	}

	e := &Encoder{opts: opts}

	// Allocate codec context
	e.codec = (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	if e.codec == nil {
		return nil, fmt.Errorf("failed to allocate codec context")
	}
	C.memset(unsafe.Pointer(e.codec), 0, C.sizeof_aom_codec_ctx_t)

	// Allocate config
	e.cfg = (*C.aom_codec_enc_cfg_t)(C.malloc(C.sizeof_aom_codec_enc_cfg_t))
	if e.cfg == nil {
		C.free(unsafe.Pointer(e.codec))
		return nil, fmt.Errorf("failed to allocate encoder config")
	}

	iface := C.get_av1_interface()

	if res := C.aom_codec_enc_config_default(iface, e.cfg, C.AOM_USAGE_REALTIME); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(e.cfg))
		C.free(unsafe.Pointer(e.codec))
		return nil, fmt.Errorf("failed to get default config: %d", res)
	}

	e.cfg.g_w = C.uint(opts.Width)
	e.cfg.g_h = C.uint(opts.Height)
	e.cfg.g_timebase.num = 1
	e.cfg.g_timebase.den = C.int(opts.FPS)
	e.cfg.g_error_resilient = 0
	e.cfg.g_threads = C.uint(opts.Threads)
	e.cfg.g_usage = C.AOM_USAGE_REALTIME
	// One packet out per frame in
	e.cfg.g_lag_in_frames = 0
	e.cfg.rc_target_bitrate = C.uint(opts.Width * opts.Height / 1000)
	e.cfg.rc_end_usage = C.AOM_CQ
	if opts.Quality > 0 && opts.Quality <= 63 {
		e.cfg.rc_min_quantizer = C.uint(opts.Quality)
		e.cfg.rc_max_quantizer = C.uint(opts.Quality + 10)
		if e.cfg.rc_max_quantizer > 63 {
			e.cfg.rc_max_quantizer = 63
		}
	}

	if res := C.init_encoder(e.codec, iface, e.cfg, 0); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(e.cfg))
		C.free(unsafe.Pointer(e.codec))
		e.cfg, e.codec = nil, nil
		return nil, fmt.Errorf("failed to initialize encoder: %d", res)
	}

	// 0 = slowest/best, 10 = fastest
	C.set_cpu_used(e.codec, 8)

	e.rawFrame = (*C.aom_image_t)(C.malloc(C.sizeof_aom_image_t))
	if e.rawFrame == nil {
		e.Close()
		return nil, fmt.Errorf("failed to allocate raw frame")
	}
	if C.aom_img_alloc(e.rawFrame, C.AOM_IMG_FMT_I420, C.uint(opts.Width), C.uint(opts.Height), 32) == nil {
		C.free(unsafe.Pointer(e.rawFrame))
		e.rawFrame = nil
		e.Close()
		return nil, fmt.Errorf("failed to allocate image buffer")
	}

	return e, nil
}

// Encode encodes the next frame. Images of a different size are cropped or
// padded from the top-left corner.
func (e *Encoder) Encode(img image.Image) error {
	if e.codec == nil {
		return ErrNotStarted
	}

	rect := image.Rect(0, 0, e.opts.Width, e.opts.Height)
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds() != rect {
		rgba = image.NewRGBA(rect)
		draw.Draw(rgba, rect, img, img.Bounds().Min, draw.Src)
	}
	e.rgbaToYUV420(rgba)

	flags := C.aom_enc_frame_flags_t(0)
	if e.count == 0 {
		flags = C.AOM_EFLAG_FORCE_KF
	}

	res := C.aom_codec_encode(e.codec, e.rawFrame, C.aom_codec_pts_t(e.count), 1, flags)
	if res != C.AOM_CODEC_OK {
		return fmt.Errorf("encoding failed: %d", res)
	}
	e.count++
	e.collect()
	return nil
}

// Finish flushes the encoder, releases libaom resources, and returns every
// packet produced so far in decode order.
func (e *Encoder) Finish() ([]Packet, error) {
	if e.codec == nil {
		return nil, ErrNotStarted
	}

	for {
		before := len(e.packets)
		if res := C.aom_codec_encode(e.codec, nil, 0, 1, 0); res != C.AOM_CODEC_OK {
			e.Close()
			return nil, fmt.Errorf("flush failed: %d", res)
		}
		e.collect()
		if len(e.packets) == before {
			break
		}
	}

	e.Close()
	if len(e.packets) == 0 {
		return nil, fmt.Errorf("av1encoder: no frames encoded")
	}
	return e.packets, nil
}

// Close releases libaom resources. It is safe to call more than once.
func (e *Encoder) Close() {
	if e.rawFrame != nil {
		C.aom_img_free(e.rawFrame)
		C.free(unsafe.Pointer(e.rawFrame))
		e.rawFrame = nil
	}
	if e.codec != nil {
		C.aom_codec_destroy(e.codec)
		C.free(unsafe.Pointer(e.codec))
		e.codec = nil
	}
	if e.cfg != nil {
		C.free(unsafe.Pointer(e.cfg))
		e.cfg = nil
	}
}

func (e *Encoder) collect() {
	var iter C.aom_codec_iter_t
	for {
		pkt := C.aom_codec_get_cx_data(e.codec, &iter)
		if pkt == nil {
			return
		}
		if C.is_frame_packet(pkt) == 0 {
			continue
		}
		e.packets = append(e.packets, Packet{
			Data:     C.GoBytes(C.get_frame_buf(pkt), C.int(C.get_frame_sz(pkt))),
			PTS:      int64(C.get_frame_pts(pkt)),
			Duration: int64(C.get_frame_duration(pkt)),
			Keyframe: C.is_keyframe(pkt) != 0,
		})
	}
}

// rgbaToYUV420 converts RGBA image to YUV420 format in the raw frame buffer.
func (e *Encoder) rgbaToYUV420(rgba *image.RGBA) {
	width := e.opts.Width
	height := e.opts.Height

	yStride := int(C.get_plane_stride(e.rawFrame, 0))
	uStride := int(C.get_plane_stride(e.rawFrame, 1))
	vStride := int(C.get_plane_stride(e.rawFrame, 2))
	ch := (height + 1) / 2

	yPlane := unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(e.rawFrame, 0))), yStride*height)
	uPlane := unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(e.rawFrame, 1))), uStride*ch)
	vPlane := unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(e.rawFrame, 2))), vStride*ch)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*rgba.Stride + x*4
			r := int(rgba.Pix[idx])
			g := int(rgba.Pix[idx+1])
			b := int(rgba.Pix[idx+2])

			yPlane[y*yStride+x] = clamp(((66*r + 129*g + 25*b + 128) >> 8) + 16)

			if y%2 == 0 && x%2 == 0 {
				uPlane[(y/2)*uStride+x/2] = clamp(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
				vPlane[(y/2)*vStride+x/2] = clamp(((112*r - 94*g - 18*b + 128) >> 8) + 128)
			}
		}
	}
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
