package mocks

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

// Default geometry of frames produced by the fake engine.
const (
	DefaultWidth  = 64
	DefaultHeight = 48
)

// Output is one scripted result of the fake engine's drain step.
type Output struct {
	Frame picture.Frame
	Fault bool
}

// FrameOutput returns an Output carrying a frame.
func FrameOutput(f picture.Frame) Output {
	return Output{Frame: f}
}

// FaultOutput returns an Output that makes GetPicture report a fault.
func FaultOutput() Output {
	return Output{Fault: true}
}

// Unit encodes a fake compressed unit announcing a width x height frame.
func Unit(width, height int) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint16(data[0:2], uint16(width))
	binary.BigEndian.PutUint16(data[2:4], uint16(height))
	copy(data[4:], "AV01")
	return data
}

// NewFrame allocates an 8-bit frame record with the given geometry and layout.
func NewFrame(width, height int, layout picture.RawLayout) picture.Frame {
	f := picture.Frame{
		Width:        width,
		Height:       height,
		BitDepth:     8,
		HighBitDepth: 0,
		Layout:       layout,
		Timestamp:    picture.NoTimestamp,
	}

	f.Stride[0] = width
	f.Planes[0] = make([]byte, width*height)
	if layout == picture.RawLayoutI400 {
		return f
	}

	xs, ys := picture.LayoutFromRaw(layout).ChromaShift()
	cw := (width + (1 << xs) - 1) >> xs
	ch := (height + (1 << ys) - 1) >> ys
	for i := 1; i < picture.MaxPlanes; i++ {
		f.Stride[i] = cw
		f.Planes[i] = make([]byte, cw*ch)
	}
	return f
}

// DefaultProduce returns one I420 frame per unit. Units built with Unit carry
// their own geometry; anything else decodes to DefaultWidth x DefaultHeight.
func DefaultProduce(n int, data []byte) []Output {
	w, h := DefaultWidth, DefaultHeight
	if len(data) >= 8 && string(data[4:8]) == "AV01" {
		w = int(binary.BigEndian.Uint16(data[0:2]))
		h = int(binary.BigEndian.Uint16(data[2:4]))
	}
	return []Output{FrameOutput(NewFrame(w, h, picture.RawLayoutI420))}
}

// ErrOpen is a ready-made Open failure.
var ErrOpen = errors.New("mocks: engine unavailable")

// Engine is a scripted fake of ports.Engine.
type Engine struct {
	NameValue string
	Settings  ports.EngineSettings // Returned by DefaultSettings
	OpenErr   error

	// Delay holds pictures back until more than Delay frames are pending.
	// A drain without new data since the last empty drain outputs them all.
	Delay int

	// RejectFunc rejects the n-th SendData call (0-based) when it returns true.
	RejectFunc func(n int, data []byte) bool

	// ProduceFunc returns what the n-th accepted unit decodes to.
	// Nil means DefaultProduce.
	ProduceFunc func(n int, data []byte) []Output

	// CreateDataErr makes CreateData fail.
	CreateDataErr error

	mu         sync.Mutex
	OpenedWith []ports.EngineSettings
	Handles    []*EngineHandle
}

// Name returns NameValue, or "fake".
func (e *Engine) Name() string {
	if e.NameValue == "" {
		return "fake"
	}
	return e.NameValue
}

// DefaultSettings returns Settings.
func (e *Engine) DefaultSettings() ports.EngineSettings {
	return e.Settings
}

// Open records the settings and returns a new handle, or OpenErr.
func (e *Engine) Open(settings ports.EngineSettings) (ports.EngineHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.OpenedWith = append(e.OpenedWith, settings)
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	h := &EngineHandle{engine: e, releases: make(map[uint64]int)}
	e.Handles = append(e.Handles, h)
	return h, nil
}

// LastHandle returns the most recently opened handle.
func (e *Engine) LastHandle() *EngineHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Handles) == 0 {
		return nil
	}
	return e.Handles[len(e.Handles)-1]
}

// SentUnit records one SendData call.
type SentUnit struct {
	Data      []byte
	Timestamp int64
	Duration  int64
	Accepted  bool
}

// EngineHandle is the fake engine instance.
type EngineHandle struct {
	engine *Engine

	mu       sync.Mutex
	queue    []Output
	fresh    bool
	accepted int
	nextID   uint64
	releases map[uint64]int

	Sent          []SentUnit
	Produced      int
	FlushCalls    int
	CloseCalls    int
	UseAfterClose int
}

type fakeData struct {
	buf       []byte
	timestamp int64
	duration  int64
}

func (d *fakeData) Bytes() []byte { return d.buf }

func (d *fakeData) SetProps(timestamp, duration int64) {
	d.timestamp = timestamp
	d.duration = duration
}

func (h *EngineHandle) checkOpen() {
	if h.CloseCalls > 0 {
		h.UseAfterClose++
	}
}

// CreateData allocates a buffer of exactly size bytes.
func (h *EngineHandle) CreateData(size int) (ports.DataBuffer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkOpen()

	if h.engine.CreateDataErr != nil {
		return nil, h.engine.CreateDataErr
	}
	if size <= 0 {
		return nil, errors.New("mocks: invalid data size")
	}
	return &fakeData{buf: make([]byte, size), timestamp: picture.NoTimestamp}, nil
}

// SendData accepts or rejects buf and queues the scripted outputs.
func (h *EngineHandle) SendData(buf ports.DataBuffer) ports.SendStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkOpen()

	d := buf.(*fakeData)
	data := append([]byte(nil), d.buf...)
	n := len(h.Sent)

	if h.engine.RejectFunc != nil && h.engine.RejectFunc(n, data) {
		h.Sent = append(h.Sent, SentUnit{Data: data, Timestamp: d.timestamp, Duration: d.duration})
		return ports.SendRejected
	}
	h.Sent = append(h.Sent, SentUnit{Data: data, Timestamp: d.timestamp, Duration: d.duration, Accepted: true})

	produce := h.engine.ProduceFunc
	if produce == nil {
		produce = DefaultProduce
	}
	for _, out := range produce(h.accepted, data) {
		if !out.Fault && out.Frame.Timestamp == picture.NoTimestamp {
			out.Frame.Timestamp = d.timestamp
			out.Frame.Duration = d.duration
		}
		h.queue = append(h.queue, out)
	}
	h.accepted++
	h.fresh = true
	return ports.SendAccepted
}

func (h *EngineHandle) pendingFrames() int {
	n := 0
	for _, out := range h.queue {
		if !out.Fault {
			n++
		}
	}
	return n
}

// GetPicture pops the next scripted output.
func (h *EngineHandle) GetPicture(frame *picture.Frame) ports.PictureStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkOpen()

	if len(h.queue) == 0 {
		h.fresh = false
		return ports.PictureNeedMoreData
	}

	head := h.queue[0]
	if head.Fault {
		h.queue = h.queue[1:]
		return ports.PictureFault
	}

	draining := !h.fresh
	if !draining && h.pendingFrames() <= h.engine.Delay {
		h.fresh = false
		return ports.PictureNeedMoreData
	}

	h.queue = h.queue[1:]
	h.nextID++
	*frame = head.Frame
	frame.Ref = h.nextID
	h.releases[h.nextID] = 0
	h.Produced++
	return ports.PictureProduced
}

// ReleasePicture counts the release of frame.
func (h *EngineHandle) ReleasePicture(frame *picture.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, ok := frame.Ref.(uint64)
	if !ok {
		return
	}
	h.releases[id]++
}

// Flush drops all queued outputs.
func (h *EngineHandle) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkOpen()

	h.FlushCalls++
	h.queue = nil
	h.fresh = false
}

// Close marks the handle closed.
func (h *EngineHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.CloseCalls++
}

// Releases returns how many times the frame with the given id was released.
func (h *EngineHandle) Releases(id uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releases[id]
}

// ReleaseStats returns the number of produced frames released exactly once,
// never released, and released more than once.
func (h *EngineHandle) ReleaseStats() (once, leaked, double int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, n := range h.releases {
		switch {
		case n == 0:
			leaked++
		case n == 1:
			once++
		default:
			double++
		}
	}
	return once, leaked, double
}

// Pending returns the number of queued outputs.
func (h *EngineHandle) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

var (
	_ ports.Engine       = (*Engine)(nil)
	_ ports.EngineHandle = (*EngineHandle)(nil)
)
