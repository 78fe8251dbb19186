package picture

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testFrame() Frame {
	luma := make([]byte, 16*4)
	cb := make([]byte, 8*2)
	cr := make([]byte, 8*2)
	return Frame{
		Planes:       [MaxPlanes][]byte{luma, cb, cr},
		Stride:       [MaxPlanes]int{16, 8, 8},
		Width:        16,
		Height:       4,
		BitDepth:     8,
		HighBitDepth: 0,
		Layout:       RawLayoutI420,
		Timestamp:    1200,
		Duration:     40,
	}
}

func TestPicture_Accessors(t *testing.T) {
	p := New(testFrame(), nil)
	defer p.Release()

	if p.Width() != 16 || p.Height() != 4 {
		t.Errorf("expected 16x4, got %dx%d", p.Width(), p.Height())
	}
	if p.Stride(0) != 16 || p.Stride(1) != 8 || p.Stride(2) != 8 {
		t.Errorf("unexpected strides: %d %d %d", p.Stride(0), p.Stride(1), p.Stride(2))
	}
	if p.BitDepth() != 8 {
		t.Errorf("expected bit depth 8, got %d", p.BitDepth())
	}
	if p.BitsPerComponent() != BPC8 {
		t.Errorf("expected BPC8, got %d", p.BitsPerComponent())
	}
	if p.PixelLayout() != LayoutI420 {
		t.Errorf("expected I420, got %s", p.PixelLayout())
	}
	if ts, ok := p.Timestamp(); !ok || ts != 1200 {
		t.Errorf("expected timestamp 1200, got %d (present=%v)", ts, ok)
	}
	if p.Duration() != 40 {
		t.Errorf("expected duration 40, got %d", p.Duration())
	}
	if len(p.Plane(0)) != 64 {
		t.Errorf("expected luma plane of 64 bytes, got %d", len(p.Plane(0)))
	}
	if p.PlanePointer(1) == nil {
		t.Error("expected non-nil chroma plane pointer")
	}
}

func TestPicture_AccessorsAreIdempotent(t *testing.T) {
	p := New(testFrame(), nil)
	defer p.Release()

	w1, h1, ptr1 := p.Width(), p.Height(), p.PlanePointer(0)
	w2, h2, ptr2 := p.Width(), p.Height(), p.PlanePointer(0)
	if w1 != w2 || h1 != h2 {
		t.Error("geometry changed between calls")
	}
	if ptr1 != ptr2 {
		t.Error("plane pointer changed between calls")
	}
	ts1, ok1 := p.Timestamp()
	ts2, ok2 := p.Timestamp()
	if ts1 != ts2 || ok1 != ok2 {
		t.Error("timestamp changed between calls")
	}
}

func TestPicture_OutOfRangePlane(t *testing.T) {
	p := New(testFrame(), nil)
	defer p.Release()

	for _, n := range []int{-1, MaxPlanes, 10} {
		if p.Plane(n) != nil {
			t.Errorf("Plane(%d) should be nil", n)
		}
		if p.PlanePointer(n) != nil {
			t.Errorf("PlanePointer(%d) should be nil", n)
		}
		if p.Stride(n) != 0 {
			t.Errorf("Stride(%d) should be 0", n)
		}
	}
}

func TestPicture_Timestamp(t *testing.T) {
	tests := []struct {
		value   int64
		want    int64
		present bool
	}{
		{NoTimestamp, 0, false},
		{0, 0, true},
		{-1, -1, true},
		{90000, 90000, true},
	}

	for _, tt := range tests {
		f := testFrame()
		f.Timestamp = tt.value
		p := New(f, nil)
		got, ok := p.Timestamp()
		if ok != tt.present || got != tt.want {
			t.Errorf("Timestamp() for %d = (%d, %v), want (%d, %v)", tt.value, got, ok, tt.want, tt.present)
		}
		p.Release()
	}
}

func TestPicture_BitsPerComponent(t *testing.T) {
	tests := []struct {
		hbd  int
		want BitsPerComponent
	}{
		{0, BPC8},
		{1, BPC10},
		{2, BPC12},
		{3, BPCUnknown},
		{-1, BPCUnknown},
	}

	for _, tt := range tests {
		f := testFrame()
		f.HighBitDepth = tt.hbd
		f.BitDepth = 10 // per-frame value is reported independently
		p := New(f, nil)
		if got := p.BitsPerComponent(); got != tt.want {
			t.Errorf("hbd %d: got %d, want %d", tt.hbd, got, tt.want)
		}
		if p.BitDepth() != 10 {
			t.Errorf("hbd %d: BitDepth() = %d, want 10", tt.hbd, p.BitDepth())
		}
		p.Release()
	}
}

func TestLayoutFromRaw(t *testing.T) {
	tests := []struct {
		raw    RawLayout
		want   PixelLayout
		planes int
	}{
		{RawLayoutI400, LayoutI400, 1},
		{RawLayoutI420, LayoutI420, 3},
		{RawLayoutI422, LayoutI422, 3},
		{RawLayoutI444, LayoutI444, 3},
		{4, LayoutUnknown, 0},
		{-1, LayoutUnknown, 0},
		{1 << 20, LayoutUnknown, 0},
	}

	for _, tt := range tests {
		got := LayoutFromRaw(tt.raw)
		if got != tt.want {
			t.Errorf("LayoutFromRaw(%d) = %s, want %s", tt.raw, got, tt.want)
		}
		if got.Planes() != tt.planes {
			t.Errorf("%s.Planes() = %d, want %d", got, got.Planes(), tt.planes)
		}
	}
}

func TestPixelLayout_ChromaShift(t *testing.T) {
	tests := []struct {
		layout PixelLayout
		x, y   int
	}{
		{LayoutI420, 1, 1},
		{LayoutI422, 1, 0},
		{LayoutI444, 0, 0},
		{LayoutI400, 0, 0},
	}

	for _, tt := range tests {
		x, y := tt.layout.ChromaShift()
		if x != tt.x || y != tt.y {
			t.Errorf("%s.ChromaShift() = (%d, %d), want (%d, %d)", tt.layout, x, y, tt.x, tt.y)
		}
	}
}

func TestPicture_ReleaseOnce(t *testing.T) {
	var releases int
	p := New(testFrame(), func(*Frame) { releases++ })

	p.Release()
	p.Release()

	if releases != 1 {
		t.Errorf("expected 1 release, got %d", releases)
	}
	if !p.Released() {
		t.Error("expected handle to report released")
	}
	if p.Plane(0) != nil {
		t.Error("expected nil plane after release")
	}
	if p.Stride(0) != 0 {
		t.Errorf("expected stride 0 after release, got %d", p.Stride(0))
	}
	if p.PlanePointer(0) != nil {
		t.Error("expected nil plane pointer after release")
	}
}

func TestPicture_CloneAfterFinalRelease(t *testing.T) {
	var releases int
	p := New(testFrame(), func(*Frame) { releases++ })
	p.Release()

	c := p.Clone()
	if !c.Released() {
		t.Error("clone of a released record should already be released")
	}
	if c.Plane(0) != nil || c.Stride(0) != 0 {
		t.Error("clone of a released record should expose no plane data")
	}

	c.Release()
	if releases != 1 {
		t.Errorf("expected 1 release, got %d", releases)
	}
}

func TestPicture_CloneOfReleasedHandle(t *testing.T) {
	var releases int
	p := New(testFrame(), func(*Frame) { releases++ })
	alive := p.Clone()
	p.Release()

	c := p.Clone()
	if !c.Released() {
		t.Error("clone of a released handle should already be released")
	}
	c.Release()
	if releases != 0 {
		t.Fatalf("record released while a handle is alive")
	}
	if alive.Plane(0) == nil {
		t.Error("live handle should still see plane data")
	}

	alive.Release()
	if releases != 1 {
		t.Errorf("expected 1 release after last handle, got %d", releases)
	}
}

// dropHandles creates a picture and a clone and lets both go unreleased.
//
//go:noinline
func dropHandles(release func(*Frame)) {
	p := New(testFrame(), release)
	c := p.Clone()
	_ = c.Width()
}

func TestPicture_UnreleasedHandlesAreCollected(t *testing.T) {
	var releases atomic.Int32
	dropHandles(func(*Frame) { releases.Add(1) })

	for i := 0; i < 200 && releases.Load() == 0; i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if got := releases.Load(); got != 1 {
		t.Fatalf("expected 1 release from collected handles, got %d", got)
	}

	for i := 0; i < 3; i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if got := releases.Load(); got != 1 {
		t.Errorf("expected release to stay at 1, got %d", got)
	}
}

func TestPicture_CloneSharesRecord(t *testing.T) {
	var releases int
	var released *Frame
	p := New(testFrame(), func(f *Frame) {
		releases++
		released = f
	})
	c := p.Clone()

	if c.PlanePointer(0) != p.PlanePointer(0) {
		t.Error("clone should view the same plane memory")
	}

	p.Release()
	if releases != 0 {
		t.Fatalf("record released while a clone is alive")
	}
	if c.Plane(0) == nil {
		t.Error("clone should still see plane data")
	}

	c.Release()
	if releases != 1 {
		t.Errorf("expected 1 release after last handle, got %d", releases)
	}
	if released == nil || released.Width != 16 {
		t.Error("release hook should receive the frame record")
	}
}

func TestPicture_ConcurrentRelease(t *testing.T) {
	var releases atomic.Int32
	p := New(testFrame(), func(*Frame) { releases.Add(1) })

	handles := []*Picture{p}
	for i := 0; i < 31; i++ {
		handles = append(handles, p.Clone())
	}

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *Picture) {
			defer wg.Done()
			_ = h.Width()
			_ = h.Plane(0)
			h.Release()
			h.Release()
		}(h)
	}
	wg.Wait()

	if got := releases.Load(); got != 1 {
		t.Errorf("expected exactly 1 release, got %d", got)
	}
}
