package libaom

import (
	"testing"

	"github.com/user/av1session/pkg/adapters/av1encoder"
	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

func openHandle(t *testing.T) *Handle {
	t.Helper()
	h, err := New().Open(New().DefaultSettings())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return h.(*Handle)
}

func send(t *testing.T, h *Handle, data []byte, ts int64) ports.SendStatus {
	t.Helper()
	buf, err := h.CreateData(len(data))
	if err != nil {
		t.Fatalf("CreateData failed: %v", err)
	}
	copy(buf.Bytes(), data)
	buf.SetProps(ts, 1)
	return h.SendData(buf)
}

func TestEngine_Name(t *testing.T) {
	e := New()
	if e.Name() != "libaom" {
		t.Errorf("expected libaom, got %q", e.Name())
	}
	if e.Version() == "" {
		t.Error("expected a version string")
	}
}

func TestHandle_Close(t *testing.T) {
	h := openHandle(t)

	// Should not panic
	h.Close()
	h.Close() // Double close should be safe
}

func TestHandle_CreateDataInvalidSize(t *testing.T) {
	h := openHandle(t)
	defer h.Close()

	if _, err := h.CreateData(0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestHandle_NeedMoreDataBeforeInput(t *testing.T) {
	h := openHandle(t)
	defer h.Close()

	var f picture.Frame
	if st := h.GetPicture(&f); st != ports.PictureNeedMoreData {
		t.Errorf("expected need-more-data, got %s", st)
	}
}

func TestHandle_DecodeRoundTrip(t *testing.T) {
	packets, err := av1encoder.EncodeSolid(av1encoder.Options{Width: 64, Height: 48, FPS: 30, Quality: 20}, 3)
	if err != nil {
		t.Fatalf("EncodeSolid failed: %v", err)
	}

	h := openHandle(t)
	defer h.Close()

	for i, pkt := range packets {
		if st := send(t, h, pkt.Data, pkt.PTS); st != ports.SendAccepted {
			t.Fatalf("packet %d rejected", i)
		}

		var f picture.Frame
		if st := h.GetPicture(&f); st != ports.PictureProduced {
			t.Fatalf("packet %d: expected a picture, got %s", i, st)
		}
		if f.Width != 64 || f.Height != 48 {
			t.Errorf("packet %d: expected 64x48, got %dx%d", i, f.Width, f.Height)
		}
		if f.Layout != picture.RawLayoutI420 || f.BitDepth != 8 || f.HighBitDepth != 0 {
			t.Errorf("packet %d: unexpected format layout=%d bpc=%d hbd=%d", i, f.Layout, f.BitDepth, f.HighBitDepth)
		}
		if f.Timestamp != pkt.PTS {
			t.Errorf("packet %d: expected timestamp %d, got %d", i, pkt.PTS, f.Timestamp)
		}
		if f.Stride[0] != 64 || len(f.Planes[0]) != 64*48 || len(f.Planes[1]) != 32*24 {
			t.Errorf("packet %d: unexpected plane geometry", i)
		}

		var next picture.Frame
		if st := h.GetPicture(&next); st != ports.PictureNeedMoreData {
			t.Errorf("packet %d: expected need-more-data after the only picture, got %s", i, st)
		}
		h.ReleasePicture(&f)
		if f.Ref != nil {
			t.Error("ReleasePicture should clear the ref")
		}
	}
}

func TestHandle_GarbageFaults(t *testing.T) {
	h := openHandle(t)
	defer h.Close()

	if st := send(t, h, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, 0); st != ports.SendAccepted {
		t.Fatalf("expected garbage to be accepted for decoding, got %d", st)
	}

	var f picture.Frame
	if st := h.GetPicture(&f); st != ports.PictureFault {
		t.Errorf("expected fault, got %s", st)
	}
	if st := h.GetPicture(&f); st != ports.PictureNeedMoreData {
		t.Errorf("fault should be reported once, got %s", st)
	}
}

func TestHandle_RejectsWhileUndrained(t *testing.T) {
	packets, err := av1encoder.EncodeSolid(av1encoder.Options{Width: 32, Height: 32, FPS: 30}, 2)
	if err != nil {
		t.Fatalf("EncodeSolid failed: %v", err)
	}

	h := openHandle(t)
	defer h.Close()

	if st := send(t, h, packets[0].Data, 0); st != ports.SendAccepted {
		t.Fatal("first packet rejected")
	}
	if st := send(t, h, packets[1].Data, 1); st != ports.SendRejected {
		t.Error("expected rejection while output is pending")
	}

	h.Flush()
	var f picture.Frame
	if st := h.GetPicture(&f); st != ports.PictureNeedMoreData {
		t.Errorf("expected need-more-data after flush, got %s", st)
	}
}

func TestLayoutFromShift(t *testing.T) {
	tests := []struct {
		xs, ys int
		layout picture.RawLayout
	}{
		{1, 1, picture.RawLayoutI420},
		{1, 0, picture.RawLayoutI422},
		{0, 0, picture.RawLayoutI444},
		{0, 1, rawLayoutUnknown},
	}

	for _, tt := range tests {
		layout, _ := layoutFromShift(tt.xs, tt.ys)
		if layout != tt.layout {
			t.Errorf("layoutFromShift(%d, %d) = %d, want %d", tt.xs, tt.ys, layout, tt.layout)
		}
	}
	if picture.LayoutFromRaw(rawLayoutUnknown) != picture.LayoutUnknown {
		t.Error("unknown shifts should classify as LayoutUnknown")
	}
}

func TestHighBitDepth(t *testing.T) {
	tests := []struct {
		bits int
		hbd  int
	}{
		{8, 0},
		{10, 1},
		{12, 2},
		{16, -1},
	}

	for _, tt := range tests {
		if got := highBitDepth(tt.bits); got != tt.hbd {
			t.Errorf("highBitDepth(%d) = %d, want %d", tt.bits, got, tt.hbd)
		}
	}
}

func TestCopyPlane_Narrows(t *testing.T) {
	src := []byte{10, 0, 20, 0, 0, 0, 30, 0, 40, 0, 0, 0}
	dst := make([]byte, 4)
	copyPlane(dst, 2, src, 6, 2, 2, true, false)

	want := []byte{10, 20, 30, 40}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, dst)
		}
	}
}
