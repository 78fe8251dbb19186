package dav1d

import (
	"testing"

	"github.com/user/av1session/pkg/adapters/av1encoder"
	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

func openHandle(t *testing.T, configure func(*ports.EngineSettings)) *Handle {
	t.Helper()
	e := New()
	settings := e.DefaultSettings()
	if configure != nil {
		configure(&settings)
	}
	h, err := e.Open(settings)
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
	if len(buf.Bytes()) != len(data) {
		t.Fatalf("expected %d byte buffer, got %d", len(data), len(buf.Bytes()))
	}
	copy(buf.Bytes(), data)
	buf.SetProps(ts, 1)
	return h.SendData(buf)
}

func drain(h *Handle) ([]picture.Frame, bool) {
	var frames []picture.Frame
	for {
		var f picture.Frame
		switch h.GetPicture(&f) {
		case ports.PictureProduced:
			frames = append(frames, f)
		case ports.PictureNeedMoreData:
			return frames, false
		default:
			return frames, true
		}
	}
}

func TestEngine_Defaults(t *testing.T) {
	e := New()
	if e.Name() != "dav1d" {
		t.Errorf("expected dav1d, got %q", e.Name())
	}
	if e.Version() == "" {
		t.Error("expected a version string")
	}
	s := e.DefaultSettings()
	if !s.ApplyGrain {
		t.Error("dav1d applies film grain by default")
	}
	if s.OperatingPoint != 0 {
		t.Errorf("expected operating point 0, got %d", s.OperatingPoint)
	}
}

func TestEngine_OpenInvalidSettings(t *testing.T) {
	_, err := New().Open(ports.EngineSettings{Threads: -5, OperatingPoint: 99})
	if err == nil {
		t.Error("expected error for invalid settings")
	}
}

func TestHandle_Close(t *testing.T) {
	h := openHandle(t, nil)

	// Should not panic
	h.Close()
	h.Close() // Double close should be safe
}

func TestHandle_DecodeRoundTrip(t *testing.T) {
	packets, err := av1encoder.EncodeSolid(av1encoder.Options{Width: 64, Height: 48, FPS: 30, Quality: 20}, 4)
	if err != nil {
		t.Fatalf("EncodeSolid failed: %v", err)
	}

	h := openHandle(t, func(s *ports.EngineSettings) {
		s.Threads = 1
		s.MaxFrameDelay = 1
	})
	defer h.Close()

	var frames []picture.Frame
	for i, pkt := range packets {
		if st := send(t, h, pkt.Data, pkt.PTS); st != ports.SendAccepted {
			t.Fatalf("packet %d rejected", i)
		}
		got, fault := drain(h)
		if fault {
			t.Fatalf("packet %d: unexpected fault", i)
		}
		frames = append(frames, got...)
	}

	if len(frames) != len(packets) {
		t.Fatalf("expected %d pictures, got %d", len(packets), len(frames))
	}
	for i, f := range frames {
		if f.Width != 64 || f.Height != 48 {
			t.Errorf("picture %d: expected 64x48, got %dx%d", i, f.Width, f.Height)
		}
		if f.Layout != picture.RawLayoutI420 || f.BitDepth != 8 || f.HighBitDepth != 0 {
			t.Errorf("picture %d: unexpected format layout=%d bpc=%d hbd=%d", i, f.Layout, f.BitDepth, f.HighBitDepth)
		}
		if f.Timestamp != int64(i) {
			t.Errorf("picture %d: expected timestamp %d, got %d", i, i, f.Timestamp)
		}
		if f.Stride[0] < 64 || len(f.Planes[1]) == 0 || f.Stride[1] != f.Stride[2] {
			t.Errorf("picture %d: unexpected plane geometry", i)
		}
	}

	// Releasing after Close is allowed
	h.Close()
	for i := range frames {
		h.ReleasePicture(&frames[i])
		if frames[i].Ref != nil {
			t.Error("ReleasePicture should clear the ref")
		}
	}
}

func TestHandle_GarbageIsRejectedOrFaults(t *testing.T) {
	h := openHandle(t, nil)
	defer h.Close()

	st := send(t, h, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, 0)
	if st == ports.SendRejected {
		return
	}
	if frames, _ := drain(h); len(frames) != 0 {
		t.Errorf("expected no pictures from garbage, got %d", len(frames))
	}
}

func TestHandle_FlushDropsInput(t *testing.T) {
	packets, err := av1encoder.EncodeSolid(av1encoder.Options{Width: 32, Height: 32, FPS: 30}, 1)
	if err != nil {
		t.Fatalf("EncodeSolid failed: %v", err)
	}

	h := openHandle(t, func(s *ports.EngineSettings) { s.Threads = 1 })
	defer h.Close()

	if st := send(t, h, packets[0].Data, 0); st != ports.SendAccepted {
		t.Fatal("packet rejected")
	}
	h.Flush()

	if frames, _ := drain(h); len(frames) != 0 {
		t.Errorf("expected no pictures after flush, got %d", len(frames))
	}
}

func TestHandle_CreateDataInvalidSize(t *testing.T) {
	h := openHandle(t, nil)
	defer h.Close()

	if _, err := h.CreateData(0); err == nil {
		t.Error("expected error for zero size")
	}
}
