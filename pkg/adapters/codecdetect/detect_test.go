package codecdetect

import (
	"bytes"
	"errors"
	"testing"

	"github.com/user/av1session/pkg/adapters/av1encoder"
	"github.com/user/av1session/pkg/mocks"
)

var (
	fixtureOpts    = av1encoder.Options{Width: 64, Height: 48, FPS: 30}
	fixturePackets = []av1encoder.Packet{
		{Data: []byte{0x12, 0x00, 0x0A, 0x01, 0x00}, PTS: 0, Duration: 1, Keyframe: true},
		{Data: []byte{0x12, 0x00, 0x32, 0x01, 0x00}, PTS: 1, Duration: 1},
	}
)

func ivfFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := av1encoder.WriteIVF(&buf, fixtureOpts, fixturePackets); err != nil {
		t.Fatalf("WriteIVF failed: %v", err)
	}
	return buf.Bytes()
}

func mp4Fixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := av1encoder.WriteMP4(&buf, fixtureOpts, fixturePackets); err != nil {
		t.Fatalf("WriteMP4 failed: %v", err)
	}
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   Container
	}{
		{"ivf", []byte("DKIF\x00\x00\x20\x00AV01"), ContainerIVF},
		{"mp4 ftyp", []byte("\x00\x00\x00\x18ftypisom"), ContainerMP4},
		{"mp4 styp", []byte("\x00\x00\x00\x18stypmsdh"), ContainerMP4},
		{"short", []byte("DK"), ContainerUnknown},
		{"other", []byte("RIFF\x00\x00\x00\x00WEBP"), ContainerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.header); got != tt.want {
				t.Errorf("Sniff(%q) = %s, want %s", tt.header, got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	vp9 := ivfFixture(t)
	copy(vp9[8:12], "VP90")

	tests := []struct {
		name      string
		data      []byte
		container Container
		codec     Codec
	}{
		{"ivf av1", ivfFixture(t), ContainerIVF, CodecAV1},
		{"ivf vp9", vp9, ContainerIVF, CodecVP9},
		{"mp4 av1", mp4Fixture(t), ContainerMP4, CodecAV1},
		{"garbage", []byte("hello"), ContainerUnknown, CodecUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.data)
			container, codec, err := Detect(r)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if container != tt.container || codec != tt.codec {
				t.Errorf("expected %s/%s, got %s/%s", tt.container, tt.codec, container, codec)
			}
			if pos, _ := r.Seek(0, 1); pos != 0 {
				t.Errorf("reader should be rewound, at %d", pos)
			}
		})
	}
}

func TestDetectFromBytes(t *testing.T) {
	codec, err := DetectFromBytes(mp4Fixture(t))
	if err != nil {
		t.Fatalf("DetectFromBytes failed: %v", err)
	}
	if codec != CodecAV1 {
		t.Errorf("expected av1, got %s", codec)
	}
}

func TestOpen(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFile("clip.ivf", ivfFixture(t))
	fs.WriteFile("clip.mp4", mp4Fixture(t))

	for _, path := range []string{"clip.ivf", "clip.mp4"} {
		src, err := Open(fs, path)
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", path, err)
		}
		if info := src.Info(); info.Codec != "av1" || info.Width != 64 {
			t.Errorf("%s: unexpected info %+v", path, info)
		}
		u, err := src.Next()
		if err != nil {
			t.Fatalf("%s: Next failed: %v", path, err)
		}
		if !bytes.Equal(u.Data, fixturePackets[0].Data) {
			t.Errorf("%s: unexpected first unit %x", path, u.Data)
		}
		src.Close()
	}
}

func TestOpen_Unsupported(t *testing.T) {
	fs := mocks.NewFileSystem()
	vp9 := ivfFixture(t)
	copy(vp9[8:12], "VP90")
	fs.WriteFile("clip.ivf", vp9)
	fs.WriteFile("notes.txt", []byte("just some text"))

	for _, path := range []string{"clip.ivf", "notes.txt"} {
		if _, err := Open(fs, path); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Open(%s): expected ErrUnsupported, got %v", path, err)
		}
	}

	if _, err := Open(fs, "missing.mp4"); err == nil {
		t.Error("expected error for missing file")
	}
}
