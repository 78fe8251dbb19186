package pngsink

import (
	"errors"
	"image"
	"testing"

	"github.com/user/av1session/pkg/mocks"
	"github.com/user/av1session/pkg/picture"
)

func TestSink_WritePicture(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New("out", fs, renderer, Options{})

	for i := 0; i < 3; i++ {
		pic := picture.New(mocks.NewFrame(8, 6, picture.RawLayoutI420), nil)
		if err := sink.WritePicture(i, pic); err != nil {
			t.Fatalf("WritePicture %d failed: %v", i, err)
		}
		pic.Release()
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if sink.Written() != 3 {
		t.Errorf("expected 3 files, got %d", sink.Written())
	}
	for _, path := range []string{"out/frame-0000.png", "out/frame-0001.png", "out/frame-0002.png"} {
		if _, ok := fs.GetFile(path); !ok {
			t.Errorf("expected %s to be written", path)
		}
	}
	if exists, _ := fs.Exists("out"); !exists {
		t.Error("expected output directory to be created")
	}
	if len(renderer.Encoded) != 3 || renderer.Encoded[0].Bounds() != image.Rect(0, 0, 8, 6) {
		t.Errorf("expected unscaled 8x6 images, got %d encoded", len(renderer.Encoded))
	}
}

func TestSink_Scales(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New("out", fs, renderer, Options{Width: 4})

	pic := picture.New(mocks.NewFrame(8, 6, picture.RawLayoutI420), nil)
	defer pic.Release()
	if err := sink.WritePicture(7, pic); err != nil {
		t.Fatalf("WritePicture failed: %v", err)
	}

	if got := renderer.Encoded[0].Bounds(); got != image.Rect(0, 0, 4, 3) {
		t.Errorf("expected 4x3, got %v", got)
	}
	if _, ok := fs.GetFile("out/frame-0007.png"); !ok {
		t.Error("expected file named after the picture index")
	}
}

func TestSink_WriteError(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFileFunc = func(path string, data []byte) error {
		return errors.New("disk full")
	}
	sink := New("out", fs, &mocks.Renderer{}, Options{})

	pic := picture.New(mocks.NewFrame(2, 2, picture.RawLayoutI444), nil)
	defer pic.Release()
	if err := sink.WritePicture(0, pic); err == nil {
		t.Error("expected error")
	}
	if sink.Written() != 0 {
		t.Error("failed writes should not be counted")
	}
}
