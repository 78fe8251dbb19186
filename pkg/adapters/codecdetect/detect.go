// Package codecdetect identifies the container and video codec of a file and
// opens the matching unit source.
package codecdetect

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/av1session/pkg/adapters/ivfsource"
	"github.com/user/av1session/pkg/adapters/mp4source"
	"github.com/user/av1session/pkg/ports"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecAV1     Codec = "av1"
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecVP9     Codec = "vp9"
	CodecUnknown Codec = "unknown"
)

// Container represents a file container type.
type Container string

const (
	ContainerIVF     Container = "ivf"
	ContainerMP4     Container = "mp4"
	ContainerUnknown Container = "unknown"
)

// ErrUnsupported is returned by Open for anything but AV1 in IVF or MP4.
var ErrUnsupported = errors.New("codecdetect: unsupported input")

// sniffSize is the number of leading bytes Sniff needs.
const sniffSize = 12

// Sniff identifies the container from the first bytes of a file.
func Sniff(header []byte) Container {
	if len(header) >= 4 && string(header[0:4]) == ivfsource.Magic {
		return ContainerIVF
	}
	if len(header) >= 8 {
		switch string(header[4:8]) {
		case "ftyp", "moov", "styp", "moof", "free", "mdat":
			return ContainerMP4
		}
	}
	return ContainerUnknown
}

// Detect identifies container and codec, leaving reader at the start.
func Detect(reader io.ReadSeeker) (Container, Codec, error) {
	header := make([]byte, sniffSize)
	n, err := io.ReadFull(reader, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return ContainerUnknown, CodecUnknown, fmt.Errorf("read header: %w", err)
	}
	header = header[:n]
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return ContainerUnknown, CodecUnknown, fmt.Errorf("seek: %w", err)
	}

	switch Sniff(header) {
	case ContainerIVF:
		if len(header) < 12 {
			return ContainerIVF, CodecUnknown, nil
		}
		return ContainerIVF, codecFromFourCC(string(header[8:12])), nil
	case ContainerMP4:
		codec, err := DetectFromReader(reader)
		return ContainerMP4, codec, err
	default:
		return ContainerUnknown, CodecUnknown, nil
	}
}

func codecFromFourCC(fourcc string) Codec {
	switch fourcc {
	case "AV01":
		return CodecAV1
	case "VP90":
		return CodecVP9
	case "H264", "AVC1":
		return CodecH264
	case "HEVC", "H265":
		return CodecHEVC
	default:
		return CodecUnknown
	}
}

// DetectFromReader detects the video codec of an MP4 file.
func DetectFromReader(reader io.ReadSeeker) (Codec, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return CodecUnknown, fmt.Errorf("decode mp4: %w", err)
	}

	// Reset reader position for subsequent reads
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return CodecUnknown, fmt.Errorf("seek: %w", err)
	}

	return detectFromMP4File(mp4File)
}

// DetectFromBytes detects the video codec from MP4 data bytes.
func DetectFromBytes(data []byte) (Codec, error) {
	return DetectFromReader(bytes.NewReader(data))
}

func detectFromMP4File(mp4File *mp4.File) (Codec, error) {
	// Check fragmented MP4
	if mp4File.IsFragmented() {
		if mp4File.Init != nil && mp4File.Init.Moov != nil {
			for _, trak := range mp4File.Init.Moov.Traks {
				if codec, ok := detectCodecFromTrack(trak); ok {
					return codec, nil
				}
			}
		}
	}

	// Check progressive MP4
	if mp4File.Moov != nil {
		for _, trak := range mp4File.Moov.Traks {
			if codec, ok := detectCodecFromTrack(trak); ok {
				return codec, nil
			}
		}
	}

	return CodecUnknown, fmt.Errorf("no video track found")
}

// detectCodecFromTrack reports the codec of a video track; ok is false for
// non-video tracks.
func detectCodecFromTrack(trak *mp4.TrakBox) (Codec, bool) {
	if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
		return CodecUnknown, false
	}

	// Only process video tracks
	if trak.Mdia.Hdlr.HandlerType != "vide" {
		return CodecUnknown, false
	}

	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return CodecUnknown, true
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		switch child.Type() {
		case "av01":
			return CodecAV1, true
		case "avc1", "avc3":
			return CodecH264, true
		case "hvc1", "hev1":
			return CodecHEVC, true
		case "vp09":
			return CodecVP9, true
		}
	}

	return CodecUnknown, true
}

// Open opens path and returns the unit source for its container. Only AV1
// streams are accepted.
func Open(fs ports.FileSystem, path string) (ports.UnitSource, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	container, codec, err := Detect(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if codec != CodecAV1 {
		f.Close()
		return nil, fmt.Errorf("%w: %s in %s", ErrUnsupported, codec, container)
	}

	switch container {
	case ContainerIVF:
		src, err := ivfsource.Open(f)
		if err != nil {
			return nil, err
		}
		return src, nil
	case ContainerMP4:
		src, err := mp4source.Open(f)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, container)
	}
}
