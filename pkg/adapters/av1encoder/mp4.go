package av1encoder

import (
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"
)

// WriteMP4 writes packets as a fragmented MP4 with a single av01 track. The
// track timescale is FPS*1000.
func WriteMP4(w io.Writer, opts Options, packets []Packet) error {
	if len(packets) == 0 {
		return fmt.Errorf("no frames to write")
	}
	if opts.FPS <= 0 {
		return fmt.Errorf("%w: fps %d", ErrInvalidOptions, opts.FPS)
	}

	timescale := uint32(opts.FPS * 1000)
	trackID := uint32(1)

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "en")

	trak := init.Moov.Trak

	av1C := createAV1ConfigRecord(packets)
	av01 := mp4.CreateVisualSampleEntryBox("av01", uint16(opts.Width), uint16(opts.Height), av1C)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(av01)

	trak.Tkhd.Width = mp4.Fixed32(opts.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(opts.Height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return fmt.Errorf("create fragment: %w", err)
	}

	for _, pkt := range packets {
		dur := pkt.Duration
		if dur <= 0 {
			dur = 1
		}

		flags := mp4.NonSyncSampleFlags
		if pkt.Keyframe {
			flags = mp4.SyncSampleFlags
		}

		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(pkt.Data)),
				Dur:   uint32(dur * 1000),
			},
			DecodeTime: uint64(pkt.PTS * 1000),
			Data:       pkt.Data,
		})
	}

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "av01", "mp41"})
	if err := ftyp.Encode(w); err != nil {
		return fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(w); err != nil {
		return fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(w); err != nil {
		return fmt.Errorf("encode fragment: %w", err)
	}
	return nil
}

// createAV1ConfigRecord creates an AV1CodecConfigurationRecord box
func createAV1ConfigRecord(packets []Packet) *mp4.Av1CBox {
	var seqHdr []byte
	for _, p := range packets {
		if p.Keyframe && len(p.Data) > 0 {
			seqHdr = extractSequenceHeader(p.Data)
			break
		}
	}

	return &mp4.Av1CBox{
		CodecConfRec: av1.CodecConfRec{
			Version:              1,
			SeqProfile:           0,
			SeqLevelIdx0:         8, // Level 4.0
			SeqTier0:             0,
			HighBitdepth:         0,
			TwelveBit:            0,
			MonoChrome:           0,
			ChromaSubsamplingX:   1, // 4:2:0
			ChromaSubsamplingY:   1,
			ChromaSamplePosition: 0,
			ConfigOBUs:           seqHdr,
		},
	}
}

// extractSequenceHeader returns the first sequence header OBU in data,
// header byte included.
func extractSequenceHeader(data []byte) []byte {
	// First byte: forbidden (1) + type (4) + extension flag (1) + has_size (1) + reserved (1)
	if len(data) < 2 {
		return nil
	}

	offset := 0
	for offset < len(data) {
		start := offset
		header := data[offset]
		obuType := (header >> 3) & 0x0F
		hasExtension := (header >> 2) & 0x01
		hasSizeField := (header >> 1) & 0x01

		offset++
		if hasExtension == 1 {
			offset++
		}

		var obuSize int
		if hasSizeField == 1 {
			obuSize, offset = readLeb128(data, offset)
		} else {
			obuSize = len(data) - offset
		}

		end := offset + obuSize
		if end > len(data) {
			end = len(data)
		}
		if obuType == 1 {
			return data[start:end]
		}
		offset = end
	}

	return nil
}

// readLeb128 reads a LEB128 encoded value
func readLeb128(data []byte, offset int) (int, int) {
	value := 0
	for i := 0; i < 8 && offset < len(data); i++ {
		b := data[offset]
		offset++
		value |= int(b&0x7F) << (i * 7)
		if b&0x80 == 0 {
			break
		}
	}
	return value, offset
}
