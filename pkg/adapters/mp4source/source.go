// Package mp4source reads AV1 temporal units from fragmented and progressive MP4 files.
package mp4source

import (
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

var (
	// ErrNoVideoTrack is returned for files without a video track.
	ErrNoVideoTrack = errors.New("mp4source: no video track found")

	// ErrNotAV1 is returned when the video track is not av01.
	ErrNotAV1 = errors.New("mp4source: video track is not AV1")
)

// sample locates one sample. Fragmented samples are already in memory;
// progressive samples are read on demand.
type sample struct {
	data      []byte
	offset    int64
	size      uint32
	timestamp int64
	duration  int64
}

// Source implements ports.UnitSource over an MP4 file.
type Source struct {
	reader  io.ReadSeeker
	closer  io.Closer
	info    ports.StreamInfo
	samples []sample
	config  []byte // emitted first when non-nil
	pos     int
}

// Open parses the MP4 structure of r. The returned Source closes r.
func Open(r ports.ReadSeekCloser) (*Source, error) {
	s, err := New(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	s.closer = r
	return s, nil
}

// New parses the MP4 structure of r without taking ownership of it.
func New(r io.ReadSeeker) (*Source, error) {
	mp4File, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	s := &Source{reader: r}
	s.info.Container = "mp4"
	if mp4File.IsFragmented() {
		err = s.indexFragmented(mp4File)
	} else {
		err = s.indexProgressive(mp4File)
	}
	if err != nil {
		return nil, err
	}
	s.info.Units = len(s.samples)

	if len(s.info.ConfigOBUs) > 0 && len(s.samples) > 0 && s.samples[0].data != nil &&
		!hasSequenceHeader(s.samples[0].data) {
		s.config = s.info.ConfigOBUs
		s.info.Units++
	}
	return s, nil
}

// findVideoTrack returns the first video track, its sample entry and timescale.
func findVideoTrack(moov *mp4.MoovBox) (*mp4.TrakBox, *mp4.VisualSampleEntryBox, uint32, error) {
	if moov == nil {
		return nil, nil, 0, fmt.Errorf("no moov box found")
	}
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}

		var timescale uint32 = 1000
		if trak.Mdia.Mdhd != nil {
			timescale = trak.Mdia.Mdhd.Timescale
		}

		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
			return nil, nil, 0, ErrNoVideoTrack
		}
		for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
			entry, ok := child.(*mp4.VisualSampleEntryBox)
			if !ok {
				continue
			}
			if entry.Type() != "av01" {
				return nil, nil, 0, fmt.Errorf("%w: %s", ErrNotAV1, entry.Type())
			}
			return trak, entry, timescale, nil
		}
		return nil, nil, 0, ErrNoVideoTrack
	}
	return nil, nil, 0, ErrNoVideoTrack
}

func (s *Source) describe(entry *mp4.VisualSampleEntryBox, timescale uint32) {
	s.info.Codec = "av1"
	s.info.Width = int(entry.Width)
	s.info.Height = int(entry.Height)
	s.info.Timescale = timescale
	for _, child := range entry.Children {
		if av1C, ok := child.(*mp4.Av1CBox); ok {
			s.info.ConfigOBUs = av1C.CodecConfRec.ConfigOBUs
		}
	}
}

func (s *Source) indexFragmented(mp4File *mp4.File) error {
	if mp4File.Init == nil {
		return fmt.Errorf("no init segment found")
	}
	trak, entry, timescale, err := findVideoTrack(mp4File.Init.Moov)
	if err != nil {
		return err
	}
	s.describe(entry, timescale)
	videoTrackID := trak.Tkhd.TrackID

	var trex *mp4.TrexBox
	if mp4File.Init.Moov.Mvex != nil {
		for _, t := range mp4File.Init.Moov.Mvex.Trexs {
			if t.TrackID == videoTrackID {
				trex = t
				break
			}
		}
	}

	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			hasTrack := false
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID == videoTrackID {
					hasTrack = true
				}
			}
			if !hasTrack {
				continue
			}

			full, err := frag.GetFullSamples(trex)
			if err != nil {
				return fmt.Errorf("get samples: %w", err)
			}
			for _, fs := range full {
				s.samples = append(s.samples, sample{
					data:      fs.Data,
					size:      fs.Size,
					timestamp: int64(fs.DecodeTime),
					duration:  int64(fs.Dur),
				})
			}
		}
	}
	return nil
}

func (s *Source) indexProgressive(mp4File *mp4.File) error {
	trak, entry, timescale, err := findVideoTrack(mp4File.Moov)
	if err != nil {
		return err
	}
	s.describe(entry, timescale)

	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return fmt.Errorf("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil || stbl.Stsc == nil {
		return fmt.Errorf("missing stsc or stsz box")
	}

	for sampleNr := uint32(1); sampleNr <= stbl.Stsz.SampleNumber; sampleNr++ {
		offset, err := sampleOffset(stbl, sampleNr)
		if err != nil {
			return fmt.Errorf("sample %d: %w", sampleNr, err)
		}

		smp := sample{
			offset:    int64(offset),
			size:      stbl.Stsz.GetSampleSize(int(sampleNr)),
			timestamp: picture.NoTimestamp,
		}
		if stbl.Stts != nil {
			decodeTime, dur := stbl.Stts.GetDecodeTime(sampleNr)
			smp.timestamp = int64(decodeTime)
			smp.duration = int64(dur)
		}
		s.samples = append(s.samples, smp)
	}

	if len(s.samples) > 0 {
		// First sample is read eagerly to decide on the config unit
		data, err := s.read(s.samples[0])
		if err != nil {
			return err
		}
		s.samples[0].data = data
	}
	return nil
}

// sampleOffset finds the file offset of a progressive sample.
func sampleOffset(stbl *mp4.StblBox, sampleNr uint32) (uint64, error) {
	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(sampleNr))
	if err != nil {
		return 0, fmt.Errorf("get chunk nr: %w", err)
	}

	var chunkOffset uint64
	if stbl.Stco != nil {
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return 0, fmt.Errorf("get chunk offset: %w", err)
		}
	} else if stbl.Co64 != nil {
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return 0, fmt.Errorf("chunk nr out of range")
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	} else {
		return 0, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for n := uint32(firstSampleInChunk); n < sampleNr; n++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(n)))
	}
	return offset, nil
}

func (s *Source) read(smp sample) ([]byte, error) {
	if smp.data != nil {
		return smp.data, nil
	}
	if _, err := s.reader.Seek(smp.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample: %w", err)
	}
	data := make([]byte, smp.size)
	if _, err := io.ReadFull(s.reader, data); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return data, nil
}

// Info returns the stream description.
func (s *Source) Info() ports.StreamInfo {
	return s.info
}

// Next returns the next temporal unit, or io.EOF. Timestamps and durations
// are in track timescale units.
func (s *Source) Next() (ports.Unit, error) {
	if s.config != nil {
		cfg := s.config
		s.config = nil
		return ports.Unit{Data: cfg, Timestamp: picture.NoTimestamp}, nil
	}
	if s.pos >= len(s.samples) {
		return ports.Unit{}, io.EOF
	}

	smp := s.samples[s.pos]
	data, err := s.read(smp)
	if err != nil {
		return ports.Unit{}, err
	}
	s.samples[s.pos].data = nil
	s.pos++
	return ports.Unit{Data: data, Timestamp: smp.timestamp, Duration: smp.duration}, nil
}

// Close closes the underlying file when the Source owns it.
func (s *Source) Close() error {
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}

// hasSequenceHeader reports whether data contains a sequence header OBU.
func hasSequenceHeader(data []byte) bool {
	offset := 0
	for offset < len(data) {
		header := data[offset]
		obuType := (header >> 3) & 0x0F
		hasExtension := (header >> 2) & 0x01
		hasSizeField := (header >> 1) & 0x01
		if obuType == 1 {
			return true
		}

		offset++
		if hasExtension == 1 {
			offset++
		}
		if hasSizeField == 0 {
			return false
		}
		size, next := readLeb128(data, offset)
		offset = next + size
	}
	return false
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

var _ ports.UnitSource = (*Source)(nil)
