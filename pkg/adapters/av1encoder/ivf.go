package av1encoder

import (
	"encoding/binary"
	"fmt"
	"io"
)

const ivfHeaderSize = 32

// WriteIVF writes packets as an IVF stream with fourcc AV01 and a 1/FPS time base.
func WriteIVF(w io.Writer, opts Options, packets []Packet) error {
	if opts.FPS <= 0 {
		return fmt.Errorf("%w: fps %d", ErrInvalidOptions, opts.FPS)
	}

	hdr := make([]byte, ivfHeaderSize)
	copy(hdr[0:4], "DKIF")
	binary.LittleEndian.PutUint16(hdr[4:], 0)
	binary.LittleEndian.PutUint16(hdr[6:], ivfHeaderSize)
	copy(hdr[8:12], "AV01")
	binary.LittleEndian.PutUint16(hdr[12:], uint16(opts.Width))
	binary.LittleEndian.PutUint16(hdr[14:], uint16(opts.Height))
	binary.LittleEndian.PutUint32(hdr[16:], uint32(opts.FPS)) // rate
	binary.LittleEndian.PutUint32(hdr[20:], 1)                // scale
	binary.LittleEndian.PutUint32(hdr[24:], uint32(len(packets)))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write ivf header: %w", err)
	}

	var fh [12]byte
	for i, pkt := range packets {
		binary.LittleEndian.PutUint32(fh[0:], uint32(len(pkt.Data)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(pkt.PTS))
		if _, err := w.Write(fh[:]); err != nil {
			return fmt.Errorf("write frame %d header: %w", i, err)
		}
		if _, err := w.Write(pkt.Data); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return nil
}
