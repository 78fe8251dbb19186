package ports

// Unit is one compressed input unit, typically an AV1 temporal unit.
type Unit struct {
	Data      []byte
	Timestamp int64 // picture.NoTimestamp when unknown
	Duration  int64
}

// StreamInfo describes a compressed stream read by a UnitSource.
type StreamInfo struct {
	Container  string // "mp4" or "ivf"
	Codec      string // "av1" when recognized
	Width      int
	Height     int
	Timescale  uint32 // Ticks per second of unit timestamps
	Units      int    // Number of units, 0 if unknown
	ConfigOBUs []byte // Configuration OBUs from the container, if any
}

// UnitSource reads compressed units from a container.
type UnitSource interface {
	// Info returns stream information gathered when the source was opened.
	Info() StreamInfo

	// Next returns the next unit, or io.EOF after the last one.
	Next() (Unit, error)

	// Close releases the underlying reader.
	Close() error
}
