package picture

// RawLayout is the pixel layout enumerator reported by an engine.
// Engines whose native values differ translate to these.
type RawLayout int32

const (
	RawLayoutI400 RawLayout = 0
	RawLayoutI420 RawLayout = 1
	RawLayoutI422 RawLayout = 2
	RawLayoutI444 RawLayout = 3
)

// PixelLayout is the chroma subsampling classification of a frame.
type PixelLayout int

const (
	LayoutUnknown PixelLayout = iota
	LayoutI400
	LayoutI420
	LayoutI422
	LayoutI444
)

// LayoutFromRaw maps an engine enumerator to a PixelLayout. Values this
// package does not know map to LayoutUnknown.
func LayoutFromRaw(raw RawLayout) PixelLayout {
	switch raw {
	case RawLayoutI400:
		return LayoutI400
	case RawLayoutI420:
		return LayoutI420
	case RawLayoutI422:
		return LayoutI422
	case RawLayoutI444:
		return LayoutI444
	default:
		return LayoutUnknown
	}
}

// String returns the layout name.
func (l PixelLayout) String() string {
	switch l {
	case LayoutI400:
		return "I400"
	case LayoutI420:
		return "I420"
	case LayoutI422:
		return "I422"
	case LayoutI444:
		return "I444"
	default:
		return "unknown"
	}
}

// Planes returns the number of planes a frame with this layout carries.
func (l PixelLayout) Planes() int {
	switch l {
	case LayoutI400:
		return 1
	case LayoutI420, LayoutI422, LayoutI444:
		return 3
	default:
		return 0
	}
}

// ChromaShift returns the horizontal and vertical chroma subsampling shifts.
func (l PixelLayout) ChromaShift() (x, y int) {
	switch l {
	case LayoutI420:
		return 1, 1
	case LayoutI422:
		return 1, 0
	default:
		return 0, 0
	}
}

// BitsPerComponent is the sequence-level bit depth classification.
type BitsPerComponent int

const (
	BPCUnknown BitsPerComponent = 0
	BPC8       BitsPerComponent = 8
	BPC10      BitsPerComponent = 10
	BPC12      BitsPerComponent = 12
)

// Bits returns the number of bits, 0 when unknown.
func (b BitsPerComponent) Bits() int {
	return int(b)
}
