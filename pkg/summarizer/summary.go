// Package summarizer provides summary generation for decode runs.
package summarizer

import (
	"time"

	"github.com/user/av1session/pkg/player"
	"github.com/user/av1session/pkg/ports"
)

// Summary contains all data collected during a decode run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Input stream
	Input InputInfo

	// Decoder configuration
	Decoder DecoderInfo

	// Playback results
	Result ResultInfo

	// Output details
	Output OutputInfo
}

// InputInfo describes the decoded stream.
type InputInfo struct {
	Path      string
	Container string
	Codec     string
	Width     int
	Height    int
	Timescale uint32
	Units     int // 0 when the container does not say
}

// DecoderInfo contains the engine and its settings.
type DecoderInfo struct {
	Engine        string
	Version       string
	Threads       int
	MaxFrameDelay int
	ApplyGrain    bool
}

// ResultInfo contains playback counters and timing.
type ResultInfo struct {
	Units    int
	Pictures int
	Rejected int
	Faults   int
	Elapsed  time.Duration
}

// PicturesPerSecond returns the decode throughput, or 0 when no time elapsed.
func (r ResultInfo) PicturesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Pictures) / r.Elapsed.Seconds()
}

// OutputInfo describes where pictures went.
type OutputInfo struct {
	Format string
	Path   string
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithInput sets the input stream information.
func (b *Builder) WithInput(path string, info ports.StreamInfo) *Builder {
	b.summary.Input = InputInfo{
		Path:      path,
		Container: info.Container,
		Codec:     info.Codec,
		Width:     info.Width,
		Height:    info.Height,
		Timescale: info.Timescale,
		Units:     info.Units,
	}
	return b
}

// WithDecoder sets the engine name, version and the settings it was opened with.
func (b *Builder) WithDecoder(engine, version string, settings ports.EngineSettings) *Builder {
	b.summary.Decoder = DecoderInfo{
		Engine:        engine,
		Version:       version,
		Threads:       settings.Threads,
		MaxFrameDelay: settings.MaxFrameDelay,
		ApplyGrain:    settings.ApplyGrain,
	}
	return b
}

// WithResult sets playback counters.
func (b *Builder) WithResult(result player.Result, elapsed time.Duration) *Builder {
	b.summary.Result = ResultInfo{
		Units:    result.Units,
		Pictures: result.Pictures,
		Rejected: result.Rejected,
		Faults:   result.Faults,
		Elapsed:  elapsed,
	}
	return b
}

// WithOutput sets output information.
func (b *Builder) WithOutput(format, path string) *Builder {
	b.summary.Output = OutputInfo{
		Format: format,
		Path:   path,
	}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
