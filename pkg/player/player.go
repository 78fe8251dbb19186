// Package player feeds a unit source through a decode session into a picture sink.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ideamans/go-l10n"

	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
	"github.com/user/av1session/pkg/session"
)

// Decoder is the part of a session the player drives.
// *session.Session and *session.Shared implement it.
type Decoder interface {
	Engine() string
	SubmitUnit(unit ports.Unit) ([]*picture.Picture, error)
	Drain() ([]*picture.Picture, error)
	Flush()
}

// Config contains the playback policy.
type Config struct {
	// Input names the stream in log messages.
	Input string

	// StopOnError aborts on the first rejected unit or decode fault.
	// Otherwise the unit is skipped and playback continues.
	StopOnError bool

	// FlushOnFault flushes the decoder after a decode fault so that decoding
	// resumes cleanly at the next key frame.
	FlushOnFault bool

	// MaxPictures stops playback after this many pictures. 0 means no limit.
	MaxPictures int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		FlushOnFault: true,
	}
}

// Result summarizes one run.
type Result struct {
	Units    int // Units read from the source
	Pictures int // Pictures written to the sink
	Rejected int // Units the decoder refused
	Faults   int // Decode faults, including during the final drain
}

// Player coordinates a source, a decoder and a sink.
type Player struct {
	decoder Decoder
	source  ports.UnitSource
	sink    ports.PictureSink
	logger  ports.Logger
}

// New creates a new Player. It does not take ownership of its arguments.
func New(decoder Decoder, source ports.UnitSource, sink ports.PictureSink, logger ports.Logger) *Player {
	return &Player{
		decoder: decoder,
		source:  source,
		sink:    sink,
		logger:  logger.WithComponent("player"),
	}
}

// Run decodes the source until it is exhausted, ctx is cancelled, or
// MaxPictures is reached. Every picture is written to the sink and then
// released. On cancellation Run returns the partial result with ctx.Err().
func (p *Player) Run(ctx context.Context, config Config) (Result, error) {
	var result Result

	info := p.source.Info()
	p.logger.Info(l10n.F("Decoding %s (%s, %dx%d) with %s", config.Input, info.Codec, info.Width, info.Height, p.decoder.Engine()))

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		unit, err := p.source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.logger.Error(l10n.F("Failed to read unit: %s", err))
			return result, fmt.Errorf("read unit %d: %w", result.Units, err)
		}
		index := result.Units
		result.Units++

		pics, err := p.decoder.SubmitUnit(unit)
		if err != nil {
			if err := p.handleError(config, index, err, &result); err != nil {
				return result, err
			}
			continue
		}

		stop, err := p.deliver(config, pics, &result)
		if err != nil {
			return result, err
		}
		if stop {
			p.logger.Info(l10n.F("Stopped after %d pictures", result.Pictures))
			return result, nil
		}
	}

	p.logger.Info(l10n.T("Draining delayed pictures"))
	for {
		pics, err := p.decoder.Drain()
		if err != nil {
			if err := p.handleError(config, result.Units, err, &result); err != nil {
				return result, err
			}
			break
		}
		if len(pics) == 0 {
			break
		}

		stop, err := p.deliver(config, pics, &result)
		if err != nil {
			return result, err
		}
		if stop {
			p.logger.Info(l10n.F("Stopped after %d pictures", result.Pictures))
			return result, nil
		}
	}

	p.logger.Info(l10n.F("Decoded %d pictures from %d units", result.Pictures, result.Units))
	return result, nil
}

// handleError applies the error policy. A nil return means playback continues.
func (p *Player) handleError(config Config, index int, err error, result *Result) error {
	switch {
	case errors.Is(err, session.ErrIngestionRejected):
		result.Rejected++
		p.logger.Warn(l10n.F("Unit %d rejected by decoder, skipping", index))

	case errors.Is(err, session.ErrDecodeFault):
		result.Faults++
		if config.FlushOnFault {
			p.logger.Warn(l10n.F("Decode fault at unit %d, flushing decoder", index))
			p.decoder.Flush()
		} else {
			p.logger.Warn(l10n.F("Decode fault at unit %d", index))
		}

	default:
		return fmt.Errorf("unit %d: %w", index, err)
	}

	if config.StopOnError {
		return fmt.Errorf("unit %d: %w", index, err)
	}
	return nil
}

// deliver writes pics in order and releases each one. Pictures beyond
// MaxPictures, or after a write error, are released unwritten.
func (p *Player) deliver(config Config, pics []*picture.Picture, result *Result) (bool, error) {
	var (
		stop     bool
		writeErr error
	)
	for _, pic := range pics {
		if stop || writeErr != nil {
			pic.Release()
			continue
		}

		index := result.Pictures
		if err := p.sink.WritePicture(index, pic); err != nil {
			p.logger.Error(l10n.F("Failed to write picture %d: %s", index, err))
			writeErr = fmt.Errorf("write picture %d: %w", index, err)
		} else {
			result.Pictures++
		}
		pic.Release()

		if config.MaxPictures > 0 && result.Pictures >= config.MaxPictures {
			stop = true
		}
	}
	return stop, writeErr
}
