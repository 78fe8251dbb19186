// Package session drives a decoding engine through its send/drain protocol.
//
// A Session turns the engine's push/pull interface into one synchronous call
// per input unit: Submit copies the unit into an engine-owned buffer, hands it
// over, then drains every picture the engine has ready. Zero pictures is a
// normal result; the engine may need several units before its first output.
//
// A Session may be handed from one goroutine to another, but must not be used
// by two goroutines at once. Overlapping calls panic. Callers that need to
// share a session wrap it in Shared.
package session

import (
	"sync/atomic"

	"github.com/ideamans/go-l10n"

	"github.com/user/av1session/pkg/adapters/logger"
	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

// Options configures a Session.
type Options struct {
	// Logger receives debug messages. Nil discards them.
	Logger ports.Logger

	// Configure adjusts the engine's default settings before it is opened.
	Configure func(*ports.EngineSettings)
}

// noCopy is flagged by go vet's copylocks check when a Session is copied.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Session owns one open engine instance.
type Session struct {
	_ noCopy

	handle ports.EngineHandle
	engine string
	log    ports.Logger
	inUse  atomic.Bool
}

// New opens an engine instance with its default settings, adjusted by
// opts.Configure.
//
// New panics with an *OpenError if the engine cannot be opened: there is no
// session to report the failure through, and an engine that cannot start
// indicates a broken environment rather than bad input.
func New(engine ports.Engine, opts Options) *Session {
	settings := engine.DefaultSettings()
	if opts.Configure != nil {
		opts.Configure(&settings)
	}

	handle, err := engine.Open(settings)
	if err != nil {
		panic(&OpenError{Engine: engine.Name(), Err: err})
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	log = log.WithComponent("session")
	log.Debug(l10n.F("Opened %s decoder with %d threads", engine.Name(), settings.Threads))

	return &Session{
		handle: handle,
		engine: engine.Name(),
		log:    log,
	}
}

// enter marks the session busy for the duration of one operation.
func (s *Session) enter() {
	if !s.inUse.CompareAndSwap(false, true) {
		panic("session: concurrent use of Session")
	}
}

func (s *Session) leave() {
	s.inUse.Store(false)
}

// Engine returns the name of the engine behind the session.
func (s *Session) Engine() string {
	return s.engine
}

// Close releases the engine instance. Further calls do nothing.
// Pictures obtained from the session should be released before Close.
func (s *Session) Close() {
	s.enter()
	defer s.leave()

	if s.handle == nil {
		return
	}
	s.handle.Close()
	s.handle = nil
	s.log.Debug(l10n.T("Decoder closed"))
}

// Flush discards buffered input and reference frames, e.g. before a seek.
func (s *Session) Flush() {
	s.enter()
	defer s.leave()

	if s.handle == nil {
		return
	}
	s.handle.Flush()
	s.log.Debug(l10n.T("Decoder flushed"))
}

// Submit decodes one unit and returns every picture that became available,
// in the engine's output order. data is copied and not retained.
//
// On ErrIngestionRejected nothing was consumed. On ErrDecodeFault any pictures
// already drained during this call are released and discarded.
func (s *Session) Submit(data []byte) ([]*picture.Picture, error) {
	return s.SubmitUnit(ports.Unit{Data: data, Timestamp: picture.NoTimestamp})
}

// SubmitUnit is Submit with timing metadata. The engine forwards the unit's
// timestamp and duration to the pictures decoded from it.
// A unit without data only drains, like Drain.
func (s *Session) SubmitUnit(unit ports.Unit) ([]*picture.Picture, error) {
	s.enter()
	defer s.leave()

	if s.handle == nil {
		return nil, ErrClosed
	}

	if len(unit.Data) > 0 {
		if err := s.send(unit); err != nil {
			return nil, err
		}
	}

	return s.drain()
}

// Drain collects pictures the engine still holds without sending new data.
// At the end of a stream, call it until it returns no pictures.
func (s *Session) Drain() ([]*picture.Picture, error) {
	s.enter()
	defer s.leave()

	if s.handle == nil {
		return nil, ErrClosed
	}
	return s.drain()
}

func (s *Session) send(unit ports.Unit) error {
	buf, err := s.handle.CreateData(len(unit.Data))
	if err != nil {
		s.log.Debug(l10n.F("Cannot allocate %d byte input buffer: %s", len(unit.Data), err))
		return &DecodeError{Kind: ErrIngestionRejected, Reason: ReasonNotConsumed}
	}
	copy(buf.Bytes(), unit.Data)
	buf.SetProps(unit.Timestamp, unit.Duration)

	if st := s.handle.SendData(buf); st != ports.SendAccepted {
		s.log.Debug(l10n.F("Engine rejected %d bytes", len(unit.Data)))
		return &DecodeError{Kind: ErrIngestionRejected, Reason: ReasonNotConsumed}
	}
	s.log.Debug(l10n.F("Sent %d bytes", len(unit.Data)))
	return nil
}

// drain pulls pictures until the engine needs more data or faults.
func (s *Session) drain() ([]*picture.Picture, error) {
	var pictures []*picture.Picture
	handle := s.handle

	for {
		var frame picture.Frame
		switch handle.GetPicture(&frame) {
		case ports.PictureNeedMoreData:
			return pictures, nil

		case ports.PictureProduced:
			pictures = append(pictures, picture.New(frame, handle.ReleasePicture))
			s.log.Debug(l10n.F("Picture %dx%d ready", frame.Width, frame.Height))

		default:
			s.log.Debug(l10n.F("Decode fault after %d pictures, discarding them", len(pictures)))
			for _, p := range pictures {
				p.Release()
			}
			return nil, &DecodeError{Kind: ErrDecodeFault, Reason: ReasonInvalidData}
		}
	}
}
