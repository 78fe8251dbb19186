package player

import (
	"context"
	"errors"
	"testing"

	"github.com/user/av1session/pkg/adapters/logger"
	"github.com/user/av1session/pkg/mocks"
	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
	"github.com/user/av1session/pkg/session"
)

func units(n int) []ports.Unit {
	out := make([]ports.Unit, n)
	for i := range out {
		out[i] = ports.Unit{Data: mocks.Unit(32, 24), Timestamp: int64(i), Duration: 1}
	}
	return out
}

type fixture struct {
	engine *mocks.Engine
	sess   *session.Session
	source *mocks.UnitSource
	sink   *mocks.PictureSink
	player *Player
}

func newFixture(t *testing.T, engine *mocks.Engine, n int) *fixture {
	t.Helper()
	sess := session.New(engine, session.Options{})
	t.Cleanup(sess.Close)

	source := &mocks.UnitSource{
		StreamInfo: ports.StreamInfo{Codec: "av1", Width: 32, Height: 24},
		Units:      units(n),
	}
	sink := mocks.NewPictureSink()
	return &fixture{
		engine: engine,
		sess:   sess,
		source: source,
		sink:   sink,
		player: New(sess, source, sink, logger.NewNoop()),
	}
}

func (f *fixture) assertAllReleased(t *testing.T) {
	t.Helper()
	once, leaked, double := f.engine.LastHandle().ReleaseStats()
	if leaked != 0 || double != 0 {
		t.Errorf("expected every picture released once, got once=%d leaked=%d double=%d", once, leaked, double)
	}
}

func TestPlayer_Run(t *testing.T) {
	f := newFixture(t, &mocks.Engine{}, 3)

	result, err := f.player.Run(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := Result{Units: 3, Pictures: 3}
	if result != want {
		t.Errorf("expected %+v, got %+v", want, result)
	}
	for i, w := range f.sink.Written {
		if w.Index != i || w.Timestamp != int64(i) || w.Width != 32 || w.Height != 24 {
			t.Errorf("picture %d: unexpected %+v", i, w)
		}
	}
	f.assertAllReleased(t)
}

func TestPlayer_DrainsDelayedPictures(t *testing.T) {
	f := newFixture(t, &mocks.Engine{Delay: 2}, 4)

	result, err := f.player.Run(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Pictures != 4 {
		t.Errorf("expected 4 pictures after drain, got %d", result.Pictures)
	}
	for i, w := range f.sink.Written {
		if w.Timestamp != int64(i) {
			t.Errorf("picture %d out of order: ts %d", i, w.Timestamp)
		}
	}
	f.assertAllReleased(t)
}

func TestPlayer_ErrorPolicy(t *testing.T) {
	faultOnSecond := func(n int, data []byte) []mocks.Output {
		if n == 1 {
			return []mocks.Output{mocks.FaultOutput()}
		}
		return mocks.DefaultProduce(n, data)
	}

	tests := []struct {
		name        string
		engine      *mocks.Engine
		config      Config
		wantErr     error
		want        Result
		wantFlushes int
	}{
		{
			name:   "rejected unit is skipped",
			engine: &mocks.Engine{RejectFunc: func(n int, _ []byte) bool { return n == 1 }},
			config: DefaultConfig(),
			want:   Result{Units: 3, Pictures: 2, Rejected: 1},
		},
		{
			name:        "fault flushes and continues",
			engine:      &mocks.Engine{ProduceFunc: faultOnSecond},
			config:      DefaultConfig(),
			want:        Result{Units: 3, Pictures: 2, Faults: 1},
			wantFlushes: 1,
		},
		{
			name:   "fault without flush",
			engine: &mocks.Engine{ProduceFunc: faultOnSecond},
			config: Config{},
			want:   Result{Units: 3, Pictures: 2, Faults: 1},
		},
		{
			name:        "stop on fault",
			engine:      &mocks.Engine{ProduceFunc: faultOnSecond},
			config:      Config{StopOnError: true, FlushOnFault: true},
			wantErr:     session.ErrDecodeFault,
			want:        Result{Units: 2, Pictures: 1, Faults: 1},
			wantFlushes: 1,
		},
		{
			name:    "stop on rejection",
			engine:  &mocks.Engine{RejectFunc: func(n int, _ []byte) bool { return n == 0 }},
			config:  Config{StopOnError: true},
			wantErr: session.ErrIngestionRejected,
			want:    Result{Units: 1, Rejected: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.engine, 3)

			result, err := f.player.Run(context.Background(), tt.config)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if result != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, result)
			}
			if got := f.engine.LastHandle().FlushCalls; got != tt.wantFlushes {
				t.Errorf("expected %d flushes, got %d", tt.wantFlushes, got)
			}
			f.assertAllReleased(t)
		})
	}
}

func TestPlayer_MaxPictures(t *testing.T) {
	twoPerUnit := func(n int, data []byte) []mocks.Output {
		return append(mocks.DefaultProduce(n, data), mocks.DefaultProduce(n, data)...)
	}
	f := newFixture(t, &mocks.Engine{ProduceFunc: twoPerUnit}, 5)

	result, err := f.player.Run(context.Background(), Config{MaxPictures: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Pictures != 3 || result.Units != 2 {
		t.Errorf("expected 3 pictures from 2 units, got %+v", result)
	}
	if len(f.sink.Written) != 3 {
		t.Errorf("expected 3 written, got %d", len(f.sink.Written))
	}
	f.assertAllReleased(t)
}

func TestPlayer_Cancelled(t *testing.T) {
	f := newFixture(t, &mocks.Engine{}, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.player.Run(ctx, DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Units != 0 {
		t.Errorf("expected no units read, got %d", result.Units)
	}
}

func TestPlayer_SinkError(t *testing.T) {
	twoPerUnit := func(n int, data []byte) []mocks.Output {
		return append(mocks.DefaultProduce(n, data), mocks.DefaultProduce(n, data)...)
	}
	f := newFixture(t, &mocks.Engine{ProduceFunc: twoPerUnit}, 2)
	writeErr := errors.New("disk full")
	f.sink.WritePictureFunc = func(index int, pic *picture.Picture) error {
		return writeErr
	}

	result, err := f.player.Run(context.Background(), DefaultConfig())
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected write error, got %v", err)
	}
	if result.Pictures != 0 || result.Units != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	f.assertAllReleased(t)
}

func TestPlayer_SourceError(t *testing.T) {
	f := newFixture(t, &mocks.Engine{}, 1)
	readErr := errors.New("truncated")
	f.source.Err = readErr

	result, err := f.player.Run(context.Background(), DefaultConfig())
	if !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}
	if result.Units != 1 || result.Pictures != 1 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestPlayer_ClosedSession(t *testing.T) {
	f := newFixture(t, &mocks.Engine{}, 1)
	f.sess.Close()

	if _, err := f.player.Run(context.Background(), DefaultConfig()); !errors.Is(err, session.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestPlayer_SharedDecoder(t *testing.T) {
	engine := &mocks.Engine{}
	shared := session.NewShared(session.New(engine, session.Options{}))
	defer shared.Close()

	source := &mocks.UnitSource{Units: units(2)}
	sink := mocks.NewPictureSink()
	result, err := New(shared, source, sink, logger.NewNoop()).Run(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Pictures != 2 {
		t.Errorf("expected 2 pictures, got %d", result.Pictures)
	}
}
