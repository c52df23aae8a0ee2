package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bodybasics/posetrack/internal/channel"
	"github.com/bodybasics/posetrack/internal/parser"
	"github.com/bodybasics/posetrack/internal/projector"
	"github.com/bodybasics/posetrack/pkg/core"
)

// DefaultFPS is the sensor frame rate.
const DefaultFPS = 30

// ReplayConfig controls a replay sensor.
type ReplayConfig struct {
	Path string
	FPS  float64
	Loop bool
}

type frameReader interface {
	Next() (core.Frame, error)
	Close() error
}

// Replay is a Sensor that plays back a recorded session at a fixed rate.
// It reports available when opened and unavailable when the recording ends.
type Replay struct {
	cfg    ReplayConfig
	mapper projector.Mapper
	open   func() (frameReader, error)
	logger zerolog.Logger

	availability *channel.Buffered[bool]

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	started bool
}

// NewReplay returns a sensor reading the recording at cfg.Path.
func NewReplay(cfg ReplayConfig, p *parser.Parser, mapper projector.Mapper, logger zerolog.Logger) *Replay {
	return newReplay(cfg, mapper, logger, func() (frameReader, error) {
		return parser.Open(p, cfg.Path)
	})
}

// NewReplayFrames returns a sensor playing the given frames.
func NewReplayFrames(frames []core.Frame, cfg ReplayConfig, mapper projector.Mapper, logger zerolog.Logger) *Replay {
	return newReplay(cfg, mapper, logger, func() (frameReader, error) {
		return &sliceReader{frames: frames}, nil
	})
}

func newReplay(cfg ReplayConfig, mapper projector.Mapper, logger zerolog.Logger, open func() (frameReader, error)) *Replay {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if mapper == nil {
		mapper = projector.DefaultPinhole()
	}
	return &Replay{
		cfg:          cfg,
		mapper:       mapper,
		open:         open,
		logger:       logger.With().Str("component", "replay").Logger(),
		availability: channel.NewBuffered[bool](4),
	}
}

// Mapper returns the coordinate mapper for this sensor.
func (r *Replay) Mapper() projector.Mapper { return r.mapper }

// Availability reports sensor availability changes.
func (r *Replay) Availability() <-chan bool { return r.availability.Receive() }

// Open starts playback into out.
func (r *Replay) Open(ctx context.Context, out channel.Sender[*Frame]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.started {
		return errors.New("sensor already open")
	}

	reader, err := r.open()
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = true

	r.availability.TrySend(true)
	go r.run(ctx, reader, out)

	r.logger.Info().Str("path", r.cfg.Path).Float64("fps", r.cfg.FPS).Bool("loop", r.cfg.Loop).Msg("Replay started")
	return nil
}

func (r *Replay) run(ctx context.Context, reader frameReader, out channel.Sender[*Frame]) {
	defer close(r.done)
	defer func() {
		if reader != nil {
			reader.Close()
		}
	}()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / r.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		f, err := reader.Next()
		if errors.Is(err, io.EOF) && r.cfg.Loop {
			reader.Close()
			reader = nil
			next, openErr := r.open()
			if openErr != nil {
				err = openErr
			} else {
				reader = next
				f, err = reader.Next()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.logger.Error().Err(err).Msg("Replay stopped")
			} else {
				r.logger.Info().Msg("Recording finished")
			}
			r.availability.TrySend(false)
			return
		}

		out.Send(NewFrame(f))
	}
}

// Close stops playback and waits for the playback goroutine to exit.
func (r *Replay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	r.availability.Close()
	return nil
}

type sliceReader struct {
	frames []core.Frame
	pos    int
}

func (s *sliceReader) Next() (core.Frame, error) {
	if s.pos >= len(s.frames) {
		return core.Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *sliceReader) Close() error { return nil }
