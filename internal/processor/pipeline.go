package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/bodybasics/posetrack/internal/channel"
	"github.com/bodybasics/posetrack/internal/dispatcher"
	"github.com/bodybasics/posetrack/internal/source"
	"github.com/bodybasics/posetrack/pkg/core"
)

// Publisher receives pipeline output.
type Publisher interface {
	Dispatch(e dispatcher.Event) error
}

// StatusHandler maps sensor availability to a user-facing status.
type StatusHandler interface {
	HandleAvailability(available bool) core.SensorStatus
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStatusHandler routes availability changes through h.
func WithStatusHandler(h StatusHandler) PipelineOption {
	return func(p *Pipeline) { p.status = h }
}

// StopWhenUnavailable ends Run once the sensor reports unavailable.
func StopWhenUnavailable() PipelineOption {
	return func(p *Pipeline) { p.stopOnUnavailable = true }
}

// Pipeline connects a sensor to a processor and publishes every fresh
// render frame. Frames arriving faster than they are processed are
// dropped so that only the newest is rendered.
type Pipeline struct {
	sensor  source.Sensor
	proc    *Processor
	pub     Publisher
	status  StatusHandler
	mailbox *channel.Latest[*source.Frame]
	logger  zerolog.Logger

	stopOnUnavailable bool

	processed metric.Int64Counter
	failed    metric.Int64Counter

	closeOnce sync.Once
	closeErr  error
}

// NewPipeline wires sensor output into proc and publishes to pub.
func NewPipeline(sensor source.Sensor, proc *Processor, pub Publisher, logger zerolog.Logger, opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		sensor:  sensor,
		proc:    proc,
		pub:     pub,
		mailbox: channel.NewLatest[*source.Frame](source.ReleaseFrame),
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	m := meter()
	var err error

	p.processed, err = m.Int64Counter(
		"pipeline.frames.processed",
		metric.WithDescription("Frames rendered by the processor"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	p.failed, err = m.Int64Counter(
		"pipeline.publish.failed",
		metric.WithDescription("Render frames at least one sink failed on"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	dropped, err := m.Int64ObservableCounter(
		"pipeline.frames.dropped",
		metric.WithDescription("Frames replaced before they were processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(dropped, int64(p.mailbox.Dropped()))
		return nil
	}, dropped)
	if err != nil {
		return nil, fmt.Errorf("registering dropped callback: %w", err)
	}

	return p, nil
}

// Mailbox exposes the frame mailbox the sensor feeds.
func (p *Pipeline) Mailbox() channel.Mailbox[*source.Frame] {
	return p.mailbox
}

// Run opens the sensor and processes frames until ctx is done, the
// pipeline is closed or, with StopWhenUnavailable, the sensor goes away.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.sensor == nil {
		p.publishStatus(core.StatusNoSensor)
		return source.ErrNoSensor
	}

	if err := p.sensor.Open(ctx, p.mailbox); err != nil {
		p.publishStatus(core.StatusNoSensor)
		return fmt.Errorf("failed to open sensor: %w", err)
	}

	ready := p.mailbox.Ready()
	availability := p.sensor.Availability()

	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-ready:
			if !ok {
				return nil
			}
			p.tick(ctx)

		case available, ok := <-availability:
			if !ok {
				availability = nil
				continue
			}
			if !available {
				// frames sent before the sensor went away are still rendered
				p.tick(ctx)
			}
			p.publishStatus(p.statusFor(available))
			if !available && p.stopOnUnavailable {
				return nil
			}
		}
	}
}

func (p *Pipeline) tick(ctx context.Context) {
	out, fresh := p.proc.Tick(p.mailbox)
	if !fresh {
		return
	}
	p.processed.Add(ctx, 1)

	if err := p.pub.Dispatch(dispatcher.FrameEvent(out)); err != nil {
		p.failed.Add(ctx, 1)
		p.logger.Warn().Err(err).Uint64("seq", out.Sequence).Msg("Failed to publish frame")
	}
}

func (p *Pipeline) statusFor(available bool) core.SensorStatus {
	if p.status != nil {
		return p.status.HandleAvailability(available)
	}
	if available {
		return core.StatusRunning
	}
	return core.StatusNotAvailable
}

func (p *Pipeline) publishStatus(s core.SensorStatus) {
	p.logger.Info().Str("status", s.Text()).Msg("Sensor status changed")
	if err := p.pub.Dispatch(dispatcher.StatusEvent(s)); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to publish status")
	}
}

// Close closes the sensor and the mailbox. It is safe to call more than
// once and with no sensor.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = source.CloseSensor(p.sensor)
		p.mailbox.Close()
	})
	return p.closeErr
}
