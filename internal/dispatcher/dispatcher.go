package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bodybasics/posetrack/pkg/core"
)

// Kind identifies what an event carries.
type Kind uint8

const (
	// KindFrame carries a RenderFrame.
	KindFrame Kind = iota
	// KindStatus carries a sensor status change.
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "render_frame"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Event is one unit of pipeline output. Frame is shared by every handler
// and must be treated as read-only.
type Event struct {
	Kind      Kind
	Frame     *core.RenderFrame
	Status    core.SensorStatus
	Timestamp time.Time
}

// FrameEvent wraps a render frame.
func FrameEvent(f *core.RenderFrame) Event {
	return Event{Kind: KindFrame, Frame: f, Timestamp: time.Now()}
}

// StatusEvent wraps a status change.
func StatusEvent(s core.SensorStatus) Event {
	return Event{Kind: KindStatus, Status: s, Timestamp: time.Now()}
}

// HandlerFunc consumes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size. Frames
// are dropped when the queue is full; status events wait for room.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher fans events out to every registered handler.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   Logger
	closed   bool

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter

	buffers map[string]chan Event
	wg      sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events queued per handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("handler", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total events a handler returned an error for"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a named handler with optional configuration. Registering
// a name twice replaces the earlier handler.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(name, h)

	if cfg.logged && d.logger != nil {
		handler = d.withLogging(name, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(name, cfg.bufferSize, cfg.blocking, handler)
	}

	d.mu.Lock()
	d.handlers[name] = handler
	d.mu.Unlock()
}

// Dispatch delivers e to every handler in name order. Handler errors are
// joined; a failing handler does not stop delivery to the others.
func (d *Dispatcher) Dispatch(e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return errors.New("dispatcher closed")
	}

	var errs []error
	for _, name := range d.namesLocked() {
		if err := d.handlers[name](e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// HasHandler returns true if a handler is registered under name.
func (d *Dispatcher) HasHandler(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}

// Close stops accepting events and waits for buffered handlers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) namesLocked() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) withMetrics(name string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("handler", name))
	return func(e Event) error {
		err := h(e)
		if err != nil {
			d.failed.Add(context.Background(), 1, attrs)
		}
		d.processed.Add(context.Background(), 1, attrs)
		return err
	}
}

func (d *Dispatcher) withBuffer(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	if old, ok := d.buffers[name]; ok {
		close(old)
	}
	d.buffers[name] = buffer
	d.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("handler", name))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			h(e)
		}
	}()

	if blocking {
		return func(e Event) error {
			buffer <- e
			return nil
		}
	}

	return func(e Event) error {
		if e.Kind == KindStatus {
			buffer <- e
			return nil
		}
		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, attrs)
			return fmt.Errorf("queue full: %s", name)
		}
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "handler", name, "kind", e.Kind.String())

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "handler", name, "kind", e.Kind.String(), "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "handler", name, "kind", e.Kind.String(), "duration", time.Since(start))
		}

		return err
	}
}
