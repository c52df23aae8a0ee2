// internal/sink/factory.go
package sink

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bodybasics/posetrack/internal/config"
	"github.com/bodybasics/posetrack/internal/dispatcher"
	"github.com/bodybasics/posetrack/internal/sink/database"
	"github.com/bodybasics/posetrack/internal/sink/influx"
	"github.com/bodybasics/posetrack/internal/sink/memory"
	"github.com/bodybasics/posetrack/internal/sink/terminal"
	"github.com/bodybasics/posetrack/internal/sink/websocket"
	"github.com/bodybasics/posetrack/pkg/core"
)

// Entry is an initialised sink with the dispatcher options it should be
// registered with.
type Entry struct {
	Name    string
	Sink    Sink
	Options []dispatcher.Option
}

// Build creates and initialises every enabled sink. On error, sinks that
// were already initialised are closed.
func Build(cfg config.SinkConfig, session core.Session, logger zerolog.Logger) ([]Entry, error) {
	var entries []Entry

	if cfg.Memory.Enabled {
		entries = append(entries, Entry{
			Name: "memory",
			Sink: memory.New(cfg.Memory, session),
		})
	}
	if cfg.WebSocket.Enabled {
		entries = append(entries, Entry{
			Name:    "websocket",
			Sink:    websocket.New(websocket.Config{URL: cfg.WebSocket.URL, Secret: cfg.WebSocket.Secret}, session, logger),
			Options: []dispatcher.Option{dispatcher.Buffered(64)},
		})
	}
	if cfg.Database.Enabled {
		entries = append(entries, Entry{
			Name:    "database",
			Sink:    database.New(cfg.Database, session, logger),
			Options: []dispatcher.Option{dispatcher.Buffered(256), dispatcher.Logged()},
		})
	}
	if cfg.Influx.Enabled {
		entries = append(entries, Entry{
			Name:    "influx",
			Sink:    influx.New(cfg.Influx, session, logger),
			Options: []dispatcher.Option{dispatcher.Buffered(256)},
		})
	}
	if cfg.Terminal.Enabled {
		entries = append(entries, Entry{
			Name:    "terminal",
			Sink:    terminal.New(nil, logger),
			Options: []dispatcher.Option{dispatcher.Buffered(2)},
		})
	}

	for i, e := range entries {
		if err := e.Sink.Init(); err != nil {
			closeErr := CloseAll(entries[:i])
			return nil, errors.Join(fmt.Errorf("failed to init %s sink: %w", e.Name, err), closeErr)
		}
	}
	return entries, nil
}

// Register adds every entry to the dispatcher.
func Register(d *dispatcher.Dispatcher, entries []Entry) {
	for _, e := range entries {
		d.Register(e.Name, Handler(e.Sink), e.Options...)
	}
}

// CloseAll closes every sink and joins the errors.
func CloseAll(entries []Entry) error {
	var errs []error
	for _, e := range entries {
		if err := e.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}
