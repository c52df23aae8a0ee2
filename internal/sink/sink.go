// internal/sink/sink.go
package sink

import (
	"fmt"

	"github.com/bodybasics/posetrack/internal/dispatcher"
	"github.com/bodybasics/posetrack/pkg/core"
)

// Sink is the interface every render/pose consumer must satisfy
type Sink interface {
	// Lifecycle
	Init() error
	Close() error

	// WriteFrame consumes one render frame. The frame must be treated as
	// read-only; it is shared between sinks.
	WriteFrame(f *core.RenderFrame) error

	// SetStatus receives sensor status changes.
	SetStatus(s core.SensorStatus) error
}

// Exporter is an optional interface for sinks that write a file on Close.
type Exporter interface {
	ExportedFilePath() string
}

// Handler adapts a sink to a dispatcher handler.
func Handler(s Sink) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) error {
		switch e.Kind {
		case dispatcher.KindFrame:
			if e.Frame == nil {
				return nil
			}
			return s.WriteFrame(e.Frame)
		case dispatcher.KindStatus:
			return s.SetStatus(e.Status)
		default:
			return fmt.Errorf("unknown event kind: %s", e.Kind)
		}
	}
}
