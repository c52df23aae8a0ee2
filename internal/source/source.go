// Package source produces body frames from a sensor.
package source

import (
	"context"
	"errors"

	"github.com/bodybasics/posetrack/internal/channel"
	"github.com/bodybasics/posetrack/internal/projector"
)

var (
	// ErrClosed is returned when opening a sensor that was already closed.
	ErrClosed = errors.New("sensor closed")
	// ErrNoSensor is returned when no sensor is configured.
	ErrNoSensor = errors.New("no ready sensor found")
)

// Sensor delivers frames and availability changes. Open starts delivery to
// out and returns immediately. Close stops delivery and may be called more
// than once.
type Sensor interface {
	Open(ctx context.Context, out channel.Sender[*Frame]) error
	Mapper() projector.Mapper
	Availability() <-chan bool
	Close() error
}

// CloseSensor closes s if it is not nil.
func CloseSensor(s Sensor) error {
	if s == nil {
		return nil
	}
	return s.Close()
}
