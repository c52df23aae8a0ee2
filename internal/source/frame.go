package source

import (
	"sync"

	"github.com/bodybasics/posetrack/pkg/core"
)

var bodyPool = sync.Pool{
	New: func() any {
		bodies := make([]core.Body, core.BodySlots)
		return &bodies
	},
}

// Frame is a sensor frame handle. The body data belongs to a shared pool
// until Release is called; Release may be called any number of times.
type Frame struct {
	core.Frame

	once   sync.Once
	bodies *[]core.Body
}

// NewFrame copies f into a pooled handle.
func NewFrame(f core.Frame) *Frame {
	bodies := bodyPool.Get().(*[]core.Body)
	n := copy(*bodies, f.Bodies)
	for i := n; i < len(*bodies); i++ {
		(*bodies)[i].Reset()
	}
	return &Frame{
		Frame:  core.Frame{Sequence: f.Sequence, Timestamp: f.Timestamp, Bodies: *bodies},
		bodies: bodies,
	}
}

// GetAndRefreshBodyData copies the body slots into dst and returns the
// number of slots copied.
func (f *Frame) GetAndRefreshBodyData(dst []core.Body) int {
	return copy(dst, f.Bodies)
}

// Release returns the body data to the pool.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		f.Bodies = nil
		bodyPool.Put(f.bodies)
		f.bodies = nil
	})
}

// ReleaseFrame is a drop callback for mailboxes of frames.
func ReleaseFrame(f *Frame) { f.Release() }
