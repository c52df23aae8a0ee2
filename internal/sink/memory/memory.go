// internal/sink/memory/memory.go
package memory

import (
	"sync"

	"github.com/bodybasics/posetrack/internal/config"
	"github.com/bodybasics/posetrack/pkg/core"
)

// StatusChange is a sensor status transition seen by the sink
type StatusChange struct {
	Sequence uint64            `json:"sequence"`
	Status   core.SensorStatus `json:"-"`
	Text     string            `json:"status"`
}

// Sink keeps the latest render frames in memory and exports a session
// summary to JSON on Close
type Sink struct {
	cfg     config.MemoryConfig
	session core.Session

	last     *core.RenderFrame
	history  []*core.RenderFrame
	statuses []StatusChange

	frames     uint64
	poseCounts map[core.PoseName]uint64
	maxBodies  int

	lastExportPath string
	closed         bool
	mu             sync.RWMutex
}

// New creates a new memory sink
func New(cfg config.MemoryConfig, session core.Session) *Sink {
	return &Sink{
		cfg:        cfg,
		session:    session,
		poseCounts: make(map[core.PoseName]uint64),
	}
}

// Init initializes the sink
func (s *Sink) Init() error {
	return nil
}

// Close exports the session summary. Calling Close again is a no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.cfg.OutputDir == "" {
		return nil
	}
	return s.exportJSON()
}

// WriteFrame records a render frame
func (s *Sink) WriteFrame(f *core.RenderFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = f
	s.frames++
	if len(f.Bodies) > s.maxBodies {
		s.maxBodies = len(f.Bodies)
	}
	for i := range f.Bodies {
		for _, name := range f.Bodies[i].Detected() {
			s.poseCounts[name]++
		}
	}

	if s.cfg.History > 0 {
		s.history = append(s.history, f)
		if over := len(s.history) - s.cfg.History; over > 0 {
			clear(s.history[:over])
			s.history = s.history[over:]
		}
	}
	return nil
}

// SetStatus records a sensor status change
func (s *Sink) SetStatus(status core.SensorStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seq uint64
	if s.last != nil {
		seq = s.last.Sequence
	}
	s.statuses = append(s.statuses, StatusChange{Sequence: seq, Status: status, Text: status.Text()})
	return nil
}

// Last returns the most recent render frame, or nil before the first one.
func (s *Sink) Last() *core.RenderFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// History returns the retained frames, oldest first.
func (s *Sink) History() []*core.RenderFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.RenderFrame, len(s.history))
	copy(out, s.history)
	return out
}

// Statuses returns every status change seen so far.
func (s *Sink) Statuses() []StatusChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StatusChange, len(s.statuses))
	copy(out, s.statuses)
	return out
}

// PoseCount returns how many body-frames showed the pose.
func (s *Sink) PoseCount(name core.PoseName) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poseCounts[name]
}

// ExportedFilePath returns the path of the last export, or "".
func (s *Sink) ExportedFilePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastExportPath
}
