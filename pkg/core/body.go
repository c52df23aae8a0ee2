// pkg/core/body.go
package core

import (
	"fmt"
	"strings"
	"time"
)

// BodySlots is the number of body slots the sensor reports per frame.
const BodySlots = 6

// HandState is the recognized state of a hand.
type HandState uint8

const (
	HandUnknown HandState = iota
	HandNotTracked
	HandOpen
	HandClosed
	HandLasso
)

func (h HandState) String() string {
	switch h {
	case HandUnknown:
		return "Unknown"
	case HandNotTracked:
		return "NotTracked"
	case HandOpen:
		return "Open"
	case HandClosed:
		return "Closed"
	case HandLasso:
		return "Lasso"
	default:
		return fmt.Sprintf("HandState(%d)", uint8(h))
	}
}

// MarshalText encodes the hand state name.
func (h HandState) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hand state name.
func (h *HandState) UnmarshalText(text []byte) error {
	v, ok := ParseHandState(string(text))
	if !ok {
		return fmt.Errorf("unknown hand state %q", text)
	}
	*h = v
	return nil
}

// ParseHandState parses a hand state name (case-insensitive). An empty
// string is Unknown.
func ParseHandState(s string) (HandState, bool) {
	switch strings.ToLower(s) {
	case "unknown", "":
		return HandUnknown, true
	case "nottracked":
		return HandNotTracked, true
	case "open":
		return HandOpen, true
	case "closed":
		return HandClosed, true
	case "lasso":
		return HandLasso, true
	default:
		return HandUnknown, false
	}
}

// FrameEdges is a bit set of the display edges a body is clipped by.
type FrameEdges uint8

const (
	EdgeRight FrameEdges = 1 << iota
	EdgeLeft
	EdgeTop
	EdgeBottom

	EdgeNone FrameEdges = 0
)

// Has reports whether every edge in e is set.
func (f FrameEdges) Has(e FrameEdges) bool {
	return f&e == e && e != 0
}

func (f FrameEdges) String() string {
	if f == EdgeNone {
		return "None"
	}
	var parts []string
	for _, e := range []FrameEdges{EdgeTop, EdgeBottom, EdgeLeft, EdgeRight} {
		if f.Has(e) {
			parts = append(parts, edgeName(e))
		}
	}
	return strings.Join(parts, "|")
}

// MarshalText encodes the edge set as its String form.
func (f FrameEdges) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes the String form ("None" or names joined by "|").
func (f *FrameEdges) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" || strings.EqualFold(s, "none") {
		*f = EdgeNone
		return nil
	}
	var out FrameEdges
	for _, name := range strings.Split(s, "|") {
		e, ok := ParseFrameEdge(name)
		if !ok {
			return fmt.Errorf("unknown frame edge %q", name)
		}
		out |= e
	}
	*f = out
	return nil
}

func edgeName(e FrameEdges) string {
	switch e {
	case EdgeTop:
		return "Top"
	case EdgeBottom:
		return "Bottom"
	case EdgeLeft:
		return "Left"
	case EdgeRight:
		return "Right"
	default:
		return ""
	}
}

// ParseFrameEdge parses a single edge name.
func ParseFrameEdge(s string) (FrameEdges, bool) {
	switch strings.ToLower(s) {
	case "top":
		return EdgeTop, true
	case "bottom":
		return EdgeBottom, true
	case "left":
		return EdgeLeft, true
	case "right":
		return EdgeRight, true
	default:
		return EdgeNone, false
	}
}

// Body is one tracked skeleton slot for one frame. Joints is indexed by
// JointType, so every joint type is always present.
type Body struct {
	Tracked      bool
	TrackingID   uint64
	Joints       [JointCount]Joint
	HandLeft     HandState
	HandRight    HandState
	ClippedEdges FrameEdges
}

// Joint returns the joint of the given type.
func (b *Body) Joint(t JointType) Joint {
	return b.Joints[t]
}

// Reset clears the body to an untracked slot with all joints NotTracked.
func (b *Body) Reset() {
	*b = Body{}
	for i := range b.Joints {
		b.Joints[i].Type = JointType(i)
	}
}

// NewBody returns an untracked body with joint types filled in.
func NewBody() Body {
	var b Body
	b.Reset()
	return b
}

// Frame is one sensor tick worth of body data.
type Frame struct {
	Sequence  uint64
	Timestamp time.Duration
	Bodies    []Body
}
