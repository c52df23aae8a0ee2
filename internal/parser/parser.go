// Package parser decodes recorded skeletal frames. A recording is a stream of
// JSON lines, one frame per line, optionally gzip-compressed.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bodybasics/posetrack/pkg/core"
)

var (
	// ErrUnknownJoint is returned for a joint name outside the joint set.
	ErrUnknownJoint = errors.New("unknown joint")
	// ErrUnknownState is returned for an unknown tracking or hand state.
	ErrUnknownState = errors.New("unknown state")
	// ErrUnknownEdge is returned for an unknown clipped-edge name.
	ErrUnknownEdge = errors.New("unknown edge")
	// ErrBadSlot is returned for a body slot outside [0, core.BodySlots) or
	// a slot used twice in one frame.
	ErrBadSlot = errors.New("invalid body slot")
)

// FrameRecord is the on-disk form of one frame.
type FrameRecord struct {
	Seq    uint64       `json:"seq"`
	TimeMs float64      `json:"t_ms"`
	Bodies []BodyRecord `json:"bodies"`
}

// BodyRecord is the on-disk form of one body slot.
type BodyRecord struct {
	Slot      int                    `json:"slot"`
	Tracked   bool                   `json:"tracked"`
	ID        uint64                 `json:"id,omitempty"`
	HandLeft  string                 `json:"handLeft,omitempty"`
	HandRight string                 `json:"handRight,omitempty"`
	Clipped   []string               `json:"clipped,omitempty"`
	Joints    map[string]JointRecord `json:"joints,omitempty"`
}

// JointRecord is a joint position in sensor space and its tracking state.
type JointRecord struct {
	P [3]float64 `json:"p"`
	S string     `json:"s"`
}

// Parser converts frame records into core frames.
type Parser struct {
	logger zerolog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseFrame decodes one JSON frame line.
func (p *Parser) ParseFrame(data []byte) (core.Frame, error) {
	var rec FrameRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.Frame{}, fmt.Errorf("error unmarshalling frame: %w", err)
	}
	return p.FromRecord(rec)
}

// FromRecord converts a decoded record. The result always holds
// core.BodySlots bodies; slots absent from the record are untracked.
func (p *Parser) FromRecord(rec FrameRecord) (core.Frame, error) {
	frame := core.Frame{
		Sequence:  rec.Seq,
		Timestamp: time.Duration(rec.TimeMs * float64(time.Millisecond)),
		Bodies:    make([]core.Body, core.BodySlots),
	}
	for i := range frame.Bodies {
		frame.Bodies[i].Reset()
	}

	var used [core.BodySlots]bool
	for _, br := range rec.Bodies {
		if br.Slot < 0 || br.Slot >= core.BodySlots || used[br.Slot] {
			return core.Frame{}, fmt.Errorf("frame %d: slot %d: %w", rec.Seq, br.Slot, ErrBadSlot)
		}
		used[br.Slot] = true

		if err := parseBody(br, &frame.Bodies[br.Slot]); err != nil {
			return core.Frame{}, fmt.Errorf("frame %d: slot %d: %w", rec.Seq, br.Slot, err)
		}
	}

	p.logger.Trace().Uint64("seq", rec.Seq).Int("bodies", len(rec.Bodies)).Msg("Parsed frame")
	return frame, nil
}

func parseBody(br BodyRecord, body *core.Body) error {
	body.Tracked = br.Tracked
	body.TrackingID = br.ID

	var ok bool
	if body.HandLeft, ok = core.ParseHandState(br.HandLeft); !ok {
		return fmt.Errorf("handLeft %q: %w", br.HandLeft, ErrUnknownState)
	}
	if body.HandRight, ok = core.ParseHandState(br.HandRight); !ok {
		return fmt.Errorf("handRight %q: %w", br.HandRight, ErrUnknownState)
	}

	for _, name := range br.Clipped {
		edge, ok := core.ParseFrameEdge(name)
		if !ok {
			return fmt.Errorf("clipped %q: %w", name, ErrUnknownEdge)
		}
		body.ClippedEdges |= edge
	}

	for name, jr := range br.Joints {
		jt, ok := core.ParseJointType(name)
		if !ok {
			return fmt.Errorf("joint %q: %w", name, ErrUnknownJoint)
		}
		state, ok := core.ParseTrackingState(jr.S)
		if !ok {
			return fmt.Errorf("joint %s state %q: %w", name, jr.S, ErrUnknownState)
		}
		body.Joints[jt] = core.Joint{
			Type:     jt,
			Position: core.Position3D{X: jr.P[0], Y: jr.P[1], Z: jr.P[2]},
			State:    state,
		}
	}
	return nil
}

// ToRecord converts a frame back into its on-disk form. Untracked slots
// are omitted.
func ToRecord(f core.Frame) FrameRecord {
	rec := FrameRecord{
		Seq:    f.Sequence,
		TimeMs: float64(f.Timestamp) / float64(time.Millisecond),
	}
	for slot := range f.Bodies {
		b := &f.Bodies[slot]
		if !b.Tracked {
			continue
		}
		br := BodyRecord{
			Slot:      slot,
			Tracked:   true,
			ID:        b.TrackingID,
			HandLeft:  b.HandLeft.String(),
			HandRight: b.HandRight.String(),
			Joints:    make(map[string]JointRecord, core.JointCount),
		}
		for _, e := range []core.FrameEdges{core.EdgeTop, core.EdgeBottom, core.EdgeLeft, core.EdgeRight} {
			if b.ClippedEdges.Has(e) {
				br.Clipped = append(br.Clipped, e.String())
			}
		}
		for _, j := range b.Joints {
			if j.State == core.NotTracked {
				continue
			}
			br.Joints[j.Type.String()] = JointRecord{
				P: [3]float64{j.Position.X, j.Position.Y, j.Position.Z},
				S: j.State.String(),
			}
		}
		rec.Bodies = append(rec.Bodies, br)
	}
	return rec
}
