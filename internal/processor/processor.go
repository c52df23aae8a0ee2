// Package processor turns sensor frames into render frames.
package processor

import (
	"github.com/bodybasics/posetrack/internal/channel"
	"github.com/bodybasics/posetrack/internal/pose"
	"github.com/bodybasics/posetrack/internal/projector"
	"github.com/bodybasics/posetrack/internal/skeleton"
	"github.com/bodybasics/posetrack/internal/source"
	"github.com/bodybasics/posetrack/pkg/core"
)

const (
	// ClipBoundsThickness is the thickness of clipped-edge overlays.
	ClipBoundsThickness = 10
	// PaletteSize is the number of distinct body colors.
	PaletteSize = 6
)

// Config holds display settings.
type Config struct {
	DisplayWidth  float64
	DisplayHeight float64
}

// Processor projects, classifies and lays out each tracked body. It is not
// safe for concurrent use; one goroutine drives it.
type Processor struct {
	cfg        Config
	mapper     projector.Mapper
	classifier *pose.Classifier

	bodies [core.BodySlots]core.Body
	points [core.JointCount]core.ProjectedJoint
	last   *core.RenderFrame
}

// MapperFor returns the coordinate mapper the sensor supplies, or the
// default pinhole when there is no sensor.
func MapperFor(s source.Sensor) projector.Mapper {
	if s != nil {
		if m := s.Mapper(); m != nil {
			return m
		}
	}
	return projector.DefaultPinhole()
}

// New returns a processor. A nil classifier uses the default pose set and
// threshold; zero display dimensions use the depth frame size.
func New(cfg Config, mapper projector.Mapper, classifier *pose.Classifier) *Processor {
	if cfg.DisplayWidth <= 0 {
		cfg.DisplayWidth = projector.DefaultDepthWidth
	}
	if cfg.DisplayHeight <= 0 {
		cfg.DisplayHeight = projector.DefaultDepthHeight
	}
	if mapper == nil {
		mapper = projector.DefaultPinhole()
	}
	if classifier == nil {
		classifier = pose.NewClassifier(pose.DefaultThreshold, pose.SignedSum)
	}
	p := &Processor{cfg: cfg, mapper: mapper, classifier: classifier}
	for i := range p.bodies {
		p.bodies[i].Reset()
	}
	return p
}

// Tick takes the latest frame from frames, if any, and processes it. When no
// frame is pending the previous output is returned with fresh set to false.
// The frame handle is released before processing.
func (p *Processor) Tick(frames channel.Mailbox[*source.Frame]) (out *core.RenderFrame, fresh bool) {
	f, ok := frames.TryReceive()
	if !ok || f == nil {
		return p.last, false
	}

	n := f.GetAndRefreshBodyData(p.bodies[:])
	for i := n; i < len(p.bodies); i++ {
		p.bodies[i].Reset()
	}
	seq := f.Sequence
	f.Release()

	p.last = p.render(seq)
	return p.last, true
}

// Process renders a frame directly, bypassing the mailbox.
func (p *Processor) Process(f core.Frame) *core.RenderFrame {
	n := copy(p.bodies[:], f.Bodies)
	for i := n; i < len(p.bodies); i++ {
		p.bodies[i].Reset()
	}
	p.last = p.render(f.Sequence)
	return p.last
}

// Last returns the most recent output, or nil before the first frame.
func (p *Processor) Last() *core.RenderFrame {
	return p.last
}

func (p *Processor) render(seq uint64) *core.RenderFrame {
	rf := &core.RenderFrame{
		Sequence: seq,
		Width:    p.cfg.DisplayWidth,
		Height:   p.cfg.DisplayHeight,
		Clear:    true,
		Edges:    []core.EdgeRect{},
		Bodies:   []core.BodyRender{},
	}

	for slot := range p.bodies {
		body := &p.bodies[slot]
		if !body.Tracked {
			continue
		}

		rf.Edges = append(rf.Edges, p.edgeRects(slot, body.ClippedEdges)...)

		projector.ProjectBody(p.mapper, body, &p.points)
		poses := p.classifier.Evaluate(body, &p.points)

		rf.Bodies = append(rf.Bodies, core.BodyRender{
			Slot:       slot,
			TrackingID: body.TrackingID,
			ColorIndex: slot % PaletteSize,
			Bones:      skeleton.DrawableBones(body, &p.points),
			Joints:     skeleton.DrawableJoints(body, &p.points),
			Hands:      p.hands(body),
			Poses:      poses,
			Highlights: nonNil(p.classifier.Highlights(body, poses, &p.points)),
		})
	}
	return rf
}

func (p *Processor) hands(body *core.Body) []core.HandMarker {
	out := []core.HandMarker{}
	for _, h := range []struct {
		joint core.JointType
		state core.HandState
	}{
		{core.HandLeft, body.HandLeft},
		{core.HandRight, body.HandRight},
	} {
		switch h.state {
		case core.HandOpen, core.HandClosed, core.HandLasso:
		default:
			continue
		}
		if body.Joints[h.joint].State == core.NotTracked || !p.points[h.joint].Valid {
			continue
		}
		out = append(out, core.HandMarker{Joint: h.joint, State: h.state, Point: p.points[h.joint].Point})
	}
	return out
}

func (p *Processor) edgeRects(slot int, edges core.FrameEdges) []core.EdgeRect {
	w, h := p.cfg.DisplayWidth, p.cfg.DisplayHeight
	t := float64(ClipBoundsThickness)

	var out []core.EdgeRect
	if edges.Has(core.EdgeBottom) {
		out = append(out, core.EdgeRect{Slot: slot, Edge: core.EdgeBottom, Rect: core.Rect{X: 0, Y: h - t, Width: w, Height: t}})
	}
	if edges.Has(core.EdgeTop) {
		out = append(out, core.EdgeRect{Slot: slot, Edge: core.EdgeTop, Rect: core.Rect{X: 0, Y: 0, Width: w, Height: t}})
	}
	if edges.Has(core.EdgeLeft) {
		out = append(out, core.EdgeRect{Slot: slot, Edge: core.EdgeLeft, Rect: core.Rect{X: 0, Y: 0, Width: t, Height: h}})
	}
	if edges.Has(core.EdgeRight) {
		out = append(out, core.EdgeRect{Slot: slot, Edge: core.EdgeRight, Rect: core.Rect{X: w - t, Y: 0, Width: t, Height: h}})
	}
	return out
}

func nonNil(h []core.Highlight) []core.Highlight {
	if h == nil {
		return []core.Highlight{}
	}
	return h
}
