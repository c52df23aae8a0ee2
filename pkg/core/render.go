// pkg/core/render.go
package core

import "fmt"

// Bone connects two joints.
type Bone [2]JointType

func (b Bone) String() string {
	return b[0].String() + "-" + b[1].String()
}

// Tier is the drawing confidence of a bone or joint.
type Tier uint8

const (
	// TierInferred is drawn with the neutral style.
	TierInferred Tier = iota + 1
	// TierConfirmed is drawn with the body's colour.
	TierConfirmed
)

func (t Tier) String() string {
	switch t {
	case TierInferred:
		return "inferred"
	case TierConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("Tier(%d)", uint8(t))
	}
}

// MarshalText encodes the tier name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(text []byte) error {
	switch string(text) {
	case "inferred":
		*t = TierInferred
	case "confirmed":
		*t = TierConfirmed
	default:
		return fmt.Errorf("unknown tier %q", text)
	}
	return nil
}

// PoseName names a derived pose signal.
type PoseName string

const (
	PoseRightHandOnHead PoseName = "RightHandOnHead"
	PoseLeftHandOnHead  PoseName = "LeftHandOnHead"
	PoseLeftHandOnHip   PoseName = "LeftHandOnHip"
	PoseRightHandOnHip  PoseName = "RightHandOnHip"
	PoseHandsTogether   PoseName = "HandsTogether"
)

// PoseEvent is a per-frame boolean pose signal.
type PoseEvent struct {
	Name     PoseName `json:"name"`
	Detected bool     `json:"detected"`
}

// BoneDraw is a drawable bone with its projected endpoints.
type BoneDraw struct {
	Bone Bone    `json:"bone"`
	From Point2D `json:"from"`
	To   Point2D `json:"to"`
	Tier Tier    `json:"tier"`
}

// JointDraw is a drawable joint point.
type JointDraw struct {
	Joint JointType `json:"joint"`
	Point Point2D   `json:"point"`
	Tier  Tier      `json:"tier"`
}

// HandMarker marks an open, closed or lasso hand.
type HandMarker struct {
	Joint JointType `json:"joint"`
	State HandState `json:"state"`
	Point Point2D   `json:"point"`
}

// Highlight is an extra marker drawn when a pose is detected.
type Highlight struct {
	Pose  PoseName  `json:"pose"`
	Joint JointType `json:"joint"`
	Point Point2D   `json:"point"`
}

// Rect is an axis-aligned rectangle in display space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// EdgeRect is an overlay rectangle for a clipped display edge.
type EdgeRect struct {
	Slot int        `json:"slot"`
	Edge FrameEdges `json:"edge"`
	Rect Rect       `json:"rect"`
}

// BodyRender is the render-ready description of one tracked body.
type BodyRender struct {
	Slot       int          `json:"slot"`
	TrackingID uint64       `json:"trackingId"`
	ColorIndex int          `json:"colorIndex"`
	Bones      []BoneDraw   `json:"bones"`
	Joints     []JointDraw  `json:"joints"`
	Hands      []HandMarker `json:"hands"`
	Poses      []PoseEvent  `json:"poses"`
	Highlights []Highlight  `json:"highlights"`
}

// Detected returns the names of the poses detected for this body.
func (b *BodyRender) Detected() []PoseName {
	var out []PoseName
	for _, p := range b.Poses {
		if p.Detected {
			out = append(out, p.Name)
		}
	}
	return out
}

// RenderFrame is the output of processing one frame.
type RenderFrame struct {
	Sequence uint64       `json:"sequence"`
	Width    float64      `json:"width"`
	Height   float64      `json:"height"`
	Clear    bool         `json:"clear"`
	Edges    []EdgeRect   `json:"edges"`
	Bodies   []BodyRender `json:"bodies"`
}

// PoseEvents returns every pose event of every body, in slot order.
func (r *RenderFrame) PoseEvents() []PoseEvent {
	var out []PoseEvent
	for i := range r.Bodies {
		out = append(out, r.Bodies[i].Poses...)
	}
	return out
}
