// Package pose derives boolean pose signals from the proximity of pairs of
// projected body landmarks.
package pose

import (
	"fmt"
	"math"
	"strings"

	"github.com/bodybasics/posetrack/pkg/core"
)

// DefaultThreshold is the touching threshold in display-space units.
const DefaultThreshold = 0.25

// Metric selects how the distance between two landmarks is measured.
type Metric uint8

const (
	// SignedSum is (Ax-Bx)+(Ay-By). Opposite-signed axis differences cancel,
	// so far-apart points can report touching. It is the default for
	// compatibility with recorded sessions.
	SignedSum Metric = iota
	// AbsSum is the Manhattan distance |Ax-Bx|+|Ay-By|.
	AbsSum
	// Euclidean is the straight-line distance.
	Euclidean
)

func (m Metric) String() string {
	switch m {
	case SignedSum:
		return "signedSum"
	case AbsSum:
		return "absSum"
	case Euclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("Metric(%d)", uint8(m))
	}
}

// ParseMetric parses a metric name; an empty name is SignedSum.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(s) {
	case "", "signedsum":
		return SignedSum, nil
	case "abssum", "manhattan":
		return AbsSum, nil
	case "euclidean":
		return Euclidean, nil
	default:
		return SignedSum, fmt.Errorf("unknown proximity metric: %q", s)
	}
}

// Distance returns the metric's distance between a and b. For SignedSum the
// result is signed.
func (m Metric) Distance(a, b core.Point2D) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	switch m {
	case AbsSum:
		return math.Abs(dx) + math.Abs(dy)
	case Euclidean:
		return math.Hypot(dx, dy)
	default:
		return dx + dy
	}
}

// Touching reports whether |(Ax-Bx)+(Ay-By)| <= threshold.
func Touching(a, b core.Point2D, threshold float64) bool {
	return SignedSum.Touching(a, b, threshold)
}

// Touching reports whether the distance between a and b is within threshold.
func (m Metric) Touching(a, b core.Point2D, threshold float64) bool {
	return math.Abs(m.Distance(a, b)) <= threshold
}

// Definition names a pose by the two landmarks that must touch. Highlight,
// when set, is the joint a renderer marks while the pose is detected.
type Definition struct {
	Name      core.PoseName
	A, B      core.JointType
	Highlight *core.JointType
}

func jointRef(j core.JointType) *core.JointType { return &j }

// DefaultPoses is the pose set evaluated every frame.
var DefaultPoses = []Definition{
	{Name: core.PoseRightHandOnHead, A: core.HandRight, B: core.Head, Highlight: jointRef(core.HandLeft)},
	{Name: core.PoseLeftHandOnHead, A: core.HandLeft, B: core.Head},
	{Name: core.PoseLeftHandOnHip, A: core.HandLeft, B: core.HipLeft},
	{Name: core.PoseRightHandOnHip, A: core.HandRight, B: core.HipRight},
	{Name: core.PoseHandsTogether, A: core.HandLeft, B: core.HandRight, Highlight: jointRef(core.HandRight)},
}

// Classifier evaluates a fixed pose set against one body.
type Classifier struct {
	Threshold float64
	Metric    Metric
	Poses     []Definition
}

// NewClassifier returns a classifier over DefaultPoses. A non-positive
// threshold falls back to DefaultThreshold.
func NewClassifier(threshold float64, metric Metric) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{
		Threshold: threshold,
		Metric:    metric,
		Poses:     DefaultPoses,
	}
}

// Evaluate returns one event per pose, in definition order. A pose whose
// landmarks are NotTracked or unprojectable is not detected.
func (c *Classifier) Evaluate(body *core.Body, points *[core.JointCount]core.ProjectedJoint) []core.PoseEvent {
	events := make([]core.PoseEvent, len(c.Poses))
	for i, def := range c.Poses {
		events[i] = core.PoseEvent{Name: def.Name, Detected: c.touching(body, points, def.A, def.B)}
	}
	return events
}

// Highlights returns a marker for each detected pose whose highlight joint
// is tracked and projectable. events must come from Evaluate with the same
// classifier and body.
func (c *Classifier) Highlights(body *core.Body, events []core.PoseEvent, points *[core.JointCount]core.ProjectedJoint) []core.Highlight {
	var out []core.Highlight
	for i, ev := range events {
		if !ev.Detected || i >= len(c.Poses) || c.Poses[i].Highlight == nil {
			continue
		}
		j := *c.Poses[i].Highlight
		if body.Joints[j].State == core.NotTracked || !points[j].Valid {
			continue
		}
		out = append(out, core.Highlight{Pose: ev.Name, Joint: j, Point: points[j].Point})
	}
	return out
}

func (c *Classifier) touching(body *core.Body, points *[core.JointCount]core.ProjectedJoint, a, b core.JointType) bool {
	if body.Joints[a].State == core.NotTracked || body.Joints[b].State == core.NotTracked {
		return false
	}
	pa, pb := points[a], points[b]
	if !pa.Valid || !pb.Valid {
		return false
	}
	return c.Metric.Touching(pa.Point, pb.Point, c.Threshold)
}
