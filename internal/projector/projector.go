// Package projector maps sensor-space joint positions into display space.
package projector

import (
	"math"

	"github.com/bodybasics/posetrack/pkg/core"
)

// InferredZPositionClamp replaces negative depths before mapping. Inferred
// joints can report z < 0, which some mappers turn into -Inf.
const InferredZPositionClamp = 0.1

// Mapper converts a sensor-space point into display space.
type Mapper interface {
	MapCameraPointToDepthSpace(p core.Position3D) core.Point2D
}

// MapperFunc adapts a function to the Mapper interface.
type MapperFunc func(p core.Position3D) core.Point2D

// MapCameraPointToDepthSpace calls f(p).
func (f MapperFunc) MapCameraPointToDepthSpace(p core.Position3D) core.Point2D {
	return f(p)
}

// ClampDepth returns p with a negative z replaced by InferredZPositionClamp.
func ClampDepth(p core.Position3D) core.Position3D {
	if p.Z < 0 {
		p.Z = InferredZPositionClamp
	}
	return p
}

// Project clamps p and maps it through m. ok is false when the mapper
// returned a non-finite coordinate.
func Project(m Mapper, p core.Position3D) (pt core.Point2D, ok bool) {
	pt = m.MapCameraPointToDepthSpace(ClampDepth(p))
	return pt, finite(pt.X) && finite(pt.Y)
}

// ProjectBody projects every joint of body into out.
func ProjectBody(m Mapper, body *core.Body, out *[core.JointCount]core.ProjectedJoint) {
	for i := range body.Joints {
		pt, ok := Project(m, body.Joints[i].Position)
		out[i] = core.ProjectedJoint{Point: pt, Valid: ok}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
