package pose

import (
	"errors"
	"math"

	"github.com/bodybasics/posetrack/pkg/core"
)

// ErrZeroVector is returned by Angle when either vector has zero length.
var ErrZeroVector = errors.New("zero-length vector")

// Vec2 is a 2D vector in display space.
type Vec2 struct {
	X, Y float64
}

// Vector returns the vector from b to a.
func Vector(a, b core.Point2D) Vec2 {
	return Vec2{X: a.X - b.X, Y: a.Y - b.Y}
}

// Norm returns the length of v.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// Angle returns the angle between v1 and v2 in radians, in [0, pi].
// Not used by any pose in DefaultPoses.
func Angle(v1, v2 Vec2) (float64, error) {
	n1, n2 := v1.Norm(), v2.Norm()
	if n1 == 0 || n2 == 0 {
		return 0, ErrZeroVector
	}
	cos := (v1.X*v2.X + v1.Y*v2.Y) / (n1 * n2)
	// rounding can push cos just outside [-1, 1]
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos), nil
}
