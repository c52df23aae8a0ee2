package projector

import "github.com/bodybasics/posetrack/pkg/core"

// Depth frame geometry of the reference sensor.
const (
	DefaultDepthWidth  = 512
	DefaultDepthHeight = 424
)

// Pinhole is a pinhole camera model from sensor space (meters, y up) to
// depth-image space (pixels, y down).
type Pinhole struct {
	Fx, Fy float64
	Cx, Cy float64
	Width  float64
	Height float64
}

// DefaultPinhole returns the intrinsics of the reference depth camera.
func DefaultPinhole() Pinhole {
	return Pinhole{
		Fx:     365.456,
		Fy:     365.456,
		Cx:     254.878,
		Cy:     205.395,
		Width:  DefaultDepthWidth,
		Height: DefaultDepthHeight,
	}
}

// MapCameraPointToDepthSpace projects p. A zero depth yields a non-finite point.
func (m Pinhole) MapCameraPointToDepthSpace(p core.Position3D) core.Point2D {
	return core.Point2D{
		X: m.Fx*p.X/p.Z + m.Cx,
		Y: m.Cy - m.Fy*p.Y/p.Z,
	}
}
