package projector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodybasics/posetrack/pkg/core"
)

// recordingMapper returns the input x/y and remembers the last z it saw.
type recordingMapper struct {
	lastZ float64
}

func (m *recordingMapper) MapCameraPointToDepthSpace(p core.Position3D) core.Point2D {
	m.lastZ = p.Z
	return core.Point2D{X: p.X, Y: p.Y}
}

func TestClampDepth(t *testing.T) {
	tests := []struct {
		name string
		z    float64
		want float64
	}{
		{"negative", -1.5, 0.1},
		{"tiny negative", -1e-9, 0.1},
		{"zero passes through", 0, 0},
		{"positive passes through", 2.25, 2.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampDepth(core.Position3D{X: 1, Y: 2, Z: tt.z})
			assert.Equal(t, tt.want, got.Z)
			assert.Equal(t, 1.0, got.X)
			assert.Equal(t, 2.0, got.Y)
		})
	}
}

func TestProject_ClampsBeforeMapping(t *testing.T) {
	m := &recordingMapper{}

	_, ok := Project(m, core.Position3D{X: 0.5, Y: 0.5, Z: -3})
	require.True(t, ok)
	assert.Equal(t, InferredZPositionClamp, m.lastZ)

	_, ok = Project(m, core.Position3D{Z: 1.75})
	require.True(t, ok)
	assert.Equal(t, 1.75, m.lastZ)
}

func TestProject_NonFinite(t *testing.T) {
	nan := MapperFunc(func(core.Position3D) core.Point2D {
		return core.Point2D{X: math.NaN(), Y: 0}
	})
	_, ok := Project(nan, core.Position3D{Z: 1})
	assert.False(t, ok)

	inf := MapperFunc(func(core.Position3D) core.Point2D {
		return core.Point2D{X: 0, Y: math.Inf(-1)}
	})
	_, ok = Project(inf, core.Position3D{Z: 1})
	assert.False(t, ok)
}

func TestPinhole_Center(t *testing.T) {
	m := DefaultPinhole()

	pt, ok := Project(m, core.Position3D{X: 0, Y: 0, Z: 2})
	require.True(t, ok)
	assert.InDelta(t, m.Cx, pt.X, 1e-9)
	assert.InDelta(t, m.Cy, pt.Y, 1e-9)

	// y up in sensor space is y down in display space
	up, ok := Project(m, core.Position3D{X: 0, Y: 0.5, Z: 2})
	require.True(t, ok)
	assert.Less(t, up.Y, m.Cy)
}

func TestPinhole_ZeroDepthIsNotFinite(t *testing.T) {
	_, ok := Project(DefaultPinhole(), core.Position3D{X: 0, Y: 0, Z: 0})
	assert.False(t, ok)
}

func TestPinhole_NegativeDepthStaysFinite(t *testing.T) {
	pt, ok := Project(DefaultPinhole(), core.Position3D{X: 0.01, Y: 0.01, Z: -0.4})
	require.True(t, ok)
	assert.False(t, math.IsInf(pt.X, 0))
}

func TestProjectBody(t *testing.T) {
	body := core.NewBody()
	body.Joints[core.Head].Position = core.Position3D{X: 3, Y: 4, Z: 1}
	body.Joints[core.HandLeft].Position = core.Position3D{X: 1, Y: 1, Z: 0}

	zeroIsBad := MapperFunc(func(p core.Position3D) core.Point2D {
		if p.Z == 0 {
			return core.Point2D{X: math.Inf(1), Y: math.Inf(1)}
		}
		return core.Point2D{X: p.X, Y: p.Y}
	})

	var out [core.JointCount]core.ProjectedJoint
	ProjectBody(zeroIsBad, &body, &out)

	assert.True(t, out[core.Head].Valid)
	assert.Equal(t, core.Point2D{X: 3, Y: 4}, out[core.Head].Point)
	assert.False(t, out[core.HandLeft].Valid)
}
