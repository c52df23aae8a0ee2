package processor

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodybasics/posetrack/internal/channel"
	"github.com/bodybasics/posetrack/internal/projector"
	"github.com/bodybasics/posetrack/internal/skeleton"
	"github.com/bodybasics/posetrack/internal/source"
	"github.com/bodybasics/posetrack/pkg/core"
)

// identity maps sensor x/y straight onto display x/y.
var identity = projector.MapperFunc(func(p core.Position3D) core.Point2D {
	return core.Point2D{X: p.X, Y: p.Y}
})

func newTestProcessor() *Processor {
	return New(Config{DisplayWidth: 512, DisplayHeight: 424}, identity, nil)
}

func emptyFrame(seq uint64) core.Frame {
	bodies := make([]core.Body, core.BodySlots)
	for i := range bodies {
		bodies[i].Reset()
	}
	return core.Frame{Sequence: seq, Bodies: bodies}
}

// spreadBody returns a fully tracked body with every joint far apart.
func spreadBody() core.Body {
	b := core.NewBody()
	b.Tracked = true
	for i := range b.Joints {
		b.Joints[i].State = core.Tracked
		b.Joints[i].Position = core.Position3D{X: float64(i) * 40, Y: float64(i) * 25, Z: 2}
	}
	return b
}

func TestProcess_ZeroBodies(t *testing.T) {
	p := newTestProcessor()

	rf := p.Process(emptyFrame(1))

	assert.True(t, rf.Clear)
	assert.Empty(t, rf.Bodies)
	assert.Empty(t, rf.Edges)
	assert.Empty(t, rf.PoseEvents())
	assert.Equal(t, 512.0, rf.Width)
	assert.Equal(t, 424.0, rf.Height)
}

func TestProcess_HandsTogether(t *testing.T) {
	p := newTestProcessor()
	f := emptyFrame(1)
	b := spreadBody()
	b.Joints[core.HandLeft].Position = core.Position3D{X: 100, Y: 100, Z: 1}
	b.Joints[core.HandRight].Position = core.Position3D{X: 100, Y: 100, Z: 1}
	f.Bodies[0] = b

	rf := p.Process(f)

	require.Len(t, rf.Bodies, 1)
	assert.Equal(t, []core.PoseName{core.PoseHandsTogether}, rf.Bodies[0].Detected())
	require.Len(t, rf.Bodies[0].Highlights, 1)
	assert.Equal(t, core.HandRight, rf.Bodies[0].Highlights[0].Joint)
}

func TestProcess_NotTrackedHandRight(t *testing.T) {
	p := newTestProcessor()
	f := emptyFrame(1)
	b := spreadBody()
	b.Joints[core.HandRight].State = core.NotTracked
	b.Joints[core.HandRight].Position = b.Joints[core.Head].Position
	f.Bodies[2] = b

	rf := p.Process(f)

	require.Len(t, rf.Bodies, 1)
	assert.NotContains(t, rf.Bodies[0].Detected(), core.PoseRightHandOnHead)
	for _, bd := range rf.Bodies[0].Bones {
		assert.NotEqual(t, core.HandRight, bd.Bone[0])
		assert.NotEqual(t, core.HandRight, bd.Bone[1])
	}
}

func TestProcess_HighlightNeedsTrackedJoint(t *testing.T) {
	p := newTestProcessor()
	f := emptyFrame(1)
	b := spreadBody()
	b.Joints[core.HandRight].Position = core.Position3D{X: 100, Y: 100, Z: 1}
	b.Joints[core.Head].Position = core.Position3D{X: 100, Y: 100, Z: 1}
	b.Joints[core.HandLeft].State = core.NotTracked
	f.Bodies[0] = b

	rf := p.Process(f)

	require.Len(t, rf.Bodies, 1)
	assert.Equal(t, []core.PoseName{core.PoseRightHandOnHead}, rf.Bodies[0].Detected())
	assert.Empty(t, rf.Bodies[0].Highlights)
}

func TestProcess_NegativeDepthClamped(t *testing.T) {
	var seen []float64
	mapper := projector.MapperFunc(func(p core.Position3D) core.Point2D {
		seen = append(seen, p.Z)
		return core.Point2D{X: p.X, Y: p.Y}
	})
	p := New(Config{}, mapper, nil)
	f := emptyFrame(1)
	b := spreadBody()
	b.Joints[core.FootLeft].State = core.Inferred
	b.Joints[core.FootLeft].Position.Z = -0.5
	f.Bodies[0] = b

	p.Process(f)

	require.Len(t, seen, core.JointCount)
	assert.Equal(t, projector.InferredZPositionClamp, seen[core.FootLeft])
	assert.Equal(t, 2.0, seen[core.Head])
}

func TestProcess_NonFiniteProjectionSkipped(t *testing.T) {
	mapper := projector.MapperFunc(func(p core.Position3D) core.Point2D {
		if p.X == 0 && p.Y == 0 {
			return core.Point2D{X: math.Inf(-1), Y: 0}
		}
		return core.Point2D{X: p.X, Y: p.Y}
	})
	p := New(Config{}, mapper, nil)
	f := emptyFrame(1)
	f.Bodies[0] = spreadBody() // SpineBase sits at the origin

	rf := p.Process(f)

	require.Len(t, rf.Bodies, 1)
	for _, jd := range rf.Bodies[0].Joints {
		assert.NotEqual(t, core.SpineBase, jd.Joint)
	}
	assert.Len(t, rf.Bodies[0].Joints, core.JointCount-1)
}

func TestProcess_ColorIndexBySlot(t *testing.T) {
	p := newTestProcessor()
	f := emptyFrame(1)
	f.Bodies[1] = spreadBody()
	f.Bodies[5] = spreadBody()

	rf := p.Process(f)

	require.Len(t, rf.Bodies, 2)
	assert.Equal(t, 1, rf.Bodies[0].ColorIndex)
	assert.Equal(t, 5, rf.Bodies[1].ColorIndex)
	assert.Len(t, rf.Bodies[0].Bones, skeleton.BoneCount)
}

func TestProcess_EdgeRects(t *testing.T) {
	p := newTestProcessor()
	f := emptyFrame(1)
	b := spreadBody()
	b.ClippedEdges = core.EdgeBottom | core.EdgeRight
	f.Bodies[3] = b

	rf := p.Process(f)

	require.Len(t, rf.Edges, 2)
	assert.Equal(t, core.EdgeRect{Slot: 3, Edge: core.EdgeBottom, Rect: core.Rect{X: 0, Y: 414, Width: 512, Height: 10}}, rf.Edges[0])
	assert.Equal(t, core.EdgeRect{Slot: 3, Edge: core.EdgeRight, Rect: core.Rect{X: 502, Y: 0, Width: 10, Height: 424}}, rf.Edges[1])
}

func TestProcess_HandMarkers(t *testing.T) {
	p := newTestProcessor()
	f := emptyFrame(1)
	b := spreadBody()
	b.HandLeft = core.HandLasso
	b.HandRight = core.HandUnknown
	f.Bodies[0] = b

	c := spreadBody()
	c.HandLeft = core.HandOpen
	c.HandRight = core.HandClosed
	c.Joints[core.HandRight].State = core.NotTracked
	f.Bodies[1] = c

	rf := p.Process(f)

	require.Len(t, rf.Bodies, 2)
	require.Len(t, rf.Bodies[0].Hands, 1)
	assert.Equal(t, core.HandLasso, rf.Bodies[0].Hands[0].State)
	assert.Equal(t, core.HandLeft, rf.Bodies[0].Hands[0].Joint)

	require.Len(t, rf.Bodies[1].Hands, 1)
	assert.Equal(t, core.HandOpen, rf.Bodies[1].Hands[0].State)
}

func TestTick_NoDataRetainsOutput(t *testing.T) {
	p := newTestProcessor()
	mb := channel.NewLatest[*source.Frame](source.ReleaseFrame)
	f := emptyFrame(1)
	f.Bodies[0] = spreadBody()
	mb.Send(source.NewFrame(f))

	first, fresh := p.Tick(mb)
	require.True(t, fresh)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	second, fresh := p.Tick(mb)
	assert.False(t, fresh)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestTick_BeforeFirstFrame(t *testing.T) {
	p := newTestProcessor()
	mb := channel.NewLatest[*source.Frame](nil)

	out, fresh := p.Tick(mb)

	assert.Nil(t, out)
	assert.False(t, fresh)
}

func TestTick_ReleasesFrame(t *testing.T) {
	p := newTestProcessor()
	mb := channel.NewLatest[*source.Frame](nil)
	f := source.NewFrame(emptyFrame(8))
	mb.Send(f)

	out, fresh := p.Tick(mb)

	require.True(t, fresh)
	assert.Equal(t, uint64(8), out.Sequence)
	assert.Nil(t, f.Bodies)
}

func TestTick_OnlyNewestRendered(t *testing.T) {
	p := newTestProcessor()
	mb := channel.NewLatest[*source.Frame](source.ReleaseFrame)
	for seq := uint64(1); seq <= 3; seq++ {
		mb.Send(source.NewFrame(emptyFrame(seq)))
	}

	out, fresh := p.Tick(mb)

	require.True(t, fresh)
	assert.Equal(t, uint64(3), out.Sequence)
	assert.Equal(t, uint64(2), mb.Dropped())
}

func TestTick_UntrackedAfterTrackedClearsBody(t *testing.T) {
	p := newTestProcessor()
	f := emptyFrame(1)
	f.Bodies[0] = spreadBody()
	p.Process(f)

	rf := p.Process(emptyFrame(2))

	assert.Empty(t, rf.Bodies)
}

func TestRenderFrame_JSONShape(t *testing.T) {
	p := newTestProcessor()
	f := emptyFrame(1)
	b := spreadBody()
	b.ClippedEdges = core.EdgeTop
	f.Bodies[0] = b

	data, err := json.Marshal(p.Process(f))
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"edge":"Top"`)
	assert.Contains(t, s, `"tier":"confirmed"`)
	assert.Contains(t, s, `"bone":["Head","Neck"]`)
	assert.Contains(t, s, `"name":"HandsTogether"`)
}
