package terminal

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodybasics/posetrack/pkg/core"
)

func newTestSink(t *testing.T) (*Sink, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(64, 24)

	s := New(screen, zerolog.Nop())
	require.NoError(t, s.Init())
	t.Cleanup(func() {
		_ = s.Close()
		screen.Fini()
	})
	return s, screen
}

func runeAt(screen tcell.Screen, x, y int) rune {
	r, _, _, _ := screen.GetContent(x, y)
	return r
}

func rowText(screen tcell.Screen, y, width int) string {
	var sb strings.Builder
	for x := 0; x < width; x++ {
		sb.WriteRune(runeAt(screen, x, y))
	}
	return strings.TrimRight(sb.String(), " ")
}

func testFrame() *core.RenderFrame {
	return &core.RenderFrame{
		Sequence: 3,
		Width:    512,
		Height:   424,
		Clear:    true,
		Edges: []core.EdgeRect{
			{Slot: 0, Edge: core.EdgeBottom, Rect: core.Rect{X: 0, Y: 414, Width: 512, Height: 10}},
		},
		Bodies: []core.BodyRender{{
			Slot:       0,
			ColorIndex: 0,
			Bones: []core.BoneDraw{{
				Bone: core.Bone{core.Head, core.Neck},
				From: core.Point2D{X: 100, Y: 100},
				To:   core.Point2D{X: 100, Y: 150},
				Tier: core.TierConfirmed,
			}},
			Joints: []core.JointDraw{
				{Joint: core.Head, Point: core.Point2D{X: 100, Y: 100}, Tier: core.TierConfirmed},
				{Joint: core.Neck, Point: core.Point2D{X: 100, Y: 150}, Tier: core.TierInferred},
			},
			Hands: []core.HandMarker{
				{Joint: core.HandLeft, State: core.HandClosed, Point: core.Point2D{X: 300, Y: 200}},
			},
			Poses: []core.PoseEvent{{Name: core.PoseHandsTogether, Detected: true}},
			Highlights: []core.Highlight{
				{Pose: core.PoseHandsTogether, Joint: core.HandRight, Point: core.Point2D{X: 400, Y: 300}},
			},
		}},
	}
}

func TestWriteFrame_DrawsBody(t *testing.T) {
	s, screen := newTestSink(t)

	require.NoError(t, s.SetStatus(core.StatusRunning))
	require.NoError(t, s.WriteFrame(testFrame()))

	// 512x424 display onto 64x23 cells
	assert.Equal(t, GlyphJoint, runeAt(screen, 12, 5))
	assert.Equal(t, GlyphBoneConfirmed, runeAt(screen, 12, 6))
	assert.Equal(t, GlyphJoint, runeAt(screen, 12, 8))
	assert.Equal(t, GlyphHandClosed, runeAt(screen, 37, 10))
	assert.Equal(t, GlyphHighlight, runeAt(screen, 50, 16))

	_, _, style, _ := screen.GetContent(12, 8)
	fg, _, _ := style.Decompose()
	assert.Equal(t, tcell.ColorGray, fg)

	_, _, style, _ = screen.GetContent(12, 5)
	fg, _, _ = style.Decompose()
	assert.Equal(t, tcell.ColorRed, fg)
}

func TestWriteFrame_DrawsEdgeBar(t *testing.T) {
	s, screen := newTestSink(t)

	require.NoError(t, s.WriteFrame(testFrame()))

	for x := 0; x < 64; x++ {
		require.Equal(t, GlyphEdge, runeAt(screen, x, 22), "x=%d", x)
	}
	assert.NotEqual(t, GlyphEdge, runeAt(screen, 0, 21))
}

func TestStatusLine(t *testing.T) {
	s, screen := newTestSink(t)

	require.NoError(t, s.SetStatus(core.StatusNoSensor))
	assert.Equal(t, "No ready sensor found", rowText(screen, 23, 64))

	require.NoError(t, s.SetStatus(core.StatusRunning))
	require.NoError(t, s.WriteFrame(testFrame()))
	assert.Equal(t, "Running | frame 3 | bodies 1 | 0: HandsTogether", rowText(screen, 23, 64))
}

func TestEmptyFrameClears(t *testing.T) {
	s, screen := newTestSink(t)

	require.NoError(t, s.WriteFrame(testFrame()))
	require.NoError(t, s.WriteFrame(&core.RenderFrame{Sequence: 4, Width: 512, Height: 424, Clear: true}))

	assert.Equal(t, ' ', runeAt(screen, 12, 5))
	assert.Equal(t, ' ', runeAt(screen, 0, 22))
}

func TestWriteAfterCloseIsNoop(t *testing.T) {
	s, _ := newTestSink(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.NoError(t, s.WriteFrame(testFrame()))
}

func TestLine(t *testing.T) {
	var cells [][2]int
	line(0, 0, 3, 1, func(x, y int) { cells = append(cells, [2]int{x, y}) })

	require.Len(t, cells, 4)
	assert.Equal(t, [2]int{0, 0}, cells[0])
	assert.Equal(t, [2]int{3, 1}, cells[3])

	cells = nil
	line(2, 2, 2, 2, func(x, y int) { cells = append(cells, [2]int{x, y}) })
	assert.Equal(t, [][2]int{{2, 2}}, cells)
}

func TestHandGlyph(t *testing.T) {
	assert.Equal(t, GlyphHandOpen, handGlyph(core.HandOpen))
	assert.Equal(t, GlyphHandClosed, handGlyph(core.HandClosed))
	assert.Equal(t, GlyphHandLasso, handGlyph(core.HandLasso))
}

// A joint very close to the sensor projects finite but far outside the
// display; drawing must clip rather than walk every cell to it.
func TestWriteFrame_FarOffScreenBone(t *testing.T) {
	s, screen := newTestSink(t)

	far := core.Point2D{X: 1.09636800254878e+11, Y: 205.395}
	f := &core.RenderFrame{
		Sequence: 7,
		Width:    512,
		Height:   424,
		Bodies: []core.BodyRender{{
			Bones: []core.BoneDraw{
				{Bone: core.Bone{core.WristRight, core.HandRight}, From: core.Point2D{X: 100, Y: 205.395}, To: far, Tier: core.TierConfirmed},
				{Bone: core.Bone{core.HandRight, core.HandTipRight}, From: far, To: core.Point2D{X: -far.X, Y: 300}, Tier: core.TierInferred},
			},
			Joints: []core.JointDraw{{Joint: core.HandRight, Point: far, Tier: core.TierConfirmed}},
			Hands:  []core.HandMarker{{Joint: core.HandRight, State: core.HandOpen, Point: far}},
		}},
	}

	done := make(chan error, 1)
	go func() { done <- s.WriteFrame(f) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WriteFrame did not return")
	}

	// row of 205.395 on a 64x23 grid is 11; the first bone runs to the right edge
	assert.Equal(t, GlyphBoneConfirmed, runeAt(screen, 12, 11))
	assert.Equal(t, GlyphBoneConfirmed, runeAt(screen, 63, 11))
}

func TestViewportClip(t *testing.T) {
	v := newViewport(512, 424, 64, 23)

	x0, y0, x1, y1, ok := v.clip(core.Point2D{X: 100, Y: 100}, core.Point2D{X: 100, Y: 150})
	require.True(t, ok)
	assert.Equal(t, [4]int{12, 5, 12, 8}, [4]int{x0, y0, x1, y1})

	x0, y0, x1, y1, ok = v.clip(core.Point2D{X: -1e12, Y: 212}, core.Point2D{X: 1e12, Y: 212})
	require.True(t, ok)
	assert.Equal(t, [4]int{0, 11, 63, 11}, [4]int{x0, y0, x1, y1})

	_, _, _, _, ok = v.clip(core.Point2D{X: 600, Y: 100}, core.Point2D{X: 1e12, Y: 100})
	assert.False(t, ok, "entirely right of the grid")

	_, _, _, _, ok = v.clip(core.Point2D{X: 100, Y: -5}, core.Point2D{X: 400, Y: -1e9})
	assert.False(t, ok, "entirely above the grid")

	_, _, _, _, ok = v.clip(core.Point2D{X: math.Inf(1), Y: 0}, core.Point2D{X: 100, Y: 100})
	assert.False(t, ok)
}

func TestCellIndex(t *testing.T) {
	assert.Equal(t, 12, cellIndex(12.5, 64))
	assert.Equal(t, -1, cellIndex(-0.5, 64))
	assert.Equal(t, 64, cellIndex(1e300, 64))
	assert.Equal(t, -1, cellIndex(math.NaN(), 64))
}
