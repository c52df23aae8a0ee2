package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodybasics/posetrack/internal/channel"
	"github.com/bodybasics/posetrack/internal/parser"
	"github.com/bodybasics/posetrack/pkg/core"
)

func framesN(n int) []core.Frame {
	out := make([]core.Frame, n)
	for i := range out {
		bodies := make([]core.Body, core.BodySlots)
		for j := range bodies {
			bodies[j].Reset()
		}
		bodies[0].Tracked = true
		bodies[0].TrackingID = uint64(100 + i)
		out[i] = core.Frame{Sequence: uint64(i + 1), Bodies: bodies}
	}
	return out
}

func waitAvailability(t *testing.T, s Sensor) bool {
	t.Helper()
	select {
	case v := <-s.Availability():
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for availability")
		return false
	}
}

func TestFrame_ReleaseIdempotent(t *testing.T) {
	f := NewFrame(framesN(1)[0])
	require.Len(t, f.Bodies, core.BodySlots)
	assert.Equal(t, uint64(100), f.Bodies[0].TrackingID)

	f.Release()
	f.Release()
	assert.Nil(t, f.Bodies)

	var nilFrame *Frame
	assert.NotPanics(t, func() { nilFrame.Release() })
}

func TestFrame_CopiesBodies(t *testing.T) {
	src := framesN(1)[0]
	f := NewFrame(src)
	defer f.Release()

	src.Bodies[0].TrackingID = 9
	assert.Equal(t, uint64(100), f.Bodies[0].TrackingID)

	dst := make([]core.Body, core.BodySlots)
	assert.Equal(t, core.BodySlots, f.GetAndRefreshBodyData(dst))
	assert.True(t, dst[0].Tracked)
}

func TestFrame_ShortInputPadded(t *testing.T) {
	f := NewFrame(core.Frame{Sequence: 1, Bodies: []core.Body{{Tracked: true}}})
	defer f.Release()

	require.Len(t, f.Bodies, core.BodySlots)
	assert.True(t, f.Bodies[0].Tracked)
	for _, b := range f.Bodies[1:] {
		assert.False(t, b.Tracked)
	}
}

func TestReplay_PlaysAllFramesThenUnavailable(t *testing.T) {
	out := channel.NewBuffered[*Frame](16)
	r := NewReplayFrames(framesN(3), ReplayConfig{FPS: 500}, nil, zerolog.Nop())
	defer r.Close()

	require.NoError(t, r.Open(context.Background(), out))
	assert.True(t, waitAvailability(t, r))
	assert.False(t, waitAvailability(t, r))

	require.Equal(t, 3, out.Len())
	for i := 1; i <= 3; i++ {
		f := <-out.Receive()
		assert.Equal(t, uint64(i), f.Sequence)
		f.Release()
	}
}

func TestReplay_Loop(t *testing.T) {
	out := channel.NewLatest[*Frame](ReleaseFrame)
	r := NewReplayFrames(framesN(2), ReplayConfig{FPS: 1000, Loop: true}, nil, zerolog.Nop())

	require.NoError(t, r.Open(context.Background(), out))
	assert.Eventually(t, func() bool { return out.Sent() > 5 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, r.Close())

	out.Close()
	assert.Equal(t, out.Sent(), out.Dropped())
}

func TestReplay_CloseIdempotent(t *testing.T) {
	r := NewReplayFrames(framesN(1), ReplayConfig{}, nil, zerolog.Nop())
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())

	err := r.Open(context.Background(), channel.NewBuffered[*Frame](1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReplay_OpenTwice(t *testing.T) {
	r := NewReplayFrames(framesN(1), ReplayConfig{}, nil, zerolog.Nop())
	defer r.Close()

	out := channel.NewBuffered[*Frame](4)
	require.NoError(t, r.Open(context.Background(), out))
	assert.Error(t, r.Open(context.Background(), out))
}

func TestReplay_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	data := `{"seq":1,"bodies":[{"slot":3,"tracked":true,"joints":{"Head":{"p":[0,0.4,2],"s":"Tracked"}}}]}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	out := channel.NewBuffered[*Frame](4)
	r := NewReplay(ReplayConfig{Path: path, FPS: 500}, parser.NewParser(zerolog.Nop()), nil, zerolog.Nop())
	defer r.Close()

	require.NoError(t, r.Open(context.Background(), out))
	assert.True(t, waitAvailability(t, r))
	assert.False(t, waitAvailability(t, r))

	f := <-out.Receive()
	defer f.Release()
	assert.True(t, f.Bodies[3].Tracked)
	assert.Equal(t, core.Tracked, f.Bodies[3].Joints[core.Head].State)
}

func TestReplay_MissingFile(t *testing.T) {
	r := NewReplay(ReplayConfig{Path: filepath.Join(t.TempDir(), "missing.jsonl")}, parser.NewParser(zerolog.Nop()), nil, zerolog.Nop())
	defer r.Close()

	assert.Error(t, r.Open(context.Background(), channel.NewBuffered[*Frame](1)))
}

func TestCloseSensor_Nil(t *testing.T) {
	assert.NoError(t, CloseSensor(nil))
}
