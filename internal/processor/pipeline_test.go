package processor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodybasics/posetrack/internal/dispatcher"
	"github.com/bodybasics/posetrack/internal/projector"
	"github.com/bodybasics/posetrack/internal/source"
	"github.com/bodybasics/posetrack/pkg/core"
)

type recordingPublisher struct {
	mu     sync.Mutex
	frames []*core.RenderFrame
	status []core.SensorStatus
}

func (r *recordingPublisher) Dispatch(e dispatcher.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e.Kind {
	case dispatcher.KindFrame:
		r.frames = append(r.frames, e.Frame)
	case dispatcher.KindStatus:
		r.status = append(r.status, e.Status)
	}
	return nil
}

type fixedStatus struct{ calls []bool }

func (f *fixedStatus) HandleAvailability(available bool) core.SensorStatus {
	f.calls = append(f.calls, available)
	if available {
		return core.StatusRunning
	}
	return core.StatusNotAvailable
}

func TestPipeline_RunsUntilUnavailable(t *testing.T) {
	frames := []core.Frame{emptyFrame(1), emptyFrame(2), emptyFrame(3)}
	frames[2].Bodies[0] = spreadBody()

	sensor := source.NewReplayFrames(frames, source.ReplayConfig{FPS: 200}, identity, zerolog.Nop())
	pub := &recordingPublisher{}
	status := &fixedStatus{}

	p, err := NewPipeline(sensor, newTestProcessor(), pub, zerolog.Nop(), WithStatusHandler(status), StopWhenUnavailable())
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	pub.mu.Lock()
	defer pub.mu.Unlock()

	assert.Equal(t, []core.SensorStatus{core.StatusRunning, core.StatusNotAvailable}, pub.status)
	assert.Equal(t, []bool{true, false}, status.calls)
	require.NotEmpty(t, pub.frames)
	last := pub.frames[len(pub.frames)-1]
	assert.Equal(t, uint64(3), last.Sequence)
	assert.Len(t, last.Bodies, 1)
}

func TestPipeline_NoSensor(t *testing.T) {
	pub := &recordingPublisher{}
	p, err := NewPipeline(nil, newTestProcessor(), pub, zerolog.Nop())
	require.NoError(t, err)

	err = p.Run(context.Background())

	assert.ErrorIs(t, err, source.ErrNoSensor)
	assert.Equal(t, []core.SensorStatus{core.StatusNoSensor}, pub.status)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestPipeline_ContextCancel(t *testing.T) {
	sensor := source.NewReplayFrames([]core.Frame{emptyFrame(1)}, source.ReplayConfig{FPS: 100, Loop: true}, identity, zerolog.Nop())
	p, err := NewPipeline(sensor, newTestProcessor(), &recordingPublisher{}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
	assert.NoError(t, p.Close())
}

func TestMapperFor(t *testing.T) {
	assert.Equal(t, projector.DefaultPinhole(), MapperFor(nil))

	sensor := source.NewReplayFrames(nil, source.ReplayConfig{}, nil, zerolog.Nop())
	assert.Equal(t, projector.DefaultPinhole(), MapperFor(sensor))
}

func TestPipeline_SensorMapperDrivesProjection(t *testing.T) {
	doubled := projector.MapperFunc(func(p core.Position3D) core.Point2D {
		return core.Point2D{X: 2 * p.X, Y: 2*p.Y + 1}
	})
	frames := []core.Frame{emptyFrame(1)}
	frames[0].Bodies[0] = spreadBody()

	sensor := source.NewReplayFrames(frames, source.ReplayConfig{FPS: 200}, doubled, zerolog.Nop())
	proc := New(Config{DisplayWidth: 512, DisplayHeight: 424}, MapperFor(sensor), nil)
	pub := &recordingPublisher{}

	p, err := NewPipeline(sensor, proc, pub, zerolog.Nop(), StopWhenUnavailable())
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	pub.mu.Lock()
	defer pub.mu.Unlock()

	require.NotEmpty(t, pub.frames)
	last := pub.frames[len(pub.frames)-1]
	require.Len(t, last.Bodies, 1)
	require.Len(t, last.Bodies[0].Joints, core.JointCount)
	for _, jd := range last.Bodies[0].Joints {
		want := core.Point2D{X: float64(jd.Joint) * 80, Y: float64(jd.Joint)*50 + 1}
		assert.Equal(t, want, jd.Point, "joint %s", jd.Joint)
	}
}
