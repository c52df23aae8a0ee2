package influx

import (
	"bufio"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodybasics/posetrack/internal/config"
	"github.com/bodybasics/posetrack/pkg/core"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func unreachableConfig(t *testing.T) config.InfluxConfig {
	t.Helper()
	return config.InfluxConfig{
		Protocol:   "http",
		Host:       "127.0.0.1",
		Port:       "1",
		Org:        "posetrack",
		Bucket:     "poses",
		BackupPath: filepath.Join(t.TempDir(), "backup.log.gz"),
	}
}

func testBody() core.BodyRender {
	return core.BodyRender{
		Slot:       2,
		TrackingID: 72057,
		Bones:      []core.BoneDraw{{Bone: core.Bone{core.Head, core.Neck}, Tier: core.TierConfirmed}},
		Joints: []core.JointDraw{
			{Joint: core.Head, Tier: core.TierConfirmed},
			{Joint: core.Neck, Tier: core.TierConfirmed},
			{Joint: core.HandLeft, Tier: core.TierInferred},
		},
		Poses: []core.PoseEvent{
			{Name: core.PoseHandsTogether, Detected: true},
			{Name: core.PoseLeftHandOnHip, Detected: false},
		},
	}
}

func readBackup(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if sc.Text() != "" {
			lines = append(lines, sc.Text())
		}
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestBodyPoint(t *testing.T) {
	session := core.NewSession("x")
	body := testBody()

	lp := influxdb2_write.PointToLineProtocol(BodyPoint(session, 17, &body, fixedTime), time.Nanosecond)

	assert.True(t, strings.HasPrefix(lp, "pose,"))
	assert.Contains(t, lp, "session="+session.ID.String())
	assert.Contains(t, lp, "slot=2")
	assert.Contains(t, lp, "trackingId=72057")
	assert.Contains(t, lp, "HandsTogether=true")
	assert.Contains(t, lp, "LeftHandOnHip=false")
	assert.Contains(t, lp, "joints_confirmed=2i")
	assert.Contains(t, lp, "joints_inferred=1i")
	assert.Contains(t, lp, "bones=1i")
	assert.Contains(t, lp, "sequence=17u")
	assert.Contains(t, lp, "1772366400000000000")
}

func TestBackupWhenUnreachable(t *testing.T) {
	cfg := unreachableConfig(t)
	s := New(cfg, core.NewSession("rec"), zerolog.Nop())
	s.now = func() time.Time { return fixedTime }
	require.NoError(t, s.Init())
	assert.False(t, s.isValid)

	require.NoError(t, s.SetStatus(core.StatusRunning))
	body := testBody()
	require.NoError(t, s.WriteFrame(&core.RenderFrame{Sequence: 1, Bodies: []core.BodyRender{body, body}}))
	require.NoError(t, s.WriteFrame(&core.RenderFrame{Sequence: 2}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	lines := readBackup(t, cfg.BackupPath)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "sensor_status,"))
	assert.Contains(t, lines[0], `status="Running"`)
	assert.Contains(t, lines[0], "running=true")
	assert.True(t, strings.HasPrefix(lines[1], "pose,"))
	assert.True(t, strings.HasPrefix(lines[2], "pose,"))
}

func TestWriteAfterClose(t *testing.T) {
	s := New(unreachableConfig(t), core.NewSession("rec"), zerolog.Nop())
	require.NoError(t, s.Init())
	require.NoError(t, s.Close())

	assert.Error(t, s.SetStatus(core.StatusNotAvailable))
}

func TestInitWithoutBackupPath(t *testing.T) {
	cfg := unreachableConfig(t)
	cfg.BackupPath = ""
	s := New(cfg, core.NewSession("rec"), zerolog.Nop())

	assert.ErrorContains(t, s.Init(), "no backup path")
	assert.NoError(t, s.Close())
}
