// Package influx writes per-body pose metrics to InfluxDB, falling back to a
// gzipped line-protocol backup file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/bodybasics/posetrack/internal/config"
	"github.com/bodybasics/posetrack/pkg/core"
)

// Measurement names
const (
	MeasurementPose   = "pose"
	MeasurementStatus = "sensor_status"
)

const retentionSeconds = 60 * 60 * 24 * 90

// Sink handles the InfluxDB connection and writes.
type Sink struct {
	cfg     config.InfluxConfig
	session core.Session
	logger  zerolog.Logger

	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backupFile *os.File
	backup     *gzip.Writer
	isValid    bool

	now    func() time.Time
	mu     sync.Mutex
	closed bool
}

// New creates a new InfluxDB sink.
func New(cfg config.InfluxConfig, session core.Session, logger zerolog.Logger) *Sink {
	return &Sink{
		cfg:     cfg,
		session: session,
		logger:  logger.With().Str("sink", "influx").Logger(),
		now:     time.Now,
	}
}

// Init connects to InfluxDB. When the server cannot be reached, points go
// to the backup file instead.
func (s *Sink) Init() error {
	s.client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", s.cfg.Protocol, s.cfg.Host, s.cfg.Port),
		s.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	running, err := s.client.Ping(ctx)
	if err != nil || !running {
		s.logger.Info().Str("backupPath", s.cfg.BackupPath).
			Msg("Failed to reach InfluxDB, writing to backup file")
		return s.openBackup()
	}

	if err := s.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	s.createWriter()
	s.isValid = true
	s.logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (s *Sink) openBackup() error {
	if s.cfg.BackupPath == "" {
		return fmt.Errorf("influxDB unreachable and no backup path configured")
	}
	file, err := os.OpenFile(s.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	s.backupFile = file
	s.backup = gzip.NewWriter(file)
	return nil
}

func (s *Sink) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := s.client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, s.cfg.Org)
	if err != nil {
		s.logger.Info().Str("org", s.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, s.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %q: %w", s.cfg.Org, err)
		}
	}

	buckets := s.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, s.cfg.Bucket); err != nil {
		s.logger.Info().Str("bucket", s.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = buckets.CreateBucketWithName(ctx, org, s.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %q: %w", s.cfg.Bucket, err)
		}
	}
	return nil
}

func (s *Sink) createWriter() {
	s.writer = s.client.WriteAPI(s.cfg.Org, s.cfg.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			s.logger.Error().Err(writeErr).Str("bucket", s.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(s.writer.Errors())
}

// WriteFrame writes one point per tracked body.
func (s *Sink) WriteFrame(f *core.RenderFrame) error {
	ts := s.now()
	for i := range f.Bodies {
		if err := s.writePoint(BodyPoint(s.session, f.Sequence, &f.Bodies[i], ts)); err != nil {
			return err
		}
	}
	return nil
}

// SetStatus writes a status point.
func (s *Sink) SetStatus(status core.SensorStatus) error {
	point := influxdb2_write.NewPointWithMeasurement(MeasurementStatus).
		AddTag("session", s.session.ID.String()).
		AddField("status", status.Text()).
		AddField("running", status == core.StatusRunning).
		SetTime(s.now())
	return s.writePoint(point)
}

// writePoint writes a point to InfluxDB or the backup file.
func (s *Sink) writePoint(point *influxdb2_write.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("influx sink closed")
	}
	if s.isValid {
		s.writer.WritePoint(point)
		return nil
	}
	if s.backup == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := s.backup.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the client and backup file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.writer != nil {
		s.writer.Flush()
	}
	if s.client != nil {
		s.client.Close()
	}
	if s.backup != nil {
		if err := s.backup.Close(); err != nil {
			_ = s.backupFile.Close()
			return fmt.Errorf("error closing backup writer: %w", err)
		}
		return s.backupFile.Close()
	}
	return nil
}

// BodyPoint builds the pose point for one body: one boolean field per pose
// plus drawable joint and bone counts.
func BodyPoint(session core.Session, seq uint64, body *core.BodyRender, ts time.Time) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement(MeasurementPose).
		AddTag("session", session.ID.String()).
		AddTag("slot", strconv.Itoa(body.Slot)).
		AddTag("trackingId", strconv.FormatUint(body.TrackingID, 10)).
		AddField("sequence", seq).
		AddField("bones", len(body.Bones)).
		SetTime(ts)

	var confirmed, inferred int
	for _, j := range body.Joints {
		if j.Tier == core.TierConfirmed {
			confirmed++
		} else {
			inferred++
		}
	}
	point.AddField("joints_confirmed", confirmed).
		AddField("joints_inferred", inferred)

	for _, p := range body.Poses {
		point.AddField(string(p.Name), p.Detected)
	}
	return point
}
