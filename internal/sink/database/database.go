// Package database records pose onsets and sensor status changes through
// gorm to SQLite or Postgres.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/bodybasics/posetrack/internal/config"
	"github.com/bodybasics/posetrack/internal/queue"
	"github.com/bodybasics/posetrack/pkg/core"
)

const flushBatchSize = 500

type onsetKey struct {
	slot       int
	trackingID uint64
	pose       core.PoseName
}

// Sink queues pose onsets and status changes and writes them in batches
type Sink struct {
	cfg     config.DatabaseConfig
	session core.Session
	logger  zerolog.Logger

	db       *gorm.DB
	events   *queue.Queue[PoseEventRecord]
	statuses *queue.Queue[StatusRecord]

	mu      sync.Mutex
	active  map[onsetKey]bool
	lastSeq uint64
	frames  atomic.Uint64

	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	started   bool
}

// New creates a new database sink
func New(cfg config.DatabaseConfig, session core.Session, logger zerolog.Logger) *Sink {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Sink{
		cfg:      cfg,
		session:  session,
		logger:   logger.With().Str("sink", "database").Logger(),
		events:   queue.New[PoseEventRecord](cfg.QueueLimit),
		statuses: queue.New[StatusRecord](cfg.QueueLimit),
		active:   make(map[onsetKey]bool),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Init connects, migrates the schema, creates the session row and starts
// the flush loop.
func (s *Sink) Init() error {
	db, err := Open(s.cfg, s.session.ID.String(), s.logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	s.logger.Info().Msg("Migrating schema")
	if err := s.db.AutoMigrate(Models...); err != nil {
		return s.abortInit(fmt.Errorf("failed to migrate schema: %w", err))
	}

	if err := s.db.Create(&SessionRecord{
		ID:        s.session.ID,
		Source:    s.session.Source,
		StartTime: s.session.StartTime,
	}).Error; err != nil {
		return s.abortInit(fmt.Errorf("failed to create session: %w", err))
	}

	s.started = true
	go s.flushLoop()
	return nil
}

// WriteFrame queues a record for every pose that became detected on a body
// since the previous frame.
func (s *Sink) WriteFrame(f *core.RenderFrame) error {
	s.frames.Add(1)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeq = f.Sequence

	seen := make(map[onsetKey]bool, len(s.active))
	var records []PoseEventRecord
	for i := range f.Bodies {
		body := &f.Bodies[i]
		detected := body.Detected()
		if len(detected) == 0 {
			continue
		}

		var anchor string
		var poses []byte
		for _, name := range detected {
			key := onsetKey{slot: body.Slot, trackingID: body.TrackingID, pose: name}
			seen[key] = true
			if s.active[key] {
				continue
			}
			if poses == nil {
				anchor = anchorWKT(body)
				var err error
				if poses, err = json.Marshal(detected); err != nil {
					return fmt.Errorf("error marshalling active poses: %w", err)
				}
			}
			records = append(records, PoseEventRecord{
				SessionID:   s.session.ID,
				Sequence:    f.Sequence,
				Slot:        body.Slot,
				TrackingID:  body.TrackingID,
				Pose:        string(name),
				Anchor:      anchor,
				ActivePoses: poses,
				Time:        now,
			})
		}
	}
	s.active = seen

	if len(records) > 0 {
		if evicted := s.events.Push(records...); evicted > 0 {
			s.logger.Warn().Int("evicted", evicted).Msg("Pose event queue full, dropping oldest")
		}
	}
	return nil
}

// SetStatus queues a status change
func (s *Sink) SetStatus(status core.SensorStatus) error {
	s.mu.Lock()
	seq := s.lastSeq
	if status != core.StatusRunning {
		// poses restart once the sensor is back
		s.active = make(map[onsetKey]bool)
	}
	s.mu.Unlock()

	s.statuses.Push(StatusRecord{
		SessionID: s.session.ID,
		Sequence:  seq,
		Status:    status.Text(),
		Time:      time.Now().UTC(),
	})
	return nil
}

// Flush writes every queued record.
func (s *Sink) Flush() error {
	if s.db == nil {
		return nil
	}
	for {
		batch := s.statuses.Drain(flushBatchSize)
		if len(batch) == 0 {
			break
		}
		if err := s.db.CreateInBatches(batch, flushBatchSize).Error; err != nil {
			s.requeue(s.statuses.Requeue(batch...), "status")
			return fmt.Errorf("error writing status changes: %w", err)
		}
	}
	for {
		batch := s.events.Drain(flushBatchSize)
		if len(batch) == 0 {
			break
		}
		if err := s.db.CreateInBatches(batch, flushBatchSize).Error; err != nil {
			s.requeue(s.events.Requeue(batch...), "pose_event")
			return fmt.Errorf("error writing pose events: %w", err)
		}
		s.logger.Debug().Int("count", len(batch)).Msg("Wrote pose events")
	}
	return nil
}

func (s *Sink) requeue(evicted int, queue string) {
	if evicted > 0 {
		s.logger.Warn().Int("evicted", evicted).Str("queue", queue).Msg("Requeued batch overflowed queue, dropping oldest")
	}
}

func (s *Sink) flushLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Error().Err(err).Msg("Flush failed")
			}
		}
	}
}

// Close stops the flush loop, writes what is left, finalises the session
// row and closes the connection.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if !s.started {
			err = s.closeDB()
			return
		}
		close(s.stopCh)
		<-s.done

		if flushErr := s.Flush(); flushErr != nil {
			err = flushErr
			s.logger.Error().Err(flushErr).Msg("Final flush failed")
		}
		end := time.Now().UTC()
		if updErr := s.db.Model(&SessionRecord{}).Where("id = ?", s.session.ID).
			Updates(map[string]any{"end_time": end, "frames": s.frames.Load()}).Error; updErr != nil && err == nil {
			err = fmt.Errorf("error finalising session: %w", updErr)
		}
		if dropped := s.events.Dropped(); dropped > 0 {
			s.logger.Warn().Uint64("dropped", dropped).Msg("Pose events dropped during session")
		}
		if closeErr := s.closeDB(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

// abortInit closes a connection Init opened but could not finish setting up.
func (s *Sink) abortInit(err error) error {
	if closeErr := s.closeDB(); closeErr != nil {
		return errors.Join(err, fmt.Errorf("failed to close database: %w", closeErr))
	}
	return err
}

func (s *Sink) closeDB() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying connection, or nil before Init.
func (s *Sink) DB() *gorm.DB {
	return s.db
}

// anchorWKT returns the centroid of the body's drawable joints as a WKT
// point, or "" when no joint is drawable.
func anchorWKT(body *core.BodyRender) string {
	if len(body.Joints) == 0 {
		return ""
	}
	var x, y float64
	for _, j := range body.Joints {
		x += j.Point.X
		y += j.Point.Y
	}
	n := float64(len(body.Joints))
	pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x / n, Y: y / n}})
	if err != nil {
		return ""
	}
	return pt.AsText()
}
