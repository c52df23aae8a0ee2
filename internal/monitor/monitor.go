package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bodybasics/posetrack/internal/dispatcher"
	"github.com/bodybasics/posetrack/pkg/core"
)

const (
	namespace                = "posetrack"
	defaultReadHeaderTimeout = 10 * time.Second
)

// Config holds monitor settings
type Config struct {
	StatusFile  string
	MetricsAddr string
	Interval    time.Duration
}

// Service tracks sensor status and frame statistics. It writes a status
// file periodically and serves Prometheus metrics.
type Service struct {
	cfg    Config
	logger zerolog.Logger

	registry       *prometheus.Registry
	sensorUp       prometheus.Gauge
	statusChanges  prometheus.Counter
	framesTotal    prometheus.Counter
	bodiesTracked  prometheus.Gauge
	posesDetected  *prometheus.CounterVec
	poseActive     *prometheus.GaugeVec
	lastFrameEpoch prometheus.Gauge

	mu        sync.RWMutex
	status    core.SensorStatus
	lastFrame *core.RenderFrame
	frames    uint64
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
	server    *http.Server
}

// NewService creates a new monitor service
func NewService(cfg Config, logger zerolog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	s := &Service{
		cfg:      cfg,
		logger:   logger.With().Str("component", "monitor").Logger(),
		registry: prometheus.NewRegistry(),
		status:   core.StatusNoSensor,
		sensorUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_available",
			Help:      "Whether the sensor is currently available",
		}),
		statusChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_status_changes_total",
			Help:      "Total number of sensor availability changes",
		}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rendered_total",
			Help:      "Total number of render frames produced",
		}),
		bodiesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bodies_tracked",
			Help:      "Number of tracked bodies in the latest frame",
		}),
		posesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pose_detections_total",
			Help:      "Total number of body-frames a pose was detected in",
		}, []string{"pose"}),
		poseActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pose_active_bodies",
			Help:      "Number of bodies showing a pose in the latest frame",
		}, []string{"pose"}),
		lastFrameEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_frame_timestamp_seconds",
			Help:      "Unix time of the latest render frame",
		}),
	}
	s.registry.MustRegister(
		s.sensorUp, s.statusChanges, s.framesTotal, s.bodiesTracked,
		s.posesDetected, s.poseActive, s.lastFrameEpoch,
	)
	return s
}

// Registry returns the Prometheus registry holding the monitor's metrics.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// HandleAvailability maps sensor availability to the status shown to the
// user and records the change.
func (s *Service) HandleAvailability(available bool) core.SensorStatus {
	status := core.StatusNotAvailable
	if available {
		status = core.StatusRunning
	}

	s.mu.Lock()
	changed := s.status != status
	s.status = status
	s.mu.Unlock()

	if available {
		s.sensorUp.Set(1)
	} else {
		s.sensorUp.Set(0)
	}
	if changed {
		s.statusChanges.Inc()
	}
	return status
}

// Status returns the current sensor status.
func (s *Service) Status() core.SensorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ObserveFrame records statistics of a render frame.
func (s *Service) ObserveFrame(f *core.RenderFrame) {
	if f == nil {
		return
	}

	active := make(map[core.PoseName]int)
	for i := range f.Bodies {
		for _, name := range f.Bodies[i].Detected() {
			active[name]++
			s.posesDetected.WithLabelValues(string(name)).Inc()
		}
	}
	s.poseActive.Reset()
	for name, n := range active {
		s.poseActive.WithLabelValues(string(name)).Set(float64(n))
	}

	s.framesTotal.Inc()
	s.bodiesTracked.Set(float64(len(f.Bodies)))
	s.lastFrameEpoch.SetToCurrentTime()

	s.mu.Lock()
	s.lastFrame = f
	s.frames++
	s.mu.Unlock()
}

// HandleEvent is a dispatcher handler feeding the monitor.
func (s *Service) HandleEvent(e dispatcher.Event) error {
	if e.Kind == dispatcher.KindFrame {
		s.ObserveFrame(e.Frame)
	}
	return nil
}

// StatusLines returns the human-readable status report.
func (s *Service) StatusLines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := []string{
		"status: " + s.status.Text(),
		fmt.Sprintf("frames: %d", s.frames),
	}
	if s.lastFrame != nil {
		lines = append(lines, fmt.Sprintf("lastSequence: %d", s.lastFrame.Sequence))
		lines = append(lines, fmt.Sprintf("bodies: %d", len(s.lastFrame.Bodies)))
		for i := range s.lastFrame.Bodies {
			b := &s.lastFrame.Bodies[i]
			lines = append(lines, fmt.Sprintf("slot %d (%d): %v", b.Slot, b.TrackingID, b.Detected()))
		}
	}
	return lines
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the metrics endpoint handler.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s.Status().Text()))
	})
	return mux
}

// Start starts the status file writer and, when configured, the metrics
// server.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	if s.cfg.MetricsAddr != "" {
		s.server = &http.Server{
			Addr:              s.cfg.MetricsAddr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: defaultReadHeaderTimeout,
		}
		go func() {
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().Err(err).Str("addr", s.cfg.MetricsAddr).Msg("Metrics server failed")
			}
		}()
		s.logger.Info().Str("addr", s.cfg.MetricsAddr).Msg("Serving metrics")
	}

	go s.statusLoop()
	return nil
}

func (s *Service) statusLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			s.writeStatusFile()
			return
		case <-ticker.C:
			s.writeStatusFile()
		}
	}
}

func (s *Service) writeStatusFile() {
	if s.cfg.StatusFile == "" {
		return
	}
	var data []byte
	for _, line := range s.StatusLines() {
		data = append(data, line...)
		data = append(data, '\n')
	}
	if err := os.WriteFile(s.cfg.StatusFile, data, 0644); err != nil {
		s.logger.Error().Err(err).Msg("Error writing status file")
	}
}

// Stop stops the status monitor and the metrics server.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
