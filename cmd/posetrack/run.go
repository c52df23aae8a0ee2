package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bodybasics/posetrack/internal/api"
	"github.com/bodybasics/posetrack/internal/config"
	"github.com/bodybasics/posetrack/internal/dispatcher"
	"github.com/bodybasics/posetrack/internal/logging"
	"github.com/bodybasics/posetrack/internal/monitor"
	intOtel "github.com/bodybasics/posetrack/internal/otel"
	"github.com/bodybasics/posetrack/internal/parser"
	"github.com/bodybasics/posetrack/internal/pose"
	"github.com/bodybasics/posetrack/internal/processor"
	"github.com/bodybasics/posetrack/internal/projector"
	"github.com/bodybasics/posetrack/internal/sink"
	"github.com/bodybasics/posetrack/internal/source"
	"github.com/bodybasics/posetrack/pkg/core"
)

const shutdownTimeout = 10 * time.Second

type runOptions struct {
	configDir string
	recording string
	keepAlive bool
	console   io.Writer
	noColor   bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the frame pipeline",
	Long: `Run plays a recording through the frame processor and streams render
frames, pose detections and sensor status to every enabled sink.

Settings are read from posetrack.cfg.json in the config directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := runOpts
		opts.console = cmd.ErrOrStderr()
		return runPipeline(ctx, opts)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.configDir, "config", "c", ".", "directory containing "+config.FileName)
	runCmd.Flags().StringVarP(&runOpts.recording, "recording", "r", "", "recording to play (overrides source.path)")
	runCmd.Flags().BoolVar(&runOpts.keepAlive, "keep-alive", false, "keep running after the sensor becomes unavailable")
	runCmd.Flags().BoolVar(&runOpts.noColor, "no-color", false, "disable colored console output")
	rootCmd.AddCommand(runCmd)
}

// app holds everything runPipeline starts, in start order.
type app struct {
	logs     *logging.Manager
	otel     *intOtel.Provider
	metrics  io.Closer
	session  core.Session
	disp     *dispatcher.Dispatcher
	sinks    []sink.Entry
	monitor  *monitor.Service
	pipeline *processor.Pipeline
	upload   config.UploadConfig
}

func runPipeline(ctx context.Context, opts runOptions) error {
	if err := config.Load(opts.configDir); err != nil {
		return err
	}

	a := &app{}
	defer a.shutdown()

	if err := a.setupLogging(opts); err != nil {
		return err
	}
	logger := a.logs.Logger

	if err := a.setupOTel(); err != nil {
		return err
	}

	srcCfg := config.GetSourceConfig()
	if opts.recording != "" {
		srcCfg.Path = opts.recording
	}
	session := core.NewSession(srcCfg.Path)
	a.session = session
	a.upload = config.GetUploadConfig()
	logger = logger.With().Str("session", session.ID.String()).Logger()

	disp, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	a.disp = disp

	a.sinks, err = sink.Build(config.GetSinkConfig(), session, logger)
	if err != nil {
		return err
	}
	sink.Register(disp, a.sinks)

	monCfg := config.GetMonitorConfig()
	a.monitor = monitor.NewService(monitor.Config{
		StatusFile:  monCfg.StatusFile,
		MetricsAddr: monCfg.MetricsAddr,
		Interval:    monCfg.Interval,
	}, logger)
	disp.Register("monitor", a.monitor.HandleEvent)
	if err := a.monitor.Start(); err != nil {
		return err
	}

	var sensor source.Sensor
	if srcCfg.Path != "" {
		sensor = source.NewReplay(source.ReplayConfig{
			Path: srcCfg.Path,
			FPS:  srcCfg.FPS,
			Loop: srcCfg.Loop,
		}, parser.NewParser(logger), mapperFromConfig(config.GetMapperConfig()), logger)
	}

	proc, err := newProcessor(config.GetProcessorConfig(), processor.MapperFor(sensor))
	if err != nil {
		_ = source.CloseSensor(sensor)
		return err
	}

	pipeOpts := []processor.PipelineOption{processor.WithStatusHandler(a.monitor)}
	if !opts.keepAlive {
		pipeOpts = append(pipeOpts, processor.StopWhenUnavailable())
	}
	a.pipeline, err = processor.NewPipeline(sensor, proc, disp, logger, pipeOpts...)
	if err != nil {
		return err
	}

	logger.Info().Str("source", srcCfg.Path).Int("sinks", len(a.sinks)).Msg("Pipeline starting")
	err = a.pipeline.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info().Err(err).Msg("Pipeline stopped")
	return err
}

func (a *app) setupLogging(opts runOptions) error {
	logCfg := config.GetLoggingConfig()
	console := opts.console
	if config.GetSinkConfig().Terminal.Enabled {
		// the terminal sink owns the screen
		console = io.Discard
	}

	logOpts := logging.Options{
		Level:        logCfg.Level,
		AppName:      "posetrack",
		LogsDir:      logCfg.LogsDir,
		Console:      console,
		NoColor:      opts.noColor,
		SessionStart: time.Now(),
	}
	if logCfg.GraylogEnabled {
		logOpts.GraylogAddress = logCfg.GraylogAddress
	}

	logs, err := logging.Setup(logOpts)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	a.logs = logs
	return nil
}

func (a *app) setupOTel() error {
	cfg := config.GetOTelConfig()
	otelCfg := intOtel.Config{
		Enabled:     cfg.Enabled,
		ServiceName: cfg.ServiceName,
		Interval:    cfg.Interval,
	}
	if cfg.Enabled {
		if cfg.OutputPath == "" {
			otelCfg.MetricWriter = io.Discard
		} else {
			if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
				return fmt.Errorf("failed to create metrics directory: %w", err)
			}
			f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("failed to open metrics file: %w", err)
			}
			otelCfg.MetricWriter = f
			a.metrics = f
		}
	}

	p, err := intOtel.New(otelCfg)
	if err != nil {
		return fmt.Errorf("failed to set up otel: %w", err)
	}
	a.otel = p
	return nil
}

// shutdown stops everything that was started, in reverse order.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger := zerolog.Nop()
	if a.logs != nil {
		logger = a.logs.Logger
	}

	if a.pipeline != nil {
		if err := a.pipeline.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing pipeline")
		}
	}
	if a.disp != nil {
		a.disp.Close()
	}
	if err := sink.CloseAll(a.sinks); err != nil {
		logger.Error().Err(err).Msg("Error closing sinks")
	}
	for _, e := range a.sinks {
		exp, ok := e.Sink.(sink.Exporter)
		if !ok || exp.ExportedFilePath() == "" {
			continue
		}
		logger.Info().Str("sink", e.Name).Str("path", exp.ExportedFilePath()).Msg("Session exported")
		if a.upload.Enabled {
			a.uploadExport(ctx, exp.ExportedFilePath(), logger)
		}
	}
	if a.monitor != nil {
		if err := a.monitor.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("Error stopping monitor")
		}
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Error shutting down otel")
		}
	}
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

// uploadExport sends an exported session to the viewer server. Failures
// are logged; the export stays on disk.
func (a *app) uploadExport(ctx context.Context, path string, logger zerolog.Logger) {
	client := api.New(a.upload.URL, a.upload.Secret)
	if err := client.Healthcheck(ctx); err != nil {
		logger.Warn().Err(err).Str("url", a.upload.URL).Msg("Viewer server unreachable, skipping upload")
		return
	}
	meta := a.session.UploadMetadata(time.Now().UTC(), a.upload.Tag)
	if err := client.Upload(ctx, path, meta); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to upload session")
		return
	}
	logger.Info().Str("path", path).Str("url", a.upload.URL).Msg("Session uploaded")
}

func mapperFromConfig(cfg config.MapperConfig) projector.Mapper {
	m := projector.DefaultPinhole()
	if cfg.Fx > 0 {
		m.Fx = cfg.Fx
	}
	if cfg.Fy > 0 {
		m.Fy = cfg.Fy
	}
	if cfg.Cx > 0 {
		m.Cx = cfg.Cx
	}
	if cfg.Cy > 0 {
		m.Cy = cfg.Cy
	}
	return m
}

func newProcessor(cfg config.ProcessorConfig, mapper projector.Mapper) (*processor.Processor, error) {
	metric, err := pose.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	return processor.New(
		processor.Config{DisplayWidth: cfg.DisplayWidth, DisplayHeight: cfg.DisplayHeight},
		mapper,
		pose.NewClassifier(cfg.Threshold, metric),
	), nil
}
