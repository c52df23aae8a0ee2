package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel converts a config log level to a zerolog level. Unknown
// levels are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Options configures Setup.
type Options struct {
	Level   string
	AppName string
	// LogsDir enables a log file when set.
	LogsDir string
	// GraylogAddress enables GELF shipping when set.
	GraylogAddress string
	// Console defaults to stdout.
	Console      io.Writer
	NoColor      bool
	SessionStart time.Time
}

// Manager owns the outputs of a configured logger.
type Manager struct {
	Logger   zerolog.Logger
	FilePath string

	closers []io.Closer
}

// Setup builds a logger writing console format to the console and the log
// file and JSON to Graylog.
func Setup(opts Options) (*Manager, error) {
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.SessionStart.IsZero() {
		opts.SessionStart = time.Now()
	}

	m := &Manager{}
	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.RFC3339, NoColor: opts.NoColor},
	}

	if opts.LogsDir != "" {
		if err := os.MkdirAll(opts.LogsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		m.FilePath = LogFilePath(opts.LogsDir, opts.AppName, opts.SessionStart)
		file, err := os.OpenFile(m.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		m.closers = append(m.closers, file)
		writers = append(writers, zerolog.ConsoleWriter{Out: file, TimeFormat: time.RFC3339, NoColor: true})
	}

	if opts.GraylogAddress != "" {
		gw, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to create graylog writer: %w", err)
		}
		m.closers = append(m.closers, gw)
		writers = append(writers, gw)
	}

	m.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Str("app", opts.AppName).Logger()

	m.Logger.Info().Str("loglevel", m.Logger.GetLevel().String()).Msg("Logging set up")
	return m, nil
}

// Close closes the log file and the Graylog connection.
func (m *Manager) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// ContextProvider returns fields to attach to every log event.
type ContextProvider func() map[string]any

// WithContext returns a logger that adds the provider's fields to each
// event.
func WithContext(logger zerolog.Logger, provider ContextProvider) zerolog.Logger {
	return logger.Hook(zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
		if provider == nil {
			return
		}
		e.Fields(provider())
	}))
}
