package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "posetrack.cfg.json"

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level          string `json:"logLevel" mapstructure:"logLevel"`
	LogsDir        string `json:"logsDir" mapstructure:"logsDir"`
	GraylogEnabled bool   `json:"graylogEnabled" mapstructure:"graylogEnabled"`
	GraylogAddress string `json:"graylogAddress" mapstructure:"graylogAddress"`
}

// ProcessorConfig holds pose classification and display settings.
type ProcessorConfig struct {
	Threshold     float64 `json:"threshold" mapstructure:"threshold"`
	Metric        string  `json:"metric" mapstructure:"metric"`
	DisplayWidth  float64 `json:"displayWidth" mapstructure:"displayWidth"`
	DisplayHeight float64 `json:"displayHeight" mapstructure:"displayHeight"`
}

// MapperConfig holds the depth camera intrinsics.
type MapperConfig struct {
	Fx float64 `json:"fx" mapstructure:"fx"`
	Fy float64 `json:"fy" mapstructure:"fy"`
	Cx float64 `json:"cx" mapstructure:"cx"`
	Cy float64 `json:"cy" mapstructure:"cy"`
}

// SourceConfig selects the recording to replay.
type SourceConfig struct {
	Path string  `json:"path" mapstructure:"path"`
	FPS  float64 `json:"fps" mapstructure:"fps"`
	Loop bool    `json:"loop" mapstructure:"loop"`
}

// MemoryConfig holds in-memory sink settings
type MemoryConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	History        int    `json:"history" mapstructure:"history"`
}

// WebSocketConfig holds live viewer sink settings.
type WebSocketConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// DatabaseConfig holds pose event recorder settings. Driver is "sqlite"
// or "postgres"; an empty sqlite path is an in-memory database.
type DatabaseConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	Driver        string        `json:"driver" mapstructure:"driver"`
	Path          string        `json:"path" mapstructure:"path"`
	Host          string        `json:"host" mapstructure:"host"`
	Port          string        `json:"port" mapstructure:"port"`
	Username      string        `json:"username" mapstructure:"username"`
	Password      string        `json:"password" mapstructure:"password"`
	Database      string        `json:"database" mapstructure:"database"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	QueueLimit    int           `json:"queueLimit" mapstructure:"queueLimit"`
}

// InfluxConfig holds pose metrics sink settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// TerminalConfig holds terminal renderer settings.
type TerminalConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// SinkConfig groups every sink's settings.
type SinkConfig struct {
	Memory    MemoryConfig
	WebSocket WebSocketConfig
	Database  DatabaseConfig
	Influx    InfluxConfig
	Terminal  TerminalConfig
}

// OTelConfig holds metrics export settings.
type OTelConfig struct {
	Enabled     bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName string        `json:"serviceName" mapstructure:"serviceName"`
	OutputPath  string        `json:"outputPath" mapstructure:"outputPath"`
	Interval    time.Duration `json:"interval" mapstructure:"interval"`
}

// MonitorConfig holds status reporting settings.
type MonitorConfig struct {
	StatusFile  string        `json:"statusFile" mapstructure:"statusFile"`
	MetricsAddr string        `json:"metricsAddr" mapstructure:"metricsAddr"`
	Interval    time.Duration `json:"interval" mapstructure:"interval"`
}

// UploadConfig holds session export upload settings.
type UploadConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
	Tag     string `json:"tag" mapstructure:"tag"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file
// is not an error; defaults apply.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./posetracklogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("processor.threshold", 0.25)
	viper.SetDefault("processor.metric", "signedSum")
	viper.SetDefault("processor.displayWidth", 512)
	viper.SetDefault("processor.displayHeight", 424)

	viper.SetDefault("mapper.fx", 365.456)
	viper.SetDefault("mapper.fy", 365.456)
	viper.SetDefault("mapper.cx", 254.878)
	viper.SetDefault("mapper.cy", 205.395)

	viper.SetDefault("source.path", "")
	viper.SetDefault("source.fps", 30)
	viper.SetDefault("source.loop", false)

	viper.SetDefault("sinks.memory.enabled", true)
	viper.SetDefault("sinks.memory.outputDir", "./sessions")
	viper.SetDefault("sinks.memory.compressOutput", true)
	viper.SetDefault("sinks.memory.history", 300)

	viper.SetDefault("sinks.websocket.enabled", false)
	viper.SetDefault("sinks.websocket.url", "ws://localhost:5000/ws")
	viper.SetDefault("sinks.websocket.secret", "")

	viper.SetDefault("sinks.database.enabled", false)
	viper.SetDefault("sinks.database.driver", "sqlite")
	viper.SetDefault("sinks.database.path", "")
	viper.SetDefault("sinks.database.host", "localhost")
	viper.SetDefault("sinks.database.port", "5432")
	viper.SetDefault("sinks.database.username", "postgres")
	viper.SetDefault("sinks.database.password", "postgres")
	viper.SetDefault("sinks.database.database", "posetrack")
	viper.SetDefault("sinks.database.flushInterval", "2s")
	viper.SetDefault("sinks.database.queueLimit", 10000)

	viper.SetDefault("sinks.influx.enabled", false)
	viper.SetDefault("sinks.influx.protocol", "http")
	viper.SetDefault("sinks.influx.host", "localhost")
	viper.SetDefault("sinks.influx.port", "8086")
	viper.SetDefault("sinks.influx.token", "supersecrettoken")
	viper.SetDefault("sinks.influx.org", "posetrack")
	viper.SetDefault("sinks.influx.bucket", "poses")
	viper.SetDefault("sinks.influx.backupPath", "./posetrack_influx_backup.log.gz")

	viper.SetDefault("sinks.terminal.enabled", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "posetrack")
	viper.SetDefault("otel.outputPath", "")
	viper.SetDefault("otel.interval", "10s")

	viper.SetDefault("monitor.statusFile", "")
	viper.SetDefault("monitor.metricsAddr", "")
	viper.SetDefault("monitor.interval", "5s")

	viper.SetDefault("upload.enabled", false)
	viper.SetDefault("upload.url", "http://localhost:5000")
	viper.SetDefault("upload.secret", "")
	viper.SetDefault("upload.tag", "")
}

// GetLoggingConfig returns the logging settings.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		LogsDir:        viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetProcessorConfig returns the processor settings.
func GetProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Threshold:     viper.GetFloat64("processor.threshold"),
		Metric:        viper.GetString("processor.metric"),
		DisplayWidth:  viper.GetFloat64("processor.displayWidth"),
		DisplayHeight: viper.GetFloat64("processor.displayHeight"),
	}
}

// GetMapperConfig returns the camera intrinsics.
func GetMapperConfig() MapperConfig {
	return MapperConfig{
		Fx: viper.GetFloat64("mapper.fx"),
		Fy: viper.GetFloat64("mapper.fy"),
		Cx: viper.GetFloat64("mapper.cx"),
		Cy: viper.GetFloat64("mapper.cy"),
	}
}

// GetSourceConfig returns the replay source settings.
func GetSourceConfig() SourceConfig {
	return SourceConfig{
		Path: viper.GetString("source.path"),
		FPS:  viper.GetFloat64("source.fps"),
		Loop: viper.GetBool("source.loop"),
	}
}

// GetSinkConfig returns the settings of every sink.
func GetSinkConfig() SinkConfig {
	return SinkConfig{
		Memory: MemoryConfig{
			Enabled:        viper.GetBool("sinks.memory.enabled"),
			OutputDir:      viper.GetString("sinks.memory.outputDir"),
			CompressOutput: viper.GetBool("sinks.memory.compressOutput"),
			History:        viper.GetInt("sinks.memory.history"),
		},
		WebSocket: WebSocketConfig{
			Enabled: viper.GetBool("sinks.websocket.enabled"),
			URL:     viper.GetString("sinks.websocket.url"),
			Secret:  viper.GetString("sinks.websocket.secret"),
		},
		Database: DatabaseConfig{
			Enabled:       viper.GetBool("sinks.database.enabled"),
			Driver:        viper.GetString("sinks.database.driver"),
			Path:          viper.GetString("sinks.database.path"),
			Host:          viper.GetString("sinks.database.host"),
			Port:          viper.GetString("sinks.database.port"),
			Username:      viper.GetString("sinks.database.username"),
			Password:      viper.GetString("sinks.database.password"),
			Database:      viper.GetString("sinks.database.database"),
			FlushInterval: viper.GetDuration("sinks.database.flushInterval"),
			QueueLimit:    viper.GetInt("sinks.database.queueLimit"),
		},
		Influx: InfluxConfig{
			Enabled:    viper.GetBool("sinks.influx.enabled"),
			Protocol:   viper.GetString("sinks.influx.protocol"),
			Host:       viper.GetString("sinks.influx.host"),
			Port:       viper.GetString("sinks.influx.port"),
			Token:      viper.GetString("sinks.influx.token"),
			Org:        viper.GetString("sinks.influx.org"),
			Bucket:     viper.GetString("sinks.influx.bucket"),
			BackupPath: viper.GetString("sinks.influx.backupPath"),
		},
		Terminal: TerminalConfig{
			Enabled: viper.GetBool("sinks.terminal.enabled"),
		},
	}
}

// GetOTelConfig returns the metrics export settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:     viper.GetBool("otel.enabled"),
		ServiceName: viper.GetString("otel.serviceName"),
		OutputPath:  viper.GetString("otel.outputPath"),
		Interval:    viper.GetDuration("otel.interval"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		StatusFile:  viper.GetString("monitor.statusFile"),
		MetricsAddr: viper.GetString("monitor.metricsAddr"),
		Interval:    viper.GetDuration("monitor.interval"),
	}
}

// GetUploadConfig returns the session export upload settings.
func GetUploadConfig() UploadConfig {
	return UploadConfig{
		Enabled: viper.GetBool("upload.enabled"),
		URL:     viper.GetString("upload.url"),
		Secret:  viper.GetString("upload.secret"),
		Tag:     viper.GetString("upload.tag"),
	}
}
