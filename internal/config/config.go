package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// Config holds the main configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Log      Log      `mapstructure:"log"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Jobs     Jobs     `mapstructure:"jobs"`
	Database Database `mapstructure:"database"`
	Storage  Storage  `mapstructure:"storage"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Retry    Retry    `mapstructure:"retry"`
	Tracing  Tracing  `mapstructure:"tracing"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort     string        `mapstructure:"http_port"` // address to listen on, e.g. ":8080"
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Log configures the global logger.
type Log struct {
	Level  string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format string `mapstructure:"format"` // json or plain
}

// Pipeline tunes frame processing.
type Pipeline struct {
	Workers        int   `mapstructure:"workers"`          // frames processed concurrently per request
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"` // upper bound for a synchronous upload
	MaxDimension   int   `mapstructure:"max_dimension"`    // widest or tallest frame decoded or produced
	MaxTotalPixels int64 `mapstructure:"max_total_pixels"` // decoded pixels summed over all frames
}

// Limits returns the frame limits of the pipeline section.
func (p Pipeline) Limits() model.Limits {
	return model.Limits{MaxDimension: p.MaxDimension, MaxTotalPixels: p.MaxTotalPixels}
}

// Jobs toggles the asynchronous job API and its worker.
type Jobs struct {
	Enabled bool `mapstructure:"enabled"`
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Storage holds configuration for the object storage holding job sources and outputs.
type Storage struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Kafka holds configuration for the job queue.
type Kafka struct {
	GroupID string   `mapstructure:"group_id"` // Consumer group ID
	Topic   string   `mapstructure:"topic"`    // Kafka topic name
	Brokers []string `mapstructure:"brokers"`  // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Tracing selects the OpenTelemetry span exporter.
type Tracing struct {
	ServiceName  string `mapstructure:"service_name"`
	Exporter     string `mapstructure:"exporter"` // none, stdout or otlp
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// envBindings maps configuration keys to the environment variables overriding them.
var envBindings = map[string]string{
	"database.master.host": "DB_HOST",
	"database.master.port": "DB_PORT",
	"database.master.user": "DB_USER",
	"database.master.pass": "DB_PASSWORD",
	"database.master.name": "DB_NAME",
	"storage.endpoint":     "MINIO_ENDPOINT",
	"storage.access_key":   "MINIO_ACCESS_KEY",
	"storage.secret_key":   "MINIO_SECRET_KEY",
	"storage.bucket_name":  "MINIO_BUCKET",
	"kafka.brokers":        "KAFKA_BROKERS",
	"log.level":            "LOG_LEVEL",
	"log.format":           "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.workers", runtime.NumCPU())
	v.SetDefault("pipeline.max_upload_bytes", 32<<20)
	v.SetDefault("pipeline.max_dimension", model.DefaultLimits.MaxDimension)
	v.SetDefault("pipeline.max_total_pixels", model.DefaultLimits.MaxTotalPixels)
	v.SetDefault("jobs.enabled", false)
	v.SetDefault("kafka.topic", "gif-jobs")
	v.SetDefault("kafka.group_id", "gif-processor")
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("retry.backoff", 2.0)
	v.SetDefault("tracing.service_name", "gif-processor")
	v.SetDefault("tracing.exporter", "none")
}

// Load reads the configuration file at path, applies defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}
