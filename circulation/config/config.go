package config

import (
	"log"
	"sync"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/pkg/auth"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/Astemirdum/library-circulation/pkg/logger"
	"github.com/Astemirdum/library-circulation/pkg/postgres"
	"github.com/Astemirdum/library-circulation/pkg/tracing"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"CIRCULATION_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"CIRCULATION_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

// Redis backs the idempotency cache. An empty Addr disables it.
type Redis struct {
	Addr           string        `envconfig:"REDIS_ADDR"`
	Password       string        `envconfig:"REDIS_PASSWORD" json:"-"`
	DB             int           `envconfig:"REDIS_DB" default:"0"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

// Publisher tunes the circuit breaker in front of the Kafka producer.
type Publisher struct {
	RecordLength     int           `envconfig:"PUBLISHER_CB_RECORDS" default:"20"`
	Timeout          time.Duration `envconfig:"PUBLISHER_CB_TIMEOUT" default:"10s"`
	Percentile       float64       `envconfig:"PUBLISHER_CB_PERCENTILE" default:"0.5"`
	RecoveryRequests int           `envconfig:"PUBLISHER_CB_RECOVERY" default:"3"`
}

type Config struct {
	Server    HTTPServer            `yaml:"server"`
	Database  postgres.DB           `yaml:"db"`
	Kafka     kafka.Config          `yaml:"kafka"`
	Publisher Publisher             `yaml:"publisher"`
	Redis     Redis                 `yaml:"redis"`
	Auth      auth.Config           `yaml:"auth"`
	Library   model.LibrarySettings `yaml:"library"`
	Tracing   tracing.Config        `yaml:"tracing"`
	Log       logger.Log            `yaml:"log"`
}

type Option func(*Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(c *Config) { c.Log.LogLevel = level }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) { c.Server.WriteTimeout = d }
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment. Options seed values the environment may override.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
	})

	return cfg
}
