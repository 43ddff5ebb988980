package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8084"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	KafkaBrokers          []string      `env:"KAFKA_BOOTSTRAP_SERVERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaClientID         string        `env:"KAFKA_CLIENT_ID" envDefault:"notification-service"`
	KafkaGroupID          string        `env:"KAFKA_GROUP_ID" envDefault:"notification-group"`
	KafkaTopics           []string      `env:"KAFKA_TOPICS" envSeparator:"," envDefault:"user.events,article.events,project.events,import.jobs"`
	KafkaFromBeginning    bool          `env:"KAFKA_FROM_BEGINNING" envDefault:"false"`
	CoordinatorBackoff    time.Duration `env:"KAFKA_COORDINATOR_BACKOFF" envDefault:"3s"`
	RetryBackoff          time.Duration `env:"KAFKA_RETRY_BACKOFF" envDefault:"5s"`
	CoordinatorErrorCodes []int         `env:"KAFKA_COORDINATOR_ERROR_CODES" envSeparator:"," envDefault:"15,16"`
	KafkaCommitTimeout    time.Duration `env:"KAFKA_COMMIT_TIMEOUT" envDefault:"5s"`

	StoreDriver            string        `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI               string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase          string        `env:"MONGO_DATABASE" envDefault:"notifications"`
	PostgresURL            string        `env:"POSTGRES_URL"`
	AuditRetention         time.Duration `env:"AUDIT_RETENTION" envDefault:"2160h"` // 90 days
	RetentionSweepInterval time.Duration `env:"RETENTION_SWEEP_INTERVAL" envDefault:"1h"`
	AuditRedactFields      []string      `env:"AUDIT_REDACT_FIELDS" envSeparator:"," envDefault:"password,token,secret"`

	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisFanoutChannel string        `env:"REDIS_FANOUT_CHANNEL" envDefault:"notifications:fanout"`
	DedupTTL           time.Duration `env:"DEDUP_TTL" envDefault:"24h"`

	JWTSecret          string   `env:"JWT_SECRET"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	WSSendBuffer       int      `env:"WS_SEND_BUFFER" envDefault:"32"`
	WSInboundRate      float64  `env:"WS_INBOUND_RATE" envDefault:"5"`

	NotificationChannel string `env:"NOTIFICATION_CHANNEL" envDefault:"in-app"`
	DefaultSubject      string `env:"DEFAULT_SUBJECT" envDefault:"Notification Système"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("config: KAFKA_BOOTSTRAP_SERVERS must be set"))
	}
	if len(c.KafkaTopics) == 0 {
		errs = append(errs, errors.New("config: KAFKA_TOPICS must be set"))
	}
	if c.KafkaGroupID == "" {
		errs = append(errs, errors.New("config: KAFKA_GROUP_ID must be set"))
	}
	if c.CoordinatorBackoff <= 0 || c.RetryBackoff <= 0 {
		errs = append(errs, errors.New("config: broker backoff durations must be positive"))
	}
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("config: MONGO_URI must be set"))
		}
	case StorePostgres:
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("config: POSTGRES_URL must be set"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.AuditRetention <= 0 {
		errs = append(errs, errors.New("config: AUDIT_RETENTION must be positive"))
	}
	if c.WSSendBuffer <= 0 {
		errs = append(errs, errors.New("config: WS_SEND_BUFFER must be positive"))
	}
	if c.WSInboundRate <= 0 {
		errs = append(errs, errors.New("config: WS_INBOUND_RATE must be positive"))
	}
	return errors.Join(errs...)
}

// DedupEnabled reports whether redelivered messages should be skipped.
func (c *Config) DedupEnabled() bool {
	return c.RedisAddr != "" && c.DedupTTL > 0
}
