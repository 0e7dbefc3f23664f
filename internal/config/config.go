// Package config provides configuration structures and validation for the payment sync service.
// It handles environment-based configuration for the HTTP API, the transaction stores,
// the synchronization engine and the settlement and notification collaborators.
package config

import (
	"errors"
	"strings"
	"time"
)

// Supported transaction store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverBolt     = "bolt"
)

// ResultWriteTimeout bounds each store write a sync attempt makes after
// settlement, including writes that land after the pass was cancelled.
const ResultWriteTimeout = 5 * time.Second

// Supported settlement modes.
const (
	SettlementModeHTTP      = "http"
	SettlementModeSimulated = "simulated"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during
// application startup.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Bolt         BoltConfig
	MongoDB      MongoDBConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Sync         SyncConfig
	Connectivity ConnectivityConfig
	Settlement   SettlementConfig
	Notification NotificationConfig
	WorkerPool   WorkerPoolConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or text
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// StoreConfig selects the durable transaction store
type StoreConfig struct {
	Driver string // postgres or bolt
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// BoltConfig contains the embedded store configuration used on edge devices
type BoltConfig struct {
	Path        string
	OpenTimeout time.Duration
}

// MongoDBConfig contains MongoDB configuration for the audit log
type MongoDBConfig struct {
	Enabled         bool
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the notification dead letter store configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	KeyTTL   time.Duration
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	NumPartitions     int // Number of partitions for topics
	ReplicationFactor int // Replication factor for topics
	WriteTimeout      time.Duration
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
}

// SyncConfig contains the synchronization engine settings
type SyncConfig struct {
	MaxRetries      int           // Attempts before a record is parked as failed
	BaseDelay       time.Duration // Backoff unit, doubled per consumed attempt
	MaxBackoff      time.Duration // Upper bound for a single backoff wait
	StaleGrace      time.Duration // Age after which a processing claim is considered orphaned
	BatchSize       int           // Maximum records snapshotted per pass
	PollingInterval time.Duration // Interval between scheduled passes
}

// ConnectivityConfig contains the connectivity oracle policy
type ConnectivityConfig struct {
	StrengthThreshold int  // Minimum link strength (0-100) for immediate settlement
	SyncOnRestore     bool // Run a pass when connectivity comes back

	// FeedEnabled shares observations between processes over Kafka: the API
	// gateway publishes them to FeedTopic and the sync worker consumes them.
	FeedEnabled bool
	FeedTopic   string
}

// SettlementConfig contains the remote settlement collaborator settings
type SettlementConfig struct {
	Mode                 string
	URL                  string
	APIKey               string
	Timeout              time.Duration
	SimulatedFailureRate float64
}

// NotificationConfig contains the notification collaborator settings
type NotificationConfig struct {
	Enabled    bool
	Topic      string
	AlertTopic string
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of concurrent settlement attempts
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate store selection
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.URL == "" {
			validationErrors = append(validationErrors, "POSTGRES_URL is required")
		}
		if c.Postgres.MaxConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
		}
		if c.Postgres.MinConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
		}
		if c.Postgres.ConnMaxLifetime <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
		}
		if c.Postgres.ConnMaxIdleTime <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
		}
	case StoreDriverBolt:
		if c.Bolt.Path == "" {
			validationErrors = append(validationErrors, "BOLT_PATH is required")
		}
		if c.Bolt.OpenTimeout <= 0 {
			validationErrors = append(validationErrors, "BOLT_OPEN_TIMEOUT must be greater than 0")
		}
	default:
		validationErrors = append(validationErrors, "STORE_DRIVER must be one of postgres, bolt")
	}

	// Validate MongoDB config
	if c.MongoDB.Enabled {
		if c.MongoDB.URI == "" {
			validationErrors = append(validationErrors, "MONGO_URI is required")
		}
		if c.MongoDB.Database == "" {
			validationErrors = append(validationErrors, "MONGO_DATABASE is required")
		}
		if c.MongoDB.Timeout <= 0 {
			validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
		}
		if c.MongoDB.MaxPoolSize <= 0 {
			validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
		}
	}

	// Validate Redis config
	if c.Redis.Enabled && c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}

	// Validate Kafka and notification config
	if c.Notification.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
		}
		if c.Notification.Topic == "" {
			validationErrors = append(validationErrors, "NOTIFICATION_TOPIC is required")
		}
		if c.Notification.AlertTopic == "" {
			validationErrors = append(validationErrors, "NOTIFICATION_ALERT_TOPIC is required")
		}
	}

	if c.Connectivity.FeedEnabled {
		if len(c.Kafka.Brokers) == 0 {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
		}
		if c.Connectivity.FeedTopic == "" {
			validationErrors = append(validationErrors, "CONNECTIVITY_FEED_TOPIC is required")
		}
		if c.Kafka.ConsumerGroup == "" {
			validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
		}
	}

	// Validate Sync config
	if c.Sync.MaxRetries <= 0 {
		validationErrors = append(validationErrors, "SYNC_MAX_RETRIES must be greater than 0")
	}
	if c.Sync.BaseDelay < 0 {
		validationErrors = append(validationErrors, "SYNC_BASE_DELAY must not be negative")
	}
	if c.Sync.MaxBackoff < c.Sync.BaseDelay {
		validationErrors = append(validationErrors, "SYNC_MAX_BACKOFF must not be lower than SYNC_BASE_DELAY")
	}
	if c.Sync.StaleGrace <= 0 {
		validationErrors = append(validationErrors, "SYNC_STALE_GRACE must be greater than 0")
	}
	if c.Sync.BatchSize <= 0 {
		validationErrors = append(validationErrors, "SYNC_BATCH_SIZE must be greater than 0")
	}
	if c.Sync.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "SYNC_POLLING_INTERVAL must be greater than 0")
	}

	// Validate Connectivity config
	if c.Connectivity.StrengthThreshold < 0 || c.Connectivity.StrengthThreshold > 100 {
		validationErrors = append(validationErrors, "CONNECTIVITY_STRENGTH_THRESHOLD must be between 0 and 100")
	}

	// Validate Settlement config
	switch c.Settlement.Mode {
	case SettlementModeHTTP:
		if c.Settlement.URL == "" {
			validationErrors = append(validationErrors, "SETTLEMENT_URL is required")
		}
	case SettlementModeSimulated:
		if c.Settlement.SimulatedFailureRate < 0 || c.Settlement.SimulatedFailureRate > 1 {
			validationErrors = append(validationErrors, "SETTLEMENT_SIMULATED_FAILURE_RATE must be between 0 and 1")
		}
	default:
		validationErrors = append(validationErrors, "SETTLEMENT_MODE must be one of http, simulated")
	}
	if c.Settlement.Timeout <= 0 {
		validationErrors = append(validationErrors, "SETTLEMENT_TIMEOUT must be greater than 0")
	}
	// A claim younger than one full attempt must never look orphaned
	if c.Sync.StaleGrace > 0 && c.Sync.StaleGrace <= c.Settlement.Timeout+ResultWriteTimeout {
		validationErrors = append(validationErrors,
			"SYNC_STALE_GRACE must be greater than SETTLEMENT_TIMEOUT plus "+ResultWriteTimeout.String())
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
