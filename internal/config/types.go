package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	Version     string
	LogLevel    string
	LogFormat   string

	// Adapter selection
	Adapters AdapterConfig

	// Component configurations
	Source   SourceConfig
	Bronze   BronzeConfig
	Pipeline PipelineConfig
	Storage  StorageConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	SQS      SQSConfig
	Metrics  MetricsConfig
}

// AdapterConfig selects the implementation behind each port
type AdapterConfig struct {
	Runtime string // local, lambda
	Storage string // filesystem, s3
	Ledger  string // none, postgres
	Events  string // none, rabbitmq, sqs
	Metrics string // stdout, prometheus
}

// SourceConfig describes the remote Orange Book archive and how to fetch it
type SourceConfig struct {
	BaseURL        string
	WorkDir        string
	Timeout        time.Duration
	Browser        string // chrome, firefox, safari
	UserAgent      string
	Referer        string
	Accept         string
	AcceptLanguage string
	BlockMarkers   []string
}

// BronzeConfig controls raw line capture
type BronzeConfig struct {
	StripBOM bool
}

// PipelineConfig controls a single ingestion run
type PipelineConfig struct {
	KeepWorkDir bool
	KeyPrefix   string
	Timeout     time.Duration // whole run; zero means unbounded
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	BucketOrPath string
	Timeout      time.Duration
	S3           S3Config
}

// S3Config holds S3-specific configuration
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // LocalStack / MinIO
}

// DatabaseConfig holds the ingestion ledger connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode)
}

// RabbitMQConfig holds RabbitMQ event publishing configuration
type RabbitMQConfig struct {
	URL     string
	Queue   string
	Timeout time.Duration
}

// SQSConfig holds SQS event publishing configuration
type SQSConfig struct {
	Region   string
	Queue    string
	Endpoint string
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Namespace      string
	PushgatewayURL string
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errors []string

	if c.ServiceName == "" {
		errors = append(errors, "SERVICE_NAME is required")
	}
	if c.Source.BaseURL == "" {
		errors = append(errors, "ORANGE_BOOK_URL is required")
	}
	if c.Source.WorkDir == "" {
		errors = append(errors, "ORANGE_BOOK_WORK_DIR is required")
	}
	if c.Source.Timeout <= 0 {
		errors = append(errors, "SOURCE_TIMEOUT must be positive")
	}
	if c.Pipeline.Timeout < 0 {
		errors = append(errors, "PIPELINE_TIMEOUT must not be negative")
	}

	switch c.Source.Browser {
	case "chrome", "firefox", "safari":
	default:
		errors = append(errors, fmt.Sprintf("SOURCE_BROWSER %q is not supported", c.Source.Browser))
	}

	switch c.Adapters.Runtime {
	case "local", "lambda":
	default:
		errors = append(errors, fmt.Sprintf("ADAPTER_RUNTIME %q is not supported", c.Adapters.Runtime))
	}

	switch c.Adapters.Storage {
	case "filesystem":
	case "s3":
		if c.Storage.BucketOrPath == "" {
			errors = append(errors, "STORAGE_BUCKET_OR_PATH is required for s3 storage")
		}
	default:
		errors = append(errors, fmt.Sprintf("ADAPTER_STORAGE %q is not supported", c.Adapters.Storage))
	}

	switch c.Adapters.Ledger {
	case "none":
	case "postgres":
		if c.Database.Host == "" || c.Database.Database == "" {
			errors = append(errors, "DB_HOST and DB_NAME are required for the postgres ledger")
		}
	default:
		errors = append(errors, fmt.Sprintf("ADAPTER_LEDGER %q is not supported", c.Adapters.Ledger))
	}

	switch c.Adapters.Events {
	case "none":
	case "rabbitmq":
		if c.RabbitMQ.URL == "" || c.RabbitMQ.Queue == "" {
			errors = append(errors, "RABBITMQ_URL and RABBITMQ_QUEUE are required for rabbitmq events")
		}
	case "sqs":
		if c.SQS.Queue == "" {
			errors = append(errors, "SQS_QUEUE_NAME is required for sqs events")
		}
	default:
		errors = append(errors, fmt.Sprintf("ADAPTER_EVENTS %q is not supported", c.Adapters.Events))
	}

	switch c.Adapters.Metrics {
	case "stdout", "prometheus":
	default:
		errors = append(errors, fmt.Sprintf("ADAPTER_METRICS %q is not supported", c.Adapters.Metrics))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Environment detection methods

// IsLocal returns true if running in local/development environment
func (c *Config) IsLocal() bool {
	env := strings.ToLower(c.Environment)
	return env == "local" || env == "development" || env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// IsTest returns true if running in test environment
func (c *Config) IsTest() bool {
	env := strings.ToLower(c.Environment)
	return env == "test" || env == "testing"
}
