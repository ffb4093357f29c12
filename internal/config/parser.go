package config

import "strings"

// parse reads configuration from environment variables on top of DefaultConfig
func parse() *Config {
	d := DefaultConfig()

	runtime := d.Adapters.Runtime
	if IsLambda() {
		runtime = "lambda"
	}

	cfg := &Config{
		// Core
		Environment: getEnv("ENVIRONMENT", d.Environment),
		ServiceName: getEnv("SERVICE_NAME", d.ServiceName),
		Version:     getEnv("SERVICE_VERSION", d.Version),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", d.LogLevel)),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", d.LogFormat)),

		// Adapter selection
		Adapters: AdapterConfig{
			Runtime: getEnv("ADAPTER_RUNTIME", runtime),
			Storage: getEnv("ADAPTER_STORAGE", d.Adapters.Storage),
			Ledger:  getEnv("ADAPTER_LEDGER", d.Adapters.Ledger),
			Events:  getEnv("ADAPTER_EVENTS", d.Adapters.Events),
			Metrics: getEnv("ADAPTER_METRICS", d.Adapters.Metrics),
		},

		// Source
		Source: SourceConfig{
			BaseURL:        getEnv("ORANGE_BOOK_URL", d.Source.BaseURL),
			WorkDir:        getEnv("ORANGE_BOOK_WORK_DIR", d.Source.WorkDir),
			Timeout:        getDuration("SOURCE_TIMEOUT", d.Source.Timeout),
			Browser:        strings.ToLower(getEnv("SOURCE_BROWSER", d.Source.Browser)),
			UserAgent:      getEnv("SOURCE_USER_AGENT", UserAgentFor(getEnv("SOURCE_BROWSER", d.Source.Browser))),
			Referer:        getEnv("SOURCE_REFERER", d.Source.Referer),
			Accept:         getEnv("SOURCE_ACCEPT", d.Source.Accept),
			AcceptLanguage: getEnv("SOURCE_ACCEPT_LANGUAGE", d.Source.AcceptLanguage),
			BlockMarkers:   getList("SOURCE_BLOCK_MARKERS", d.Source.BlockMarkers),
		},

		Bronze: BronzeConfig{
			StripBOM: getBool("BRONZE_STRIP_BOM", d.Bronze.StripBOM),
		},

		Pipeline: PipelineConfig{
			KeepWorkDir: getBool("PIPELINE_KEEP_WORK_DIR", d.Pipeline.KeepWorkDir),
			KeyPrefix:   getEnv("PIPELINE_KEY_PREFIX", d.Pipeline.KeyPrefix),
			Timeout:     getDuration("PIPELINE_TIMEOUT", d.Pipeline.Timeout),
		},

		// Storage
		Storage: StorageConfig{
			BucketOrPath: getEnv("STORAGE_BUCKET_OR_PATH", d.Storage.BucketOrPath),
			Timeout:      getDuration("STORAGE_TIMEOUT", d.Storage.Timeout),
			S3: S3Config{
				Region:          getEnv("AWS_REGION", d.Storage.S3.Region),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
			},
		},

		// Ledger database
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", d.Database.Host),
			Port:         getInt("DB_PORT", d.Database.Port),
			Database:     getEnv("DB_NAME", d.Database.Database),
			Username:     getEnv("DB_USER", d.Database.Username),
			Password:     getEnv("DB_PASSWORD", d.Database.Password),
			SSLMode:      getEnv("DB_SSL_MODE", d.Database.SSLMode),
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},

		RabbitMQ: RabbitMQConfig{
			URL:     getEnv("RABBITMQ_URL", d.RabbitMQ.URL),
			Queue:   getEnv("RABBITMQ_QUEUE", d.RabbitMQ.Queue),
			Timeout: getDuration("RABBITMQ_TIMEOUT", d.RabbitMQ.Timeout),
		},

		SQS: SQSConfig{
			Region:   getEnv("AWS_REGION", d.SQS.Region),
			Queue:    getEnv("SQS_QUEUE_NAME", d.SQS.Queue),
			Endpoint: getEnv("SQS_ENDPOINT", ""),
		},

		Metrics: MetricsConfig{
			Namespace:      getEnv("METRICS_NAMESPACE", d.Metrics.Namespace),
			PushgatewayURL: getEnv("METRICS_PUSHGATEWAY_URL", ""),
		},
	}

	return cfg
}
