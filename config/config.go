package config

import (
	"errors"
	"os"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"fern"`
	Version                       string `env:"APP_VERSION" env-default:"dev"`
	Port                          int    `env:"PORT" env-default:"3004"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseMigrateOnStart        bool          `env:"DB_MIGRATE_ON_START" env-default:"true"`

	// Redis
	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka consumer (ARN diagnostic settings notifications)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"arn-diagnostic-settings"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"fern-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka producer (dead letters)
	KafkaDeadLetterTopic string `env:"KAFKA_DEAD_LETTER_TOPIC" env-default:"arn-diagnostic-settings-dlq"`
	KafkaBatchSize       int    `env:"KAFKA_BATCH_SIZE" env-default:"10"`
	KafkaBatchTimeout    int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression     string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Azure
	AzureCloud        string        `env:"AZURE_CLOUD" env-default:"public"`
	AzureAuthMode     string        `env:"AZURE_AUTH_MODE" env-default:"default"` // default | client-secret
	AzureClientID     string        `env:"AZURE_CLIENT_ID" env-default:""`
	AzureClientSecret string        `env:"AZURE_CLIENT_SECRET" env-default:""`
	AzureCallTimeout  time.Duration `env:"AZURE_CALL_TIMEOUT" env-default:"30s"`

	// Partner resource provider namespace, e.g. NewRelic or Dynatrace.
	PartnerProviderNamespace string `env:"PARTNER_PROVIDER_NAMESPACE" env-default:"NewRelic"`

	// Resource-scope log category group and subscription-scope log categories
	// used when restoring a platform managed diagnostic setting.
	RestoreLogCategoryGroup          string   `env:"RESTORE_LOG_CATEGORY_GROUP" env-default:"allLogs"`
	RestoreSubscriptionLogCategories []string `env:"RESTORE_SUBSCRIPTION_LOG_CATEGORIES" env-default:"Administrative,Security,ServiceHealth,Alert,Recommendation,Policy,Autoscale,ResourceHealth"`

	// V2 subscription gate
	V2SubscriptionMode     string        `env:"V2_SUBSCRIPTION_MODE" env-default:"all"` // all | list | redis
	V2Subscriptions        []string      `env:"V2_SUBSCRIPTIONS" env-default:""`
	V2SubscriptionRedisKey string        `env:"V2_SUBSCRIPTION_REDIS_KEY" env-default:"fern:v2-subscriptions"`
	V2SubscriptionCacheTTL time.Duration `env:"V2_SUBSCRIPTION_CACHE_TTL" env-default:"1m"`

	// Per monitored resource lock across replicas (requires redis)
	NotificationLockEnabled bool          `env:"NOTIFICATION_LOCK_ENABLED" env-default:"false"`
	NotificationLockTTL     time.Duration `env:"NOTIFICATION_LOCK_TTL" env-default:"30s"`
	NotificationLockWait    time.Duration `env:"NOTIFICATION_LOCK_WAIT" env-default:"10s"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingEndpoint string `env:"TRACING_ENDPOINT" env-default:"localhost:4317"`
	TracingProtocol string `env:"TRACING_PROTOCOL" env-default:"grpc"`
	TracingInsecure bool   `env:"TRACING_INSECURE" env-default:"true"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
