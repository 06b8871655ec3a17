package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/monitoringrelationship"
	"github.com/Ramsey-B/fern/internal/repositories/monitoringstatus"
	"github.com/Ramsey-B/fern/internal/repositories/partnerresource"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/diagnosticsettings"
	"github.com/Ramsey-B/fern/pkg/notification"
	fernredis "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/subscription"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// app holds the process-wide dependencies shared by the subcommands.
type app struct {
	cfg            config.Config
	logger         ectologger.Logger
	zap            *zap.Logger
	tracerProvider *sdktrace.TracerProvider

	db        database.DB
	redis     *fernredis.Client
	partners  *partnerresource.Repository
	processor *notification.Processor
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: zapadapter.NewZapEctoLogger(zapLogger, nil),
		zap:    zapLogger,
	}

	if cfg.TracingEnabled {
		a.tracerProvider, err = tracing.NewTracerProvider(ctx, tracing.OTLPConfig{
			ServiceName:    cfg.AppName,
			ServiceVersion: cfg.Version,
			Endpoint:       cfg.TracingEndpoint,
			Protocol:       cfg.TracingProtocol,
			Insecure:       cfg.TracingInsecure,
			Timeout:        10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start tracing: %w", err)
		}
	}
	return a, nil
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zapConfig.Level = level
	zapConfig.InitialFields = map[string]any{"app": cfg.AppName, "version": cfg.Version}

	return zapConfig.Build()
}

func (a *app) connectDatabase(ctx context.Context) error {
	db, err := database.Connect(ctx, a.logger, database.ConnectionConfig{
		Driver:          a.cfg.DatabaseDriver,
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		UserName:        a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *app) migrate() error {
	version := a.cfg.DatabaseMigrationVersion
	if version < 0 {
		version = 0
	}
	return database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		DatabaseName:        a.cfg.DatabaseName,
		Version:             uint(version),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	}).Migrate(a.db)
}

func (a *app) connectRedis(ctx context.Context) error {
	if !a.cfg.RedisEnabled {
		return nil
	}
	client, err := fernredis.NewClient(ctx, fernredis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

// buildProcessor wires the repositories, Azure client and subscription gate
// into the notification processor. The database (and redis, when enabled)
// must be connected.
func (a *app) buildProcessor() error {
	settings, err := diagnosticsettings.NewAzureManager(a.logger, diagnosticsettings.Config{
		Cloud:                     a.cfg.AzureCloud,
		AuthMode:                  a.cfg.AzureAuthMode,
		ClientID:                  a.cfg.AzureClientID,
		ClientSecret:              a.cfg.AzureClientSecret,
		CallTimeout:               a.cfg.AzureCallTimeout,
		LogCategoryGroup:          a.cfg.RestoreLogCategoryGroup,
		SubscriptionLogCategories: a.cfg.RestoreSubscriptionLogCategories,
	})
	if err != nil {
		return fmt.Errorf("failed to create diagnostic settings client: %w", err)
	}

	var members subscription.SetMembership
	if a.redis != nil {
		members = a.redis
	}
	selector, err := subscription.New(subscription.Config{
		Mode:          a.cfg.V2SubscriptionMode,
		Subscriptions: a.cfg.V2Subscriptions,
		RedisKey:      a.cfg.V2SubscriptionRedisKey,
		CacheTTL:      a.cfg.V2SubscriptionCacheTTL,
	}, members, a.logger)
	if err != nil {
		return err
	}

	processorConfig := notification.ProcessorConfig{ProviderNamespace: a.cfg.PartnerProviderNamespace}
	if a.cfg.NotificationLockEnabled {
		if a.redis == nil {
			return fmt.Errorf("NOTIFICATION_LOCK_ENABLED requires REDIS_ENABLED")
		}
		processorConfig.Locker = fernredis.NewLocker(a.redis, fernredis.LockConfig{
			KeyPrefix: a.cfg.AppName + ":lock:",
			TTL:       a.cfg.NotificationLockTTL,
			Wait:      a.cfg.NotificationLockWait,
		})
	}

	a.partners = partnerresource.NewRepository(a.db, a.logger)
	a.processor = notification.NewProcessor(notification.Dependencies{
		Partners:      a.partners,
		Relationships: monitoringrelationship.NewRepository(a.db, a.logger),
		Statuses:      monitoringstatus.NewRepository(a.db, a.logger),
		Settings:      settings,
		Selector:      selector,
		Logger:        a.logger,
	}, processorConfig)

	a.logger.WithFields(map[string]any{
		"provider_namespace": a.cfg.PartnerProviderNamespace,
		"subscription_mode":  a.cfg.V2SubscriptionMode,
		"lock_enabled":       strconv.FormatBool(processorConfig.Locker != nil),
	}).Info("Notification processor ready")
	return nil
}

// close releases whatever was opened. Errors are logged.
func (a *app) close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close redis")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close database")
		}
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Warn("Failed to flush traces")
		}
	}
	_ = a.zap.Sync()
}
