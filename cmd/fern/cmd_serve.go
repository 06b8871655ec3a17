package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	notificationroutes "github.com/Ramsey-B/fern/pkg/routes/notification"
	partnerroutes "github.com/Ramsey-B/fern/pkg/routes/partner"
	"github.com/Ramsey-B/fern/pkg/startup"
)

const shutdownTimeout = 30 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	checker := health.NewChecker(a.cfg.Version)
	s := startup.NewStartup(a.logger, a.cfg.StartupMaxAttempts)

	s.AddDependency(startup.Func{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			if err := a.connectDatabase(ctx); err != nil {
				return err
			}
			checker.AddCheck("database", a.db.PingContext)
			if a.cfg.DatabaseMigrateOnStart {
				return a.migrate()
			}
			return nil
		},
		StopFunc: func(context.Context) error {
			err := a.db.Close()
			a.db = nil
			return err
		},
	})

	if a.cfg.RedisEnabled {
		s.AddDependency(startup.Func{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				if err := a.connectRedis(ctx); err != nil {
					return err
				}
				checker.AddCheck("redis", a.redis.Ping)
				return nil
			},
			StopFunc: func(context.Context) error {
				err := a.redis.Close()
				a.redis = nil
				return err
			},
		})
	}

	processorNeeds := []string{"database"}
	if a.cfg.RedisEnabled {
		processorNeeds = append(processorNeeds, "redis")
	}
	s.AddDependency(startup.Func{
		Name:  "processor",
		Needs: processorNeeds,
		StartFunc: func(context.Context) error {
			return a.buildProcessor()
		},
	})

	if a.cfg.KafkaConsumerEnabled {
		var deadLetters *kafka.DeadLetterProducer
		var consumer *kafka.Consumer

		s.AddDependency(startup.Func{
			Name: "dead-letters",
			StartFunc: func(context.Context) error {
				deadLetters = kafka.NewDeadLetterProducer(kafka.ProducerConfig{
					Brokers:      a.cfg.KafkaBrokers,
					Topic:        a.cfg.KafkaDeadLetterTopic,
					BatchSize:    a.cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: a.cfg.KafkaRequiredAcks,
					Compression:  a.cfg.KafkaCompression,
				}, a.logger)
				return nil
			},
			StopFunc: func(context.Context) error {
				return deadLetters.Close()
			},
		})

		s.AddDependency(startup.Func{
			Name:  "kafka-consumer",
			Needs: []string{"processor", "dead-letters"},
			StartFunc: func(context.Context) error {
				handler := kafka.NewNotificationHandler(a.processor, deadLetters, a.logger)
				consumer = kafka.NewConsumer(kafka.ConsumerConfig{
					Brokers:       a.cfg.KafkaBrokers,
					Topic:         a.cfg.KafkaInputTopic,
					ConsumerGroup: a.cfg.KafkaConsumerGroup,
				}, a.logger, handler.Handle)
				checker.AddCheck("kafka", func(context.Context) error {
					if !consumer.Healthy() {
						return errors.New("consumer is not running")
					}
					return nil
				})
				// the consume loop outlives startup, so it runs on the serve context
				return consumer.Start(ctx)
			},
			StopFunc: func(context.Context) error {
				return consumer.Stop()
			},
		})
	}

	var e *echo.Echo
	s.AddDependency(startup.Func{
		Name:  "http",
		Needs: []string{"processor"},
		StartFunc: func(context.Context) error {
			var err error
			e, err = newServer(a, checker, containerID)
			if err != nil {
				return err
			}
			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Port),
				ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
				WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
				IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
				ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
			}
			go func() {
				if err := e.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.WithError(err).Error("HTTP server stopped")
					stop()
				}
			}()
			a.logger.Infof("HTTP server listening on %s", server.Addr)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})

	if err := s.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.Stop(shutdownCtx)
		return err
	}
	checker.SetReady(true)
	a.logger.Info("fern started")

	<-ctx.Done()
	a.logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

func newServer(a *app, checker *health.Checker, dependencyContainerID string) (*echo.Echo, error) {
	container, err := a.registerDependencies(dependencyContainerID)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger, append(health.Paths(), "/metrics")...))
	e.Use(middleware.Dependencies(container.GetContainerID()))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	notificationroutes.Register(api)
	partnerroutes.Register(api)
	return e, nil
}
