package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/edulearn/order-service/internal/app"
	"github.com/edulearn/order-service/internal/broker"
	"github.com/edulearn/order-service/internal/cache"
	"github.com/edulearn/order-service/internal/clients"
	"github.com/edulearn/order-service/internal/config"
	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/httpx"
	"github.com/edulearn/order-service/internal/pricing"
	"github.com/edulearn/order-service/internal/repository"
	"github.com/edulearn/order-service/internal/saga"
	"github.com/edulearn/order-service/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("order service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.SetupTracer(ctx, "order-service", cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}

	redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)

	publisher := broker.NewKafkaPublisher(cfg.KafkaBrokers, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close kafka publisher", "error", err)
		}
	}()

	orders := repository.NewCachedOrderRepository(
		repository.NewPostgresOrderRepository(pool), redisCache, logger, metrics)
	bookings := repository.NewPostgresBookingRepository(pool)

	courseClient := clients.NewHTTPCourseClient(cfg.CourseServiceURL)
	resolver := pricing.NewResolver(courseClient, redisCache, logger, metrics)
	sagaLogs := saga.NewPostgresLogRepository(pool)

	svc := app.NewService(app.Deps{
		Orders:     orders,
		Bookings:   bookings,
		Users:      clients.NewHTTPUserClient(cfg.UserServiceURL),
		Sessions:   clients.NewHTTPSessionClient(cfg.SessionServiceURL),
		Resolver:   resolver,
		Publisher:  publisher,
		SagaLogs:   sagaLogs,
		SagaStates: sagaLogs,
		Locks:      redisCache,
		Logger:     logger,
		Metrics:    metrics,
		TaxRate:    cfg.SalesTaxRate,
	})

	consumer := broker.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, map[string]broker.HandlerFunc{
		domain.TopicPaymentInitiated: svc.OnPaymentInitiated,
		domain.TopicPaymentSucceeded: svc.OnPaymentSucceeded,
		domain.TopicPaymentFailed:    svc.OnPaymentFailed,
		domain.TopicPaymentTimeout:   svc.OnPaymentTimeout,
	}, publisher, logger, metrics)
	go consumer.Run(ctx)
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("failed to close kafka consumer", "error", err)
		}
	}()

	router := httpx.NewRouter(httpx.NewHandler(svc, logger))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "order-service"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("order service listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
