package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/shopcore/checkout-service/internal/handler"
	"github.com/shopcore/checkout-service/internal/notification"
	"github.com/shopcore/checkout-service/internal/observability"
	"github.com/shopcore/checkout-service/internal/repository"
	"github.com/shopcore/checkout-service/internal/service"
	"github.com/shopcore/checkout-service/pkg/config"
	"github.com/shopcore/checkout-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := observability.NewTracerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logg.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	mp, err := observability.NewMeterProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logg.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	if err := repository.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logg.Fatal("Failed to run migrations", zap.Error(err))
	}

	pool, err := initPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logg.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)
	txManager := repository.NewPgxTxManager(pool, cfg.LockTimeout)

	sender := notification.NewHTTPSender(cfg.NotificationURL, cfg.NotificationTimeout)
	dispatcher := notification.NewDispatcher(sender, logg,
		cfg.NotificationMaxAttempts, cfg.NotificationBackoff, cfg.NotificationQueueSize)
	go dispatcher.Run(ctx)

	checkout := service.NewCheckoutService(txManager, store, dispatcher, logg, tp.Tracer(cfg.ServiceName))
	orderHandler := handler.NewOrderHandler(checkout, logg)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/health", orderHandler.HealthCheck)
	r.POST("/api/orders", orderHandler.PlaceOrder)
	r.GET("/api/orders/:id", orderHandler.GetOrder)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	logg.Info("Checkout service listening", zap.String("port", cfg.Port))

	<-ctx.Done()
	logg.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("Server shutdown failed", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logg.Error("Tracer shutdown failed", zap.Error(err))
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		logg.Error("Meter shutdown failed", zap.Error(err))
	}
}

func initPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pcfg.MaxConns = 25
	pcfg.MaxConnLifetime = time.Hour
	pcfg.MaxConnIdleTime = 30 * time.Minute
	pcfg.HealthCheckPeriod = time.Minute
	pcfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// NUMERIC columns scan straight into shopspring decimals.
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Wait for the database to come up.
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return pool, nil
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		}
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to database after 30 attempts")
}
