// Package server assembles the reservation daemon from its components.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/internal/database"
	"github.com/MarkoPoloResearchLab/reservas/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/reservas/internal/httpapi"
	"github.com/MarkoPoloResearchLab/reservas/internal/notify"
	"github.com/MarkoPoloResearchLab/reservas/internal/slotlock"
	"github.com/MarkoPoloResearchLab/reservas/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"gorm.io/gorm"
)

const (
	shutdownTimeout = 5 * time.Second
	lockTTLMargin   = 5 * time.Second
)

// lockTTL outlives any admission transaction, which runs under the HTTP
// request deadline.
func lockTTL(requestTimeout time.Duration) time.Duration {
	return requestTimeout + lockTTLMargin
}

// Run serves HTTP and gRPC until ctx is canceled, alongside the expiry sweep
// and the notification dispatcher.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := database.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if cfg.AutoMigrate || driver == database.DriverSQLite {
		if err := database.PrepareSchema(gormDB); err != nil {
			return err
		}
	}

	components, err := assemble(ctx, cfg, gormDB, logger)
	if err != nil {
		return err
	}
	defer components.close()

	httpListener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcListener, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	httpServer := &http.Server{
		Handler:           components.handler,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}
	grpcServer := grpc.NewServer()
	healthServer := grpcserver.Register(grpcServer, grpcserver.NewAvailabilityServiceServer(components.service))

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go components.service.RunExpiry(workerCtx, cfg.ExpiryInterval)
	go components.dispatcher.Run(workerCtx, cfg.DispatchInterval)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server starting", zap.String("listen_addr", cfg.ListenAddr))
		errCh <- httpServer.Serve(httpListener)
	}()
	go func() {
		logger.Info("gRPC server starting", zap.String("listen_addr", cfg.GRPCListenAddr))
		errCh <- grpcServer.Serve(grpcListener)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case serveErr = <-errCh:
		logger.Error("server stopped", zap.Error(serveErr))
	}

	stopWorkers()
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	if serveErr == nil || errors.Is(serveErr, http.ErrServerClosed) || errors.Is(serveErr, grpc.ErrServerStopped) {
		return nil
	}
	return serveErr
}

type components struct {
	service    *reservas.Service
	dispatcher *notify.Dispatcher
	handler    http.Handler
	closers    []func() error
}

func (assembled *components) close() {
	for index := len(assembled.closers) - 1; index >= 0; index-- {
		_ = assembled.closers[index]()
	}
}

// assemble builds the service graph on top of an open database.
func assemble(ctx context.Context, cfg Config, gormDB *gorm.DB, logger *zap.Logger) (*components, error) {
	assembled := &components{}
	options := []reservas.ServiceOption{
		reservas.WithOperationLogger(newOperationLogger(logger)),
		reservas.WithPublicBaseURL(cfg.PublicBaseURL),
		reservas.WithPendingTTL(cfg.PendingTTL),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		assembled.closers = append(assembled.closers, client.Close)
		locker := slotlock.NewRedisLocker(client,
			slotlock.WithTTL(lockTTL(cfg.RequestTimeout)),
			slotlock.OnReleaseError(func(key string, err error) {
				logger.Warn("admission lock release", zap.String("key", key), zap.Error(err))
			}),
		)
		options = append(options, reservas.WithSlotLocker(locker), reservas.WithOwnerLocker(locker))
		logger.Info("using redis admission locks", zap.String("redis_addr", cfg.RedisAddr))
	}

	service, err := reservas.NewService(gormstore.New(gormDB), time.Now, options...)
	if err != nil {
		assembled.close()
		return nil, fmt.Errorf("reservation service init: %w", err)
	}
	assembled.service = service

	sender, closeSender, err := notify.NewSender(cfg.Notify, logger)
	if err != nil {
		assembled.close()
		return nil, fmt.Errorf("notification transport: %w", err)
	}
	assembled.closers = append(assembled.closers, closeSender)
	dispatcher, err := notify.NewDispatcher(gormstore.NewOutbox(gormDB), sender, logger, time.Now, notify.DispatcherConfig{})
	if err != nil {
		assembled.close()
		return nil, fmt.Errorf("dispatcher init: %w", err)
	}
	assembled.dispatcher = dispatcher

	router, err := httpapi.NewRouter(httpapi.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		FrontendURL:    cfg.FrontendURL,
		RequestTimeout: cfg.RequestTimeout,
	}, service, logger)
	if err != nil {
		assembled.close()
		return nil, err
	}
	assembled.handler = otelhttp.NewHandler(router, "reservas-http")
	return assembled, nil
}
