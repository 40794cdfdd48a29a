package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/keygate/license-service/internal/adapters/cache"
	eventadapter "github.com/keygate/license-service/internal/adapters/events"
	httpadapter "github.com/keygate/license-service/internal/adapters/http"
	"github.com/keygate/license-service/internal/adapters/postgres"
	"github.com/keygate/license-service/internal/application"
	"github.com/keygate/license-service/internal/caching"
)

type Runtime struct {
	cfg         Config
	logger      *slog.Logger
	httpServer  *http.Server
	grpcServer  *grpc.Server
	grpcLis     net.Listener
	coordinator *caching.Coordinator
	relay       *eventadapter.AuditRelay
	cleanupFn   func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping license service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	store := postgres.NewStore(db)
	cacheRepo := cacheadapter.NewRedisRepository(redisClient, cfg.CacheOpTimeout)
	coordinator := caching.NewCoordinator(cacheRepo, caching.Config{
		PointTTL: cfg.CachePointTTL,
		ListTTL:  cfg.CacheListTTL,
		Channel:  cfg.InvalidationChannel,
	}, logger)

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			HeartbeatTTL: cfg.HeartbeatTTL,
		},
		Store:  store,
		Cache:  coordinator,
		Audit:  eventadapter.NewOutboxAuditSink(logger, store.Outbox()),
		Logger: logger,
	})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	relay := eventadapter.NewAuditRelay(
		logger,
		store.Outbox(),
		eventadapter.NewRedisPublisher(redisClient, cfg.AuditChannelPrefix),
		eventadapter.WorkerConfig{
			PollInterval: cfg.OutboxPollInterval,
			BatchSize:    cfg.OutboxBatchSize,
			ClaimTTL:     cfg.OutboxClaimTTL,
			MaxRetries:   cfg.OutboxMaxRetries,
		},
	)

	return &Runtime{
		cfg:         cfg,
		logger:      logger,
		httpServer:  httpServer,
		grpcServer:  grpcServer,
		grpcLis:     lis,
		coordinator: coordinator,
		relay:       relay,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// RunAPI serves HTTP and gRPC health until a shutdown signal, then drains.
// The invalidation relay runs alongside so evictions published by peer
// instances reach this one.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	relayCtx, cancelRelay := context.WithCancel(ctx)
	defer cancelRelay()
	go func() {
		if err := r.coordinator.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("invalidation relay stopped", "error", err)
		}
	}()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunWorker drives the audit relay loop until a shutdown signal.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("audit relay started")
	err := r.relay.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
