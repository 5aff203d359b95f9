package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frankieli/hot_or_not/internal/config"
	hotGrpc "github.com/frankieli/hot_or_not/internal/modules/hot_or_not/adapter/grpc"
	hotHttp "github.com/frankieli/hot_or_not/internal/modules/hot_or_not/adapter/http"
	hotKafka "github.com/frankieli/hot_or_not/internal/modules/hot_or_not/adapter/kafka"
	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/domain"
	hotDB "github.com/frankieli/hot_or_not/internal/modules/hot_or_not/repository/db"
	hotMemory "github.com/frankieli/hot_or_not/internal/modules/hot_or_not/repository/memory"
	hotRedis "github.com/frankieli/hot_or_not/internal/modules/hot_or_not/repository/redis"
	"github.com/frankieli/hot_or_not/internal/modules/hot_or_not/usecase"
	"github.com/frankieli/hot_or_not/pkg/grpc_client/base"
	"github.com/frankieli/hot_or_not/pkg/logger"
	"github.com/frankieli/hot_or_not/pkg/metrics"
	"github.com/frankieli/hot_or_not/pkg/netutil"
)

const shutdownTimeout = 30 * time.Second

func main() {
	background := flag.Bool("d", false, "Run in background mode (disable console logging)")
	flag.Parse()

	cfg := config.LoadHotOrNotConfig()
	initLogger(cfg, *background)
	defer logger.Close()

	logger.InfoGlobal().Str("service", cfg.Server.Name).Msg("Starting Hot/Not settlement service")

	// 1. Storage
	store := openStore(cfg)
	inbox, closeInbox := openInbox(cfg)
	defer closeInbox()

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 3. Peers
	baseClient := base.NewBaseClient()
	defer baseClient.Close()
	participants := hotGrpc.NewParticipantClient(baseClient)

	var allocator domain.CyclesAllocator
	if cfg.Allocator.Addr != "" {
		allocator = hotGrpc.NewAllocatorClient(baseClient, cfg.Allocator.Addr)
	} else {
		logger.WarnGlobal().Msg("ALLOCATOR_ADDR not set, resource top-ups disabled")
	}

	// 4. gRPC listener first so the advertised address carries the bound port
	lis, port, err := netutil.Listen(cfg.Server.Port)
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to listen on gRPC port")
	}
	instance := netutil.AdvertiseAddr(cfg.InstanceAddr, port)

	// 5. Use cases
	settlementUC := usecase.NewSettlementUseCase(
		store,
		usecase.NoopResolver{},
		allocator,
		participants,
		m,
		usecase.SettlementConfig{Instance: instance, NotifyTimeout: cfg.Notify.CallTimeout},
	)
	participantUC := usecase.NewParticipantUseCase(store, inbox, m)

	// 6. gRPC server
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(logger.UnaryServerInterceptor()))
	hotGrpc.RegisterParticipantServiceServer(grpcServer, hotGrpc.NewHandler(settlementUC, participantUC))

	go func() {
		logger.InfoGlobal().Int("port", port).Str("instance", instance).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.FatalGlobal().Err(err).Msg("Failed to serve gRPC")
		}
	}()

	// 7. Admin HTTP
	router := hotHttp.NewRouter(hotHttp.NewHandler(settlementUC, participantUC), m, hotHttp.RouterConfig{
		RateLimitRPS:   cfg.Admin.RateLimitRPS,
		RateLimitBurst: cfg.Admin.RateLimitBurst,
	})
	httpServer := hotHttp.NewServer(router, cfg.Server.HTTPPort)
	go func() {
		logger.InfoGlobal().Str("port", cfg.Server.HTTPPort).Msg("Admin HTTP server listening")
		if err := httpServer.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalGlobal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	// 8. Slot triggers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled() {
		consumer, err := hotKafka.NewConsumer(hotKafka.Config{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			GroupID:     cfg.Kafka.GroupID,
			PollTimeout: cfg.Kafka.PollTimeout,
		}, settlementUC)
		if err != nil {
			logger.FatalGlobal().Err(err).Msg("Failed to create slot trigger consumer")
		}
		go func() {
			defer close(consumerDone)
			defer consumer.Close()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorGlobal().Err(err).Msg("Slot trigger consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
		logger.InfoGlobal().Msg("KAFKA_BROKERS not set, slot trigger consumer disabled")
	}

	// 9. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.InfoGlobal().Msg("Shutting down Hot/Not service...")

	cancel()
	<-consumerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WarnGlobal().Err(err).Msg("Admin HTTP shutdown failed")
	}

	// In-flight TabulateSlot calls finish their notification pass before we exit.
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		logger.InfoGlobal().Msg("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.WarnGlobal().Dur("timeout", shutdownTimeout).Msg("gRPC graceful stop timed out, forcing Stop")
		grpcServer.Stop()
	}

	logger.InfoGlobal().Msg("Hot/Not shutdown complete")
}

func initLogger(cfg *config.HotOrNotConfig, background bool) {
	if cfg.Server.LogFile == "" {
		logger.Init(logger.Config{Level: cfg.Server.LogLevel, Format: "json"})
		return
	}
	if err := logger.InitWithFile(cfg.Server.LogFile, cfg.Server.LogLevel, "json", !background); err != nil {
		logger.Init(logger.Config{Level: cfg.Server.LogLevel, Format: "json"})
		logger.WarnGlobal().Err(err).Str("file", cfg.Server.LogFile).Msg("Log file unavailable, logging to stdout")
	}
}

func openStore(cfg *config.HotOrNotConfig) domain.Store {
	if cfg.RepoType != config.RepoTypeDB {
		logger.InfoGlobal().Msg("Using in-memory store")
		return hotMemory.NewStore()
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        cfg.Database.DSN(),
	}), &gorm.Config{Logger: logger.NewGormLogger()})
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to connect to database")
	}
	store := hotDB.NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to migrate database")
	}
	logger.InfoGlobal().Str("host", cfg.Database.Host).Msg("Database connected")
	return store
}

func openInbox(cfg *config.HotOrNotConfig) (domain.OutcomeInbox, func()) {
	if cfg.InboxType != config.InboxTypeRedis {
		return hotMemory.NewOutcomeInbox(cfg.InboxLimit), func() {}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.FatalGlobal().Err(err).Str("addr", cfg.Redis.Addr()).Msg("Failed to connect to Redis")
	}
	logger.InfoGlobal().Str("addr", cfg.Redis.Addr()).Msg("Redis connected")

	inbox := hotRedis.NewOutcomeInbox(rdb, cfg.Server.Name, cfg.InboxLimit)
	return inbox, func() { _ = rdb.Close() }
}
