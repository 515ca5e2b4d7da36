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

	"chat-gateway/chat"
	chatapp "chat-gateway/chat/application"
	chatinfra "chat-gateway/chat/infra"
	"chat-gateway/config"
	"chat-gateway/middleware/ratelimit"
	"chat-gateway/middleware/ratelimit/application"
	"chat-gateway/middleware/ratelimit/domain"
	"chat-gateway/middleware/ratelimit/infra"
	"chat-gateway/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.APIKey == "" {
		logger.Warn("DEEPSEEK_API_KEY not set, chat requests will fail with 500 until it is configured")
	}

	var reg *prometheus.Registry
	if cfg.MetricsEnabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	var admission []func(http.Handler) http.Handler
	if cfg.RateEnabled {
		admission = append(admission, ratelimit.Middleware(ratelimit.Options{
			Controller:          newAdmissionController(cfg, rdb, logger),
			Stats:               newStatsStore(cfg, rdb, reg),
			KeyHeader:           cfg.RateKeyHeader,
			TrustXForwardedFor:  cfg.TrustXFF,
			AddRateLimitHeaders: cfg.AddHeaders,
			Logger:              logger.Named("ratelimit"),
		}))
	}
	admission = append(admission, ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
	}))

	var chatMetrics *chatapp.Metrics
	if reg != nil {
		chatMetrics = chatapp.NewMetrics(reg)
	}
	chatHandler := &chat.Handler{
		Pipeline: &chatapp.Pipeline{
			Upstream: chatinfra.NewDeepSeekClient(cfg.UpstreamURL,
				chatinfra.WithThrottle(cfg.UpstreamRPS, cfg.UpstreamBurst)),
			APIKey:  cfg.APIKey,
			Model:   cfg.UpstreamModel,
			Timeout: cfg.UpstreamTimeout,
			Logger:  logger.Named("chat"),
			Metrics: chatMetrics,
		},
		Logger: logger.Named("chat"),
	}

	srv := server.New(server.Options{
		Addr:          cfg.ListenAddr,
		AllowedOrigin: cfg.AllowedOrigin,
		Chat:          chatHandler,
		Admission:     admission,
		Logger:        logger.Named("http"),
		Registry:      reg,
		WriteTimeout:  cfg.UpstreamTimeout + 10*time.Second,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway config",
		zap.String("upstream", cfg.UpstreamURL),
		zap.String("model", cfg.UpstreamModel),
		zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
		zap.Float64("upstream_rps", cfg.UpstreamRPS),
		zap.String("allowed_origin", cfg.AllowedOrigin))
	logger.Info("rate limit config",
		zap.Bool("enabled", cfg.RateEnabled),
		zap.String("store", cfg.RateStore),
		zap.Duration("window", cfg.RateWindow),
		zap.Int("max", cfg.RateMax),
		zap.Duration("cleanup_every", cfg.RateCleanupEvery),
		zap.String("key_header", cfg.RateKeyHeader),
		zap.Bool("trust_xff", cfg.TrustXFF),
		zap.Bool("stats", cfg.RateStatsEnabled))
	logger.Info("concurrency config",
		zap.Int("max", cfg.ConcurrencyMax),
		zap.Duration("acquire_timeout", cfg.ConcurrencyTimeout))

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func newAdmissionController(cfg config.Config, rdb *redis.Client, logger *zap.Logger) *application.AdmissionController {
	clock := domain.SystemClock
	memory := infra.NewMemoryWindowStore(cfg.Policy(), clock.Now(), infra.WithCleanupEvery(cfg.RateCleanupEvery))

	ctrl := &application.AdmissionController{
		Store:  memory,
		Clock:  clock,
		Logger: logger.Named("admission"),
	}
	if cfg.RateStore == config.StoreRedis && rdb != nil {
		ctrl.Store = infra.NewRedisWindowStore(rdb, cfg.Policy(), infra.WithWindowPrefix(cfg.RateRedisPrefix))
		ctrl.Fallback = memory
	}
	return ctrl
}

func newStatsStore(cfg config.Config, rdb *redis.Client, reg *prometheus.Registry) domain.StatsStore {
	var stores infra.MultiStatsStore
	if reg != nil {
		stores = append(stores, infra.NewPrometheusStatsStore(reg))
	}
	if cfg.RateStatsEnabled && rdb != nil {
		stores = append(stores, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.RateStatsPrefix),
			infra.WithStatsTTL(cfg.RateStatsTTL),
			infra.WithStatsBucket(cfg.RateStatsBucket),
			infra.WithStatsTrackKeys(cfg.RateStatsTrackKeys),
		))
	}
	if len(stores) == 0 {
		return nil
	}
	return stores
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build(zap.Fields(zap.String("service", "chat-gateway")))
}
