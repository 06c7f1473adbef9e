package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Khaledaun/orion-content-sub000/internal/config"
	"github.com/Khaledaun/orion-content-sub000/internal/domain"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/auth/rbac"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/auth/session"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/db"
	httpinfra "github.com/Khaledaun/orion-content-sub000/internal/infra/http"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/logging"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/metrics"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/ratelimit"
	"github.com/Khaledaun/orion-content-sub000/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("oriond exited: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logging.SetLevel(cfg.LogLevel)

	var gwMetrics metrics.GatewayMetrics = metrics.Noop{}
	if cfg.MetricsEnabled {
		gwMetrics = metrics.NewProm("orion")
	}

	store, err := db.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.AutoMigrate(); err != nil {
		return err
	}

	verifier, err := session.NewVerifier(cfg)
	if err != nil {
		return err
	}

	local := ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
		MaxKeys:    cfg.RateLimitMaxKeys,
		SweepEvery: cfg.RateLimitSweepInterval(),
	})
	var shared domain.RateLimiter
	if cfg.RedisAddr != "" {
		shared, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
		if err != nil {
			return err
		}
	}
	limiter := ratelimit.NewFailoverLimiter(shared, local, gwMetrics, nil)
	defer limiter.Close()

	auditRepo := db.NewAuditEventRepository(store.DB)
	emitter := usecase.NewAsyncAuditEmitter(auditRepo, usecase.AuditEmitterConfig{
		QueueSize:    cfg.AuditQueueSize,
		WriteTimeout: cfg.StoreTimeout(),
		Metrics:      gwMetrics,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := emitter.Close(ctx); err != nil {
			logging.Warn("oriond", "audit emitter did not drain", "err", err)
		}
	}()

	gateway := &usecase.Gateway{
		Resolver: &usecase.Resolver{
			Tokens:       db.NewScopedTokenRepository(store.DB),
			Roles:        db.NewRoleGrantRepository(store.DB),
			Sessions:     db.NewSessionRepository(store.DB),
			Verifier:     verifier,
			StoreTimeout: cfg.StoreTimeout(),
			Metrics:      gwMetrics,
		},
		Limiter:       limiter,
		Authz:         rbac.NewEvaluator(),
		Audit:         emitter,
		Metrics:       gwMetrics,
		DefaultLimit:  cfg.RateLimitRequests,
		DefaultWindow: cfg.RateLimitWindow(),
		StoreTimeout:  cfg.StoreTimeout(),
	}

	policies := httpinfra.DefaultPolicies()
	if cfg.RoutePolicyFile != "" {
		policies, err = httpinfra.LoadPolicyFile(cfg.RoutePolicyFile, policies)
		if err != nil {
			return err
		}
	}

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Gateway:    gateway,
		Audit:      auditRepo,
		Policies:   policies,
		Metrics:    gwMetrics,
		DBAttached: store.DB != nil,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("oriond", "listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
