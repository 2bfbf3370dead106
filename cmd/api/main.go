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

	"github.com/redis/go-redis/v9"

	"github.com/kasrafouladi/Elmosyar/internal/api"
	"github.com/kasrafouladi/Elmosyar/internal/auth"
	"github.com/kasrafouladi/Elmosyar/internal/config"
	"github.com/kasrafouladi/Elmosyar/internal/db"
	"github.com/kasrafouladi/Elmosyar/internal/gateway"
	"github.com/kasrafouladi/Elmosyar/internal/logger"
	"github.com/kasrafouladi/Elmosyar/internal/metrics"
	"github.com/kasrafouladi/Elmosyar/internal/models"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
	"github.com/kasrafouladi/Elmosyar/internal/repository/memory"
	"github.com/kasrafouladi/Elmosyar/internal/repository/postgres"
	"github.com/kasrafouladi/Elmosyar/internal/replay"
	"github.com/kasrafouladi/Elmosyar/internal/services"
	"github.com/kasrafouladi/Elmosyar/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	wp := worker.NewPool(cfg.AuditWorkers)
	defer wp.Stop()

	metrics.Init()

	var replayGuard services.ReplayGuard = replay.Noop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, verify replay guard disabled", "addr", cfg.RedisAddr, "err", err)
		} else {
			replayGuard = replay.NewRedisGuard(rdb, cfg.VerifyLockTTL)
		}
	}

	guard := services.NewSaleGuard()
	audit := services.NewAuditor(store.AuditLogs(), wp, log)
	wallets := services.NewWalletService(store, guard, audit, log, cfg.MaxAmount)
	payments := services.NewPaymentService(services.PaymentDeps{
		Store:        store,
		Wallets:      wallets,
		Guard:        guard,
		Gateway:      gateway.New(cfg.GatewayMode, cfg.GatewaySuccessRate),
		Replay:       replayGuard,
		Audit:        audit,
		Log:          log,
		RedirectBase: cfg.GatewayRedirect,
	})

	r := api.NewRouter(api.RouterDeps{
		Cfg:      cfg,
		Log:      log,
		TM:       auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, 15*time.Minute),
		Users:    store.Users(),
		Wallets:  wallets,
		Payments: payments,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "store", cfg.Store, "gateway", cfg.GatewayMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repo.Store, func(), error) {
	if cfg.Store == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return seedDemo(memory.NewStore()), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 20)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Migrate {
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return postgres.NewStore(pool), pool.Close, nil
}

// seedDemo gives a fresh in-memory store two funded accounts and one listed item.
func seedDemo(s *memory.Store) *memory.Store {
	for _, u := range []string{"alice", "bob"} {
		s.AddUser(models.User{ID: u, Username: u})
		s.PutWallet(u, 10_000)
	}
	s.PutItem(models.Item{ID: 1, OwnerID: "bob", Attributes: map[string]any{models.AttrPrice: 2500}})
	return s
}
