package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lebim01/dotacasino-api-sub001/internal/config"
	"github.com/Lebim01/dotacasino-api-sub001/internal/handler"
	"github.com/Lebim01/dotacasino-api-sub001/internal/logging"
	"github.com/Lebim01/dotacasino-api-sub001/internal/middleware"
	"github.com/Lebim01/dotacasino-api-sub001/internal/rates"
	"github.com/Lebim01/dotacasino-api-sub001/internal/repository"
	"github.com/Lebim01/dotacasino-api-sub001/internal/service/balance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("wallet-ledger", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	walletRepo := repository.NewWalletRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	balanceSvc := balance.NewService(walletRepo, ledgerRepo, db)

	rateCache := rates.NewCache(rdb, time.Duration(cfg.RateCacheTTLHours)*time.Hour)
	rateFeed := rates.NewFeedClient(cfg.RateFeedURL)
	rateProvider := rates.NewProvider(rateFeed, rateCache, slog.Default())

	refreshCtx, stopRefresher := context.WithCancel(context.Background())
	defer stopRefresher()
	refresher := rates.NewRefresher(rateProvider, time.Duration(cfg.RateRefreshHours)*time.Hour, slog.Default())
	go refresher.Start(refreshCtx)

	adjustmentHandler := handler.NewAdjustmentHandler(balanceSvc)
	walletHandler := handler.NewWalletHandler(balanceSvc)
	fxHandler := handler.NewFXHandler(rateProvider)
	healthHandler := handler.NewHealthHandler(db)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/adjustments", adjustmentHandler.Create)
	api.HandleFunc("GET /api/v1/wallets", walletHandler.List)
	api.HandleFunc("GET /api/v1/wallets/{id}/entries", walletHandler.ListEntries)
	api.HandleFunc("GET /api/v1/fx/convert", fxHandler.Convert)

	apiChain := middleware.Auth(cfg.JWTSecret)(middleware.Logging(middleware.Recovery(api)))

	root := http.NewServeMux()
	root.HandleFunc("GET /health", healthHandler.Health)
	root.Handle("/api/v1/", apiChain)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Tracing(root),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopRefresher()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var lastErr error
	for i := range 30 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		cancel()
		if err == nil {
			return db, nil
		}
		lastErr = err
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", lastErr)
}
