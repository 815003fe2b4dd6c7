package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"afiliapix/internal/charge"
	"afiliapix/internal/config"
	"afiliapix/internal/database"
	"afiliapix/internal/handlers"
	"afiliapix/internal/ledger"
	"afiliapix/internal/plan"
	"afiliapix/internal/referral"
	"afiliapix/internal/settlement"
	"afiliapix/internal/syncpay"
	"afiliapix/internal/withdrawal"
	"afiliapix/internal/worker"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("could not connect to database", zap.Error(err))
	}

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		// Redis only backs the dedup fast path and the sweep lease;
		// the charge-status gate stays authoritative without it.
		logger.Warn("redis unavailable, continuing without it", zap.Error(err))
		rdb = nil
	}

	gateway := syncpay.NewClient(cfg.SyncPayBaseURL, cfg.SyncPayClientID, cfg.SyncPayClientSecret, logger)
	catalog := plan.DefaultCatalog()
	ledgerStore := ledger.NewStore(db)
	resolver := referral.NewResolver(db)

	settlementProc := settlement.NewProcessor(db, catalog, ledgerStore, resolver, rdb, logger)
	issuer := charge.NewIssuer(db, gateway, catalog, logger)
	withdrawalProc := withdrawal.NewProcessor(db, gateway, ledgerStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := worker.NewChecker(db, rdb, ledgerStore, logger)
	go checker.Start(ctx)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	h := handlers.New(settlementProc, issuer, withdrawalProc, logger)
	h.Register(r, cfg)

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.GinMode == gin.ReleaseMode {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
