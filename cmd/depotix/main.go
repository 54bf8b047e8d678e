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

	"golang.org/x/sync/errgroup"

	"github.com/MelihSuissefocus/Depotix/internal/app"
	"github.com/MelihSuissefocus/Depotix/internal/catalog"
	"github.com/MelihSuissefocus/Depotix/internal/ledger"
	"github.com/MelihSuissefocus/Depotix/internal/observability"
	"github.com/MelihSuissefocus/Depotix/internal/orders"
	"github.com/MelihSuissefocus/Depotix/internal/partners"
	"github.com/MelihSuissefocus/Depotix/internal/platform/cache"
	"github.com/MelihSuissefocus/Depotix/internal/platform/db"
	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The low-stock cache is an optimization; the API works without it.
		logger.Warn("redis unavailable, low-stock cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	audit := shared.NewAuditLogger(pool)
	lowStockCache := ledger.NewLowStockCache(redisClient, cfg.LowStockCacheTTL, logger)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, audit, metrics, lowStockCache, logger)
	reversal := ledger.NewReversal(ledgerRepo, audit, lowStockCache, logger)

	catalogService := catalog.NewService(catalog.NewRepository(pool), audit, logger)

	partnersRepo := partners.NewRepository(pool)
	suppliers := partners.NewService(partners.KindSupplier, partnersRepo, audit, logger)
	customers := partners.NewService(partners.KindCustomer, partnersRepo, audit, logger)

	ordersService := orders.NewService(orders.NewRepository(pool), ledgerService, reversal, customers, audit, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		LedgerHandler:   ledger.NewHandler(ledgerService, reversal, logger),
		CatalogHandler:  catalog.NewHandler(catalogService, logger),
		PartnersHandler: partners.NewHandler(suppliers, customers, logger),
		OrdersHandler:   orders.NewHandler(ordersService, logger),
		Metrics:         metrics,
	})

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
